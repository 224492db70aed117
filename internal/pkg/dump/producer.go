// Package dump runs an external dump command and stores its output as a
// gzip-compressed artifact.
package dump

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog/log"
)

const stderrLimit = 64 * 1024

// DumpError reports a failed dump: the process failed or the artifact was empty.
type DumpError struct {
	Cause    error
	Stderr   string
	ExitCode int
}

func (e *DumpError) Error() string {
	msg := fmt.Sprintf("dump failed: %v", e.Cause)
	if e.Stderr != "" {
		msg += ": " + strings.TrimSpace(e.Stderr)
	}
	return msg
}

func (e *DumpError) Unwrap() error { return e.Cause }

// Producer runs Command with Args and compresses its stdout into the artifact.
type Producer struct {
	Command string
	Args    []string
	// Env is appended to the current process environment.
	Env []string
}

// NewPostgresProducer runs pg_dump in tar format against the given connection
// string. A password in the connection string is moved to PGPASSWORD so it
// never shows up in the process arguments.
func NewPostgresProducer(databaseURL string, extraArgs ...string) *Producer {
	conn, password := splitPassword(databaseURL)
	args := []string{"--format=tar", "--no-password"}
	args = append(args, extraArgs...)
	args = append(args, "--dbname="+conn)
	p := &Producer{Command: "pg_dump", Args: args}
	if password != "" {
		p.Env = []string{"PGPASSWORD=" + password}
	}
	return p
}

var keywordPassword = regexp.MustCompile(`(^|\s)password\s*=\s*('(?:[^'\\]|\\.)*'|\S*)`)

// splitPassword removes the password from a libpq connection string, in
// either URI or keyword/value form, and returns it separately.
func splitPassword(conn string) (string, string) {
	if strings.HasPrefix(conn, "postgres://") || strings.HasPrefix(conn, "postgresql://") {
		u, err := url.Parse(conn)
		if err != nil {
			return conn, ""
		}
		var password string
		if u.User != nil {
			if pw, ok := u.User.Password(); ok {
				password = pw
				name := u.User.Username()
				u.User = nil
				if name != "" {
					u.User = url.User(name)
				}
			}
		}
		if q := u.Query(); q.Has("password") {
			if password == "" {
				password = q.Get("password")
			}
			q.Del("password")
			u.RawQuery = q.Encode()
		}
		return u.String(), password
	}

	m := keywordPassword.FindStringSubmatch(conn)
	if m == nil {
		return conn, ""
	}
	password := m[2]
	if len(password) >= 2 && password[0] == '\'' && password[len(password)-1] == '\'' {
		password = strings.NewReplacer(`\'`, `'`, `\\`, `\`).Replace(password[1 : len(password)-1])
	}
	stripped := strings.TrimSpace(keywordPassword.ReplaceAllString(conn, "$1"))
	return strings.Join(strings.Fields(stripped), " "), password
}

// Produce writes the compressed dump to targetPath. The file is created
// exclusively; an existing file at that path is an error, never overwritten.
// On any failure the partial file is removed.
func (p *Producer) Produce(ctx context.Context, targetPath string) (artifact *Artifact, err error) {
	start := time.Now()

	f, err := os.OpenFile(targetPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, &DumpError{Cause: fmt.Errorf("failed to create artifact file: %w", err)}
	}
	defer func() {
		if err != nil {
			if rmErr := os.Remove(targetPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				log.Warn().Err(rmErr).Str("component", "dump").Msg("Failed to remove partial artifact")
			}
		}
	}()

	zw := gzip.NewWriter(f)
	stderr := &tailBuffer{limit: stderrLimit}

	cmd := exec.CommandContext(ctx, p.Command, p.Args...)
	cmd.Stdout = zw
	cmd.Stderr = stderr
	if len(p.Env) > 0 {
		cmd.Env = append(os.Environ(), p.Env...)
	}

	log.Debug().Str("component", "dump").Str("command", p.Command).Msg("Starting dump process")
	runErr := cmd.Run()

	closeErr := zw.Close()
	if err := f.Close(); closeErr == nil {
		closeErr = err
	}

	if runErr != nil {
		dumpErr := &DumpError{Cause: runErr, Stderr: stderr.String(), ExitCode: -1}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			dumpErr.ExitCode = exitErr.ExitCode()
		}
		return nil, dumpErr
	}
	if closeErr != nil {
		return nil, &DumpError{Cause: fmt.Errorf("failed to finalize artifact: %w", closeErr)}
	}

	// The exit status alone is not trusted: a pipeline can exit 0 after writing nothing.
	size, err := VerifyNonEmpty(targetPath)
	if err != nil {
		return nil, &DumpError{Cause: err, Stderr: stderr.String()}
	}

	artifact = &Artifact{
		Filename:  filepath.Base(targetPath),
		LocalPath: targetPath,
		SizeBytes: size,
		CreatedAt: time.Now(),
	}
	log.Info().
		Str("component", "dump").
		Str("file", artifact.Filename).
		Int64("size_bytes", size).
		Dur("duration", time.Since(start)).
		Msg("Dump completed")
	return artifact, nil
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if len(p) > t.limit {
		p = p[len(p)-t.limit:]
	}
	if over := t.buf.Len() + len(p) - t.limit; over > 0 {
		t.buf.Next(over)
	}
	t.buf.Write(p)
	return n, nil
}

func (t *tailBuffer) String() string { return t.buf.String() }
