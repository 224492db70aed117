package dump

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shellProducer(script string) *Producer {
	return &Producer{Command: "sh", Args: []string{"-c", script}}
}

func readArtifact(t *testing.T, path string) string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(zr)
	require.NoError(t, err)
	return string(data)
}

func TestArtifactName(t *testing.T) {
	ts := time.Date(2026, 10, 19, 8, 30, 0, 123_000_000, time.UTC)

	name := ArtifactName("backup-", ts)

	assert.Equal(t, "backup-2026-10-19T08-30-00-123Z.tar.gz", name)
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, "backup-"), Extension)
	assert.NotContains(t, stamp, ":")
	assert.NotContains(t, stamp, ".")
}

func TestArtifactName_MillisecondResolution(t *testing.T) {
	ts := time.Date(2026, 10, 19, 8, 30, 0, 0, time.FixedZone("CEST", 2*3600))

	a := ArtifactName("db-", ts)
	b := ArtifactName("db-", ts.Add(time.Millisecond))

	assert.NotEqual(t, a, b)
	assert.Equal(t, "db-2026-10-19T06-30-00-000Z.tar.gz", a, "timestamps are rendered in UTC")
}

func TestProduce_Success(t *testing.T) {
	target := filepath.Join(t.TempDir(), "backup-1.tar.gz")

	artifact, err := shellProducer("printf 'hello dump'").Produce(context.Background(), target)

	require.NoError(t, err)
	assert.Equal(t, "backup-1.tar.gz", artifact.Filename)
	assert.Equal(t, target, artifact.LocalPath)
	assert.Positive(t, artifact.SizeBytes)
	assert.False(t, artifact.CreatedAt.IsZero())
	assert.Equal(t, "hello dump", readArtifact(t, target))
}

func TestProduce_NonZeroExit(t *testing.T) {
	target := filepath.Join(t.TempDir(), "backup-2.tar.gz")

	artifact, err := shellProducer("echo 'password authentication failed' >&2; exit 3").Produce(context.Background(), target)

	assert.Nil(t, artifact)
	var dumpErr *DumpError
	require.ErrorAs(t, err, &dumpErr)
	assert.Equal(t, 3, dumpErr.ExitCode)
	assert.Contains(t, dumpErr.Stderr, "password authentication failed")
	assert.NoFileExists(t, target, "partial artifacts are removed")
}

func TestProduce_EmptyOutputWithZeroExit(t *testing.T) {
	target := filepath.Join(t.TempDir(), "backup-3.tar.gz")

	artifact, err := shellProducer("true").Produce(context.Background(), target)

	assert.Nil(t, artifact)
	var dumpErr *DumpError
	require.ErrorAs(t, err, &dumpErr)
	assert.ErrorIs(t, err, ErrEmptyArtifact)
	assert.NoFileExists(t, target)
}

func TestProduce_MissingCommand(t *testing.T) {
	target := filepath.Join(t.TempDir(), "backup-4.tar.gz")

	_, err := (&Producer{Command: "definitely-not-a-real-dump-binary"}).Produce(context.Background(), target)

	var dumpErr *DumpError
	require.ErrorAs(t, err, &dumpErr)
	assert.Equal(t, -1, dumpErr.ExitCode)
	assert.NoFileExists(t, target)
}

func TestProduce_RefusesToOverwrite(t *testing.T) {
	target := filepath.Join(t.TempDir(), "backup-5.tar.gz")
	require.NoError(t, os.WriteFile(target, []byte("previous run"), 0o600))

	_, err := shellProducer("printf data").Produce(context.Background(), target)

	var dumpErr *DumpError
	require.ErrorAs(t, err, &dumpErr)
	assert.ErrorIs(t, err, os.ErrExist)
	content, readErr := os.ReadFile(target)
	require.NoError(t, readErr)
	assert.Equal(t, "previous run", string(content), "existing file must be left untouched")
}

func TestProduce_Env(t *testing.T) {
	target := filepath.Join(t.TempDir(), "backup-6.tar.gz")
	p := shellProducer(`printf "%s" "$DUMP_MARKER"`)
	p.Env = []string{"DUMP_MARKER=from-env"}

	_, err := p.Produce(context.Background(), target)

	require.NoError(t, err)
	assert.Equal(t, "from-env", readArtifact(t, target))
}

func TestVerifyNonEmpty(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	_, err := VerifyNonEmpty(empty)
	assert.ErrorIs(t, err, ErrEmptyArtifact)

	notGzip := filepath.Join(dir, "plain")
	require.NoError(t, os.WriteFile(notGzip, []byte("not gzip"), 0o600))
	_, err = VerifyNonEmpty(notGzip)
	assert.ErrorContains(t, err, "not valid gzip")

	_, err = VerifyNonEmpty(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewPostgresProducer(t *testing.T) {
	p := NewPostgresProducer("postgres://app@db/prod", "--schema=public")

	assert.Equal(t, "pg_dump", p.Command)
	assert.Equal(t, []string{"--format=tar", "--no-password", "--schema=public", "--dbname=postgres://app@db/prod"}, p.Args)
}

func TestNewPostgresProducer_PasswordNotInArgs(t *testing.T) {
	p := NewPostgresProducer("postgres://app:s3cr%40t@db:5432/prod?sslmode=require")

	assert.Equal(t, "--dbname=postgres://app@db:5432/prod?sslmode=require", p.Args[len(p.Args)-1])
	assert.Equal(t, []string{"PGPASSWORD=s3cr@t"}, p.Env)
	for _, arg := range p.Args {
		assert.NotContains(t, arg, "s3cr")
	}
}

func TestSplitPassword(t *testing.T) {
	tests := []struct {
		name     string
		conn     string
		wantConn string
		wantPass string
	}{
		{"uri without password", "postgres://app@db/prod", "postgres://app@db/prod", ""},
		{"uri userinfo", "postgresql://app:pw@db/prod", "postgresql://app@db/prod", "pw"},
		{"uri query", "postgres://db/prod?password=pw&sslmode=disable", "postgres://db/prod?sslmode=disable", "pw"},
		{"keyword", "host=db dbname=prod password=pw user=app", "host=db dbname=prod user=app", "pw"},
		{"keyword quoted", `host=db password='a b\'c' user=app`, "host=db user=app", "a b'c"},
		{"keyword without password", "host=db dbname=prod", "host=db dbname=prod", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, pass := splitPassword(tt.conn)
			assert.Equal(t, tt.wantConn, conn)
			assert.Equal(t, tt.wantPass, pass)
		})
	}
}

func TestTailBuffer(t *testing.T) {
	tb := &tailBuffer{limit: 5}
	n, err := tb.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	_, _ = tb.Write([]byte("defg"))
	assert.Equal(t, "cdefg", tb.String())
	_, _ = tb.Write([]byte("0123456789"))
	assert.Equal(t, "56789", tb.String())
}

func TestDumpErrorMessage(t *testing.T) {
	err := &DumpError{Cause: ErrEmptyArtifact, Stderr: "warning\n"}
	assert.Equal(t, "dump failed: dump produced an empty artifact: warning", err.Error())
}
