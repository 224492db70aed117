// Package notify sends job outcome notifications through Pushover.
package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gregdel/pushover"
	"github.com/rs/zerolog/log"
)

type Operation string

const (
	OperationBackup Operation = "Backup"
	OperationPrune  Operation = "Prune"
)

// Status describes the outcome of one run.
type Status struct {
	Success   bool
	Operation Operation
	Duration  time.Duration
	SizeBytes int64
	File      string
	Err       error
	Details   map[string]string
}

type Config struct {
	APIKey  string
	UserKey string
}

// Enabled reports whether both keys are set.
func (c *Config) Enabled() bool {
	return c != nil && c.APIKey != "" && c.UserKey != ""
}

type pushoverAPI interface {
	SendMessage(message *pushover.Message, recipient *pushover.Recipient) (*pushover.Response, error)
}

type Client struct {
	app     pushoverAPI
	userKey string
	now     func() time.Time
}

// NewClient returns nil when the config is not enabled.
func NewClient(config *Config) *Client {
	if !config.Enabled() {
		return nil
	}
	return &Client{
		app:     pushover.New(config.APIKey),
		userKey: config.UserKey,
		now:     time.Now,
	}
}

func (c *Client) Notify(ctx context.Context, status Status) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("notification skipped: %w", err)
	}

	msg := &pushover.Message{
		Title:     title(status),
		Message:   body(status),
		Priority:  pushover.PriorityNormal,
		Timestamp: c.now().Unix(),
	}
	if !status.Success {
		msg.Priority = pushover.PriorityHigh
	}

	if _, err := c.app.SendMessage(msg, pushover.NewRecipient(c.userKey)); err != nil {
		return fmt.Errorf("failed to send pushover notification: %w", err)
	}
	log.Debug().Str("component", "notify").Bool("success", status.Success).Msg("Notification sent")
	return nil
}

func title(s Status) string {
	if s.Success {
		return fmt.Sprintf("✅ Database %s Successful", s.Operation)
	}
	return fmt.Sprintf("❌ Database %s Failed", s.Operation)
}

func body(s Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Operation: %s\n", s.Operation)
	if s.File != "" {
		fmt.Fprintf(&b, "File: %s\n", s.File)
	}
	fmt.Fprintf(&b, "Duration: %s", s.Duration.Round(time.Second))
	if s.Success {
		fmt.Fprintf(&b, "\nSize: %s", humanize.IBytes(uint64(max(s.SizeBytes, 0))))
	} else if s.Err != nil {
		fmt.Fprintf(&b, "\nError: %v", s.Err)
	}

	if len(s.Details) > 0 {
		keys := make([]string, 0, len(s.Details))
		for k := range s.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("\n\nDetails:")
		for _, k := range keys {
			fmt.Fprintf(&b, "\n%s: %s", k, s.Details[k])
		}
	}
	return b.String()
}
