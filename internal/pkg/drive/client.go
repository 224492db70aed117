// Package drive implements the storage gateway on a Google Drive folder,
// typically inside a shared drive, authenticated with a service account.
package drive

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/d4rkfella/db-backup/internal/pkg/storage"
)

// FolderMimeType is the Drive mime type of folders.
const FolderMimeType = "application/vnd.google-apps.folder"

type Config struct {
	// CredentialsFile is a service account JSON key on disk.
	CredentialsFile string
	// CredentialsJSON takes precedence over CredentialsFile.
	CredentialsJSON []byte
	// Subject is an optional user to impersonate (domain-wide delegation).
	Subject string
}

type Client struct {
	files filesAPI
}

var _ storage.Gateway = (*Client)(nil)

// NewClient builds an authenticated Drive client from service account credentials.
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("drive config cannot be nil")
	}

	data := cfg.CredentialsJSON
	if len(data) == 0 {
		if cfg.CredentialsFile == "" {
			return nil, errors.New("drive credentials must be provided as a file or inline JSON")
		}
		var err error
		if data, err = os.ReadFile(cfg.CredentialsFile); err != nil {
			return nil, fmt.Errorf("failed to read drive credentials: %w", err)
		}
	}

	jwtCfg, err := google.JWTConfigFromJSON(data, drive.DriveScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse drive credentials: %w", err)
	}
	if cfg.Subject != "" {
		jwtCfg.Subject = cfg.Subject
	}

	svc, err := drive.NewService(ctx, option.WithTokenSource(jwtCfg.TokenSource(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to initialize drive service: %w", err)
	}
	return NewClientWithService(svc), nil
}

// NewClientWithService wraps an already constructed Drive service.
func NewClientWithService(svc *drive.Service) *Client {
	return &Client{files: &filesService{files: svc.Files}}
}

func (c *Client) Name() string { return "drive" }

// isTransientDriveError reports rate limiting and server side failures.
func isTransientDriveError(err error) bool {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return gErr.Code == http.StatusTooManyRequests || gErr.Code >= http.StatusInternalServerError
	}
	return false
}
