package drive

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/api/drive/v3"

	"github.com/d4rkfella/db-backup/internal/pkg/storage"
	"github.com/d4rkfella/db-backup/internal/retry"
)

func (c *Client) VerifyFolderAccess(ctx context.Context, folderID string) error {
	var folder *drive.File
	err := retry.Do(ctx, retry.AccessCheck, "DriveGetFolder", func(ctx context.Context) error {
		var err error
		folder, err = c.files.Get(ctx, folderID)
		return err
	}, isTransientDriveError)
	if err != nil {
		return &storage.AccessError{Folder: folderID, Err: err}
	}
	if folder.Trashed {
		return &storage.AccessError{Folder: folderID, Err: fmt.Errorf("folder is in the trash")}
	}
	if folder.MimeType != FolderMimeType {
		return &storage.AccessError{Folder: folderID, Err: fmt.Errorf("object has mime type %q, not a folder", folder.MimeType)}
	}
	log.Debug().Str("component", "drive").Str("folder_id", folderID).Str("folder_name", folder.Name).Msg("Folder access verified")
	return nil
}

// ListObjects returns the first page of files matching the query. The next
// page token is not followed.
func (c *Client) ListObjects(ctx context.Context, query storage.ListQuery) (storage.Listing, error) {
	list, err := c.files.List(ctx, buildQuery(query), int64(query.Limit()))
	if err != nil {
		return storage.Listing{}, fmt.Errorf("failed to list files in folder %q: %w", query.FolderID, err)
	}

	objects := make([]storage.Object, 0, len(list.Files))
	for _, f := range list.Files {
		if f == nil {
			continue
		}
		created, err := time.Parse(time.RFC3339, f.CreatedTime)
		if err != nil {
			log.Warn().Str("component", "drive").Str("file_id", f.Id).Str("created_time", f.CreatedTime).Msg("Skipping file with unparsable creation time")
			continue
		}
		objects = append(objects, storage.Object{
			ID:          f.Id,
			Name:        f.Name,
			CreatedTime: created.UTC(),
			Size:        f.Size,
		})
	}

	return storage.Listing{Objects: objects, HasMore: list.NextPageToken != ""}, nil
}

func (c *Client) DeleteObject(ctx context.Context, id string) error {
	if err := c.files.Delete(ctx, id); err != nil {
		return &storage.DeleteError{ID: id, Err: err}
	}
	return nil
}

func (c *Client) UploadObject(ctx context.Context, folderID, name, mimeType string, body io.Reader) (storage.Object, error) {
	meta := &drive.File{
		Name:     name,
		MimeType: mimeType,
		Parents:  []string{folderID},
	}
	f, err := c.files.Create(ctx, meta, body, mimeType)
	if err != nil {
		return storage.Object{}, &storage.UploadError{Name: name, Err: err}
	}

	obj := storage.Object{ID: f.Id, Name: f.Name, Size: f.Size}
	if created, err := time.Parse(time.RFC3339, f.CreatedTime); err == nil {
		obj.CreatedTime = created.UTC()
	}
	return obj, nil
}

func buildQuery(q storage.ListQuery) string {
	clauses := []string{fmt.Sprintf("'%s' in parents", escapeQuery(q.FolderID))}
	if q.MimeType != "" {
		clauses = append(clauses, fmt.Sprintf("mimeType = '%s'", escapeQuery(q.MimeType)))
	}
	if !q.CreatedBefore.IsZero() {
		clauses = append(clauses, fmt.Sprintf("createdTime < '%s'", q.CreatedBefore.UTC().Format(time.RFC3339)))
	}
	clauses = append(clauses, "trashed = false")
	return strings.Join(clauses, " and ")
}

func escapeQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}
