// Package storage defines the folder-scoped object store contract used by the
// backup job. Implementations live in sibling packages (drive, s3).
package storage

import (
	"context"
	"io"
	"time"
)

const (
	// ArchiveMimeType marks gzip-compressed backup artifacts.
	ArchiveMimeType = "application/gzip"
	// DefaultPageSize is the maximum number of records a single listing returns.
	DefaultPageSize = 100
)

// Object is a previously uploaded artifact as seen by the remote store.
type Object struct {
	ID          string
	Name        string
	CreatedTime time.Time
	Size        int64
}

// ListQuery selects objects inside a folder.
type ListQuery struct {
	FolderID      string
	MimeType      string
	CreatedBefore time.Time
	// PageSize caps the result. Only the first page is ever returned.
	PageSize int
}

// Limit returns the effective page size.
func (q ListQuery) Limit() int {
	if q.PageSize <= 0 {
		return DefaultPageSize
	}
	return q.PageSize
}

// Listing is one page of a folder listing. HasMore reports that the remote
// store holds further records past this page, before any client-side filtering.
type Listing struct {
	Objects []Object
	HasMore bool
}

// Gateway is the capability set the backup job needs from a remote store.
type Gateway interface {
	// Name identifies the backend in logs ("drive", "s3").
	Name() string
	VerifyFolderAccess(ctx context.Context, folderID string) error
	ListObjects(ctx context.Context, query ListQuery) (Listing, error)
	DeleteObject(ctx context.Context, id string) error
	UploadObject(ctx context.Context, folderID, name, mimeType string, body io.Reader) (Object, error)
}
