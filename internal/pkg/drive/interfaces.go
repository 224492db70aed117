package drive

import (
	"context"
	"io"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
)

// filesAPI is the subset of the Drive files resource used by the gateway.
type filesAPI interface {
	Get(ctx context.Context, id string) (*drive.File, error)
	List(ctx context.Context, query string, pageSize int64) (*drive.FileList, error)
	Delete(ctx context.Context, id string) error
	Create(ctx context.Context, meta *drive.File, media io.Reader, mimeType string) (*drive.File, error)
}

type filesService struct {
	files *drive.FilesService
}

func (s *filesService) Get(ctx context.Context, id string) (*drive.File, error) {
	return s.files.Get(id).
		SupportsAllDrives(true).
		Fields("id", "name", "mimeType", "trashed").
		Context(ctx).
		Do()
}

func (s *filesService) List(ctx context.Context, query string, pageSize int64) (*drive.FileList, error) {
	return s.files.List().
		Q(query).
		PageSize(pageSize).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Fields("nextPageToken", "files(id, name, createdTime, size)").
		Context(ctx).
		Do()
}

func (s *filesService) Delete(ctx context.Context, id string) error {
	return s.files.Delete(id).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
}

func (s *filesService) Create(ctx context.Context, meta *drive.File, media io.Reader, mimeType string) (*drive.File, error) {
	return s.files.Create(meta).
		Media(media, googleapi.ContentType(mimeType)).
		SupportsAllDrives(true).
		Fields("id", "name", "createdTime", "size").
		Context(ctx).
		Do()
}

var _ filesAPI = (*filesService)(nil)
