package s3

import (
	"context"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/d4rkfella/db-backup/internal/pkg/storage"
)

func (c *Client) UploadObject(ctx context.Context, folderID, name, mimeType string, body io.Reader) (storage.Object, error) {
	key := objectKey(folderID, name)
	_, err := c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.config.Bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(mimeType),
	})
	if err != nil {
		return storage.Object{}, &storage.UploadError{Name: key, Err: err}
	}
	return storage.Object{ID: key, Name: key, CreatedTime: time.Now().UTC()}, nil
}
