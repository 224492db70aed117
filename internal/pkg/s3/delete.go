package s3

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/d4rkfella/db-backup/internal/pkg/storage"
)

func (c *Client) DeleteObject(ctx context.Context, id string) error {
	_, err := c.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.config.Bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		return &storage.DeleteError{ID: id, Err: err}
	}
	return nil
}
