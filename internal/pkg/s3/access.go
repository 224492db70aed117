package s3

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/d4rkfella/db-backup/internal/pkg/storage"
	"github.com/d4rkfella/db-backup/internal/retry"
)

// VerifyFolderAccess checks that the bucket is reachable with the configured
// credentials. Prefixes need not exist ahead of time.
func (c *Client) VerifyFolderAccess(ctx context.Context, folderID string) error {
	err := retry.Do(ctx, retry.AccessCheck, "S3HeadBucket", func(ctx context.Context) error {
		_, err := c.s3Client.HeadBucket(ctx, &s3.HeadBucketInput{
			Bucket: aws.String(c.config.Bucket),
		})
		return err
	}, isTransientS3Error)
	if err != nil {
		return &storage.AccessError{Folder: c.config.Bucket + "/" + folderPrefix(folderID), Err: err}
	}
	log.Debug().Str("component", "s3").Str("bucket", c.config.Bucket).Str("prefix", folderPrefix(folderID)).Msg("Bucket access verified")
	return nil
}
