package s3

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/d4rkfella/db-backup/internal/pkg/storage"
)

// S3 listings carry no content type, so mime filtering falls back to key suffixes.
var mimeSuffixes = map[string][]string{
	storage.ArchiveMimeType: {".tar.gz", ".tgz", ".gz"},
	"application/x-tar":     {".tar"},
}

func matchesMime(key, mimeType string) bool {
	suffixes, ok := mimeSuffixes[mimeType]
	if !ok {
		return true
	}
	for _, s := range suffixes {
		if strings.HasSuffix(key, s) {
			return true
		}
	}
	return false
}

// ListObjects reads a single ListObjectsV2 page and filters it client-side.
// Continuation tokens are not followed. Keys below a nested "/" are rolled up
// into common prefixes and never returned.
func (c *Client) ListObjects(ctx context.Context, query storage.ListQuery) (storage.Listing, error) {
	out, err := c.s3Client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:    aws.String(c.config.Bucket),
		Prefix:    aws.String(folderPrefix(query.FolderID)),
		Delimiter: aws.String("/"),
		MaxKeys:   aws.Int32(int32(query.Limit())),
	})
	if err != nil {
		return storage.Listing{}, fmt.Errorf("failed to list objects in %s/%s: %w", c.config.Bucket, folderPrefix(query.FolderID), err)
	}

	var objects []storage.Object
	for _, obj := range out.Contents {
		if obj.Key == nil || obj.LastModified == nil {
			log.Warn().Str("component", "s3").Msg("Skipping object with nil key or last modified date")
			continue
		}
		if !matchesMime(*obj.Key, query.MimeType) {
			continue
		}
		if !query.CreatedBefore.IsZero() && !obj.LastModified.Before(query.CreatedBefore) {
			continue
		}
		objects = append(objects, storage.Object{
			ID:          *obj.Key,
			Name:        *obj.Key,
			CreatedTime: obj.LastModified.UTC(),
			Size:        aws.ToInt64(obj.Size),
		})
	}

	return storage.Listing{Objects: objects, HasMore: aws.ToBool(out.IsTruncated)}, nil
}
