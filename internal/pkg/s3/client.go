// Package s3 implements the storage gateway on S3-compatible object storage.
// A "folder" is a key prefix inside the configured bucket.
package s3

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithy "github.com/aws/smithy-go"

	"github.com/d4rkfella/db-backup/internal/pkg/storage"
)

type Config struct {
	AccessKey       string
	SecretAccessKey string
	SessionToken    string
	Region          string
	Bucket          string
	Endpoint        string
}

type Client struct {
	s3Client s3API
	config   *Config
}

var _ storage.Gateway = (*Client)(nil)

func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	if cfg == nil || cfg.Bucket == "" {
		return nil, errors.New("s3 bucket must be configured")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretAccessKey,
			cfg.SessionToken,
		)))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return &Client{
		s3Client: s3.NewFromConfig(awsCfg, s3Opts...),
		config:   cfg,
	}, nil
}

func (c *Client) Name() string { return "s3" }

func folderPrefix(folderID string) string {
	folderID = strings.Trim(folderID, "/")
	if folderID == "" {
		return ""
	}
	return folderID + "/"
}

func objectKey(folderID, name string) string {
	if p := folderPrefix(folderID); p != "" {
		return path.Join(p, name)
	}
	return name
}

// isTransientS3Error reports throttling, 5xx responses and network timeouts.
func isTransientS3Error(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		code := respErr.HTTPStatusCode()
		return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "SlowDown", "RequestTimeout", "InternalError", "ServiceUnavailable", "Throttling":
			return true
		}
		return false
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
