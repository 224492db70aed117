package s3

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithy "github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/d4rkfella/db-backup/internal/pkg/storage"
)

type mockS3API struct {
	mock.Mock
}

var _ s3API = (*mockS3API)(nil)

func (m *mockS3API) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	output, _ := args.Get(0).(*s3.PutObjectOutput)
	return output, args.Error(1)
}

func (m *mockS3API) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := m.Called(ctx, params)
	output, _ := args.Get(0).(*s3.DeleteObjectOutput)
	return output, args.Error(1)
}

func (m *mockS3API) HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	args := m.Called(ctx, params)
	output, _ := args.Get(0).(*s3.HeadBucketOutput)
	return output, args.Error(1)
}

func (m *mockS3API) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	args := m.Called(ctx, params)
	output, _ := args.Get(0).(*s3.ListObjectsV2Output)
	return output, args.Error(1)
}

func newTestClient() (*Client, *mockS3API) {
	mockAPI := new(mockS3API)
	return &Client{s3Client: mockAPI, config: &Config{Bucket: "test-bucket"}}, mockAPI
}

func TestVerifyFolderAccess_Success(t *testing.T) {
	client, mockAPI := newTestClient()
	mockAPI.On("HeadBucket", mock.Anything, mock.MatchedBy(func(input *s3.HeadBucketInput) bool {
		return *input.Bucket == "test-bucket"
	})).Return(&s3.HeadBucketOutput{}, nil).Once()

	require.NoError(t, client.VerifyFolderAccess(context.Background(), "backups"))
	mockAPI.AssertExpectations(t)
}

func TestVerifyFolderAccess_Failure(t *testing.T) {
	client, mockAPI := newTestClient()
	cause := errors.New("forbidden")
	mockAPI.On("HeadBucket", mock.Anything, mock.Anything).Return(nil, cause).Once()

	err := client.VerifyFolderAccess(context.Background(), "backups")

	var accessErr *storage.AccessError
	require.ErrorAs(t, err, &accessErr)
	assert.Equal(t, "test-bucket/backups/", accessErr.Folder)
	assert.ErrorIs(t, err, cause)
	mockAPI.AssertExpectations(t)
}

func TestListObjects_FiltersSinglePage(t *testing.T) {
	client, mockAPI := newTestClient()
	now := time.Now()
	cutoff := now.Add(-7 * 24 * time.Hour)

	mockAPI.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(input *s3.ListObjectsV2Input) bool {
		return *input.Bucket == "test-bucket" &&
			*input.Prefix == "backups/" &&
			aws.ToString(input.Delimiter) == "/" &&
			*input.MaxKeys == 100 &&
			input.ContinuationToken == nil
	})).Return(&s3.ListObjectsV2Output{
		Contents: []types.Object{
			{Key: aws.String("backups/old.tar.gz"), LastModified: aws.Time(now.Add(-10 * 24 * time.Hour)), Size: aws.Int64(42)},
			{Key: aws.String("backups/new.tar.gz"), LastModified: aws.Time(now.Add(-3 * 24 * time.Hour))},
			{Key: aws.String("backups/notes.txt"), LastModified: aws.Time(now.Add(-30 * 24 * time.Hour))},
			{Key: nil, LastModified: aws.Time(now.Add(-30 * 24 * time.Hour))},
			{Key: aws.String("backups/exact.tar.gz"), LastModified: aws.Time(cutoff)},
		},
		IsTruncated:           aws.Bool(true),
		NextContinuationToken: aws.String("token1"),
	}, nil).Once()

	listing, err := client.ListObjects(context.Background(), storage.ListQuery{
		FolderID:      "backups",
		MimeType:      storage.ArchiveMimeType,
		CreatedBefore: cutoff,
	})

	require.NoError(t, err)
	assert.True(t, listing.HasMore, "a truncated remote page is reported even when filtering drops records")
	objects := listing.Objects
	require.Len(t, objects, 1)
	assert.Equal(t, "backups/old.tar.gz", objects[0].ID)
	assert.Equal(t, int64(42), objects[0].Size)
	mockAPI.AssertExpectations(t)
}

func TestListObjects_Error(t *testing.T) {
	client, mockAPI := newTestClient()
	mockAPI.On("ListObjectsV2", mock.Anything, mock.Anything).Return(nil, errors.New("list failed")).Once()

	listing, err := client.ListObjects(context.Background(), storage.ListQuery{FolderID: "backups", PageSize: 10})

	assert.ErrorContains(t, err, "list failed")
	assert.Empty(t, listing.Objects)
}

func TestListObjects_SkipsNestedPrefixes(t *testing.T) {
	client, mockAPI := newTestClient()
	old := time.Now().Add(-30 * 24 * time.Hour)

	mockAPI.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(input *s3.ListObjectsV2Input) bool {
		return aws.ToString(input.Delimiter) == "/"
	})).Return(&s3.ListObjectsV2Output{
		Contents: []types.Object{
			{Key: aws.String("backups/top.tar.gz"), LastModified: aws.Time(old)},
		},
		CommonPrefixes: []types.CommonPrefix{{Prefix: aws.String("backups/archive/")}},
	}, nil).Once()

	listing, err := client.ListObjects(context.Background(), storage.ListQuery{FolderID: "backups", MimeType: storage.ArchiveMimeType})

	require.NoError(t, err)
	require.Len(t, listing.Objects, 1)
	assert.Equal(t, "backups/top.tar.gz", listing.Objects[0].ID)
	assert.False(t, listing.HasMore)
	mockAPI.AssertExpectations(t)
}

func TestDeleteObject(t *testing.T) {
	client, mockAPI := newTestClient()
	mockAPI.On("DeleteObject", mock.Anything, mock.MatchedBy(func(input *s3.DeleteObjectInput) bool {
		return *input.Key == "backups/a.tar.gz"
	})).Return(&s3.DeleteObjectOutput{}, nil).Once()
	mockAPI.On("DeleteObject", mock.Anything, mock.MatchedBy(func(input *s3.DeleteObjectInput) bool {
		return *input.Key == "backups/b.tar.gz"
	})).Return(nil, errors.New("denied")).Once()

	require.NoError(t, client.DeleteObject(context.Background(), "backups/a.tar.gz"))

	err := client.DeleteObject(context.Background(), "backups/b.tar.gz")
	var deleteErr *storage.DeleteError
	require.ErrorAs(t, err, &deleteErr)
	assert.Equal(t, "backups/b.tar.gz", deleteErr.ID)
	mockAPI.AssertExpectations(t)
}

func TestUploadObject(t *testing.T) {
	client, mockAPI := newTestClient()
	mockAPI.On("PutObject", mock.Anything, mock.MatchedBy(func(input *s3.PutObjectInput) bool {
		return *input.Bucket == "test-bucket" &&
			*input.Key == "backups/backup-1.tar.gz" &&
			*input.ContentType == storage.ArchiveMimeType
	})).Return(&s3.PutObjectOutput{}, nil).Once()

	obj, err := client.UploadObject(context.Background(), "/backups/", "backup-1.tar.gz", storage.ArchiveMimeType, strings.NewReader("data"))

	require.NoError(t, err)
	assert.Equal(t, "backups/backup-1.tar.gz", obj.ID)
	mockAPI.AssertExpectations(t)
}

func TestUploadObject_Failure(t *testing.T) {
	client, mockAPI := newTestClient()
	mockAPI.On("PutObject", mock.Anything, mock.AnythingOfType("*s3.PutObjectInput")).Return(nil, errors.New("s3 put failed")).Once()

	_, err := client.UploadObject(context.Background(), "", "backup-1.tar.gz", storage.ArchiveMimeType, strings.NewReader("data"))

	var uploadErr *storage.UploadError
	require.ErrorAs(t, err, &uploadErr)
	assert.Equal(t, "backup-1.tar.gz", uploadErr.Name)
	mockAPI.AssertExpectations(t)
}

func TestIsTransientS3Error(t *testing.T) {
	assert.False(t, isTransientS3Error(nil))
	assert.False(t, isTransientS3Error(context.Canceled))
	assert.False(t, isTransientS3Error(errors.New("plain")))
	assert.True(t, isTransientS3Error(&smithy.GenericAPIError{Code: "SlowDown"}))
	assert.False(t, isTransientS3Error(&smithy.GenericAPIError{Code: "AccessDenied"}))
}

func TestMatchesMime(t *testing.T) {
	assert.True(t, matchesMime("a/backup.tar.gz", storage.ArchiveMimeType))
	assert.True(t, matchesMime("a/backup.tgz", storage.ArchiveMimeType))
	assert.False(t, matchesMime("a/backup.sql", storage.ArchiveMimeType))
	assert.True(t, matchesMime("anything", "application/unknown"))
}

func TestNewClient_RequiresBucket(t *testing.T) {
	_, err := NewClient(context.Background(), &Config{Region: "us-east-1"})
	assert.Error(t, err)

	client, err := NewClient(context.Background(), &Config{
		Region:          "us-east-1",
		Bucket:          "test-bucket",
		AccessKey:       "AKIAEXAMPLE",
		SecretAccessKey: "secret",
		Endpoint:        "http://minio.local:9000",
	})
	require.NoError(t, err)
	assert.Equal(t, "s3", client.Name())
}
