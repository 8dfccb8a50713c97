package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockS3API is a mock implementation of S3API
type MockS3API struct {
	mock.Mock
}

func (m *MockS3API) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	if params.Body != nil {
		_, _ = io.Copy(io.Discard, params.Body)
	}
	return &s3.PutObjectOutput{}, args.Error(0)
}

func (m *MockS3API) UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return nil, errors.New("unexpected multipart upload")
}

func (m *MockS3API) CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return nil, errors.New("unexpected multipart upload")
}

func (m *MockS3API) CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return nil, errors.New("unexpected multipart upload")
}

func (m *MockS3API) AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return &s3.AbortMultipartUploadOutput{}, nil
}

func (m *MockS3API) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, params)
	if out, ok := args.Get(0).(*s3.GetObjectOutput); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockS3API) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := m.Called(ctx, params)
	return &s3.DeleteObjectOutput{}, args.Error(0)
}

func TestAWSClientUpload(t *testing.T) {
	api := new(MockS3API)
	api.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return aws.ToString(in.Bucket) == "docs" &&
			aws.ToString(in.Key) == "verification/u/national_id/x" &&
			aws.ToString(in.ContentType) == "image/jpeg"
	})).Return(nil).Once()

	client := NewS3Client(api)
	err := client.Upload(context.Background(), "docs", "verification/u/national_id/x", "image/jpeg", strings.NewReader("jpeg bytes"))
	require.NoError(t, err)
	api.AssertExpectations(t)
}

func TestAWSClientWrapsErrors(t *testing.T) {
	api := new(MockS3API)
	api.On("GetObject", mock.Anything, mock.Anything).Return(nil, errors.New("access denied"))
	api.On("DeleteObject", mock.Anything, mock.Anything).Return(errors.New("access denied"))

	client := NewS3Client(api)
	_, err := client.Download(context.Background(), "docs", "k")
	assert.ErrorContains(t, err, "s3://docs/k")
	assert.ErrorContains(t, client.Delete(context.Background(), "docs", "k"), "access denied")
}

func TestMemoryClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := NewMemoryS3Client()

	require.NoError(t, client.Upload(ctx, "docs", "a", "text/plain", strings.NewReader("hello")))
	assert.Equal(t, 1, client.Len())

	body, err := client.Download(ctx, "docs", "a")
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	_, err = client.Download(ctx, "other", "a")
	assert.Error(t, err)

	require.NoError(t, client.Delete(ctx, "docs", "a"))
	assert.Zero(t, client.Len())
}
