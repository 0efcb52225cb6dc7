package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockMinioClient struct {
	mock.Mock
}

func (m *MockMinioClient) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	args := m.Called(ctx, bucketName, objectName, reader, objectSize, opts)
	return args.Get(0).(minio.UploadInfo), args.Error(1)
}

func (m *MockMinioClient) RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
	args := m.Called(ctx, bucketName, objectName, opts)
	return args.Error(0)
}

func TestMinioS3Client(t *testing.T) {
	ctx := context.Background()

	t.Run("UploadImage", func(t *testing.T) {
		client := new(MockMinioClient)
		s3 := newMinioS3Client(client, "s3.local:9000", "catalog", "https://cdn.example.com/", true)
		body := []byte("png bytes")
		reader := bytes.NewReader(body)

		client.On("PutObject", ctx, "catalog", "items/1/a.png", reader, int64(len(body)),
			minio.PutObjectOptions{ContentType: "image/png"}).
			Return(minio.UploadInfo{Key: "items/1/a.png"}, nil)

		url, err := s3.UploadImage(ctx, "items/1/a.png", reader, int64(len(body)), "image/png")
		assert.NoError(t, err)
		assert.Equal(t, "https://cdn.example.com/catalog/items/1/a.png", url)
		client.AssertExpectations(t)
	})

	t.Run("UploadImage default content type", func(t *testing.T) {
		client := new(MockMinioClient)
		s3 := newMinioS3Client(client, "s3.local:9000", "catalog", "", false)

		client.On("PutObject", ctx, "catalog", "k", mock.Anything, int64(1),
			minio.PutObjectOptions{ContentType: defaultContentType}).
			Return(minio.UploadInfo{}, nil)

		url, err := s3.UploadImage(ctx, "k", bytes.NewReader([]byte{1}), 1, "")
		assert.NoError(t, err)
		assert.Equal(t, "http://s3.local:9000/catalog/k", url)
	})

	t.Run("UploadImage failure", func(t *testing.T) {
		client := new(MockMinioClient)
		s3 := newMinioS3Client(client, "s3.local:9000", "catalog", "", false)
		client.On("PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(minio.UploadInfo{}, errors.New("access denied"))

		_, err := s3.UploadImage(ctx, "k", bytes.NewReader(nil), 0, "image/png")
		assert.ErrorContains(t, err, "access denied")
	})

	t.Run("DeleteImage", func(t *testing.T) {
		client := new(MockMinioClient)
		s3 := newMinioS3Client(client, "s3.local:9000", "catalog", "", false)
		client.On("RemoveObject", ctx, "catalog", "items/1/a.png", minio.RemoveObjectOptions{}).Return(nil)

		assert.NoError(t, s3.DeleteImage(ctx, "http://s3.local:9000/catalog/items/1/a.png"))
		client.AssertExpectations(t)
	})

	t.Run("DeleteImage ignores foreign urls", func(t *testing.T) {
		client := new(MockMinioClient)
		s3 := newMinioS3Client(client, "s3.local:9000", "catalog", "", false)

		assert.NoError(t, s3.DeleteImage(ctx, "https://res.cloudinary.com/x.png"))
		assert.NoError(t, s3.DeleteImage(ctx, ""))
		client.AssertNotCalled(t, "RemoveObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}
