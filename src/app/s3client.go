package app

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	log "github.com/sirupsen/logrus"
)

type ClientMinio interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (info minio.UploadInfo, err error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

type MinioS3Client struct {
	endpoint   string
	useSSL     bool
	bucketName string
	publicURL  string
	client     ClientMinio
}

const defaultContentType = "application/octet-stream"

// NewMinioS3Client creates a new MinioS3Client instance. Uploaded objects are
// addressed as <publicURL>/<bucket>/<key>; an empty publicURL falls back to the endpoint.
func NewMinioS3Client(endpoint, accessKeyID, secretAccessKey, bucketName, publicURL string, useSSL bool) (*MinioS3Client, error) {
	minioClient, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKeyID, secretAccessKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		log.WithError(err).WithField("endpoint", endpoint).Error("can not create minio client")
		return nil, fmt.Errorf("failed to create minio s3 client: %w", err)
	}
	return newMinioS3Client(minioClient, endpoint, bucketName, publicURL, useSSL), nil
}

func newMinioS3Client(client ClientMinio, endpoint, bucketName, publicURL string, useSSL bool) *MinioS3Client {
	if publicURL == "" {
		scheme := "http"
		if useSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s", scheme, endpoint)
	}
	return &MinioS3Client{
		endpoint:   endpoint,
		useSSL:     useSSL,
		bucketName: bucketName,
		publicURL:  strings.TrimRight(publicURL, "/"),
		client:     client,
	}
}

// UploadImage stores object under key and returns the URL it is served from.
func (s3 *MinioS3Client) UploadImage(ctx context.Context, key string, object io.Reader, size int64, contentType string) (string, error) {
	if contentType == "" {
		contentType = defaultContentType
	}
	_, err := s3.client.PutObject(ctx,
		s3.bucketName,
		key,
		object,
		size,
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return s3.objectURL(key), nil
}

// DeleteImage removes the object behind url. URLs that were not issued by this
// client are ignored.
func (s3 *MinioS3Client) DeleteImage(ctx context.Context, url string) error {
	key, ok := s3.keyFromURL(url)
	if !ok {
		return nil
	}
	err := s3.client.RemoveObject(ctx, s3.bucketName, key, minio.RemoveObjectOptions{})
	log.WithFields(log.Fields{"bucket": s3.bucketName, "key": key}).Debug("remove object")
	if err != nil {
		return fmt.Errorf("remove object %s: %w", key, err)
	}
	return nil
}

func (s3 *MinioS3Client) objectURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", s3.publicURL, s3.bucketName, key)
}

func (s3 *MinioS3Client) keyFromURL(url string) (string, bool) {
	prefix := fmt.Sprintf("%s/%s/", s3.publicURL, s3.bucketName)
	if !strings.HasPrefix(url, prefix) || len(url) == len(prefix) {
		return "", false
	}
	return strings.TrimPrefix(url, prefix), true
}
