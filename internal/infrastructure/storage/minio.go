package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	apperrors "github.com/johnquangdev/podcast-assistant/errors"
	"github.com/johnquangdev/podcast-assistant/pkg/config"
)

// MinIOClient stores episode artifacts as publicly readable objects
type MinIOClient struct {
	client    *minio.Client
	bucket    string
	publicURL string // Public base URL when MinIO sits behind a reverse proxy
}

// NewMinIOClient creates a new MinIO client
func NewMinIOClient(cfg *config.StorageConfig) (*MinIOClient, error) {
	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	client := &MinIOClient{
		client:    minioClient,
		bucket:    cfg.BucketName,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
	}

	ctx := context.Background()
	if err := client.ensureBucketWithPolicy(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize bucket: %w", err)
	}

	return client, nil
}

// ensureBucketWithPolicy ensures bucket exists and has public read policy
func (m *MinIOClient) ensureBucketWithPolicy(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	// Transcript URLs are handed to readers and the chat endpoint as-is
	policy := fmt.Sprintf(`{
		"Version": "2012-10-17",
		"Statement": [
			{
				"Effect": "Allow",
				"Principal": {"AWS": ["*"]},
				"Action": ["s3:GetObject"],
				"Resource": ["arn:aws:s3:::%s/*"]
			}
		]
	}`, m.bucket)

	err = m.client.SetBucketPolicy(ctx, m.bucket, policy)
	if err != nil {
		return fmt.Errorf("failed to set bucket policy: %w", err)
	}

	return nil
}

// PutText uploads content under key, replacing any previous object, and returns its URL
func (m *MinIOClient) PutText(ctx context.Context, key, content, contentType string) (string, error) {
	if contentType == "" {
		contentType = "text/plain; charset=utf-8"
	}
	reader := bytes.NewReader([]byte(content))
	_, err := m.client.PutObject(ctx, m.bucket, key, reader, int64(len(content)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", apperrors.ErrStorageFailed("upload", fmt.Errorf("failed to upload %s: %w", key, err))
	}
	return m.ObjectURL(key), nil
}

// ReadText downloads an object previously returned by PutText
func (m *MinIOClient) ReadText(ctx context.Context, url string) (string, error) {
	key, err := m.objectKey(url)
	if err != nil {
		return "", err
	}

	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return "", apperrors.ErrStorageFailed("download", fmt.Errorf("failed to open %s: %w", key, err))
	}
	defer obj.Close()

	body, err := io.ReadAll(obj)
	if err != nil {
		return "", apperrors.ErrStorageFailed("download", fmt.Errorf("failed to read %s: %w", key, err))
	}
	return string(body), nil
}

// ObjectURL is the stable public address of key
func (m *MinIOClient) ObjectURL(key string) string {
	return m.baseURL() + "/" + key
}

func (m *MinIOClient) baseURL() string {
	if m.publicURL != "" {
		return m.publicURL + "/" + m.bucket
	}
	return strings.TrimRight(m.client.EndpointURL().String(), "/") + "/" + m.bucket
}

func (m *MinIOClient) objectKey(url string) (string, error) {
	prefixes := []string{
		m.baseURL() + "/",
		strings.TrimRight(m.client.EndpointURL().String(), "/") + "/" + m.bucket + "/",
	}
	for _, p := range prefixes {
		if strings.HasPrefix(url, p) {
			return strings.TrimPrefix(url, p), nil
		}
	}
	return "", fmt.Errorf("url %q is not in bucket %s", url, m.bucket)
}

// GetBucketInfo reports bucket reachability for health checks
func (m *MinIOClient) GetBucketInfo(ctx context.Context) (map[string]interface{}, error) {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}

	return map[string]interface{}{
		"bucket":        m.bucket,
		"bucket_exists": exists,
		"endpoint":      m.client.EndpointURL().String(),
	}, nil
}
