package storage

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/notification"
)

// MinIOClient implements the Client interface using minio-go
type MinIOClient struct {
	client *minio.Client
}

// NewMinIOClient creates a new MinIO client
func NewMinIOClient(cfg Config) (*MinIOClient, error) {
	// Clean and validate endpoint
	endpoint, err := cleanEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, err
	}

	return &MinIOClient{client: client}, nil
}

// cleanEndpoint removes protocol and path from endpoint URL to get host:port format
func cleanEndpoint(endpoint string) (string, error) {
	if endpoint == "" {
		return "", fmt.Errorf("endpoint cannot be empty")
	}

	// If endpoint doesn't have protocol, add http:// for parsing
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		// Check if it's already in host:port format
		if strings.Contains(endpoint, "/") {
			return "", fmt.Errorf("endpoint contains path but no protocol")
		}
		return endpoint, nil
	}

	parsedURL, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("failed to parse endpoint URL: %w", err)
	}

	if parsedURL.Path != "" && parsedURL.Path != "/" {
		return "", fmt.Errorf("endpoint URL cannot have paths, only host:port is allowed (got path: %s)", parsedURL.Path)
	}

	return parsedURL.Host, nil
}

// Download fetches an object into a local file
func (c *MinIOClient) Download(ctx context.Context, bucket, key, localPath string) error {
	err := c.client.FGetObject(ctx, bucket, key, localPath, minio.GetObjectOptions{})
	return mapError(err)
}

// Upload stores a local file as an object
func (c *MinIOClient) Upload(ctx context.Context, bucket, key, localPath string, opts PutOptions) (ObjectInfo, error) {
	putOpts := minio.PutObjectOptions{
		ContentType:  opts.ContentType,
		CacheControl: opts.CacheControl,
		UserMetadata: opts.Metadata,
	}

	info, err := c.client.FPutObject(ctx, bucket, key, localPath, putOpts)
	if err != nil {
		return ObjectInfo{}, mapError(err)
	}

	return ObjectInfo{
		Bucket:       info.Bucket,
		Key:          info.Key,
		Size:         info.Size,
		ETag:         info.ETag,
		LastModified: info.LastModified,
		ContentType:  opts.ContentType,
		CacheControl: opts.CacheControl,
		Metadata:     opts.Metadata,
	}, nil
}

// Delete removes an object
func (c *MinIOClient) Delete(ctx context.Context, bucket, key string) error {
	err := c.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{})
	return mapError(err)
}

// Stat gets object metadata
func (c *MinIOClient) Stat(ctx context.Context, bucket, key string) (ObjectInfo, error) {
	info, err := c.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return ObjectInfo{}, mapError(err)
	}

	return ObjectInfo{
		Bucket:       bucket,
		Key:          info.Key,
		Size:         info.Size,
		ETag:         info.ETag,
		LastModified: info.LastModified,
		ContentType:  info.ContentType,
		CacheControl: info.Metadata.Get("Cache-Control"),
		Metadata:     info.UserMetadata,
	}, nil
}

// Listen subscribes to object-created notifications on a bucket
func (c *MinIOClient) Listen(ctx context.Context, bucket, prefix, suffix string) (<-chan Notification, <-chan error) {
	notifyCh := make(chan Notification)
	errCh := make(chan error, 1)

	go func() {
		defer close(notifyCh)
		defer close(errCh)

		events := []string{string(notification.ObjectCreatedAll)}
		for info := range c.client.ListenBucketNotification(ctx, bucket, prefix, suffix, events) {
			if info.Err != nil {
				errCh <- info.Err
				return
			}

			for _, rec := range info.Records {
				// Notification keys are URL encoded
				key, err := url.QueryUnescape(rec.S3.Object.Key)
				if err != nil {
					key = rec.S3.Object.Key
				}

				select {
				case notifyCh <- Notification{
					EventName: rec.EventName,
					Object: ObjectInfo{
						Bucket:      rec.S3.Bucket.Name,
						Key:         key,
						Size:        rec.S3.Object.Size,
						ETag:        rec.S3.Object.ETag,
						ContentType: rec.S3.Object.ContentType,
						Metadata:    rec.S3.Object.UserMetadata,
					},
				}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return notifyCh, errCh
}

// mapError translates missing-object responses into ErrNotFound
func mapError(err error) error {
	if err == nil {
		return nil
	}

	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, err.Error())
	}

	return err
}
