package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when the requested object does not exist
var ErrNotFound = errors.New("object not found")

// Client defines the object store operations used by the upload handler
type Client interface {
	// Download writes the object to localPath, replacing any existing file
	Download(ctx context.Context, bucket, key, localPath string) error
	// Upload stores the file at localPath under key
	Upload(ctx context.Context, bucket, key, localPath string, opts PutOptions) (ObjectInfo, error)
	Delete(ctx context.Context, bucket, key string) error
	Stat(ctx context.Context, bucket, key string) (ObjectInfo, error)

	// Listen streams object-created notifications for the bucket until ctx is done
	Listen(ctx context.Context, bucket, prefix, suffix string) (<-chan Notification, <-chan error)
}

// ObjectInfo contains object metadata
type ObjectInfo struct {
	Bucket       string
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
	ContentType  string
	CacheControl string
	Metadata     map[string]string
}

// Notification is a single bucket event delivered by Listen
type Notification struct {
	EventName string
	Object    ObjectInfo
}

// PutOptions contains options for put operations
type PutOptions struct {
	ContentType  string
	CacheControl string
	Metadata     map[string]string
}

// Config contains client configuration
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Secure    bool
	Region    string
}
