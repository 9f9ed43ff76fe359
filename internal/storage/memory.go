package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Op names a MemoryClient operation for error injection
type Op string

const (
	OpDownload Op = "download"
	OpUpload   Op = "upload"
	OpDelete   Op = "delete"
)

type memoryObject struct {
	data []byte
	info ObjectInfo
}

type subscriber struct {
	bucket string
	prefix string
	suffix string
	ch     chan Notification
}

// MemoryClient is an in-process Client. It backs tests and local runs
// without an object store.
type MemoryClient struct {
	mu          sync.RWMutex
	objects     map[string]memoryObject
	failures    map[Op]error
	subscribers map[int]*subscriber
	nextSubID   int
}

// NewMemoryClient creates an empty in-memory store
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		objects:     make(map[string]memoryObject),
		failures:    make(map[Op]error),
		subscribers: make(map[int]*subscriber),
	}
}

func objectID(bucket, key string) string {
	return bucket + "/" + key
}

// Put stores data as an object and notifies listeners
func (m *MemoryClient) Put(bucket, key string, data []byte, opts PutOptions) ObjectInfo {
	sum := md5.Sum(data)
	info := ObjectInfo{
		Bucket:       bucket,
		Key:          key,
		Size:         int64(len(data)),
		ETag:         hex.EncodeToString(sum[:]),
		LastModified: time.Now(),
		ContentType:  opts.ContentType,
		CacheControl: opts.CacheControl,
		Metadata:     opts.Metadata,
	}

	m.mu.Lock()
	m.objects[objectID(bucket, key)] = memoryObject{data: append([]byte(nil), data...), info: info}
	subs := make([]*subscriber, 0, len(m.subscribers))
	for _, s := range m.subscribers {
		subs = append(subs, s)
	}
	m.mu.Unlock()

	for _, s := range subs {
		if s.bucket != bucket || !strings.HasPrefix(key, s.prefix) || !strings.HasSuffix(key, s.suffix) {
			continue
		}
		select {
		case s.ch <- Notification{EventName: "s3:ObjectCreated:Put", Object: info}:
		default:
		}
	}

	return info
}

// Get returns a copy of an object's data and metadata
func (m *MemoryClient) Get(bucket, key string) ([]byte, ObjectInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[objectID(bucket, key)]
	if !ok {
		return nil, ObjectInfo{}, false
	}
	return append([]byte(nil), obj.data...), obj.info, true
}

// Keys lists the object keys stored in a bucket
func (m *MemoryClient) Keys(bucket string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for id, obj := range m.objects {
		if strings.HasPrefix(id, bucket+"/") {
			keys = append(keys, obj.info.Key)
		}
	}
	return keys
}

// Subscribers returns the number of active Listen calls
func (m *MemoryClient) Subscribers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscribers)
}

// Fail makes every subsequent call of op return err. A nil err clears it.
func (m *MemoryClient) Fail(op Op, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

func (m *MemoryClient) failure(op Op) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.failures[op]
}

// Download writes the object to localPath
func (m *MemoryClient) Download(ctx context.Context, bucket, key, localPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.failure(OpDownload); err != nil {
		return err
	}

	data, _, ok := m.Get(bucket, key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, objectID(bucket, key))
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(localPath, data, 0o644)
}

// Upload stores the contents of localPath under key
func (m *MemoryClient) Upload(ctx context.Context, bucket, key, localPath string, opts PutOptions) (ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}
	if err := m.failure(OpUpload); err != nil {
		return ObjectInfo{}, err
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		return ObjectInfo{}, err
	}

	return m.Put(bucket, key, data, opts), nil
}

// Delete removes an object. Deleting a missing object succeeds, as in S3.
func (m *MemoryClient) Delete(ctx context.Context, bucket, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.failure(OpDelete); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, objectID(bucket, key))
	return nil
}

// Stat gets object metadata
func (m *MemoryClient) Stat(ctx context.Context, bucket, key string) (ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}

	_, info, ok := m.Get(bucket, key)
	if !ok {
		return ObjectInfo{}, fmt.Errorf("%w: %s", ErrNotFound, objectID(bucket, key))
	}
	return info, nil
}

// Listen delivers a notification for every Put into the bucket until ctx is done
func (m *MemoryClient) Listen(ctx context.Context, bucket, prefix, suffix string) (<-chan Notification, <-chan error) {
	sub := &subscriber{
		bucket: bucket,
		prefix: prefix,
		suffix: suffix,
		ch:     make(chan Notification, 256),
	}
	errCh := make(chan error, 1)

	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = sub
	m.mu.Unlock()

	notifyCh := make(chan Notification)
	go func() {
		defer close(notifyCh)
		defer close(errCh)
		defer func() {
			m.mu.Lock()
			delete(m.subscribers, id)
			m.mu.Unlock()
		}()

		for {
			select {
			case n := <-sub.ch:
				select {
				case notifyCh <- n:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return notifyCh, errCh
}
