// Package journal keeps an audit trail of handled upload events. The
// handler never reads it back; it exists for operators.
package journal

import (
	"time"
)

// Status is the recorded outcome of an event
type Status string

const (
	StatusProcessed Status = "processed"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Entry is the latest journal record for an object
type Entry struct {
	Bucket      string    `json:"bucket"`
	Key         string    `json:"key"`
	ResizedKey  string    `json:"resized_key,omitempty"`
	ContentType string    `json:"content_type"`
	Status      Status    `json:"status"`
	Detail      string    `json:"detail,omitempty"`
	Attempts    int       `json:"attempts"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Store defines the interface for journal persistence
type Store interface {
	// Record upserts the entry for (bucket, key) and bumps its attempt count
	Record(entry *Entry) error
	Get(bucket, key string) (*Entry, error)
	// List returns up to limit entries, most recent first
	List(limit int) ([]*Entry, error)

	Close() error
}
