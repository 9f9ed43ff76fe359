// Package event describes object upload notifications and decodes the
// payload shapes the supported triggers deliver.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/minio/minio-go/v7/pkg/notification"
)

// ErrNoEvents is returned when a payload carries no object-created event
var ErrNoEvents = errors.New("no object created events in payload")

// UploadEvent is a single finalized object in a bucket
type UploadEvent struct {
	Bucket      string `json:"bucket"`
	Key         string `json:"key"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size,omitempty"`
}

func (e UploadEvent) String() string {
	return e.Bucket + "/" + e.Key
}

// Validate checks that the event names an object
func (e UploadEvent) Validate() error {
	if e.Bucket == "" {
		return fmt.Errorf("event bucket is required")
	}
	if e.Key == "" {
		return fmt.Errorf("event object key is required")
	}
	return nil
}

// payloadShape holds the top-level fields used to tell payload shapes apart
type payloadShape struct {
	Records []json.RawMessage `json:"Records"`
	S3      json.RawMessage   `json:"s3"`

	// GCS object resource
	Name        string `json:"name"`
	Bucket      string `json:"bucket"`
	ContentType string `json:"contentType"`
	Size        string `json:"size"`
}

// Decode extracts upload events from a MinIO/S3 notification document, a
// single notification record or a GCS object resource.
func Decode(data []byte) ([]UploadEvent, error) {
	var p payloadShape
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode event payload: %w", err)
	}

	switch {
	case len(p.Records) > 0:
		events := make([]UploadEvent, 0, len(p.Records))
		for i, raw := range p.Records {
			var rec notification.Event
			if err := json.Unmarshal(raw, &rec); err != nil {
				return nil, fmt.Errorf("failed to decode record %d: %w", i, err)
			}
			ev, ok, err := FromNotification(rec)
			if err != nil {
				return nil, fmt.Errorf("record %d: %w", i, err)
			}
			if ok {
				events = append(events, ev)
			}
		}
		if len(events) == 0 {
			return nil, ErrNoEvents
		}
		return events, nil

	case len(p.S3) > 0:
		var rec notification.Event
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("failed to decode record: %w", err)
		}
		ev, ok, err := FromNotification(rec)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrNoEvents
		}
		return []UploadEvent{ev}, nil

	case p.Name != "" && p.Bucket != "":
		ev := UploadEvent{
			Bucket:      p.Bucket,
			Key:         p.Name,
			ContentType: p.ContentType,
		}
		// GCS reports size as a decimal string
		if p.Size != "" {
			if size, err := strconv.ParseInt(p.Size, 10, 64); err == nil {
				ev.Size = size
			}
		}
		return []UploadEvent{ev}, nil
	}

	return nil, ErrNoEvents
}

// FromNotification converts a bucket notification record. The boolean is
// false for records that are not object-created events.
func FromNotification(rec notification.Event) (UploadEvent, bool, error) {
	if !IsObjectCreated(rec.EventName) {
		return UploadEvent{}, false, nil
	}

	// Keys in notification records are URL encoded
	key, err := url.QueryUnescape(rec.S3.Object.Key)
	if err != nil {
		return UploadEvent{}, false, fmt.Errorf("invalid object key %q: %w", rec.S3.Object.Key, err)
	}

	ev := UploadEvent{
		Bucket:      rec.S3.Bucket.Name,
		Key:         key,
		ContentType: rec.S3.Object.ContentType,
		Size:        rec.S3.Object.Size,
	}
	if err := ev.Validate(); err != nil {
		return UploadEvent{}, false, err
	}

	return ev, true, nil
}

// IsObjectCreated reports whether an event name denotes a finalized upload.
// Records without a name are treated as uploads.
func IsObjectCreated(name string) bool {
	return name == "" || strings.Contains(name, "ObjectCreated")
}
