package journal

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	store.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return store
}

func TestRecordAndGet(t *testing.T) {
	store := newStore(t)

	entry := &Entry{
		Bucket:      "b",
		Key:         "img/a.jpg",
		ResizedKey:  "img/resized-a.jpg",
		ContentType: "image/jpeg",
		Status:      StatusFailed,
		Detail:      "download img/a.jpg: connection reset",
	}
	require.NoError(t, store.Record(entry))
	assert.Equal(t, 1, entry.Attempts)

	entry.Status = StatusProcessed
	entry.Detail = ""
	require.NoError(t, store.Record(entry))
	assert.Equal(t, 2, entry.Attempts)

	got, err := store.Get("b", "img/a.jpg")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, StatusProcessed, got.Status)
	assert.Equal(t, "img/resized-a.jpg", got.ResizedKey)
	assert.Equal(t, 2, got.Attempts)
	assert.Empty(t, got.Detail)
	assert.True(t, got.UpdatedAt.Equal(entry.UpdatedAt))

	missing, err := store.Get("b", "nope.jpg")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestListNewestFirst(t *testing.T) {
	store := newStore(t)

	for _, key := range []string{"a.jpg", "b.jpg", "c.pdf"} {
		status := StatusProcessed
		if key == "c.pdf" {
			status = StatusSkipped
		}
		require.NoError(t, store.Record(&Entry{Bucket: "b", Key: key, Status: status}))
	}

	entries, err := store.List(2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "c.pdf", entries[0].Key)
	assert.Equal(t, StatusSkipped, entries[0].Status)
	assert.Equal(t, "b.jpg", entries[1].Key)

	all, err := store.List(0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestClosedStore(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Close())

	assert.Error(t, store.Record(&Entry{Bucket: "b", Key: "k", Status: StatusProcessed}))
	_, err := store.List(10)
	assert.Error(t, err)
}

func TestCloseDuringRecords(t *testing.T) {
	store := newStore(t)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- store.Record(&Entry{Bucket: "b", Key: fmt.Sprintf("img/%d.jpg", i), Status: StatusProcessed})
		}(i)
	}
	require.NoError(t, store.Close())
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			assert.EqualError(t, err, "journal store is closed")
		}
	}
	assert.NoError(t, store.Close())
}

func TestRetryOnBusy(t *testing.T) {
	store := newStore(t)

	calls := 0
	err := store.retryOnBusy(func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked (5) (SQLITE_BUSY)")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	permanent := errors.New("constraint failed")
	err = store.retryOnBusy(func() error {
		calls++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}
