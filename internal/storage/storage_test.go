package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanEndpoint(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "localhost:9000", want: "localhost:9000"},
		{in: "http://localhost:9000", want: "localhost:9000"},
		{in: "https://s3.example.com/", want: "s3.example.com"},
		{in: "https://s3.example.com/bucket", wantErr: true},
		{in: "s3.example.com/bucket", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := cleanEndpoint(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestNewMinIOClient(t *testing.T) {
	c, err := NewMinIOClient(Config{Endpoint: "http://localhost:9000", AccessKey: "a", SecretKey: "b"})
	require.NoError(t, err)
	assert.NotNil(t, c)

	_, err = NewMinIOClient(Config{Endpoint: "localhost:9000/path"})
	assert.Error(t, err)
}

func TestMemoryClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryClient()
	dir := t.TempDir()

	m.Put("b", "img/a.jpg", []byte("source"), PutOptions{ContentType: "image/jpeg"})

	local := filepath.Join(dir, "nested", "a.jpg")
	require.NoError(t, m.Download(ctx, "b", "img/a.jpg", local))
	data, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, "source", string(data))

	info, err := m.Upload(ctx, "b", "img/resized-a.jpg", local, PutOptions{
		ContentType:  "image/jpeg",
		CacheControl: "public,max-age=604800",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(6), info.Size)

	stat, err := m.Stat(ctx, "b", "img/resized-a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "public,max-age=604800", stat.CacheControl)
	assert.ElementsMatch(t, []string{"img/a.jpg", "img/resized-a.jpg"}, m.Keys("b"))

	require.NoError(t, m.Delete(ctx, "b", "img/a.jpg"))
	_, err = m.Stat(ctx, "b", "img/a.jpg")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.Download(ctx, "b", "img/a.jpg", local), ErrNotFound)
}

func TestMemoryClientFailures(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryClient()
	boom := errors.New("boom")

	m.Fail(OpDelete, boom)
	assert.ErrorIs(t, m.Delete(ctx, "b", "k"), boom)

	m.Fail(OpDelete, nil)
	assert.NoError(t, m.Delete(ctx, "b", "k"))
}

func TestMemoryClientListen(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewMemoryClient()
	notifyCh, errCh := m.Listen(ctx, "b", "img/", ".jpg")

	m.Put("other", "img/x.jpg", nil, PutOptions{})
	m.Put("b", "doc/x.jpg", nil, PutOptions{})
	m.Put("b", "img/a.jpg", []byte("x"), PutOptions{ContentType: "image/jpeg"})

	select {
	case n := <-notifyCh:
		assert.Equal(t, "img/a.jpg", n.Object.Key)
		assert.Equal(t, "image/jpeg", n.Object.ContentType)
	case <-time.After(time.Second):
		t.Fatal("no notification received")
	}

	cancel()
	for range notifyCh {
	}
	assert.NoError(t, <-errCh)
}
