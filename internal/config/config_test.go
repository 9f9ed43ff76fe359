package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	flags.String("bucket", "", "")
	flags.Int("concurrency", 4, "")
	flags.Bool("show-progress", true, "")
	return flags
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", newFlags())
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.Resize.MaxWidth)
	assert.Equal(t, 500, cfg.Resize.MaxHeight)
	assert.Equal(t, "resized-", cfg.Resize.Prefix)
	assert.Equal(t, "public,max-age=604800", cfg.Resize.CacheControl)
	assert.Equal(t, "convert", cfg.Resize.Engine)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.Listen.ShowProgress)
	assert.Empty(t, cfg.Journal)
}

func TestLoadFileThenFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
log_level: debug
storage:
  endpoint: http://minio:9000
  access_key: file-key
  secret_key: file-secret
resize:
  engine: imaging
  max_width: 800
listen:
  bucket: uploads
  concurrency: 2
journal: /var/lib/imgresize/journal.db
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	flags := newFlags()
	require.NoError(t, flags.Parse([]string{"--access-key", "flag-key", "--concurrency", "8", "--max-height", "300", "--show-progress=false"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "http://minio:9000", cfg.Storage.Endpoint)
	assert.Equal(t, "flag-key", cfg.Storage.AccessKey)
	assert.Equal(t, "file-secret", cfg.Storage.SecretKey)
	assert.Equal(t, "imaging", cfg.Resize.Engine)
	assert.Equal(t, 800, cfg.Resize.MaxWidth)
	assert.Equal(t, 300, cfg.Resize.MaxHeight)
	assert.Equal(t, "resized-", cfg.Resize.Prefix)
	assert.Equal(t, "uploads", cfg.Listen.Bucket)
	assert.Equal(t, 8, cfg.Listen.Concurrency)
	assert.False(t, cfg.Listen.ShowProgress)
	assert.Equal(t, "/var/lib/imgresize/journal.db", cfg.Journal)

	require.NoError(t, cfg.ValidateStorage())
	require.NoError(t, cfg.ValidateListen())
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "zero width", args: []string{"--max-width", "0"}},
		{name: "empty prefix", args: []string{"--resized-prefix", ""}},
		{name: "prefix with slash", args: []string{"--resized-prefix", "thumbs/"}},
		{name: "unknown engine", args: []string{"--engine", "vips"}},
		{name: "bad quality", args: []string{"--jpeg-quality", "0"}},
		{name: "no workers", args: []string{"--concurrency", "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := newFlags()
			require.NoError(t, flags.Parse(tt.args))

			_, err := Load("", flags)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestValidateStorage(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.ValidateStorage())
	assert.Error(t, cfg.ValidateListen())

	cfg.Storage = StorageConfig{Endpoint: "localhost:9000", AccessKey: "a"}
	assert.Error(t, cfg.ValidateStorage())

	cfg.Storage.SecretKey = "s"
	assert.NoError(t, cfg.ValidateStorage())
}
