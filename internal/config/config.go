package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Storage     StorageConfig `yaml:"storage"`
	Resize      ResizeConfig  `yaml:"resize"`
	Listen      ListenConfig  `yaml:"listen"`
	Server      ServerConfig  `yaml:"server"`
	MetricsAddr string        `yaml:"metrics_addr"`
	Journal     string        `yaml:"journal"`
	LogLevel    string        `yaml:"log_level"`
}

// StorageConfig represents S3-compatible storage configuration
type StorageConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Secure    bool   `yaml:"secure"`
	Region    string `yaml:"region"`
}

// ResizeConfig controls how images are resized and stored
type ResizeConfig struct {
	MaxWidth      int    `yaml:"max_width"`
	MaxHeight     int    `yaml:"max_height"`
	Prefix        string `yaml:"prefix"`
	CacheControl  string `yaml:"cache_control"`
	TempDir       string `yaml:"temp_dir"`
	Engine        string `yaml:"engine"`
	ConvertBinary string `yaml:"convert_binary"`
	JPEGQuality   int    `yaml:"jpeg_quality"`
}

// ListenConfig configures the bucket notification trigger
type ListenConfig struct {
	Bucket      string `yaml:"bucket"`
	Prefix      string `yaml:"prefix"`
	Suffix      string `yaml:"suffix"`
	Concurrency int    `yaml:"concurrency"`

	// ShowProgress prints a periodic status line when stdout is a terminal
	ShowProgress bool `yaml:"show_progress"`
}

// ServerConfig configures the webhook trigger
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Resize: ResizeConfig{
			MaxWidth:      500,
			MaxHeight:     500,
			Prefix:        "resized-",
			CacheControl:  "public,max-age=604800", // 7 days
			Engine:        "convert",
			ConvertBinary: "convert",
			JPEGQuality:   90,
		},
		Listen: ListenConfig{
			Concurrency:  4,
			ShowProgress: true,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// RegisterFlags adds the flags understood by loadFromFlags
func RegisterFlags(flags *pflag.FlagSet) {
	// Storage flags
	flags.String("endpoint", "", "Object store endpoint")
	flags.String("access-key", "", "Object store access key")
	flags.String("secret-key", "", "Object store secret key")
	flags.Bool("secure", false, "Use HTTPS for the object store")
	flags.String("region", "", "Object store region")

	// Resize flags
	flags.Int("max-width", 500, "Maximum width of resized images in pixels")
	flags.Int("max-height", 500, "Maximum height of resized images in pixels")
	flags.String("resized-prefix", "resized-", "File name prefix of resized objects")
	flags.String("cache-control", "public,max-age=604800", "Cache-Control header of resized objects")
	flags.String("temp-dir", "", "Directory for temporary files (default is the OS temp dir)")
	flags.String("engine", "convert", "Resize engine (convert/imaging)")
	flags.String("convert-binary", "convert", "ImageMagick convert program")
	flags.Int("jpeg-quality", 90, "JPEG quality for the imaging engine")

	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	flags.String("journal", "", "SQLite audit journal file (disabled when empty)")
	flags.String("log-level", "info", "Log level (debug/info/warn/error)")
}

// Load loads configuration from file and command line flags
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	cfg := Default()

	// Load from YAML file if provided
	if configFile != "" {
		if err := loadFromFile(cfg, configFile); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Override with command line flags
	if flags != nil {
		loadFromFlags(cfg, flags)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func loadFromFlags(cfg *Config, flags *pflag.FlagSet) {
	changed := func(name string) bool {
		return flags.Lookup(name) != nil && flags.Changed(name)
	}

	if changed("endpoint") {
		cfg.Storage.Endpoint, _ = flags.GetString("endpoint")
	}
	if changed("access-key") {
		cfg.Storage.AccessKey, _ = flags.GetString("access-key")
	}
	if changed("secret-key") {
		cfg.Storage.SecretKey, _ = flags.GetString("secret-key")
	}
	if changed("secure") {
		cfg.Storage.Secure, _ = flags.GetBool("secure")
	}
	if changed("region") {
		cfg.Storage.Region, _ = flags.GetString("region")
	}

	if changed("max-width") {
		cfg.Resize.MaxWidth, _ = flags.GetInt("max-width")
	}
	if changed("max-height") {
		cfg.Resize.MaxHeight, _ = flags.GetInt("max-height")
	}
	if changed("resized-prefix") {
		cfg.Resize.Prefix, _ = flags.GetString("resized-prefix")
	}
	if changed("cache-control") {
		cfg.Resize.CacheControl, _ = flags.GetString("cache-control")
	}
	if changed("temp-dir") {
		cfg.Resize.TempDir, _ = flags.GetString("temp-dir")
	}
	if changed("engine") {
		cfg.Resize.Engine, _ = flags.GetString("engine")
	}
	if changed("convert-binary") {
		cfg.Resize.ConvertBinary, _ = flags.GetString("convert-binary")
	}
	if changed("jpeg-quality") {
		cfg.Resize.JPEGQuality, _ = flags.GetInt("jpeg-quality")
	}

	// Listen flags are registered by the listen command only
	if changed("bucket") {
		cfg.Listen.Bucket, _ = flags.GetString("bucket")
	}
	if changed("prefix") {
		cfg.Listen.Prefix, _ = flags.GetString("prefix")
	}
	if changed("suffix") {
		cfg.Listen.Suffix, _ = flags.GetString("suffix")
	}
	if changed("concurrency") {
		cfg.Listen.Concurrency, _ = flags.GetInt("concurrency")
	}
	if changed("show-progress") {
		cfg.Listen.ShowProgress, _ = flags.GetBool("show-progress")
	}
	if changed("addr") {
		cfg.Server.Addr, _ = flags.GetString("addr")
	}

	if changed("metrics-addr") {
		cfg.MetricsAddr, _ = flags.GetString("metrics-addr")
	}
	if changed("journal") {
		cfg.Journal, _ = flags.GetString("journal")
	}
	if changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
}

func (c *Config) validate() error {
	if c.Resize.MaxWidth <= 0 || c.Resize.MaxHeight <= 0 {
		return fmt.Errorf("max width and height must be positive")
	}
	if c.Resize.Prefix == "" {
		return fmt.Errorf("resized prefix is required")
	}
	if strings.Contains(c.Resize.Prefix, "/") {
		return fmt.Errorf("resized prefix cannot contain '/'")
	}
	switch c.Resize.Engine {
	case "convert", "imaging":
	default:
		return fmt.Errorf("unknown resize engine %q", c.Resize.Engine)
	}
	if c.Resize.JPEGQuality < 1 || c.Resize.JPEGQuality > 100 {
		return fmt.Errorf("jpeg quality must be between 1 and 100")
	}
	if c.Listen.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}

	return nil
}

// ValidateStorage checks the settings needed to reach the object store
func (c *Config) ValidateStorage() error {
	if c.Storage.Endpoint == "" {
		return fmt.Errorf("storage endpoint is required")
	}
	if c.Storage.AccessKey == "" {
		return fmt.Errorf("storage access key is required")
	}
	if c.Storage.SecretKey == "" {
		return fmt.Errorf("storage secret key is required")
	}
	return nil
}

// ValidateListen checks the settings needed by the listen trigger
func (c *Config) ValidateListen() error {
	if c.Listen.Bucket == "" {
		return fmt.Errorf("bucket is required")
	}
	return nil
}
