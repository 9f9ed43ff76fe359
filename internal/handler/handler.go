// Package handler turns one object upload into a resized copy of the image.
//
// For an eligible event the handler downloads the object into a temp file,
// resizes it, uploads the result next to the original under a prefixed
// name, removes the temp files and finally deletes the original object.
// Events for non-images and for objects that already carry the prefix are
// skipped without side effects, so the handler's own uploads never loop.
package handler

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"imgresize/internal/event"
	"imgresize/internal/resize"
	"imgresize/internal/storage"

	"go.uber.org/zap"
)

const (
	DefaultMaxWidth     = 500
	DefaultMaxHeight    = 500
	DefaultPrefix       = "resized-"
	DefaultCacheControl = "public,max-age=604800"
)

// Outcome describes how an event was handled
type Outcome string

const (
	OutcomeProcessed       Outcome = "processed"
	OutcomeSkippedNotImage Outcome = "skipped_not_image"
	OutcomeSkippedResized  Outcome = "skipped_resized"
)

// Skipped reports whether the event was ineligible
func (o Outcome) Skipped() bool {
	return o == OutcomeSkippedNotImage || o == OutcomeSkippedResized
}

// Options configures a Handler
type Options struct {
	MaxWidth     int
	MaxHeight    int
	Prefix       string
	CacheControl string

	// TempDir holds one work directory per invocation; os.TempDir() when empty
	TempDir string
}

func (o Options) withDefaults() Options {
	if o.MaxWidth <= 0 {
		o.MaxWidth = DefaultMaxWidth
	}
	if o.MaxHeight <= 0 {
		o.MaxHeight = DefaultMaxHeight
	}
	if o.Prefix == "" {
		o.Prefix = DefaultPrefix
	}
	if o.CacheControl == "" {
		o.CacheControl = DefaultCacheControl
	}
	if o.TempDir == "" {
		o.TempDir = os.TempDir()
	}
	return o
}

// Result reports what Handle did
type Result struct {
	Outcome  Outcome
	Paths    PathSet
	Resize   resize.Result
	Uploaded storage.ObjectInfo
	Duration time.Duration
}

// Handler processes upload events
type Handler struct {
	store   storage.Client
	resizer resize.Resizer
	opts    Options
	logger  *zap.Logger
}

// New creates a Handler. Zero fields in opts take their defaults.
func New(store storage.Client, resizer resize.Resizer, opts Options, logger *zap.Logger) *Handler {
	return &Handler{
		store:   store,
		resizer: resizer,
		opts:    opts.withDefaults(),
		logger:  logger,
	}
}

// Options returns the effective options
func (h *Handler) Options() Options {
	return h.opts
}

// Eligible reports whether ev should be resized, and the skip outcome when not
func (h *Handler) Eligible(ev event.UploadEvent) (Outcome, bool) {
	if !strings.HasPrefix(ev.ContentType, "image/") {
		return OutcomeSkippedNotImage, false
	}
	if HasPrefix(ev.Key, h.opts.Prefix) {
		return OutcomeSkippedResized, false
	}
	return OutcomeProcessed, true
}

// Handle runs the resize pipeline for one event. Steps run strictly in
// order and the first failure is returned; the original object is only
// deleted once everything before it succeeded.
func (h *Handler) Handle(ctx context.Context, ev event.UploadEvent) (res Result, err error) {
	start := time.Now()
	logger := h.logger.With(
		zap.String("bucket", ev.Bucket),
		zap.String("key", ev.Key),
		zap.String("content_type", ev.ContentType),
	)

	if outcome, ok := h.Eligible(ev); !ok {
		switch outcome {
		case OutcomeSkippedNotImage:
			logger.Info("This is not an image")
		case OutcomeSkippedResized:
			logger.Info("Already a resized image")
		}
		return Result{Outcome: outcome, Duration: time.Since(start)}, nil
	}

	if err := ev.Validate(); err != nil {
		return Result{}, fmt.Errorf("invalid event: %w", err)
	}

	// Each invocation works in its own directory so concurrent events for
	// the same key never share temp files
	if err := os.MkdirAll(h.opts.TempDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create temp dir: %w", err)
	}
	workDir, err := os.MkdirTemp(h.opts.TempDir, "imgresize-*")
	if err != nil {
		return Result{}, fmt.Errorf("create temp dir: %w", err)
	}

	defer func() {
		if err != nil {
			h.discard(logger, workDir)
		}
	}()

	paths, err := DerivePaths(ev.Key, h.opts.Prefix, workDir)
	if err != nil {
		return Result{}, err
	}
	res.Paths = paths

	if err := os.MkdirAll(filepath.Dir(paths.LocalSource), 0o755); err != nil {
		return res, fmt.Errorf("create temp dir: %w", err)
	}

	if err := h.store.Download(ctx, ev.Bucket, paths.SourceKey, paths.LocalSource); err != nil {
		return res, fmt.Errorf("download %s: %w", paths.SourceKey, err)
	}
	logger.Info("The file has been downloaded", zap.String("local_path", paths.LocalSource))

	res.Resize, err = h.resizer.Resize(ctx, paths.LocalSource, paths.LocalResized, h.opts.MaxWidth, h.opts.MaxHeight)
	if err != nil {
		return res, fmt.Errorf("resize %s: %w", paths.SourceKey, err)
	}
	logger.Debug("Resize output",
		zap.String("stdout", res.Resize.Stdout),
		zap.String("stderr", res.Resize.Stderr),
	)
	logger.Info("Resized image created", zap.String("local_path", paths.LocalResized))

	res.Uploaded, err = h.store.Upload(ctx, ev.Bucket, paths.ResizedKey, paths.LocalResized, storage.PutOptions{
		ContentType:  ev.ContentType,
		CacheControl: h.opts.CacheControl,
	})
	if err != nil {
		return res, fmt.Errorf("upload %s: %w", paths.ResizedKey, err)
	}
	logger.Info("Resized image uploaded", zap.String("resized_key", paths.ResizedKey))

	if err := removeLocal(paths.LocalSource); err != nil {
		return res, fmt.Errorf("remove temp file: %w", err)
	}
	if err := removeLocal(paths.LocalResized); err != nil {
		return res, fmt.Errorf("remove temp file: %w", err)
	}
	if err := os.RemoveAll(workDir); err != nil {
		return res, fmt.Errorf("remove temp dir: %w", err)
	}

	if err := h.store.Delete(ctx, ev.Bucket, paths.SourceKey); err != nil {
		return res, fmt.Errorf("delete %s: %w", paths.SourceKey, err)
	}

	res.Outcome = OutcomeProcessed
	res.Duration = time.Since(start)
	logger.Info("Resized image stored and original deleted",
		zap.String("resized_key", paths.ResizedKey),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

// discard removes the work directory of a failed invocation
func (h *Handler) discard(logger *zap.Logger, workDir string) {
	if err := os.RemoveAll(workDir); err != nil {
		logger.Warn("Failed to remove temp dir", zap.String("path", workDir), zap.Error(err))
	}
}

// removeLocal deletes a file; a file that is already gone is not an error
func removeLocal(p string) error {
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
