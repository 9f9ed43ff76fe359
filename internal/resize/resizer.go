// Package resize shrinks image files to fit a bounding box.
//
// Resizers keep the aspect ratio and never enlarge: an image that already
// fits the box is written out at its original dimensions.
package resize

import (
	"context"
	"fmt"
)

// Engine names a Resizer implementation
type Engine string

const (
	EngineConvert Engine = "convert"
	EngineImaging Engine = "imaging"
)

// Resizer writes a bounded copy of input to output
type Resizer interface {
	Resize(ctx context.Context, input, output string, maxWidth, maxHeight int) (Result, error)
}

// Result carries diagnostics from a resize
type Result struct {
	Stdout string
	Stderr string
	// Width and Height are zero when the engine does not report them
	Width  int
	Height int
}

// Config selects and tunes a Resizer
type Config struct {
	Engine        Engine
	ConvertBinary string
	JPEGQuality   int
}

// New builds the Resizer for cfg.Engine
func New(cfg Config) (Resizer, error) {
	switch cfg.Engine {
	case EngineConvert, "":
		return NewConvertResizer(cfg.ConvertBinary), nil
	case EngineImaging:
		return NewImagingResizer(cfg.JPEGQuality), nil
	default:
		return nil, fmt.Errorf("unknown resize engine %q", cfg.Engine)
	}
}
