package resize

import (
	"context"
	"fmt"
	"image"
	"os"

	"github.com/disintegration/imaging"
)

const defaultJPEGQuality = 90

// ImagingResizer resizes in-process with disintegration/imaging
type ImagingResizer struct {
	jpegQuality int
}

// NewImagingResizer creates an in-process resizer. A non-positive quality
// selects the default.
func NewImagingResizer(jpegQuality int) *ImagingResizer {
	if jpegQuality <= 0 || jpegQuality > 100 {
		jpegQuality = defaultJPEGQuality
	}
	return &ImagingResizer{jpegQuality: jpegQuality}
}

// Resize fits input into maxWidth x maxHeight and saves it to output
func (r *ImagingResizer) Resize(ctx context.Context, input, output string, maxWidth, maxHeight int) (Result, error) {
	if maxWidth <= 0 || maxHeight <= 0 {
		return Result{}, fmt.Errorf("invalid bounding box %dx%d", maxWidth, maxHeight)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	img, err := imaging.Open(input, imaging.AutoOrientation(true))
	if err != nil {
		return Result{}, fmt.Errorf("ImagingResizer - Resize - imaging.Open: %w", err)
	}

	format, err := outputFormat(input, output)
	if err != nil {
		return Result{}, err
	}

	// Fit returns a copy unchanged when the image is already inside the box
	fitted := imaging.Fit(img, maxWidth, maxHeight, imaging.Lanczos)

	f, err := os.Create(output)
	if err != nil {
		return Result{}, fmt.Errorf("ImagingResizer - Resize - os.Create: %w", err)
	}

	if err := imaging.Encode(f, fitted, format, imaging.JPEGQuality(r.jpegQuality)); err != nil {
		f.Close()
		return Result{}, fmt.Errorf("ImagingResizer - Resize - imaging.Encode: %w", err)
	}
	if err := f.Close(); err != nil {
		return Result{}, fmt.Errorf("ImagingResizer - Resize - Close: %w", err)
	}

	bounds := fitted.Bounds()
	return Result{Width: bounds.Dx(), Height: bounds.Dy()}, nil
}

// outputFormat picks the encoding from the output name, falling back to
// the format the input was decoded as.
func outputFormat(input, output string) (imaging.Format, error) {
	if format, err := imaging.FormatFromFilename(output); err == nil {
		return format, nil
	}

	f, err := os.Open(input)
	if err != nil {
		return 0, fmt.Errorf("ImagingResizer - outputFormat - os.Open: %w", err)
	}
	defer f.Close()

	_, name, err := image.DecodeConfig(f)
	if err != nil {
		return 0, fmt.Errorf("ImagingResizer - outputFormat - image.DecodeConfig: %w", err)
	}

	format, err := imaging.FormatFromExtension(name)
	if err != nil {
		return 0, fmt.Errorf("ImagingResizer - outputFormat: unsupported format %q: %w", name, err)
	}
	return format, nil
}
