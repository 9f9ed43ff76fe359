package resize

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// DefaultConvertBinary is the ImageMagick program invoked by ConvertResizer
const DefaultConvertBinary = "convert"

// ConvertResizer shells out to ImageMagick
type ConvertResizer struct {
	binary string
}

// NewConvertResizer creates a resizer running binary, or "convert" when empty
func NewConvertResizer(binary string) *ConvertResizer {
	if binary == "" {
		binary = DefaultConvertBinary
	}
	return &ConvertResizer{binary: binary}
}

// Geometry returns the ImageMagick shrink-only geometry for a bounding box
func Geometry(maxWidth, maxHeight int) string {
	return fmt.Sprintf("%dx%d>", maxWidth, maxHeight)
}

func convertArgs(input, output string, maxWidth, maxHeight int) []string {
	return []string{input, "-resize", Geometry(maxWidth, maxHeight), output}
}

// Resize runs `convert <input> -resize WxH> <output>`
func (c *ConvertResizer) Resize(ctx context.Context, input, output string, maxWidth, maxHeight int) (Result, error) {
	if maxWidth <= 0 || maxHeight <= 0 {
		return Result{}, fmt.Errorf("invalid bounding box %dx%d", maxWidth, maxHeight)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.binary, convertArgs(input, output, maxWidth, maxHeight)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		msg := strings.TrimSpace(result.Stderr)
		if msg == "" {
			return result, fmt.Errorf("%s failed: %w", c.binary, err)
		}
		return result, fmt.Errorf("%s failed: %w: %s", c.binary, err, msg)
	}

	return result, nil
}
