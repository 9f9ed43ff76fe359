package resize

import (
	"context"
	"image"
	"image/color"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeImage(t *testing.T, path string, width, height int) {
	t.Helper()

	img := imaging.New(width, height, color.NRGBA{R: 200, G: 80, B: 40, A: 255})
	require.NoError(t, imaging.Save(img, path))
}

func imageSize(t *testing.T, path string) (int, int) {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	require.NoError(t, err)
	return cfg.Width, cfg.Height
}

func TestNew(t *testing.T) {
	r, err := New(Config{})
	require.NoError(t, err)
	assert.IsType(t, &ConvertResizer{}, r)

	r, err = New(Config{Engine: EngineImaging})
	require.NoError(t, err)
	assert.IsType(t, &ImagingResizer{}, r)

	_, err = New(Config{Engine: "vips"})
	assert.Error(t, err)
}

func TestConvertArgs(t *testing.T) {
	assert.Equal(t,
		[]string{"/tmp/img/a.jpg", "-resize", "500x500>", "/tmp/img/resized-a.jpg"},
		convertArgs("/tmp/img/a.jpg", "/tmp/img/resized-a.jpg", 500, 500),
	)
	assert.Equal(t, "convert", NewConvertResizer("").binary)
}

func TestConvertResizerFailure(t *testing.T) {
	if _, err := exec.LookPath("false"); err != nil {
		t.Skip("false not available")
	}

	_, err := NewConvertResizer("false").Resize(context.Background(), "in.jpg", "out.jpg", 500, 500)
	assert.Error(t, err)

	_, err = NewConvertResizer("imgresize-no-such-binary").Resize(context.Background(), "in.jpg", "out.jpg", 500, 500)
	assert.Error(t, err)

	_, err = NewConvertResizer("").Resize(context.Background(), "in.jpg", "out.jpg", 0, 500)
	assert.Error(t, err)
}

func TestConvertResizerImageMagick(t *testing.T) {
	if _, err := exec.LookPath(DefaultConvertBinary); err != nil {
		t.Skip("ImageMagick convert not installed")
	}

	dir := t.TempDir()
	in := filepath.Join(dir, "a.png")
	out := filepath.Join(dir, "resized-a.png")
	writeImage(t, in, 1000, 800)

	_, err := NewConvertResizer("").Resize(context.Background(), in, out, 500, 500)
	require.NoError(t, err)

	w, h := imageSize(t, out)
	assert.Equal(t, 500, w)
	assert.Equal(t, 400, h)
}

func TestImagingResizer(t *testing.T) {
	tests := []struct {
		name         string
		file         string
		width        int
		height       int
		wantW, wantH int
	}{
		{name: "landscape shrinks", file: "a.jpg", width: 1000, height: 800, wantW: 500, wantH: 400},
		{name: "portrait shrinks", file: "p.png", width: 600, height: 1200, wantW: 250, wantH: 500},
		{name: "one side over", file: "w.png", width: 700, height: 100, wantW: 500, wantH: 71},
		{name: "small unchanged", file: "s.gif", width: 320, height: 200, wantW: 320, wantH: 200},
		{name: "exact bound unchanged", file: "e.png", width: 500, height: 500, wantW: 500, wantH: 500},
	}

	r := NewImagingResizer(0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			in := filepath.Join(dir, tt.file)
			out := filepath.Join(dir, "resized-"+tt.file)
			writeImage(t, in, tt.width, tt.height)

			res, err := r.Resize(context.Background(), in, out, 500, 500)
			require.NoError(t, err)

			w, h := imageSize(t, out)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
			assert.Equal(t, w, res.Width)
			assert.Equal(t, h, res.Height)

			srcAspect := float64(tt.width) / float64(tt.height)
			gotAspect := float64(w) / float64(h)
			assert.InDelta(t, srcAspect, gotAspect, 0.02*srcAspect)
		})
	}
}

func TestImagingResizerFormatFallback(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "photo.png")
	writeImage(t, in, 800, 800)

	// Object keys need not carry an extension
	noExt := filepath.Join(dir, "upload")
	require.NoError(t, os.Rename(in, noExt))
	out := filepath.Join(dir, "resized-upload")

	_, err := NewImagingResizer(80).Resize(context.Background(), noExt, out, 500, 500)
	require.NoError(t, err)

	w, h := imageSize(t, out)
	assert.Equal(t, 500, w)
	assert.Equal(t, 500, h)
}

func TestImagingResizerErrors(t *testing.T) {
	dir := t.TempDir()
	r := NewImagingResizer(0)

	_, err := r.Resize(context.Background(), filepath.Join(dir, "missing.jpg"), filepath.Join(dir, "out.jpg"), 500, 500)
	assert.Error(t, err)

	garbage := filepath.Join(dir, "garbage.jpg")
	require.NoError(t, os.WriteFile(garbage, []byte("not an image"), 0o644))
	_, err = r.Resize(context.Background(), garbage, filepath.Join(dir, "out.jpg"), 500, 500)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Resize(ctx, garbage, filepath.Join(dir, "out.jpg"), 500, 500)
	assert.ErrorIs(t, err, context.Canceled)
}
