package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestNormalizeDownscalesLargePNG(t *testing.T) {
	photo, err := Normalize(bytes.NewReader(encodePNG(t, 2048, 1024)))
	require.NoError(t, err)
	assert.Equal(t, 1024, photo.Width)
	assert.Equal(t, 512, photo.Height)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(photo.Data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 1024, cfg.Width)
}

func TestNormalizeKeepsSmallImageSize(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))

	photo, err := Normalize(&buf)
	require.NoError(t, err)
	assert.Equal(t, 40, photo.Width)
	assert.Equal(t, 30, photo.Height)
}

func TestNormalizeAcceptsGIF(t *testing.T) {
	pal := image.NewPaletted(image.Rect(0, 0, 10, 10), []color.Color{color.Black, color.White})
	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, pal, nil))

	photo, err := Normalize(&buf)
	require.NoError(t, err)
	assert.Equal(t, 10, photo.Width)
}

func TestNormalizeRejectsNonImage(t *testing.T) {
	_, err := Normalize(strings.NewReader("%PDF-1.4 not an image"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestNormalizeRejectsTruncatedImage(t *testing.T) {
	data := encodePNG(t, 20, 20)
	_, err := Normalize(bytes.NewReader(data[:30]))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}
