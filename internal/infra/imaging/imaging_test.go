package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngOf(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestNormalizeShrinksWideImages(t *testing.T) {
	out, err := Normalize(bytes.NewReader(pngOf(t, 1600, 400)), "image/png")
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, MaxWidth, img.Bounds().Dx())
	assert.Equal(t, 200, img.Bounds().Dy())
}

func TestNormalizeKeepsSmallImages(t *testing.T) {
	out, err := Normalize(bytes.NewReader(pngOf(t, 120, 90)), "")
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 120, img.Bounds().Dx())
}

func TestNormalizeRejectsNonImages(t *testing.T) {
	_, err := Normalize(strings.NewReader("%PDF-1.4"), "application/pdf")
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = Normalize(strings.NewReader("not an image"), "image/png")
	assert.ErrorIs(t, err, ErrUnsupportedType)
}
