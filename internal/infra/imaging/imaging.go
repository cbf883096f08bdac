// backend/internal/infra/imaging/imaging.go
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"strings"

	"github.com/nfnt/resize"
)

// Policy
const (
	MaxWidth    = 800
	JPEGQuality = 80
	// MaxUploadBytes bounds what Normalize will read.
	MaxUploadBytes = 10 << 20
)

var (
	ErrUnsupportedType = errors.New("imaging: only PNG, JPG, JPEG and GIF images are allowed")
	ErrTooLarge        = errors.New("imaging: image is too large")
)

// Allowed reports whether contentType is an image we accept. An empty type
// is allowed and left to the decoder.
func Allowed(contentType string) bool {
	switch strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])) {
	case "", "image/jpeg", "image/jpg", "image/png", "image/gif":
		return true
	}
	return false
}

// Normalize decodes an uploaded image, shrinks it to MaxWidth (aspect kept,
// never enlarged) and re-encodes it as JPEG.
func Normalize(r io.Reader, contentType string) ([]byte, error) {
	if !Allowed(contentType) {
		return nil, ErrUnsupportedType
	}
	raw, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return nil, err
	}
	if len(raw) > MaxUploadBytes {
		return nil, ErrTooLarge
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("imaging: decode: %w", ErrUnsupportedType)
	}
	if img.Bounds().Dx() > MaxWidth {
		img = resize.Resize(MaxWidth, 0, img, resize.Lanczos3)
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("imaging: encode: %w", err)
	}
	return out.Bytes(), nil
}
