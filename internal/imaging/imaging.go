// Package imaging normalizes uploaded item photos: it accepts JPEG or PNG,
// bounds the size and produces a full-size copy plus a thumbnail, both
// re-encoded as JPEG.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
)

// Output limits.
const (
	MaxDimension   = 1280
	ThumbDimension = 240
	JPEGQuality    = 85
	ThumbQuality   = 75
)

// MaxUploadBytes caps how much of an upload is read.
const MaxUploadBytes = 10 << 20

// OutputMIME is the type of every processed photo.
const OutputMIME = "image/jpeg"

var (
	ErrUnsupported = errors.New("unsupported image format (only JPEG and PNG accepted)")
	ErrTooLarge    = errors.New("image upload too large")
)

var allowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// Photo is a processed upload.
type Photo struct {
	Full  []byte
	Thumb []byte
	MIME  string
}

// ProcessPhoto reads an upload, checks its type by sniffing the bytes and
// returns the downscaled photo and its thumbnail.
func ProcessPhoto(r io.Reader) (*Photo, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading image data: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return nil, ErrTooLarge
	}

	// Client headers are not trusted.
	if detected := http.DetectContentType(data); !allowedMIME[detected] {
		return nil, fmt.Errorf("%w: got %s", ErrUnsupported, detected)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	full, err := encode(fit(img, MaxDimension, draw.CatmullRom), JPEGQuality)
	if err != nil {
		return nil, err
	}
	thumb, err := encode(fit(img, ThumbDimension, draw.ApproxBiLinear), ThumbQuality)
	if err != nil {
		return nil, err
	}

	return &Photo{Full: full, Thumb: thumb, MIME: OutputMIME}, nil
}

func encode(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

// fit scales img down so neither side exceeds maxDim, keeping the aspect
// ratio. Smaller images are returned as they are.
func fit(img image.Image, maxDim int, scaler draw.Scaler) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}

	newW, newH := maxDim, maxDim
	if w > h {
		newH = max(1, h*maxDim/w)
	} else {
		newW = max(1, w*maxDim/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	scaler.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

func init() {
	image.RegisterFormat("jpeg", "\xff\xd8", jpeg.Decode, jpeg.DecodeConfig)
	image.RegisterFormat("png", "\x89PNG", png.Decode, png.DecodeConfig)
}
