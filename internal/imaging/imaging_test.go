package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	return img
}

func jpegBytes(w, h int) []byte {
	var buf bytes.Buffer
	jpeg.Encode(&buf, testImage(w, h), &jpeg.Options{Quality: 90})
	return buf.Bytes()
}

func pngBytes(w, h int) []byte {
	var buf bytes.Buffer
	png.Encode(&buf, testImage(w, h))
	return buf.Bytes()
}

func size(t *testing.T, data []byte) (int, int) {
	t.Helper()
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("expected jpeg output, got %s", format)
	}
	return img.Bounds().Dx(), img.Bounds().Dy()
}

func TestProcessPhoto(t *testing.T) {
	tests := []struct {
		name         string
		data         []byte
		fullW, fullH int
		thW, thH     int
	}{
		{"small jpeg", jpegBytes(100, 80), 100, 80, 100, 80},
		{"png", pngBytes(300, 150), 300, 150, ThumbDimension, ThumbDimension / 2},
		{"large landscape", jpegBytes(2560, 1280), MaxDimension, MaxDimension / 2, ThumbDimension, ThumbDimension / 2},
		{"large portrait", jpegBytes(1000, 2000), MaxDimension / 2, MaxDimension, ThumbDimension / 2, ThumbDimension},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ProcessPhoto(bytes.NewReader(tt.data))
			if err != nil {
				t.Fatalf("ProcessPhoto: %v", err)
			}
			if p.MIME != OutputMIME {
				t.Errorf("expected %s, got %s", OutputMIME, p.MIME)
			}
			if w, h := size(t, p.Full); w != tt.fullW || h != tt.fullH {
				t.Errorf("full: expected %dx%d, got %dx%d", tt.fullW, tt.fullH, w, h)
			}
			if w, h := size(t, p.Thumb); w != tt.thW || h != tt.thH {
				t.Errorf("thumb: expected %dx%d, got %dx%d", tt.thW, tt.thH, w, h)
			}
		})
	}
}

func TestProcessPhotoRejectsOtherFormats(t *testing.T) {
	for _, data := range [][]byte{[]byte("not an image"), []byte("GIF89a...")} {
		if _, err := ProcessPhoto(bytes.NewReader(data)); !errors.Is(err, ErrUnsupported) {
			t.Errorf("expected ErrUnsupported for %q, got %v", data, err)
		}
	}
}

func TestProcessPhotoTooLarge(t *testing.T) {
	data := make([]byte, MaxUploadBytes+10)
	copy(data, "\xff\xd8\xff")
	if _, err := ProcessPhoto(bytes.NewReader(data)); !errors.Is(err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}
}

func TestProcessPhotoCorrupt(t *testing.T) {
	data := jpegBytes(50, 50)[:40]
	if _, err := ProcessPhoto(bytes.NewReader(data)); err == nil {
		t.Error("expected error for truncated JPEG")
	}
}
