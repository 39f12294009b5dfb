package utils

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func TestReadImageMetadata_NoExif(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 40, 25))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}

	r := bytes.NewReader(buf.Bytes())
	meta, err := ReadImageMetadata(r)
	if err != nil {
		t.Fatalf("ReadImageMetadata: %v", err)
	}
	if meta.Width == nil || *meta.Width != 40 || meta.Height == nil || *meta.Height != 25 {
		t.Errorf("dimensions = %v x %v, want 40 x 25", meta.Width, meta.Height)
	}
	if meta.TakenAt != nil {
		t.Errorf("TakenAt = %v, want nil for png without exif", meta.TakenAt)
	}
	if pos, _ := r.Seek(0, 1); pos != 0 {
		t.Errorf("reader left at offset %d, want 0", pos)
	}
}
