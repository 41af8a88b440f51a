package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"
	"testing"
)

func TestCrop(t *testing.T) {
	img := createPage(100, 100)

	tests := []struct {
		name         string
		r            image.Rectangle
		margin       int
		scale        float64
		wantX, wantY int
		wantW, wantH int
	}{
		{"inside", image.Rect(40, 40, 60, 50), 0, 1, 40, 40, 20, 10},
		{"margin", image.Rect(40, 40, 60, 50), 5, 1, 35, 35, 30, 20},
		{"clipped", image.Rect(0, 90, 10, 100), 4, 1, 0, 86, 14, 14},
		{"scaled", image.Rect(40, 40, 60, 50), 0, 2, 40, 40, 40, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Crop(img, tt.r, tt.margin, tt.scale)
			if err != nil {
				t.Fatalf("Crop failed: %v", err)
			}
			if res.X != tt.wantX || res.Y != tt.wantY {
				t.Errorf("origin: got (%d,%d), want (%d,%d)", res.X, res.Y, tt.wantX, tt.wantY)
			}
			if res.Width != tt.wantW || res.Height != tt.wantH {
				t.Errorf("dimensions: got %dx%d, want %dx%d", res.Width, res.Height, tt.wantW, tt.wantH)
			}
			if res.MimeType != "image/png" {
				t.Errorf("MimeType: got %s, want image/png", res.MimeType)
			}
		})
	}
}

func TestCropContent(t *testing.T) {
	img := createPage(100, 100)
	res, err := Crop(img, image.Rect(20, 20, 30, 30), 0, 1)
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}
	data, err := base64.StdEncoding.DecodeString(res.ImageBase64)
	if err != nil {
		t.Fatalf("failed to decode base64: %v", err)
	}
	out, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to decode PNG: %v", err)
	}

	// The square starts at 25.
	if r, _, _, _ := out.At(2, 2).RGBA(); r>>8 != 255 {
		t.Errorf("pixel (2,2) should be white, got r=%d", r>>8)
	}
	if r, _, _, _ := out.At(7, 7).RGBA(); r>>8 != 0 {
		t.Errorf("pixel (7,7) should be black, got r=%d", r>>8)
	}
}

func TestCropOutside(t *testing.T) {
	img := createPage(50, 50)
	if _, err := Crop(img, image.Rect(60, 60, 80, 80), 2, 1); err == nil {
		t.Error("Crop outside the image should fail")
	}
}
