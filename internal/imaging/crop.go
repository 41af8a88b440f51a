package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// CropResult contains a cropped view encoded as PNG.
type CropResult struct {
	X           int    `json:"x"`
	Y           int    `json:"y"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// Crop extracts r grown by margin pixels on every side, clipped to the
// image, and scales it by scale when scale is positive and not 1.
// X and Y of the result give the page position of the crop origin.
func Crop(img image.Image, r image.Rectangle, margin int, scale float64) (*CropResult, error) {
	area := r.Inset(-margin).Intersect(img.Bounds())
	if area.Empty() {
		return nil, fmt.Errorf("crop region %v outside image bounds %v", r, img.Bounds())
	}

	cropped := imaging.Crop(img, area)
	if scale != 1.0 && scale > 0 {
		w := max(1, int(float64(area.Dx())*scale))
		h := max(1, int(float64(area.Dy())*scale))
		cropped = imaging.Resize(cropped, w, h, imaging.NearestNeighbor)
	}

	data, err := EncodePNG(cropped)
	if err != nil {
		return nil, err
	}
	return &CropResult{
		X:           area.Min.X,
		Y:           area.Min.Y,
		Width:       cropped.Bounds().Dx(),
		Height:      cropped.Bounds().Dy(),
		ImageBase64: data,
		MimeType:    "image/png",
	}, nil
}

// EncodePNG encodes img as base64 PNG.
func EncodePNG(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
