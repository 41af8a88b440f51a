package imaging

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
)

// Mark is one rectangle of an annotation overlay.
type Mark struct {
	Rect image.Rectangle

	// Group selects the color; marks of one chord share it. Zero is drawn
	// in neutral gray.
	Group int

	// Grade fades the color toward gray as it drops below 1.
	Grade float64

	// Label is printed above the rectangle when positive.
	Label int

	// Thick draws a two-pixel outline.
	Thick bool
}

// OverlayResult contains an annotated page encoded as PNG.
type OverlayResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Marks       int    `json:"marks"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

var neutral = colorful.Color{R: 0.55, G: 0.55, B: 0.55}

// GroupColor returns the overlay color of a group. Successive groups are
// spread around the hue circle by the golden angle.
func GroupColor(group int) colorful.Color {
	if group <= 0 {
		return neutral
	}
	hue := math.Mod(float64(group)*137.508, 360)
	return colorful.Hsv(hue, 0.85, 0.85)
}

func markColor(m Mark) color.NRGBA {
	c := GroupColor(m.Group)
	grade := math.Max(0, math.Min(1, m.Grade))
	c = c.BlendLab(neutral, 1-grade).Clamped()
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}

// Annotate returns a copy of img with every mark outlined. Mark rectangles
// are in page coordinates.
func Annotate(img image.Image, marks []Mark) *image.NRGBA {
	origin := img.Bounds().Min
	dst := imaging.Clone(img)
	for _, m := range marks {
		r := m.Rect.Sub(origin)
		c := markColor(m)
		outline(dst, r, c)
		if m.Thick {
			outline(dst, r.Inset(1), c)
		}
		if m.Label > 0 {
			drawLabel(dst, r.Min.X, r.Min.Y-8, strconv.Itoa(m.Label), color.NRGBA{255, 255, 255, 255}, c)
		}
	}
	return dst
}

// EncodeOverlay encodes an annotated page as base64 PNG.
func EncodeOverlay(img image.Image, marks int) (*OverlayResult, error) {
	data, err := EncodePNG(img)
	if err != nil {
		return nil, err
	}
	return &OverlayResult{
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		Marks:       marks,
		ImageBase64: data,
		MimeType:    "image/png",
	}, nil
}

// SaveOverlay writes an annotated page to path, the format following the
// file extension.
func SaveOverlay(img image.Image, path string) error {
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("failed to save overlay: %w", err)
	}
	return nil
}

func outline(img *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	if r.Empty() {
		return
	}
	b := img.Bounds()
	set := func(x, y int) {
		if image.Pt(x, y).In(b) {
			img.SetNRGBA(x, y, c)
		}
	}
	for x := r.Min.X; x < r.Max.X; x++ {
		set(x, r.Min.Y)
		set(x, r.Max.Y-1)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		set(r.Min.X, y)
		set(r.Max.X-1, y)
	}
}

// digits is a 3x5 pixel font.
var digits = map[rune][]string{
	'0': {"111", "101", "101", "101", "111"},
	'1': {"010", "110", "010", "010", "111"},
	'2': {"111", "001", "111", "100", "111"},
	'3': {"111", "001", "111", "001", "111"},
	'4': {"101", "101", "111", "001", "001"},
	'5': {"111", "100", "111", "001", "111"},
	'6': {"111", "100", "111", "101", "111"},
	'7': {"111", "001", "001", "001", "001"},
	'8': {"111", "101", "111", "101", "111"},
	'9': {"111", "101", "111", "001", "111"},
}

// drawLabel prints text at (x,y) over a filled background, clipped to img.
func drawLabel(img *image.NRGBA, x, y int, text string, fg, bg color.NRGBA) {
	const charWidth, labelHeight = 4, 7
	b := img.Bounds()
	set := func(px, py int, c color.NRGBA) {
		if image.Pt(px, py).In(b) {
			img.SetNRGBA(px, py, c)
		}
	}

	for dy := -1; dy < labelHeight-1; dy++ {
		for dx := -1; dx < len(text)*charWidth; dx++ {
			set(x+dx, y+dy, bg)
		}
	}

	cx := x
	for _, ch := range text {
		for row, line := range digits[ch] {
			for col, pixel := range line {
				if pixel == '1' {
					set(cx+col, y+row, fg)
				}
			}
		}
		cx += charWidth
	}
}
