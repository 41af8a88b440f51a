package distance

import (
	"image"

	"gonum.org/v1/gonum/stat"
)

// Stats summarizes the known values of a field, in pixels.
type Stats struct {
	Known   int     `json:"known"`
	Unknown int     `json:"unknown"`
	Fore    int     `json:"fore"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"std_dev"`
}

// Stats computes summary statistics over the known locations.
func (f *Field) Stats() Stats {
	var s Stats
	values := make([]float64, 0, len(f.data))
	for _, v := range f.data {
		if v == Unknown {
			s.Unknown++
			continue
		}
		if v == 0 {
			s.Fore++
		}
		values = append(values, float64(v)/Normalizer)
	}
	s.Known = len(values)
	if s.Known == 0 {
		return s
	}
	s.Min, s.Max = values[0], values[0]
	for _, v := range values {
		s.Min = min(s.Min, v)
		s.Max = max(s.Max, v)
	}
	if s.Known == 1 {
		s.Mean = values[0]
		return s
	}
	s.Mean, s.StdDev = stat.MeanStdDev(values, nil)
	return s
}

// Gray renders the field for display: foreground black, distances fading to
// white at ceiling pixels, Unknown locations mid-gray.
func (f *Field) Gray(ceiling float64) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, f.width, f.height))
	if ceiling <= 0 {
		ceiling = 1
	}
	for i, v := range f.data {
		switch {
		case v == Unknown:
			img.Pix[i] = 128
		default:
			d := float64(v) / Normalizer / ceiling
			img.Pix[i] = uint8(255 * min(1, d))
		}
	}
	return img
}
