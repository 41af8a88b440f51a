package heads

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/ironsheep/omr-heads/internal/shape"
	"github.com/ironsheep/omr-heads/internal/sig"
	"github.com/ironsheep/omr-heads/internal/template"
)

// ScaleKey identifies a calibration bucket.
type ScaleKey struct {
	Shape shape.Shape
	Side  template.Side
}

type tallyEntry struct {
	shape shape.Shape
	dx    [2]float64
	set   [2]bool
}

// HeadSeedTally records, for the heads of one system, the abscissa offset
// between a head and the stem seed it was found against. It is owned by the
// goroutine processing the system.
type HeadSeedTally struct {
	entries map[sig.ID]*tallyEntry
}

// NewHeadSeedTally creates an empty tally.
func NewHeadSeedTally() *HeadSeedTally {
	return &HeadSeedTally{entries: make(map[sig.ID]*tallyEntry)}
}

// PutDx records dx for the head on the given side, replacing any previous
// value for that side.
func (t *HeadSeedTally) PutDx(head *sig.Inter, side template.Side, dx float64) {
	e := t.entries[head.ID]
	if e == nil {
		e = &tallyEntry{shape: head.Shape}
		t.entries[head.ID] = e
	}
	e.dx[side] = dx
	e.set[side] = true
}

// GetDx returns the offset recorded for the head on the given side.
func (t *HeadSeedTally) GetDx(id sig.ID, side template.Side) (float64, bool) {
	e := t.entries[id]
	if e == nil || !e.set[side] {
		return 0, false
	}
	return e.dx[side], true
}

// Sides returns how many sides carry an offset for the head.
func (t *HeadSeedTally) Sides(id sig.ID) int {
	e := t.entries[id]
	if e == nil {
		return 0
	}
	n := 0
	for _, ok := range e.set {
		if ok {
			n++
		}
	}
	return n
}

// Len returns the number of heads with at least one offset.
func (t *HeadSeedTally) Len() int { return len(t.entries) }

// PurgeRemovedHeads forgets heads that are removed from g or unknown to it,
// and returns how many were forgotten.
func (t *HeadSeedTally) PurgeRemovedHeads(g *sig.Graph) int {
	n := 0
	for id := range t.entries {
		if in := g.Inter(id); in == nil || in.Removed {
			delete(t.entries, id)
			n++
		}
	}
	return n
}

func (t *HeadSeedTally) samples(into map[ScaleKey][]float64) {
	for _, e := range t.entries {
		for side, ok := range e.set {
			if ok {
				k := ScaleKey{Shape: e.shape, Side: template.Side(side)}
				into[k] = append(into[k], e.dx[side])
			}
		}
	}
}

// ScaleRecord is the persisted form of one calibration bucket.
type ScaleRecord struct {
	Shape  shape.Shape   `json:"shape"`
	Side   template.Side `json:"side"`
	Dx     float64       `json:"dx"`
	Count  int           `json:"count,omitempty"`
	StdDev float64       `json:"std_dev,omitempty"`
}

// HeadSeedScale is the sheet-wide head to seed offset per shape and side.
// A bucket exists only when enough samples were seen.
type HeadSeedScale struct {
	records map[ScaleKey]ScaleRecord
}

// NewHeadSeedScale creates a scale from records.
func NewHeadSeedScale(records ...ScaleRecord) *HeadSeedScale {
	s := &HeadSeedScale{records: make(map[ScaleKey]ScaleRecord, len(records))}
	for _, r := range records {
		s.records[ScaleKey{Shape: r.Shape, Side: r.Side}] = r
	}
	return s
}

// Dx returns the mean offset for the bucket, if calibrated.
func (s *HeadSeedScale) Dx(sh shape.Shape, side template.Side) (float64, bool) {
	if s == nil {
		return 0, false
	}
	r, ok := s.records[ScaleKey{Shape: sh, Side: side}]
	return r.Dx, ok
}

// Len returns the number of calibrated buckets.
func (s *HeadSeedScale) Len() int {
	if s == nil {
		return 0
	}
	return len(s.records)
}

// Records returns the buckets ordered by shape then side.
func (s *HeadSeedScale) Records() []ScaleRecord {
	if s == nil {
		return nil
	}
	out := make([]ScaleRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Shape != out[j].Shape {
			return out[i].Shape < out[j].Shape
		}
		return out[i].Side < out[j].Side
	})
	return out
}

// MarshalJSON encodes the scale as an array of records.
func (s *HeadSeedScale) MarshalJSON() ([]byte, error) {
	recs := s.Records()
	if recs == nil {
		recs = []ScaleRecord{}
	}
	return json.Marshal(recs)
}

// UnmarshalJSON decodes an array of records.
func (s *HeadSeedScale) UnmarshalJSON(b []byte) error {
	var recs []ScaleRecord
	if err := json.Unmarshal(b, &recs); err != nil {
		return err
	}
	*s = *NewHeadSeedScale(recs...)
	return nil
}

// Analyze folds the tallies of every system into a scale. Only buckets with
// at least quorum samples are kept. Tallies must have been purged of removed
// heads beforehand.
func Analyze(tallies []*HeadSeedTally, quorum int) *HeadSeedScale {
	all := make(map[ScaleKey][]float64)
	for _, t := range tallies {
		if t != nil {
			t.samples(all)
		}
	}

	s := NewHeadSeedScale()
	for k, xs := range all {
		if len(xs) < quorum || len(xs) == 0 {
			continue
		}
		mean, std := stat.MeanStdDev(xs, nil)
		if len(xs) == 1 {
			std = 0
		}
		s.records[k] = ScaleRecord{Shape: k.Shape, Side: k.Side, Dx: mean, Count: len(xs), StdDev: std}
	}
	return s
}

// SaveScale writes the scale to a JSON file.
func SaveScale(path string, s *HeadSeedScale) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode head seed scale: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write head seed scale: %w", err)
	}
	return nil
}

// LoadScale reads a scale written by SaveScale.
func LoadScale(path string) (*HeadSeedScale, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read head seed scale: %w", err)
	}
	s := NewHeadSeedScale()
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to decode head seed scale: %w", err)
	}
	return s, nil
}
