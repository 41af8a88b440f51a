package sheet

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/google/uuid"
)

// LoadLayoutFile reads a layout document from a JSON file.
func LoadLayoutFile(path string) (*Sheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open layout: %w", err)
	}
	defer f.Close()
	return LoadLayout(f)
}

// LoadLayout decodes a layout document and prepares it for use.
func LoadLayout(r io.Reader) (*Sheet, error) {
	var s Sheet
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode layout: %w", err)
	}
	if err := s.Prepare(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Prepare validates a sheet built in memory or decoded from JSON, fills
// defaults, fits every line, and links staves and systems back to their
// containers.
func (s *Sheet) Prepare() error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Scale.Interline <= 0 {
		return fmt.Errorf("invalid interline %d", s.Scale.Interline)
	}
	if s.Scale.MaxStem <= 0 {
		s.Scale.MaxStem = max(1, s.Scale.Interline/5)
	}

	staves := 0
	for _, sys := range s.Systems {
		sys.sheet = s
		for _, st := range sys.Staves {
			if err := st.prepare(sys, s.Scale); err != nil {
				return fmt.Errorf("system %d: %w", sys.ID, err)
			}
			staves++
		}
		sort.SliceStable(sys.Staves, func(i, j int) bool {
			return sys.Staves[i].FirstLine().YAt(0) < sys.Staves[j].FirstLine().YAt(0)
		})
		if len(sys.Parts) == 0 {
			for _, st := range sys.Staves {
				sys.Parts = append(sys.Parts, &Part{ID: st.ID, Staves: []int{st.ID}})
			}
		}
		sort.Slice(sys.Measures, func(i, j int) bool { return sys.Measures[i].Left < sys.Measures[j].Left })
	}
	if staves == 0 {
		return ErrNoStaff
	}
	return nil
}

func (st *Staff) prepare(sys *System, scale Scale) error {
	st.system = sys
	if len(st.Lines) == 0 {
		return fmt.Errorf("staff %d: %w", st.ID, ErrNoStaff)
	}
	for i, l := range st.Lines {
		if err := l.Fit(); err != nil {
			return fmt.Errorf("staff %d line %d: %w", st.ID, i, err)
		}
	}
	sort.Slice(st.Lines, func(i, j int) bool {
		x := st.Lines[i].Left()
		return st.Lines[i].YAt(x) < st.Lines[j].YAt(x)
	})
	for idx, lgs := range st.Ledgers {
		for _, lg := range lgs {
			if err := lg.Fit(); err != nil {
				return fmt.Errorf("staff %d ledger %d: %w", st.ID, lg.ID, err)
			}
		}
		sort.Slice(lgs, func(i, j int) bool { return lgs[i].Left() < lgs[j].Left() })
		st.Ledgers[idx] = lgs
	}
	if st.PointSize <= 0 {
		st.PointSize = 4 * scale.Interline
	}
	return nil
}
