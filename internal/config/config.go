// Package config holds the tunable constants of the head detection pipeline.
//
// Values are loaded from a JSON file and may be overridden by environment
// variables. Fractions named "...Frac" are expressed in interline units and
// converted to pixels against the sheet scale by the consuming package.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Config holds runtime configuration for head detection.
type Config struct {
	// Page binarization
	BinaryThreshold uint8 `json:"binary_threshold"`

	// Template matching
	ForeWeight        float64 `json:"fore_weight"`
	BackWeight        float64 `json:"back_weight"`
	HoleWeight        float64 `json:"hole_weight"`
	PointCap          float64 `json:"point_cap"`
	MaxDistanceHigh   float64 `json:"max_distance_high"`
	MaxDistanceLow    float64 `json:"max_distance_low"`
	ReallyBadDistance float64 `json:"really_bad_distance"`
	TemplateMargin    float64 `json:"template_margin"`
	SmallRatio        float64 `json:"small_ratio"`
	CatalogCacheSize  int     `json:"catalog_cache_size"`

	// Grades
	MinGrade           float64 `json:"min_grade"`
	GoodGrade          float64 `json:"good_grade"`
	MinContextualGrade float64 `json:"min_contextual_grade"`

	// Scanning
	MaxTemplateDxFrac     float64 `json:"max_template_dx"`
	MaxClosedDyFrac       float64 `json:"max_closed_dy"`
	MaxOpenDyFrac         float64 `json:"max_open_dy"`
	PitchMargin           float64 `json:"pitch_margin"`
	ShrinkVertRatio       float64 `json:"shrink_vert_ratio"`
	BarVerticalMarginFrac float64 `json:"bar_vertical_margin"`
	MinHoleWhiteRatio     float64 `json:"min_hole_white_ratio"`

	// Resolution
	GradeMargin        float64 `json:"grade_margin"`
	MinIouHeads        float64 `json:"min_iou_heads"`
	StemLessBoost      float64 `json:"stem_less_boost"`
	MinBeamWidthFrac   float64 `json:"min_beam_width"`
	MaxOverlapDxRatio  float64 `json:"max_overlap_dx_ratio"`
	MaxOverlapAreaRate float64 `json:"max_overlap_area_ratio"`

	// Head-stem links
	StemXInGapFrac   float64 `json:"stem_x_in_gap"`
	StemXOutGapFrac  float64 `json:"stem_x_out_gap"`
	StemYGapFrac     float64 `json:"stem_y_gap"`
	StemAnchorHeight float64 `json:"stem_anchor_height_ratio"`

	// Calibration
	SeedQuorum int `json:"seed_quorum"`

	// Execution
	Workers int `json:"workers"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		BinaryThreshold: 140,

		ForeWeight:        1.0,
		BackWeight:        1.0,
		HoleWeight:        1.0,
		PointCap:          1.0,
		MaxDistanceHigh:   0.5,
		MaxDistanceLow:    0.4,
		ReallyBadDistance: 1.0,
		TemplateMargin:    0.13,
		SmallRatio:        0.67,
		CatalogCacheSize:  16,

		MinGrade:           0.1,
		GoodGrade:          0.5,
		MinContextualGrade: 0.5,

		MaxTemplateDxFrac:     0.375,
		MaxClosedDyFrac:       0,
		MaxOpenDyFrac:         0.2,
		PitchMargin:           0.75,
		ShrinkVertRatio:       0.5,
		BarVerticalMarginFrac: 2.0,
		MinHoleWhiteRatio:     0.2,

		GradeMargin:        0.1,
		MinIouHeads:        0.1,
		StemLessBoost:      0,
		MinBeamWidthFrac:   2.5,
		MaxOverlapDxRatio:  0.2,
		MaxOverlapAreaRate: 0.25,

		StemXInGapFrac:   0.2,
		StemXOutGapFrac:  0.15,
		StemYGapFrac:     0.8,
		StemAnchorHeight: 0.275,

		SeedQuorum: 10,

		Workers: 4,
	}
}

// Validate clamps/normalizes values to safe ranges.
func (c *Config) Validate() error {
	def := DefaultConfig()
	if c.BinaryThreshold == 0 {
		c.BinaryThreshold = def.BinaryThreshold
	}
	if c.ForeWeight < 0 {
		c.ForeWeight = def.ForeWeight
	}
	if c.BackWeight < 0 {
		c.BackWeight = def.BackWeight
	}
	if c.HoleWeight < 0 {
		c.HoleWeight = def.HoleWeight
	}
	if c.ForeWeight+c.BackWeight+c.HoleWeight == 0 {
		return fmt.Errorf("template weights are all zero")
	}
	if c.PointCap <= 0 {
		c.PointCap = def.PointCap
	}
	if c.MaxDistanceHigh <= 0 {
		c.MaxDistanceHigh = def.MaxDistanceHigh
	}
	if c.MaxDistanceLow <= 0 || c.MaxDistanceLow > c.MaxDistanceHigh {
		c.MaxDistanceLow = c.MaxDistanceHigh * 0.8
	}
	if c.ReallyBadDistance < c.MaxDistanceLow {
		c.ReallyBadDistance = c.MaxDistanceLow
	}
	if c.TemplateMargin <= 0 {
		c.TemplateMargin = def.TemplateMargin
	}
	if c.SmallRatio <= 0 || c.SmallRatio > 1 {
		c.SmallRatio = def.SmallRatio
	}
	if c.CatalogCacheSize <= 0 {
		c.CatalogCacheSize = def.CatalogCacheSize
	}
	c.MinGrade = clamp01(c.MinGrade)
	c.GoodGrade = clamp01(c.GoodGrade)
	c.MinContextualGrade = clamp01(c.MinContextualGrade)
	if c.GoodGrade < c.MinGrade {
		c.GoodGrade = c.MinGrade
	}
	if c.MaxTemplateDxFrac < 0 {
		c.MaxTemplateDxFrac = def.MaxTemplateDxFrac
	}
	if c.MaxClosedDyFrac < 0 {
		c.MaxClosedDyFrac = 0
	}
	if c.MaxOpenDyFrac < 0 {
		c.MaxOpenDyFrac = def.MaxOpenDyFrac
	}
	c.MinHoleWhiteRatio = clamp01(c.MinHoleWhiteRatio)
	c.GradeMargin = clamp01(c.GradeMargin)
	c.MinIouHeads = clamp01(c.MinIouHeads)
	c.StemLessBoost = clamp01(c.StemLessBoost)
	if c.StemXInGapFrac < 0 {
		c.StemXInGapFrac = def.StemXInGapFrac
	}
	if c.StemXOutGapFrac < 0 {
		c.StemXOutGapFrac = def.StemXOutGapFrac
	}
	if c.StemYGapFrac < 0 {
		c.StemYGapFrac = def.StemYGapFrac
	}
	if c.StemAnchorHeight <= 0 || c.StemAnchorHeight >= 0.5 {
		c.StemAnchorHeight = def.StemAnchorHeight
	}
	if c.SeedQuorum <= 0 {
		c.SeedQuorum = def.SeedQuorum
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	return nil
}

// ApplyEnv overrides selected fields from OMR_HEADS_WORKERS and OMR_HEADS_QUORUM.
// Malformed values are reported and leave the field untouched.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("OMR_HEADS_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid OMR_HEADS_WORKERS %q: %w", v, err)
		}
		c.Workers = n
	}
	if v := os.Getenv("OMR_HEADS_QUORUM"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid OMR_HEADS_QUORUM %q: %w", v, err)
		}
		c.SeedQuorum = n
	}
	return c.Validate()
}

// Load attempts to read configuration from the given JSON file path. If the file does not
// exist it returns DefaultConfig(). On JSON error it returns defaults with the error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	if err := dec.Decode(cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return DefaultConfig(), err
	}
	return cfg, nil
}

// Save writes the configuration to the given path in JSON format.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
