package pipeline

import (
	"context"
	"errors"
	"image"

	"github.com/ironsheep/omr-heads/internal/config"
	"github.com/ironsheep/omr-heads/internal/heads"
	"github.com/ironsheep/omr-heads/internal/imaging"
	"github.com/ironsheep/omr-heads/internal/log"
	"github.com/ironsheep/omr-heads/internal/sheet"
	"github.com/ironsheep/omr-heads/internal/template"
)

// Files names the inputs of a detection run on disk.
type Files struct {
	// Layout is the JSON layout document of the sheet. Mandatory.
	Layout string

	// Image is the page image. A missing page yields an empty result.
	Image string
}

// DetectFiles loads a layout and its page through cache, then runs head
// detection. cfg and factory may be nil.
func DetectFiles(ctx context.Context, cache *imaging.PageCache, files Files, cfg *config.Config,
	factory *template.Factory, scale *heads.HeadSeedScale) (*Result, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s, err := sheet.LoadLayoutFile(files.Layout)
	if err != nil {
		return nil, err
	}

	var binary *image.Gray
	bin, err := cache.LoadBinary(files.Image, cfg.BinaryThreshold)
	switch {
	case errors.Is(err, imaging.ErrNoPage):
		log.Info("page image unavailable", "sheet", s.ID, "error", err)
	case err != nil:
		return nil, err
	default:
		binary = bin
	}

	return Run(ctx, Input{Sheet: s, Binary: binary, Config: cfg, Factory: factory, Scale: scale})
}

// Marks returns the overlay marks of the result: one thick rectangle per
// chord, labeled by chord id, and one thin rectangle per head colored like
// its chord.
func (r *Result) Marks() []imaging.Mark {
	var marks []imaging.Mark
	for _, sr := range r.Systems {
		for _, c := range sr.Chords {
			marks = append(marks, imaging.Mark{Rect: c.Bounds.Rect().Inset(-2), Group: c.ID, Grade: c.Grade, Label: c.ID, Thick: true})
		}
		for _, h := range sr.Heads {
			marks = append(marks, imaging.Mark{Rect: h.Bounds.Rect(), Group: h.Chord, Grade: h.Grade})
		}
	}
	return marks
}

// Head returns the head of system with the given id. Ids are only unique
// within a system.
func (r *Result) Head(system, id int) (Head, bool) {
	for _, sr := range r.Systems {
		if sr.System != system {
			continue
		}
		for _, h := range sr.Heads {
			if h.ID == id {
				return h, true
			}
		}
	}
	return Head{}, false
}
