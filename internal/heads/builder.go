package heads

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/ironsheep/omr-heads/internal/config"
	"github.com/ironsheep/omr-heads/internal/distance"
	"github.com/ironsheep/omr-heads/internal/log"
	"github.com/ironsheep/omr-heads/internal/sheet"
	"github.com/ironsheep/omr-heads/internal/sig"
	"github.com/ironsheep/omr-heads/internal/template"
)

// Options carries the inputs shared by all systems of a sheet. Field and
// Factory are read-only and safe to share between builders.
type Options struct {
	Field   *distance.Field
	Binary  *image.Gray
	Factory *template.Factory
	Config  *config.Config

	// Scale is an optional calibration from earlier runs.
	Scale *HeadSeedScale
}

// Builder detects the heads of one system. It is not safe for concurrent
// use; each system gets its own builder, graph, and tally.
type Builder struct {
	sys     *sheet.System
	graph   *sig.Graph
	tally   *HeadSeedTally
	field   *distance.Field
	binary  *image.Gray
	factory *template.Factory
	p       params

	resolver *Resolver
	log      *slog.Logger

	barAreas    []image.Rectangle
	competitors []*sig.Inter

	seedsPerf Perf
	rangePerf Perf
}

// NewBuilder creates the head builder of sys. The graph must already hold
// the system symbols, see Populate.
func NewBuilder(sys *sheet.System, g *sig.Graph, tally *HeadSeedTally, opts Options) *Builder {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	p := newParams(cfg, sys.Sheet().Scale)
	return &Builder{
		sys:     sys,
		graph:   g,
		tally:   tally,
		field:   opts.Field,
		binary:  opts.Binary,
		factory: opts.Factory,
		p:       p,
		resolver: &Resolver{
			Graph:               g,
			Tally:               tally,
			Scale:               opts.Scale,
			GoodGrade:           p.goodGrade,
			MaxOverlapDxRatio:   p.maxOverlapDxRatio,
			MaxOverlapAreaRatio: p.maxOverlapAreaRatio,
		},
		log: log.With("system", sys.ID),
	}
}

// Perf returns the evaluation counters of seed mode and range mode.
func (b *Builder) Perf() (seeds, rng Perf) { return b.seedsPerf, b.rangePerf }

// Resolver returns the conflict resolver used for this system.
func (b *Builder) Resolver() *Resolver { return b.resolver }

// BuildHeads detects the heads of every staff, top to bottom, and returns
// the surviving ones. Tablature staves are skipped.
func (b *Builder) BuildHeads() ([]*sig.Inter, error) {
	b.barAreas = systemBarAreas(b.graph)
	b.competitors = systemCompetitors(b.graph, b.p)

	var all []*sig.Inter
	for _, st := range b.sys.Staves {
		if st.Tablature {
			b.log.Debug("skipping tablature", "staff", st.ID)
			continue
		}

		cat, err := b.factory.Catalog(st.PointSize)
		if err != nil {
			return all, fmt.Errorf("staff %d: %w", st.ID, err)
		}

		ch := b.processStaff(st, cat, true)

		// Seed heads compete with the range heads of this staff and the next.
		b.competitors = append(b.competitors, ch...)
		sortByAbscissa(b.competitors)

		ch = append(ch, b.processStaff(st, cat, false)...)

		sortByFullAbscissa(ch)
		ch, dups := b.resolver.PurgeDuplicates(ch)
		overlaps := b.resolver.PurgeOverlaps(ch)
		b.tally.PurgeRemovedHeads(b.graph)

		for _, h := range ch {
			if h.Shape.IsStemLess() {
				h.Grade = boost(h.Grade, b.p.stemLessBoost)
			}
		}

		b.log.Debug("staff heads", "staff", st.ID, "count", len(ch), "duplicates", dups, "overlaps", overlaps)
		all = append(all, ch...)
	}

	b.log.Debug("seeds perf", "perf", b.seedsPerf.String())
	b.log.Debug("range perf", "perf", b.rangePerf.String())
	return all, nil
}

// processStaff scans every pitch of the staff: spaces and lines from the
// space above the top line to the space below the bottom line, then
// ledgers above and below.
func (b *Builder) processStaff(st *sheet.Staff, cat *template.Catalog, useSeeds bool) []*sig.Inter {
	var ch []*sig.Inter
	n := st.LineCount()
	pitch := -n
	var prev *lineAdapter

	for _, l := range st.Lines {
		a := staffLineAdapter(l)

		ch = append(ch, b.newScanner(st, cat, a, prev, -1, pitch, useSeeds).lookup()...)
		pitch++

		ch = append(ch, b.newScanner(st, cat, a, nil, 0, pitch, useSeeds).lookup()...)
		pitch++

		if pitch == n {
			ch = append(ch, b.newScanner(st, cat, a, nil, 1, pitch, useSeeds).lookup()...)
			pitch++
		}
		prev = a
	}

	if n == 1 {
		return ch
	}

	for _, dir := range []int{-1, 1} {
		lookFurther := b.lookFurther(st, dir)
		pitch = dir * st.MaxPitch()

		for i := dir; ; i += dir {
			set := st.LedgersAt(i)
			if len(set) == 0 {
				break
			}
			pitch += 2 * dir

			for _, lg := range set {
				a := ledgerAdapter(lg)
				ch = append(ch, b.newScanner(st, cat, a, nil, 0, pitch, useSeeds).lookup()...)
				if lookFurther {
					ch = append(ch, b.newScanner(st, cat, a, nil, dir, pitch+dir, useSeeds).lookup()...)
				}
			}
		}
	}
	return ch
}

// lookFurther tells whether heads may sit beyond the ledgers of st in
// direction dir. In a merged two-staff part, the ledgers between the staves
// are shared and only scanned on the ledger itself.
func (b *Builder) lookFurther(st *sheet.Staff, dir int) bool {
	part := b.sys.PartOf(st)
	if part == nil || !part.Merged || len(part.Staves) != 2 {
		return true
	}
	var first, last *sheet.Staff
	for _, s := range b.sys.Staves {
		if s.ID != part.Staves[0] && s.ID != part.Staves[1] {
			continue
		}
		if first == nil {
			first = s
		}
		last = s
	}
	switch {
	case dir > 0 && st == first:
		return false
	case dir < 0 && st == last:
		return false
	}
	return true
}
