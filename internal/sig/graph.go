// Package sig provides the system interpretation graph: an arena of
// candidate symbols (inters) identified by integer ids, linked by typed
// relations such as supports and mutual exclusions.
//
// Each system owns its own graph. All methods are safe for concurrent use;
// Inter values returned by the graph are meant to be mutated only by the
// goroutine that owns the graph.
package sig

import (
	"image"
	"sort"
	"sync"
)

// DefaultSupportRatio is the ratio of supports created without explicit ratio.
const DefaultSupportRatio = 2.0

// Graph is the interpretation graph of one system.
type Graph struct {
	System int

	mu     sync.RWMutex
	inters []*Inter
	rels   map[ID][]*Relation
}

// NewGraph creates an empty graph for the given system.
func NewGraph(system int) *Graph {
	return &Graph{System: system, rels: make(map[ID][]*Relation)}
}

// Add inserts in, assigns its id, and returns it.
func (g *Graph) Add(in *Inter) ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	in.ID = ID(len(g.inters) + 1)
	g.inters = append(g.inters, in)
	return in.ID
}

// Inter returns the inter with the given id, nil when unknown.
func (g *Graph) Inter(id ID) *Inter {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.inter(id)
}

func (g *Graph) inter(id ID) *Inter {
	if id <= 0 || int(id) > len(g.inters) {
		return nil
	}
	return g.inters[id-1]
}

// Inters returns the live inters of the given kinds, all kinds when none is
// given, in id order.
func (g *Graph) Inters(kinds ...Kind) []*Inter {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []*Inter
	for _, in := range g.inters {
		if in.Removed || !kindIn(in.Kind, kinds) {
			continue
		}
		out = append(out, in)
	}
	return out
}

// StaffInters returns the live inters of a staff with the given kinds.
func (g *Graph) StaffInters(staff int, kinds ...Kind) []*Inter {
	var out []*Inter
	for _, in := range g.Inters(kinds...) {
		if in.Staff == staff {
			out = append(out, in)
		}
	}
	return out
}

// IntersectedInters returns the live inters of the given kinds whose bounds
// intersect r.
func (g *Graph) IntersectedInters(r image.Rectangle, kinds ...Kind) []*Inter {
	var out []*Inter
	for _, in := range g.Inters(kinds...) {
		if g.BoundsOf(in.ID).Overlaps(r) {
			out = append(out, in)
		}
	}
	return out
}

func kindIn(k Kind, kinds []Kind) bool {
	if len(kinds) == 0 {
		return true
	}
	for _, kk := range kinds {
		if k == kk {
			return true
		}
	}
	return false
}

// Remove marks the inter as removed and drops all its relations.
func (g *Graph) Remove(id ID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	in := g.inter(id)
	if in == nil || in.Removed {
		return
	}
	in.Removed = true
	for _, r := range g.rels[id] {
		other := r.Other(id)
		g.rels[other] = without(g.rels[other], r)
	}
	delete(g.rels, id)
}

// BoundsOf returns the bounds of an inter. A mirror head without bounds of
// its own reports the bounds of its twin.
func (g *Graph) BoundsOf(id ID) image.Rectangle {
	g.mu.RLock()
	defer g.mu.RUnlock()
	in := g.inter(id)
	if in == nil {
		return image.Rectangle{}
	}
	if in.Bounds.Empty() {
		if m, ok := in.Twin.Mirror(); ok {
			if twin := g.inter(m); twin != nil {
				return twin.Bounds
			}
		}
	}
	return in.Bounds
}

// AddRelation links r.A and r.B. When a relation of the same kind already
// links them, it is returned unchanged and created is false.
func (g *Graph) AddRelation(r Relation) (rel *Relation, created bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if existing := g.relation(r.A, r.B, r.Kind); existing != nil {
		return existing, false
	}
	if r.Ratio == 0 && r.Kind.supports() {
		r.Ratio = DefaultSupportRatio
	}
	rel = &r
	g.rels[r.A] = append(g.rels[r.A], rel)
	g.rels[r.B] = append(g.rels[r.B], rel)
	return rel, true
}

// InsertExclusion records that a and b cannot coexist. No duplicate edge is
// ever created.
func (g *Graph) InsertExclusion(a, b ID, cause Cause) (*Relation, bool) {
	if a == b {
		return nil, false
	}
	return g.AddRelation(Relation{Kind: RelExclusion, A: a, B: b, Cause: cause})
}

// Relation returns the relation of the given kind linking a to b, or nil.
// Exclusions are found in either direction.
func (g *Graph) Relation(a, b ID, kind RelKind) *Relation {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.relation(a, b, kind)
}

func (g *Graph) relation(a, b ID, kind RelKind) *Relation {
	for _, r := range g.rels[a] {
		if r.Kind != kind {
			continue
		}
		if (r.A == a && r.B == b) || (kind.symmetric() && r.A == b && r.B == a) {
			return r
		}
	}
	return nil
}

// Excluded reports whether an exclusion links a and b.
func (g *Graph) Excluded(a, b ID) bool {
	return g.Relation(a, b, RelExclusion) != nil
}

// Relations returns the relations of id with the given kinds, all kinds when
// none is given.
func (g *Graph) Relations(id ID, kinds ...RelKind) []*Relation {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []*Relation
	for _, r := range g.rels[id] {
		if len(kinds) == 0 || relKindIn(r.Kind, kinds) {
			out = append(out, r)
		}
	}
	return out
}

// AllRelations returns every relation of the given kind, ordered by ends.
func (g *Graph) AllRelations(kind RelKind) []*Relation {
	g.mu.RLock()
	seen := make(map[*Relation]bool)
	var out []*Relation
	for _, rs := range g.rels {
		for _, r := range rs {
			if r.Kind == kind && !seen[r] {
				seen[r] = true
				out = append(out, r)
			}
		}
	}
	g.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}

// RemoveRelation drops r from the graph.
func (g *Graph) RemoveRelation(r *Relation) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rels[r.A] = without(g.rels[r.A], r)
	g.rels[r.B] = without(g.rels[r.B], r)
}

// Reattach moves relation r from inter from to inter to.
func (g *Graph) Reattach(r *Relation, from, to ID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !r.involves(from) {
		return
	}
	g.rels[from] = without(g.rels[from], r)
	if r.A == from {
		r.A = to
	} else {
		r.B = to
	}
	g.rels[to] = append(g.rels[to], r)
}

func relKindIn(k RelKind, kinds []RelKind) bool {
	for _, kk := range kinds {
		if k == kk {
			return true
		}
	}
	return false
}

func without(rs []*Relation, r *Relation) []*Relation {
	out := rs[:0]
	for _, x := range rs {
		if x != r {
			out = append(out, x)
		}
	}
	return out
}
