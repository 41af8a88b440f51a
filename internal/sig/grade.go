package sig

// maxPartitionPartners bounds the exhaustive search over compatible
// supporting partners.
const maxPartitionPartners = 12

// Contextual combines an intrinsic grade with the contribution of supporting
// partners. The result stays in [0,1] and grows with the contribution.
func Contextual(grade, contribution float64) float64 {
	if contribution <= 0 {
		return grade
	}
	return grade * (1 + contribution) / (1 + grade*contribution)
}

// ContextualGrade returns the grade of id raised by its supporting partners.
// Partners excluding each other never contribute together: the best
// combination of compatible partners is retained.
func (g *Graph) ContextualGrade(id ID) float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()

	in := g.inter(id)
	if in == nil {
		return 0
	}

	type partner struct {
		id      ID
		contrib float64
	}
	var partners []partner
	for _, r := range g.rels[id] {
		if !r.Kind.supports() || r.Ratio <= 1 {
			continue
		}
		p := g.inter(r.Other(id))
		if p == nil || p.Removed {
			continue
		}
		partners = append(partners, partner{id: p.ID, contrib: p.Grade * (r.Ratio - 1)})
	}
	if len(partners) == 0 {
		return in.Grade
	}

	n := len(partners)
	if n > maxPartitionPartners {
		total := 0.0
		for _, p := range partners {
			total += p.contrib
		}
		return Contextual(in.Grade, total)
	}

	best := 0.0
	for mask := 1; mask < 1<<n; mask++ {
		total := 0.0
		ok := true
		for i := 0; i < n && ok; i++ {
			if mask&(1<<i) == 0 {
				continue
			}
			for j := i + 1; j < n; j++ {
				if mask&(1<<j) != 0 && g.relation(partners[i].id, partners[j].id, RelExclusion) != nil {
					ok = false
					break
				}
			}
			total += partners[i].contrib
		}
		if ok && total > best {
			best = total
		}
	}
	return Contextual(in.Grade, best)
}
