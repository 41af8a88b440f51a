package template

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ironsheep/omr-heads/internal/log"
	"github.com/ironsheep/omr-heads/internal/shape"
)

// Catalog holds the templates of every head shape for one point size.
type Catalog struct {
	PointSize int
	templates map[shape.Shape]*Template
}

// Template returns the template for s, or nil when s has none.
func (c *Catalog) Template(s shape.Shape) *Template {
	return c.templates[s]
}

// Factory builds catalogs on demand and keeps the most recent ones.
// It is safe for concurrent use.
type Factory struct {
	params Params
	cache  *lru.Cache[int, *Catalog]
	mu     sync.Mutex // serializes catalog builds
}

// NewFactory creates a factory keeping up to size catalogs.
func NewFactory(p Params, size int) (*Factory, error) {
	cache, err := lru.New[int, *Catalog](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog cache: %w", err)
	}
	return &Factory{params: p, cache: cache}, nil
}

// Params returns the template parameters.
func (f *Factory) Params() Params { return f.params }

// Catalog returns the catalog for the given point size, building it if needed.
func (f *Factory) Catalog(pointSize int) (*Catalog, error) {
	if c, ok := f.cache.Get(pointSize); ok {
		return c, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.cache.Get(pointSize); ok {
		return c, nil
	}

	c := &Catalog{PointSize: pointSize, templates: make(map[shape.Shape]*Template)}
	for _, s := range shape.Heads {
		t, err := Build(s, pointSize, f.params)
		if err != nil {
			return nil, fmt.Errorf("failed to build %v template: %w", s, err)
		}
		c.templates[s] = t
	}
	f.cache.Add(pointSize, c)
	log.Debug("built template catalog", "point_size", pointSize, "shapes", len(c.templates))
	return c, nil
}

// Template returns the template for shape s at the given point size.
func (f *Factory) Template(s shape.Shape, pointSize int) (*Template, error) {
	c, err := f.Catalog(pointSize)
	if err != nil {
		return nil, err
	}
	t := c.Template(s)
	if t == nil {
		return nil, fmt.Errorf("no template for %v", s)
	}
	return t, nil
}
