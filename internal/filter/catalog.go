package filter

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/solatis/itemfilter/internal/types"
	"go.uber.org/zap"
)

// Catalog is the name-indexed table of filters. Parent links are resolved
// by lookup in this table.
//
// Stored filters are private clones and are never mutated in place: edits
// replace the entry, so readers holding a compiled Chain or a Get result are
// unaffected by concurrent writers.
//
// Read-modify-write sequences that also touch storage run inside Edit so
// that validation always sees the result of every earlier edit.
type Catalog struct {
	edit     sync.Mutex
	mu       sync.RWMutex
	filters  map[string]*Filter
	registry Registry
	logger   *zap.Logger
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithLogger sets the logger used for chain execution diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Catalog) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCatalog creates an empty catalog resolving rules through registry.
// A nil registry resolves only the test rule.
func NewCatalog(registry Registry, opts ...Option) *Catalog {
	c := &Catalog{
		filters:  make(map[string]*Filter),
		registry: registry,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Edit runs fn holding the catalog's edit lock. Edits, including reloads
// that Replace the whole table, are serialized; Get, List, Compile and Apply
// are not blocked. fn must not call Edit.
func (c *Catalog) Edit(fn func() error) error {
	c.edit.Lock()
	defer c.edit.Unlock()
	return fn()
}

// Put stores a copy of f, replacing any filter with the same name.
func (c *Catalog) Put(f *Filter) error {
	if f == nil {
		return fmt.Errorf("%w: nil filter", types.ErrInvalidArgument)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filters[f.name] = f.Clone()
	return nil
}

// Replace swaps the whole table for filters. Duplicate names are rejected
// and leave the current table in place.
func (c *Catalog) Replace(filters []*Filter) error {
	next := make(map[string]*Filter, len(filters))
	for _, f := range filters {
		if f == nil {
			return fmt.Errorf("%w: nil filter", types.ErrInvalidArgument)
		}
		if _, ok := next[f.name]; ok {
			return fmt.Errorf("%w: %s", types.ErrFilterExists, f.name)
		}
		next[f.name] = f.Clone()
	}
	c.mu.Lock()
	c.filters = next
	c.mu.Unlock()
	return nil
}

// Get returns a copy of the named filter.
func (c *Catalog) Get(name string) (*Filter, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.filters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrFilterNotFound, name)
	}
	return f.Clone(), nil
}

// Delete removes the named filter. A filter that is still another filter's
// parent is kept and ErrFilterInUse is returned.
func (c *Catalog) Delete(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.filters[name]; !ok {
		return fmt.Errorf("%w: %s", types.ErrFilterNotFound, name)
	}
	for _, f := range c.filters {
		if f.Parent == name {
			return fmt.Errorf("%w: %s is parent of %s", types.ErrFilterInUse, name, f.name)
		}
	}
	delete(c.filters, name)
	return nil
}

// List returns copies of all filters sorted by name.
func (c *Catalog) List() []*Filter {
	c.mu.RLock()
	out := make([]*Filter, 0, len(c.filters))
	for _, f := range c.filters {
		out = append(out, f.Clone())
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// FindByAuthtype returns the filter registered for a legacy authtype.
// Lowest name wins if several share one.
func (c *Catalog) FindByAuthtype(authtype int) (*Filter, error) {
	for _, f := range c.List() {
		if f.LegacyAuthtype != nil && *f.LegacyAuthtype == authtype {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: authtype %d", types.ErrFilterNotFound, authtype)
}

// Compile gathers the named filter's rules and every ancestor's, resolves
// them, and orders them by priority.
func (c *Catalog) Compile(name string) (*Chain, error) {
	defs, err := c.gather(name)
	if err != nil {
		return nil, err
	}
	return compile(name, defs, c.registry, c.logger)
}

// Validate compiles f as if it replaced the entry with its name, without
// storing it. Cycles through f, missing parents and unknown rules surface
// here before f is persisted.
func (c *Catalog) Validate(f *Filter) error {
	if f == nil {
		return fmt.Errorf("%w: nil filter", types.ErrInvalidArgument)
	}
	c.mu.RLock()
	scratch := &Catalog{
		filters:  make(map[string]*Filter, len(c.filters)+1),
		registry: c.registry,
		logger:   c.logger,
	}
	for name, existing := range c.filters {
		scratch.filters[name] = existing
	}
	c.mu.RUnlock()

	scratch.filters[f.name] = f.Clone()
	_, err := scratch.Compile(f.name)
	return err
}

// gather walks the parent chain under the read lock and copies the
// definitions it finds, child generation first.
func (c *Catalog) gather(name string) ([]*RuleDef, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, ok := c.filters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrFilterNotFound, name)
	}

	visited := make(map[string]bool)
	var defs []*RuleDef
	for f != nil {
		if visited[f.name] {
			return nil, fmt.Errorf("%w: filter %s revisits %s", types.ErrProbableCycle, name, f.name)
		}
		visited[f.name] = true

		for _, rd := range f.rules {
			defs = append(defs, rd.clone())
		}

		if f.Parent == "" {
			break
		}
		parent, ok := c.filters[f.Parent]
		if !ok {
			return nil, fmt.Errorf("%w: parent %s of %s", types.ErrFilterNotFound, f.Parent, f.name)
		}
		f = parent
	}
	return defs, nil
}

// Apply filters items through the named filter.
// Empty input returns immediately without compiling.
func (c *Catalog) Apply(ctx context.Context, name string, items []*types.FilterItem, params types.Params) ([]*types.FilterItem, error) {
	if len(items) == 0 {
		return []*types.FilterItem{}, nil
	}
	chain, err := c.Compile(name)
	if err != nil {
		return nil, err
	}
	return chain.Filter(ctx, items, params)
}
