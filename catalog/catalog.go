package catalog

import (
	"context"
	"sort"
	"sync"

	"github.com/wippyai/replica"
	"github.com/wippyai/replica/errors"
	"github.com/wippyai/replica/mutate"
)

// Call carries the implicit receiver context for a catalog function: the
// entity it runs against, that entity's data tree, the applying-update
// pass authorizing mutations, and the caller-supplied arguments.
type Call struct {
	Entity replica.EntityID
	Data   map[string]any
	Pass   *mutate.Pass
	Args   []any
}

// Func is a remote-callable catalog function.
type Func func(ctx context.Context, call *Call) ([]any, error)

// Source exposes the named functions of one catalog source in whatever
// order is natural to the source. Sources are cached by identity: the same
// Source value always yields the same *Catalog.
type Source interface {
	Functions() (map[string]Func, error)
}

// StaticSource is the simplest Source: a literal name-to-function mapping.
// It is a pointer type so it can serve as a cache key.
type StaticSource struct {
	funcs map[string]Func
}

// Static wraps a function mapping as a Source.
func Static(funcs map[string]Func) *StaticSource {
	return &StaticSource{funcs: funcs}
}

func (s *StaticSource) Functions() (map[string]Func, error) {
	return s.funcs, nil
}

// Entry is one catalog function with its wire id.
type Entry struct {
	ID   int
	Name string
	Fn   Func
}

// Catalog is a deterministically-indexed table of remote-callable
// functions. Ids are a 1-based enumeration assigned by sorting function
// names ascending, so independently-loading peers agree on the numbering
// regardless of a source's native iteration order.
type Catalog struct {
	entries []*Entry
	byName  map[string]*Entry
}

// Load builds a catalog from a source. Most callers go through a Cache.
func Load(src Source) (*Catalog, error) {
	funcs, err := src.Functions()
	if err != nil {
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidData, err, "enumerate catalog source")
	}

	names := make([]string, 0, len(funcs))
	for name := range funcs {
		names = append(names, name)
	}
	sort.Strings(names)

	c := &Catalog{
		entries: make([]*Entry, 0, len(names)),
		byName:  make(map[string]*Entry, len(names)),
	}
	for i, name := range names {
		e := &Entry{ID: i + 1, Name: name, Fn: funcs[name]}
		c.entries = append(c.entries, e)
		c.byName[name] = e
	}
	return c, nil
}

// ByName returns the entry for a function name.
func (c *Catalog) ByName(name string) (*Entry, bool) {
	e, ok := c.byName[name]
	return e, ok
}

// ByID returns the entry for a 1-based wire id.
func (c *Catalog) ByID(id int) (*Entry, bool) {
	if id < 1 || id > len(c.entries) {
		return nil, false
	}
	return c.entries[id-1], true
}

// Len returns the number of functions in the catalog.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Names returns all function names in id order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.entries))
	for i, e := range c.entries {
		names[i] = e.Name
	}
	return names
}

// Cache loads each distinct source at most once, keyed by the source
// value's identity.
type Cache struct {
	mu     sync.Mutex
	loaded map[Source]*Catalog
}

// NewCache creates an empty catalog cache.
func NewCache() *Cache {
	return &Cache{loaded: make(map[Source]*Catalog)}
}

// Load returns the catalog for src, building it on first use.
func (c *Cache) Load(src Source) (*Catalog, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cat, ok := c.loaded[src]; ok {
		return cat, nil
	}
	cat, err := Load(src)
	if err != nil {
		return nil, err
	}
	c.loaded[src] = cat
	return cat, nil
}

// Len returns the number of cached catalogs.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.loaded)
}
