package query

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// View is a named stored query
type View struct {
	Name       string
	Definition string
	Node       Node
}

// ViewDefinition is the persisted form of a view
type ViewDefinition struct {
	Name       string `yaml:"name" json:"name"`
	Definition string `yaml:"definition" json:"definition"`
}

// ViewStore persists view definitions between engine instances
type ViewStore interface {
	LoadViews(ctx context.Context) ([]ViewDefinition, error)
	SaveViews(ctx context.Context, views []ViewDefinition) error
}

// Catalog is an engine's view registry. Statements read it while running;
// CREATE VIEW and DROP VIEW write through to the store, if any.
type Catalog struct {
	mu    sync.RWMutex
	views map[string]*View
	store ViewStore
}

// NewCatalog creates an empty catalog backed by store, which may be nil
func NewCatalog(store ViewStore) *Catalog {
	return &Catalog{views: make(map[string]*View), store: store}
}

// View returns a view by case-insensitive name
func (c *Catalog) View(name string) (*View, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.views[strings.ToLower(name)]
	return v, ok
}

// Views returns all views ordered by name
func (c *Catalog) Views() []*View {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*View, 0, len(c.views))
	for _, v := range c.views {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// CreateView registers a view. The name must not be taken.
func (c *Catalog) CreateView(ctx context.Context, name, definition string, node Node) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := strings.ToLower(name)
	if _, exists := c.views[key]; exists {
		return fmt.Errorf("%w: view %s", ErrTableExists, name)
	}
	c.views[key] = &View{Name: name, Definition: definition, Node: node}
	return c.save(ctx)
}

// DropView removes a view. A missing view is an error unless ifExists.
func (c *Catalog) DropView(ctx context.Context, name string, ifExists bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := strings.ToLower(name)
	if _, exists := c.views[key]; !exists {
		if ifExists {
			return nil
		}
		return fmt.Errorf("%w: view %s", ErrUnknownTable, name)
	}
	delete(c.views, key)
	return c.save(ctx)
}

// Load replaces the catalog's views with the store's, parsing each definition
func (c *Catalog) Load(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	defs, err := c.store.LoadViews(ctx)
	if err != nil {
		return fmt.Errorf("load views: %w", err)
	}
	views := make(map[string]*View, len(defs))
	for _, d := range defs {
		node, err := Parse(d.Definition)
		if err != nil {
			return fmt.Errorf("view %s: %w", d.Name, err)
		}
		views[strings.ToLower(d.Name)] = &View{Name: d.Name, Definition: d.Definition, Node: node}
	}

	c.mu.Lock()
	c.views = views
	c.mu.Unlock()
	return nil
}

// save writes all definitions to the store; c.mu must be held
func (c *Catalog) save(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	defs := make([]ViewDefinition, 0, len(c.views))
	for _, v := range c.views {
		defs = append(defs, ViewDefinition{Name: v.Name, Definition: v.Definition})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	if err := c.store.SaveViews(ctx, defs); err != nil {
		return fmt.Errorf("save views: %w", err)
	}
	return nil
}
