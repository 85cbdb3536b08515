// Package layouts serves circuit drawings loaded from a folder of yaml, json
// or toml documents, one circuit per file.
package layouts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/knadh/koanf/v2"

	"github.com/l0p7/pitwall/internal/config"
)

// ErrNotFound reports an unknown circuit.
var ErrNotFound = errors.New("layouts: circuit not found")

// Point is a coordinate on the drawing.
type Point struct {
	X float64 `koanf:"x" json:"x"`
	Y float64 `koanf:"y" json:"y"`
}

// Corner labels a numbered turn.
type Corner struct {
	Number int     `koanf:"number" json:"number"`
	X      float64 `koanf:"x" json:"x"`
	Y      float64 `koanf:"y" json:"y"`
}

// Layout is a single circuit drawing.
type Layout struct {
	Circuit  string   `koanf:"circuit" json:"circuit"`
	Name     string   `koanf:"name" json:"name"`
	LengthKm float64  `koanf:"lengthKm" json:"lengthKm"`
	Rotation float64  `koanf:"rotation" json:"rotation"`
	Corners  []Corner `koanf:"corners" json:"corners"`
	Path     []Point  `koanf:"path" json:"path"`
}

// Catalog holds the layouts found in one folder. It is safe for concurrent
// use; Load swaps the whole set atomically.
type Catalog struct {
	folder string

	mu      sync.RWMutex
	layouts map[string]Layout
	digests map[string][]byte
}

// NewCatalog returns an empty catalog for folder. Call Load to read it.
func NewCatalog(folder string) *Catalog {
	return &Catalog{
		folder:  folder,
		layouts: map[string]Layout{},
		digests: map[string][]byte{},
	}
}

// Folder returns the watched folder.
func (c *Catalog) Folder() string {
	return c.folder
}

// Get returns the layout for slug.
func (c *Catalog) Get(slug string) (Layout, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	layout, ok := c.layouts[normalizeSlug(slug)]
	if !ok {
		return Layout{}, fmt.Errorf("%w: %s", ErrNotFound, slug)
	}
	return layout, nil
}

// Slugs lists the loaded circuits in order.
func (c *Catalog) Slugs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.layouts))
	for slug := range c.layouts {
		out = append(out, slug)
	}
	sort.Strings(out)
	return out
}

// Load rereads the folder and reports which circuits were added, changed or
// removed. Documents that fail to parse are skipped and reported through the
// returned error while the rest of the folder still loads.
func (c *Catalog) Load() ([]string, error) {
	if strings.TrimSpace(c.folder) == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(c.folder)
	if err != nil {
		return nil, fmt.Errorf("layouts: read folder %s: %w", c.folder, err)
	}

	layouts := make(map[string]Layout)
	digests := make(map[string][]byte)
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() || !config.IsSupportedDocument(entry.Name()) {
			continue
		}
		path := filepath.Join(c.folder, entry.Name())
		slug := slugFor(path)
		if _, dup := layouts[slug]; dup {
			errs = append(errs, fmt.Errorf("layouts: duplicate circuit %s in %s", slug, path))
			continue
		}
		layout, err := loadLayout(path, slug)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		digest, err := json.Marshal(layout)
		if err != nil {
			errs = append(errs, fmt.Errorf("layouts: encode %s: %w", path, err))
			continue
		}
		layouts[slug] = layout
		digests[slug] = digest
	}

	c.mu.Lock()
	changed := diff(c.digests, digests)
	c.layouts = layouts
	c.digests = digests
	c.mu.Unlock()

	return changed, errors.Join(errs...)
}

func loadLayout(path, slug string) (Layout, error) {
	k, err := config.LoadDocument(path)
	if err != nil {
		return Layout{}, fmt.Errorf("layouts: %w", err)
	}
	var layout Layout
	if err := k.UnmarshalWithConf("", &layout, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Layout{}, fmt.Errorf("layouts: decode %s: %w", path, err)
	}
	if layout.Circuit == "" {
		layout.Circuit = slug
	}
	if len(layout.Path) < 2 {
		return Layout{}, fmt.Errorf("layouts: %s: path needs at least two points", path)
	}
	return layout, nil
}

func diff(before, after map[string][]byte) []string {
	var changed []string
	for slug, digest := range after {
		if prev, ok := before[slug]; !ok || !bytes.Equal(prev, digest) {
			changed = append(changed, slug)
		}
	}
	for slug := range before {
		if _, ok := after[slug]; !ok {
			changed = append(changed, slug)
		}
	}
	sort.Strings(changed)
	return changed
}

func slugFor(path string) string {
	base := filepath.Base(path)
	return normalizeSlug(strings.TrimSuffix(base, filepath.Ext(base)))
}

func normalizeSlug(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}
