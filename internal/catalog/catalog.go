// Package catalog holds the open set of analysis style overlays. The set
// lives in a yaml file and is served through a version-token cache so a
// background refresh never races readers.
package catalog

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tradevisor/tradevisor/internal/observ"
)

// Overlay shapes the voice of one analysis style.
type Overlay struct {
	Label      string `yaml:"label"`
	Voice      string `yaml:"voice"`
	Disclaimer string `yaml:"disclaimer"`
}

// DefaultOverlay is used when a user's stored style label is unknown.
var DefaultOverlay = Overlay{
	Label: "classic",
	Voice: "Respond as a measured market analyst. Be specific about levels and honest about uncertainty.",
}

type file struct {
	Styles []Overlay `yaml:"styles"`
}

type Catalog struct {
	path  string
	cache Versioned[map[string]Overlay]
}

func New(path string) *Catalog {
	return &Catalog{path: path}
}

// Refresh reloads the yaml file and installs a new version. Callers running
// it in the background log the error and keep the previous version.
func (c *Catalog) Refresh() error {
	b, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("read style catalog: %w", err)
	}
	var f file
	if err := yaml.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("parse style catalog: %w", err)
	}
	byLabel := make(map[string]Overlay, len(f.Styles))
	for _, s := range f.Styles {
		label := strings.ToLower(strings.TrimSpace(s.Label))
		if label == "" {
			continue
		}
		s.Label = label
		byLabel[label] = s
	}
	version := c.cache.Set(byLabel)
	observ.Log("catalog_refreshed", map[string]any{"styles": len(byLabel), "version": version})
	return nil
}

// Lookup resolves a style label, falling back to the default overlay for
// unknown or empty labels.
func (c *Catalog) Lookup(label string) Overlay {
	styles, _ := c.cache.Get()
	if s, ok := styles[strings.ToLower(strings.TrimSpace(label))]; ok {
		return s
	}
	return DefaultOverlay
}

// Labels returns the currently known style labels plus the cache token, so a
// keyboard rendered from one version can detect staleness.
func (c *Catalog) Labels() ([]string, int64) {
	styles, token := c.cache.Get()
	out := make([]string, 0, len(styles))
	for label := range styles {
		out = append(out, label)
	}
	return out, token
}

// Stale reports whether a previously obtained token is outdated.
func (c *Catalog) Stale(token int64) bool {
	return c.cache.Stale(token)
}
