// Package facets maintains the distinct known values observed for each
// filterable metadata field. The cache backs both the facet listing endpoint
// and the dialogue controller's candidate detection.
package facets

import (
	"sort"
	"sync"

	"github.com/elchin-rustamov/courtsearch/internal/document"
)

type Cache struct {
	mu     sync.RWMutex
	counts map[string]map[string]int
}

func NewCache() *Cache {
	return &Cache{counts: emptyCounts()}
}

func emptyCounts() map[string]map[string]int {
	counts := make(map[string]map[string]int, len(document.FacetFields))
	for _, field := range document.FacetFields {
		counts[field] = make(map[string]int)
	}
	return counts
}

// Add records one document's metadata. Unknown values are not facets.
func (c *Cache) Add(meta document.MetadataRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, field := range document.FacetFields {
		value := meta.Value(field)
		if value == document.Unknown || value == "" {
			continue
		}
		c.counts[field][value]++
	}
}

// Remove retracts one document's metadata, dropping a value once no
// remaining document carries it.
func (c *Cache) Remove(meta document.MetadataRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, field := range document.FacetFields {
		value := meta.Value(field)
		if value == document.Unknown || value == "" {
			continue
		}
		c.counts[field][value]--
		if c.counts[field][value] <= 0 {
			delete(c.counts[field], value)
		}
	}
}

// Rebuild replaces the cache contents from a full metadata scan.
func (c *Cache) Rebuild(records []document.MetadataRecord) {
	counts := emptyCounts()
	for _, meta := range records {
		for _, field := range document.FacetFields {
			value := meta.Value(field)
			if value == document.Unknown || value == "" {
				continue
			}
			counts[field][value]++
		}
	}

	c.mu.Lock()
	c.counts = counts
	c.mu.Unlock()
}

// Values returns the sorted distinct values for a field.
func (c *Cache) Values(field string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	byValue, ok := c.counts[field]
	if !ok {
		return nil
	}
	values := make([]string, 0, len(byValue))
	for v := range byValue {
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}

// Snapshot returns the sorted distinct values for every facet field.
func (c *Cache) Snapshot() map[string][]string {
	snap := make(map[string][]string, len(document.FacetFields))
	for _, field := range document.FacetFields {
		snap[field] = c.Values(field)
	}
	return snap
}
