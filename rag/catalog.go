package rag

import (
	"context"
	"sort"
)

// The corpus is organized into category folders (Lich_Su_Chung, ChinhTri,
// Con_Nguoi, ...) with one or more source files each. Chunks carry both
// as metadata; the catalog recovers that layout from the store so callers
// can turn a category selection into a source filter.

// DocCategory extracts the category discriminator from document
// metadata. Documents without one return "".
func DocCategory(meta map[string]any) string {
	if meta == nil {
		return ""
	}
	if c, ok := meta["category"].(string); ok {
		return c
	}
	return ""
}

// Catalog is the category -> source-file layout of the corpus, built
// from a full scan.
type Catalog struct {
	sources map[string][]string
}

// BuildCatalog scans the store and groups source files by category.
// Documents missing either metadata key are skipped.
func BuildCatalog(ctx context.Context, store VectorStore) (*Catalog, error) {
	docs, err := store.All(ctx)
	if err != nil {
		return nil, err
	}

	byCategory := make(map[string]map[string]struct{})
	for _, doc := range docs {
		category := DocCategory(doc.Metadata)
		source := DocSource(doc.Metadata)
		if category == "" || source == "" {
			continue
		}
		if byCategory[category] == nil {
			byCategory[category] = make(map[string]struct{})
		}
		byCategory[category][source] = struct{}{}
	}

	c := &Catalog{sources: make(map[string][]string, len(byCategory))}
	for category, set := range byCategory {
		files := make([]string, 0, len(set))
		for f := range set {
			files = append(files, f)
		}
		sort.Strings(files)
		c.sources[category] = files
	}
	return c, nil
}

// Categories returns the known categories, sorted.
func (c *Catalog) Categories() []string {
	out := make([]string, 0, len(c.sources))
	for category := range c.sources {
		out = append(out, category)
	}
	sort.Strings(out)
	return out
}

// Sources returns the source files under category, usable directly as a
// retrieval source filter. Unknown categories return nil.
func (c *Catalog) Sources(category string) []string {
	return c.sources[category]
}
