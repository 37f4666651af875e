package types

// SourceTag discriminates where a piece of evidence came from.
type SourceTag string

const (
	SourceVector  SourceTag = "vector"
	SourceLexical SourceTag = "lexical"
	SourceWeb     SourceTag = "web"
)

// EvidenceItem is one retrieved unit of grounding text.
//
// Identity for deduplication is the exact Content string; Metadata carries
// provenance details (origin file, chunk index, distance) and is opaque to
// the retrieval logic itself.
type EvidenceItem struct {
	Content  string         `json:"content"`
	Source   SourceTag      `json:"source"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// DedupeEvidence removes exact-content duplicates from items, preserving
// first-seen order. Earlier items win ties, so callers control precedence
// by concatenation order.
func DedupeEvidence(items []EvidenceItem) []EvidenceItem {
	seen := make(map[string]struct{}, len(items))
	out := make([]EvidenceItem, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.Content]; ok {
			continue
		}
		seen[it.Content] = struct{}{}
		out = append(out, it)
	}
	return out
}
