package pipeline

import (
	"tradewatch/internal"
	"tradewatch/internal/util"
)

// documentKey is the derived identity of a document: the normalized
// CELEX number, with the normalized title as fallback when the number
// is missing. Never persisted; always recomputed.
type documentKey struct {
	primary   string
	secondary string
}

func keyOf(doc internal.EnrichedDocument) documentKey {
	return documentKey{
		primary:   util.Normalize(doc.DocumentNumber),
		secondary: util.Normalize(doc.Title),
	}
}

// seenSet tracks identities encountered during a merge or clean pass.
// Built incrementally so first-seen wins within a single batch too.
type seenSet struct {
	numbers map[string]struct{}
	titles  map[string]struct{}
}

func newSeenSet() *seenSet {
	return &seenSet{numbers: map[string]struct{}{}, titles: map[string]struct{}{}}
}

// has applies the identity rule: equal document numbers, or equal
// titles when the incoming document has no number. A document with
// neither number nor title never collides.
func (s *seenSet) has(key documentKey) bool {
	if key.primary != "" {
		_, ok := s.numbers[key.primary]
		return ok
	}
	if key.secondary != "" {
		_, ok := s.titles[key.secondary]
		return ok
	}
	return false
}

func (s *seenSet) add(key documentKey) {
	if key.primary != "" {
		s.numbers[key.primary] = struct{}{}
	}
	if key.secondary != "" {
		s.titles[key.secondary] = struct{}{}
	}
}

// IsDuplicate reports whether doc shares an identity with any document
// in existing.
func IsDuplicate(doc internal.EnrichedDocument, existing []internal.EnrichedDocument) bool {
	seen := newSeenSet()
	for _, d := range existing {
		seen.add(keyOf(d))
	}
	return seen.has(keyOf(doc))
}

// Merge appends the incoming documents that are new to the existing
// collection: existing documents keep their relative order, new ones
// are appended in source order, duplicates are dropped (first-seen
// wins, no field reconciliation). Returns the merged collection and
// the number of documents added.
func Merge(existing, incoming []internal.EnrichedDocument) ([]internal.EnrichedDocument, int) {
	seen := newSeenSet()
	for _, d := range existing {
		seen.add(keyOf(d))
	}

	merged := make([]internal.EnrichedDocument, len(existing), len(existing)+len(incoming))
	copy(merged, existing)

	added := 0
	for _, doc := range incoming {
		key := keyOf(doc)
		if seen.has(key) {
			continue
		}
		seen.add(key)
		merged = append(merged, doc)
		added++
	}
	return merged, added
}

// Clean deduplicates a collection in place order, keeping the earliest
// occurrence of each identity, and reports how many were removed.
func Clean(docs []internal.EnrichedDocument) ([]internal.EnrichedDocument, int) {
	seen := newSeenSet()
	out := make([]internal.EnrichedDocument, 0, len(docs))
	removed := 0
	for _, doc := range docs {
		key := keyOf(doc)
		if seen.has(key) {
			removed++
			continue
		}
		seen.add(key)
		out = append(out, doc)
	}
	return out, removed
}
