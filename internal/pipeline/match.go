package pipeline

import (
	"strings"

	"tradewatch/internal"
	"tradewatch/internal/keywords"
)

const (
	maxSnippets    = 3
	snippetContext = 50
)

// boundaryPrefixes are the concatenated prepositions tolerated on a
// term's left boundary: poorly spaced source text drops the space after
// them ("fromMorocco"), so a term preceded directly by one still counts.
var boundaryPrefixes = []string{"in", "from", "to", "of"}

// Matcher evaluates candidate documents against the keyword catalog.
type Matcher struct {
	catalog *keywords.Catalog
}

func NewMatcher(catalog *keywords.Catalog) *Matcher {
	return &Matcher{catalog: catalog}
}

// Evaluate decides whether a document is relevant. Group C
// (places/companies) is mandatory; at least one of Groups A (measures)
// and B (products) must also hit. Rejection is a normal outcome.
func (m *Matcher) Evaluate(doc internal.CandidateDocument) internal.MatchResult {
	corpus := buildCorpus(doc)

	measures := matchGroup(corpus, m.catalog.Measures)
	products := matchGroup(corpus, m.catalog.Products)
	places := matchGroup(corpus, m.catalog.PlacesCompanies)

	detail := internal.MatchDetail{
		TotalGroups:          3,
		MeasureKeywords:      measures,
		ProductKeywords:      products,
		PlaceCompanyKeywords: places,
	}
	for _, hits := range [][]string{measures, products, places} {
		if len(hits) > 0 {
			detail.GroupsMatched++
		}
	}

	if len(places) == 0 {
		return internal.MatchResult{Status: internal.MatchRejected, Reason: internal.ReasonMissingMandatory, Detail: detail}
	}
	if len(measures) == 0 && len(products) == 0 {
		return internal.MatchResult{Status: internal.MatchRejected, Reason: internal.ReasonNoOptionalHit, Detail: detail}
	}

	all := make([]string, 0, len(measures)+len(products)+len(places))
	all = append(all, measures...)
	all = append(all, products...)
	all = append(all, places...)
	detail.MatchedSnippets = collectSnippets(corpus, all)

	return internal.MatchResult{Status: internal.MatchAccepted, Detail: detail}
}

// ExtractEntities lists the catalog companies and products mentioned in
// the document, for the dashboard filters. Plain containment; the
// boundary rules only gate acceptance.
func (m *Matcher) ExtractEntities(doc internal.CandidateDocument) (companies, products []string) {
	corpus := buildCorpus(doc)
	for _, term := range m.catalog.Companies() {
		if strings.Contains(corpus, term) {
			companies = append(companies, term)
		}
	}
	for _, term := range m.catalog.Products.Terms {
		if strings.Contains(corpus, term) {
			products = append(products, term)
		}
	}
	return companies, products
}

// buildCorpus joins title and body into one lower-cased search text;
// the title carries no extra weight.
func buildCorpus(doc internal.CandidateDocument) string {
	parts := make([]string, 0, 2)
	if doc.Title != "" {
		parts = append(parts, doc.Title)
	}
	if doc.Text != "" {
		parts = append(parts, doc.Text)
	}
	return strings.ToLower(strings.Join(parts, " "))
}

func matchGroup(corpus string, group keywords.Group) []string {
	if corpus == "" {
		return nil
	}
	var hits []string
	for _, term := range group.Terms {
		if containsTerm(corpus, term) {
			hits = append(hits, term)
		}
	}
	return hits
}

// containsTerm reports whether term occurs in corpus at a position
// satisfying the boundary rules: the left neighbour must be a
// non-word character or one of the tolerated prefixes, and the right
// neighbour must not be a word character (so "ICL" never matches
// inside "ICLXYZ").
func containsTerm(corpus, term string) bool {
	if term == "" {
		return false
	}
	for start := 0; ; {
		i := strings.Index(corpus[start:], term)
		if i < 0 {
			return false
		}
		i += start
		if leftBoundaryOK(corpus, i) && rightBoundaryOK(corpus, i+len(term)) {
			return true
		}
		start = i + 1
	}
}

func leftBoundaryOK(corpus string, pos int) bool {
	if pos == 0 || !isWordChar(corpus[pos-1]) {
		return true
	}
	for _, prefix := range boundaryPrefixes {
		if !strings.HasSuffix(corpus[:pos], prefix) {
			continue
		}
		before := pos - len(prefix)
		if before == 0 || !isWordChar(corpus[before-1]) {
			return true
		}
	}
	return false
}

func rightBoundaryOK(corpus string, end int) bool {
	return end >= len(corpus) || !isWordChar(corpus[end])
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b == '_'
}

// collectSnippets captures surrounding text for human review, one
// snippet per matched term, capped at maxSnippets.
func collectSnippets(corpus string, terms []string) []string {
	var snippets []string
	for _, term := range terms {
		if len(snippets) >= maxSnippets {
			break
		}
		i := strings.Index(corpus, term)
		if i < 0 {
			continue
		}
		start := i - snippetContext
		if start < 0 {
			start = 0
		}
		end := i + len(term) + snippetContext
		if end > len(corpus) {
			end = len(corpus)
		}
		snippet := strings.TrimSpace(corpus[start:end])
		if snippet != "" {
			snippets = append(snippets, "..."+snippet+"...")
		}
	}
	return snippets
}
