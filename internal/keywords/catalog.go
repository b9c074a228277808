package keywords

import (
	"fmt"

	"tradewatch/internal/config"
	"tradewatch/internal/util"
)

const (
	GroupMeasures        = "measures"
	GroupProducts        = "products"
	GroupPlacesCompanies = "places_companies"
)

// Group is one keyword category. Terms are case-normalized and deduped
// at load time, original order preserved.
type Group struct {
	Name      string   `json:"name"`
	Terms     []string `json:"terms"`
	Mandatory bool     `json:"mandatory"`
}

// Catalog holds the three keyword groups the matcher evaluates against.
// Loaded once at process start; read-only afterwards.
type Catalog struct {
	Measures        Group
	Products        Group
	PlacesCompanies Group
}

var defaultMeasures = []string{
	"antidumping", "anti-dumping", "countervailing duty", "CVD",
	"anti-subsidy", "safeguard", "regulation", "decision", "review",
	"sunset review", "circumvention", "antitrust", "sanctions",
	"trade defence", "trade defense", "dumping", "subsidy",
}

var defaultProducts = []string{
	"phosphate", "phosphate rock", "phosphoric acid", "fertilizer",
	"fertiliser", "DAP", "MAP", "TSP", "SSP", "diammonium phosphate",
	"monoammonium phosphate", "triple superphosphate", "single superphosphate",
	"HS25", "HS31", "3103", "3105", "mineral fertilizer", "chemical fertilizer",
}

var defaultPlacesCompanies = []string{
	"Morocco", "OCP", "Mosaic", "Nutrien", "Yara", "ICL", "Maaden",
	"Eurochem", "Phosagro", "CF Industries", "CFIndustries",
	"Jordan Phosphate", "JPMC", "Moroccan", "Israel Chemicals",
}

// placeOnlyTerms are Group C entries that name a place rather than a
// company; entity extraction skips them when listing companies.
var placeOnlyTerms = map[string]struct{}{
	"morocco":  {},
	"moroccan": {},
}

// Load builds the catalog from env overrides or the built-in defaults.
// An empty group is a configuration error: an empty mandatory group
// would vacuously reject everything, and an empty optional group would
// silently change accept semantics.
func Load(cfg config.Config) (*Catalog, error) {
	c := &Catalog{
		Measures:        Group{Name: GroupMeasures, Terms: normalizeTerms(override(cfg.MeasureKeywords, defaultMeasures))},
		Products:        Group{Name: GroupProducts, Terms: normalizeTerms(override(cfg.ProductKeywords, defaultProducts))},
		PlacesCompanies: Group{Name: GroupPlacesCompanies, Terms: normalizeTerms(override(cfg.PlaceCompanyKeywords, defaultPlacesCompanies)), Mandatory: true},
	}

	for _, g := range c.Groups() {
		if len(g.Terms) == 0 {
			return nil, fmt.Errorf("keyword group %q is empty", g.Name)
		}
	}
	return c, nil
}

func (c *Catalog) Groups() []Group {
	return []Group{c.Measures, c.Products, c.PlacesCompanies}
}

// Companies returns the Group C terms that name companies.
func (c *Catalog) Companies() []string {
	out := make([]string, 0, len(c.PlacesCompanies.Terms))
	for _, term := range c.PlacesCompanies.Terms {
		if _, place := placeOnlyTerms[term]; !place {
			out = append(out, term)
		}
	}
	return out
}

// Normalize is the catalog's term normalization: lower-case and trim.
func Normalize(term string) string {
	return util.Normalize(term)
}

func override(terms, fallback []string) []string {
	if len(terms) > 0 {
		return terms
	}
	return fallback
}

func normalizeTerms(terms []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		norm := Normalize(t)
		if norm == "" {
			continue
		}
		if _, ok := seen[norm]; ok {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
	}
	return out
}
