package internal

type MatchStatus string

type RejectReason string

const (
	MatchAccepted MatchStatus = "ACCEPTED"
	MatchRejected MatchStatus = "REJECTED"

	ReasonNone             RejectReason = ""
	ReasonMissingMandatory RejectReason = "MISSING_MANDATORY_GROUP"
	ReasonNoOptionalHit    RejectReason = "NO_OPTIONAL_GROUP_HIT"
)

// CandidateDocument is a raw document as retrieved from the EUR-Lex
// listing. Missing fields stay empty; the matcher never fails on shape.
type CandidateDocument struct {
	DocumentNumber string `json:"document_number"`
	Title          string `json:"title"`
	Date           string `json:"publication_date"`
	Author         string `json:"author"`
	Form           string `json:"form"`
	Text           string `json:"text"`
	URL            string `json:"url"`
}

// MatchDetail records which catalog terms hit. The keyword slices carry
// set semantics: one entry per term, in catalog order.
type MatchDetail struct {
	GroupsMatched        int      `json:"groups_matched"`
	TotalGroups          int      `json:"total_groups"`
	MeasureKeywords      []string `json:"measure_keywords"`
	ProductKeywords      []string `json:"product_keywords"`
	PlaceCompanyKeywords []string `json:"place_company_keywords"`
	MatchedSnippets      []string `json:"matched_text_snippets"`
}

type MatchResult struct {
	Status MatchStatus  `json:"status"`
	Reason RejectReason `json:"reason,omitempty"`
	Detail MatchDetail  `json:"detail"`
}

func (r MatchResult) Accepted() bool {
	return r.Status == MatchAccepted
}

// EnrichedDocument is an accepted candidate plus its match detail and
// scrape metadata. Owned by the result store after acceptance.
type EnrichedDocument struct {
	CandidateDocument
	Match     MatchDetail `json:"match_details"`
	Companies []string    `json:"companies"`
	Products  []string    `json:"products"`
	ScrapedAt string      `json:"scraped_at"`
}

type RunStatus string

const (
	RunSuccess  RunStatus = "success"
	RunUpToDate RunStatus = "up_to_date"
	RunError    RunStatus = "error"
)

// RunSummary describes one complete fetch-match-dedup-persist pass.
type RunSummary struct {
	Status          RunStatus `json:"status"`
	Message         string    `json:"message"`
	FromDate        string    `json:"from_date"`
	ToDate          string    `json:"to_date"`
	NewDocuments    int       `json:"new_documents"`
	TotalDocuments  int       `json:"total_documents"`
	RawFetched      int       `json:"raw_documents_fetched"`
	Matched         int       `json:"matched_documents"`
	DurationSeconds float64   `json:"duration_seconds"`
}
