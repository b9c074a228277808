package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tradewatch/internal"
	"tradewatch/internal/config"
	"tradewatch/internal/keywords"
)

const dateLayout = "2006-01-02"

// Fetcher retrieves raw candidate documents for a date range. Failures
// surface as a run with status=error; the coordinator never retries.
type Fetcher interface {
	FetchCandidates(ctx context.Context, from, to time.Time) ([]internal.CandidateDocument, error)
}

// ResultStore is the persistence contract the engine needs: read the
// current collection, write a full replacement. SaveAll is expected to
// be atomic so a failed run never leaves a partial merge behind.
type ResultStore interface {
	LoadExisting() ([]internal.EnrichedDocument, error)
	SaveAll(docs []internal.EnrichedDocument) error
}

// StateStore keeps the cross-run scraping state.
type StateStore interface {
	LastCheckedDate() (string, error)
	SetLastCheckedDate(date string) error
	RecordRun(summary internal.RunSummary) error
}

// Coordinator drives one fetch-match-dedup-persist pass. The store is
// a shared mutable resource: the read-merge-write sequence runs under
// an exclusive lock so concurrent runs cannot lose updates.
type Coordinator struct {
	mu      sync.Mutex
	cfg     config.Config
	matcher *Matcher
	fetcher Fetcher
	store   ResultStore
	state   StateStore
	log     *slog.Logger
	now     func() time.Time
}

func NewCoordinator(cfg config.Config, catalog *keywords.Catalog, fetcher Fetcher, store ResultStore, state StateStore, log *slog.Logger) *Coordinator {
	return &Coordinator{
		cfg:     cfg,
		matcher: NewMatcher(catalog),
		fetcher: fetcher,
		store:   store,
		state:   state,
		log:     log,
		now:     time.Now,
	}
}

// Evaluate exposes the matcher for ad hoc use.
func (c *Coordinator) Evaluate(doc internal.CandidateDocument) internal.MatchResult {
	return c.matcher.Evaluate(doc)
}

// DateRange resumes from the day after the last checked date, starting
// at January 1st of the configured start year on first run.
func (c *Coordinator) DateRange() (time.Time, time.Time, error) {
	today := c.now().Truncate(24 * time.Hour)
	from := time.Date(c.cfg.ScrapeStartYear, time.January, 1, 0, 0, 0, 0, time.UTC)

	last, err := c.state.LastCheckedDate()
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("load state: %w", err)
	}
	if last != "" {
		if parsed, perr := time.Parse(dateLayout, last); perr == nil {
			from = parsed.AddDate(0, 0, 1)
		} else {
			c.log.Warn("invalid last checked date in state, starting from default", slog.String("value", last))
		}
	}
	return from, today, nil
}

// RunOnce performs one complete run over [from, to] and always returns
// a summary; collaborator failures are reported in it, never raised.
// The merge is all-or-nothing: nothing is persisted unless the full
// batch merge completes.
func (c *Coordinator) RunOnce(ctx context.Context, from, to time.Time) internal.RunSummary {
	start := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	summary := internal.RunSummary{
		FromDate: from.Format(dateLayout),
		ToDate:   to.Format(dateLayout),
	}

	if from.After(to) {
		return c.finishUpToDate(summary, start, "Already up to date! No new dates to scrape.")
	}

	candidates, err := c.fetcher.FetchCandidates(ctx, from, to)
	if err != nil {
		return c.fail(summary, start, fmt.Errorf("fetch candidates: %w", err))
	}
	summary.RawFetched = len(candidates)
	if len(candidates) == 0 {
		return c.finishUpToDate(summary, start, "No candidate documents for the requested range.")
	}

	scrapedAt := c.now().UTC().Format(time.RFC3339)
	accepted := make([]internal.EnrichedDocument, 0)
	for _, candidate := range candidates {
		result := c.matcher.Evaluate(candidate)
		if !result.Accepted() {
			c.log.Debug("candidate rejected",
				slog.String("document", candidate.DocumentNumber),
				slog.String("reason", string(result.Reason)))
			continue
		}
		accepted = append(accepted, c.enrich(candidate, result.Detail, scrapedAt))
	}
	summary.Matched = len(accepted)

	existing, err := c.store.LoadExisting()
	if err != nil {
		return c.fail(summary, start, fmt.Errorf("load existing documents: %w", err))
	}
	existing, cleaned := Clean(existing)
	if cleaned > 0 {
		c.log.Info("removed duplicates from existing collection", slog.Int("count", cleaned))
	}

	merged, added := Merge(existing, accepted)
	if added > 0 || cleaned > 0 {
		if err := c.store.SaveAll(merged); err != nil {
			return c.fail(summary, start, fmt.Errorf("save merged documents: %w", err))
		}
	}

	summary.Status = internal.RunSuccess
	summary.NewDocuments = added
	summary.TotalDocuments = len(merged)
	summary.Message = fmt.Sprintf("Successfully scraped %d new documents", added)
	summary.DurationSeconds = c.now().Sub(start).Seconds()

	c.saveState(summary)
	return summary
}

// CleanDuplicates deduplicates the stored collection with the same
// identity rule as Merge, keeping the earliest occurrence.
func (c *Coordinator) CleanDuplicates() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, err := c.store.LoadExisting()
	if err != nil {
		return 0, fmt.Errorf("load existing documents: %w", err)
	}
	cleaned, removed := Clean(existing)
	if removed == 0 {
		return 0, nil
	}
	if err := c.store.SaveAll(cleaned); err != nil {
		return 0, fmt.Errorf("save cleaned documents: %w", err)
	}
	return removed, nil
}

func (c *Coordinator) enrich(candidate internal.CandidateDocument, detail internal.MatchDetail, scrapedAt string) internal.EnrichedDocument {
	doc := internal.EnrichedDocument{
		CandidateDocument: candidate,
		Match:             detail,
		ScrapedAt:         scrapedAt,
	}
	doc.Companies, doc.Products = c.matcher.ExtractEntities(candidate)
	if doc.URL == "" && doc.DocumentNumber != "" {
		doc.URL = fmt.Sprintf("%s/legal-content/EN/TXT/?uri=CELEX:%s", c.cfg.EURLexBaseURL, doc.DocumentNumber)
	}
	return doc
}

func (c *Coordinator) finishUpToDate(summary internal.RunSummary, start time.Time, message string) internal.RunSummary {
	summary.Status = internal.RunUpToDate
	summary.Message = message
	if existing, err := c.store.LoadExisting(); err == nil {
		summary.TotalDocuments = len(existing)
	}
	summary.DurationSeconds = c.now().Sub(start).Seconds()
	c.saveState(summary)
	return summary
}

func (c *Coordinator) fail(summary internal.RunSummary, start time.Time, err error) internal.RunSummary {
	summary.Status = internal.RunError
	summary.Message = err.Error()
	summary.DurationSeconds = c.now().Sub(start).Seconds()
	c.log.Error("run failed", slog.Any("err", err))
	if rerr := c.state.RecordRun(summary); rerr != nil {
		c.log.Warn("record run", slog.Any("err", rerr))
	}
	return summary
}

// saveState advances the checkpoint and records the run. Both are best
// effort: the documents themselves are already persisted.
func (c *Coordinator) saveState(summary internal.RunSummary) {
	if err := c.state.SetLastCheckedDate(summary.ToDate); err != nil {
		c.log.Warn("save last checked date", slog.Any("err", err))
	}
	if err := c.state.RecordRun(summary); err != nil {
		c.log.Warn("record run", slog.Any("err", err))
	}
}
