package eurlex

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tradewatch/internal/config"
)

const searchResultPage = `<!DOCTYPE html>
<html><body>
<div class="SearchResult">
  <a href="/legal-content/EN/TXT/?uri=CELEX:32025D0141">
    Commission Implementing Decision imposing a countervailing duty on imports of phosphate from Morocco
  </a>
  <span>CELEX number: 32025D0141</span>
  <span>OJ L, 15/03/2025</span>
</div>
<li class="SearchResult">
  <a href="/legal-content/EN/TXT/?uri=CELEX:32025R0200">
    Commission Regulation amending the common customs tariff for mineral products
  </a>
  <span>CELEX number: 32025R0200, published 1.2.2025</span>
</li>
</body></html>`

const fallbackPage = `<!DOCTYPE html>
<html><body>
<div class="result-block">
  <a href="https://eur-lex.europa.eu/eli/dec/2025/141/oj">
    Commission Implementing Decision imposing a countervailing duty on imports of phosphate from Morocco
  </a>
  <span>32025D0141, 15/03/2025</span>
</div>
<div class="nav"><a href="/search.html?page=2">Next</a></div>
</body></html>`

func testClient(baseURL string) *Client {
	cfg := config.Config{
		EURLexBaseURL:    baseURL,
		EURLexSearchText: "Morocco",
		EURLexTimeoutMs:  5000,
		EURLexRateRPS:    1000,
		EURLexMaxPages:   3,
		ScrapeStartYear:  2024,
	}
	return NewClient(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestParseSearchResults(t *testing.T) {
	docs, err := parseSearchResults(strings.NewReader(searchResultPage), "https://eur-lex.europa.eu")
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Fatalf("docs = %d, want 2", len(docs))
	}

	first := docs[0]
	if first.DocumentNumber != "32025D0141" {
		t.Fatalf("number = %q", first.DocumentNumber)
	}
	if first.Date != "2025-03-15" {
		t.Fatalf("date = %q", first.Date)
	}
	if first.Form != "Decision" {
		t.Fatalf("form = %q", first.Form)
	}
	if first.Author != "European Union" {
		t.Fatalf("author = %q", first.Author)
	}
	if !strings.HasPrefix(first.URL, "https://eur-lex.europa.eu/legal-content/") {
		t.Fatalf("url = %q", first.URL)
	}

	second := docs[1]
	if second.DocumentNumber != "32025R0200" {
		t.Fatalf("number = %q", second.DocumentNumber)
	}
	if second.Date != "2025-02-01" {
		t.Fatalf("date = %q", second.Date)
	}
	if second.Form != "Regulation" {
		t.Fatalf("form = %q", second.Form)
	}
}

func TestParseSearchResultsFallback(t *testing.T) {
	docs, err := parseSearchResults(strings.NewReader(fallbackPage), "https://eur-lex.europa.eu")
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 {
		t.Fatalf("docs = %d, want 1", len(docs))
	}
	if docs[0].DocumentNumber != "32025D0141" {
		t.Fatalf("number = %q", docs[0].DocumentNumber)
	}
	if docs[0].Date != "2025-03-15" {
		t.Fatalf("date = %q", docs[0].Date)
	}
}

func TestParseSearchResultsEmptyPage(t *testing.T) {
	docs, err := parseSearchResults(strings.NewReader("<html><body><p>No results.</p></body></html>"), "https://eur-lex.europa.eu")
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 0 {
		t.Fatalf("docs = %d, want 0", len(docs))
	}
}

func TestFetchCandidatesPaginates(t *testing.T) {
	var pages []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		pages = append(pages, page)
		if r.URL.Query().Get("andText0") != "Morocco" {
			t.Errorf("andText0 = %q", r.URL.Query().Get("andText0"))
		}
		if page == "" {
			_, _ = w.Write([]byte(searchResultPage))
			return
		}
		_, _ = w.Write([]byte("<html><body></body></html>"))
	}))
	defer server.Close()

	c := testClient(server.URL)
	from := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC)

	docs, err := c.FetchCandidates(context.Background(), from, to)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Fatalf("docs = %d, want 2", len(docs))
	}
	// Page one has results, page two is empty and stops pagination.
	if len(pages) != 2 || pages[0] != "" || pages[1] != "2" {
		t.Fatalf("pages requested = %v", pages)
	}
}

func TestFetchCandidatesFirstPageError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	c := testClient(server.URL)
	_, err := c.FetchCandidates(context.Background(), time.Now().AddDate(0, -1, 0), time.Now())
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	c := testClient(server.URL)
	body, err := c.fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "ok" {
		t.Fatalf("body = %q", body)
	}
	if hits != 3 {
		t.Fatalf("hits = %d", hits)
	}
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	c := testClient(server.URL)
	if _, err := c.fetch(context.Background(), server.URL); err == nil {
		t.Fatal("expected error")
	}
	if hits != 1 {
		t.Fatalf("hits = %d", hits)
	}
}

func TestDocumentURL(t *testing.T) {
	c := testClient("https://eur-lex.europa.eu/")
	want := "https://eur-lex.europa.eu/legal-content/EN/TXT/?uri=CELEX:32025D0141"
	if got := c.DocumentURL("32025D0141"); got != want {
		t.Fatalf("got %q", got)
	}
}

func TestIsoDate(t *testing.T) {
	if got := isoDate("2025", "3", "7"); got != "2025-03-07" {
		t.Fatalf("got %q", got)
	}
	if got := isoDate("2025", "13", "7"); got != "" {
		t.Fatalf("invalid month accepted: %q", got)
	}
}
