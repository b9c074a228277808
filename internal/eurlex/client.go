package eurlex

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"tradewatch/internal"
	"tradewatch/internal/config"
	"tradewatch/internal/util"
)

const (
	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	defaultAuthor = "European Union"

	// Listing containers picked up by the fallback anchor scan.
	fallbackLinkCap = 20
)

var (
	celexPattern = regexp.MustCompile(`(3\d{4}[A-Z]\d{4})`)
	datePattern  = regexp.MustCompile(`(\d{1,2})[./](\d{1,2})[./](\d{4})`)
)

// Client scrapes the EUR-Lex advanced search result pages.
type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *rateLimiter
	log        *slog.Logger
}

func NewClient(cfg config.Config, log *slog.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.EURLexTimeoutMs) * time.Millisecond},
		limiter:    newRateLimiter(cfg.EURLexRateRPS),
		log:        log,
	}
}

// FetchCandidates pages through the search results for the range and
// returns every parsed listing. A failure on the first page is a fetch
// failure; a failure later stops pagination with what was collected.
func (c *Client) FetchCandidates(ctx context.Context, from, to time.Time) ([]internal.CandidateDocument, error) {
	all := make([]internal.CandidateDocument, 0)

	for page := 1; page <= c.cfg.EURLexMaxPages; page++ {
		docs, err := c.searchPage(ctx, from, page)
		if err != nil {
			if page == 1 {
				return nil, fmt.Errorf("search page %d: %w", page, err)
			}
			c.log.Warn("search page failed, stopping pagination", slog.Int("page", page), slog.Any("err", err))
			break
		}
		if len(docs) == 0 {
			break
		}
		all = append(all, docs...)
	}

	if c.cfg.EURLexFetchText {
		for i := range all {
			if all[i].Text != "" || all[i].DocumentNumber == "" {
				continue
			}
			text, err := c.FetchDocumentText(ctx, all[i].DocumentNumber)
			if err != nil {
				c.log.Warn("full text fetch failed", slog.String("celex", all[i].DocumentNumber), slog.Any("err", err))
				continue
			}
			all[i].Text = text
		}
	}

	return all, nil
}

// DocumentURL returns the canonical EUR-Lex URL for a CELEX number.
func (c *Client) DocumentURL(celex string) string {
	return fmt.Sprintf("%s/legal-content/EN/TXT/?uri=CELEX:%s", strings.TrimRight(c.cfg.EURLexBaseURL, "/"), celex)
}

func (c *Client) searchPage(ctx context.Context, from time.Time, page int) ([]internal.CandidateDocument, error) {
	params := c.buildSearchParams(from, page)

	u, err := url.Parse(strings.TrimRight(c.cfg.EURLexBaseURL, "/") + "/search.html")
	if err != nil {
		return nil, err
	}
	u.RawQuery = params.Encode()

	body, err := c.fetch(ctx, u.String())
	if err != nil {
		return nil, err
	}

	return parseSearchResults(bytes.NewReader(body), c.cfg.EURLexBaseURL)
}

func (c *Client) buildSearchParams(from time.Time, page int) url.Values {
	year := from.Year()
	if year < c.cfg.ScrapeStartYear {
		year = time.Now().Year()
	}

	params := url.Values{}
	params.Set("lang", "en")
	params.Set("type", "advanced")
	params.Set("SUBDOM_INIT", "ALL_ALL")
	params.Set("DTS_SUBDOM", "ALL_ALL")
	params.Set("DTS_DOM", "ALL")
	params.Set("textScope0", "ti")
	params.Set("andText0", c.cfg.EURLexSearchText)
	params.Set("whOJ", fmt.Sprintf("YEAR_OJ_OLD=%d", year))
	params.Set("whOJAba", fmt.Sprintf("YEAR_OJ_ABA=%d", year))
	params.Set("qid", strconv.FormatInt(time.Now().UnixMilli(), 10))
	if page > 1 {
		params.Set("page", strconv.Itoa(page))
	}
	return params
}

func (c *Client) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= 5; attempt++ {
		c.limiter.waitTurn()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "en-US,en;q=0.5")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < 5 {
				backoff := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
				time.Sleep(backoff)
				lastErr = fmt.Errorf("eurlex status %d", resp.StatusCode)
				continue
			}
			return nil, fmt.Errorf("eurlex error: status=%d url=%s", resp.StatusCode, rawURL)
		}

		return body, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("eurlex request failed: %s", rawURL)
	}
	return nil, lastErr
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// parseSearchResults turns one result page into candidate documents.
// EUR-Lex markup shifts between releases, so the parser falls back from
// SearchResult containers to any block holding a CELEX/ELI link.
func parseSearchResults(r io.Reader, baseURL string) ([]internal.CandidateDocument, error) {
	page, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	var items []*goquery.Selection
	page.Find("div.SearchResult, li.SearchResult").Each(func(_ int, s *goquery.Selection) {
		items = append(items, s)
	})

	if len(items) == 0 {
		seen := map[any]struct{}{}
		page.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			href, _ := a.Attr("href")
			if !isDocumentHref(href) {
				return true
			}
			container := a.ParentsFiltered("div, li, article").First()
			if container.Length() == 0 {
				return true
			}
			node := container.Get(0)
			if _, ok := seen[node]; ok {
				return true
			}
			seen[node] = struct{}{}
			items = append(items, container)
			return len(items) < fallbackLinkCap
		})
	}

	docs := make([]internal.CandidateDocument, 0, len(items))
	for _, item := range items {
		doc := parseResultItem(item, baseURL)
		if doc.Title != "" && (doc.DocumentNumber != "" || doc.URL != "") {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func parseResultItem(item *goquery.Selection, baseURL string) internal.CandidateDocument {
	doc := internal.CandidateDocument{Author: defaultAuthor}

	titleElem := findTitleElement(item)
	if titleElem != nil {
		title := strings.TrimSpace(titleElem.Text())
		if len(title) > 10 {
			doc.Title = title
			if href, ok := titleElem.Attr("href"); ok {
				doc.URL = absoluteURL(baseURL, href)
			}
		}
	}

	text := item.Text()
	if m := celexPattern.FindStringSubmatch(text); m != nil {
		doc.DocumentNumber = m[1]
	}
	if m := datePattern.FindStringSubmatch(text); m != nil {
		doc.Date = isoDate(m[3], m[2], m[1])
	}

	doc.Form = formFromTitle(doc.Title)

	flat := util.Flatten(text)
	if len(flat) > 100 {
		doc.Text = util.Truncate(flat, 500)
	}

	return doc
}

func findTitleElement(item *goquery.Selection) *goquery.Selection {
	var found *goquery.Selection
	item.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if isDocumentHref(href) {
			found = a
			return false
		}
		return true
	})
	if found != nil {
		return found
	}
	if h := item.Find("h1, h2, h3, h4").First(); h.Length() > 0 {
		return h
	}
	if a := item.Find("a").First(); a.Length() > 0 {
		return a
	}
	return nil
}

func isDocumentHref(href string) bool {
	lower := strings.ToLower(href)
	return strings.Contains(lower, "celex") || strings.Contains(lower, "eli")
}

func absoluteURL(baseURL, href string) string {
	if strings.HasPrefix(href, "http") {
		return href
	}
	if strings.HasPrefix(href, "/") {
		return strings.TrimRight(baseURL, "/") + href
	}
	return href
}

func isoDate(year, month, day string) string {
	y, errY := strconv.Atoi(year)
	m, errM := strconv.Atoi(month)
	d, errD := strconv.Atoi(day)
	if errY != nil || errM != nil || errD != nil || m < 1 || m > 12 || d < 1 || d > 31 {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", y, m, d)
}

func formFromTitle(title string) string {
	lower := strings.ToLower(title)
	switch {
	case strings.Contains(lower, "regulation"):
		return "Regulation"
	case strings.Contains(lower, "decision"):
		return "Decision"
	case strings.Contains(lower, "directive"):
		return "Directive"
	case strings.Contains(lower, "communication"):
		return "Communication"
	default:
		return ""
	}
}
