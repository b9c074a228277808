package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"tradewatch/internal"
	"tradewatch/internal/config"
	"tradewatch/internal/keywords"
	"tradewatch/internal/pipeline"
	"tradewatch/internal/storage"
)

const dateLayout = "2006-01-02"

// Server exposes the engine and the stored collection over HTTP.
type Server struct {
	log     *slog.Logger
	cfg     config.Config
	db      *storage.DB
	coord   *pipeline.Coordinator
	catalog *keywords.Catalog
}

func NewServer(cfg config.Config, db *storage.DB, coord *pipeline.Coordinator, catalog *keywords.Catalog, log *slog.Logger) *Server {
	return &Server{log: log, cfg: cfg, db: db, coord: coord, catalog: catalog}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/documents", s.handleDocuments)
		r.Get("/documents/{number}", s.handleDocument)
		r.Get("/statistics", s.handleStatistics)
		r.Get("/keywords", s.handleKeywords)
		r.Post("/scrape", s.handleScrape)
		r.Get("/export/csv", s.handleExportCSV)
	})

	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"service":   "tradewatch",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.db.LoadExisting()
	if err != nil {
		s.log.Error("load documents", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	filters := parseFilters(r)
	docs = applyFilters(docs, filters)
	sortByDateDesc(docs)

	limit := filters.Limit
	if limit <= 0 {
		limit = 100
	}
	if len(docs) > limit {
		docs = docs[:limit]
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"results":        docs,
		"total_returned": len(docs),
	})
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")

	docs, err := s.db.LoadExisting()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	for _, doc := range docs {
		if doc.DocumentNumber == number {
			writeJSON(w, http.StatusOK, doc)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, errorResponse{Error: "document not found"})
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	docs, err := s.db.LoadExisting()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	lastRun, _ := s.db.LastRun()
	lastChecked, _ := s.db.LastCheckedDate()
	writeJSON(w, http.StatusOK, pipeline.BuildStatistics(docs, lastRun, lastChecked))
}

func (s *Server) handleKeywords(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"keyword_groups": s.catalog.Groups(),
	})
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	from, to, err := s.scrapeRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	s.log.Info("manual scrape triggered",
		slog.String("from", from.Format(dateLayout)),
		slog.String("to", to.Format(dateLayout)))

	summary := s.coord.RunOnce(r.Context(), from, to)
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	docs, err := s.db.LoadExisting()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	docs = applyFilters(docs, parseFilters(r))
	sortByDateDesc(docs)

	filename := fmt.Sprintf("tradewatch_documents_%s.csv", time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	if err := pipeline.ExportCSV(docs, w); err != nil {
		s.log.Error("export csv", slog.Any("err", err))
	}
}

func (s *Server) scrapeRange(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()
	fromRaw := strings.TrimSpace(q.Get("from"))
	toRaw := strings.TrimSpace(q.Get("to"))

	if fromRaw == "" && toRaw == "" {
		return s.coord.DateRange()
	}

	from, err := time.Parse(dateLayout, fromRaw)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid from date: %q", fromRaw)
	}
	to := time.Now().Truncate(24 * time.Hour)
	if toRaw != "" {
		if to, err = time.Parse(dateLayout, toRaw); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid to date: %q", toRaw)
		}
	}
	return from, to, nil
}

type filters struct {
	StartDate string
	EndDate   string
	Author    string
	Company   string
	Product   string
	Search    string
	Limit     int
}

func parseFilters(r *http.Request) filters {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	return filters{
		StartDate: strings.TrimSpace(q.Get("start_date")),
		EndDate:   strings.TrimSpace(q.Get("end_date")),
		Author:    strings.TrimSpace(q.Get("author")),
		Company:   strings.TrimSpace(q.Get("company")),
		Product:   strings.TrimSpace(q.Get("product")),
		Search:    strings.TrimSpace(q.Get("search")),
		Limit:     limit,
	}
}

func applyFilters(docs []internal.EnrichedDocument, f filters) []internal.EnrichedDocument {
	out := make([]internal.EnrichedDocument, 0, len(docs))
	for _, doc := range docs {
		if f.StartDate != "" && doc.Date < f.StartDate {
			continue
		}
		if f.EndDate != "" && (doc.Date == "" || doc.Date > f.EndDate) {
			continue
		}
		if f.Author != "" && !strings.Contains(strings.ToLower(doc.Author), strings.ToLower(f.Author)) {
			continue
		}
		if f.Company != "" && !containsFold(doc.Companies, f.Company) {
			continue
		}
		if f.Product != "" && !containsFold(doc.Products, f.Product) {
			continue
		}
		if f.Search != "" {
			needle := strings.ToLower(f.Search)
			if !strings.Contains(strings.ToLower(doc.Title), needle) &&
				!strings.Contains(strings.ToLower(doc.Text), needle) {
				continue
			}
		}
		out = append(out, doc)
	}
	return out
}

func containsFold(values []string, needle string) bool {
	needle = strings.ToLower(needle)
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), needle) {
			return true
		}
	}
	return false
}

func sortByDateDesc(docs []internal.EnrichedDocument) {
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].Date > docs[j].Date
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
