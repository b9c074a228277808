package pipeline

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"tradewatch/internal"
)

func exportDoc() internal.EnrichedDocument {
	return internal.EnrichedDocument{
		CandidateDocument: internal.CandidateDocument{
			DocumentNumber: "32025D0001",
			Title:          "Commission Decision on countervailing duty,\nMorocco",
			Date:           "2025-03-15",
			Author:         "European Union",
			Form:           "Decision",
			Text:           "Imports of phosphate fertilizers from Morocco.",
			URL:            "https://eur-lex.europa.eu/legal-content/EN/TXT/?uri=CELEX:32025D0001",
		},
		Match: internal.MatchDetail{
			GroupsMatched:        3,
			TotalGroups:          3,
			MeasureKeywords:      []string{"countervailing duty"},
			ProductKeywords:      []string{"phosphate"},
			PlaceCompanyKeywords: []string{"morocco"},
			MatchedSnippets:      []string{"...imports from Morocco..."},
		},
		Companies: []string{"ocp"},
		Products:  []string{"phosphate"},
		ScrapedAt: "2025-03-16T08:00:00Z",
	}
}

func TestExportCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportCSV([]internal.EnrichedDocument{exportDoc()}, &buf); err != nil {
		t.Fatal(err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("rows = %d, want 2", len(records))
	}
	header := records[0]
	if len(header) != len(exportHeaders) {
		t.Fatalf("columns = %d, want %d", len(header), len(exportHeaders))
	}
	if header[0] != "publication_date" || header[3] != "document_number" {
		t.Fatalf("header = %v", header)
	}

	row := records[1]
	if row[0] != "2025-03-15" {
		t.Fatalf("date = %q", row[0])
	}
	if row[1] != "Commission Decision on countervailing duty, Morocco" {
		t.Fatalf("title not flattened: %q", row[1])
	}
	if row[3] != "32025D0001" {
		t.Fatalf("number = %q", row[3])
	}
	if row[10] != "countervailing duty" {
		t.Fatalf("measure keywords = %q", row[10])
	}
	if row[13] != "3" || row[14] != "3" {
		t.Fatalf("group counts = %q / %q", row[13], row[14])
	}
}

func TestExportCSVEmptyCollection(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportCSV(nil, &buf); err != nil {
		t.Fatal(err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("rows = %d, want header only", len(records))
	}
}

func TestExportXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exports", "documents.xlsx")
	if err := ExportXLSX([]internal.EnrichedDocument{exportDoc()}, path); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() == 0 {
		t.Fatal("empty workbook")
	}
}

func TestBuildStatistics(t *testing.T) {
	docs := []internal.EnrichedDocument{
		exportDoc(),
		{
			CandidateDocument: internal.CandidateDocument{
				DocumentNumber: "32025R0002",
				Title:          "Regulation on fertilizer imports",
				Date:           "2025-01-10",
				Form:           "Regulation",
			},
			Products: []string{"phosphate"},
		},
		{CandidateDocument: internal.CandidateDocument{DocumentNumber: "32025C0003"}},
	}

	stats := BuildStatistics(docs, "2025-03-16T09:00:00Z", "2025-03-15")
	if stats.TotalDocuments != 3 {
		t.Fatalf("total = %d", stats.TotalDocuments)
	}
	if stats.LastRun != "2025-03-16T09:00:00Z" || stats.LastCheckedDate != "2025-03-15" {
		t.Fatalf("state fields: %+v", stats)
	}
	if stats.DateRange.Earliest != "2025-01-10" || stats.DateRange.Latest != "2025-03-15" {
		t.Fatalf("date range = %+v", stats.DateRange)
	}
	if stats.DocumentTypes["Decision"] != 1 || stats.DocumentTypes["Regulation"] != 1 || stats.DocumentTypes["Unknown"] != 1 {
		t.Fatalf("types = %v", stats.DocumentTypes)
	}
	if stats.Authors["European Union"] != 1 || stats.Authors["Unknown"] != 2 {
		t.Fatalf("authors = %v", stats.Authors)
	}
	if stats.Products["phosphate"] != 2 {
		t.Fatalf("products = %v", stats.Products)
	}
	if stats.Companies["ocp"] != 1 {
		t.Fatalf("companies = %v", stats.Companies)
	}
}

func TestBuildStatisticsEmpty(t *testing.T) {
	stats := BuildStatistics(nil, "", "")
	if stats.TotalDocuments != 0 {
		t.Fatalf("total = %d", stats.TotalDocuments)
	}
	if stats.DateRange.Earliest != "" || stats.DateRange.Latest != "" {
		t.Fatalf("date range = %+v", stats.DateRange)
	}
}
