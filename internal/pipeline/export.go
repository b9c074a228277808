package pipeline

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"tradewatch/internal"
	"tradewatch/internal/util"
)

var exportHeaders = []string{
	"publication_date", "title", "form", "document_number", "author", "eurlex_url",
	"companies", "products", "text_excerpt", "scraped_at",
	"measure_keywords", "product_keywords", "place_company_keywords",
	"groups_matched", "total_groups", "matched_text_snippets",
}

// ExportCSV writes the collection as CSV, one row per document.
func ExportCSV(docs []internal.EnrichedDocument, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeaders); err != nil {
		return err
	}
	for _, doc := range docs {
		if err := cw.Write(exportRow(doc)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportXLSX writes the collection as a single-sheet workbook.
func ExportXLSX(docs []internal.EnrichedDocument, outputPath string) error {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, doc := range docs {
		row := exportRow(doc)
		for col, value := range row {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			_ = f.SetCellValue(sheet, cell, value)
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func exportRow(doc internal.EnrichedDocument) []string {
	return []string{
		doc.Date,
		util.Flatten(doc.Title),
		doc.Form,
		doc.DocumentNumber,
		doc.Author,
		doc.URL,
		strings.Join(doc.Companies, "; "),
		strings.Join(doc.Products, "; "),
		util.Truncate(util.Flatten(doc.Text), 200),
		doc.ScrapedAt,
		strings.Join(doc.Match.MeasureKeywords, "; "),
		strings.Join(doc.Match.ProductKeywords, "; "),
		strings.Join(doc.Match.PlaceCompanyKeywords, "; "),
		strconv.Itoa(doc.Match.GroupsMatched),
		strconv.Itoa(doc.Match.TotalGroups),
		strings.Join(doc.Match.MatchedSnippets, "; "),
	}
}
