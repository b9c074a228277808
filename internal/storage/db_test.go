package storage

import (
	"path/filepath"
	"testing"

	"tradewatch/internal"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "tradewatch.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func storedDoc(number, title, date string) internal.EnrichedDocument {
	return internal.EnrichedDocument{
		CandidateDocument: internal.CandidateDocument{
			DocumentNumber: number,
			Title:          title,
			Date:           date,
			Author:         "European Union",
			Form:           "Regulation",
		},
		Match: internal.MatchDetail{
			GroupsMatched:        3,
			TotalGroups:          3,
			MeasureKeywords:      []string{"dumping"},
			PlaceCompanyKeywords: []string{"morocco"},
		},
		Products:  []string{"phosphate"},
		ScrapedAt: "2025-03-16T08:00:00Z",
	}
}

func TestSaveAllRoundTrip(t *testing.T) {
	db := openTestDB(t)

	docs := []internal.EnrichedDocument{
		storedDoc("32025R0002", "Second", "2025-02-01"),
		storedDoc("32025R0001", "First", "2025-01-01"),
	}
	if err := db.SaveAll(docs); err != nil {
		t.Fatal(err)
	}

	loaded, err := db.LoadExisting()
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 2 {
		t.Fatalf("len = %d", len(loaded))
	}
	// Insertion order is preserved, not date order.
	if loaded[0].DocumentNumber != "32025R0002" || loaded[1].DocumentNumber != "32025R0001" {
		t.Fatalf("order: %q, %q", loaded[0].DocumentNumber, loaded[1].DocumentNumber)
	}
	if loaded[0].Match.GroupsMatched != 3 || len(loaded[0].Match.MeasureKeywords) != 1 {
		t.Fatalf("match detail lost: %+v", loaded[0].Match)
	}
	if len(loaded[0].Products) != 1 || loaded[0].Products[0] != "phosphate" {
		t.Fatalf("products = %v", loaded[0].Products)
	}
}

func TestSaveAllReplaces(t *testing.T) {
	db := openTestDB(t)

	if err := db.SaveAll([]internal.EnrichedDocument{
		storedDoc("32025R0001", "First", "2025-01-01"),
		storedDoc("32025R0002", "Second", "2025-02-01"),
	}); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveAll([]internal.EnrichedDocument{
		storedDoc("32025R0003", "Third", "2025-03-01"),
	}); err != nil {
		t.Fatal(err)
	}

	loaded, err := db.LoadExisting()
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 1 || loaded[0].DocumentNumber != "32025R0003" {
		t.Fatalf("loaded = %+v", loaded)
	}
}

func TestLoadExistingEmpty(t *testing.T) {
	db := openTestDB(t)

	loaded, err := db.LoadExisting()
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 0 {
		t.Fatalf("len = %d", len(loaded))
	}
}

func TestLastCheckedDate(t *testing.T) {
	db := openTestDB(t)

	got, err := db.LastCheckedDate()
	if err != nil {
		t.Fatal(err)
	}
	if got != "" {
		t.Fatalf("fresh db returned %q", got)
	}

	if err := db.SetLastCheckedDate("2025-03-15"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetLastCheckedDate("2025-03-16"); err != nil {
		t.Fatal(err)
	}

	got, err = db.LastCheckedDate()
	if err != nil {
		t.Fatal(err)
	}
	if got != "2025-03-16" {
		t.Fatalf("got %q", got)
	}
}

func TestRecordRun(t *testing.T) {
	db := openTestDB(t)

	if err := db.RecordRun(internal.RunSummary{
		Status:       internal.RunSuccess,
		Message:      "Successfully scraped 2 new documents",
		FromDate:     "2025-03-01",
		ToDate:       "2025-03-16",
		NewDocuments: 2,
	}); err != nil {
		t.Fatal(err)
	}

	lastRun, err := db.LastRun()
	if err != nil {
		t.Fatal(err)
	}
	if lastRun == "" {
		t.Fatal("last_run not stamped")
	}
}
