package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"tradewatch/internal"
)

const (
	metaLastCheckedDate = "last_checked_date"
	metaLastRun         = "last_run"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS documents (
  position INTEGER PRIMARY KEY AUTOINCREMENT,
  documentNumber TEXT NOT NULL DEFAULT '',
  title TEXT NOT NULL DEFAULT '',
  publicationDate TEXT NOT NULL DEFAULT '',
  author TEXT NOT NULL DEFAULT '',
  form TEXT NOT NULL DEFAULT '',
  text TEXT NOT NULL DEFAULT '',
  url TEXT NOT NULL DEFAULT '',
  companies TEXT NOT NULL DEFAULT '[]',
  products TEXT NOT NULL DEFAULT '[]',
  groupsMatched INTEGER NOT NULL DEFAULT 0,
  totalGroups INTEGER NOT NULL DEFAULT 3,
  measureKeywords TEXT NOT NULL DEFAULT '[]',
  productKeywords TEXT NOT NULL DEFAULT '[]',
  placeCompanyKeywords TEXT NOT NULL DEFAULT '[]',
  matchedSnippets TEXT NOT NULL DEFAULT '[]',
  scrapedAt TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_documents_number ON documents(documentNumber);
CREATE INDEX IF NOT EXISTS idx_documents_date ON documents(publicationDate);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  status TEXT NOT NULL,
  message TEXT NOT NULL DEFAULT '',
  fromDate TEXT NOT NULL DEFAULT '',
  toDate TEXT NOT NULL DEFAULT '',
  newDocuments INTEGER NOT NULL DEFAULT 0,
  totalDocuments INTEGER NOT NULL DEFAULT 0,
  rawFetched INTEGER NOT NULL DEFAULT 0,
  matched INTEGER NOT NULL DEFAULT 0,
  durationSeconds REAL NOT NULL DEFAULT 0,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

// LoadExisting returns the stored collection in insertion order.
func (d *DB) LoadExisting() ([]internal.EnrichedDocument, error) {
	rows, err := d.conn.Query(`
SELECT documentNumber, title, publicationDate, author, form, text, url,
       companies, products,
       groupsMatched, totalGroups, measureKeywords, productKeywords, placeCompanyKeywords, matchedSnippets,
       scrapedAt
FROM documents ORDER BY position ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.EnrichedDocument
	for rows.Next() {
		var doc internal.EnrichedDocument
		var companies, products, measures, productKw, places, snippets string
		if err := rows.Scan(
			&doc.DocumentNumber, &doc.Title, &doc.Date, &doc.Author, &doc.Form, &doc.Text, &doc.URL,
			&companies, &products,
			&doc.Match.GroupsMatched, &doc.Match.TotalGroups, &measures, &productKw, &places, &snippets,
			&doc.ScrapedAt,
		); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(companies), &doc.Companies)
		_ = json.Unmarshal([]byte(products), &doc.Products)
		_ = json.Unmarshal([]byte(measures), &doc.Match.MeasureKeywords)
		_ = json.Unmarshal([]byte(productKw), &doc.Match.ProductKeywords)
		_ = json.Unmarshal([]byte(places), &doc.Match.PlaceCompanyKeywords)
		_ = json.Unmarshal([]byte(snippets), &doc.Match.MatchedSnippets)
		out = append(out, doc)
	}

	return out, rows.Err()
}

// SaveAll replaces the stored collection in one transaction, preserving
// the order of docs. Either the whole collection lands or none of it.
func (d *DB) SaveAll(docs []internal.EnrichedDocument) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM documents`); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
INSERT INTO documents (
  documentNumber, title, publicationDate, author, form, text, url,
  companies, products,
  groupsMatched, totalGroups, measureKeywords, productKeywords, placeCompanyKeywords, matchedSnippets,
  scrapedAt
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, doc := range docs {
		if _, err := stmt.Exec(
			doc.DocumentNumber, doc.Title, doc.Date, doc.Author, doc.Form, doc.Text, doc.URL,
			marshalList(doc.Companies), marshalList(doc.Products),
			doc.Match.GroupsMatched, doc.Match.TotalGroups,
			marshalList(doc.Match.MeasureKeywords), marshalList(doc.Match.ProductKeywords),
			marshalList(doc.Match.PlaceCompanyKeywords), marshalList(doc.Match.MatchedSnippets),
			doc.ScrapedAt,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) LastCheckedDate() (string, error) {
	return d.getMetadata(metaLastCheckedDate)
}

func (d *DB) SetLastCheckedDate(date string) error {
	return d.setMetadata(metaLastCheckedDate, date)
}

func (d *DB) LastRun() (string, error) {
	return d.getMetadata(metaLastRun)
}

// RecordRun appends the run summary to the runs table and stamps the
// last_run marker.
func (d *DB) RecordRun(summary internal.RunSummary) error {
	_, err := d.conn.Exec(`
INSERT INTO runs (status, message, fromDate, toDate, newDocuments, totalDocuments, rawFetched, matched, durationSeconds)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(summary.Status), summary.Message, summary.FromDate, summary.ToDate,
		summary.NewDocuments, summary.TotalDocuments, summary.RawFetched, summary.Matched, summary.DurationSeconds)
	if err != nil {
		return err
	}
	return d.setMetadata(metaLastRun, time.Now().UTC().Format(time.RFC3339))
}

func (d *DB) setMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value, updatedAt) VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) getMetadata(key string) (string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func marshalList(values []string) string {
	if values == nil {
		values = []string{}
	}
	blob, _ := json.Marshal(values)
	return string(blob)
}
