package pipeline

import (
	"sort"

	"tradewatch/internal"
)

type DateRangeStats struct {
	Earliest string `json:"earliest"`
	Latest   string `json:"latest"`
}

// Statistics summarizes the stored collection for the dashboard.
type Statistics struct {
	TotalDocuments  int            `json:"total_documents"`
	LastRun         string         `json:"last_run"`
	LastCheckedDate string         `json:"last_checked_date"`
	DateRange       DateRangeStats `json:"date_range"`
	DocumentTypes   map[string]int `json:"document_types"`
	Authors         map[string]int `json:"authors"`
	Companies       map[string]int `json:"companies"`
	Products        map[string]int `json:"products"`
}

func BuildStatistics(docs []internal.EnrichedDocument, lastRun, lastChecked string) Statistics {
	stats := Statistics{
		TotalDocuments:  len(docs),
		LastRun:         lastRun,
		LastCheckedDate: lastChecked,
		DocumentTypes:   map[string]int{},
		Authors:         map[string]int{},
		Companies:       map[string]int{},
		Products:        map[string]int{},
	}

	var dates []string
	for _, doc := range docs {
		if doc.Date != "" {
			dates = append(dates, doc.Date)
		}
		stats.DocumentTypes[orUnknown(doc.Form)]++
		stats.Authors[orUnknown(doc.Author)]++
		for _, company := range doc.Companies {
			stats.Companies[company]++
		}
		for _, product := range doc.Products {
			stats.Products[product]++
		}
	}

	if len(dates) > 0 {
		sort.Strings(dates)
		stats.DateRange = DateRangeStats{Earliest: dates[0], Latest: dates[len(dates)-1]}
	}
	return stats
}

func orUnknown(v string) string {
	if v == "" {
		return "Unknown"
	}
	return v
}
