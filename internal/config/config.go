package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath string

	EURLexBaseURL     string
	EURLexSearchText  string
	EURLexTimeoutMs   int
	EURLexRateRPS     int
	EURLexMaxPages    int
	EURLexFetchText   bool
	ScrapeStartYear   int
	WatchIntervalSec  int
	WatchAutoStart    bool

	APIBindAddr string

	MeasureKeywords      []string
	ProductKeywords      []string
	PlaceCompanyKeywords []string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath: getEnv("DB_PATH", filepath.Join(cwd, "data", "tradewatch.db")),

		EURLexBaseURL:    getEnv("EURLEX_BASE_URL", "https://eur-lex.europa.eu"),
		EURLexSearchText: getEnv("EURLEX_SEARCH_TEXT", "Morocco"),
		EURLexTimeoutMs:  getEnvInt("EURLEX_TIMEOUT_MS", 30000),
		EURLexRateRPS:    getEnvInt("EURLEX_RATE_LIMIT_RPS", 1),
		EURLexMaxPages:   getEnvInt("EURLEX_MAX_PAGES", 10),
		EURLexFetchText:  getEnvBool("EURLEX_FETCH_FULL_TEXT", false),
		ScrapeStartYear:  getEnvInt("SCRAPE_START_YEAR", 2024),
		WatchIntervalSec: getEnvInt("WATCH_INTERVAL_SEC", 3600),
		WatchAutoStart:   getEnvBool("WATCH_RUN_ON_START", true),

		APIBindAddr: getEnv("API_BIND_ADDR", ":8000"),

		MeasureKeywords:      getEnvList("MEASURE_KEYWORDS"),
		ProductKeywords:      getEnvList("PRODUCT_KEYWORDS"),
		PlaceCompanyKeywords: getEnvList("PLACE_COMPANY_KEYWORDS"),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}

// getEnvList splits a comma-separated env var; an unset or blank var
// yields nil so callers can fall back to built-in defaults.
func getEnvList(key string) []string {
	raw := getEnv(key, "")
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
