package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"tradewatch/internal"
	"tradewatch/internal/api"
	"tradewatch/internal/config"
	"tradewatch/internal/eurlex"
	"tradewatch/internal/keywords"
	"tradewatch/internal/logger"
	"tradewatch/internal/pipeline"
	"tradewatch/internal/storage"
	"tradewatch/internal/watch"
)

const dateLayout = "2006-01-02"

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	catalog, err := keywords.Load(cfg)
	must(err)

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	cmd := os.Args[1]
	switch cmd {
	case "scrape:run":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		fromFlag := fs.String("from", "", "start date YYYY-MM-DD (default: resume from state)")
		toFlag := fs.String("to", "", "end date YYYY-MM-DD (default: today)")
		full := fs.Bool("full", false, "scrape from the configured start year")
		_ = fs.Parse(os.Args[2:])

		log := logger.New("scrape")
		coord := pipeline.NewCoordinator(cfg, catalog, eurlex.NewClient(cfg, log), db, db, log)

		from, to, err := resolveRange(cfg, coord, *fromFlag, *toFlag, *full)
		must(err)

		summary := coord.RunOnce(context.Background(), from, to)
		printSummary(summary)
		if summary.Status == internal.RunError {
			os.Exit(1)
		}
	case "scrape:watch":
		log := logger.New("watch")
		coord := pipeline.NewCoordinator(cfg, catalog, eurlex.NewClient(cfg, log), db, db, log)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()
		must(watch.NewService(cfg, coord, log).Run(ctx))
	case "store:clean-duplicates":
		log := logger.New("store")
		coord := pipeline.NewCoordinator(cfg, catalog, eurlex.NewClient(cfg, log), db, db, log)
		removed, err := coord.CleanDuplicates()
		must(err)
		fmt.Printf("clean complete: removed=%d\n", removed)
	case "match:eval":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		title := fs.String("title", "", "document title")
		number := fs.String("number", "", "CELEX document number")
		text := fs.String("text", "", "document body text")
		file := fs.String("file", "", "read body text from file")
		_ = fs.Parse(os.Args[2:])

		body := *text
		if strings.TrimSpace(*file) != "" {
			blob, err := os.ReadFile(*file)
			must(err)
			body = string(blob)
		}

		matcher := pipeline.NewMatcher(catalog)
		result := matcher.Evaluate(internal.CandidateDocument{
			DocumentNumber: *number,
			Title:          *title,
			Text:           body,
		})
		blob, err := json.MarshalIndent(result, "", "  ")
		must(err)
		fmt.Println(string(blob))
	case "export:csv", "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		out := fs.String("out", "", "output file path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--out is required"))
		}

		docs, err := db.LoadExisting()
		must(err)
		if cmd == "export:xlsx" {
			must(pipeline.ExportXLSX(docs, *out))
		} else {
			f, err := os.Create(*out)
			must(err)
			err = pipeline.ExportCSV(docs, f)
			cerr := f.Close()
			must(err)
			must(cerr)
		}
		fmt.Printf("exported %d documents to %s\n", len(docs), *out)
	case "serve":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		addr := fs.String("addr", cfg.APIBindAddr, "bind address")
		_ = fs.Parse(os.Args[2:])

		log := logger.New("api")
		coord := pipeline.NewCoordinator(cfg, catalog, eurlex.NewClient(cfg, log), db, db, log)
		server := api.NewServer(cfg, db, coord, catalog, log)

		must(serveHTTP(*addr, server.Router(), log))
	default:
		usage()
		os.Exit(1)
	}
}

func resolveRange(cfg config.Config, coord *pipeline.Coordinator, fromFlag, toFlag string, full bool) (time.Time, time.Time, error) {
	to := time.Now().Truncate(24 * time.Hour)
	if toFlag != "" {
		parsed, err := time.Parse(dateLayout, toFlag)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --to date: %q", toFlag)
		}
		to = parsed
	}

	if full {
		return time.Date(cfg.ScrapeStartYear, time.January, 1, 0, 0, 0, 0, time.UTC), to, nil
	}
	if fromFlag != "" {
		from, err := time.Parse(dateLayout, fromFlag)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --from date: %q", fromFlag)
		}
		return from, to, nil
	}

	from, stateTo, err := coord.DateRange()
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if toFlag == "" {
		to = stateTo
	}
	return from, to, nil
}

func printSummary(summary internal.RunSummary) {
	fmt.Printf("status=%s from=%s to=%s fetched=%d matched=%d new=%d total=%d duration=%.2fs\n",
		summary.Status, summary.FromDate, summary.ToDate,
		summary.RawFetched, summary.Matched, summary.NewDocuments, summary.TotalDocuments,
		summary.DurationSeconds)
	if summary.Message != "" {
		fmt.Println(summary.Message)
	}
}

func serveHTTP(addr string, handler http.Handler, log *slog.Logger) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", slog.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func usage() {
	fmt.Println("usage: tradewatch <command>")
	fmt.Println("commands:")
	fmt.Println("  scrape:run [--from=YYYY-MM-DD] [--to=YYYY-MM-DD] [--full]")
	fmt.Println("  scrape:watch")
	fmt.Println("  store:clean-duplicates")
	fmt.Println("  match:eval --title=... [--number=...] [--text=...|--file=...]")
	fmt.Println("  export:csv --out=./out/results.csv")
	fmt.Println("  export:xlsx --out=./out/results.xlsx")
	fmt.Println("  serve [--addr=:8000]")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
