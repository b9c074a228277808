package watch

import (
	"context"
	"log/slog"
	"time"

	"tradewatch/internal"
	"tradewatch/internal/config"
	"tradewatch/internal/pipeline"
)

// Service re-runs the scrape on an interval until the context ends.
type Service struct {
	cfg   config.Config
	coord *pipeline.Coordinator
	log   *slog.Logger
}

func NewService(cfg config.Config, coord *pipeline.Coordinator, log *slog.Logger) *Service {
	return &Service{cfg: cfg, coord: coord, log: log}
}

func (s *Service) Run(ctx context.Context) error {
	interval := time.Duration(s.cfg.WatchIntervalSec) * time.Second

	if s.cfg.WatchAutoStart {
		s.runCycle(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
			s.runCycle(ctx)
		}
	}
}

func (s *Service) runCycle(ctx context.Context) {
	from, to, err := s.coord.DateRange()
	if err != nil {
		s.log.Error("resolve date range", slog.Any("err", err))
		return
	}

	summary := s.coord.RunOnce(ctx, from, to)
	attrs := []any{
		slog.String("status", string(summary.Status)),
		slog.Int("new", summary.NewDocuments),
		slog.Int("total", summary.TotalDocuments),
		slog.Float64("seconds", summary.DurationSeconds),
	}
	if summary.Status == internal.RunError {
		s.log.Error("scrape cycle failed", append(attrs, slog.String("message", summary.Message))...)
		return
	}
	s.log.Info("scrape cycle finished", attrs...)
}
