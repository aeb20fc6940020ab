// Package scheduler wires up the cron job that periodically re-scrapes the
// job feeds so trend windows stay fresh without manual scrape requests.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/anatolykoptev/go_trends/internal/store"
)

// Runner is the ingestion entry point the scheduler drives.
type Runner interface {
	ScrapeAndStore(ctx context.Context) (*store.ScrapeSummary, error)
}

// Scheduler wraps robfig/cron and manages the scrape loop.
type Scheduler struct {
	cron    *cron.Cron
	scraper Runner
	spec    string // cron spec, e.g. "@every 30m"
}

// New creates a Scheduler firing once per interval.
func New(scraper Runner, interval time.Duration) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		scraper: scraper,
		spec:    fmt.Sprintf("@every %s", interval),
	}
}

// Start registers the job and starts the scheduler. Also runs one scrape
// immediately so the store is populated without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.runScrape(ctx)
	})
	if err != nil {
		return fmt.Errorf("scheduler: cron.AddFunc: %w", err)
	}

	s.cron.Start()
	slog.Info("scheduler started", slog.String("spec", s.spec))

	go s.runScrape(ctx)
	return nil
}

// Stop shuts the scheduler down. Already-running cycles finish or bail out
// on their context.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	slog.Info("scheduler stopped")
}

func (s *Scheduler) runScrape(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	slog.Info("scheduled scrape started")

	summary, err := s.scraper.ScrapeAndStore(ctx)
	if err != nil {
		slog.Error("scheduled scrape failed", slog.Any("error", err))
		return
	}
	slog.Info("scheduled scrape complete",
		slog.Int("fetched", summary.TotalFetched),
		slog.Int("added", summary.JobsAdded),
		slog.Int("updated", summary.JobsUpdated),
	)
}
