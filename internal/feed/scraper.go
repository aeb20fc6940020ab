package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"github.com/anatolykoptev/go_trends/internal/metrics"
	"github.com/anatolykoptev/go_trends/internal/store"
)

// Scraper fetches all configured feed sources and ingests the normalized
// postings into the job store.
type Scraper struct {
	store    store.Store
	client   *http.Client
	limiter  *rate.Limiter
	feeds    map[string]string // category → WWR feed URL
	remoteOK bool
}

// ScraperConfig configures a Scraper.
type ScraperConfig struct {
	Store      store.Store
	HTTPClient *http.Client
	// RatePerMinute caps outbound feed calls. <=0 means 60/min.
	RatePerMinute int
	// Feeds overrides the default WWR category feeds (nil = WWRFeeds).
	Feeds map[string]string
	// RemoteOK enables the RemoteOK API source.
	RemoteOK bool
}

// NewScraper builds a Scraper. The rate limiter makes the caller wait for
// budget instead of failing when the per-minute cap is hit.
func NewScraper(c ScraperConfig) *Scraper {
	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	perMin := c.RatePerMinute
	if perMin <= 0 {
		perMin = 60
	}
	feeds := c.Feeds
	if feeds == nil {
		feeds = WWRFeeds
	}
	return &Scraper{
		store:    c.Store,
		client:   client,
		limiter:  rate.NewLimiter(rate.Limit(float64(perMin)/60.0), 1),
		feeds:    feeds,
		remoteOK: c.RemoteOK,
	}
}

// ScrapeAndStore fetches every configured feed, normalizes the postings, and
// upserts them one record at a time. A cancelled batch leaves a consistent
// partial result because each upsert is atomic. Per-feed failures are logged
// and skipped; the batch fails only when every feed fails.
func (s *Scraper) ScrapeAndStore(ctx context.Context) (*store.ScrapeSummary, error) {
	metrics.IncrScrapeRequests()
	summary := &store.ScrapeSummary{}

	skillsBefore, err := s.countSkills(ctx)
	if err != nil {
		slog.Warn("scrape: skill count unavailable", slog.Any("error", err))
	}

	var feedErrs []error

	// Deterministic feed order keeps logs and tests stable.
	categories := make([]string, 0, len(s.feeds))
	for cat := range s.feeds {
		categories = append(categories, cat)
	}
	sort.Strings(categories)

	for _, cat := range categories {
		if err := s.limiter.Wait(ctx); err != nil {
			return summary, err
		}
		postings, err := FetchWWR(ctx, s.client, cat, s.feeds[cat])
		if err != nil {
			slog.Warn("scrape: wwr feed failed", slog.String("category", cat), slog.Any("error", err))
			feedErrs = append(feedErrs, err)
			continue
		}
		summary.FeedsProcessed++
		s.ingest(ctx, postings, summary)
	}

	if s.remoteOK {
		if err := s.limiter.Wait(ctx); err != nil {
			return summary, err
		}
		postings, err := FetchRemoteOK(ctx, s.client)
		if err != nil {
			slog.Warn("scrape: remoteok failed", slog.Any("error", err))
			feedErrs = append(feedErrs, err)
		} else {
			summary.FeedsProcessed++
			s.ingest(ctx, postings, summary)
		}
	}

	if summary.FeedsProcessed == 0 && len(feedErrs) > 0 {
		return summary, fmt.Errorf("scrape: all feeds failed: %w", errors.Join(feedErrs...))
	}

	if skillsAfter, err := s.countSkills(ctx); err == nil {
		summary.SkillsAdded = skillsAfter - skillsBefore
	}

	slog.Info("scrape complete",
		slog.Int("feeds", summary.FeedsProcessed),
		slog.Int("fetched", summary.TotalFetched),
		slog.Int("added", summary.JobsAdded),
		slog.Int("updated", summary.JobsUpdated),
		slog.Int("skills_added", summary.SkillsAdded),
	)
	return summary, nil
}

// ingest normalizes and upserts one feed's postings. Malformed postings are
// skipped with a log line.
func (s *Scraper) ingest(ctx context.Context, postings []RawPosting, summary *store.ScrapeSummary) {
	for _, raw := range postings {
		if ctx.Err() != nil {
			return
		}
		summary.TotalFetched++

		job, err := Normalize(raw)
		if err != nil {
			var malformed *MalformedPostingError
			if errors.As(err, &malformed) {
				slog.Debug("scrape: skipping malformed posting",
					slog.String("source", malformed.Source),
					slog.String("missing", malformed.Field))
				continue
			}
			slog.Warn("scrape: normalize failed", slog.Any("error", err))
			continue
		}

		created, err := s.store.UpsertJob(ctx, job)
		if err != nil {
			slog.Warn("scrape: upsert failed",
				slog.String("source", job.Source),
				slog.String("source_id", job.SourceID),
				slog.Any("error", err))
			continue
		}
		if created {
			summary.JobsAdded++
		} else {
			summary.JobsUpdated++
		}
	}
}

func (s *Scraper) countSkills(ctx context.Context) (int, error) {
	return s.store.CountSkills(ctx)
}
