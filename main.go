// go_trends — Freelance Trends A2A agent.
//
// Scrapes remote job postings (We Work Remotely RSS, RemoteOK API) on a
// schedule, maintains skill counters and trend snapshots, and answers
// natural-language questions about the market over a JSON-RPC A2A endpoint.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go-kit/llm"
	_ "github.com/joho/godotenv/autoload"

	"github.com/anatolykoptev/go_trends/internal/a2a"
	"github.com/anatolykoptev/go_trends/internal/agent"
	"github.com/anatolykoptev/go_trends/internal/ai"
	"github.com/anatolykoptev/go_trends/internal/cache"
	"github.com/anatolykoptev/go_trends/internal/feed"
	"github.com/anatolykoptev/go_trends/internal/scheduler"
	"github.com/anatolykoptev/go_trends/internal/store"
	"github.com/anatolykoptev/go_trends/internal/trends"
)

func main() {
	port := env.Str("PORT", "8080")
	serviceURL := env.Str("SERVICE_URL", "http://localhost:"+port)

	slog.Info("starting freelance trends agent", slog.String("port", port))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx)
	if err != nil {
		slog.Error("store init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer st.Close()

	aiClient := initAI()

	scraper := feed.NewScraper(feed.ScraperConfig{
		Store:         st,
		RatePerMinute: env.Int("RATE_LIMIT", 60),
		RemoteOK:      env.Str("REMOTEOK_ENABLED", "true") == "true",
	})

	analyzer := trends.NewAnalyzer(st, insightGenerator(aiClient))

	respCache := cache.New(cache.Config{
		RedisURL:        env.Str("REDIS_URL", ""),
		DefaultTTL:      env.Duration("CACHE_TTL", 15*time.Minute),
		MaxEntries:      env.Int("CACHE_MAX_ENTRIES", 1000),
		CleanupInterval: env.Duration("CACHE_CLEANUP_INTERVAL", 300*time.Second),
		TTLs:            agent.ResponseTTLs,
	})
	defer respCache.Close()

	core := agent.New(st, scraper, analyzer, intelligence(aiClient), respCache)

	sched := scheduler.New(scraper, time.Duration(env.Int("JOB_FETCH_INTERVAL_MINUTES", 30))*time.Minute)
	if err := sched.Start(ctx); err != nil {
		slog.Error("scheduler start failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer sched.Stop()

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      a2a.NewServer(core, st, serviceURL+"/a2a/freelance").Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	go func() {
		slog.Info("http server listening",
			slog.String("addr", server.Addr),
			slog.String("a2a", "/a2a/freelance"),
			slog.String("agent_card", "/.well-known/agent-card"),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", slog.Any("error", err))
	}
	slog.Info("freelance trends agent stopped")
}

// openStore selects PostgreSQL when DATABASE_URL is set, SQLite otherwise.
func openStore(ctx context.Context) (store.Store, error) {
	if dbURL := env.Str("DATABASE_URL", ""); dbURL != "" {
		st, err := store.ConnectPostgres(ctx, dbURL)
		if err != nil {
			return nil, err
		}
		slog.Info("store: postgres connected")
		return st, nil
	}
	path := env.Str("SQLITE_PATH", "freelance_trends.db")
	st, err := store.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	slog.Info("store: sqlite opened", slog.String("path", path))
	return st, nil
}

// initAI builds the LLM client. No API key means the agent runs in keyword
// fallback mode: routing still works, generative answers degrade.
func initAI() *ai.Client {
	apiKey := env.Str("LLM_API_KEY", "")
	if apiKey == "" {
		slog.Warn("LLM_API_KEY not set, running with keyword intent fallback only")
		return nil
	}
	base := env.Str("LLM_API_BASE", "https://generativelanguage.googleapis.com/v1beta/openai")
	model := env.Str("LLM_MODEL", "gemini-2.5-flash")

	client := llm.NewClient(base, apiKey, model,
		llm.WithFallbackKeys(env.List("LLM_API_KEY_FALLBACKS", "")),
		llm.WithMaxTokens(env.Int("LLM_MAX_TOKENS", 2048)),
		llm.WithTemperature(env.Float("LLM_TEMPERATURE", 0.7)),
		llm.WithHTTPClient(&http.Client{Timeout: 60 * time.Second}),
	)
	slog.Info("llm client initialized", slog.String("model", model))
	return ai.NewClient(client, env.Int("LLM_RATE_LIMIT", 30))
}

// insightGenerator adapts the optional AI client for the analyzer. Returning
// a typed nil inside a non-nil interface would defeat the analyzer's nil
// check, so map nil to nil explicitly.
func insightGenerator(c *ai.Client) trends.InsightGenerator {
	if c == nil {
		return nil
	}
	return c
}

// intelligence does the same adaptation for the agent core.
func intelligence(c *ai.Client) agent.Intelligence {
	if c == nil {
		return nil
	}
	return c
}
