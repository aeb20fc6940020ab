// Package agent is the conversational core: it routes incoming messages
// through intent classification to the market operations and shapes the
// results into task responses.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/anatolykoptev/go_trends/internal/a2a"
	"github.com/anatolykoptev/go_trends/internal/ai"
	"github.com/anatolykoptev/go_trends/internal/cache"
	"github.com/anatolykoptev/go_trends/internal/store"
)

// Scraper runs one ingestion batch over all feed sources.
type Scraper interface {
	ScrapeAndStore(ctx context.Context) (*store.ScrapeSummary, error)
}

// Analyzer computes trend statistics over the job store.
type Analyzer interface {
	AnalyzeSkillTrends(ctx context.Context, windowDays int) ([]store.TrendingSkill, error)
	AnalyzeRoleTrends(ctx context.Context, windowDays int) ([]store.TrendingRole, error)
	RunFullAnalysis(ctx context.Context) (*store.AnalysisRecord, error)
}

// Intelligence is the LLM-backed feature set. May be absent; the agent then
// degrades to keyword routing and canned answers.
type Intelligence interface {
	ClassifyIntent(ctx context.Context, query string) *ai.Intent
	GenerateLearningPath(ctx context.Context, targetSkill string, currentSkills []string) string
	CompareSkills(ctx context.Context, skill1, skill2 string, data ai.SkillMarketData) string
	AnswerQuestion(ctx context.Context, question string, mc ai.MarketContext) string
	SummarizeJobs(ctx context.Context, jobs []store.Job) string
}

// Agent wires the store, the scraper, the analyzer, and the optional LLM
// into the message processing loop.
type Agent struct {
	store    store.Store
	scraper  Scraper
	analyzer Analyzer
	ai       Intelligence // nil when no LLM is configured
	cache    *cache.Cache // nil disables response caching
}

// New builds the agent. aiClient and c may be nil.
func New(st store.Store, scraper Scraper, analyzer Analyzer, aiClient Intelligence, c *cache.Cache) *Agent {
	return &Agent{
		store:    st,
		scraper:  scraper,
		analyzer: analyzer,
		ai:       aiClient,
		cache:    c,
	}
}

// ResponseTTLs is the cache policy for handler results, keyed by intent.
// Mutations and the open-ended conversational answer are never cached; the
// static help text lives longest; everything else takes the cache default.
var ResponseTTLs = map[string]time.Duration{
	"scrape_jobs":     0,
	"run_analysis":    0,
	"answer_question": 0,
	"get_help":        time.Hour,
}

// handlerResult is what one intent handler produces.
type handlerResult struct {
	Response  string         `json:"response"`
	Artifacts []a2a.Artifact `json:"artifacts"`
	State     string         `json:"state"`
}

// ProcessMessages handles one task: classify the last message's text, run
// the matching operation, and wrap the outcome. Handler errors and panics
// become failed task results, never transport errors.
func (a *Agent) ProcessMessages(ctx context.Context, messages []a2a.Message, contextID, taskID string) a2a.TaskResult {
	if contextID == "" {
		contextID = uuid.NewString()
	}
	if taskID == "" {
		taskID = uuid.NewString()
	}

	if len(messages) == 0 {
		return a.errorResult(contextID, taskID, "No message provided", messages)
	}

	userText := ""
	for _, part := range messages[len(messages)-1].Parts {
		if part.Kind == "text" {
			userText = strings.TrimSpace(part.Text)
			break
		}
	}

	result, err := a.safeHandle(ctx, userText)
	if err != nil {
		slog.Error("message processing failed", slog.Any("error", err))
		return a.errorResult(contextID, taskID, err.Error(), messages)
	}

	responseMessage := a2a.Message{
		Role:      "agent",
		Parts:     []a2a.Part{{Kind: "text", Text: result.Response}},
		MessageID: uuid.NewString(),
		TaskID:    taskID,
		Kind:      "message",
	}

	return a2a.TaskResult{
		ID:        taskID,
		ContextID: contextID,
		Status: a2a.TaskStatus{
			State:     result.State,
			Message:   &responseMessage,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
		Artifacts: result.Artifacts,
		History:   append(append([]a2a.Message{}, messages...), responseMessage),
		Kind:      "task",
	}
}

// safeHandle runs the intent dispatch with panic containment.
func (a *Agent) safeHandle(ctx context.Context, userText string) (res *handlerResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			res, err = nil, fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return a.handleIntent(ctx, userText)
}

// handleIntent classifies and dispatches. Cacheable intents consult the
// response cache first; mutating intents invalidate it afterwards.
func (a *Agent) handleIntent(ctx context.Context, userText string) (*handlerResult, error) {
	intent := a.classify(ctx, userText)
	slog.Info("classified intent",
		slog.String("intent", intent.Name),
		slog.Int("entities", len(intent.Entities)),
	)

	key := cacheKey(intent, userText)
	if cached, ok := a.cache.Get(ctx, intent.Name, key); ok {
		var res handlerResult
		if json.Unmarshal(cached, &res) == nil {
			return &res, nil
		}
	}

	res, err := a.dispatch(ctx, userText, intent)
	if err != nil {
		return nil, err
	}

	switch intent.Name {
	case "scrape_jobs", "run_analysis":
		a.cache.Invalidate()
	default:
		if res.State == a2a.StateCompleted {
			if data, err := json.Marshal(res); err == nil {
				a.cache.Set(ctx, intent.Name, key, data)
			}
		}
	}
	return res, nil
}

func (a *Agent) classify(ctx context.Context, userText string) *ai.Intent {
	if a.ai == nil {
		return ai.FallbackClassify(userText)
	}
	return a.ai.ClassifyIntent(ctx, userText)
}

func (a *Agent) dispatch(ctx context.Context, userText string, intent *ai.Intent) (*handlerResult, error) {
	switch intent.Name {
	case "get_trending_skills":
		return a.trendingSkills(ctx)
	case "get_trending_roles":
		return a.trendingRoles(ctx)
	case "search_jobs":
		query := intent.Entity("job_query")
		if query == "" {
			query = userText
		}
		return a.searchJobs(ctx, query)
	case "get_statistics":
		return a.statistics(ctx)
	case "run_analysis":
		return a.runAnalysis(ctx)
	case "scrape_jobs":
		return a.scrapeJobs(ctx)
	case "get_latest_analysis":
		return a.latestAnalysis(ctx)
	case "compare_skills":
		return a.compareSkills(ctx, intent.Entity("skill1"), intent.Entity("skill2"))
	case "get_learning_path":
		return a.learningPath(ctx, intent.Entity("target_skill"))
	case "answer_question":
		return a.answerQuestion(ctx, userText)
	default:
		return a.help(), nil
	}
}

// cacheKey folds the intent and its arguments into a stable key. Free-form
// intents key on the raw utterance.
func cacheKey(intent *ai.Intent, userText string) string {
	switch intent.Name {
	case "search_jobs":
		q := intent.Entity("job_query")
		if q == "" {
			q = userText
		}
		return cache.Key(intent.Name, q)
	case "compare_skills":
		return cache.Key(intent.Name, intent.Entity("skill1"), intent.Entity("skill2"))
	case "get_learning_path":
		return cache.Key(intent.Name, intent.Entity("target_skill"))
	case "answer_question":
		return cache.Key(intent.Name, userText)
	default:
		return cache.Key(intent.Name)
	}
}

func (a *Agent) errorResult(contextID, taskID, errMsg string, history []a2a.Message) a2a.TaskResult {
	errorMessage := a2a.Message{
		Role:      "agent",
		Parts:     []a2a.Part{{Kind: "text", Text: "Error: " + errMsg}},
		MessageID: uuid.NewString(),
		TaskID:    taskID,
		Kind:      "message",
	}
	return a2a.TaskResult{
		ID:        taskID,
		ContextID: contextID,
		Status: a2a.TaskStatus{
			State:     a2a.StateFailed,
			Message:   &errorMessage,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
		Artifacts: []a2a.Artifact{},
		History:   append(append([]a2a.Message{}, history...), errorMessage),
		Kind:      "task",
	}
}
