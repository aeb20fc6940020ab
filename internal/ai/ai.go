// Package ai wraps the LLM client behind job-market operations: intent
// classification, trend narratives, skill comparisons, and learning paths.
// Every generation method degrades to a canned answer on failure; only
// ClassifyIntent reports errors, and the caller falls back to keywords.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anatolykoptev/go-kit/llm"
	"golang.org/x/time/rate"

	"github.com/anatolykoptev/go_trends/internal/metrics"
	"github.com/anatolykoptev/go_trends/internal/store"
)

// Intent is the routing decision for one user utterance.
type Intent struct {
	Name     string            `json:"intent"`
	Entities map[string]string `json:"entities"`
}

// Entity returns a named entity or "".
func (in *Intent) Entity(name string) string {
	if in == nil || in.Entities == nil {
		return ""
	}
	return in.Entities[name]
}

// validIntents is the closed set the classifier may return.
var validIntents = map[string]bool{
	"get_trending_skills": true,
	"get_trending_roles":  true,
	"search_jobs":         true,
	"get_statistics":      true,
	"run_analysis":        true,
	"scrape_jobs":         true,
	"get_latest_analysis": true,
	"compare_skills":      true,
	"get_learning_path":   true,
	"answer_question":     true,
	"get_help":            true,
}

// MarketContext carries store-level aggregates into question answering.
type MarketContext struct {
	TotalJobs      int
	RecentJobs     int
	TopSkills      []string
	TotalCompanies int
	Additional     string
}

// SkillMarketData carries mention counts and growth labels for a comparison.
// Fields are preformatted strings so missing data renders as "N/A".
type SkillMarketData struct {
	Skill1Mentions string
	Skill1Growth   string
	Skill2Mentions string
	Skill2Growth   string
}

// Client is an LLM-backed generator with client-side rate limiting.
type Client struct {
	llm     *llm.Client
	limiter *rate.Limiter

	// complete is overridable in tests.
	complete func(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error)
}

// NewClient wraps an initialized LLM client. callsPerMinute <= 0 disables
// the limiter.
func NewClient(c *llm.Client, callsPerMinute int) *Client {
	client := &Client{llm: c}
	if callsPerMinute > 0 {
		client.limiter = rate.NewLimiter(rate.Limit(float64(callsPerMinute)/60), 1)
	}
	client.complete = func(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
		return client.llm.Complete(ctx, "", prompt,
			llm.WithChatTemperature(temperature),
			llm.WithChatMaxTokens(maxTokens),
		)
	}
	return client
}

// call runs one completion through the limiter and metrics.
func (c *Client) call(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}
	metrics.IncrLLMCalls()
	resp, err := c.complete(ctx, prompt, temperature, maxTokens)
	if err != nil {
		metrics.IncrLLMErrors()
		return "", err
	}
	return stripFences(resp), nil
}

// stripFences removes markdown code fences from LLM output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ClassifyIntent maps an utterance onto the closed intent set. LLM failure
// and unparseable output degrade to the keyword classifier; a parseable
// answer naming an intent outside the set becomes get_help, so the user
// sees the clarification rather than a guessed answer.
func (c *Client) ClassifyIntent(ctx context.Context, query string) *Intent {
	if c == nil {
		return FallbackClassify(query)
	}
	raw, err := c.call(ctx, fmt.Sprintf(classifyIntentPrompt, query), 0.1, 200)
	if err != nil {
		slog.Warn("intent classification failed", slog.Any("error", err))
		return FallbackClassify(query)
	}

	var intent Intent
	if err := json.Unmarshal([]byte(raw), &intent); err != nil {
		slog.Warn("intent parse failed", slog.String("raw", raw), slog.Any("error", err))
		return FallbackClassify(query)
	}
	if !validIntents[intent.Name] {
		slog.Warn("unknown intent from classifier", slog.String("intent", intent.Name))
		return &Intent{Name: "get_help", Entities: map[string]string{}}
	}
	if intent.Entities == nil {
		intent.Entities = map[string]string{}
	}
	return &intent
}

// GenerateTrendInsights produces the analysis narrative. Errors propagate so
// the analyzer can degrade the record rather than block the run.
func (c *Client) GenerateTrendInsights(ctx context.Context, skills []store.TrendingSkill, roles []store.TrendingRole, clusters map[string][]string, totalJobs int) (string, error) {
	var sb strings.Builder
	for i, s := range skills {
		if i == 10 {
			break
		}
		fmt.Fprintf(&sb, "- %s: %d mentions (%s)\n", s.SkillName, s.CurrentMentions, s.GrowthPercentage)
	}
	skillsText := sb.String()

	sb.Reset()
	for i, r := range roles {
		if i == 10 {
			break
		}
		top := r.TopSkills
		if len(top) > 3 {
			top = top[:3]
		}
		fmt.Fprintf(&sb, "- %s: %d jobs, Top skills: %s\n", r.RoleName, r.JobCount, strings.Join(top, ", "))
	}
	rolesText := sb.String()

	sb.Reset()
	for skill, related := range clusters {
		if len(related) > 3 {
			related = related[:3]
		}
		fmt.Fprintf(&sb, "- %s: Related to %s\n", skill, strings.Join(related, ", "))
	}

	prompt := fmt.Sprintf(trendInsightsPrompt, skillsText, rolesText, sb.String(), totalJobs)
	return c.call(ctx, prompt, 0.7, 1000)
}

// GenerateLearningPath builds a learning plan toward targetSkill.
func (c *Client) GenerateLearningPath(ctx context.Context, targetSkill string, currentSkills []string) string {
	current := "None listed"
	if len(currentSkills) > 0 {
		current = strings.Join(currentSkills, ", ")
	}
	out, err := c.call(ctx, fmt.Sprintf(learningPathPrompt, targetSkill, current), 0.8, 800)
	if err != nil {
		slog.Warn("learning path generation failed", slog.Any("error", err))
		return fmt.Sprintf("Unable to generate learning path for %s at this time.", targetSkill)
	}
	return out
}

// CompareSkills contrasts two skills using the supplied market data.
func (c *Client) CompareSkills(ctx context.Context, skill1, skill2 string, data SkillMarketData) string {
	prompt := fmt.Sprintf(compareSkillsPrompt,
		skill1, data.Skill1Mentions, data.Skill1Growth,
		skill2, data.Skill2Mentions, data.Skill2Growth,
	)
	out, err := c.call(ctx, prompt, 0.7, 500)
	if err != nil {
		slog.Warn("skill comparison failed", slog.Any("error", err))
		return fmt.Sprintf("Unable to compare %s and %s at this time.", skill1, skill2)
	}
	return out
}

// AnswerQuestion answers a free-form question over the market context.
func (c *Client) AnswerQuestion(ctx context.Context, question string, mc MarketContext) string {
	topSkills := mc.TopSkills
	if len(topSkills) > 5 {
		topSkills = topSkills[:5]
	}
	additional := mc.Additional
	if additional == "" {
		additional = "None"
	}
	prompt := fmt.Sprintf(answerQuestionPrompt,
		question, mc.TotalJobs, mc.RecentJobs, strings.Join(topSkills, ", "), mc.TotalCompanies, additional,
	)
	out, err := c.call(ctx, prompt, 0.7, 400)
	if err != nil {
		slog.Warn("question answering failed", slog.Any("error", err))
		return "I'm having trouble processing your question right now. Please try again or rephrase your question."
	}
	if out == "" {
		return "No response generated"
	}
	return out
}

// SummarizeJobs narrates up to ten listings.
func (c *Client) SummarizeJobs(ctx context.Context, jobs []store.Job) string {
	var sb strings.Builder
	for i, j := range jobs {
		if i == 10 {
			break
		}
		tags := j.Tags
		if len(tags) > 5 {
			tags = tags[:5]
		}
		loc := j.Location
		if loc == "" {
			loc = "Remote"
		}
		fmt.Fprintf(&sb, "- %s at %s\n  Skills: %s\n  Location: %s\n\n", j.Position, j.Company, strings.Join(tags, ", "), loc)
	}
	out, err := c.call(ctx, fmt.Sprintf(summarizeJobsPrompt, sb.String()), 0.6, 350)
	if err != nil {
		slog.Warn("job summary failed", slog.Any("error", err))
		return "Summary unavailable at this time."
	}
	return out
}
