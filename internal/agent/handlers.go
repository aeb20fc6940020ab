package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/anatolykoptev/go_trends/internal/a2a"
	"github.com/anatolykoptev/go_trends/internal/ai"
)

const trendWindowDays = 30

func (a *Agent) trendingSkills(ctx context.Context) (*handlerResult, error) {
	skills, err := a.analyzer.AnalyzeSkillTrends(ctx, trendWindowDays)
	if err != nil {
		return nil, err
	}
	if len(skills) == 0 {
		return completed("No trending skills data available yet. Try running an analysis first."), nil
	}

	var sb strings.Builder
	sb.WriteString("**Top Trending Skills (Last 30 Days)**\n\n")
	sb.WriteString("Based on remote job listings from We Work Remotely:\n\n")
	for i, skill := range skills {
		if i == 10 {
			break
		}
		fmt.Fprintf(&sb, "%d. **%s**: %d mentions (%s)\n", i+1, titleCase(skill.SkillName), skill.CurrentMentions, skill.GrowthPercentage)
	}

	return completed(sb.String(), artifact("trending_skills", dataPart(map[string]any{"skills": skills}))), nil
}

func (a *Agent) trendingRoles(ctx context.Context) (*handlerResult, error) {
	roles, err := a.analyzer.AnalyzeRoleTrends(ctx, trendWindowDays)
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return completed("No trending roles data available yet."), nil
	}

	var sb strings.Builder
	sb.WriteString("**Top Trending Job Roles (Last 30 Days)**\n\n")
	sb.WriteString("From remote job postings across multiple categories:\n\n")
	for i, role := range roles {
		if i == 10 {
			break
		}
		skillsStr := "N/A"
		if len(role.TopSkills) > 0 {
			top := role.TopSkills
			if len(top) > 3 {
				top = top[:3]
			}
			skillsStr = strings.Join(top, ", ")
		}
		fmt.Fprintf(&sb, "%d. **%s**: %d jobs\n   Top Skills: %s\n\n", i+1, role.RoleName, role.JobCount, skillsStr)
	}

	return completed(sb.String(), artifact("trending_roles", dataPart(map[string]any{"roles": roles}))), nil
}

func (a *Agent) searchJobs(ctx context.Context, query string) (*handlerResult, error) {
	jobs, err := a.store.SearchJobs(ctx, query, 20)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return completed("No jobs found matching your criteria."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "**Found %d Recent Remote Jobs**\n\n", len(jobs))
	sb.WriteString("From We Work Remotely RSS Feeds:\n\n")
	for i, job := range jobs {
		if i == 10 {
			break
		}
		skills := "N/A"
		if len(job.Tags) > 0 {
			tags := job.Tags
			if len(tags) > 5 {
				tags = tags[:5]
			}
			skills = strings.Join(tags, ", ")
		}
		fmt.Fprintf(&sb, "%d. **%s** at %s\n", i+1, job.Position, job.Company)
		fmt.Fprintf(&sb, "   Location: %s\n", job.Location)
		fmt.Fprintf(&sb, "   Skills: %s\n", skills)
		fmt.Fprintf(&sb, "   Posted: %s\n", job.DatePosted.Format("2006-01-02"))
		if job.URL != "" {
			fmt.Fprintf(&sb, "   Apply: %s\n", job.URL)
		}
		sb.WriteString("\n")
	}

	if a.ai != nil {
		if summary := a.ai.SummarizeJobs(ctx, jobs); summary != "" {
			sb.WriteString("**🤖 Market Snapshot:**\n\n")
			sb.WriteString(summary)
		}
	}

	return completed(sb.String(), artifact("job_search_results", dataPart(map[string]any{"jobs": jobs}))), nil
}

func (a *Agent) statistics(ctx context.Context) (*handlerResult, error) {
	totalJobs, err := a.store.TotalJobs(ctx)
	if err != nil {
		return nil, err
	}
	jobs24h, err := a.store.CountSince(ctx, 24*time.Hour)
	if err != nil {
		return nil, err
	}
	jobs7d, err := a.store.CountSince(ctx, 7*24*time.Hour)
	if err != nil {
		return nil, err
	}
	topSkills, err := a.store.TopSkills(ctx, 5)
	if err != nil {
		return nil, err
	}
	skillNames := make([]string, 0, len(topSkills))
	for _, s := range topSkills {
		skillNames = append(skillNames, s.Name)
	}

	var sb strings.Builder
	sb.WriteString("**Freelance Jobs Statistics**\n\n")
	sb.WriteString("Data aggregated from We Work Remotely RSS feeds:\n\n")
	fmt.Fprintf(&sb, "📊 **Total Jobs Tracked**: %d\n", totalJobs)
	fmt.Fprintf(&sb, "📅 **Last 24 Hours**: %d jobs\n", jobs24h)
	fmt.Fprintf(&sb, "📅 **Last 7 Days**: %d jobs\n", jobs7d)
	fmt.Fprintf(&sb, "🔥 **Top Skills**: %s\n", strings.Join(skillNames, ", "))
	sb.WriteString("\n🌍 **All positions are remote-friendly**\n")

	stats := map[string]any{
		"total_jobs":   totalJobs,
		"jobs_24h":     jobs24h,
		"jobs_7d":      jobs7d,
		"top_skills":   skillNames,
		"data_sources": []string{"We Work Remotely RSS Feeds", "RemoteOK API"},
	}
	return completed(sb.String(), artifact("statistics", dataPart(stats))), nil
}

func (a *Agent) runAnalysis(ctx context.Context) (*handlerResult, error) {
	rec, err := a.analyzer.RunFullAnalysis(ctx)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString("**Comprehensive Trend Analysis Completed**\n\n")
	fmt.Fprintf(&sb, "✅ Analyzed %d remote jobs\n", rec.TotalJobsAnalyzed)
	fmt.Fprintf(&sb, "📈 Found %d trending skills\n", len(rec.TrendingSkills))
	fmt.Fprintf(&sb, "💼 Found %d trending roles\n", len(rec.TrendingRoles))
	sb.WriteString("🌍 Data from We Work Remotely RSS feeds\n\n")
	if rec.AIInsights != "" {
		sb.WriteString("**🤖 AI Insights:**\n\n")
		sb.WriteString(rec.AIInsights)
	}

	summary := map[string]any{
		"total_jobs_analyzed":   rec.TotalJobsAnalyzed,
		"unique_skills_found":   rec.UniqueSkillsFound,
		"trending_skills_count": len(rec.TrendingSkills),
		"trending_roles_count":  len(rec.TrendingRoles),
		"ai_insights":           rec.AIInsights,
	}
	return completed(sb.String(), artifact("analysis_result", dataPart(summary))), nil
}

func (a *Agent) scrapeJobs(ctx context.Context) (*handlerResult, error) {
	summary, err := a.scraper.ScrapeAndStore(ctx)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString("**RSS Feed Scraping Completed**\n\n")
	fmt.Fprintf(&sb, "📡 **Feeds Processed**: %d\n", summary.FeedsProcessed)
	fmt.Fprintf(&sb, "✅ **Fetched**: %d jobs\n", summary.TotalFetched)
	fmt.Fprintf(&sb, "➕ **New Jobs**: %d\n", summary.JobsAdded)
	fmt.Fprintf(&sb, "🔄 **Updated Jobs**: %d\n", summary.JobsUpdated)
	fmt.Fprintf(&sb, "🏷️ **Skills Tracked**: %d\n\n", summary.SkillsAdded)
	sb.WriteString("Sources: Full-Stack, Frontend, Programming, Design, DevOps categories")

	return completed(sb.String(), artifact("scrape_result", dataPart(summary))), nil
}

func (a *Agent) latestAnalysis(ctx context.Context) (*handlerResult, error) {
	rec, err := a.store.LatestAnalysis(ctx)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return completed("No analysis available yet. Run 'analyze trends' first."), nil
	}

	var sb strings.Builder
	sb.WriteString("**Latest Trend Analysis**\n\n")
	fmt.Fprintf(&sb, "📅 Date: %s\n", rec.AnalysisDate.Format("2006-01-02 15:04"))
	fmt.Fprintf(&sb, "📊 Jobs Analyzed: %d\n", rec.TotalJobsAnalyzed)
	fmt.Fprintf(&sb, "🔧 Unique Skills: %d\n", rec.UniqueSkillsFound)
	if len(rec.TrendingSkills) > 0 {
		sb.WriteString("\n**Top 3 Trending Skills:**\n")
		for i, skill := range rec.TrendingSkills {
			if i == 3 {
				break
			}
			fmt.Fprintf(&sb, "• %s: %s\n", skill.SkillName, skill.GrowthPercentage)
		}
	}
	if rec.AIInsights != "" {
		fmt.Fprintf(&sb, "\n**🤖 AI Insights:**\n\n%s", rec.AIInsights)
	}

	data := map[string]any{
		"analysis_date":   rec.AnalysisDate.Format(time.RFC3339),
		"trending_skills": rec.TrendingSkills,
		"trending_roles":  rec.TrendingRoles,
		"skill_clusters":  rec.SkillClusters,
		"ai_insights":     rec.AIInsights,
	}
	return completed(sb.String(), artifact("latest_analysis", dataPart(data))), nil
}

func (a *Agent) compareSkills(ctx context.Context, skill1, skill2 string) (*handlerResult, error) {
	if skill1 == "" || skill2 == "" {
		return completed("Please specify two skills to compare."), nil
	}

	data := ai.SkillMarketData{
		Skill1Mentions: "0",
		Skill2Mentions: "0",
		Skill1Growth:   "N/A",
		Skill2Growth:   "N/A",
	}
	if s, err := a.store.LookupSkill(ctx, skill1); err == nil && s != nil {
		data.Skill1Mentions = fmt.Sprint(s.TotalMentions)
	}
	if s, err := a.store.LookupSkill(ctx, skill2); err == nil && s != nil {
		data.Skill2Mentions = fmt.Sprint(s.TotalMentions)
	}

	comparison := fmt.Sprintf("Unable to compare %s and %s at this time.", skill1, skill2)
	if a.ai != nil {
		comparison = a.ai.CompareSkills(ctx, skill1, skill2, data)
	}

	response := fmt.Sprintf("**Comparing %s vs %s**\n\n%s", titleCase(skill1), titleCase(skill2), comparison)
	return completed(response, artifact("skill_comparison", textPart(comparison))), nil
}

func (a *Agent) learningPath(ctx context.Context, targetSkill string) (*handlerResult, error) {
	if targetSkill == "" {
		return completed("Please specify a skill to learn."), nil
	}

	path := fmt.Sprintf("Unable to generate learning path for %s at this time.", targetSkill)
	if a.ai != nil {
		path = a.ai.GenerateLearningPath(ctx, targetSkill, nil)
	}

	response := fmt.Sprintf("**Learning Path for %s**\n\n%s", titleCase(targetSkill), path)
	return completed(response, artifact("learning_path", textPart(path))), nil
}

func (a *Agent) answerQuestion(ctx context.Context, question string) (*handlerResult, error) {
	mc := ai.MarketContext{
		Additional: "Data from We Work Remotely RSS feeds and the RemoteOK API, updated on a schedule",
	}
	if n, err := a.store.TotalJobs(ctx); err == nil {
		mc.TotalJobs = n
	}
	if n, err := a.store.CountSince(ctx, 7*24*time.Hour); err == nil {
		mc.RecentJobs = n
	}
	if n, err := a.store.CountCompanies(ctx); err == nil {
		mc.TotalCompanies = n
	}
	if skills, err := a.store.TopSkills(ctx, 5); err == nil {
		for _, s := range skills {
			mc.TopSkills = append(mc.TopSkills, s.Name)
		}
	}

	var answer string
	if a.ai != nil {
		answer = a.ai.AnswerQuestion(ctx, question, mc)
	} else {
		answer = fmt.Sprintf(
			"I'm tracking %d remote jobs (%d posted in the last 7 days) across %d companies. Top skills right now: %s.",
			mc.TotalJobs, mc.RecentJobs, mc.TotalCompanies, strings.Join(mc.TopSkills, ", "),
		)
	}

	return completed("**Answer:**\n\n"+answer, artifact("ai_answer", textPart(answer))), nil
}

const helpText = `**Freelance Trends Agent - Available Commands**

I track remote freelance jobs from We Work Remotely across multiple categories!

📊 **Statistics**
• "show statistics" - Overall job market stats
• "show stats" - Same as above

🔥 **Trends**
• "show trending skills" - Top trending technologies
• "show trending roles" - Most popular positions
• "latest analysis" - Most recent trend analysis

🔍 **Search**
• "search jobs" - Find recent job postings
• "find React jobs" - Search for specific technologies

🤖 **AI-Powered Features**
• "compare Python vs JavaScript" - Compare skills
• "learn React" - Get a learning path
• Ask questions about the job market

⚙️ **Actions**
• "scrape jobs" - Fetch latest jobs from RSS feeds
• "analyze trends" - Run AI-powered trend analysis

💡 **Data Sources**
• We Work Remotely RSS Feeds
• RemoteOK API
• Categories: Full-Stack, Frontend, Programming, Design, DevOps

Just ask naturally and I'll help you discover remote job trends!
`

func (a *Agent) help() *handlerResult {
	return completed(helpText, artifact("help", textPart(helpText)))
}

func completed(response string, artifacts ...a2a.Artifact) *handlerResult {
	if artifacts == nil {
		artifacts = []a2a.Artifact{}
	}
	return &handlerResult{Response: response, Artifacts: artifacts, State: a2a.StateCompleted}
}

func artifact(name string, part a2a.Part) a2a.Artifact {
	return a2a.Artifact{
		ArtifactID: uuid.NewString(),
		Name:       name,
		Parts:      []a2a.Part{part},
	}
}

func textPart(text string) a2a.Part {
	return a2a.Part{Kind: "text", Text: text}
}

func dataPart(v any) a2a.Part {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("artifact data marshal failed", slog.Any("error", err))
		data = []byte("{}")
	}
	return a2a.Part{Kind: "data", Data: data}
}

// titleCase upper-cases the first letter of each word. strings.Fields never
// yields an empty word, so runes[0] is always present.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
