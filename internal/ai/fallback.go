package ai

import "strings"

// fallbackRule routes an utterance by keyword when the LLM classifier is
// unavailable. First match wins.
type fallbackRule struct {
	intent   string
	keywords []string
}

var fallbackRules = []fallbackRule{
	{"get_help", []string{"help", "what can you do", "commands"}},
	{"compare_skills", []string{"compare", " vs ", " versus "}},
	{"get_learning_path", []string{"learn", "learning path", "study", "how do i get into"}},
	{"get_trending_skills", []string{"trending skills", "top skills", "hot skills", "top tech", "skill trends"}},
	{"get_trending_roles", []string{"trending roles", "popular roles", "trending positions", "popular job"}},
	{"search_jobs", []string{"find jobs", "search jobs", "job openings", "openings", "vacancies", "find work"}},
	{"get_statistics", []string{"statistics", "stats", "summary", "overview", "how many jobs"}},
	{"run_analysis", []string{"run analysis", "analyze", "analyse", "deep dive"}},
	{"scrape_jobs", []string{"scrape", "update jobs", "fetch latest", "refresh jobs"}},
	{"get_latest_analysis", []string{"latest analysis", "latest report", "newest report", "latest insights"}},
}

// FallbackClassify is the keyword-only classifier used when the LLM route
// is unavailable or returns garbage. Unmatched queries become general
// questions.
func FallbackClassify(query string) *Intent {
	q := " " + strings.ToLower(strings.TrimSpace(query)) + " "
	for _, rule := range fallbackRules {
		for _, kw := range rule.keywords {
			if strings.Contains(q, kw) {
				return &Intent{Name: rule.intent, Entities: extractEntities(rule.intent, query)}
			}
		}
	}
	return &Intent{Name: "answer_question", Entities: map[string]string{}}
}

// extractEntities pulls the obvious arguments out of the raw query for the
// intents that need them. Best effort only.
func extractEntities(intent, query string) map[string]string {
	entities := map[string]string{}
	lower := strings.ToLower(query)
	switch intent {
	case "compare_skills":
		for _, sep := range []string{" vs ", " versus "} {
			if i := strings.Index(lower, sep); i >= 0 {
				left := strings.Fields(query[:i])
				right := strings.Fields(query[i+len(sep):])
				if len(left) > 0 {
					entities["skill1"] = strings.Trim(left[len(left)-1], ",.?!")
				}
				if len(right) > 0 {
					entities["skill2"] = strings.Trim(right[0], ",.?!")
				}
				break
			}
		}
	case "search_jobs":
		for _, marker := range []string{"jobs in ", "jobs for ", "openings in ", "openings for "} {
			if i := strings.Index(lower, marker); i >= 0 {
				if q := strings.TrimSpace(query[i+len(marker):]); q != "" {
					entities["job_query"] = strings.Trim(q, ",.?!")
				}
				break
			}
		}
	case "get_learning_path":
		for _, marker := range []string{"learn ", "study ", "get into "} {
			if i := strings.Index(lower, marker); i >= 0 {
				if s := strings.TrimSpace(query[i+len(marker):]); s != "" {
					entities["target_skill"] = strings.Trim(s, ",.?!")
				}
				break
			}
		}
	}
	return entities
}
