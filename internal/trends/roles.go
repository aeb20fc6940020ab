package trends

import "strings"

// roleRule maps title keywords to a canonical role name. Rules are checked
// in order and the first match wins, so the more specific ones come first.
type roleRule struct {
	role     string
	keywords []string
}

var roleRules = []roleRule{
	{"Full-Stack Developer", []string{"full stack", "full-stack", "fullstack"}},
	{"Frontend Developer", []string{"frontend", "front-end", "front end", "react developer", "vue developer", "angular developer"}},
	{"Backend Developer", []string{"backend", "back-end", "back end"}},
	{"DevOps Engineer", []string{"devops", "site reliability", "sre", "platform engineer", "infrastructure engineer"}},
	{"Mobile Developer", []string{"mobile", "ios", "android", "flutter", "react native"}},
	{"Data Engineer", []string{"data engineer", "data scientist", "machine learning", "ml engineer", "ai engineer", "analytics"}},
	{"Designer", []string{"designer", "ux", "ui", "design"}},
	{"Product Manager", []string{"product manager", "product owner", "project manager"}},
	{"QA Engineer", []string{"qa", "quality assurance", "test engineer", "tester"}},
	{"Software Engineer", []string{"software engineer", "software developer", "developer", "engineer", "programmer"}},
}

// ClassifyRole buckets a job title into a canonical role. Titles matching
// no rule fall into "Other".
func ClassifyRole(title string) string {
	t := strings.ToLower(title)
	for _, rule := range roleRules {
		for _, kw := range rule.keywords {
			if strings.Contains(t, kw) {
				return rule.role
			}
		}
	}
	return "Other"
}
