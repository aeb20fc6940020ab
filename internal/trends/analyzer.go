// Package trends computes time-windowed trend statistics over the job store:
// skill growth between adjacent windows, role popularity, and skill
// co-occurrence clusters.
package trends

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/anatolykoptev/go_trends/internal/metrics"
	"github.com/anatolykoptev/go_trends/internal/store"
)

// DefaultWindowDays is the trailing window used when none is given.
const DefaultWindowDays = 30

// clusterTopK caps the related-skill list per cluster entry.
const clusterTopK = 5

// roleTopSkills caps the top-skill list per trending role.
const roleTopSkills = 5

// InsightGenerator produces a narrative summary of an analysis run.
// A failure here degrades the record to an empty insight, it never fails the run.
type InsightGenerator interface {
	GenerateTrendInsights(ctx context.Context, skills []store.TrendingSkill, roles []store.TrendingRole, clusters map[string][]string, totalJobs int) (string, error)
}

// Analyzer computes trends from the job store.
type Analyzer struct {
	store      store.Store
	insights   InsightGenerator // nil = no narrative
	windowDays int
	now        func() time.Time // overridable in tests
}

// NewAnalyzer builds an Analyzer. insights may be nil.
func NewAnalyzer(s store.Store, insights InsightGenerator) *Analyzer {
	return &Analyzer{
		store:      s,
		insights:   insights,
		windowDays: DefaultWindowDays,
		now:        time.Now,
	}
}

// AnalyzeSkillTrends compares tag mention counts between the current window
// [now−w, now) and the prior window [now−2w, now−w). Results are sorted by
// current mentions descending, ties alphabetically. Skills with zero current
// mentions are excluded even if they appeared in the prior window.
func (a *Analyzer) AnalyzeSkillTrends(ctx context.Context, windowDays int) ([]store.TrendingSkill, error) {
	if windowDays <= 0 {
		windowDays = a.windowDays
	}
	now := a.now().UTC()
	windowStart := now.AddDate(0, 0, -windowDays)
	priorStart := now.AddDate(0, 0, -2*windowDays)

	current, err := a.countMentions(ctx, windowStart, now)
	if err != nil {
		return nil, err
	}
	prior, err := a.countMentions(ctx, priorStart, windowStart)
	if err != nil {
		return nil, err
	}

	trending := make([]store.TrendingSkill, 0, len(current))
	for name, cur := range current {
		if cur == 0 {
			continue
		}
		trending = append(trending, store.TrendingSkill{
			SkillName:        name,
			CurrentMentions:  cur,
			PreviousMentions: prior[name],
			GrowthPercentage: growthLabel(cur, prior[name]),
		})
	}

	sort.Slice(trending, func(i, j int) bool {
		if trending[i].CurrentMentions != trending[j].CurrentMentions {
			return trending[i].CurrentMentions > trending[j].CurrentMentions
		}
		return trending[i].SkillName < trending[j].SkillName
	})
	return trending, nil
}

// growthLabel renders the window-over-window growth. Percentages are
// computed on integer mention counts; prior == 0 yields the "New" sentinel
// rather than a division error.
func growthLabel(current, prior int) string {
	switch {
	case prior == 0 && current > 0:
		return "New"
	case prior == 0:
		return "N/A"
	}
	pct := int(math.Round(float64(current-prior) / float64(prior) * 100))
	return fmt.Sprintf("%+d%%", pct)
}

func (a *Analyzer) countMentions(ctx context.Context, start, end time.Time) (map[string]int, error) {
	jobs, err := a.store.JobsBetween(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("trends: jobs between: %w", err)
	}
	counts := make(map[string]int)
	for _, j := range jobs {
		for _, tag := range j.Tags {
			counts[tag]++
		}
	}
	return counts, nil
}

// AnalyzeRoleTrends classifies job titles in the current window into roles
// via the ordered keyword rules and ranks roles by job count. Each role
// carries its most frequent skills, ties broken by first-seen order.
func (a *Analyzer) AnalyzeRoleTrends(ctx context.Context, windowDays int) ([]store.TrendingRole, error) {
	if windowDays <= 0 {
		windowDays = a.windowDays
	}
	now := a.now().UTC()
	jobs, err := a.store.JobsBetween(ctx, now.AddDate(0, 0, -windowDays), now)
	if err != nil {
		return nil, fmt.Errorf("trends: jobs between: %w", err)
	}

	type skillCount struct {
		count    int
		firstIdx int
	}
	roleJobs := make(map[string]int)
	roleSkills := make(map[string]map[string]*skillCount)

	idx := 0
	for _, j := range jobs {
		role := ClassifyRole(j.Position)
		roleJobs[role]++
		if roleSkills[role] == nil {
			roleSkills[role] = make(map[string]*skillCount)
		}
		for _, tag := range j.Tags {
			sc, ok := roleSkills[role][tag]
			if !ok {
				sc = &skillCount{firstIdx: idx}
				roleSkills[role][tag] = sc
				idx++
			}
			sc.count++
		}
	}

	roles := make([]store.TrendingRole, 0, len(roleJobs))
	for name, count := range roleJobs {
		type entry struct {
			skill string
			sc    *skillCount
		}
		entries := make([]entry, 0, len(roleSkills[name]))
		for skill, sc := range roleSkills[name] {
			entries = append(entries, entry{skill, sc})
		}
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].sc.count != entries[j].sc.count {
				return entries[i].sc.count > entries[j].sc.count
			}
			return entries[i].sc.firstIdx < entries[j].sc.firstIdx
		})
		top := make([]string, 0, roleTopSkills)
		for _, e := range entries {
			if len(top) == roleTopSkills {
				break
			}
			top = append(top, e.skill)
		}
		roles = append(roles, store.TrendingRole{
			RoleName:  name,
			JobCount:  count,
			TopSkills: top,
		})
	}

	sort.Slice(roles, func(i, j int) bool {
		if roles[i].JobCount != roles[j].JobCount {
			return roles[i].JobCount > roles[j].JobCount
		}
		return roles[i].RoleName < roles[j].RoleName
	})
	return roles, nil
}

// BuildSkillClusters ranks, for every skill in the window, the other skills
// it co-occurs with in the same posting, capped at clusterTopK.
func (a *Analyzer) BuildSkillClusters(ctx context.Context, windowDays int) (map[string][]string, error) {
	if windowDays <= 0 {
		windowDays = a.windowDays
	}
	now := a.now().UTC()
	jobs, err := a.store.JobsBetween(ctx, now.AddDate(0, 0, -windowDays), now)
	if err != nil {
		return nil, fmt.Errorf("trends: jobs between: %w", err)
	}

	co := make(map[string]map[string]int)
	for _, j := range jobs {
		for _, s1 := range j.Tags {
			if co[s1] == nil {
				co[s1] = make(map[string]int)
			}
			for _, s2 := range j.Tags {
				if s1 != s2 {
					co[s1][s2]++
				}
			}
		}
	}

	clusters := make(map[string][]string, len(co))
	for skill, related := range co {
		type entry struct {
			name  string
			count int
		}
		entries := make([]entry, 0, len(related))
		for name, count := range related {
			entries = append(entries, entry{name, count})
		}
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].count != entries[j].count {
				return entries[i].count > entries[j].count
			}
			return entries[i].name < entries[j].name
		})
		top := make([]string, 0, clusterTopK)
		for _, e := range entries {
			if len(top) == clusterTopK {
				break
			}
			top = append(top, e.name)
		}
		clusters[skill] = top
	}
	return clusters, nil
}

// RunFullAnalysis runs all three computations over the default window,
// persists the snapshot, and asks the insight generator for a narrative.
// Insight failure degrades to an empty insight, never a failed run.
func (a *Analyzer) RunFullAnalysis(ctx context.Context) (*store.AnalysisRecord, error) {
	metrics.IncrAnalysisRuns()
	now := a.now().UTC()

	skills, err := a.AnalyzeSkillTrends(ctx, a.windowDays)
	if err != nil {
		return nil, err
	}
	roles, err := a.AnalyzeRoleTrends(ctx, a.windowDays)
	if err != nil {
		return nil, err
	}
	clusters, err := a.BuildSkillClusters(ctx, a.windowDays)
	if err != nil {
		return nil, err
	}

	jobs, err := a.store.JobsBetween(ctx, now.AddDate(0, 0, -a.windowDays), now)
	if err != nil {
		return nil, err
	}
	unique := make(map[string]bool)
	for _, j := range jobs {
		for _, tag := range j.Tags {
			unique[tag] = true
		}
	}

	rec := &store.AnalysisRecord{
		AnalysisDate:      now,
		TotalJobsAnalyzed: len(jobs),
		UniqueSkillsFound: len(unique),
		TrendingSkills:    skills,
		TrendingRoles:     roles,
		SkillClusters:     clusters,
	}

	if a.insights != nil {
		insight, err := a.insights.GenerateTrendInsights(ctx, skills, roles, clusters, len(jobs))
		if err != nil {
			slog.Warn("trends: insight generation failed", slog.Any("error", err))
		} else {
			rec.AIInsights = insight
		}
	}

	if err := a.store.SaveAnalysis(ctx, rec); err != nil {
		return nil, err
	}

	slog.Info("trend analysis complete",
		slog.Int("jobs", rec.TotalJobsAnalyzed),
		slog.Int("skills", len(skills)),
		slog.Int("roles", len(roles)),
	)
	return rec, nil
}
