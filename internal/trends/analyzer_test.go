package trends

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_trends/internal/store"
)

// fakeStore serves JobsBetween from a fixed slice and records saved analyses.
type fakeStore struct {
	store.Store
	jobs  []store.Job
	saved []*store.AnalysisRecord
}

func (f *fakeStore) JobsBetween(_ context.Context, start, end time.Time) ([]store.Job, error) {
	var out []store.Job
	for _, j := range f.jobs {
		if !j.DatePosted.Before(start) && j.DatePosted.Before(end) {
			out = append(out, j)
		}
	}
	return out, nil
}

func (f *fakeStore) SaveAnalysis(_ context.Context, rec *store.AnalysisRecord) error {
	f.saved = append(f.saved, rec)
	return nil
}

func jobAt(daysAgo int, position string, tags ...string) store.Job {
	return store.Job{
		Position:   position,
		Company:    "acme",
		Tags:       tags,
		DatePosted: time.Now().UTC().AddDate(0, 0, -daysAgo),
	}
}

func newTestAnalyzer(fs *fakeStore) *Analyzer {
	a := NewAnalyzer(fs, nil)
	a.now = func() time.Time { return time.Now().UTC() }
	return a
}

func TestAnalyzeSkillTrendsGrowth(t *testing.T) {
	fs := &fakeStore{}
	// rust: 5 current, 10 prior -> -50%
	for i := 0; i < 5; i++ {
		fs.jobs = append(fs.jobs, jobAt(3, "Backend Developer", "rust"))
	}
	for i := 0; i < 10; i++ {
		fs.jobs = append(fs.jobs, jobAt(40, "Backend Developer", "rust"))
	}
	// zig: current only -> New
	fs.jobs = append(fs.jobs, jobAt(2, "Systems Programmer", "zig"))
	// cobol: prior only -> excluded
	fs.jobs = append(fs.jobs, jobAt(45, "Legacy Developer", "cobol"))

	a := newTestAnalyzer(fs)
	skills, err := a.AnalyzeSkillTrends(context.Background(), 30)
	require.NoError(t, err)
	require.Len(t, skills, 2)

	assert.Equal(t, "rust", skills[0].SkillName)
	assert.Equal(t, 5, skills[0].CurrentMentions)
	assert.Equal(t, 10, skills[0].PreviousMentions)
	assert.Equal(t, "-50%", skills[0].GrowthPercentage)

	assert.Equal(t, "zig", skills[1].SkillName)
	assert.Equal(t, "New", skills[1].GrowthPercentage)
}

func TestAnalyzeSkillTrendsOrdering(t *testing.T) {
	fs := &fakeStore{}
	fs.jobs = append(fs.jobs,
		jobAt(1, "Dev", "go", "python"),
		jobAt(2, "Dev", "go", "aws"),
		jobAt(3, "Dev", "go"),
	)
	a := newTestAnalyzer(fs)
	skills, err := a.AnalyzeSkillTrends(context.Background(), 30)
	require.NoError(t, err)
	require.Len(t, skills, 3)

	assert.Equal(t, "go", skills[0].SkillName)
	// aws and python tie on count, alphabetical order breaks it
	assert.Equal(t, "aws", skills[1].SkillName)
	assert.Equal(t, "python", skills[2].SkillName)
}

func TestSkillTrendWindowBoundary(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	fs := &fakeStore{jobs: []store.Job{
		// Exactly window_days old: belongs to the current window, not the
		// prior one.
		{Position: "Backend Developer", Tags: []string{"go"}, DatePosted: now.AddDate(0, 0, -30)},
		// Exactly 2*window_days old: belongs to the prior window.
		{Position: "Backend Developer", Tags: []string{"rust"}, DatePosted: now.AddDate(0, 0, -60)},
	}}
	a := NewAnalyzer(fs, nil)
	a.now = func() time.Time { return now }

	skills, err := a.AnalyzeSkillTrends(context.Background(), 30)
	require.NoError(t, err)
	require.Len(t, skills, 1)
	assert.Equal(t, "go", skills[0].SkillName)
	assert.Equal(t, 1, skills[0].CurrentMentions)
	assert.Equal(t, 0, skills[0].PreviousMentions)
	assert.Equal(t, "New", skills[0].GrowthPercentage)
}

func TestGrowthLabel(t *testing.T) {
	assert.Equal(t, "New", growthLabel(3, 0))
	assert.Equal(t, "N/A", growthLabel(0, 0))
	assert.Equal(t, "+100%", growthLabel(20, 10))
	assert.Equal(t, "-50%", growthLabel(5, 10))
	assert.Equal(t, "+0%", growthLabel(10, 10))
	assert.Equal(t, "+33%", growthLabel(4, 3))
}

func TestAnalyzeRoleTrends(t *testing.T) {
	fs := &fakeStore{}
	fs.jobs = append(fs.jobs,
		jobAt(1, "Senior Frontend Developer", "react", "typescript"),
		jobAt(2, "Front-End Engineer", "vue", "typescript"),
		jobAt(3, "DevOps Engineer", "kubernetes"),
		jobAt(4, "Underwater Basket Weaver"),
	)
	a := newTestAnalyzer(fs)
	roles, err := a.AnalyzeRoleTrends(context.Background(), 30)
	require.NoError(t, err)
	require.Len(t, roles, 3)

	assert.Equal(t, "Frontend Developer", roles[0].RoleName)
	assert.Equal(t, 2, roles[0].JobCount)
	assert.Equal(t, "typescript", roles[0].TopSkills[0])

	names := []string{roles[1].RoleName, roles[2].RoleName}
	assert.Contains(t, names, "DevOps Engineer")
	assert.Contains(t, names, "Other")
}

func TestClassifyRoleFirstMatchWins(t *testing.T) {
	// "full stack developer" matches the full-stack rule even though the
	// generic developer rule would also hit
	assert.Equal(t, "Full-Stack Developer", ClassifyRole("Full Stack Developer"))
	assert.Equal(t, "DevOps Engineer", ClassifyRole("Site Reliability Engineer"))
	assert.Equal(t, "Software Engineer", ClassifyRole("Staff Engineer"))
	assert.Equal(t, "Other", ClassifyRole("Chief Happiness Officer"))
}

func TestBuildSkillClusters(t *testing.T) {
	fs := &fakeStore{}
	fs.jobs = append(fs.jobs,
		jobAt(1, "Dev", "go", "docker", "kubernetes"),
		jobAt(2, "Dev", "go", "docker"),
		jobAt(3, "Dev", "go", "postgres"),
	)
	a := newTestAnalyzer(fs)
	clusters, err := a.BuildSkillClusters(context.Background(), 30)
	require.NoError(t, err)

	require.Contains(t, clusters, "go")
	// docker co-occurs with go twice, kubernetes and postgres once each
	assert.Equal(t, "docker", clusters["go"][0])
	assert.Equal(t, []string{"go", "kubernetes"}, clusters["docker"][:2])
}

func TestBuildSkillClustersCapsRelated(t *testing.T) {
	tags := []string{"hub", "a", "b", "c", "d", "e", "f", "g"}
	fs := &fakeStore{jobs: []store.Job{jobAt(1, "Dev", tags...)}}
	a := newTestAnalyzer(fs)
	clusters, err := a.BuildSkillClusters(context.Background(), 30)
	require.NoError(t, err)
	assert.Len(t, clusters["hub"], clusterTopK)
}

type fakeInsights struct {
	text string
	err  error
}

func (f *fakeInsights) GenerateTrendInsights(context.Context, []store.TrendingSkill, []store.TrendingRole, map[string][]string, int) (string, error) {
	return f.text, f.err
}

func TestRunFullAnalysisPersists(t *testing.T) {
	fs := &fakeStore{jobs: []store.Job{
		jobAt(1, "Backend Developer", "go", "postgres"),
		jobAt(2, "Frontend Developer", "react"),
	}}
	a := NewAnalyzer(fs, &fakeInsights{text: "market looks healthy"})

	rec, err := a.RunFullAnalysis(context.Background())
	require.NoError(t, err)
	require.Len(t, fs.saved, 1)

	assert.Equal(t, 2, rec.TotalJobsAnalyzed)
	assert.Equal(t, 3, rec.UniqueSkillsFound)
	assert.Equal(t, "market looks healthy", rec.AIInsights)
	assert.NotEmpty(t, rec.TrendingSkills)
	assert.NotEmpty(t, rec.TrendingRoles)
}

func TestRunFullAnalysisInsightFailureDegrades(t *testing.T) {
	fs := &fakeStore{jobs: []store.Job{jobAt(1, "Dev", "go")}}
	a := NewAnalyzer(fs, &fakeInsights{err: assert.AnError})

	rec, err := a.RunFullAnalysis(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rec.AIInsights)
	require.Len(t, fs.saved, 1)
}
