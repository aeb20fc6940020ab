package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testJob(sourceID string, tags ...string) *Job {
	return &Job{
		Source:     "weworkremotely",
		SourceID:   sourceID,
		Position:   "Backend Developer",
		Company:    "Acme",
		Location:   "Remote",
		Tags:       tags,
		URL:        "https://example.com/jobs/" + sourceID,
		DatePosted: time.Now().UTC().Add(-time.Hour),
	}
}

func TestUpsertJobCreateThenUpdate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	job := testJob("j1", "go", "postgres")
	created, err := s.UpsertJob(ctx, job)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, job.ID)

	// Same (source, source_id) again: update, not insert.
	again := testJob("j1", "go", "postgres", "kubernetes")
	again.Position = "Senior Backend Developer"
	created, err = s.UpsertJob(ctx, again)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, job.ID, again.ID)

	total, err := s.TotalJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	jobs, err := s.SearchJobs(ctx, "senior", 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "Senior Backend Developer", jobs[0].Position)
	assert.Equal(t, []string{"go", "postgres", "kubernetes"}, jobs[0].Tags)
}

func TestUpsertJobSkillCountersOnlyOnCreate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertJob(ctx, testJob("j1", "go", "docker"))
	require.NoError(t, err)
	_, err = s.UpsertJob(ctx, testJob("j2", "go"))
	require.NoError(t, err)

	// Re-ingest j1: counters must not move.
	_, err = s.UpsertJob(ctx, testJob("j1", "go", "docker"))
	require.NoError(t, err)

	skills, err := s.TopSkills(ctx, 10)
	require.NoError(t, err)
	require.Len(t, skills, 2)
	assert.Equal(t, "go", skills[0].Name)
	assert.Equal(t, 2, skills[0].TotalMentions)
	assert.Equal(t, "docker", skills[1].Name)
	assert.Equal(t, 1, skills[1].TotalMentions)

	n, err := s.CountSkills(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSearchJobsMatchesPositionCompanyTags(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	j1 := testJob("j1", "python")
	j1.Position = "Data Engineer"
	j1.Company = "Initech"
	j2 := testJob("j2", "go")
	j2.Position = "Platform Engineer"
	j2.Company = "Globex"
	for _, j := range []*Job{j1, j2} {
		_, err := s.UpsertJob(ctx, j)
		require.NoError(t, err)
	}

	for _, tc := range []struct {
		query string
		want  string
	}{
		{"data", "Data Engineer"},
		{"GLOBEX", "Platform Engineer"},
		{"python", "Data Engineer"},
	} {
		jobs, err := s.SearchJobs(ctx, tc.query, 10)
		require.NoError(t, err)
		require.Len(t, jobs, 1, "query %q", tc.query)
		assert.Equal(t, tc.want, jobs[0].Position)
	}

	// Empty query returns everything, most recent first.
	jobs, err := s.SearchJobs(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
}

func TestJobsBetweenWindow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	inWindow := testJob("recent", "go")
	inWindow.DatePosted = now.AddDate(0, 0, -5)
	outside := testJob("old", "go")
	outside.DatePosted = now.AddDate(0, 0, -45)
	for _, j := range []*Job{inWindow, outside} {
		_, err := s.UpsertJob(ctx, j)
		require.NoError(t, err)
	}

	jobs, err := s.JobsBetween(ctx, now.AddDate(0, 0, -30), now)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "recent", jobs[0].SourceID)

	n, err := s.CountSince(ctx, 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestJobsBetweenBoundaryExactness(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	end := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	start := end.AddDate(0, 0, -30)

	atStart := testJob("at-start", "go")
	atStart.DatePosted = start
	atEnd := testJob("at-end", "go")
	atEnd.DatePosted = end
	inside := testJob("inside", "go")
	inside.DatePosted = end.Add(-time.Second)
	for _, j := range []*Job{atStart, atEnd, inside} {
		_, err := s.UpsertJob(ctx, j)
		require.NoError(t, err)
	}

	// Half-open window: a job dated exactly at start belongs to it, one
	// dated exactly at end does not.
	jobs, err := s.JobsBetween(ctx, start, end)
	require.NoError(t, err)
	ids := make([]string, 0, len(jobs))
	for _, j := range jobs {
		ids = append(ids, j.SourceID)
	}
	assert.ElementsMatch(t, []string{"at-start", "inside"}, ids)
}

func TestCountCompanies(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i, company := range []string{"Acme", "Acme", "Globex"} {
		j := testJob(string(rune('a' + i)))
		j.Company = company
		_, err := s.UpsertJob(ctx, j)
		require.NoError(t, err)
	}

	n, err := s.CountCompanies(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestLookupSkillSubstring(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertJob(ctx, testJob("j1", "postgresql", "go"))
	require.NoError(t, err)
	_, err = s.UpsertJob(ctx, testJob("j2", "postgresql"))
	require.NoError(t, err)

	sk, err := s.LookupSkill(ctx, "postgres")
	require.NoError(t, err)
	require.NotNil(t, sk)
	assert.Equal(t, "postgresql", sk.Name)
	assert.Equal(t, 2, sk.TotalMentions)

	sk, err = s.LookupSkill(ctx, "cobol")
	require.NoError(t, err)
	assert.Nil(t, sk)
}

func TestSaveAndLatestAnalysis(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	latest, err := s.LatestAnalysis(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	older := &AnalysisRecord{
		AnalysisDate:      time.Now().UTC().Add(-time.Hour),
		TotalJobsAnalyzed: 10,
		UniqueSkillsFound: 4,
		TrendingSkills:    []TrendingSkill{{SkillName: "go", CurrentMentions: 3, GrowthPercentage: "New"}},
		TrendingRoles:     []TrendingRole{{RoleName: "Backend Developer", JobCount: 5, TopSkills: []string{"go"}}},
		SkillClusters:     map[string][]string{"go": {"docker"}},
	}
	require.NoError(t, s.SaveAnalysis(ctx, older))

	newer := &AnalysisRecord{
		AnalysisDate:      time.Now().UTC(),
		TotalJobsAnalyzed: 12,
		UniqueSkillsFound: 5,
		TrendingSkills:    []TrendingSkill{},
		TrendingRoles:     []TrendingRole{},
		SkillClusters:     map[string][]string{},
		AIInsights:        "hiring is up",
	}
	require.NoError(t, s.SaveAnalysis(ctx, newer))
	assert.NotZero(t, newer.ID)

	latest, err = s.LatestAnalysis(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, newer.ID, latest.ID)
	assert.Equal(t, 12, latest.TotalJobsAnalyzed)
	assert.Equal(t, "hiring is up", latest.AIInsights)
}
