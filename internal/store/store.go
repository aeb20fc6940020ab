// Package store persists scraped job postings, derived skill counters, and
// trend analysis snapshots. Two backends are provided: SQLite (default,
// zero-config) and PostgreSQL (selected by DATABASE_URL).
package store

import (
	"context"
	"time"
)

// Job is a normalized job posting. (Source, SourceID) is unique; re-ingestion
// updates mutable fields but preserves DatePosted and CreatedAt.
type Job struct {
	ID         int64     `json:"id"`
	Source     string    `json:"source"`
	SourceID   string    `json:"source_id"`
	Position   string    `json:"position"`
	Company    string    `json:"company"`
	Location   string    `json:"location"`
	Tags       []string  `json:"tags"`
	URL        string    `json:"url"`
	Category   string    `json:"category,omitempty"`
	Excerpt    string    `json:"excerpt,omitempty"`
	DatePosted time.Time `json:"date_posted"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Skill is a derived entity maintained incrementally as jobs are ingested.
type Skill struct {
	Name          string    `json:"name"`
	TotalMentions int       `json:"total_mentions"`
	FirstSeen     time.Time `json:"first_seen"`
	LastSeen      time.Time `json:"last_seen"`
}

// TrendingSkill is the persisted shape of one skill trend entry.
type TrendingSkill struct {
	SkillName        string `json:"skill_name"`
	CurrentMentions  int    `json:"current_mentions"`
	PreviousMentions int    `json:"previous_mentions"`
	GrowthPercentage string `json:"growth_percentage"`
}

// TrendingRole is the persisted shape of one role trend entry.
type TrendingRole struct {
	RoleName  string   `json:"role_name"`
	JobCount  int      `json:"job_count"`
	TopSkills []string `json:"top_skills"`
}

// AnalysisRecord is an immutable snapshot of one full trend analysis run.
type AnalysisRecord struct {
	ID                int64               `json:"id"`
	AnalysisDate      time.Time           `json:"analysis_date"`
	TotalJobsAnalyzed int                 `json:"total_jobs_analyzed"`
	UniqueSkillsFound int                 `json:"unique_skills_found"`
	TrendingSkills    []TrendingSkill     `json:"trending_skills"`
	TrendingRoles     []TrendingRole      `json:"trending_roles"`
	SkillClusters     map[string][]string `json:"skill_clusters"`
	AIInsights        string              `json:"ai_insights,omitempty"`
}

// ScrapeSummary reports the outcome of one ingestion batch.
type ScrapeSummary struct {
	TotalFetched   int `json:"total_fetched"`
	JobsAdded      int `json:"jobs_added"`
	JobsUpdated    int `json:"jobs_updated"`
	SkillsAdded    int `json:"skills_added"`
	FeedsProcessed int `json:"feeds_processed"`
}

// Store is the job store contract the agent core depends on.
type Store interface {
	// UpsertJob inserts or updates a job keyed by (source, source_id).
	// Returns true when a new row was created. Skill counters are bumped
	// only on create, so re-ingesting the same posting never double counts.
	UpsertJob(ctx context.Context, job *Job) (created bool, err error)

	TotalJobs(ctx context.Context) (int, error)
	CountSince(ctx context.Context, d time.Duration) (int, error)
	CountCompanies(ctx context.Context) (int, error)

	// SearchJobs matches query against position, company, and tags.
	// Empty query returns the most recent jobs.
	SearchJobs(ctx context.Context, query string, limit int) ([]Job, error)

	// JobsBetween returns jobs with start <= date_posted < end.
	JobsBetween(ctx context.Context, start, end time.Time) ([]Job, error)

	TopSkills(ctx context.Context, limit int) ([]Skill, error)
	CountSkills(ctx context.Context) (int, error)
	// LookupSkill finds a skill by substring match on name.
	LookupSkill(ctx context.Context, name string) (*Skill, error)

	SaveAnalysis(ctx context.Context, rec *AnalysisRecord) error
	// LatestAnalysis returns (nil, nil) when no analysis has been run yet.
	LatestAnalysis(ctx context.Context) (*AnalysisRecord, error)

	Close() error
}
