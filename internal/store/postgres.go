package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is the pgx-backed job store, selected when DATABASE_URL points at
// a PostgreSQL instance.
type Postgres struct {
	pool *pgxpool.Pool
}

// ConnectPostgres creates a pgx pool, pings it, and runs schema migrations.
func ConnectPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	if databaseURL == "" {
		return nil, errors.New("store: DATABASE_URL is required")
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: parse DATABASE_URL: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("store: create pgx pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping postgres: %w", err)
	}

	p := &Postgres{pool: pool}
	if err := p.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return p, nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS jobs (
			id          BIGSERIAL PRIMARY KEY,
			source      TEXT NOT NULL,
			source_id   TEXT NOT NULL,
			position    TEXT NOT NULL,
			company     TEXT NOT NULL,
			location    TEXT,
			tags        JSONB NOT NULL DEFAULT '[]',
			url         TEXT,
			category    TEXT,
			excerpt     TEXT,
			date_posted TIMESTAMPTZ NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL,
			UNIQUE(source, source_id)
		);
		CREATE INDEX IF NOT EXISTS idx_jobs_date_posted ON jobs(date_posted);
		CREATE TABLE IF NOT EXISTS skills (
			name           TEXT PRIMARY KEY,
			total_mentions INTEGER NOT NULL DEFAULT 0,
			first_seen     TIMESTAMPTZ NOT NULL,
			last_seen      TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS analyses (
			id              BIGSERIAL PRIMARY KEY,
			analysis_date   TIMESTAMPTZ NOT NULL,
			total_jobs      INTEGER NOT NULL,
			unique_skills   INTEGER NOT NULL,
			trending_skills JSONB NOT NULL DEFAULT '[]',
			trending_roles  JSONB NOT NULL DEFAULT '[]',
			skill_clusters  JSONB NOT NULL DEFAULT '{}',
			ai_insights     TEXT
		);
	`)
	return err
}

func (p *Postgres) UpsertJob(ctx context.Context, job *Job) (bool, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tagsJSON, err := json.Marshal(job.Tags)
	if err != nil {
		return false, fmt.Errorf("store: marshal tags: %w", err)
	}

	now := time.Now().UTC()
	var existingID int64
	err = tx.QueryRow(ctx,
		`SELECT id FROM jobs WHERE source = $1 AND source_id = $2`,
		job.Source, job.SourceID,
	).Scan(&existingID)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		err = tx.QueryRow(ctx,
			`INSERT INTO jobs (source, source_id, position, company, location, tags, url, category, excerpt, date_posted, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			 RETURNING id`,
			job.Source, job.SourceID, job.Position, job.Company, job.Location,
			tagsJSON, job.URL, job.Category, job.Excerpt,
			job.DatePosted.UTC(), now, now,
		).Scan(&job.ID)
		if err != nil {
			return false, fmt.Errorf("store: insert job: %w", err)
		}
		job.CreatedAt = now
		job.UpdatedAt = now

		for _, tag := range job.Tags {
			if _, err := tx.Exec(ctx,
				`INSERT INTO skills (name, total_mentions, first_seen, last_seen)
				 VALUES ($1, 1, $2, $2)
				 ON CONFLICT (name) DO UPDATE SET
					total_mentions = skills.total_mentions + 1,
					last_seen = EXCLUDED.last_seen`,
				tag, now,
			); err != nil {
				return false, fmt.Errorf("store: bump skill %q: %w", tag, err)
			}
		}
		if err := tx.Commit(ctx); err != nil {
			return false, fmt.Errorf("store: commit: %w", err)
		}
		return true, nil

	case err != nil:
		return false, fmt.Errorf("store: lookup job: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE jobs SET position = $1, company = $2, location = $3, tags = $4, url = $5, category = $6, excerpt = $7, updated_at = $8
		 WHERE id = $9`,
		job.Position, job.Company, job.Location, tagsJSON,
		job.URL, job.Category, job.Excerpt, now, existingID,
	)
	if err != nil {
		return false, fmt.Errorf("store: update job: %w", err)
	}
	job.ID = existingID
	job.UpdatedAt = now
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("store: commit: %w", err)
	}
	return false, nil
}

func (p *Postgres) TotalJobs(ctx context.Context) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM jobs`).Scan(&n)
	return n, err
}

func (p *Postgres) CountSince(ctx context.Context, d time.Duration) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM jobs WHERE date_posted >= $1`,
		time.Now().UTC().Add(-d)).Scan(&n)
	return n, err
}

func (p *Postgres) CountCompanies(ctx context.Context) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx, `SELECT COUNT(DISTINCT company) FROM jobs`).Scan(&n)
	return n, err
}

const pgJobColumns = `SELECT id, source, source_id, position, company, COALESCE(location, ''), tags, COALESCE(url, ''), COALESCE(category, ''), COALESCE(excerpt, ''), date_posted, created_at, updated_at`

func (p *Postgres) SearchJobs(ctx context.Context, query string, limit int) ([]Job, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var rows pgx.Rows
	var err error
	query = strings.TrimSpace(query)
	if query == "" {
		rows, err = p.pool.Query(ctx,
			pgJobColumns+` FROM jobs ORDER BY date_posted DESC LIMIT $1`, limit)
	} else {
		like := "%" + strings.ToLower(query) + "%"
		rows, err = p.pool.Query(ctx,
			pgJobColumns+` FROM jobs
			 WHERE lower(position) LIKE $1 OR lower(company) LIKE $1 OR lower(tags::text) LIKE $1
			 ORDER BY date_posted DESC LIMIT $2`,
			like, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("store: search jobs: %w", err)
	}
	defer rows.Close()
	return scanPGJobs(rows)
}

func (p *Postgres) JobsBetween(ctx context.Context, start, end time.Time) ([]Job, error) {
	rows, err := p.pool.Query(ctx,
		pgJobColumns+` FROM jobs WHERE date_posted >= $1 AND date_posted < $2 ORDER BY date_posted DESC`,
		start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("store: jobs between: %w", err)
	}
	defer rows.Close()
	return scanPGJobs(rows)
}

func scanPGJobs(rows pgx.Rows) ([]Job, error) {
	var jobs []Job
	for rows.Next() {
		var j Job
		var tagsJSON []byte
		if err := rows.Scan(&j.ID, &j.Source, &j.SourceID, &j.Position, &j.Company,
			&j.Location, &tagsJSON, &j.URL, &j.Category, &j.Excerpt,
			&j.DatePosted, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan job: %w", err)
		}
		if err := json.Unmarshal(tagsJSON, &j.Tags); err != nil {
			j.Tags = nil
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (p *Postgres) TopSkills(ctx context.Context, limit int) ([]Skill, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	rows, err := p.pool.Query(ctx,
		`SELECT name, total_mentions, first_seen, last_seen FROM skills
		 ORDER BY total_mentions DESC, name ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: top skills: %w", err)
	}
	defer rows.Close()

	var skills []Skill
	for rows.Next() {
		var sk Skill
		if err := rows.Scan(&sk.Name, &sk.TotalMentions, &sk.FirstSeen, &sk.LastSeen); err != nil {
			return nil, fmt.Errorf("store: scan skill: %w", err)
		}
		skills = append(skills, sk)
	}
	return skills, rows.Err()
}

func (p *Postgres) CountSkills(ctx context.Context) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM skills`).Scan(&n)
	return n, err
}

func (p *Postgres) LookupSkill(ctx context.Context, name string) (*Skill, error) {
	like := "%" + strings.ToLower(strings.TrimSpace(name)) + "%"
	var sk Skill
	err := p.pool.QueryRow(ctx,
		`SELECT name, total_mentions, first_seen, last_seen FROM skills
		 WHERE name LIKE $1 ORDER BY total_mentions DESC LIMIT 1`, like,
	).Scan(&sk.Name, &sk.TotalMentions, &sk.FirstSeen, &sk.LastSeen)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: lookup skill: %w", err)
	}
	return &sk, nil
}

func (p *Postgres) SaveAnalysis(ctx context.Context, rec *AnalysisRecord) error {
	skillsJSON, err := json.Marshal(rec.TrendingSkills)
	if err != nil {
		return fmt.Errorf("store: marshal trending skills: %w", err)
	}
	rolesJSON, err := json.Marshal(rec.TrendingRoles)
	if err != nil {
		return fmt.Errorf("store: marshal trending roles: %w", err)
	}
	clustersJSON, err := json.Marshal(rec.SkillClusters)
	if err != nil {
		return fmt.Errorf("store: marshal skill clusters: %w", err)
	}

	err = p.pool.QueryRow(ctx,
		`INSERT INTO analyses (analysis_date, total_jobs, unique_skills, trending_skills, trending_roles, skill_clusters, ai_insights)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		rec.AnalysisDate.UTC(), rec.TotalJobsAnalyzed, rec.UniqueSkillsFound,
		skillsJSON, rolesJSON, clustersJSON, rec.AIInsights,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("store: save analysis: %w", err)
	}
	return nil
}

func (p *Postgres) LatestAnalysis(ctx context.Context) (*AnalysisRecord, error) {
	var rec AnalysisRecord
	var skillsJSON, rolesJSON, clustersJSON []byte
	var insights *string
	err := p.pool.QueryRow(ctx,
		`SELECT id, analysis_date, total_jobs, unique_skills, trending_skills, trending_roles, skill_clusters, ai_insights
		 FROM analyses ORDER BY analysis_date DESC, id DESC LIMIT 1`,
	).Scan(&rec.ID, &rec.AnalysisDate, &rec.TotalJobsAnalyzed, &rec.UniqueSkillsFound,
		&skillsJSON, &rolesJSON, &clustersJSON, &insights)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: latest analysis: %w", err)
	}
	if insights != nil {
		rec.AIInsights = *insights
	}
	if err := json.Unmarshal(skillsJSON, &rec.TrendingSkills); err != nil {
		return nil, fmt.Errorf("store: decode trending skills: %w", err)
	}
	if err := json.Unmarshal(rolesJSON, &rec.TrendingRoles); err != nil {
		return nil, fmt.Errorf("store: decode trending roles: %w", err)
	}
	if err := json.Unmarshal(clustersJSON, &rec.SkillClusters); err != nil {
		return nil, fmt.Errorf("store: decode skill clusters: %w", err)
	}
	return &rec, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
