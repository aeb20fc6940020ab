package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite is the default single-file job store.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the SQLite store at path and runs the schema.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer
	if err := initSQLiteSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func initSQLiteSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS jobs (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			source      TEXT NOT NULL,
			source_id   TEXT NOT NULL,
			position    TEXT NOT NULL,
			company     TEXT NOT NULL,
			location    TEXT,
			tags        TEXT NOT NULL DEFAULT '[]',
			url         TEXT,
			category    TEXT,
			excerpt     TEXT,
			date_posted TEXT NOT NULL,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL,
			UNIQUE(source, source_id)
		);
		CREATE INDEX IF NOT EXISTS idx_jobs_date_posted ON jobs(date_posted);
		CREATE TABLE IF NOT EXISTS skills (
			name           TEXT PRIMARY KEY,
			total_mentions INTEGER NOT NULL DEFAULT 0,
			first_seen     TEXT NOT NULL,
			last_seen      TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS analyses (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			analysis_date   TEXT NOT NULL,
			total_jobs      INTEGER NOT NULL,
			unique_skills   INTEGER NOT NULL,
			trending_skills TEXT NOT NULL DEFAULT '[]',
			trending_roles  TEXT NOT NULL DEFAULT '[]',
			skill_clusters  TEXT NOT NULL DEFAULT '{}',
			ai_insights     TEXT
		);
	`)
	return err
}

// ts formats a time for storage. RFC3339 in UTC sorts lexicographically,
// which the window queries rely on.
func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTS(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

// UpsertJob inserts a new job or updates mutable fields of an existing one.
// DatePosted and CreatedAt are preserved on update. Skill counters are
// bumped only when the row is created.
func (s *SQLite) UpsertJob(ctx context.Context, job *Job) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	tagsJSON, err := json.Marshal(job.Tags)
	if err != nil {
		return false, fmt.Errorf("store: marshal tags: %w", err)
	}

	now := time.Now().UTC()
	var existingID int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM jobs WHERE source = ? AND source_id = ?`,
		job.Source, job.SourceID,
	).Scan(&existingID)

	switch {
	case err == sql.ErrNoRows:
		res, err := tx.ExecContext(ctx,
			`INSERT INTO jobs (source, source_id, position, company, location, tags, url, category, excerpt, date_posted, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			job.Source, job.SourceID, job.Position, job.Company, job.Location,
			string(tagsJSON), job.URL, job.Category, job.Excerpt,
			ts(job.DatePosted), ts(now), ts(now),
		)
		if err != nil {
			return false, fmt.Errorf("store: insert job: %w", err)
		}
		job.ID, _ = res.LastInsertId()
		job.CreatedAt = now
		job.UpdatedAt = now

		for _, tag := range job.Tags {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO skills (name, total_mentions, first_seen, last_seen)
				 VALUES (?, 1, ?, ?)
				 ON CONFLICT(name) DO UPDATE SET
					total_mentions = total_mentions + 1,
					last_seen = excluded.last_seen`,
				tag, ts(now), ts(now),
			); err != nil {
				return false, fmt.Errorf("store: bump skill %q: %w", tag, err)
			}
		}
		if err := tx.Commit(); err != nil {
			return false, fmt.Errorf("store: commit: %w", err)
		}
		return true, nil

	case err != nil:
		return false, fmt.Errorf("store: lookup job: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE jobs SET position = ?, company = ?, location = ?, tags = ?, url = ?, category = ?, excerpt = ?, updated_at = ?
		 WHERE id = ?`,
		job.Position, job.Company, job.Location, string(tagsJSON),
		job.URL, job.Category, job.Excerpt, ts(now), existingID,
	)
	if err != nil {
		return false, fmt.Errorf("store: update job: %w", err)
	}
	job.ID = existingID
	job.UpdatedAt = now
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("store: commit: %w", err)
	}
	return false, nil
}

func (s *SQLite) TotalJobs(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs`).Scan(&n)
	return n, err
}

func (s *SQLite) CountSince(ctx context.Context, d time.Duration) (int, error) {
	var n int
	cutoff := ts(time.Now().Add(-d))
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM jobs WHERE date_posted >= ?`, cutoff).Scan(&n)
	return n, err
}

func (s *SQLite) CountCompanies(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT company) FROM jobs`).Scan(&n)
	return n, err
}

func (s *SQLite) SearchJobs(ctx context.Context, query string, limit int) ([]Job, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var rows *sql.Rows
	var err error
	query = strings.TrimSpace(query)
	if query == "" {
		rows, err = s.db.QueryContext(ctx,
			jobColumns+` FROM jobs ORDER BY date_posted DESC LIMIT ?`, limit)
	} else {
		like := "%" + strings.ToLower(query) + "%"
		rows, err = s.db.QueryContext(ctx,
			jobColumns+` FROM jobs
			 WHERE lower(position) LIKE ? OR lower(company) LIKE ? OR lower(tags) LIKE ?
			 ORDER BY date_posted DESC LIMIT ?`,
			like, like, like, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("store: search jobs: %w", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (s *SQLite) JobsBetween(ctx context.Context, start, end time.Time) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx,
		jobColumns+` FROM jobs WHERE date_posted >= ? AND date_posted < ? ORDER BY date_posted DESC`,
		ts(start), ts(end))
	if err != nil {
		return nil, fmt.Errorf("store: jobs between: %w", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

const jobColumns = `SELECT id, source, source_id, position, company, location, tags, url, category, excerpt, date_posted, created_at, updated_at`

func scanJobs(rows *sql.Rows) ([]Job, error) {
	var jobs []Job
	for rows.Next() {
		var j Job
		var location, url, category, excerpt sql.NullString
		var tagsJSON, posted, created, updated string
		if err := rows.Scan(&j.ID, &j.Source, &j.SourceID, &j.Position, &j.Company,
			&location, &tagsJSON, &url, &category, &excerpt,
			&posted, &created, &updated); err != nil {
			return nil, fmt.Errorf("store: scan job: %w", err)
		}
		j.Location = location.String
		j.URL = url.String
		j.Category = category.String
		j.Excerpt = excerpt.String
		if err := json.Unmarshal([]byte(tagsJSON), &j.Tags); err != nil {
			j.Tags = nil
		}
		j.DatePosted = parseTS(posted)
		j.CreatedAt = parseTS(created)
		j.UpdatedAt = parseTS(updated)
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (s *SQLite) TopSkills(ctx context.Context, limit int) ([]Skill, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, total_mentions, first_seen, last_seen FROM skills
		 ORDER BY total_mentions DESC, name ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: top skills: %w", err)
	}
	defer rows.Close()

	var skills []Skill
	for rows.Next() {
		var sk Skill
		var first, last string
		if err := rows.Scan(&sk.Name, &sk.TotalMentions, &first, &last); err != nil {
			return nil, fmt.Errorf("store: scan skill: %w", err)
		}
		sk.FirstSeen = parseTS(first)
		sk.LastSeen = parseTS(last)
		skills = append(skills, sk)
	}
	return skills, rows.Err()
}

func (s *SQLite) CountSkills(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM skills`).Scan(&n)
	return n, err
}

func (s *SQLite) LookupSkill(ctx context.Context, name string) (*Skill, error) {
	like := "%" + strings.ToLower(strings.TrimSpace(name)) + "%"
	var sk Skill
	var first, last string
	err := s.db.QueryRowContext(ctx,
		`SELECT name, total_mentions, first_seen, last_seen FROM skills
		 WHERE name LIKE ? ORDER BY total_mentions DESC LIMIT 1`, like,
	).Scan(&sk.Name, &sk.TotalMentions, &first, &last)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: lookup skill: %w", err)
	}
	sk.FirstSeen = parseTS(first)
	sk.LastSeen = parseTS(last)
	return &sk, nil
}

func (s *SQLite) SaveAnalysis(ctx context.Context, rec *AnalysisRecord) error {
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

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO analyses (analysis_date, total_jobs, unique_skills, trending_skills, trending_roles, skill_clusters, ai_insights)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ts(rec.AnalysisDate), rec.TotalJobsAnalyzed, rec.UniqueSkillsFound,
		string(skillsJSON), string(rolesJSON), string(clustersJSON), rec.AIInsights,
	)
	if err != nil {
		return fmt.Errorf("store: save analysis: %w", err)
	}
	rec.ID, _ = res.LastInsertId()
	return nil
}

func (s *SQLite) LatestAnalysis(ctx context.Context) (*AnalysisRecord, error) {
	var rec AnalysisRecord
	var date, skillsJSON, rolesJSON, clustersJSON string
	var insights sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, analysis_date, total_jobs, unique_skills, trending_skills, trending_roles, skill_clusters, ai_insights
		 FROM analyses ORDER BY analysis_date DESC, id DESC LIMIT 1`,
	).Scan(&rec.ID, &date, &rec.TotalJobsAnalyzed, &rec.UniqueSkillsFound,
		&skillsJSON, &rolesJSON, &clustersJSON, &insights)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: latest analysis: %w", err)
	}
	rec.AnalysisDate = parseTS(date)
	rec.AIInsights = insights.String
	if err := json.Unmarshal([]byte(skillsJSON), &rec.TrendingSkills); err != nil {
		return nil, fmt.Errorf("store: decode trending skills: %w", err)
	}
	if err := json.Unmarshal([]byte(rolesJSON), &rec.TrendingRoles); err != nil {
		return nil, fmt.Errorf("store: decode trending roles: %w", err)
	}
	if err := json.Unmarshal([]byte(clustersJSON), &rec.SkillClusters); err != nil {
		return nil, fmt.Errorf("store: decode skill clusters: %w", err)
	}
	return &rec, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
