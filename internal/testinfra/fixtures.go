//go:build integration

package testinfra

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Employer inserts an employer with its own company and returns the
// employer id and owning user id.
func Employer(t *testing.T, pool *pgxpool.Pool, company, industry string) (employerID, userID string) {
	t.Helper()
	ctx := context.Background()
	userID = uuid.NewString()

	var companyID string
	if err := pool.QueryRow(ctx,
		`INSERT INTO companies (name, industry, company_type) VALUES ($1, $2, 'startup') RETURNING id::text`,
		company, industry,
	).Scan(&companyID); err != nil {
		t.Fatalf("insert company: %v", err)
	}
	if err := pool.QueryRow(ctx,
		`INSERT INTO employers (user_id, company_name, company_id, industry) VALUES ($1, $2, $3, $4) RETURNING id::text`,
		userID, company, companyID, industry,
	).Scan(&employerID); err != nil {
		t.Fatalf("insert employer: %v", err)
	}
	return employerID, userID
}

// Job describes a jobs row to insert. Zero fields take the column default.
type Job struct {
	EmployerID       string
	CategoryID       *string
	Title            string
	Description      string
	JobType          string
	City             string
	State            string
	Skills           []string
	IsActive         *bool
	IsFeatured       bool
	ViewCount        int
	ApplicationCount int
	Deadline         *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
	LastActivityAt   *time.Time
}

// InsertJob inserts j and returns its id.
func InsertJob(t *testing.T, pool *pgxpool.Pool, j Job) string {
	t.Helper()
	now := time.Now().UTC()
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	if j.UpdatedAt.IsZero() {
		j.UpdatedAt = j.CreatedAt
	}
	if j.JobType == "" {
		j.JobType = "full-time"
	}
	active := true
	if j.IsActive != nil {
		active = *j.IsActive
	}

	var id string
	err := pool.QueryRow(context.Background(),
		`INSERT INTO jobs (employer_id, category_id, title, description, job_type, city, state, skills,
		                   is_active, is_featured, view_count, application_count, deadline,
		                   created_at, updated_at, last_activity_at)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8, $9, $10, $11, $12, $13, $14, $15, $16)
		 RETURNING id::text`,
		j.EmployerID, j.CategoryID, j.Title, j.Description, j.JobType, j.City, j.State, j.Skills,
		active, j.IsFeatured, j.ViewCount, j.ApplicationCount, j.Deadline,
		j.CreatedAt, j.UpdatedAt, j.LastActivityAt,
	).Scan(&id)
	if err != nil {
		t.Fatalf("insert job %q: %v", j.Title, err)
	}
	return id
}

// Candidate inserts a profile with preferences and returns the user id.
// Lists are stored as JSON arrays.
func Candidate(t *testing.T, pool *pgxpool.Pool, jobTypes, locations string) string {
	t.Helper()
	ctx := context.Background()
	userID := uuid.NewString()

	var profileID string
	if err := pool.QueryRow(ctx, `INSERT INTO profiles (user_id) VALUES ($1) RETURNING id::text`, userID).Scan(&profileID); err != nil {
		t.Fatalf("insert profile: %v", err)
	}
	if _, err := pool.Exec(ctx,
		`INSERT INTO job_preferences (profile_id, job_types, preferred_locations) VALUES ($1, NULLIF($2, ''), NULLIF($3, ''))`,
		profileID, jobTypes, locations,
	); err != nil {
		t.Fatalf("insert preferences: %v", err)
	}
	return userID
}

// Exec runs a fixture statement.
func Exec(t *testing.T, pool *pgxpool.Pool, sql string, args ...any) {
	t.Helper()
	if _, err := pool.Exec(context.Background(), sql, args...); err != nil {
		t.Fatalf("exec %q: %v", sql, err)
	}
}
