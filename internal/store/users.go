package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"

	"jobmate/search-service/internal/model"
)

// PreferenceByUser returns the candidate's job preferences, or nil when the
// user has no profile or no preference row.
func (s *Store) PreferenceByUser(ctx context.Context, userID string) (*model.Preference, error) {
	var (
		jobTypes, locations, industries *string
		shift                           string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT jp.job_types, jp.preferred_locations, jp.preferred_industries,
		        COALESCE(jp.work_shift::text, '')
		 FROM job_preferences jp
		 JOIN profiles p ON p.id = jp.profile_id
		 WHERE p.user_id = $1`,
		userID,
	).Scan(&jobTypes, &locations, &industries, &shift)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("preferenceByUser: %w", err)
	}

	return &model.Preference{
		JobTypes:   model.NormalizeAll(ParseList(deref(jobTypes))),
		Locations:  model.NormalizeAll(ParseList(deref(locations))),
		Industries: model.NormalizeAll(ParseList(deref(industries))),
		WorkShift:  model.Normalize(shift),
	}, nil
}

// EmployerIDByUser resolves the employer account of a user.
func (s *Store) EmployerIDByUser(ctx context.Context, userID string) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx, `SELECT id::text FROM employers WHERE user_id = $1`, userID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("employerIDByUser: %w", err)
	}
	return id, nil
}

// SavedAmong returns which of jobIDs the user has saved.
func (s *Store) SavedAmong(ctx context.Context, userID string, jobIDs []string) ([]string, error) {
	return s.idsAmong(ctx, "saved_jobs", userID, jobIDs)
}

// AppliedAmong returns which of jobIDs the user has applied to.
func (s *Store) AppliedAmong(ctx context.Context, userID string, jobIDs []string) ([]string, error) {
	return s.idsAmong(ctx, "job_applications", userID, jobIDs)
}

// idsAmong is one batched existence lookup; table is a trusted constant.
func (s *Store) idsAmong(ctx context.Context, table, userID string, jobIDs []string) ([]string, error) {
	if len(jobIDs) == 0 {
		return nil, nil
	}
	return s.stringColumn(ctx, table,
		`SELECT DISTINCT job_id::text FROM `+table+`
		 WHERE job_seeker_id = $1 AND job_id = ANY($2::uuid[])`,
		userID, jobIDs,
	)
}

// AppliedJobIDs returns every job the user has applied to.
func (s *Store) AppliedJobIDs(ctx context.Context, userID string) ([]string, error) {
	return s.stringColumn(ctx, "appliedJobIDs",
		`SELECT DISTINCT job_id::text FROM job_applications WHERE job_seeker_id = $1`, userID)
}

// SavedJobs returns the user's saved job ids and the distinct categories of
// those jobs.
func (s *Store) SavedJobs(ctx context.Context, userID string) (jobIDs, categoryIDs []string, err error) {
	rows, err := s.pool.Query(ctx,
		`SELECT sj.job_id::text, j.category_id::text
		 FROM saved_jobs sj
		 JOIN jobs j ON j.id = sj.job_id
		 WHERE sj.job_seeker_id = $1`,
		userID,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("savedJobs query: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	for rows.Next() {
		var (
			id  string
			cat *string
		)
		if err := rows.Scan(&id, &cat); err != nil {
			return nil, nil, fmt.Errorf("savedJobs scan: %w", err)
		}
		jobIDs = append(jobIDs, id)
		if cat != nil && !seen[*cat] {
			seen[*cat] = true
			categoryIDs = append(categoryIDs, *cat)
		}
	}
	return jobIDs, categoryIDs, rows.Err()
}

// RecentSavedSearches returns up to limit active saved searches, newest first.
func (s *Store) RecentSavedSearches(ctx context.Context, userID string, limit int) ([]model.SavedSearch, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id::text, COALESCE(name, ''), COALESCE(search_criteria::text, '{}'), COALESCE(is_active, true), created_at
		 FROM saved_searches
		 WHERE user_id = $1 AND COALESCE(is_active, true) = true
		 ORDER BY created_at DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recentSavedSearches query: %w", err)
	}
	defer rows.Close()

	out := make([]model.SavedSearch, 0)
	for rows.Next() {
		var ss model.SavedSearch
		if err := rows.Scan(&ss.ID, &ss.Name, &ss.Criteria, &ss.IsActive, &ss.CreatedAt); err != nil {
			return nil, fmt.Errorf("recentSavedSearches scan: %w", err)
		}
		out = append(out, ss)
	}
	return out, rows.Err()
}

func (s *Store) stringColumn(ctx context.Context, op, sql string, args ...any) ([]string, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s query: %w", op, err)
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("%s scan: %w", op, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ParseList decodes a preference list column. Values are stored as a JSON
// array of strings; legacy rows hold a comma-separated string.
func ParseList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var out []string
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &out); err == nil {
			return out
		}
		return nil
	}
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
