// Package store is the relational store accessor: every read and write the
// search service makes against Postgres goes through here.
//
// Methods return wrapped pgx errors; services translate them into the
// apperr taxonomy at their own boundary.
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"jobmate/search-service/internal/model"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write violates a unique constraint.
	ErrConflict = errors.New("conflict")
)

// uniqueViolation reports whether err is a Postgres unique_violation.
func uniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Store wraps the shared connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New returns a Store over pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// ─── Positional args ─────────────────────────────────────────────────────────

// Args accumulates positional query parameters.
type Args struct {
	vals []any
}

// Add appends v and returns its placeholder.
func (a *Args) Add(v any) string {
	a.vals = append(a.vals, v)
	return "$" + strconv.Itoa(len(a.vals))
}

// Values returns the accumulated parameters.
func (a *Args) Values() []any { return a.vals }

// Len returns the number of parameters.
func (a *Args) Len() int { return len(a.vals) }

// ─── Job projection ─────────────────────────────────────────────────────────

// jobFrom joins a job to its employer and resolved company. The company is
// the job's own company_id when set, else the employer's.
const jobFrom = `
	FROM jobs j
	JOIN employers e ON e.id = j.employer_id
	LEFT JOIN companies c ON c.id = COALESCE(j.company_id, e.company_id)`

const jobColumns = `
	j.id::text, j.employer_id::text, j.company_id::text, j.category_id::text,
	j.title, j.description, j.job_type, COALESCE(j.work_mode, '{}'),
	COALESCE(j.experience_level, ''), COALESCE(j.city, ''), COALESCE(j.state, ''), COALESCE(j.country, ''),
	j.salary_min, j.salary_max, COALESCE(j.pay_rate, ''), COALESCE(j.skills, '{}'), j.deadline,
	j.is_active, j.is_featured, j.view_count, j.application_count,
	j.created_at, j.updated_at, j.last_activity_at,
	COALESCE(c.name, e.company_name, ''), COALESCE(c.industry, e.industry, ''), COALESCE(c.company_type::text, '')`

func jobDest(j *model.Job) []any {
	return []any{
		&j.ID, &j.EmployerID, &j.CompanyID, &j.CategoryID,
		&j.Title, &j.Description, &j.JobType, &j.WorkMode,
		&j.ExperienceLevel, &j.City, &j.State, &j.Country,
		&j.SalaryMin, &j.SalaryMax, &j.PayRate, &j.Skills, &j.Deadline,
		&j.IsActive, &j.IsFeatured, &j.ViewCount, &j.ApplicationCount,
		&j.CreatedAt, &j.UpdatedAt, &j.LastActivityAt,
		&j.CompanyName, &j.Industry, &j.CompanyType,
	}
}

// JobQuery describes a filtered, ordered page of jobs. Where clauses are
// ANDed and must reference parameters added to Args. Score, when set, is a
// SQL expression selected as the row score.
type JobQuery struct {
	Args    *Args
	Where   []string
	Score   string
	OrderBy string
	Limit   int
	Offset  int
}

// JobPage is one page of jobs plus the total across all pages.
type JobPage struct {
	Jobs   []model.Job
	Scores []float64
	Total  int
}

// QueryJobs runs q and returns the page with its total row count.
func (s *Store) QueryJobs(ctx context.Context, q JobQuery) (*JobPage, error) {
	if q.Args == nil {
		q.Args = &Args{}
	}
	score := q.Score
	if score == "" {
		score = "0"
	}
	orderBy := q.OrderBy
	if orderBy == "" {
		orderBy = "j.created_at DESC"
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(jobColumns)
	sb.WriteString(", (")
	sb.WriteString(score)
	sb.WriteString(")::float8 AS score, COUNT(*) OVER() AS total")
	sb.WriteString(jobFrom)
	if len(q.Where) > 0 {
		sb.WriteString("\n\tWHERE ")
		sb.WriteString(strings.Join(q.Where, "\n\t  AND "))
	}
	sb.WriteString("\n\tORDER BY ")
	sb.WriteString(orderBy)
	if q.Limit > 0 {
		fmt.Fprintf(&sb, "\n\tLIMIT %s OFFSET %s", q.Args.Add(q.Limit), q.Args.Add(q.Offset))
	}

	rows, err := s.pool.Query(ctx, sb.String(), q.Args.Values()...)
	if err != nil {
		return nil, fmt.Errorf("queryJobs query: %w", err)
	}
	defer rows.Close()

	page := &JobPage{Jobs: make([]model.Job, 0), Scores: make([]float64, 0)}
	for rows.Next() {
		var (
			j     model.Job
			score float64
			total int
		)
		if err := rows.Scan(append(jobDest(&j), &score, &total)...); err != nil {
			return nil, fmt.Errorf("queryJobs scan: %w", err)
		}
		page.Jobs = append(page.Jobs, j)
		page.Scores = append(page.Scores, score)
		page.Total = total
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("queryJobs rows: %w", err)
	}

	// An offset past the end returns no rows and therefore no window total.
	if len(page.Jobs) == 0 && q.Limit > 0 && q.Offset > 0 {
		total, err := s.countJobs(ctx, q, score)
		if err != nil {
			return nil, err
		}
		page.Total = total
	}
	return page, nil
}

// countJobs re-counts q's rows. The score expression is kept so that every
// parameter except limit and offset stays referenced.
func (s *Store) countJobs(ctx context.Context, q JobQuery, score string) (int, error) {
	sql := "SELECT COUNT(*) FROM (SELECT (" + score + ") AS score" + jobFrom
	if len(q.Where) > 0 {
		sql += "\n\tWHERE " + strings.Join(q.Where, "\n\t  AND ")
	}
	sql += ") counted"
	n := q.Args.Len() - 2
	var total int
	if err := s.pool.QueryRow(ctx, sql, q.Args.Values()[:n]...).Scan(&total); err != nil {
		return 0, fmt.Errorf("countJobs: %w", err)
	}
	return total, nil
}

// JobsByIDs returns the active jobs among ids in no particular order.
// Unknown and inactive ids are skipped.
func (s *Store) JobsByIDs(ctx context.Context, ids []string) ([]model.Job, error) {
	out := make([]model.Job, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx,
		"SELECT "+jobColumns+jobFrom+"\n\tWHERE j.id = ANY($1::text[]::uuid[])\n\t  AND "+ActivePredicate,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("jobsByIDs query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var j model.Job
		if err := rows.Scan(jobDest(&j)...); err != nil {
			return nil, fmt.Errorf("jobsByIDs scan: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// JobByID returns a job regardless of its active flag.
func (s *Store) JobByID(ctx context.Context, jobID string) (*model.Job, error) {
	var j model.Job
	err := s.pool.QueryRow(ctx, "SELECT "+jobColumns+jobFrom+"\n\tWHERE j.id = $1", jobID).Scan(jobDest(&j)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("jobByID: %w", err)
	}
	return &j, nil
}
