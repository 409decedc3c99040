package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"jobmate/search-service/internal/model"
)

// IndexRow is a job with the company it is indexed under.
type IndexRow struct {
	Job     model.Job
	Company model.Company
}

// companyColumns resolves the company projection. Jobs without any company
// row are indexed under their employer's id.
const companyColumns = `,
	COALESCE(c.id::text, e.id::text), COALESCE(c.name, e.company_name, ''),
	COALESCE(c.industry, e.industry, ''), COALESCE(c.company_size::text, e.company_size, ''),
	COALESCE(c.company_type::text, '')`

func indexDest(r *IndexRow) []any {
	return append(jobDest(&r.Job),
		&r.Company.ID, &r.Company.Name, &r.Company.Industry, &r.Company.Size, &r.Company.Type)
}

// JobForIndex loads a job with its employer and company. ErrNotFound means
// the job or its employer no longer exists.
func (s *Store) JobForIndex(ctx context.Context, jobID string) (*IndexRow, error) {
	var r IndexRow
	err := s.pool.QueryRow(ctx,
		"SELECT "+jobColumns+companyColumns+jobFrom+"\n\tWHERE j.id = $1",
		jobID,
	).Scan(indexDest(&r)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("jobForIndex: %w", err)
	}
	return &r, nil
}

// ActiveJobsForIndex loads every active job with its company, oldest first.
func (s *Store) ActiveJobsForIndex(ctx context.Context) ([]IndexRow, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+jobColumns+companyColumns+jobFrom+"\n\tWHERE "+ActivePredicate+"\n\tORDER BY j.created_at",
	)
	if err != nil {
		return nil, fmt.Errorf("activeJobsForIndex query: %w", err)
	}
	defer rows.Close()

	out := make([]IndexRow, 0)
	for rows.Next() {
		var r IndexRow
		if err := rows.Scan(indexDest(&r)...); err != nil {
			return nil, fmt.Errorf("activeJobsForIndex scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// JobOwnerUserID returns the user id owning the job's employer account.
func (s *Store) JobOwnerUserID(ctx context.Context, jobID string) (string, error) {
	var owner string
	err := s.pool.QueryRow(ctx,
		`SELECT e.user_id::text
		 FROM jobs j
		 JOIN employers e ON e.id = j.employer_id
		 WHERE j.id = $1`,
		jobID,
	).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("jobOwnerUserID: %w", err)
	}
	return owner, nil
}
