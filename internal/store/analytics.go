package store

import (
	"context"
	"fmt"
)

// JobStats aggregates the analytics event log of one job.
type JobStats struct {
	TotalViews       int
	UniqueViewers    int
	TotalShares      int
	SharesByChannel  map[string]int
	ApplicationCount int
}

// RecordView appends a job_views row and bumps the job's counters in one
// transaction.
func (s *Store) RecordView(ctx context.Context, jobID, userID, ip, userAgent string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("recordView begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`INSERT INTO job_views (job_id, user_id, ip_address, user_agent)
		 VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''))`,
		jobID, userID, ip, userAgent,
	); err != nil {
		return fmt.Errorf("recordView insert: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE jobs SET view_count = view_count + 1, last_activity_at = now() WHERE id = $1`,
		jobID,
	); err != nil {
		return fmt.Errorf("recordView update: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("recordView commit: %w", err)
	}
	return nil
}

// RecordShare appends a job_shares row. userID may be empty.
func (s *Store) RecordShare(ctx context.Context, jobID, userID, channel string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO job_shares (job_id, user_id, share_channel)
		 VALUES ($1, NULLIF($2, '')::uuid, $3)`,
		jobID, userID, channel,
	)
	if err != nil {
		return fmt.Errorf("recordShare: %w", err)
	}
	return nil
}

// ShareCounts returns share totals grouped by channel.
func (s *Store) ShareCounts(ctx context.Context, jobID string) (map[string]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT share_channel::text, COUNT(*)
		 FROM job_shares
		 WHERE job_id = $1
		 GROUP BY share_channel`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("shareCounts query: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			channel string
			n       int
		)
		if err := rows.Scan(&channel, &n); err != nil {
			return nil, fmt.Errorf("shareCounts scan: %w", err)
		}
		out[channel] = n
	}
	return out, rows.Err()
}

// JobStats aggregates views, shares and applications of a job.
func (s *Store) JobStats(ctx context.Context, jobID string) (*JobStats, error) {
	st := &JobStats{}
	err := s.pool.QueryRow(ctx,
		`SELECT
		   (SELECT COUNT(*) FROM job_views WHERE job_id = $1),
		   (SELECT COUNT(DISTINCT user_id) FROM job_views WHERE job_id = $1),
		   (SELECT COUNT(*) FROM job_applications WHERE job_id = $1)`,
		jobID,
	).Scan(&st.TotalViews, &st.UniqueViewers, &st.ApplicationCount)
	if err != nil {
		return nil, fmt.Errorf("jobStats: %w", err)
	}

	st.SharesByChannel, err = s.ShareCounts(ctx, jobID)
	if err != nil {
		return nil, err
	}
	for _, n := range st.SharesByChannel {
		st.TotalShares += n
	}
	return st, nil
}
