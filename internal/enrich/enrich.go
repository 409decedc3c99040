// Package enrich attaches per-caller isSaved/isApplied flags to job lists.
package enrich

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"jobmate/search-service/internal/model"
)

// Lookup answers the two batched existence queries.
type Lookup interface {
	SavedAmong(ctx context.Context, userID string, jobIDs []string) ([]string, error)
	AppliedAmong(ctx context.Context, userID string, jobIDs []string) ([]string, error)
}

// Flags resolves which of jobIDs userID has saved and applied to. Both
// lookups run concurrently, one query each regardless of len(jobIDs).
func Flags(ctx context.Context, l Lookup, userID string, jobIDs []string) (saved, applied map[string]bool, err error) {
	saved, applied = map[string]bool{}, map[string]bool{}
	if userID == "" || len(jobIDs) == 0 {
		return saved, applied, nil
	}

	var savedIDs, appliedIDs []string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		savedIDs, err = l.SavedAmong(gctx, userID, jobIDs)
		return err
	})
	g.Go(func() error {
		var err error
		appliedIDs, err = l.AppliedAmong(gctx, userID, jobIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("enrich flags: %w", err)
	}

	for _, id := range savedIDs {
		saved[id] = true
	}
	for _, id := range appliedIDs {
		applied[id] = true
	}
	return saved, applied, nil
}

// Jobs wraps jobs with the caller's flags. An anonymous caller gets every
// flag false without touching the store.
func Jobs(ctx context.Context, l Lookup, p *model.Principal, jobs []model.Job) ([]model.EnrichedJob, error) {
	ids := make([]string, len(jobs))
	for i := range jobs {
		ids[i] = jobs[i].ID
	}

	saved, applied, err := Flags(ctx, l, p.UserID(), ids)
	if err != nil {
		return nil, err
	}

	out := make([]model.EnrichedJob, len(jobs))
	for i, j := range jobs {
		out[i] = model.EnrichedJob{Job: j, IsSaved: saved[j.ID], IsApplied: applied[j.ID]}
	}
	return out, nil
}
