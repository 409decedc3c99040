//go:build integration

package recommend_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/search-service/internal/model"
	"jobmate/search-service/internal/recommend"
	"jobmate/search-service/internal/store"
	"jobmate/search-service/internal/testinfra"
)

func TestIntegration_PreferredLocationOutranks(t *testing.T) {
	pool := testinfra.Postgres(t)
	employerID, _ := testinfra.Employer(t, pool, "Acme", "Software")
	userID := testinfra.Candidate(t, pool, `["full-time"]`, `["Austin"]`)

	created := time.Now().UTC().Add(-time.Hour)
	austin := testinfra.InsertJob(t, pool, testinfra.Job{EmployerID: employerID, Title: "Engineer", City: "Austin", State: "TX", CreatedAt: created})
	denver := testinfra.InsertJob(t, pool, testinfra.Job{EmployerID: employerID, Title: "Engineer", City: "Denver", State: "CO", CreatedAt: created})

	svc := recommend.NewService(store.New(pool), zerolog.Nop())
	res, err := svc.Recommend(context.Background(),
		&model.Principal{ID: userID, Role: model.RoleCandidate}, model.Filters{}, model.Page{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, res.Data, 2)

	assert.Equal(t, austin, res.Data[0].ID)
	assert.Equal(t, denver, res.Data[1].ID)
	assert.GreaterOrEqual(t, res.Data[0].Score-res.Data[1].Score, 20.0)
	assert.Contains(t, res.Data[0].MatchedTerms, "preferred_location")
	assert.NotContains(t, res.Data[1].MatchedTerms, "preferred_location")
	assert.Equal(t, 2, res.Pagination.TotalJob)
}

func TestIntegration_ExcludesAppliedAndExpired(t *testing.T) {
	pool := testinfra.Postgres(t)
	employerID, _ := testinfra.Employer(t, pool, "Acme", "Software")
	userID := testinfra.Candidate(t, pool, "", "")

	expired := time.Now().UTC().Add(-24 * time.Hour)
	open := testinfra.InsertJob(t, pool, testinfra.Job{EmployerID: employerID, Title: "Open"})
	applied := testinfra.InsertJob(t, pool, testinfra.Job{EmployerID: employerID, Title: "Applied"})
	testinfra.InsertJob(t, pool, testinfra.Job{EmployerID: employerID, Title: "Expired", Deadline: &expired})
	testinfra.Exec(t, pool, `INSERT INTO job_applications (job_seeker_id, job_id) VALUES ($1, $2)`, userID, applied)

	svc := recommend.NewService(store.New(pool), zerolog.Nop())
	res, err := svc.Recommend(context.Background(),
		&model.Principal{ID: userID, Role: model.RoleCandidate}, model.Filters{}, model.Page{Page: 1, Limit: 10})
	require.NoError(t, err)

	require.Len(t, res.Data, 1)
	assert.Equal(t, open, res.Data[0].ID)
	assert.False(t, res.Data[0].IsApplied)
}

func TestIntegration_SavedSignals(t *testing.T) {
	pool := testinfra.Postgres(t)
	employerID, _ := testinfra.Employer(t, pool, "Acme", "Software")
	userID := testinfra.Candidate(t, pool, "", "")

	var categoryID string
	require.NoError(t, pool.QueryRow(context.Background(),
		`INSERT INTO job_categories (name, slug) VALUES ('Engineering', 'engineering') RETURNING id::text`,
	).Scan(&categoryID))

	created := time.Now().UTC().Add(-40 * 24 * time.Hour)
	saved := testinfra.InsertJob(t, pool, testinfra.Job{EmployerID: employerID, CategoryID: &categoryID, Title: "Saved role", CreatedAt: created})
	sameCategory := testinfra.InsertJob(t, pool, testinfra.Job{EmployerID: employerID, CategoryID: &categoryID, Title: "Platform role", CreatedAt: created})
	keyword := testinfra.InsertJob(t, pool, testinfra.Job{EmployerID: employerID, Title: "Golang developer", CreatedAt: created})
	plain := testinfra.InsertJob(t, pool, testinfra.Job{EmployerID: employerID, Title: "Cashier", CreatedAt: created})

	testinfra.Exec(t, pool, `INSERT INTO saved_jobs (job_seeker_id, job_id) VALUES ($1, $2)`, userID, saved)
	testinfra.Exec(t, pool, `INSERT INTO saved_searches (user_id, name, search_criteria) VALUES ($1, 'go', '{"keyword":"golang"}')`, userID)

	svc := recommend.NewService(store.New(pool), zerolog.Nop())
	res, err := svc.Recommend(context.Background(),
		&model.Principal{ID: userID, Role: model.RoleCandidate}, model.Filters{}, model.Page{Page: 1, Limit: 10})
	require.NoError(t, err)

	scores := make(map[string]float64, len(res.Data))
	for _, r := range res.Data {
		scores[r.ID] = r.Score
	}
	// Saved job: category affinity plus the saved boost.
	assert.Equal(t, 35.0, scores[saved])
	assert.Equal(t, 25.0, scores[sameCategory])
	assert.Equal(t, 15.0, scores[keyword])
	assert.Equal(t, 0.0, scores[plain])
	assert.Equal(t, saved, res.Data[0].ID)
	assert.True(t, res.Data[0].IsSaved)
}
