package search_test

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/search-service/internal/apperr"
	"jobmate/search-service/internal/model"
	"jobmate/search-service/internal/search"
	"jobmate/search-service/internal/store"
)

// fakeSource is an in-memory stand-in for the relational store.
type fakeSource struct {
	mu   sync.Mutex
	rows map[string]store.IndexRow
}

func newSource(rows ...store.IndexRow) *fakeSource {
	s := &fakeSource{rows: map[string]store.IndexRow{}}
	for _, r := range rows {
		s.rows[r.Job.ID] = r
	}
	return s
}

func (s *fakeSource) put(r store.IndexRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[r.Job.ID] = r
}

func (s *fakeSource) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
}

func (s *fakeSource) JobForIndex(_ context.Context, id string) (*store.IndexRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &r, nil
}

func (s *fakeSource) ActiveJobsForIndex(context.Context) ([]store.IndexRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.IndexRow, 0, len(s.rows))
	for _, r := range s.rows {
		if r.Job.IsActive {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Job.ID < out[j].Job.ID })
	return out, nil
}

var baseTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func jobRow(id, title string, mod func(*model.Job)) store.IndexRow {
	j := model.Job{
		ID:          id,
		EmployerID:  "emp-1",
		Title:       title,
		Description: "Join our team to build great products.",
		JobType:     "Full-Time",
		City:        "Austin",
		State:       "TX",
		Country:     "US",
		Skills:      []string{"go", "sql"},
		WorkMode:    []string{"Remote"},
		IsActive:    true,
		CreatedAt:   baseTime,
	}
	if mod != nil {
		mod(&j)
	}
	return store.IndexRow{
		Job:     j,
		Company: model.Company{ID: "co-1", Name: "Acme", Industry: "Software", Size: "51-200", Type: "Startup"},
	}
}

func newManager(t *testing.T, src search.Source) *search.Manager {
	t.Helper()
	m := search.NewManager(src, search.Options{
		DataPath:      t.TempDir(),
		Timeout:       5 * time.Second,
		MaxRetries:    3,
		RetryInterval: 10 * time.Millisecond,
		Log:           zerolog.Nop(),
	})
	require.NoError(t, m.Init(context.Background()))
	t.Cleanup(func() { m.Close() })
	return m
}

func ids(res *search.Result) []string {
	out := make([]string, len(res.Jobs))
	for i, j := range res.Jobs {
		out[i] = j.ID
	}
	return out
}

// ── Lifecycle ──────────────────────────────────────────────────────────────

func TestInit_IsIdempotentAcrossRestarts(t *testing.T) {
	dir := t.TempDir()
	src := newSource(jobRow("job-1", "Backend Engineer", nil))
	opts := search.Options{DataPath: dir, RetryInterval: 10 * time.Millisecond, Log: zerolog.Nop()}

	first := search.NewManager(src, opts)
	require.NoError(t, first.Init(context.Background()))
	first.IndexJob(context.Background(), "job-1")
	require.NoError(t, first.Close())

	second := search.NewManager(src, opts)
	require.NoError(t, second.Init(context.Background()))
	defer second.Close()

	assert.Equal(t, search.StateAvailable, second.Stats().State)
	assert.EqualValues(t, 1, second.Stats().DocumentCount)
}

func TestInit_UnreachableMarksDegraded(t *testing.T) {
	m := search.NewManager(newSource(), search.Options{
		DataPath:      "/dev/null/jobs",
		MaxRetries:    3,
		RetryInterval: time.Millisecond,
		Log:           zerolog.Nop(),
	})

	err := m.Init(context.Background())
	require.Error(t, err)
	assert.Equal(t, search.StateDegraded, m.Breaker().State())
}

// ── Degraded search ────────────────────────────────────────────────────────

func TestSearchJobs_DegradedReturnsUnavailableNotEmpty(t *testing.T) {
	m := search.NewManager(newSource(), search.Options{
		DataPath:      "/dev/null/jobs",
		MaxRetries:    1,
		RetryInterval: time.Millisecond,
		Log:           zerolog.Nop(),
	})
	_ = m.Init(context.Background())

	res, err := m.SearchJobs(context.Background(), search.Params{Keyword: "backend"})
	assert.Nil(t, res)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrUnavailable)

	_, err = m.BulkIndexAllJobs(context.Background())
	assert.ErrorIs(t, err, apperr.ErrUnavailable)
}

func TestReprobe_RecoversOnceIndexIsReachable(t *testing.T) {
	root := t.TempDir()
	blocked := filepath.Join(root, "index")
	require.NoError(t, os.WriteFile(blocked, []byte("not a directory"), 0o644))

	m := search.NewManager(newSource(), search.Options{
		DataPath:      blocked,
		MaxRetries:    1,
		RetryInterval: time.Millisecond,
		Log:           zerolog.Nop(),
	})
	defer m.Close()

	var states []search.State
	m.Breaker().OnChange(func(s search.State) { states = append(states, s) })

	require.Error(t, m.Init(context.Background()))
	assert.Equal(t, search.StateDegraded, m.Reprobe(context.Background()))

	require.NoError(t, os.Remove(blocked))
	assert.Equal(t, search.StateAvailable, m.Reprobe(context.Background()))
	assert.Equal(t, []search.State{search.StateDegraded, search.StateAvailable}, states)

	_, err := m.SearchJobs(context.Background(), search.Params{Keyword: "anything"})
	assert.NoError(t, err)
}

// ── Keyword search ─────────────────────────────────────────────────────────

func TestSearchJobs_KeywordBasic(t *testing.T) {
	src := newSource(
		jobRow("job-backend", "Backend Engineer", nil),
		jobRow("job-frontend", "Frontend Designer", nil),
	)
	m := newManager(t, src)
	_, err := m.BulkIndexAllJobs(context.Background())
	require.NoError(t, err)

	res, err := m.SearchJobs(context.Background(), search.Params{Keyword: "backend", Page: 1, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, []string{"job-backend"}, ids(res))
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, 1, res.TotalPages)
	assert.Equal(t, "Backend Engineer", res.Jobs[0].Title)
	assert.Equal(t, "acme", model.Normalize(res.Jobs[0].CompanyName))
}

func TestSearchJobs_NoMatchesIsEmptySuccess(t *testing.T) {
	m := newManager(t, newSource(jobRow("job-1", "Backend Engineer", nil)))
	m.IndexJob(context.Background(), "job-1")

	res, err := m.SearchJobs(context.Background(), search.Params{Keyword: "astronaut"})
	require.NoError(t, err)
	assert.Empty(t, res.Jobs)
	assert.Zero(t, res.Total)
}

func TestSearchJobs_FiltersAreCaseInsensitive(t *testing.T) {
	src := newSource(
		jobRow("job-austin", "Backend Engineer", nil),
		jobRow("job-denver", "Backend Engineer", func(j *model.Job) {
			j.City, j.State, j.JobType, j.ExperienceLevel = "Denver", "CO", "Contract", "Senior"
		}),
	)
	m := newManager(t, src)
	_, err := m.BulkIndexAllJobs(context.Background())
	require.NoError(t, err)

	cases := []struct {
		name string
		set  func(p *search.Params, v string)
		vals []string
		want []string
	}{
		{"city", func(p *search.Params, v string) { p.City = v }, []string{"denver", "Denver", "DENVER"}, []string{"job-denver"}},
		{"state", func(p *search.Params, v string) { p.State = v }, []string{"tx", "Tx", "TX"}, []string{"job-austin"}},
		{"jobType", func(p *search.Params, v string) { p.JobType = v }, []string{"contract", "CONTRACT"}, []string{"job-denver"}},
		{"experienceLevel", func(p *search.Params, v string) { p.ExperienceLevel = v }, []string{"senior", "SeNiOr"}, []string{"job-denver"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			for _, v := range c.vals {
				p := search.Params{Keyword: "backend"}
				c.set(&p, v)
				res, err := m.SearchJobs(context.Background(), p)
				require.NoError(t, err)
				assert.Equal(t, c.want, ids(res), "value %q", v)
			}
		})
	}
}

func TestSearchJobs_AbsentFilterAddsNoConstraint(t *testing.T) {
	src := newSource(
		jobRow("job-1", "Backend Engineer", nil),
		jobRow("job-2", "Backend Engineer", func(j *model.Job) { j.City = "Denver" }),
	)
	m := newManager(t, src)
	_, err := m.BulkIndexAllJobs(context.Background())
	require.NoError(t, err)

	res, err := m.SearchJobs(context.Background(), search.Params{Keyword: "backend"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
}

func TestSearchJobs_TieBreaksOnNewestFirst(t *testing.T) {
	src := newSource(
		jobRow("job-old", "Backend Engineer", nil),
		jobRow("job-new", "Backend Engineer", func(j *model.Job) { j.CreatedAt = baseTime.Add(48 * time.Hour) }),
	)
	m := newManager(t, src)
	_, err := m.BulkIndexAllJobs(context.Background())
	require.NoError(t, err)

	res, err := m.SearchJobs(context.Background(), search.Params{Keyword: "backend"})
	require.NoError(t, err)
	assert.Equal(t, []string{"job-new", "job-old"}, ids(res))
}

func TestSearchJobs_BoostReordersWithoutFiltering(t *testing.T) {
	src := newSource(
		jobRow("job-austin", "Backend Engineer", nil),
		jobRow("job-denver", "Backend Engineer", func(j *model.Job) {
			j.City = "Denver"
			j.CreatedAt = baseTime.Add(time.Hour)
		}),
	)
	m := newManager(t, src)
	_, err := m.BulkIndexAllJobs(context.Background())
	require.NoError(t, err)

	plain, err := m.SearchJobs(context.Background(), search.Params{Keyword: "backend"})
	require.NoError(t, err)
	assert.Equal(t, []string{"job-denver", "job-austin"}, ids(plain))

	boosted, err := m.SearchJobs(context.Background(), search.Params{
		Keyword: "backend",
		Boosts:  []search.Boost{{Field: search.FieldCity, Values: []string{"AUSTIN"}, Weight: 4}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"job-austin", "job-denver"}, ids(boosted))
}

func TestSearchJobs_Pagination(t *testing.T) {
	var rows []store.IndexRow
	for i := 0; i < 5; i++ {
		i := i
		rows = append(rows, jobRow(string(rune('a'+i))+"-job", "Backend Engineer", func(j *model.Job) {
			j.CreatedAt = baseTime.Add(time.Duration(i) * time.Hour)
		}))
	}
	m := newManager(t, newSource(rows...))
	_, err := m.BulkIndexAllJobs(context.Background())
	require.NoError(t, err)

	res, err := m.SearchJobs(context.Background(), search.Params{Keyword: "backend", Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Total)
	assert.Equal(t, 3, res.TotalPages)
	assert.Equal(t, []string{"c-job", "b-job"}, ids(res))
}

// ── Writes ─────────────────────────────────────────────────────────────────

func TestIndexJob_MissingJobIsSilentNoop(t *testing.T) {
	m := newManager(t, newSource())
	m.IndexJob(context.Background(), "does-not-exist")
	assert.Zero(t, m.Stats().DocumentCount)
}

func TestIndexJob_InactiveJobIsRemoved(t *testing.T) {
	src := newSource(jobRow("job-1", "Backend Engineer", nil))
	m := newManager(t, src)
	m.IndexJob(context.Background(), "job-1")
	require.EqualValues(t, 1, m.Stats().DocumentCount)

	src.put(jobRow("job-1", "Backend Engineer", func(j *model.Job) { j.IsActive = false }))
	m.IndexJob(context.Background(), "job-1")
	assert.Zero(t, m.Stats().DocumentCount)
}

func TestDeleteJob_AbsentDocumentIsSuccess(t *testing.T) {
	m := newManager(t, newSource())
	m.DeleteJob(context.Background(), "never-indexed")
	assert.Equal(t, search.StateAvailable, m.Stats().State)
}

func TestBulkIndexAllJobs_IsIdempotent(t *testing.T) {
	src := newSource(
		jobRow("job-1", "Backend Engineer", nil),
		jobRow("job-2", "Data Engineer", nil),
		jobRow("job-3", "Closed Role", func(j *model.Job) { j.IsActive = false }),
	)
	m := newManager(t, src)

	first, err := m.BulkIndexAllJobs(context.Background())
	require.NoError(t, err)
	countAfterFirst := m.Stats().DocumentCount

	second, err := m.BulkIndexAllJobs(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.ReindexResult{Total: 2, Success: 2, Failed: 0}, first)
	assert.Equal(t, first, second)
	assert.EqualValues(t, 2, countAfterFirst)
	assert.Equal(t, countAfterFirst, m.Stats().DocumentCount)
}

func TestBulkIndexAllJobs_RemovesDocumentsOfDeletedJobs(t *testing.T) {
	src := newSource(
		jobRow("job-1", "Backend Engineer", nil),
		jobRow("job-2", "Backend Engineer", nil),
	)
	m := newManager(t, src)
	_, err := m.BulkIndexAllJobs(context.Background())
	require.NoError(t, err)

	src.remove("job-2")
	res, err := m.BulkIndexAllJobs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	assert.EqualValues(t, 1, m.Stats().DocumentCount)
}

func TestBulkIndexAllJobs_ProcessesMoreThanOneBatch(t *testing.T) {
	var rows []store.IndexRow
	for i := 0; i < search.BatchSize+5; i++ {
		rows = append(rows, jobRow(time.Duration(i).String(), "Backend Engineer", nil))
	}
	m := newManager(t, newSource(rows...))

	res, err := m.BulkIndexAllJobs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, search.BatchSize+5, res.Success)
	assert.EqualValues(t, search.BatchSize+5, m.Stats().DocumentCount)
}

// lateSource indexes one extra job while the rebuild snapshot is being
// taken, the way a write landing mid-rebuild would.
type lateSource struct {
	*fakeSource
	m    *search.Manager
	late store.IndexRow
	once sync.Once
}

func (s *lateSource) ActiveJobsForIndex(ctx context.Context) ([]store.IndexRow, error) {
	rows, err := s.fakeSource.ActiveJobsForIndex(ctx)
	s.once.Do(func() {
		s.put(s.late)
		s.m.IndexJob(ctx, s.late.Job.ID)
	})
	return rows, err
}

func TestBulkIndexAllJobs_KeepsJobIndexedDuringRebuild(t *testing.T) {
	src := &lateSource{
		fakeSource: newSource(jobRow("job-a", "Backend Engineer", nil)),
		late:       jobRow("job-b", "Backend Engineer", nil),
	}
	m := newManager(t, src)
	src.m = m

	res, err := m.BulkIndexAllJobs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)

	hits, err := m.SearchJobs(context.Background(), search.Params{Keyword: "backend", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"job-a", "job-b"}, ids(hits))
}

func TestBulkIndexAllJobs_SweepRemovesDeactivatedJobs(t *testing.T) {
	src := newSource(
		jobRow("job-1", "Backend Engineer", nil),
		jobRow("job-2", "Backend Engineer", nil),
	)
	m := newManager(t, src)
	_, err := m.BulkIndexAllJobs(context.Background())
	require.NoError(t, err)

	src.put(jobRow("job-2", "Backend Engineer", func(j *model.Job) { j.IsActive = false }))
	_, err = m.BulkIndexAllJobs(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, m.Stats().DocumentCount)
}

// blockingSource holds ActiveJobsForIndex until released.
type blockingSource struct {
	*fakeSource
	started chan struct{}
	release chan struct{}
}

func (s *blockingSource) ActiveJobsForIndex(ctx context.Context) ([]store.IndexRow, error) {
	s.started <- struct{}{}
	<-s.release
	return s.fakeSource.ActiveJobsForIndex(ctx)
}

func TestBulkIndexAllJobs_RejectsOverlappingRebuild(t *testing.T) {
	src := &blockingSource{
		fakeSource: newSource(jobRow("job-1", "Backend Engineer", nil)),
		started:    make(chan struct{}, 1),
		release:    make(chan struct{}),
	}
	m := newManager(t, src)

	done := make(chan error, 1)
	go func() {
		_, err := m.BulkIndexAllJobs(context.Background())
		done <- err
	}()
	<-src.started

	_, err := m.BulkIndexAllJobs(context.Background())
	assert.ErrorIs(t, err, search.ErrRebuildRunning)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	close(src.release)
	require.NoError(t, <-done)

	// The guard is released once the first rebuild ends.
	src.started = make(chan struct{}, 1)
	src.release = make(chan struct{})
	close(src.release)
	_, err = m.BulkIndexAllJobs(context.Background())
	assert.NoError(t, err)
}
