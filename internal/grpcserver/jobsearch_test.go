package grpcserver_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"jobmate/search-service/internal/apperr"
	"jobmate/search-service/internal/grpcserver"
	"jobmate/search-service/internal/jobsearch"
	"jobmate/search-service/internal/model"
	"jobmate/search-service/internal/recommend"
	"jobmate/search-service/internal/search"
)

const candidateID = "7a1e5c4b-2f3d-4e6a-9b8c-0d1e2f3a4b5c"

// ── Fakes ────────────────────────────────────────────────────────────────────

type fakeSearcher struct {
	got  jobsearch.Query
	who  *model.Principal
	err  error
	hits []model.EnrichedJob
}

func (f *fakeSearcher) Search(_ context.Context, q jobsearch.Query, p *model.Principal) (*jobsearch.Response, error) {
	f.got, f.who = q, p
	if f.err != nil {
		return nil, f.err
	}
	return &jobsearch.Response{
		Data:       f.hits,
		Pagination: model.NewPagination(len(f.hits), model.Page{Page: q.Page, Limit: q.Limit}),
	}, nil
}

type fakeRecommender struct {
	filters model.Filters
	page    model.Page
	who     *model.Principal
}

func (f *fakeRecommender) Recommend(_ context.Context, p *model.Principal, fl model.Filters, pg model.Page) (*recommend.Response, error) {
	f.who, f.filters, f.page = p, fl, pg
	return &recommend.Response{
		Data: []recommend.Recommendation{{
			EnrichedJob:  model.EnrichedJob{Job: model.Job{ID: "job-9", Title: "Data Engineer"}},
			Score:        7.5,
			MatchedTerms: []string{"location"},
		}},
		Pagination: recommend.Pagination{TotalJob: 1, PageCount: 1, CurrentPage: 1},
	}, nil
}

func startJobSearch(t *testing.T, api grpcserver.JobSearchServer) *grpc.ClientConn {
	t.Helper()
	srv := grpcserver.NewServer(search.NewBreaker("test", 3, time.Minute), api, zerolog.Nop())

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.GRPC().Serve(lis) }()
	t.Cleanup(srv.Shutdown)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func call(t *testing.T, conn *grpc.ClientConn, method string, md metadata.MD, req map[string]any) (*structpb.Struct, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if md != nil {
		ctx = metadata.NewOutgoingContext(ctx, md)
	}
	in, err := structpb.NewStruct(req)
	require.NoError(t, err)
	out := new(structpb.Struct)
	err = conn.Invoke(ctx, "/"+grpcserver.JobSearchService+"/"+method, in, out)
	return out, err
}

func candidateMD() metadata.MD {
	return metadata.Pairs(grpcserver.MetadataUserID, candidateID, grpcserver.MetadataUserRole, "Candidate")
}

// ── Search ───────────────────────────────────────────────────────────────────

func TestJobSearch_SearchDecodesRequestAndPrincipal(t *testing.T) {
	s := &fakeSearcher{hits: []model.EnrichedJob{{Job: model.Job{ID: "job-1", Title: "Go Developer", ViewCount: 3}, IsSaved: true}}}
	conn := startJobSearch(t, grpcserver.NewJobSearch(s, &fakeRecommender{}))

	out, err := call(t, conn, "Search", candidateMD(), map[string]any{
		"keyword":    " golang ",
		"city":       "Austin",
		"minSalary":  90000,
		"industries": []any{"Software", "Fintech"},
		"page":       2,
		"limit":      5,
	})
	require.NoError(t, err)

	assert.Equal(t, "golang", s.got.Keyword)
	assert.Equal(t, "Austin", s.got.City)
	require.NotNil(t, s.got.MinSalary)
	assert.Equal(t, 90000, *s.got.MinSalary)
	assert.Equal(t, []string{"Software", "Fintech"}, s.got.Industries)
	assert.Equal(t, 2, s.got.Page)
	assert.Equal(t, 5, s.got.Limit)
	assert.Equal(t, &model.Principal{ID: candidateID, Role: model.RoleCandidate}, s.who)

	m := out.AsMap()
	data := m["data"].([]any)
	require.Len(t, data, 1)
	hit := data[0].(map[string]any)
	assert.Equal(t, "job-1", hit["id"])
	assert.Equal(t, "Go Developer", hit["title"])
	assert.Equal(t, true, hit["isSaved"])
	assert.EqualValues(t, 3, hit["viewCount"])
	assert.EqualValues(t, 1, m["pagination"].(map[string]any)["totalItems"])
}

func TestJobSearch_SearchDefaultsPagingAndAllowsAnonymous(t *testing.T) {
	s := &fakeSearcher{}
	conn := startJobSearch(t, grpcserver.NewJobSearch(s, &fakeRecommender{}))

	_, err := call(t, conn, "Search", nil, map[string]any{"keyword": "go"})
	require.NoError(t, err)
	assert.Nil(t, s.who)
	assert.Equal(t, 1, s.got.Page)
	assert.Equal(t, 20, s.got.Limit)
}

func TestJobSearch_SearchRejectsBadInput(t *testing.T) {
	conn := startJobSearch(t, grpcserver.NewJobSearch(&fakeSearcher{}, &fakeRecommender{}))

	cases := map[string]struct {
		md  metadata.MD
		req map[string]any
	}{
		"missing keyword":      {nil, map[string]any{}},
		"limit above max":      {nil, map[string]any{"keyword": "go", "limit": 500}},
		"fractional page":      {nil, map[string]any{"keyword": "go", "page": 1.5}},
		"unknown posted range": {nil, map[string]any{"keyword": "go", "postedWithin": "1y"}},
		"malformed user id":    {metadata.Pairs(grpcserver.MetadataUserID, "not-a-uuid"), map[string]any{"keyword": "go"}},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := call(t, conn, "Search", c.md, c.req)
			assert.Equal(t, codes.InvalidArgument, status.Code(err))
		})
	}
}

func TestJobSearch_SearchDegradedIsUnavailable(t *testing.T) {
	s := &fakeSearcher{err: search.ErrUnavailable}
	conn := startJobSearch(t, grpcserver.NewJobSearch(s, &fakeRecommender{}))

	_, err := call(t, conn, "Search", nil, map[string]any{"keyword": "go"})
	assert.Equal(t, codes.Unavailable, status.Code(err))
	assert.Equal(t, search.ErrUnavailable.Message, status.Convert(err).Message())
}

// ── Recommend ────────────────────────────────────────────────────────────────

func TestJobSearch_RecommendForCandidate(t *testing.T) {
	r := &fakeRecommender{}
	conn := startJobSearch(t, grpcserver.NewJobSearch(&fakeSearcher{}, r))

	out, err := call(t, conn, "Recommend", candidateMD(), map[string]any{
		"city":            "Denver",
		"employmentTypes": []any{"full-time"},
		"salaryMin":       50000,
		"limit":           10,
	})
	require.NoError(t, err)

	assert.Equal(t, candidateID, r.who.ID)
	assert.Equal(t, "Denver", r.filters.City)
	assert.Equal(t, []string{"full-time"}, r.filters.EmploymentTypes)
	require.NotNil(t, r.filters.SalaryMin)
	assert.Equal(t, 50000, *r.filters.SalaryMin)
	assert.Equal(t, model.Page{Page: 1, Limit: 10}, r.page)

	data := out.AsMap()["data"].([]any)
	require.Len(t, data, 1)
	rec := data[0].(map[string]any)
	assert.Equal(t, "job-9", rec["id"])
	assert.InDelta(t, 7.5, rec["score"], 1e-9)
	assert.Equal(t, []any{"location"}, rec["matchedTerms"])
}

func TestJobSearch_RecommendNeedsCaller(t *testing.T) {
	conn := startJobSearch(t, grpcserver.NewJobSearch(&fakeSearcher{}, &fakeRecommender{}))

	_, err := call(t, conn, "Recommend", nil, map[string]any{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = call(t, conn, "Recommend", candidateMD(), map[string]any{"categoryId": "nope"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestJobSearch_RecommendServiceErrorsAreMapped(t *testing.T) {
	conn := startJobSearch(t, grpcserver.NewJobSearch(&fakeSearcher{}, forbiddingRecommender{}))

	md := metadata.Pairs(grpcserver.MetadataUserID, candidateID, grpcserver.MetadataUserRole, "employer")
	_, err := call(t, conn, "Recommend", md, map[string]any{})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
}

type forbiddingRecommender struct{}

func (forbiddingRecommender) Recommend(context.Context, *model.Principal, model.Filters, model.Page) (*recommend.Response, error) {
	return nil, apperr.Forbidden("recommendations are only available to candidates")
}

func TestJobSearch_NotRegisteredWithoutAPI(t *testing.T) {
	conn := startJobSearch(t, nil)

	_, err := call(t, conn, "Search", nil, map[string]any{"keyword": "go"})
	assert.Equal(t, codes.Unimplemented, status.Code(err))
}
