package grpcserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"jobmate/search-service/internal/apperr"
	"jobmate/search-service/internal/jobsearch"
	"jobmate/search-service/internal/model"
	"jobmate/search-service/internal/recommend"
)

// JobSearchService is the fully-qualified name of the search RPC service.
// Requests and responses are google.protobuf.Struct documents shaped like
// the HTTP query parameters and the HTTP envelope's data/pagination.
const JobSearchService = "jobmate.search.v1.JobSearch"

// Metadata keys carrying the authenticated caller, as forwarded by the
// gateway. Same contract as the HTTP headers.
const (
	MetadataUserID   = "x-user-id"
	MetadataUserRole = "x-user-role"
)

// Searcher is implemented by jobsearch.Service.
type Searcher interface {
	Search(ctx context.Context, q jobsearch.Query, p *model.Principal) (*jobsearch.Response, error)
}

// Recommender is implemented by recommend.Service.
type Recommender interface {
	Recommend(ctx context.Context, p *model.Principal, f model.Filters, pg model.Page) (*recommend.Response, error)
}

// JobSearchServer is the server API of the JobSearch service.
type JobSearchServer interface {
	Search(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Recommend(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

// JobSearch serves keyword search and recommendations over gRPC.
type JobSearch struct {
	search    Searcher
	recommend Recommender
	validate  *validator.Validate
}

// NewJobSearch returns the JobSearch service over the given services.
func NewJobSearch(search Searcher, rec Recommender) *JobSearch {
	return &JobSearch{search: search, recommend: rec, validate: validator.New()}
}

var _ JobSearchServer = (*JobSearch)(nil)

// ─── Requests ────────────────────────────────────────────────────────────────

type filterFields struct {
	CategoryID      string   `json:"categoryId"`
	EmploymentTypes []string `json:"employmentTypes"`
	WorkModes       []string `json:"workModes"`
	ExperienceLevel string   `json:"experienceLevel"`
	SalaryMin       *int     `json:"salaryMin"`
	SalaryMax       *int     `json:"salaryMax"`
	City            string   `json:"city"`
	State           string   `json:"state"`
	Country         string   `json:"country"`
	CompanyName     string   `json:"companyName"`
	Industries      []string `json:"industries"`
	CompanyTypes    []string `json:"companyTypes"`
	PostedWithin    string   `json:"postedWithin"`
}

type searchRequest struct {
	Keyword         string   `json:"keyword"`
	JobType         string   `json:"jobType"`
	ExperienceLevel string   `json:"experienceLevel"`
	City            string   `json:"city"`
	State           string   `json:"state"`
	WorkMode        string   `json:"workMode"`
	PayRate         string   `json:"payRate"`
	MinSalary       *int     `json:"minSalary"`
	PostedWithin    string   `json:"postedWithin"`
	Industries      []string `json:"industries"`
	CompanyTypes    []string `json:"companyTypes"`
	CompanyName     string   `json:"companyName"`
	Page            int      `json:"page"`
	Limit           int      `json:"limit"`
}

type recommendRequest struct {
	filterFields
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// ─── Handlers ────────────────────────────────────────────────────────────────

// Search runs a keyword search for the caller in the request metadata.
func (s *JobSearch) Search(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	p, err := principalFrom(ctx)
	if err != nil {
		return nil, err
	}
	var req searchRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	q := jobsearch.Query{
		Keyword:         strings.TrimSpace(req.Keyword),
		JobType:         strings.TrimSpace(req.JobType),
		ExperienceLevel: strings.TrimSpace(req.ExperienceLevel),
		City:            strings.TrimSpace(req.City),
		State:           strings.TrimSpace(req.State),
		WorkMode:        strings.TrimSpace(req.WorkMode),
		PayRate:         strings.TrimSpace(req.PayRate),
		MinSalary:       req.MinSalary,
		PostedWithin:    strings.TrimSpace(req.PostedWithin),
		Industries:      req.Industries,
		CompanyTypes:    req.CompanyTypes,
		CompanyName:     strings.TrimSpace(req.CompanyName),
		Page:            orDefault(req.Page, 1),
		Limit:           orDefault(req.Limit, 20),
	}
	if err := s.check(q); err != nil {
		return nil, err
	}

	res, err := s.search.Search(ctx, q, p)
	if err != nil {
		return nil, err
	}
	return toStruct(res)
}

// Recommend returns the caller's scored recommendation feed.
func (s *JobSearch) Recommend(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	p, err := principalFrom(ctx)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, status.Error(codes.Unauthenticated, "missing "+MetadataUserID+" metadata")
	}
	var req recommendRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	f := model.Filters(req.filterFields)
	pg := model.Page{Page: orDefault(req.Page, 1), Limit: orDefault(req.Limit, 20)}
	if err := s.check(f); err != nil {
		return nil, err
	}
	if err := s.check(pg); err != nil {
		return nil, err
	}

	res, err := s.recommend.Recommend(ctx, p, f, pg)
	if err != nil {
		return nil, err
	}
	return toStruct(res)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// principalFrom reads the caller from the incoming metadata. No user id
// means anonymous.
func principalFrom(ctx context.Context) (*model.Principal, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	id := strings.TrimSpace(firstValue(md, MetadataUserID))
	if id == "" {
		return nil, nil
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.Invalid("invalid " + MetadataUserID + " metadata")
	}
	role := model.Role(strings.ToLower(strings.TrimSpace(firstValue(md, MetadataUserRole))))
	return &model.Principal{ID: id, Role: role}, nil
}

func firstValue(md metadata.MD, key string) string {
	if v := md.Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}

// decode copies the request document into dst. Numbers arrive as doubles;
// a fractional value for an integer field is rejected.
func decode(in *structpb.Struct, dst any) error {
	raw, err := json.Marshal(in.AsMap())
	if err != nil {
		return apperr.Invalid("malformed request")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return apperr.Invalid("malformed request: " + err.Error())
	}
	return nil
}

func (s *JobSearch) check(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return apperr.Invalid("invalid request")
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		parts = append(parts, "invalid "+fe.Field())
	}
	return apperr.Invalid(strings.Join(parts, ", "))
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return out, nil
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

// ─── Service descriptor ──────────────────────────────────────────────────────

func jobSearchHandler(method string, call func(JobSearchServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	fullMethod := "/" + JobSearchService + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(JobSearchServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(JobSearchServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var jobSearchServiceDesc = grpc.ServiceDesc{
	ServiceName: JobSearchService,
	HandlerType: (*JobSearchServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Search", Handler: jobSearchHandler("Search", JobSearchServer.Search)},
		{MethodName: "Recommend", Handler: jobSearchHandler("Recommend", JobSearchServer.Recommend)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "jobmate/search/v1/job_search.proto",
}

// RegisterJobSearchServer registers srv on s.
func RegisterJobSearchServer(s grpc.ServiceRegistrar, srv JobSearchServer) {
	s.RegisterService(&jobSearchServiceDesc, srv)
}
