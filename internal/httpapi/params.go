package httpapi

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"jobmate/search-service/internal/jobsearch"
	"jobmate/search-service/internal/model"
)

// Gateway headers carrying the authenticated caller.
const (
	HeaderUserID   = "x-user-id"
	HeaderUserRole = "x-user-role"
)

// principal reads the caller forwarded by the gateway. No x-user-id means
// anonymous; an id that is not a UUID is rejected.
func principal(r *http.Request) (*model.Principal, error) {
	id := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if id == "" {
		return nil, nil
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid %s header", HeaderUserID)
	}
	role := model.Role(strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderUserRole))))
	return &model.Principal{ID: id, Role: role}, nil
}

// jobID returns the {id} path parameter when it is a UUID.
func jobID(r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}

// intParam parses an optional integer query parameter.
func intParam(q url.Values, key string, def int) (int, error) {
	s := strings.TrimSpace(q.Get(key))
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return v, nil
}

func optionalInt(q url.Values, key string) (*int, error) {
	if strings.TrimSpace(q.Get(key)) == "" {
		return nil, nil
	}
	v, err := intParam(q, key, 0)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// listParam accepts repeated keys and comma-separated values.
func listParam(q url.Values, key string) []string {
	var out []string
	for _, raw := range q[key] {
		for _, part := range strings.Split(raw, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func pageParams(q url.Values) (model.Page, error) {
	page, err := intParam(q, "page", 1)
	if err != nil {
		return model.Page{}, err
	}
	limit, err := intParam(q, "limit", 20)
	if err != nil {
		return model.Page{}, err
	}
	return model.Page{Page: page, Limit: limit}, nil
}

func filterParams(q url.Values) (model.Filters, error) {
	f := model.Filters{
		CategoryID:      strings.TrimSpace(q.Get("categoryId")),
		EmploymentTypes: listParam(q, "employmentType"),
		WorkModes:       listParam(q, "workMode"),
		ExperienceLevel: strings.TrimSpace(q.Get("experienceLevel")),
		City:            strings.TrimSpace(q.Get("city")),
		State:           strings.TrimSpace(q.Get("state")),
		Country:         strings.TrimSpace(q.Get("country")),
		CompanyName:     strings.TrimSpace(q.Get("companyName")),
		Industries:      listParam(q, "industry"),
		CompanyTypes:    listParam(q, "companyType"),
		PostedWithin:    strings.TrimSpace(q.Get("postedWithin")),
	}
	var err error
	if f.SalaryMin, err = optionalInt(q, "salaryMin"); err != nil {
		return f, err
	}
	if f.SalaryMax, err = optionalInt(q, "salaryMax"); err != nil {
		return f, err
	}
	return f, nil
}

func searchParams(q url.Values) (jobsearch.Query, error) {
	keyword := q.Get("keyword")
	if keyword == "" {
		keyword = q.Get("q")
	}
	pg, err := pageParams(q)
	if err != nil {
		return jobsearch.Query{}, err
	}
	minSalary, err := optionalInt(q, "minSalary")
	if err != nil {
		return jobsearch.Query{}, err
	}
	return jobsearch.Query{
		Keyword:         strings.TrimSpace(keyword),
		JobType:         strings.TrimSpace(q.Get("jobType")),
		ExperienceLevel: strings.TrimSpace(q.Get("experienceLevel")),
		City:            strings.TrimSpace(q.Get("city")),
		State:           strings.TrimSpace(q.Get("state")),
		WorkMode:        strings.TrimSpace(q.Get("workMode")),
		PayRate:         strings.TrimSpace(q.Get("payRate")),
		MinSalary:       minSalary,
		PostedWithin:    strings.TrimSpace(q.Get("postedWithin")),
		Industries:      listParam(q, "industries"),
		CompanyTypes:    listParam(q, "companyTypes"),
		CompanyName:     strings.TrimSpace(q.Get("companyName")),
		Page:            pg.Page,
		Limit:           pg.Limit,
	}, nil
}
