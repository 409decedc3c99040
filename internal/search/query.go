package search

import (
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"jobmate/search-service/internal/model"
)

// Keyword field weights. Title dominates, industry is the weakest signal.
const (
	WeightTitle       = 5.0
	WeightDescription = 4.0
	WeightSkills      = 3.0
	WeightCompanyName = 2.0
	WeightIndustry    = 1.5

	// WeightCompanyNameHint applies to the optional companyName parameter.
	WeightCompanyNameHint = 3.0
)

// Boost is a soft ranking hint: documents whose Field holds any of Values
// score higher by Weight. A boost never excludes a document.
type Boost struct {
	Field  string
	Values []string
	Weight float64
}

// Params is a keyword search request. Empty filters add no constraint.
type Params struct {
	Keyword         string
	JobType         string
	ExperienceLevel string
	City            string
	State           string
	WorkMode        string
	PayRate         string
	MinSalary       *int
	PostedWithin    string
	Industries      []string
	CompanyTypes    []string
	CompanyName     string
	Boosts          []Boost
	Page            int
	Limit           int
}

// buildQuery combines the weighted keyword match, the exact-match filters
// and the optional boosts into one boolean query.
func buildQuery(p Params, now time.Time) query.Query {
	q := bleve.NewBooleanQuery()
	q.AddMust(keywordQuery(p.Keyword))

	for _, f := range filterQueries(p, now) {
		q.AddMust(f)
	}

	var should []query.Query
	if name := model.Normalize(p.CompanyName); name != "" {
		mq := bleve.NewMatchQuery(name)
		mq.SetField(FieldCompanyName)
		mq.SetBoost(WeightCompanyNameHint)
		should = append(should, mq)
	}
	for _, b := range p.Boosts {
		should = append(should, boostQueries(b)...)
	}
	if len(should) > 0 {
		q.AddShould(should...)
		q.SetMinShould(0)
	}
	return q
}

func keywordQuery(keyword string) query.Query {
	fields := []struct {
		name   string
		weight float64
	}{
		{FieldTitle, WeightTitle},
		{FieldDescription, WeightDescription},
		{FieldSkills, WeightSkills},
		{FieldCompanyName, WeightCompanyName},
		{FieldCompanyIndustry, WeightIndustry},
	}
	matches := make([]query.Query, 0, len(fields))
	for _, f := range fields {
		mq := bleve.NewMatchQuery(keyword)
		mq.SetField(f.name)
		mq.SetBoost(f.weight)
		matches = append(matches, mq)
	}
	return bleve.NewDisjunctionQuery(matches...)
}

// filterQueries returns one must clause per present filter. Values are
// lowercased to match the lowercased document facets.
func filterQueries(p Params, now time.Time) []query.Query {
	active := bleve.NewBoolFieldQuery(true)
	active.SetField(FieldIsActive)
	out := []query.Query{active}

	for field, value := range map[string]string{
		FieldJobType:         p.JobType,
		FieldExperienceLevel: p.ExperienceLevel,
		FieldCity:            p.City,
		FieldState:           p.State,
		FieldWorkMode:        p.WorkMode,
		FieldPayRate:         p.PayRate,
	} {
		if v := model.Normalize(value); v != "" {
			out = append(out, term(field, v))
		}
	}

	if p.MinSalary != nil {
		minSalary := float64(*p.MinSalary)
		rq := bleve.NewNumericRangeQuery(&minSalary, nil)
		rq.SetField(FieldSalaryMin)
		out = append(out, rq)
	}
	if d, ok := model.PostedWithin[p.PostedWithin]; ok {
		dq := bleve.NewDateRangeQuery(now.Add(-d), time.Time{})
		dq.SetField(FieldCreatedAt)
		out = append(out, dq)
	}
	if q := anyOf(FieldIndustry, p.Industries); q != nil {
		out = append(out, q)
	}
	if q := anyOf(FieldCompanyType, p.CompanyTypes); q != nil {
		out = append(out, q)
	}
	return out
}

func boostQueries(b Boost) []query.Query {
	out := make([]query.Query, 0, len(b.Values))
	for _, v := range model.NormalizeAll(b.Values) {
		tq := term(b.Field, v)
		tq.SetBoost(b.Weight)
		out = append(out, tq)
	}
	return out
}

func anyOf(field string, values []string) query.Query {
	norm := model.NormalizeAll(values)
	if len(norm) == 0 {
		return nil
	}
	terms := make([]query.Query, 0, len(norm))
	for _, v := range norm {
		terms = append(terms, term(field, v))
	}
	return bleve.NewDisjunctionQuery(terms...)
}

func term(field, value string) *query.TermQuery {
	tq := bleve.NewTermQuery(value)
	tq.SetField(field)
	return tq
}
