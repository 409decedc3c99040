package jobsearch

import (
	"jobmate/search-service/internal/model"
	"jobmate/search-service/internal/search"
)

// Boost weights.
const (
	WeightPreferredJobType  = 3.0
	WeightPreferredLocation = 4.0
	WeightPreferredIndustry = 2.0
	WeightWorkShift         = 2.5
	WeightOwnJobs           = 5.0
)

// Strategy is the boosting strategy of one request. Exactly one is chosen,
// from the caller's role, before any query is built.
type Strategy int

const (
	StrategyNone Strategy = iota
	StrategyCandidate
	StrategyEmployer
)

func (s Strategy) String() string {
	switch s {
	case StrategyCandidate:
		return "candidate"
	case StrategyEmployer:
		return "employer"
	default:
		return "none"
	}
}

// StrategyFor maps a principal to its strategy. Anonymous callers and any
// role other than candidate or employer get no boost.
func StrategyFor(p *model.Principal) Strategy {
	if p == nil || p.ID == "" {
		return StrategyNone
	}
	switch p.Role {
	case model.RoleCandidate:
		return StrategyCandidate
	case model.RoleEmployer:
		return StrategyEmployer
	default:
		return StrategyNone
	}
}

// BoostContext carries the data a strategy needs. Only the field matching
// the strategy is ever loaded.
type BoostContext struct {
	Preference *model.Preference
	EmployerID string
}

// Hints returns the boost hints of s. It is a pure function: missing
// context yields no hints, never an error.
func (s Strategy) Hints(bc BoostContext) []search.Boost {
	switch s {
	case StrategyCandidate:
		return candidateHints(bc.Preference)
	case StrategyEmployer:
		return employerHints(bc.EmployerID)
	default:
		return nil
	}
}

func candidateHints(p *model.Preference) []search.Boost {
	if p.Empty() {
		return nil
	}
	var out []search.Boost
	add := func(field string, values []string, weight float64) {
		if len(values) > 0 {
			out = append(out, search.Boost{Field: field, Values: values, Weight: weight})
		}
	}
	add(search.FieldJobType, p.JobTypes, WeightPreferredJobType)
	add(search.FieldCity, p.Locations, WeightPreferredLocation)
	add(search.FieldIndustry, p.Industries, WeightPreferredIndustry)
	if p.WorkShift != "" {
		add(search.FieldWorkMode, []string{p.WorkShift}, WeightWorkShift)
	}
	return out
}

func employerHints(employerID string) []search.Boost {
	if employerID == "" {
		return nil
	}
	return []search.Boost{{Field: search.FieldEmployerID, Values: []string{employerID}, Weight: WeightOwnJobs}}
}
