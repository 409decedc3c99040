package store

import (
	"time"

	"jobmate/search-service/internal/model"
)

// ActivePredicate restricts a job query to searchable jobs.
const ActivePredicate = "j.is_active = true"

// FilterPredicates turns f into ANDed SQL predicates over the jobFrom
// aliases. Absent fields contribute nothing. String values are lowercased
// and compared against lowercased columns.
func FilterPredicates(f model.Filters, args *Args, now time.Time) []string {
	var where []string

	if f.CategoryID != "" {
		where = append(where, "j.category_id = "+args.Add(f.CategoryID)+"::uuid")
	}
	if v := model.NormalizeAll(f.EmploymentTypes); len(v) > 0 {
		where = append(where, "LOWER(j.job_type) = ANY("+args.Add(v)+"::text[])")
	}
	if v := model.NormalizeAll(f.WorkModes); len(v) > 0 {
		where = append(where, "EXISTS (SELECT 1 FROM unnest(j.work_mode) wm WHERE LOWER(wm) = ANY("+args.Add(v)+"::text[]))")
	}
	if v := model.Normalize(f.ExperienceLevel); v != "" {
		where = append(where, "LOWER(j.experience_level) = "+args.Add(v)+"::text")
	}
	if f.SalaryMin != nil {
		where = append(where, "j.salary_min >= "+args.Add(*f.SalaryMin)+"::int")
	}
	if f.SalaryMax != nil {
		where = append(where, "j.salary_max <= "+args.Add(*f.SalaryMax)+"::int")
	}
	if v := model.Normalize(f.City); v != "" {
		where = append(where, "LOWER(j.city) = "+args.Add(v)+"::text")
	}
	if v := model.Normalize(f.State); v != "" {
		where = append(where, "LOWER(j.state) = "+args.Add(v)+"::text")
	}
	if v := model.Normalize(f.Country); v != "" {
		where = append(where, "LOWER(j.country) = "+args.Add(v)+"::text")
	}
	if v := model.Normalize(f.CompanyName); v != "" {
		where = append(where, "LOWER(COALESCE(c.name, e.company_name)) LIKE '%' || "+args.Add(v)+"::text || '%'")
	}
	if v := model.NormalizeAll(f.Industries); len(v) > 0 {
		where = append(where, "LOWER(COALESCE(c.industry, e.industry)) = ANY("+args.Add(v)+"::text[])")
	}
	if v := model.NormalizeAll(f.CompanyTypes); len(v) > 0 {
		where = append(where, "LOWER(c.company_type::text) = ANY("+args.Add(v)+"::text[])")
	}
	if d, ok := model.PostedWithin[f.PostedWithin]; ok {
		where = append(where, "j.created_at >= "+args.Add(now.UTC().Add(-d)))
	}

	return where
}
