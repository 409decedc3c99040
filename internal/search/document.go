// Package search is the full-text index manager. It owns a single embedded
// Bleve index of job documents: schema creation, per-document upsert and
// delete, bulk rebuild from the relational store, and keyword queries.
//
// The index is derived state. Every document can be rebuilt from Postgres,
// and BulkIndexAllJobs is the repair path when the two diverge.
package search

import (
	"time"

	"jobmate/search-service/internal/model"
)

// Document is the denormalized projection of a job and its company.
type Document struct {
	JobID           string
	EmployerID      string
	CategoryID      string
	Title           string
	Description     string
	Skills          []string
	CompanyID       string
	CompanyName     string
	CompanyIndustry string
	CompanySize     string
	CompanyType     string
	JobType         string
	ExperienceLevel string
	WorkMode        []string
	City            string
	State           string
	Country         string
	PayRate         string
	SalaryMin       *int
	SalaryMax       *int
	CreatedAt       time.Time
	IsActive        bool
}

// NewDocument builds the document for a job. Facet values are lowercased
// here so that filters only ever compare lowercase terms.
func NewDocument(j *model.Job, c *model.Company) *Document {
	d := &Document{
		JobID:           j.ID,
		EmployerID:      j.EmployerID,
		Title:           j.Title,
		Description:     j.Description,
		Skills:          j.Skills,
		JobType:         model.Normalize(j.JobType),
		ExperienceLevel: model.Normalize(j.ExperienceLevel),
		WorkMode:        model.NormalizeAll(j.WorkMode),
		City:            model.Normalize(j.City),
		State:           model.Normalize(j.State),
		Country:         model.Normalize(j.Country),
		PayRate:         model.Normalize(j.PayRate),
		SalaryMin:       j.SalaryMin,
		SalaryMax:       j.SalaryMax,
		CreatedAt:       j.CreatedAt.UTC(),
		IsActive:        j.IsActive,
	}
	if j.CategoryID != nil {
		d.CategoryID = *j.CategoryID
	}
	if c != nil {
		d.CompanyID = c.ID
		d.CompanyName = c.Name
		d.CompanyIndustry = c.Industry
		d.CompanySize = model.Normalize(c.Size)
		d.CompanyType = model.Normalize(c.Type)
	}
	return d
}

// ToMap converts the document to the field names of the index mapping.
func (d *Document) ToMap() map[string]any {
	m := map[string]any{
		FieldJobID:           d.JobID,
		FieldEmployerID:      model.Normalize(d.EmployerID),
		FieldTitle:           d.Title,
		FieldDescription:     d.Description,
		FieldCompanyName:     d.CompanyName,
		FieldCompanyIndustry: d.CompanyIndustry,
		FieldIndustry:        model.Normalize(d.CompanyIndustry),
		FieldCreatedAt:       d.CreatedAt,
		FieldIsActive:        d.IsActive,
	}
	setString(m, FieldCategoryID, d.CategoryID)
	setString(m, FieldCompanyID, d.CompanyID)
	setString(m, FieldCompanySize, d.CompanySize)
	setString(m, FieldCompanyType, d.CompanyType)
	setString(m, FieldJobType, d.JobType)
	setString(m, FieldExperienceLevel, d.ExperienceLevel)
	setString(m, FieldCity, d.City)
	setString(m, FieldState, d.State)
	setString(m, FieldCountry, d.Country)
	setString(m, FieldPayRate, d.PayRate)
	if len(d.Skills) > 0 {
		m[FieldSkills] = d.Skills
	}
	if len(d.WorkMode) > 0 {
		m[FieldWorkMode] = d.WorkMode
	}
	if d.SalaryMin != nil {
		m[FieldSalaryMin] = float64(*d.SalaryMin)
	}
	if d.SalaryMax != nil {
		m[FieldSalaryMax] = float64(*d.SalaryMax)
	}
	return m
}

func setString(m map[string]any, k, v string) {
	if v != "" {
		m[k] = v
	}
}

// jobFromFields rebuilds a job from the stored fields of a hit. Facets come
// back lowercased.
func jobFromFields(id string, f map[string]any) model.Job {
	j := model.Job{
		ID:              id,
		EmployerID:      str(f[FieldEmployerID]),
		Title:           str(f[FieldTitle]),
		Description:     str(f[FieldDescription]),
		Skills:          strs(f[FieldSkills]),
		JobType:         str(f[FieldJobType]),
		ExperienceLevel: str(f[FieldExperienceLevel]),
		WorkMode:        strs(f[FieldWorkMode]),
		City:            str(f[FieldCity]),
		State:           str(f[FieldState]),
		Country:         str(f[FieldCountry]),
		PayRate:         str(f[FieldPayRate]),
		CompanyName:     str(f[FieldCompanyName]),
		Industry:        str(f[FieldCompanyIndustry]),
		CompanyType:     str(f[FieldCompanyType]),
		SalaryMin:       intPtr(f[FieldSalaryMin]),
		SalaryMax:       intPtr(f[FieldSalaryMax]),
	}
	if v := str(f[FieldCategoryID]); v != "" {
		j.CategoryID = &v
	}
	if v := str(f[FieldCompanyID]); v != "" {
		j.CompanyID = &v
	}
	if b, ok := f[FieldIsActive].(bool); ok {
		j.IsActive = b
	}
	if s := str(f[FieldCreatedAt]); s != "" {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			j.CreatedAt = t
		}
	}
	return j
}

func str(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		if len(t) > 0 {
			return str(t[0])
		}
	}
	return ""
}

// strs handles Bleve returning a single-element array as a bare string.
func strs(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return []string{}
}

func intPtr(v any) *int {
	f, ok := v.(float64)
	if !ok {
		return nil
	}
	n := int(f)
	return &n
}
