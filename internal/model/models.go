// Package model defines shared data structures for the search service.
package model

import (
	"strings"
	"time"
)

// Job mirrors the jobs row joined with its category and resolved company.
type Job struct {
	ID               string     `json:"id"`
	EmployerID       string     `json:"employerId"`
	CompanyID        *string    `json:"companyId,omitempty"`
	CategoryID       *string    `json:"categoryId,omitempty"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	JobType          string     `json:"jobType"`
	WorkMode         []string   `json:"workMode"`
	ExperienceLevel  string     `json:"experienceLevel,omitempty"`
	City             string     `json:"city,omitempty"`
	State            string     `json:"state,omitempty"`
	Country          string     `json:"country,omitempty"`
	SalaryMin        *int       `json:"salaryMin,omitempty"`
	SalaryMax        *int       `json:"salaryMax,omitempty"`
	PayRate          string     `json:"payRate,omitempty"`
	Skills           []string   `json:"skills"`
	Deadline         *time.Time `json:"deadline,omitempty"`
	IsActive         bool       `json:"isActive"`
	IsFeatured       bool       `json:"isFeatured"`
	ViewCount        int        `json:"viewCount"`
	ApplicationCount int        `json:"applicationCount"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
	LastActivityAt   *time.Time `json:"lastActivityAt,omitempty"`

	CompanyName string `json:"companyName,omitempty"`
	Industry    string `json:"industry,omitempty"`
	CompanyType string `json:"companyType,omitempty"`
}

// Company is the owning organisation of a job. When the job carries no
// company_id the fields come from the employer row and ID is the employer id.
type Company struct {
	ID       string
	Name     string
	Industry string
	Size     string
	Type     string
}

// Category is a row of job_categories.
type Category struct {
	ID          string    `json:"id"`
	ParentID    *string   `json:"parentId,omitempty"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Skill is a row of skills.
type Skill struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Preference is a candidate's job_preferences row. Every value is lowercased
// when loaded.
type Preference struct {
	JobTypes   []string
	Locations  []string
	Industries []string
	WorkShift  string
}

// Empty reports whether the preference carries no usable signal.
func (p *Preference) Empty() bool {
	return p == nil ||
		(len(p.JobTypes) == 0 && len(p.Locations) == 0 && len(p.Industries) == 0 && p.WorkShift == "")
}

// SavedSearch is a row of saved_searches. Criteria is the raw JSON blob.
type SavedSearch struct {
	ID        string
	Name      string
	Criteria  string
	IsActive  bool
	CreatedAt time.Time
}

// ─── Principal ───────────────────────────────────────────────────────────────

// Role is the caller role forwarded by the gateway.
type Role string

const (
	RoleCandidate Role = "candidate"
	RoleEmployer  Role = "employer"
)

// Principal is the authenticated caller. A nil *Principal is anonymous.
type Principal struct {
	ID   string
	Role Role
}

// UserID returns the caller id, or "" when anonymous.
func (p *Principal) UserID() string {
	if p == nil {
		return ""
	}
	return p.ID
}

// ─── Filters and paging ─────────────────────────────────────────────────────

// PostedWithin windows accepted by the structured filters.
var PostedWithin = map[string]time.Duration{
	"24h": 24 * time.Hour,
	"3d":  3 * 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

// Filters is the structured filter set shared by discovery and
// recommendation feeds. A zero field adds no predicate.
type Filters struct {
	CategoryID      string   `validate:"omitempty,uuid"`
	EmploymentTypes []string `validate:"omitempty,dive,max=50"`
	WorkModes       []string `validate:"omitempty,dive,max=50"`
	ExperienceLevel string   `validate:"omitempty,max=100"`
	SalaryMin       *int     `validate:"omitempty,min=0"`
	SalaryMax       *int     `validate:"omitempty,min=0"`
	City            string   `validate:"omitempty,max=100"`
	State           string   `validate:"omitempty,max=100"`
	Country         string   `validate:"omitempty,max=100"`
	CompanyName     string   `validate:"omitempty,max=255"`
	Industries      []string `validate:"omitempty,dive,max=100"`
	CompanyTypes    []string `validate:"omitempty,dive,max=50"`
	PostedWithin    string   `validate:"omitempty,oneof=24h 3d 7d 30d"`
}

// Page is an offset-based page request.
type Page struct {
	Page  int `validate:"min=1"`
	Limit int `validate:"min=1,max=100"`
}

// Offset returns the row offset of the page.
func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Pagination is the paging block of keyword search and discovery feeds.
type Pagination struct {
	TotalItems  int  `json:"totalItems"`
	PageCount   int  `json:"pageCount"`
	CurrentPage int  `json:"currentPage"`
	Limit       int  `json:"limit"`
	HasNextPage bool `json:"hasNextPage"`
}

// NewPagination describes page p of total items.
func NewPagination(total int, p Page) Pagination {
	pages := PageCount(total, p.Limit)
	return Pagination{
		TotalItems:  total,
		PageCount:   pages,
		CurrentPage: p.Page,
		Limit:       p.Limit,
		HasNextPage: p.Page < pages,
	}
}

// PageCount returns ceil(total/limit).
func PageCount(total, limit int) int {
	if limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// ─── Results ─────────────────────────────────────────────────────────────────

// EnrichedJob is a job with per-caller flags.
type EnrichedJob struct {
	Job
	IsSaved   bool `json:"isSaved"`
	IsApplied bool `json:"isApplied"`
}

// ReindexResult is the tally of a full rebuild.
type ReindexResult struct {
	Total   int `json:"totalJobs"`
	Success int `json:"indexedSuccessfully"`
	Failed  int `json:"failed"`
}

// Normalize lowercases and trims a facet value.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeAll lowercases every value and drops blanks.
func NormalizeAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if n := Normalize(s); n != "" {
			out = append(out, n)
		}
	}
	return out
}
