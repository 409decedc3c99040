package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
)

// mappingVersion is bumped whenever a field is added or changes type. A
// mismatch on startup recreates the empty index; the next bulk reindex
// repopulates it.
const mappingVersion = "3"

// Document field names. They are the wire contract between the relational
// store and the index.
const (
	FieldJobID           = "job_id"
	FieldEmployerID      = "employer_id"
	FieldCategoryID      = "category_id"
	FieldTitle           = "title"
	FieldDescription     = "description"
	FieldSkills          = "skills"
	FieldCompanyName     = "company_name"
	FieldCompanyIndustry = "company_industry"
	FieldJobType         = "job_type"
	FieldExperienceLevel = "experience_level"
	FieldWorkMode        = "work_mode"
	FieldCity            = "city"
	FieldState           = "state"
	FieldCountry         = "country"
	FieldPayRate         = "pay_rate"
	FieldCompanyID       = "company_id"
	FieldCompanySize     = "company_size"
	FieldCompanyType     = "company_type"
	FieldIndustry        = "industry"
	FieldSalaryMin       = "salary_min"
	FieldSalaryMax       = "salary_max"
	FieldCreatedAt       = "created_at"
	FieldIsActive        = "is_active"
)

var (
	textFields = []string{
		FieldTitle, FieldDescription, FieldSkills, FieldCompanyName, FieldCompanyIndustry,
	}
	keywordFields = []string{
		FieldJobID, FieldEmployerID, FieldCategoryID,
		FieldJobType, FieldExperienceLevel, FieldWorkMode,
		FieldCity, FieldState, FieldCountry, FieldPayRate,
		FieldCompanyID, FieldCompanySize, FieldCompanyType, FieldIndustry,
	}
	numericFields = []string{FieldSalaryMin, FieldSalaryMax}
)

// storedFields is every field returned with a hit.
var storedFields = func() []string {
	out := append([]string{}, textFields...)
	out = append(out, keywordFields...)
	out = append(out, numericFields...)
	return append(out, FieldCreatedAt, FieldIsActive)
}()

// buildIndexMapping declares every field explicitly. Dynamic mapping is off
// so an unexpected property can never change a field's type.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = standard.Name

	doc := bleve.NewDocumentMapping()
	doc.Dynamic = false

	for _, name := range textFields {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = standard.Name
		fm.Store = true
		doc.AddFieldMappingsAt(name, fm)
	}

	// Facets are lowercased before indexing and matched as single terms.
	for _, name := range keywordFields {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = keyword.Name
		fm.Store = true
		fm.IncludeInAll = false
		doc.AddFieldMappingsAt(name, fm)
	}

	for _, name := range numericFields {
		fm := bleve.NewNumericFieldMapping()
		fm.Store = true
		fm.IncludeInAll = false
		doc.AddFieldMappingsAt(name, fm)
	}

	created := bleve.NewDateTimeFieldMapping()
	created.Store = true
	created.IncludeInAll = false
	doc.AddFieldMappingsAt(FieldCreatedAt, created)

	active := bleve.NewBooleanFieldMapping()
	active.Store = true
	active.IncludeInAll = false
	doc.AddFieldMappingsAt(FieldIsActive, active)

	indexMapping.AddDocumentMapping("_default", doc)

	return indexMapping
}
