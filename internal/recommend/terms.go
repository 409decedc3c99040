package recommend

import (
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"jobmate/search-service/internal/model"
	"jobmate/search-service/internal/store"
)

// Term weights.
const (
	WeightPreferredLocation = 20.0
	WeightPreferredType     = 20.0
	WeightCategoryAffinity  = 25.0
	WeightSearchKeyword     = 15.0
	WeightSavedJob          = 10.0

	EngagementApplicationCap    = 100
	EngagementApplicationWeight = 0.15
	EngagementViewCap           = 50.0
	EngagementViewWeight        = 0.05
)

// Recency tiers, newest first.
var recencyTiers = []struct {
	Age    time.Duration
	Points float64
}{
	{7 * 24 * time.Hour, 15},
	{14 * 24 * time.Hour, 10},
	{30 * 24 * time.Hour, 5},
}

// Term is one named, independent contribution to a job's score.
//
// SQL renders the contribution as an expression over the jobFrom aliases,
// adding its parameters to args; "" means the term cannot fire for this
// caller. Eval computes the same contribution for a loaded job.
type Term struct {
	Name string
	SQL  func(sig *Signals, args *store.Args) string
	Eval func(j *model.Job, sig *Signals) float64
}

// Terms is the scoring formula, summed in order.
var Terms = []Term{
	{Name: "preferred_location", SQL: locationSQL, Eval: locationEval},
	{Name: "preferred_employment_type", SQL: typeSQL, Eval: typeEval},
	{Name: "saved_category_affinity", SQL: categorySQL, Eval: categoryEval},
	{Name: "saved_search_keyword", SQL: keywordSQL, Eval: keywordEval},
	{Name: "saved_job_boost", SQL: savedSQL, Eval: savedEval},
	{Name: "engagement", SQL: engagementSQL, Eval: engagementEval},
	{Name: "recency", SQL: recencySQL, Eval: recencyEval},
}

// ScoreSQL sums the SQL of every term that can fire.
func ScoreSQL(terms []Term, sig *Signals, args *store.Args) string {
	var parts []string
	for _, t := range terms {
		if expr := t.SQL(sig, args); expr != "" {
			parts = append(parts, "("+expr+")")
		}
	}
	if len(parts) == 0 {
		return "0"
	}
	return strings.Join(parts, " + ")
}

// Explain evaluates every term against j and returns the total and the
// names of the terms that contributed.
func Explain(terms []Term, j *model.Job, sig *Signals) (float64, []string) {
	var (
		total   float64
		matched = []string{}
	)
	for _, t := range terms {
		if v := t.Eval(j, sig); v > 0 {
			total += v
			matched = append(matched, t.Name)
		}
	}
	return math.Round(total*100) / 100, matched
}

// ─── Preference terms ───────────────────────────────────────────────────────

func locationSQL(sig *Signals, args *store.Args) string {
	locs := sig.locations()
	if len(locs) == 0 {
		return ""
	}
	ph := args.Add(locs)
	return caseWhen("EXISTS (SELECT 1 FROM unnest("+ph+"::text[]) loc WHERE "+
		"strpos(LOWER(COALESCE(j.city, '')), loc) > 0 OR "+
		"strpos(LOWER(COALESCE(j.state, '')), loc) > 0 OR "+
		"strpos(LOWER(COALESCE(j.country, '')), loc) > 0)", WeightPreferredLocation)
}

func locationEval(j *model.Job, sig *Signals) float64 {
	fields := []string{model.Normalize(j.City), model.Normalize(j.State), model.Normalize(j.Country)}
	for _, loc := range sig.locations() {
		for _, f := range fields {
			if strings.Contains(f, loc) {
				return WeightPreferredLocation
			}
		}
	}
	return 0
}

func typeSQL(sig *Signals, args *store.Args) string {
	types := sig.jobTypes()
	if len(types) == 0 {
		return ""
	}
	return caseWhen("LOWER(j.job_type) = ANY("+args.Add(types)+"::text[])", WeightPreferredType)
}

func typeEval(j *model.Job, sig *Signals) float64 {
	if slices.Contains(sig.jobTypes(), model.Normalize(j.JobType)) {
		return WeightPreferredType
	}
	return 0
}

// ─── Affinity terms ─────────────────────────────────────────────────────────

func categorySQL(sig *Signals, args *store.Args) string {
	if len(sig.SavedCategories) == 0 {
		return ""
	}
	return caseWhen("j.category_id::text = ANY("+args.Add(sig.SavedCategories)+"::text[])", WeightCategoryAffinity)
}

func categoryEval(j *model.Job, sig *Signals) float64 {
	if j.CategoryID != nil && slices.Contains(sig.SavedCategories, *j.CategoryID) {
		return WeightCategoryAffinity
	}
	return 0
}

func keywordSQL(sig *Signals, args *store.Args) string {
	if len(sig.Keywords) == 0 {
		return ""
	}
	ph := args.Add(sig.Keywords)
	return caseWhen("EXISTS (SELECT 1 FROM unnest("+ph+"::text[]) kw WHERE "+
		"strpos(LOWER(j.title), kw) > 0 OR "+
		"strpos(LOWER(j.description), kw) > 0 OR "+
		"EXISTS (SELECT 1 FROM unnest(COALESCE(j.skills, '{}')) sk WHERE strpos(LOWER(sk), kw) > 0))", WeightSearchKeyword)
}

func keywordEval(j *model.Job, sig *Signals) float64 {
	title, desc := strings.ToLower(j.Title), strings.ToLower(j.Description)
	for _, kw := range sig.Keywords {
		if strings.Contains(title, kw) || strings.Contains(desc, kw) {
			return WeightSearchKeyword
		}
		for _, sk := range j.Skills {
			if strings.Contains(strings.ToLower(sk), kw) {
				return WeightSearchKeyword
			}
		}
	}
	return 0
}

func savedSQL(sig *Signals, args *store.Args) string {
	if len(sig.SavedIDs) == 0 {
		return ""
	}
	return caseWhen("j.id::text = ANY("+args.Add(sig.SavedIDs)+"::text[])", WeightSavedJob)
}

func savedEval(j *model.Job, sig *Signals) float64 {
	if slices.Contains(sig.SavedIDs, j.ID) {
		return WeightSavedJob
	}
	return 0
}

// ─── Job terms ──────────────────────────────────────────────────────────────

func engagementSQL(*Signals, *store.Args) string {
	return "LEAST(j.application_count, " + strconv.Itoa(EngagementApplicationCap) + ") * " + num(EngagementApplicationWeight) +
		" + LEAST(j.view_count / 10.0, " + num(EngagementViewCap) + ") * " + num(EngagementViewWeight)
}

func engagementEval(j *model.Job, _ *Signals) float64 {
	apps := float64(min(j.ApplicationCount, EngagementApplicationCap))
	views := math.Min(float64(j.ViewCount)/10, EngagementViewCap)
	return apps*EngagementApplicationWeight + views*EngagementViewWeight
}

func recencySQL(sig *Signals, args *store.Args) string {
	var sb strings.Builder
	sb.WriteString("CASE")
	for _, tier := range recencyTiers {
		sb.WriteString(" WHEN j.created_at >= " + args.Add(sig.Now.Add(-tier.Age)) + " THEN ")
		sb.WriteString(num(tier.Points))
	}
	sb.WriteString(" ELSE 0 END")
	return sb.String()
}

func recencyEval(j *model.Job, sig *Signals) float64 {
	for _, tier := range recencyTiers {
		if !j.CreatedAt.Before(sig.Now.Add(-tier.Age)) {
			return tier.Points
		}
	}
	return 0
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func caseWhen(cond string, weight float64) string {
	return "CASE WHEN " + cond + " THEN " + num(weight) + " ELSE 0 END"
}
