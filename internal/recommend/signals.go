package recommend

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"jobmate/search-service/internal/model"
)

// Saved-search keyword extraction limits.
const (
	MaxSavedSearches = 10
	MinKeywordLength = 3
)

// Signals is the per-request snapshot the terms score against. Every field
// may be empty; an empty signal contributes nothing.
type Signals struct {
	Preference      *model.Preference
	AppliedIDs      []string
	SavedIDs        []string
	SavedCategories []string
	Keywords        []string
	Now             time.Time
}

func (s *Signals) locations() []string {
	if s.Preference == nil {
		return nil
	}
	return model.NormalizeAll(s.Preference.Locations)
}

func (s *Signals) jobTypes() []string {
	if s.Preference == nil {
		return nil
	}
	return model.NormalizeAll(s.Preference.JobTypes)
}

// gather loads every signal of userID concurrently. Only the applied-job
// lookup can fail the request: it backs a hard exclusion. The others are
// logged and left empty.
func gather(ctx context.Context, st Store, userID string, now time.Time, log zerolog.Logger) (*Signals, error) {
	sig := &Signals{Now: now}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		pref, err := st.PreferenceByUser(gctx, userID)
		if err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("load preferences, scoring without them")
			return nil
		}
		sig.Preference = pref
		return nil
	})
	g.Go(func() error {
		ids, err := st.AppliedJobIDs(gctx, userID)
		if err != nil {
			return fmt.Errorf("applied jobs: %w", err)
		}
		sig.AppliedIDs = ids
		return nil
	})
	g.Go(func() error {
		ids, cats, err := st.SavedJobs(gctx, userID)
		if err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("load saved jobs, scoring without them")
			return nil
		}
		sig.SavedIDs, sig.SavedCategories = ids, cats
		return nil
	})
	g.Go(func() error {
		searches, err := st.RecentSavedSearches(gctx, userID, MaxSavedSearches)
		if err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("load saved searches, scoring without them")
			return nil
		}
		sig.Keywords = Keywords(searches)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sig, nil
}

// criteriaKeys are the saved-search criteria fields that carry free text.
var criteriaKeys = []string{"keyword", "keywords", "q"}

// Keywords extracts the de-duplicated, lowercased keyword terms of the
// given saved searches, in order of first appearance. Terms shorter than
// MinKeywordLength are dropped.
func Keywords(searches []model.SavedSearch) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, ss := range searches {
		var criteria map[string]any
		if err := json.Unmarshal([]byte(ss.Criteria), &criteria); err != nil {
			continue
		}
		for _, key := range criteriaKeys {
			for _, text := range texts(criteria[key]) {
				for _, term := range splitTerms(text) {
					if utf8.RuneCountInString(term) < MinKeywordLength || seen[term] {
						continue
					}
					seen[term] = true
					out = append(out, term)
				}
			}
		}
	}
	return out
}

func texts(v any) []string {
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
	return nil
}

func splitTerms(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
}
