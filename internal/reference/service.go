// Package reference serves the low-churn lookup lists (job categories and
// skills) through the read-through cache. Writes invalidate the cached list
// before they report success.
package reference

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"

	"jobmate/search-service/internal/apperr"
	"jobmate/search-service/internal/cache"
	"jobmate/search-service/internal/model"
	"jobmate/search-service/internal/store"
)

// Cache keys.
const (
	CategoriesKey = "ref:categories"
	SkillsKey     = "ref:skills"
)

// Store is the relational data behind the lists.
type Store interface {
	Categories(ctx context.Context) ([]model.Category, error)
	CreateCategory(ctx context.Context, c model.Category) (*model.Category, error)
	UpdateCategory(ctx context.Context, c model.Category) (*model.Category, error)
	Skills(ctx context.Context) ([]model.Skill, error)
	CreateSkill(ctx context.Context, name string) (*model.Skill, error)
}

// CategoryInput is a category create or update request.
type CategoryInput struct {
	Name        string  `json:"name" validate:"required,max=100"`
	ParentID    *string `json:"parentId" validate:"omitempty,uuid"`
	Description string  `json:"description" validate:"max=1000"`
	IsActive    *bool   `json:"isActive"`
}

// Service serves and maintains the reference lists.
type Service struct {
	st    Store
	cache *cache.Cache
	ttl   time.Duration
	log   zerolog.Logger
}

// NewService returns a Service caching lists for ttl.
func NewService(st Store, c *cache.Cache, ttl time.Duration, log zerolog.Logger) *Service {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Service{st: st, cache: c, ttl: ttl, log: log}
}

// ─── Categories ──────────────────────────────────────────────────────────────

// Categories returns the active categories.
func (s *Service) Categories(ctx context.Context) ([]model.Category, error) {
	out, err := cache.Remember(ctx, s.cache, CategoriesKey, s.ttl, s.st.Categories)
	if err != nil {
		s.log.Error().Err(err).Msg("load categories")
		return nil, apperr.Internal("failed to load categories", err)
	}
	return out, nil
}

// CreateCategory stores a new category with a slug derived from its name.
func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (*model.Category, error) {
	c, err := categoryFrom(in)
	if err != nil {
		return nil, err
	}
	out, err := s.st.CreateCategory(ctx, c)
	if err != nil {
		return nil, s.writeError("create category", "category", err)
	}
	if err := s.invalidate(ctx, CategoriesKey); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateCategory replaces the name, description and active flag of id.
func (s *Service) UpdateCategory(ctx context.Context, id string, in CategoryInput) (*model.Category, error) {
	c, err := categoryFrom(in)
	if err != nil {
		return nil, err
	}
	c.ID = id
	out, err := s.st.UpdateCategory(ctx, c)
	if err != nil {
		return nil, s.writeError("update category", "category", err)
	}
	if err := s.invalidate(ctx, CategoriesKey); err != nil {
		return nil, err
	}
	return out, nil
}

func categoryFrom(in CategoryInput) (model.Category, error) {
	name := strings.TrimSpace(in.Name)
	slug := Slugify(name)
	if slug == "" {
		return model.Category{}, apperr.Invalid("category name must contain letters or digits")
	}
	c := model.Category{
		ParentID:    in.ParentID,
		Name:        name,
		Slug:        slug,
		Description: strings.TrimSpace(in.Description),
		IsActive:    true,
	}
	if in.IsActive != nil {
		c.IsActive = *in.IsActive
	}
	return c, nil
}

// ─── Skills ──────────────────────────────────────────────────────────────────

// Skills returns the skill dictionary.
func (s *Service) Skills(ctx context.Context) ([]model.Skill, error) {
	out, err := cache.Remember(ctx, s.cache, SkillsKey, s.ttl, s.st.Skills)
	if err != nil {
		s.log.Error().Err(err).Msg("load skills")
		return nil, apperr.Internal("failed to load skills", err)
	}
	return out, nil
}

// CreateSkill adds name to the dictionary. Adding an existing name returns
// the stored skill.
func (s *Service) CreateSkill(ctx context.Context, name string) (*model.Skill, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Invalid("skill name is required")
	}
	out, err := s.st.CreateSkill(ctx, name)
	if err != nil {
		return nil, s.writeError("create skill", "skill", err)
	}
	if err := s.invalidate(ctx, SkillsKey); err != nil {
		return nil, err
	}
	return out, nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func (s *Service) invalidate(ctx context.Context, key string) error {
	if err := s.cache.Invalidate(ctx, key); err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("cache invalidation failed after write")
		return apperr.Unavailable("the change was saved but could not be published, please retry", err)
	}
	return nil
}

// writeError maps a store failure on a noun ("category", "skill") write.
func (s *Service) writeError(op, noun string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound(noun + " not found")
	case errors.Is(err, store.ErrConflict):
		return apperr.Invalid("a " + noun + " with this name already exists")
	}
	s.log.Error().Err(err).Str("op", op).Msg("reference write failed")
	return apperr.Internal("failed to save", err)
}

// Slugify lowercases name and collapses every run of non-alphanumerics
// into a single dash.
func Slugify(name string) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
			dash = false
			continue
		}
		if sb.Len() > 0 && !dash {
			sb.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(sb.String(), "-")
}
