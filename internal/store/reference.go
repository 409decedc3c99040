package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"jobmate/search-service/internal/model"
)

// Categories returns active job categories by display order, then name.
func (s *Store) Categories(ctx context.Context) ([]model.Category, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id::text, parent_id::text, name, slug, COALESCE(description, ''), is_active, created_at
		 FROM job_categories
		 WHERE is_active = true
		 ORDER BY display_order NULLS LAST, name`)
	if err != nil {
		return nil, fmt.Errorf("categories query: %w", err)
	}
	defer rows.Close()

	out := make([]model.Category, 0)
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.ParentID, &c.Name, &c.Slug, &c.Description, &c.IsActive, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("categories scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateCategory inserts a category and returns the stored row.
func (s *Store) CreateCategory(ctx context.Context, c model.Category) (*model.Category, error) {
	var out model.Category
	err := s.pool.QueryRow(ctx,
		`INSERT INTO job_categories (parent_id, name, slug, description)
		 VALUES ($1::uuid, $2, $3, NULLIF($4, ''))
		 RETURNING id::text, parent_id::text, name, slug, COALESCE(description, ''), is_active, created_at`,
		c.ParentID, c.Name, c.Slug, c.Description,
	).Scan(&out.ID, &out.ParentID, &out.Name, &out.Slug, &out.Description, &out.IsActive, &out.CreatedAt)
	if uniqueViolation(err) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("createCategory: %w", err)
	}
	return &out, nil
}

// UpdateCategory renames a category and toggles its active flag.
func (s *Store) UpdateCategory(ctx context.Context, c model.Category) (*model.Category, error) {
	var out model.Category
	err := s.pool.QueryRow(ctx,
		`UPDATE job_categories
		 SET name = $2, slug = $3, description = NULLIF($4, ''), is_active = $5, updated_at = now()
		 WHERE id = $1
		 RETURNING id::text, parent_id::text, name, slug, COALESCE(description, ''), is_active, created_at`,
		c.ID, c.Name, c.Slug, c.Description, c.IsActive,
	).Scan(&out.ID, &out.ParentID, &out.Name, &out.Slug, &out.Description, &out.IsActive, &out.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if uniqueViolation(err) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("updateCategory: %w", err)
	}
	return &out, nil
}

// Skills returns the skill dictionary sorted by name.
func (s *Store) Skills(ctx context.Context) ([]model.Skill, error) {
	rows, err := s.pool.Query(ctx, `SELECT id::text, name FROM skills ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("skills query: %w", err)
	}
	defer rows.Close()

	out := make([]model.Skill, 0)
	for rows.Next() {
		var sk model.Skill
		if err := rows.Scan(&sk.ID, &sk.Name); err != nil {
			return nil, fmt.Errorf("skills scan: %w", err)
		}
		out = append(out, sk)
	}
	return out, rows.Err()
}

// CreateSkill inserts a skill; an existing name returns the existing row.
func (s *Store) CreateSkill(ctx context.Context, name string) (*model.Skill, error) {
	var sk model.Skill
	err := s.pool.QueryRow(ctx,
		`INSERT INTO skills (name) VALUES ($1)
		 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id::text, name`,
		name,
	).Scan(&sk.ID, &sk.Name)
	if err != nil {
		return nil, fmt.Errorf("createSkill: %w", err)
	}
	return &sk, nil
}
