package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/recipebook/apiserver/types"
)

// CategoryRepository handles persistence for categories.
//
// The recipe_ids column is a plain bigint array with no foreign key;
// set membership is maintained with idempotent array updates so that
// repeated or interleaved reconciliation steps are safe.
type CategoryRepository struct {
	db *sql.DB
}

func NewCategoryRepository(db *sql.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

func (r *CategoryRepository) List(ctx context.Context) ([]types.Category, error) {
	const query = `
		SELECT id, description, recipe_ids
		FROM categories
		ORDER BY id`
	return r.queryCategories(ctx, query)
}

func (r *CategoryRepository) GetByID(ctx context.Context, id int64) (types.Category, error) {
	const query = `
		SELECT id, description, recipe_ids
		FROM categories
		WHERE id = $1`
	var category types.Category
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&category.ID,
		&category.Description,
		pq.Array(&category.RecipeIDs),
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Category{}, ErrNotFound
		}
		return types.Category{}, err
	}
	return category, nil
}

// GetByIDs resolves a set of category ids to category records.
// Unknown ids are silently skipped.
func (r *CategoryRepository) GetByIDs(ctx context.Context, ids []int64) ([]types.Category, error) {
	if len(ids) == 0 {
		return []types.Category{}, nil
	}
	const query = `
		SELECT id, description, recipe_ids
		FROM categories
		WHERE id = ANY($1)
		ORDER BY id`
	return r.queryCategories(ctx, query, pq.Array(ids))
}

// GetByDescriptions returns the categories whose description exactly
// matches one of the given names. Case-sensitive.
func (r *CategoryRepository) GetByDescriptions(ctx context.Context, names []string) ([]types.Category, error) {
	if len(names) == 0 {
		return []types.Category{}, nil
	}
	const query = `
		SELECT id, description, recipe_ids
		FROM categories
		WHERE description = ANY($1)
		ORDER BY id`
	return r.queryCategories(ctx, query, pq.Array(names))
}

// CreateMany inserts one category per description, each seeded with
// the given recipe ids.
func (r *CategoryRepository) CreateMany(ctx context.Context, descriptions []string, recipeIDs []int64) ([]types.Category, error) {
	const query = `
		INSERT INTO categories (description, recipe_ids)
		VALUES ($1, $2)
		RETURNING id`
	created := make([]types.Category, 0, len(descriptions))
	for _, description := range descriptions {
		category := types.Category{
			Description: description,
			RecipeIDs:   append([]int64(nil), recipeIDs...),
		}
		if err := r.db.QueryRowContext(ctx, query, description, pq.Array(recipeIDs)).Scan(&category.ID); err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
				return created, ErrDuplicate
			}
			return created, err
		}
		created = append(created, category)
	}
	return created, nil
}

// AddRecipeRef adds a recipe id to the recipe set of each given
// category. Idempotent: categories already referencing the recipe are
// left unchanged.
func (r *CategoryRepository) AddRecipeRef(ctx context.Context, categoryIDs []int64, recipeID int64) error {
	if len(categoryIDs) == 0 {
		return nil
	}
	const query = `
		UPDATE categories
		SET recipe_ids = array_append(recipe_ids, $2)
		WHERE id = ANY($1) AND NOT (recipe_ids @> ARRAY[$2]::bigint[])`
	_, err := r.db.ExecContext(ctx, query, pq.Array(categoryIDs), recipeID)
	return err
}

// RemoveRecipeRef removes a recipe id from the recipe set of each
// given category. Idempotent.
func (r *CategoryRepository) RemoveRecipeRef(ctx context.Context, categoryIDs []int64, recipeID int64) error {
	if len(categoryIDs) == 0 {
		return nil
	}
	const query = `
		UPDATE categories
		SET recipe_ids = array_remove(recipe_ids, $2)
		WHERE id = ANY($1)`
	_, err := r.db.ExecContext(ctx, query, pq.Array(categoryIDs), recipeID)
	return err
}

// RemoveRecipeRefFromAll removes a recipe id from every category that
// references it, regardless of what the recipe's own category list
// claims. Used on recipe deletion to clean up after any prior desync.
func (r *CategoryRepository) RemoveRecipeRefFromAll(ctx context.Context, recipeID int64) error {
	const query = `
		UPDATE categories
		SET recipe_ids = array_remove(recipe_ids, $1)
		WHERE recipe_ids @> ARRAY[$1]::bigint[]`
	_, err := r.db.ExecContext(ctx, query, recipeID)
	return err
}

func (r *CategoryRepository) queryCategories(ctx context.Context, query string, args ...any) ([]types.Category, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]types.Category, 0)
	for rows.Next() {
		var category types.Category
		if err := rows.Scan(
			&category.ID,
			&category.Description,
			pq.Array(&category.RecipeIDs),
		); err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return categories, nil
}
