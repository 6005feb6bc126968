package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/recipebook/apiserver/types"
)

// RecipeFilter narrows a recipe listing. CallerID identifies the
// authenticated caller (0 for anonymous) and controls which private
// recipes are visible; OwnerID restricts the listing to one owner.
type RecipeFilter struct {
	Search   string
	CallerID int64
	OwnerID  int64
}

// RecipeRepository handles persistence for recipes.
type RecipeRepository struct {
	db *sql.DB
}

func NewRecipeRepository(db *sql.DB) *RecipeRepository {
	return &RecipeRepository{db: db}
}

const recipeColumns = `id, name, preparation_time, difficulty, is_private, image_key, owner_id, owner_name, category_ids, created_at, updated_at`

func scanRecipe(row interface{ Scan(dest ...any) error }) (types.Recipe, error) {
	var recipe types.Recipe
	err := row.Scan(
		&recipe.ID,
		&recipe.Name,
		&recipe.PreparationTime,
		&recipe.Difficulty,
		&recipe.IsPrivate,
		&recipe.ImageKey,
		&recipe.Owner.ID,
		&recipe.Owner.Name,
		pq.Array(&recipe.CategoryIDs),
		&recipe.CreatedAt,
		&recipe.UpdatedAt,
	)
	return recipe, err
}

// Find lists recipes matching the filter in insertion order.
// A caller only ever sees public recipes and their own private ones.
func (r *RecipeRepository) Find(ctx context.Context, filter RecipeFilter, offset, limit int) ([]types.Recipe, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 10
	}

	conds := make([]string, 0, 3)
	args := make([]any, 0, 5)

	if filter.CallerID > 0 {
		args = append(args, filter.CallerID)
		conds = append(conds, fmt.Sprintf("(is_private = FALSE OR owner_id = $%d)", len(args)))
	} else {
		conds = append(conds, "is_private = FALSE")
	}

	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conds = append(conds, fmt.Sprintf("name ILIKE $%d", len(args)))
	}

	if filter.OwnerID > 0 {
		args = append(args, filter.OwnerID)
		conds = append(conds, fmt.Sprintf("owner_id = $%d", len(args)))
	}

	args = append(args, offset)
	offsetArg := len(args)
	args = append(args, limit)
	limitArg := len(args)

	query := fmt.Sprintf(`
		SELECT %s
		FROM recipes
		WHERE %s
		ORDER BY id
		OFFSET $%d LIMIT $%d`,
		recipeColumns, strings.Join(conds, " AND "), offsetArg, limitArg)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recipes := make([]types.Recipe, 0, limit)
	for rows.Next() {
		recipe, err := scanRecipe(rows)
		if err != nil {
			return nil, err
		}
		recipes = append(recipes, recipe)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return recipes, nil
}

// GetByIDs resolves a set of recipe ids to recipe records, keeping
// only those visible to the caller. Unknown ids are skipped.
func (r *RecipeRepository) GetByIDs(ctx context.Context, ids []int64, callerID int64) ([]types.Recipe, error) {
	if len(ids) == 0 {
		return []types.Recipe{}, nil
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM recipes
		WHERE id = ANY($1) AND (is_private = FALSE OR owner_id = $2)
		ORDER BY id`, recipeColumns)
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids), callerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recipes := make([]types.Recipe, 0, len(ids))
	for rows.Next() {
		recipe, err := scanRecipe(rows)
		if err != nil {
			return nil, err
		}
		recipes = append(recipes, recipe)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return recipes, nil
}

func (r *RecipeRepository) Get(ctx context.Context, id int64) (types.Recipe, error) {
	query := fmt.Sprintf(`SELECT %s FROM recipes WHERE id = $1`, recipeColumns)
	recipe, err := scanRecipe(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Recipe{}, ErrNotFound
		}
		return types.Recipe{}, err
	}
	return recipe, nil
}

func (r *RecipeRepository) Create(ctx context.Context, recipe types.Recipe) (types.Recipe, error) {
	now := time.Now()
	recipe.CreatedAt = now
	recipe.UpdatedAt = now

	const query = `
		INSERT INTO recipes (name, preparation_time, difficulty, is_private, image_key, owner_id, owner_name, category_ids, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		recipe.Name,
		recipe.PreparationTime,
		recipe.Difficulty,
		recipe.IsPrivate,
		recipe.ImageKey,
		recipe.Owner.ID,
		recipe.Owner.Name,
		pq.Array(recipe.CategoryIDs),
		recipe.CreatedAt,
		recipe.UpdatedAt,
	).Scan(&recipe.ID); err != nil {
		return types.Recipe{}, err
	}
	return recipe, nil
}

func (r *RecipeRepository) Update(ctx context.Context, recipe types.Recipe) (types.Recipe, error) {
	recipe.UpdatedAt = time.Now()

	const query = `
		UPDATE recipes
		SET name = $1,
			preparation_time = $2,
			difficulty = $3,
			is_private = $4,
			image_key = $5,
			category_ids = $6,
			updated_at = $7
		WHERE id = $8`
	result, err := r.db.ExecContext(
		ctx,
		query,
		recipe.Name,
		recipe.PreparationTime,
		recipe.Difficulty,
		recipe.IsPrivate,
		recipe.ImageKey,
		pq.Array(recipe.CategoryIDs),
		recipe.UpdatedAt,
		recipe.ID,
	)
	if err != nil {
		return types.Recipe{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Recipe{}, err
	}
	if affected == 0 {
		return types.Recipe{}, ErrNotFound
	}
	return recipe, nil
}

// SetCategoryIDs replaces the category reference set on a recipe.
// Used by the second phase of category reconciliation, after the
// requested category names have been resolved to ids.
func (r *RecipeRepository) SetCategoryIDs(ctx context.Context, id int64, categoryIDs []int64) error {
	const query = `
		UPDATE recipes
		SET category_ids = $1,
			updated_at = $2
		WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, pq.Array(categoryIDs), time.Now(), id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *RecipeRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM recipes WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
