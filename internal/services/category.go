package services

import (
	"context"

	"github.com/recipebook/apiserver/types"
)

// RecipeResolver resolves recipe ids to records visible to a caller.
type RecipeResolver interface {
	GetByIDs(ctx context.Context, ids []int64, callerID int64) ([]types.Recipe, error)
}

// CategoryService encapsulates category use-cases.
type CategoryService struct {
	repo    CategoryRepository
	recipes RecipeResolver
}

func NewCategoryService(repo CategoryRepository, recipes RecipeResolver) *CategoryService {
	return &CategoryService{repo: repo, recipes: recipes}
}

func (s *CategoryService) List(ctx context.Context) ([]types.Category, error) {
	return s.repo.List(ctx)
}

// ListWithRecipes returns all categories with their member recipes
// resolved, filtered to what the caller may see.
func (s *CategoryService) ListWithRecipes(ctx context.Context, callerID int64) ([]types.Category, error) {
	categories, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range categories {
		if err := s.populateRecipes(ctx, &categories[i], callerID); err != nil {
			return nil, err
		}
	}
	return categories, nil
}

// GetWithRecipes returns one category with its member recipes
// resolved, filtered to what the caller may see.
func (s *CategoryService) GetWithRecipes(ctx context.Context, id, callerID int64) (types.Category, error) {
	category, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.Category{}, err
	}
	if err := s.populateRecipes(ctx, &category, callerID); err != nil {
		return types.Category{}, err
	}
	return category, nil
}

func (s *CategoryService) populateRecipes(ctx context.Context, category *types.Category, callerID int64) error {
	recipes, err := s.recipes.GetByIDs(ctx, category.RecipeIDs, callerID)
	if err != nil {
		return err
	}
	category.Recipes = recipes
	return nil
}
