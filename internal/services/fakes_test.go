package services

import (
	"context"
	"strings"

	"github.com/recipebook/apiserver/internal/store"
	"github.com/recipebook/apiserver/types"
)

// fakeRecipeRepo is an in-memory RecipeRepository preserving
// insertion order.
type fakeRecipeRepo struct {
	nextID  int64
	recipes []types.Recipe
}

func newFakeRecipeRepo() *fakeRecipeRepo {
	return &fakeRecipeRepo{nextID: 1}
}

func (f *fakeRecipeRepo) Find(ctx context.Context, filter store.RecipeFilter, offset, limit int) ([]types.Recipe, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 10
	}
	matched := make([]types.Recipe, 0)
	for _, recipe := range f.recipes {
		if recipe.IsPrivate && recipe.Owner.ID != filter.CallerID {
			continue
		}
		if filter.OwnerID > 0 && recipe.Owner.ID != filter.OwnerID {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(recipe.Name), strings.ToLower(filter.Search)) {
			continue
		}
		matched = append(matched, recipe)
	}
	if offset >= len(matched) {
		return []types.Recipe{}, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return append([]types.Recipe(nil), matched[offset:end]...), nil
}

func (f *fakeRecipeRepo) Get(ctx context.Context, id int64) (types.Recipe, error) {
	for _, recipe := range f.recipes {
		if recipe.ID == id {
			return recipe, nil
		}
	}
	return types.Recipe{}, store.ErrNotFound
}

func (f *fakeRecipeRepo) GetByIDs(ctx context.Context, ids []int64, callerID int64) ([]types.Recipe, error) {
	want := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	matched := make([]types.Recipe, 0, len(ids))
	for _, recipe := range f.recipes {
		if _, ok := want[recipe.ID]; !ok {
			continue
		}
		if recipe.IsPrivate && recipe.Owner.ID != callerID {
			continue
		}
		matched = append(matched, recipe)
	}
	return matched, nil
}

func (f *fakeRecipeRepo) Create(ctx context.Context, recipe types.Recipe) (types.Recipe, error) {
	recipe.ID = f.nextID
	f.nextID++
	f.recipes = append(f.recipes, recipe)
	return recipe, nil
}

func (f *fakeRecipeRepo) Update(ctx context.Context, recipe types.Recipe) (types.Recipe, error) {
	for i := range f.recipes {
		if f.recipes[i].ID == recipe.ID {
			f.recipes[i] = recipe
			return recipe, nil
		}
	}
	return types.Recipe{}, store.ErrNotFound
}

func (f *fakeRecipeRepo) SetCategoryIDs(ctx context.Context, id int64, categoryIDs []int64) error {
	for i := range f.recipes {
		if f.recipes[i].ID == id {
			f.recipes[i].CategoryIDs = append([]int64(nil), categoryIDs...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeRecipeRepo) Delete(ctx context.Context, id int64) error {
	for i := range f.recipes {
		if f.recipes[i].ID == id {
			f.recipes = append(f.recipes[:i], f.recipes[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

// fakeCategoryRepo is an in-memory CategoryRepository with
// idempotent set semantics on recipe references.
type fakeCategoryRepo struct {
	nextID     int64
	categories []types.Category
}

func newFakeCategoryRepo() *fakeCategoryRepo {
	return &fakeCategoryRepo{nextID: 1}
}

func (f *fakeCategoryRepo) add(description string, recipeIDs ...int64) types.Category {
	category := types.Category{
		ID:          f.nextID,
		Description: description,
		RecipeIDs:   append([]int64(nil), recipeIDs...),
	}
	f.nextID++
	f.categories = append(f.categories, category)
	return category
}

func (f *fakeCategoryRepo) find(id int64) *types.Category {
	for i := range f.categories {
		if f.categories[i].ID == id {
			return &f.categories[i]
		}
	}
	return nil
}

func (f *fakeCategoryRepo) List(ctx context.Context) ([]types.Category, error) {
	return append([]types.Category(nil), f.categories...), nil
}

func (f *fakeCategoryRepo) GetByID(ctx context.Context, id int64) (types.Category, error) {
	if category := f.find(id); category != nil {
		return *category, nil
	}
	return types.Category{}, store.ErrNotFound
}

func (f *fakeCategoryRepo) GetByIDs(ctx context.Context, ids []int64) ([]types.Category, error) {
	matched := make([]types.Category, 0, len(ids))
	for _, category := range f.categories {
		for _, id := range ids {
			if category.ID == id {
				matched = append(matched, category)
				break
			}
		}
	}
	return matched, nil
}

func (f *fakeCategoryRepo) GetByDescriptions(ctx context.Context, names []string) ([]types.Category, error) {
	matched := make([]types.Category, 0, len(names))
	for _, category := range f.categories {
		for _, name := range names {
			if category.Description == name {
				matched = append(matched, category)
				break
			}
		}
	}
	return matched, nil
}

func (f *fakeCategoryRepo) CreateMany(ctx context.Context, descriptions []string, recipeIDs []int64) ([]types.Category, error) {
	created := make([]types.Category, 0, len(descriptions))
	for _, description := range descriptions {
		created = append(created, f.add(description, recipeIDs...))
	}
	return created, nil
}

func (f *fakeCategoryRepo) AddRecipeRef(ctx context.Context, categoryIDs []int64, recipeID int64) error {
	for _, id := range categoryIDs {
		category := f.find(id)
		if category == nil {
			continue
		}
		if !containsID(category.RecipeIDs, recipeID) {
			category.RecipeIDs = append(category.RecipeIDs, recipeID)
		}
	}
	return nil
}

func (f *fakeCategoryRepo) RemoveRecipeRef(ctx context.Context, categoryIDs []int64, recipeID int64) error {
	for _, id := range categoryIDs {
		category := f.find(id)
		if category == nil {
			continue
		}
		category.RecipeIDs = removeID(category.RecipeIDs, recipeID)
	}
	return nil
}

func (f *fakeCategoryRepo) RemoveRecipeRefFromAll(ctx context.Context, recipeID int64) error {
	for i := range f.categories {
		f.categories[i].RecipeIDs = removeID(f.categories[i].RecipeIDs, recipeID)
	}
	return nil
}

func containsID(ids []int64, id int64) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}

func removeID(ids []int64, id int64) []int64 {
	out := ids[:0]
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}
