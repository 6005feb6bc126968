package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/recipebook/apiserver/internal/store"
	"github.com/recipebook/apiserver/types"
)

const (
	defaultPage    = 1
	defaultPerPage = 10
	maxPerPage     = 100
)

// RecipeRepository defines persistence operations for recipes.
type RecipeRepository interface {
	Find(ctx context.Context, filter store.RecipeFilter, offset, limit int) ([]types.Recipe, error)
	Get(ctx context.Context, id int64) (types.Recipe, error)
	Create(ctx context.Context, recipe types.Recipe) (types.Recipe, error)
	Update(ctx context.Context, recipe types.Recipe) (types.Recipe, error)
	SetCategoryIDs(ctx context.Context, id int64, categoryIDs []int64) error
	Delete(ctx context.Context, id int64) error
}

// CategoryRepository defines persistence operations for categories.
type CategoryRepository interface {
	List(ctx context.Context) ([]types.Category, error)
	GetByID(ctx context.Context, id int64) (types.Category, error)
	GetByIDs(ctx context.Context, ids []int64) ([]types.Category, error)
	GetByDescriptions(ctx context.Context, names []string) ([]types.Category, error)
	CreateMany(ctx context.Context, descriptions []string, recipeIDs []int64) ([]types.Category, error)
	AddRecipeRef(ctx context.Context, categoryIDs []int64, recipeID int64) error
	RemoveRecipeRef(ctx context.Context, categoryIDs []int64, recipeID int64) error
	RemoveRecipeRefFromAll(ctx context.Context, recipeID int64) error
}

// EventPublisher sends recipe lifecycle events to a broker.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// RecipeService encapsulates recipe use-cases: access-controlled
// queries and the bidirectional recipe/category reconciliation.
//
// Reconciliation is multi-step and not wrapped in a transaction; a
// failure mid-way can leave the two reference sets temporarily out of
// sync. Every step is an idempotent set operation so a retried
// request converges instead of duplicating references.
type RecipeService struct {
	repo          RecipeRepository
	categories    CategoryRepository
	events        EventPublisher
	eventsChannel string
}

func NewRecipeService(repo RecipeRepository, categories CategoryRepository) *RecipeService {
	return &RecipeService{repo: repo, categories: categories}
}

// WithEvents enables publishing of recipe lifecycle events.
func (s *RecipeService) WithEvents(events EventPublisher, channel string) *RecipeService {
	s.events = events
	s.eventsChannel = channel
	return s
}

// NormalizePagination coerces page and perPage to positive values.
func NormalizePagination(page, perPage int) (int, int, int) {
	if page < 1 {
		page = defaultPage
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage, (page - 1) * perPage
}

// List returns recipes visible to the caller, newest page last.
// callerID is 0 for anonymous callers.
func (s *RecipeService) List(ctx context.Context, callerID int64, search string, page, perPage int) ([]types.Recipe, error) {
	_, perPage, offset := NormalizePagination(page, perPage)

	filter := store.RecipeFilter{Search: strings.TrimSpace(search), CallerID: callerID}
	recipes, err := s.repo.Find(ctx, filter, offset, perPage)
	if err != nil {
		return nil, err
	}
	return s.populateCategories(ctx, recipes)
}

// ListByUser returns the given owner's recipes visible to the caller.
func (s *RecipeService) ListByUser(ctx context.Context, callerID, ownerID int64, page, perPage int) ([]types.Recipe, error) {
	_, perPage, offset := NormalizePagination(page, perPage)

	filter := store.RecipeFilter{CallerID: callerID, OwnerID: ownerID}
	recipes, err := s.repo.Find(ctx, filter, offset, perPage)
	if err != nil {
		return nil, err
	}
	return s.populateCategories(ctx, recipes)
}

// Get returns a single recipe. Private recipes belonging to someone
// else are indistinguishable from absent ones.
func (s *RecipeService) Get(ctx context.Context, callerID, id int64) (types.Recipe, error) {
	recipe, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Recipe{}, err
	}
	if recipe.IsPrivate && recipe.Owner.ID != callerID {
		return types.Recipe{}, store.ErrNotFound
	}

	populated, err := s.populateCategories(ctx, []types.Recipe{recipe})
	if err != nil {
		return types.Recipe{}, err
	}
	return populated[0], nil
}

// Create persists a recipe and reconciles category membership from
// the requested category names:
//
//  1. add the new recipe id to every existing category matching a
//     requested name;
//  2. create a category for every requested name with no match,
//     seeded with the new recipe id;
//  3. re-resolve the names to the now-complete id set and write it
//     onto the recipe.
//
// The two-phase resolve-then-write is required because categories are
// keyed by name while the recipe stores ids; ids only exist for all
// requested names once step 2 has run.
func (s *RecipeService) Create(ctx context.Context, recipe types.Recipe, categoryNames []string) (types.Recipe, error) {
	recipe.CategoryIDs = nil
	created, err := s.repo.Create(ctx, recipe)
	if err != nil {
		return types.Recipe{}, err
	}

	names := dedupeNames(categoryNames)
	if len(names) > 0 {
		existing, err := s.categories.GetByDescriptions(ctx, names)
		if err != nil {
			return types.Recipe{}, err
		}
		if err := s.categories.AddRecipeRef(ctx, categoryIDSet(existing), created.ID); err != nil {
			return types.Recipe{}, err
		}

		missing := missingNames(names, existing)
		if len(missing) > 0 {
			if _, err := s.categories.CreateMany(ctx, missing, []int64{created.ID}); err != nil {
				return types.Recipe{}, err
			}
		}

		resolved, err := s.categories.GetByDescriptions(ctx, names)
		if err != nil {
			return types.Recipe{}, err
		}
		created.CategoryIDs = categoryIDSet(resolved)
		if err := s.repo.SetCategoryIDs(ctx, created.ID, created.CategoryIDs); err != nil {
			return types.Recipe{}, err
		}
		created.Categories = resolved
	}

	s.publishEvent(ctx, "recipe.created", created.ID)
	return created, nil
}

// Update rewrites a recipe and reconciles category membership from
// the new category id set: ids dropped from the previous set get the
// recipe pulled, ids in the new set get it added (idempotently).
// Unlike Create, no categories are created here; unknown ids are
// discarded. Update takes ids where Create takes names.
func (s *RecipeService) Update(ctx context.Context, id int64, recipe types.Recipe, categoryIDs []int64) (types.Recipe, error) {
	prev, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Recipe{}, err
	}

	resolved, err := s.categories.GetByIDs(ctx, dedupeIDs(categoryIDs))
	if err != nil {
		return types.Recipe{}, err
	}
	newSet := categoryIDSet(resolved)

	recipe.ID = id
	recipe.Owner = prev.Owner
	recipe.CreatedAt = prev.CreatedAt
	recipe.CategoryIDs = newSet
	if recipe.ImageKey == "" {
		recipe.ImageKey = prev.ImageKey
	}

	updated, err := s.repo.Update(ctx, recipe)
	if err != nil {
		return types.Recipe{}, err
	}

	removed := diffIDs(prev.CategoryIDs, newSet)
	if err := s.categories.RemoveRecipeRef(ctx, removed, id); err != nil {
		return types.Recipe{}, err
	}
	if err := s.categories.AddRecipeRef(ctx, newSet, id); err != nil {
		return types.Recipe{}, err
	}
	updated.Categories = resolved

	s.publishEvent(ctx, "recipe.updated", id)
	return updated, nil
}

// Delete removes a recipe and pulls its id from every category that
// references it, whether or not the recipe's own category list agreed
// with those references.
func (s *RecipeService) Delete(ctx context.Context, id int64) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	if err := s.categories.RemoveRecipeRefFromAll(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.publishEvent(ctx, "recipe.deleted", id)
	return nil
}

func (s *RecipeService) populateCategories(ctx context.Context, recipes []types.Recipe) ([]types.Recipe, error) {
	idSet := make(map[int64]struct{})
	for _, recipe := range recipes {
		for _, id := range recipe.CategoryIDs {
			idSet[id] = struct{}{}
		}
	}
	if len(idSet) == 0 {
		return recipes, nil
	}

	ids := make([]int64, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	categories, err := s.categories.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]types.Category, len(categories))
	for _, category := range categories {
		byID[category.ID] = category
	}
	for i, recipe := range recipes {
		resolved := make([]types.Category, 0, len(recipe.CategoryIDs))
		for _, id := range recipe.CategoryIDs {
			if category, ok := byID[id]; ok {
				resolved = append(resolved, category)
			}
		}
		recipes[i].Categories = resolved
	}
	return recipes, nil
}

func (s *RecipeService) publishEvent(ctx context.Context, kind string, recipeID int64) {
	if s.events == nil {
		return
	}
	payload, err := json.Marshal(recipeEvent{
		Type:     kind,
		RecipeID: recipeID,
		At:       time.Now().UTC(),
	})
	if err != nil {
		return
	}
	// Fire-and-forget: event delivery never fails the request.
	_, _ = s.events.Publish(ctx, s.eventsChannel, payload, map[string]string{"type": kind})
}

type recipeEvent struct {
	Type     string    `json:"type"`
	RecipeID int64     `json:"recipe_id"`
	At       time.Time `json:"at"`
}

func dedupeNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func categoryIDSet(categories []types.Category) []int64 {
	ids := make([]int64, 0, len(categories))
	for _, category := range categories {
		ids = append(ids, category.ID)
	}
	return ids
}

func missingNames(requested []string, existing []types.Category) []string {
	have := make(map[string]struct{}, len(existing))
	for _, category := range existing {
		have[category.Description] = struct{}{}
	}
	missing := make([]string, 0)
	for _, name := range requested {
		if _, ok := have[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

func diffIDs(old, next []int64) []int64 {
	keep := make(map[int64]struct{}, len(next))
	for _, id := range next {
		keep[id] = struct{}{}
	}
	removed := make([]int64, 0)
	for _, id := range old {
		if _, ok := keep[id]; !ok {
			removed = append(removed, id)
		}
	}
	return removed
}
