package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/recipebook/apiserver/types"
	"github.com/stretchr/testify/require"
)

func TestListCategories(t *testing.T) {
	env := newRecipeTestEnv()
	env.categories.add("Soups")
	env.categories.add("Desserts")

	rec := env.get(t, "/categories/", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var categories []types.Category
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &categories))
	require.Len(t, categories, 2)
	require.Equal(t, "Soups", categories[0].Description)
	require.Nil(t, categories[0].Recipes)
}

func TestListCategoriesWithRecipesFiltersVisibility(t *testing.T) {
	env := newRecipeTestEnv()
	alice := env.addUser(t, "alice")
	bob := env.addUser(t, "bob")

	soups := env.categories.add("Soups")
	public := env.addRecipe(alice, "Tomato Soup", false, soups.ID)
	private := env.addRecipe(alice, "Secret Stew", true, soups.ID)
	_ = env.categories.AddRecipeRef(context.Background(), []int64{soups.ID}, public.ID)
	_ = env.categories.AddRecipeRef(context.Background(), []int64{soups.ID}, private.ID)

	rec := env.get(t, "/categories/withRecipes", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var categories []types.Category
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &categories))
	require.Len(t, categories, 1)
	require.Len(t, categories[0].Recipes, 1)
	require.Equal(t, "Tomato Soup", categories[0].Recipes[0].Name)

	rec = env.get(t, "/categories/withRecipes", tokenFor(t, bob))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &categories))
	require.Len(t, categories[0].Recipes, 1)

	rec = env.get(t, "/categories/withRecipes", tokenFor(t, alice))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &categories))
	require.Len(t, categories[0].Recipes, 2)
}

func TestGetCategory(t *testing.T) {
	env := newRecipeTestEnv()
	alice := env.addUser(t, "alice")

	soups := env.categories.add("Soups")
	recipe := env.addRecipe(alice, "Tomato Soup", false, soups.ID)
	_ = env.categories.AddRecipeRef(context.Background(), []int64{soups.ID}, recipe.ID)

	rec := env.get(t, fmt.Sprintf("/categories/%d", soups.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var category types.Category
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &category))
	require.Equal(t, "Soups", category.Description)
	require.Len(t, category.Recipes, 1)

	rec = env.get(t, "/categories/999", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.get(t, "/categories/nope", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
