package types

// Category groups recipes under a named label. Identity is keyed on
// the description, which is unique and trimmed.
type Category struct {
	ID          int64  `json:"id" db:"id"`
	Description string `json:"description" db:"description"`

	// RecipeIDs references every recipe that belongs to this
	// category. Order is irrelevant; the slice holds no duplicates.
	RecipeIDs []int64 `json:"recipe_ids" db:"recipe_ids"`

	// Recipes carries the resolved recipe records when the caller
	// asked for them; nil otherwise.
	Recipes []Recipe `json:"recipes,omitempty" db:"-"`
}
