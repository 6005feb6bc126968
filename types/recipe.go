package types

import "time"

// Difficulty levels accepted for a recipe.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// ValidDifficulty reports whether value is one of the accepted
// difficulty levels.
func ValidDifficulty(value string) bool {
	switch value {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Recipe represents a recipe shared on the platform.
//
// A recipe references its categories by id and every referenced
// category references the recipe back; the two sides are kept
// consistent by the service layer, not by the database.
type Recipe struct {
	// ID is the unique identifier of the recipe.
	ID int64 `json:"id" db:"id"`

	// Name is the human-readable name of the recipe.
	Name string `json:"name" db:"name"`

	// PreparationTime is the time needed to prepare the recipe,
	// expressed in minutes. Always positive.
	PreparationTime int `json:"preparation_time" db:"preparation_time"`

	// Difficulty is one of "easy", "medium", or "hard".
	Difficulty string `json:"difficulty" db:"difficulty"`

	// IsPrivate hides the recipe from everyone but its owner.
	IsPrivate bool `json:"is_private" db:"is_private"`

	// ImageKey is the object-storage key of the recipe image,
	// empty when no image was uploaded.
	ImageKey string `json:"image_key,omitempty" db:"image_key"`

	// Owner is a denormalized snapshot of the creating user. Renaming
	// a user does not update the snapshot on existing recipes.
	Owner Owner `json:"owner" db:"owner"`

	// CategoryIDs references the categories this recipe belongs to.
	CategoryIDs []int64 `json:"category_ids" db:"category_ids"`

	// Categories carries the resolved category records when the
	// caller asked for them; nil otherwise.
	Categories []Category `json:"categories,omitempty" db:"-"`

	// CreatedAt is the timestamp at which the recipe was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the recipe.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Owner is the embedded owner snapshot stored on each recipe.
type Owner struct {
	ID   int64  `json:"id" db:"owner_id"`
	Name string `json:"name" db:"owner_name"`
}
