package types

// Role is the closed set of authorization levels a user can hold.
type Role string

const (
	// RoleAdmin grants full administrative access.
	RoleAdmin Role = "admin"

	// RoleUser is a plain authenticated user.
	RoleUser Role = "user"

	// RoleRegistered is the default role assigned on signup.
	RoleRegistered Role = "registered user"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleUser, RoleRegistered:
		return true
	}
	return false
}

// CanMutateRecipes reports whether a caller with role r may
// create, update, or delete recipes.
func CanMutateRecipes(r Role) bool {
	return r.Valid()
}
