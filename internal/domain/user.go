package domain

import "time"

// Role represents a user's global role.
type Role string

// Roles.
const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// IsValid checks if the role is valid.
func (r Role) IsValid() bool {
	return r == RoleMember || r == RoleAdmin
}

var roleRank = map[Role]int{
	RoleMember: 1,
	RoleAdmin:  2,
}

// HasPermission reports whether the role meets the minimum required
// role. Unknown roles rank below every valid one.
func (r Role) HasPermission(min Role) bool {
	return roleRank[r] >= roleRank[min]
}

// User represents a registered dashboard user. PasswordHash is never
// serialized.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
