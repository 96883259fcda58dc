package domain

import "time"

// TeamRole represents a user's role inside a team.
type TeamRole string

// Team roles. The team creator is always an admin.
const (
	TeamRoleMember TeamRole = "member"
	TeamRoleAdmin  TeamRole = "admin"
)

// IsValid checks if the team role is valid.
func (r TeamRole) IsValid() bool {
	return r == TeamRoleMember || r == TeamRoleAdmin
}

// TeamMember associates a user with a team. Unique per user within a team.
type TeamMember struct {
	UserID   string   `json:"user_id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Role     TeamRole `json:"role"`
}

// Team represents a group of users owning services.
type Team struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Members    []TeamMember `json:"members"`
	ServiceIDs []string     `json:"service_ids"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}
