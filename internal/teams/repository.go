// Package teams provides business logic and HTTP handlers for teams and
// their membership.
package teams

import (
	"context"

	"github.com/statusdeck/statusdeck/internal/domain"
)

// Repository defines the interface for team storage.
type Repository interface {
	// CreateTeam creates a team and enrolls the creator as an admin
	// member in the same transaction.
	CreateTeam(ctx context.Context, team *domain.Team, creatorID string) error

	GetTeam(ctx context.Context, id string) (*domain.Team, error)
	ListTeams(ctx context.Context) ([]domain.Team, error)
	UpdateTeam(ctx context.Context, team *domain.Team) error
	DeleteTeam(ctx context.Context, id string) error

	// AddMember enrolls a user. Adding an existing member is a no-op.
	AddMember(ctx context.Context, teamID, userID string, role domain.TeamRole) error
	// RemoveMember returns ErrNotMember when the user isn't enrolled.
	RemoveMember(ctx context.Context, teamID, userID string) error
}
