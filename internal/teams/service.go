package teams

import (
	"context"
	"errors"
	"fmt"

	"github.com/statusdeck/statusdeck/internal/domain"
	"github.com/statusdeck/statusdeck/internal/identity"
)

// UserDirectory is the identity surface teams need: resolving a user id
// before enrolling it.
type UserDirectory interface {
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

// Service implements team business logic.
type Service struct {
	repo  Repository
	users UserDirectory
}

// NewService creates a new team service.
func NewService(repo Repository, users UserDirectory) *Service {
	return &Service{repo: repo, users: users}
}

// CreateTeam creates a team with the creator as its first admin member.
func (s *Service) CreateTeam(ctx context.Context, name, creatorID string) (*domain.Team, error) {
	team := &domain.Team{Name: name}
	if err := s.repo.CreateTeam(ctx, team, creatorID); err != nil {
		return nil, err
	}
	return s.repo.GetTeam(ctx, team.ID)
}

// GetTeam retrieves a team with its members and owned services.
func (s *Service) GetTeam(ctx context.Context, id string) (*domain.Team, error) {
	return s.repo.GetTeam(ctx, id)
}

// ListTeams retrieves all teams.
func (s *Service) ListTeams(ctx context.Context) ([]domain.Team, error) {
	return s.repo.ListTeams(ctx)
}

// UpdateTeam renames a team.
func (s *Service) UpdateTeam(ctx context.Context, id, name string) (*domain.Team, error) {
	team, err := s.repo.GetTeam(ctx, id)
	if err != nil {
		return nil, err
	}

	team.Name = name
	if err := s.repo.UpdateTeam(ctx, team); err != nil {
		return nil, err
	}
	return s.repo.GetTeam(ctx, id)
}

// DeleteTeam removes a team. Owned services are detached, not deleted.
func (s *Service) DeleteTeam(ctx context.Context, id string) error {
	return s.repo.DeleteTeam(ctx, id)
}

// AddMember enrolls a user in a team. Enrolling an existing member is a
// no-op rather than an error.
func (s *Service) AddMember(ctx context.Context, teamID, userID string, role domain.TeamRole) (*domain.Team, error) {
	if role == "" {
		role = domain.TeamRoleMember
	}
	if !role.IsValid() {
		return nil, fmt.Errorf("invalid team role: %s", role)
	}

	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("resolve user: %w", err)
	}

	if _, err := s.repo.GetTeam(ctx, teamID); err != nil {
		return nil, err
	}

	if err := s.repo.AddMember(ctx, teamID, userID, role); err != nil {
		return nil, err
	}
	return s.repo.GetTeam(ctx, teamID)
}

// RemoveMember removes a user from a team.
func (s *Service) RemoveMember(ctx context.Context, teamID, userID string) (*domain.Team, error) {
	if _, err := s.repo.GetTeam(ctx, teamID); err != nil {
		return nil, err
	}

	if err := s.repo.RemoveMember(ctx, teamID, userID); err != nil {
		return nil, err
	}
	return s.repo.GetTeam(ctx, teamID)
}
