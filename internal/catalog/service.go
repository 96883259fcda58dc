// Package catalog provides business logic and HTTP handlers for the service catalog.
package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/statusdeck/statusdeck/internal/broadcast"
	"github.com/statusdeck/statusdeck/internal/domain"
	"github.com/statusdeck/statusdeck/internal/pkg/slug"
)

// Service implements catalog business logic.
type Service struct {
	repo      Repository
	publisher broadcast.Publisher
}

// NewService creates a new catalog service. A nil publisher disables
// change notifications.
func NewService(repo Repository, publisher broadcast.Publisher) *Service {
	if publisher == nil {
		publisher = broadcast.NopPublisher{}
	}
	return &Service{repo: repo, publisher: publisher}
}

// CreateServiceInput holds data for creating a service.
type CreateServiceInput struct {
	Name        string
	Description string
	Status      domain.ServiceStatus
	TeamID      *string
}

// UpdateServiceInput holds data for updating a service.
type UpdateServiceInput struct {
	Name        string
	Description string
	Status      domain.ServiceStatus
	TeamID      *string
}

// CreateService creates a new service. The slug is derived from the name.
func (s *Service) CreateService(ctx context.Context, input CreateServiceInput) (*domain.Service, error) {
	status := input.Status
	if status == "" {
		status = domain.ServiceStatusOperational
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("invalid service status: %s", status)
	}

	if input.TeamID != nil {
		exists, err := s.repo.TeamExists(ctx, *input.TeamID)
		if err != nil {
			return nil, fmt.Errorf("check team: %w", err)
		}
		if !exists {
			return nil, ErrTeamNotFound
		}
	}

	service := &domain.Service{
		Name:        input.Name,
		Slug:        slug.Make(input.Name),
		Description: input.Description,
		Status:      status,
		TeamID:      input.TeamID,
	}
	if err := s.repo.CreateService(ctx, service); err != nil {
		return nil, err
	}

	s.publisher.Publish(broadcast.Event{
		Kind:   broadcast.KindService,
		Action: broadcast.ActionCreated,
		ID:     service.ID,
	})
	return service, nil
}

// GetService retrieves a service by ID.
func (s *Service) GetService(ctx context.Context, id string) (*domain.Service, error) {
	return s.repo.GetServiceByID(ctx, id)
}

// GetServiceBySlug retrieves a service by slug.
func (s *Service) GetServiceBySlug(ctx context.Context, slugStr string) (*domain.Service, error) {
	return s.repo.GetServiceBySlug(ctx, slugStr)
}

// ListServices retrieves services with optional filters.
func (s *Service) ListServices(ctx context.Context, filter ServiceFilter) ([]domain.Service, error) {
	return s.repo.ListServices(ctx, filter)
}

// UpdateService updates a service. Status set here is a manual override;
// the next incident mutation touching the service recomputes it.
func (s *Service) UpdateService(ctx context.Context, id string, input UpdateServiceInput) (*domain.Service, error) {
	if !input.Status.IsValid() {
		return nil, fmt.Errorf("invalid service status: %s", input.Status)
	}

	service, err := s.repo.GetServiceByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.TeamID != nil {
		exists, err := s.repo.TeamExists(ctx, *input.TeamID)
		if err != nil {
			return nil, fmt.Errorf("check team: %w", err)
		}
		if !exists {
			return nil, ErrTeamNotFound
		}
	}

	service.Name = input.Name
	service.Slug = slug.Make(input.Name)
	service.Description = input.Description
	service.Status = input.Status
	service.TeamID = input.TeamID

	if err := s.repo.UpdateService(ctx, service); err != nil {
		return nil, err
	}

	s.publisher.Publish(broadcast.Event{
		Kind:   broadcast.KindService,
		Action: broadcast.ActionUpdated,
		ID:     service.ID,
	})
	return service, nil
}

// DeleteService removes a service. Incidents referencing it keep their
// dangling references; readers tolerate the missing service.
func (s *Service) DeleteService(ctx context.Context, id string) error {
	if err := s.repo.DeleteService(ctx, id); err != nil {
		return err
	}

	s.publisher.Publish(broadcast.Event{
		Kind:   broadcast.KindService,
		Action: broadcast.ActionDeleted,
		ID:     id,
	})
	return nil
}

// ValidateServicesExist returns the subset of ids with no matching service.
func (s *Service) ValidateServicesExist(ctx context.Context, ids []string) ([]string, error) {
	return s.repo.ValidateServicesExist(ctx, ids)
}

// UpdateServiceStatusTx overwrites a service's stored status inside the
// caller's transaction. Used by incident-driven recomputation.
func (s *Service) UpdateServiceStatusTx(ctx context.Context, tx pgx.Tx, serviceID string, status domain.ServiceStatus) error {
	return s.repo.UpdateServiceStatusTx(ctx, tx, serviceID, status)
}
