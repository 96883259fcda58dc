package catalog

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/statusdeck/statusdeck/internal/domain"
)

// Repository defines the interface for service catalog storage.
type Repository interface {
	CreateService(ctx context.Context, service *domain.Service) error
	GetServiceByID(ctx context.Context, id string) (*domain.Service, error)
	GetServiceBySlug(ctx context.Context, slug string) (*domain.Service, error)
	ListServices(ctx context.Context, filter ServiceFilter) ([]domain.Service, error)
	UpdateService(ctx context.Context, service *domain.Service) error
	DeleteService(ctx context.Context, id string) error

	// ValidateServicesExist returns the subset of ids with no matching service.
	ValidateServicesExist(ctx context.Context, ids []string) ([]string, error)

	// UpdateServiceStatusTx overwrites a service's stored status inside the
	// caller's transaction. A missing service id is not an error: incidents
	// may reference services that were deleted since.
	UpdateServiceStatusTx(ctx context.Context, tx pgx.Tx, serviceID string, status domain.ServiceStatus) error

	// TeamExists reports whether the team id refers to a known team.
	TeamExists(ctx context.Context, teamID string) (bool, error)
}

// ServiceFilter represents filter criteria for listing services.
type ServiceFilter struct {
	TeamID *string
	Status *domain.ServiceStatus
}
