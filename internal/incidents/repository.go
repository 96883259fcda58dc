// Package incidents provides business logic and HTTP handlers for the
// incident lifecycle: creation, the append-only update log, status
// progression and resolution.
package incidents

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/statusdeck/statusdeck/internal/domain"
)

// Repository defines the interface for incident storage.
type Repository interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)

	CreateIncidentTx(ctx context.Context, tx pgx.Tx, incident *domain.Incident) error
	AssociateServicesTx(ctx context.Context, tx pgx.Tx, incidentID string, serviceIDs []string) error

	GetIncident(ctx context.Context, id string) (*domain.Incident, error)
	ListIncidents(ctx context.Context, filter IncidentFilter) ([]domain.Incident, error)

	// ResolveIncidentTx marks an incident resolved. It returns
	// ErrAlreadyResolved when the incident is resolved already, applied
	// conditionally so concurrent resolves cannot both succeed.
	ResolveIncidentTx(ctx context.Context, tx pgx.Tx, id string, resolvedAt time.Time) (*domain.Incident, error)

	// SetIncidentStatusTx changes the status of an unresolved incident.
	SetIncidentStatusTx(ctx context.Context, tx pgx.Tx, id string, status domain.IncidentStatus) (*domain.Incident, error)

	// AppendUpdate inserts one update log entry. The insert is a single
	// statement so concurrent appends never overwrite each other.
	AppendUpdate(ctx context.Context, update *domain.IncidentUpdate) error
	AppendUpdateTx(ctx context.Context, tx pgx.Tx, update *domain.IncidentUpdate) error
	ListUpdates(ctx context.Context, incidentID string) ([]domain.IncidentUpdate, error)

	GetIncidentServiceIDsTx(ctx context.Context, tx pgx.Tx, incidentID string) ([]string, error)

	// UnresolvedImpactsForServiceTx returns the impact levels of every
	// unresolved incident affecting the service, read within the caller's
	// transaction so in-flight changes are visible.
	UnresolvedImpactsForServiceTx(ctx context.Context, tx pgx.Tx, serviceID string) ([]domain.Impact, error)
}

// IncidentFilter represents filter criteria for listing incidents.
type IncidentFilter struct {
	// PublicOnly excludes resolved incidents.
	PublicOnly bool
	Status     *domain.IncidentStatus
	ServiceID  *string
}
