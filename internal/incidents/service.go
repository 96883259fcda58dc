package incidents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/statusdeck/statusdeck/internal/broadcast"
	"github.com/statusdeck/statusdeck/internal/domain"
)

// CatalogUpdater is the catalog surface the incident lifecycle needs:
// existence checks before a transaction and status writes inside one.
type CatalogUpdater interface {
	ValidateServicesExist(ctx context.Context, ids []string) ([]string, error)
	UpdateServiceStatusTx(ctx context.Context, tx pgx.Tx, serviceID string, status domain.ServiceStatus) error
}

// Service implements incident business logic.
type Service struct {
	repo      Repository
	catalog   CatalogUpdater
	publisher broadcast.Publisher
}

// NewService creates a new incident service. A nil publisher disables
// change notifications.
func NewService(repo Repository, catalog CatalogUpdater, publisher broadcast.Publisher) *Service {
	if publisher == nil {
		publisher = broadcast.NopPublisher{}
	}
	return &Service{
		repo:      repo,
		catalog:   catalog,
		publisher: publisher,
	}
}

// CreateIncidentInput holds data for creating an incident.
type CreateIncidentInput struct {
	Title       string
	Description string
	Status      domain.IncidentStatus
	Impact      domain.Impact
	ServiceIDs  []string
	StartedAt   *time.Time
}

// CreateIncident creates an incident, seeds its update log and
// recomputes the status of every affected service. All writes happen in
// one transaction so readers never observe a half-created incident.
func (s *Service) CreateIncident(ctx context.Context, input CreateIncidentInput, createdBy string) (*domain.Incident, error) {
	status := input.Status
	if status == "" {
		status = domain.IncidentStatusInvestigating
	}
	if !status.IsValid() || status == domain.IncidentStatusResolved {
		return nil, ErrInvalidStatus
	}
	impact := input.Impact
	if impact == "" {
		impact = domain.ImpactNone
	}
	if !impact.IsValid() {
		return nil, ErrInvalidImpact
	}
	if len(input.ServiceIDs) == 0 {
		return nil, ErrNoAffectedServices
	}

	missing, err := s.catalog.ValidateServicesExist(ctx, input.ServiceIDs)
	if err != nil {
		return nil, fmt.Errorf("validate services: %w", err)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrAffectedServiceNotFound, missing[0])
	}

	startedAt := time.Now()
	if input.StartedAt != nil {
		startedAt = *input.StartedAt
	}

	incident := &domain.Incident{
		Title:       input.Title,
		Description: input.Description,
		Status:      status,
		Impact:      impact,
		ServiceIDs:  input.ServiceIDs,
		StartedAt:   startedAt,
		CreatedBy:   createdBy,
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	if err := s.repo.CreateIncidentTx(ctx, tx, incident); err != nil {
		return nil, fmt.Errorf("create incident: %w", err)
	}

	if err := s.repo.AssociateServicesTx(ctx, tx, incident.ID, input.ServiceIDs); err != nil {
		return nil, fmt.Errorf("associate services: %w", err)
	}

	seed := &domain.IncidentUpdate{
		IncidentID: incident.ID,
		Message:    domain.InitialUpdateMessage,
		Status:     domain.UpdateStatusUpdate,
		CreatedBy:  createdBy,
	}
	if err := s.repo.AppendUpdateTx(ctx, tx, seed); err != nil {
		return nil, fmt.Errorf("seed update log: %w", err)
	}

	if err := s.recomputeServiceStatusesTx(ctx, tx, input.ServiceIDs); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	s.publisher.Publish(broadcast.Event{
		Kind:   broadcast.KindIncident,
		Action: broadcast.ActionCreated,
		ID:     incident.ID,
	})
	return incident, nil
}

// GetIncident retrieves an incident by ID.
func (s *Service) GetIncident(ctx context.Context, id string) (*domain.Incident, error) {
	return s.repo.GetIncident(ctx, id)
}

// ListIncidents retrieves incidents with optional filters, most recent first.
func (s *Service) ListIncidents(ctx context.Context, filter IncidentFilter) ([]domain.Incident, error) {
	return s.repo.ListIncidents(ctx, filter)
}

// ListPublicIncidents retrieves unresolved incidents for the public
// status page, most recent first.
func (s *Service) ListPublicIncidents(ctx context.Context) ([]domain.Incident, error) {
	return s.repo.ListIncidents(ctx, IncidentFilter{PublicOnly: true})
}

// AppendUpdate appends a message to an incident's update log. The
// incident's status and impact are untouched regardless of the entry's
// own status marker; the append is a single insert so concurrent
// callers each land their own entry.
func (s *Service) AppendUpdate(ctx context.Context, incidentID, message string, status domain.UpdateStatus, createdBy string) (*domain.IncidentUpdate, error) {
	if status == "" {
		status = domain.UpdateStatusUpdate
	}
	if !status.IsValid() {
		return nil, ErrInvalidStatus
	}

	if _, err := s.repo.GetIncident(ctx, incidentID); err != nil {
		return nil, err
	}

	update := &domain.IncidentUpdate{
		IncidentID: incidentID,
		Message:    message,
		Status:     status,
		CreatedBy:  createdBy,
	}
	if err := s.repo.AppendUpdate(ctx, update); err != nil {
		return nil, err
	}

	s.publisher.Publish(broadcast.Event{
		Kind:   broadcast.KindIncident,
		Action: broadcast.ActionUpdated,
		ID:     incidentID,
	})
	return update, nil
}

// ListUpdates retrieves an incident's update log, oldest first.
func (s *Service) ListUpdates(ctx context.Context, incidentID string) ([]domain.IncidentUpdate, error) {
	if _, err := s.repo.GetIncident(ctx, incidentID); err != nil {
		return nil, err
	}
	return s.repo.ListUpdates(ctx, incidentID)
}

// UpdateStatus moves an incident to another active status and records
// the change in the update log. Resolving goes through Resolve.
func (s *Service) UpdateStatus(ctx context.Context, incidentID string, status domain.IncidentStatus, message, createdBy string) (*domain.Incident, error) {
	if !status.IsValid() {
		return nil, ErrInvalidStatus
	}
	if status == domain.IncidentStatusResolved {
		return nil, ErrResolveViaStatus
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	incident, err := s.repo.SetIncidentStatusTx(ctx, tx, incidentID, status)
	if err != nil {
		return nil, err
	}

	if message == "" {
		message = fmt.Sprintf("Status changed to %s", status)
	}
	update := &domain.IncidentUpdate{
		IncidentID: incidentID,
		Message:    message,
		Status:     domain.UpdateStatusUpdate,
		CreatedBy:  createdBy,
	}
	if err := s.repo.AppendUpdateTx(ctx, tx, update); err != nil {
		return nil, fmt.Errorf("append update: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	s.publisher.Publish(broadcast.Event{
		Kind:   broadcast.KindIncident,
		Action: broadcast.ActionUpdated,
		ID:     incidentID,
	})
	return incident, nil
}

// Resolve marks an incident resolved, optionally records a resolving
// update and recomputes the status of every service it affected. A
// service still covered by another unresolved incident keeps that
// incident's severity.
func (s *Service) Resolve(ctx context.Context, incidentID, message, resolvedBy string) (*domain.Incident, error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	incident, err := s.repo.ResolveIncidentTx(ctx, tx, incidentID, time.Now())
	if err != nil {
		return nil, err
	}

	// The resolving entry is recorded only when the caller says something.
	if message != "" {
		update := &domain.IncidentUpdate{
			IncidentID: incidentID,
			Message:    message,
			Status:     domain.UpdateStatusResolved,
			CreatedBy:  resolvedBy,
		}
		if err := s.repo.AppendUpdateTx(ctx, tx, update); err != nil {
			return nil, fmt.Errorf("append resolving update: %w", err)
		}
	}

	serviceIDs, err := s.repo.GetIncidentServiceIDsTx(ctx, tx, incidentID)
	if err != nil {
		return nil, fmt.Errorf("get incident services: %w", err)
	}
	if err := s.recomputeServiceStatusesTx(ctx, tx, serviceIDs); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	s.publisher.Publish(broadcast.Event{
		Kind:   broadcast.KindIncident,
		Action: broadcast.ActionResolved,
		ID:     incidentID,
	})
	return incident, nil
}

// recomputeServiceStatusesTx rederives each service's status from the
// impacts of all unresolved incidents as seen inside the transaction.
// The result never depends on mutation order, only on the surviving set.
func (s *Service) recomputeServiceStatusesTx(ctx context.Context, tx pgx.Tx, serviceIDs []string) error {
	for _, serviceID := range serviceIDs {
		impacts, err := s.repo.UnresolvedImpactsForServiceTx(ctx, tx, serviceID)
		if err != nil {
			return fmt.Errorf("impacts for service %s: %w", serviceID, err)
		}
		status := domain.StatusForImpacts(impacts)
		if err := s.catalog.UpdateServiceStatusTx(ctx, tx, serviceID, status); err != nil {
			return fmt.Errorf("update service %s status: %w", serviceID, err)
		}
	}
	return nil
}

func rollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		slog.Error("failed to rollback transaction", "error", err)
	}
}
