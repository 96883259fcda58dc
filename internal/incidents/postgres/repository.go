// Package postgres provides the PostgreSQL implementation of the incidents repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/statusdeck/statusdeck/internal/domain"
	"github.com/statusdeck/statusdeck/internal/incidents"
)

// Repository implements incidents.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// BeginTx starts a new transaction.
func (r *Repository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.db.Begin(ctx)
}

// CreateIncidentTx creates a new incident within a transaction.
func (r *Repository) CreateIncidentTx(ctx context.Context, tx pgx.Tx, incident *domain.Incident) error {
	query := `
		INSERT INTO incidents (title, description, status, impact, started_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, is_resolved, created_at, updated_at
	`
	err := tx.QueryRow(ctx, query,
		incident.Title,
		incident.Description,
		incident.Status,
		incident.Impact,
		incident.StartedAt,
		incident.CreatedBy,
	).Scan(&incident.ID, &incident.Resolved, &incident.CreatedAt, &incident.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create incident: %w", err)
	}
	return nil
}

// AssociateServicesTx links services to an incident within a transaction.
// The link carries no foreign key to services: a service deleted later
// leaves a dangling reference that readers tolerate.
func (r *Repository) AssociateServicesTx(ctx context.Context, tx pgx.Tx, incidentID string, serviceIDs []string) error {
	query := `
		INSERT INTO incident_services (incident_id, service_id)
		VALUES ($1, $2)
		ON CONFLICT (incident_id, service_id) DO NOTHING
	`
	for _, serviceID := range serviceIDs {
		if _, err := tx.Exec(ctx, query, incidentID, serviceID); err != nil {
			return fmt.Errorf("associate service %s: %w", serviceID, err)
		}
	}
	return nil
}

const incidentColumns = `
	i.id, i.title, i.description, i.status, i.impact,
	i.started_at, i.resolved_at, i.is_resolved,
	i.created_by, i.created_at, i.updated_at,
	COALESCE(array_agg(isv.service_id) FILTER (WHERE isv.service_id IS NOT NULL), '{}')
`

const incidentFrom = `
	FROM incidents i
	LEFT JOIN incident_services isv ON isv.incident_id = i.id
`

func scanIncident(row pgx.Row) (*domain.Incident, error) {
	var incident domain.Incident
	err := row.Scan(
		&incident.ID,
		&incident.Title,
		&incident.Description,
		&incident.Status,
		&incident.Impact,
		&incident.StartedAt,
		&incident.ResolvedAt,
		&incident.Resolved,
		&incident.CreatedBy,
		&incident.CreatedAt,
		&incident.UpdatedAt,
		&incident.ServiceIDs,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, incidents.ErrIncidentNotFound
		}
		return nil, fmt.Errorf("scan incident: %w", err)
	}
	return &incident, nil
}

// GetIncident retrieves an incident by ID with its service references.
func (r *Repository) GetIncident(ctx context.Context, id string) (*domain.Incident, error) {
	query := `SELECT ` + incidentColumns + incidentFrom + ` WHERE i.id = $1 GROUP BY i.id`
	return scanIncident(r.db.QueryRow(ctx, query, id))
}

// ListIncidents retrieves incidents with optional filters, newest first.
func (r *Repository) ListIncidents(ctx context.Context, filter incidents.IncidentFilter) ([]domain.Incident, error) {
	query := `SELECT ` + incidentColumns + incidentFrom + ` WHERE 1=1`
	args := []interface{}{}
	argNum := 1

	if filter.PublicOnly {
		query += ` AND i.status <> 'resolved'`
	}
	if filter.Status != nil {
		query += fmt.Sprintf(" AND i.status = $%d", argNum)
		args = append(args, *filter.Status)
		argNum++
	}
	if filter.ServiceID != nil {
		query += fmt.Sprintf(` AND i.id IN (SELECT incident_id FROM incident_services WHERE service_id = $%d)`, argNum)
		args = append(args, *filter.ServiceID)
	}

	query += ` GROUP BY i.id ORDER BY i.created_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Incident, 0)
	for rows.Next() {
		var incident domain.Incident
		err := rows.Scan(
			&incident.ID,
			&incident.Title,
			&incident.Description,
			&incident.Status,
			&incident.Impact,
			&incident.StartedAt,
			&incident.ResolvedAt,
			&incident.Resolved,
			&incident.CreatedBy,
			&incident.CreatedAt,
			&incident.UpdatedAt,
			&incident.ServiceIDs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		result = append(result, incident)
	}
	return result, rows.Err()
}

// ResolveIncidentTx marks an incident resolved. The update is
// conditional on the incident being unresolved, so of two concurrent
// resolves exactly one succeeds.
func (r *Repository) ResolveIncidentTx(ctx context.Context, tx pgx.Tx, id string, resolvedAt time.Time) (*domain.Incident, error) {
	query := `
		UPDATE incidents
		SET status = 'resolved', is_resolved = TRUE, resolved_at = $2, updated_at = NOW()
		WHERE id = $1 AND status <> 'resolved'
		RETURNING id, title, description, status, impact,
		          started_at, resolved_at, is_resolved,
		          created_by, created_at, updated_at
	`
	incident, err := r.scanIncidentRow(tx.QueryRow(ctx, query, id, resolvedAt))
	if err != nil {
		if errors.Is(err, incidents.ErrIncidentNotFound) {
			return nil, r.classifyMissingTx(ctx, tx, id)
		}
		return nil, err
	}

	incident.ServiceIDs, err = r.GetIncidentServiceIDsTx(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("get incident services: %w", err)
	}
	return incident, nil
}

// SetIncidentStatusTx changes the status of an unresolved incident.
func (r *Repository) SetIncidentStatusTx(ctx context.Context, tx pgx.Tx, id string, status domain.IncidentStatus) (*domain.Incident, error) {
	query := `
		UPDATE incidents
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status <> 'resolved'
		RETURNING id, title, description, status, impact,
		          started_at, resolved_at, is_resolved,
		          created_by, created_at, updated_at
	`
	incident, err := r.scanIncidentRow(tx.QueryRow(ctx, query, id, status))
	if err != nil {
		if errors.Is(err, incidents.ErrIncidentNotFound) {
			return nil, r.classifyMissingTx(ctx, tx, id)
		}
		return nil, err
	}

	incident.ServiceIDs, err = r.GetIncidentServiceIDsTx(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("get incident services: %w", err)
	}
	return incident, nil
}

// scanIncidentRow scans an incident row without the aggregated service ids.
func (r *Repository) scanIncidentRow(row pgx.Row) (*domain.Incident, error) {
	var incident domain.Incident
	err := row.Scan(
		&incident.ID,
		&incident.Title,
		&incident.Description,
		&incident.Status,
		&incident.Impact,
		&incident.StartedAt,
		&incident.ResolvedAt,
		&incident.Resolved,
		&incident.CreatedBy,
		&incident.CreatedAt,
		&incident.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, incidents.ErrIncidentNotFound
		}
		return nil, fmt.Errorf("scan incident: %w", err)
	}
	return &incident, nil
}

// classifyMissingTx distinguishes a missing incident from a resolved one
// after a conditional update matched no rows.
func (r *Repository) classifyMissingTx(ctx context.Context, tx pgx.Tx, id string) error {
	var exists bool
	err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM incidents WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check incident exists: %w", err)
	}
	if exists {
		return incidents.ErrAlreadyResolved
	}
	return incidents.ErrIncidentNotFound
}

const appendUpdateQuery = `
	INSERT INTO incident_updates (incident_id, message, status, created_by)
	VALUES ($1, $2, $3, $4)
	RETURNING id, created_at
`

// AppendUpdate inserts one update log entry outside a transaction.
func (r *Repository) AppendUpdate(ctx context.Context, update *domain.IncidentUpdate) error {
	err := r.db.QueryRow(ctx, appendUpdateQuery,
		update.IncidentID,
		update.Message,
		update.Status,
		update.CreatedBy,
	).Scan(&update.ID, &update.CreatedAt)

	if err != nil {
		return fmt.Errorf("append update: %w", err)
	}
	return nil
}

// AppendUpdateTx inserts one update log entry within a transaction.
func (r *Repository) AppendUpdateTx(ctx context.Context, tx pgx.Tx, update *domain.IncidentUpdate) error {
	err := tx.QueryRow(ctx, appendUpdateQuery,
		update.IncidentID,
		update.Message,
		update.Status,
		update.CreatedBy,
	).Scan(&update.ID, &update.CreatedAt)

	if err != nil {
		return fmt.Errorf("append update: %w", err)
	}
	return nil
}

// ListUpdates retrieves an incident's update log, oldest first.
func (r *Repository) ListUpdates(ctx context.Context, incidentID string) ([]domain.IncidentUpdate, error) {
	query := `
		SELECT id, incident_id, message, status, created_by, created_at
		FROM incident_updates
		WHERE incident_id = $1
		ORDER BY created_at, id
	`
	rows, err := r.db.Query(ctx, query, incidentID)
	if err != nil {
		return nil, fmt.Errorf("list updates: %w", err)
	}
	defer rows.Close()

	updates := make([]domain.IncidentUpdate, 0)
	for rows.Next() {
		var update domain.IncidentUpdate
		err := rows.Scan(
			&update.ID,
			&update.IncidentID,
			&update.Message,
			&update.Status,
			&update.CreatedBy,
			&update.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan update: %w", err)
		}
		updates = append(updates, update)
	}
	return updates, rows.Err()
}

// GetIncidentServiceIDsTx returns the service ids linked to an incident.
func (r *Repository) GetIncidentServiceIDsTx(ctx context.Context, tx pgx.Tx, incidentID string) ([]string, error) {
	rows, err := tx.Query(ctx, `SELECT service_id FROM incident_services WHERE incident_id = $1`, incidentID)
	if err != nil {
		return nil, fmt.Errorf("get incident services: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan service id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UnresolvedImpactsForServiceTx returns the impact of every unresolved
// incident referencing the service, read within the transaction.
func (r *Repository) UnresolvedImpactsForServiceTx(ctx context.Context, tx pgx.Tx, serviceID string) ([]domain.Impact, error) {
	query := `
		SELECT i.impact
		FROM incidents i
		JOIN incident_services isv ON isv.incident_id = i.id
		WHERE isv.service_id = $1 AND i.status <> 'resolved'
	`
	rows, err := tx.Query(ctx, query, serviceID)
	if err != nil {
		return nil, fmt.Errorf("unresolved impacts: %w", err)
	}
	defer rows.Close()

	impacts := make([]domain.Impact, 0)
	for rows.Next() {
		var impact domain.Impact
		if err := rows.Scan(&impact); err != nil {
			return nil, fmt.Errorf("scan impact: %w", err)
		}
		impacts = append(impacts, impact)
	}
	return impacts, rows.Err()
}
