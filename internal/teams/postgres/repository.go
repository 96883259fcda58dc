// Package postgres provides the PostgreSQL implementation of the teams repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/statusdeck/statusdeck/internal/domain"
	"github.com/statusdeck/statusdeck/internal/teams"
)

// Repository implements teams.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const uniqueViolation = "23505"

// CreateTeam creates a team and enrolls the creator as an admin member.
func (r *Repository) CreateTeam(ctx context.Context, team *domain.Team, creatorID string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}()

	query := `
		INSERT INTO teams (name)
		VALUES ($1)
		RETURNING id, created_at, updated_at
	`
	err = tx.QueryRow(ctx, query, team.Name).Scan(&team.ID, &team.CreatedAt, &team.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return teams.ErrTeamExists
		}
		return fmt.Errorf("create team: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO team_members (team_id, user_id, role) VALUES ($1, $2, $3)`,
		team.ID, creatorID, domain.TeamRoleAdmin,
	)
	if err != nil {
		return fmt.Errorf("enroll creator: %w", err)
	}

	return tx.Commit(ctx)
}

// GetTeam retrieves a team with its members and owned service ids.
func (r *Repository) GetTeam(ctx context.Context, id string) (*domain.Team, error) {
	var team domain.Team
	err := r.db.QueryRow(ctx,
		`SELECT id, name, created_at, updated_at FROM teams WHERE id = $1`, id,
	).Scan(&team.ID, &team.Name, &team.CreatedAt, &team.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, teams.ErrTeamNotFound
		}
		return nil, fmt.Errorf("get team: %w", err)
	}

	team.Members, err = r.listMembers(ctx, id)
	if err != nil {
		return nil, err
	}

	team.ServiceIDs, err = r.listServiceIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	return &team, nil
}

func (r *Repository) listMembers(ctx context.Context, teamID string) ([]domain.TeamMember, error) {
	query := `
		SELECT tm.user_id, u.username, u.email, tm.role
		FROM team_members tm
		JOIN users u ON u.id = tm.user_id
		WHERE tm.team_id = $1
		ORDER BY u.username
	`
	rows, err := r.db.Query(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	members := make([]domain.TeamMember, 0)
	for rows.Next() {
		var member domain.TeamMember
		if err := rows.Scan(&member.UserID, &member.Username, &member.Email, &member.Role); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, member)
	}
	return members, rows.Err()
}

func (r *Repository) listServiceIDs(ctx context.Context, teamID string) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM services WHERE team_id = $1 ORDER BY name`, teamID)
	if err != nil {
		return nil, fmt.Errorf("list team services: %w", err)
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

// ListTeams retrieves all teams with members and owned service ids.
func (r *Repository) ListTeams(ctx context.Context) ([]domain.Team, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, created_at, updated_at FROM teams ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Team, 0)
	for rows.Next() {
		var team domain.Team
		if err := rows.Scan(&team.ID, &team.Name, &team.CreatedAt, &team.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		result = append(result, team)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range result {
		result[i].Members, err = r.listMembers(ctx, result[i].ID)
		if err != nil {
			return nil, err
		}
		result[i].ServiceIDs, err = r.listServiceIDs(ctx, result[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// UpdateTeam renames a team.
func (r *Repository) UpdateTeam(ctx context.Context, team *domain.Team) error {
	err := r.db.QueryRow(ctx,
		`UPDATE teams SET name = $2, updated_at = NOW() WHERE id = $1 RETURNING updated_at`,
		team.ID, team.Name,
	).Scan(&team.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return teams.ErrTeamNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return teams.ErrTeamExists
		}
		return fmt.Errorf("update team: %w", err)
	}
	return nil
}

// DeleteTeam removes a team. Owned services keep existing with team_id
// cleared by the schema's ON DELETE SET NULL.
func (r *Repository) DeleteTeam(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM teams WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete team: %w", err)
	}
	if result.RowsAffected() == 0 {
		return teams.ErrTeamNotFound
	}
	return nil
}

// AddMember enrolls a user. Re-adding an existing member is a no-op.
func (r *Repository) AddMember(ctx context.Context, teamID, userID string, role domain.TeamRole) error {
	query := `
		INSERT INTO team_members (team_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (team_id, user_id) DO NOTHING
	`
	if _, err := r.db.Exec(ctx, query, teamID, userID, role); err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

// RemoveMember removes a user from a team.
func (r *Repository) RemoveMember(ctx context.Context, teamID, userID string) error {
	result, err := r.db.Exec(ctx,
		`DELETE FROM team_members WHERE team_id = $1 AND user_id = $2`,
		teamID, userID,
	)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	if result.RowsAffected() == 0 {
		return teams.ErrNotMember
	}
	return nil
}
