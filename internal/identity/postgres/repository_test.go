package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/statusdeck/statusdeck/internal/identity"
	"github.com/stretchr/testify/assert"
)

func TestMapUserConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "username unique violation",
			err:  &pgconn.PgError{Code: uniqueViolation, ConstraintName: "users_username_key"},
			want: identity.ErrUsernameExists,
		},
		{
			name: "email unique violation",
			err:  &pgconn.PgError{Code: uniqueViolation, ConstraintName: "users_email_key"},
			want: identity.ErrEmailExists,
		},
		{
			name: "wrapped unique violation",
			err:  fmt.Errorf("insert: %w", &pgconn.PgError{Code: uniqueViolation, ConstraintName: "users_email_key"}),
			want: identity.ErrEmailExists,
		},
		{
			name: "other postgres error",
			err:  &pgconn.PgError{Code: "23503"},
			want: nil,
		},
		{
			name: "plain error",
			err:  errors.New("connection reset"),
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mapUserConflict(tt.err))
		})
	}
}
