package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"marketplace/internal/domain/auth"
)

const (
	findUserByTokenHashSQL = `SELECT u.id, u.email, u.name, u.is_staff,
			COALESCE(array_agg(m.group_id) FILTER (WHERE m.group_id IS NOT NULL), '{}') AS group_ids
		FROM users u
		LEFT JOIN user_group_members m ON m.user_id = u.id
		WHERE u.token_hash = $1 AND u.is_active
		GROUP BY u.id`

	activeUserEmailsSQL = `SELECT email FROM users
		WHERE is_active AND NOT is_staff ORDER BY email`
)

var _ auth.Repository = (*UserRepository)(nil)

// UserRepository implements auth.Repository backed by PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// FindByTokenHash returns the active user owning the hashed bearer token,
// with group memberships resolved. Returns auth.ErrUnauthorized when no
// matching user exists.
func (r *UserRepository) FindByTokenHash(ctx context.Context, hash string) (*auth.User, error) {
	var u auth.User
	err := r.pool.QueryRow(ctx, findUserByTokenHashSQL, hash).
		Scan(&u.ID, &u.Email, &u.Name, &u.IsStaff, &u.GroupIDs)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrUnauthorized
		}
		return nil, fmt.Errorf("finding user by token hash: %w", err)
	}
	return &u, nil
}

// ActiveUserEmails streams the email address of every active non-staff user
// to fn. Used by the sale announcement job, where the recipient list can be
// large enough that materializing it is undesirable.
func (r *UserRepository) ActiveUserEmails(ctx context.Context, fn func(email string) error) error {
	rows, err := r.pool.Query(ctx, activeUserEmailsSQL)
	if err != nil {
		return fmt.Errorf("querying active user emails: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return fmt.Errorf("scanning user email: %w", err)
		}
		if err := fn(email); err != nil {
			return err
		}
	}
	return rows.Err()
}
