package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *Store) CreateUser(ctx context.Context, user *User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, name, email, username, password_hash, college, role, is_approved)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, user.ID, user.Name, user.Email, user.Username, user.PasswordHash, user.College, user.Role, user.IsApproved)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateIdentity
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.getUser(ctx, `WHERE id = $1`, id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.getUser(ctx, `WHERE lower(email) = lower($1)`, email)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return s.getUser(ctx, `WHERE lower(username) = lower($1)`, username)
}

func (s *Store) getUser(ctx context.Context, where string, arg any) (*User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, email, username, password_hash, college, role, is_approved, refresh_token_hash, created_at, updated_at
		FROM users `+where, arg)

	var user User
	if err := row.Scan(&user.ID, &user.Name, &user.Email, &user.Username, &user.PasswordHash,
		&user.College, &user.Role, &user.IsApproved, &user.RefreshTokenHash, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	assigned, err := s.assignedEvents(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.AssignedEvents = assigned
	return &user, nil
}

func (s *Store) assignedEvents(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT event_id FROM user_assigned_events WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("assigned events: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetRefreshTokenHash overwrites the stored refresh token hash. A nil hash
// revokes the current token; a new hash implicitly invalidates the prior
// one (single active refresh token per user).
func (s *Store) SetRefreshTokenHash(ctx context.Context, userID uuid.UUID, hash *string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET refresh_token_hash = $2, updated_at = now() WHERE id = $1
	`, userID, hash)
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateAdmin mutates role, approval and the assigned-event set. Only the
// superior-admin route reaches this.
func (s *Store) UpdateAdmin(ctx context.Context, userID uuid.UUID, role Role, isApproved bool, assigned []uuid.UUID) (*User, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	tag, err := tx.Exec(ctx, `
		UPDATE users SET role = $2, is_approved = $3, updated_at = now() WHERE id = $1
	`, userID, role, isApproved)
	if err != nil {
		return nil, fmt.Errorf("update admin: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}

	if _, err := tx.Exec(ctx, `DELETE FROM user_assigned_events WHERE user_id = $1`, userID); err != nil {
		return nil, fmt.Errorf("clear assignments: %w", err)
	}
	for _, eventID := range assigned {
		if _, err := tx.Exec(ctx, `
			INSERT INTO user_assigned_events (user_id, event_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, userID, eventID); err != nil {
			return nil, fmt.Errorf("assign event: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return s.GetUserByID(ctx, userID)
}

func (s *Store) ListAdmins(ctx context.Context) ([]User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, email, username, password_hash, college, role, is_approved, refresh_token_hash, created_at, updated_at
		FROM users
		WHERE role <> 'user'
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	defer rows.Close()

	var admins []User
	for rows.Next() {
		var user User
		if err := rows.Scan(&user.ID, &user.Name, &user.Email, &user.Username, &user.PasswordHash,
			&user.College, &user.Role, &user.IsApproved, &user.RefreshTokenHash, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, err
		}
		admins = append(admins, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range admins {
		assigned, err := s.assignedEvents(ctx, admins[i].ID)
		if err != nil {
			return nil, err
		}
		admins[i].AssignedEvents = assigned
	}
	return admins, nil
}
