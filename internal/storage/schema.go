package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		username TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		college TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'user',
		is_approved BOOLEAN NOT NULL DEFAULT TRUE,
		refresh_token_hash TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_email_key ON users (lower(email))`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_username_key ON users (lower(username))`,

	`CREATE TABLE IF NOT EXISTS events (
		id UUID PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		fee NUMERIC(12,2) NOT NULL DEFAULT 0,
		date TIMESTAMPTZ NOT NULL,
		venue TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		event_type TEXT NOT NULL DEFAULT 'individual',
		max_team_size INT NOT NULL DEFAULT 1,
		max_participants INT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS user_assigned_events (
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		event_id UUID NOT NULL,
		PRIMARY KEY (user_id, event_id)
	)`,

	`CREATE TABLE IF NOT EXISTS registrations (
		id UUID PRIMARY KEY,
		event_id UUID NOT NULL REFERENCES events(id),
		user_id UUID NOT NULL REFERENCES users(id),
		team_name TEXT NOT NULL DEFAULT '',
		payment_method TEXT NOT NULL DEFAULT 'none',
		transaction_id TEXT NOT NULL DEFAULT '',
		gateway_order_id TEXT NOT NULL DEFAULT '',
		gateway_payment_id TEXT NOT NULL DEFAULT '',
		amount_paid NUMERIC(12,2) NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'registered',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	// The losing side of a concurrent duplicate admission is rejected here
	// rather than by an external lock manager.
	`CREATE UNIQUE INDEX IF NOT EXISTS registrations_event_user_key ON registrations (event_id, user_id)`,
	`CREATE INDEX IF NOT EXISTS registrations_event_status_idx ON registrations (event_id, status)`,

	`CREATE TABLE IF NOT EXISTS registration_members (
		registration_id UUID NOT NULL REFERENCES registrations(id) ON DELETE CASCADE,
		event_id UUID NOT NULL,
		member_user_id UUID NOT NULL REFERENCES users(id),
		position INT NOT NULL,
		PRIMARY KEY (registration_id, member_user_id)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS registration_members_event_member_key ON registration_members (event_id, member_user_id)`,
}

// Migrate applies the schema. Statements are idempotent so the server can
// run this unconditionally at startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
