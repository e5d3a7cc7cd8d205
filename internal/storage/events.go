package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const eventColumns = `id, title, description, fee, date, venue, category, event_type, max_team_size, max_participants, created_at, updated_at`

func scanEvent(row pgx.Row) (*Event, error) {
	var ev Event
	if err := row.Scan(&ev.ID, &ev.Title, &ev.Description, &ev.Fee, &ev.Date, &ev.Venue,
		&ev.Category, &ev.EventType, &ev.MaxTeamSize, &ev.MaxParticipants, &ev.CreatedAt, &ev.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan event: %w", err)
	}
	return &ev, nil
}

func (s *Store) CreateEvent(ctx context.Context, ev *Event) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO events (id, title, description, fee, date, venue, category, event_type, max_team_size, max_participants)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, ev.ID, ev.Title, ev.Description, ev.Fee, ev.Date, ev.Venue, ev.Category, ev.EventType, ev.MaxTeamSize, ev.MaxParticipants)
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

func (s *Store) GetEvent(ctx context.Context, id uuid.UUID) (*Event, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	return scanEvent(row)
}

func (s *Store) ListEvents(ctx context.Context) ([]Event, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+eventColumns+` FROM events ORDER BY date`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *ev)
	}
	return events, rows.Err()
}

func (s *Store) UpdateEvent(ctx context.Context, ev *Event) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE events
		SET title = $2, description = $3, fee = $4, date = $5, venue = $6, category = $7,
		    event_type = $8, max_team_size = $9, max_participants = $10, updated_at = now()
		WHERE id = $1
	`, ev.ID, ev.Title, ev.Description, ev.Fee, ev.Date, ev.Venue, ev.Category, ev.EventType, ev.MaxTeamSize, ev.MaxParticipants)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteEvent removes the event and everything referencing it as one
// explicit transaction: members first, then registrations, then admin
// assignments, then the event row. No registration may outlive its event.
func (s *Store) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM registration_members WHERE event_id = $1`, id); err != nil {
		return fmt.Errorf("delete members: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM registrations WHERE event_id = $1`, id); err != nil {
		return fmt.Errorf("delete registrations: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM user_assigned_events WHERE event_id = $1`, id); err != nil {
		return fmt.Errorf("delete assignments: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return tx.Commit(ctx)
}
