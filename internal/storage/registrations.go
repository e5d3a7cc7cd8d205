package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// EventTxn is the view of the store available inside WithEventLock. The
// capacity count, the overlap check and the insert all run against the same
// transaction.
type EventTxn interface {
	CountActiveRegistrations(ctx context.Context, eventID uuid.UUID) (int, error)
	HasParticipants(ctx context.Context, eventID uuid.UUID, userIDs []uuid.UUID) (bool, error)
	InsertRegistration(ctx context.Context, reg *Registration) error
}

// WithEventLock serializes admissions per event: the event row is locked
// FOR UPDATE for the duration of fn, so two concurrent admissions for the
// same event cannot both pass the capacity and overlap checks. fn receives
// the event as read under the lock, so capacity or team-size edits that
// committed first are always honored. The unique indexes on
// (event_id, user_id) and (event_id, member_user_id) reject any writer
// that slips past regardless.
func (s *Store) WithEventLock(ctx context.Context, eventID uuid.UUID, fn func(*Event, EventTxn) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	row := tx.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, eventID)
	event, err := scanEvent(row)
	if err != nil {
		return err
	}

	if err := fn(event, &eventTxn{tx: tx}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

type eventTxn struct {
	tx pgx.Tx
}

func (t *eventTxn) CountActiveRegistrations(ctx context.Context, eventID uuid.UUID) (int, error) {
	var count int
	err := t.tx.QueryRow(ctx, `
		SELECT count(*) FROM registrations WHERE event_id = $1 AND status <> 'failed'
	`, eventID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return count, nil
}

func (t *eventTxn) HasParticipants(ctx context.Context, eventID uuid.UUID, userIDs []uuid.UUID) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM registrations
			WHERE event_id = $1 AND user_id = ANY($2)
			UNION ALL
			SELECT 1 FROM registration_members
			WHERE event_id = $1 AND member_user_id = ANY($2)
		)
	`, eventID, userIDs).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("overlap check: %w", err)
	}
	return exists, nil
}

func (t *eventTxn) InsertRegistration(ctx context.Context, reg *Registration) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO registrations (id, event_id, user_id, team_name, payment_method, transaction_id, gateway_order_id, gateway_payment_id, amount_paid, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, reg.ID, reg.EventID, reg.UserID, reg.TeamName, reg.PaymentMethod, reg.TransactionID,
		reg.GatewayOrderID, reg.GatewayPaymentID, reg.AmountPaid, reg.Status)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyRegistered
		}
		return fmt.Errorf("insert registration: %w", err)
	}

	for i, memberID := range reg.TeamMembers {
		if _, err := t.tx.Exec(ctx, `
			INSERT INTO registration_members (registration_id, event_id, member_user_id, position)
			VALUES ($1, $2, $3, $4)
		`, reg.ID, reg.EventID, memberID, i); err != nil {
			if isUniqueViolation(err) {
				return ErrAlreadyRegistered
			}
			return fmt.Errorf("insert member: %w", err)
		}
	}
	return nil
}

const registrationColumns = `id, event_id, user_id, team_name, payment_method, transaction_id, gateway_order_id, gateway_payment_id, amount_paid, status, created_at`

func scanRegistration(row pgx.Row) (*Registration, error) {
	var reg Registration
	if err := row.Scan(&reg.ID, &reg.EventID, &reg.UserID, &reg.TeamName, &reg.PaymentMethod,
		&reg.TransactionID, &reg.GatewayOrderID, &reg.GatewayPaymentID, &reg.AmountPaid, &reg.Status, &reg.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan registration: %w", err)
	}
	return &reg, nil
}

func (s *Store) GetRegistration(ctx context.Context, id uuid.UUID) (*Registration, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE id = $1`, id)
	reg, err := scanRegistration(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadMembers(ctx, []*Registration{reg}); err != nil {
		return nil, err
	}
	return reg, nil
}

// ListRegistrations returns a page of registrations, newest first. A nil
// eventIDs filter means unscoped (superior admin); otherwise only the given
// events are visible.
func (s *Store) ListRegistrations(ctx context.Context, eventIDs []uuid.UUID, page, limit int) ([]Registration, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	where := ``
	args := []any{}
	if eventIDs != nil {
		where = `WHERE event_id = ANY($1)`
		args = append(args, eventIDs)
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM registrations `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count registrations: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM registrations %s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		registrationColumns, where, len(args)+1, len(args)+2)
	args = append(args, limit, (page-1)*limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	items := []Registration{}
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, *reg)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	refs := make([]*Registration, len(items))
	for i := range items {
		refs[i] = &items[i]
	}
	if err := s.loadMembers(ctx, refs); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *Store) ListUserRegistrations(ctx context.Context, userID uuid.UUID) ([]Registration, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+registrationColumns+` FROM registrations WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user registrations: %w", err)
	}
	defer rows.Close()

	items := []Registration{}
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *reg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	refs := make([]*Registration, len(items))
	for i := range items {
		refs[i] = &items[i]
	}
	if err := s.loadMembers(ctx, refs); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) loadMembers(ctx context.Context, regs []*Registration) error {
	if len(regs) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(regs))
	byID := make(map[uuid.UUID]*Registration, len(regs))
	for i, reg := range regs {
		ids[i] = reg.ID
		byID[reg.ID] = reg
	}

	rows, err := s.pool.Query(ctx, `
		SELECT registration_id, member_user_id
		FROM registration_members
		WHERE registration_id = ANY($1)
		ORDER BY position
	`, ids)
	if err != nil {
		return fmt.Errorf("load members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var regID, memberID uuid.UUID
		if err := rows.Scan(&regID, &memberID); err != nil {
			return err
		}
		if reg, ok := byID[regID]; ok {
			reg.TeamMembers = append(reg.TeamMembers, memberID)
		}
	}
	return rows.Err()
}

// MarkRegistrationPaid is the superior-admin verification step. It is
// deliberately unconditional: manual UPI verification trusts the admin.
func (s *Store) MarkRegistrationPaid(ctx context.Context, id uuid.UUID) (*Registration, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE registrations SET status = 'paid' WHERE id = $1
	`, id)
	if err != nil {
		return nil, fmt.Errorf("mark paid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return s.GetRegistration(ctx, id)
}

// MarkPaidByOrderID completes the gateway flow after a verified signature.
func (s *Store) MarkPaidByOrderID(ctx context.Context, orderID, paymentID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE registrations SET status = 'paid', gateway_payment_id = $2 WHERE gateway_order_id = $1
	`, orderID, paymentID)
	if err != nil {
		return fmt.Errorf("mark paid by order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
