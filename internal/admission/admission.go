// Package admission validates and persists new registrations against an
// event's live constraints. Every precondition is hard: the first failure
// wins and nothing is written.
package admission

import (
	"context"
	"errors"
	"fmt"

	"log/slog"

	"github.com/google/uuid"
	"github.com/irongopher75/Techfest-Server/internal/storage"
	"github.com/shopspring/decimal"
)

var (
	ErrTeamSizeExceeded = errors.New("team size exceeds the event limit")
	ErrCapacityReached  = errors.New("event capacity reached")
	ErrInvalidTeam      = errors.New("invalid team composition")
)

type Store interface {
	WithEventLock(ctx context.Context, eventID uuid.UUID, fn func(*storage.Event, storage.EventTxn) error) error
	MarkRegistrationPaid(ctx context.Context, id uuid.UUID) (*storage.Registration, error)
}

type Payment struct {
	Method         storage.PaymentMethod
	TransactionID  string
	GatewayOrderID string
	Amount         decimal.Decimal
}

type Request struct {
	UserID      uuid.UUID
	EventID     uuid.UUID
	TeamName    string
	TeamMembers []uuid.UUID
	Payment     Payment
}

type Controller struct {
	store  Store
	logger *slog.Logger
}

func NewController(store Store, logger *slog.Logger) *Controller {
	return &Controller{store: store, logger: logger}
}

// Admit runs the admission checks in order: event exists, team size within
// limit, capacity not reached, no identity overlap; then persists. Every
// check runs inside the store's per-event serialized section against the
// event as read under the lock, so concurrent admissions cannot jointly
// exceed the limit or double-book a user, and a capacity edit that commits
// first is always seen.
func (ctl *Controller) Admit(ctx context.Context, req Request) (*storage.Registration, error) {
	status := storage.StatusRegistered
	if req.Payment.Method != storage.PaymentNone {
		status = storage.StatusPendingVerification
	}

	reg := &storage.Registration{
		ID:             uuid.New(),
		EventID:        req.EventID,
		UserID:         req.UserID,
		TeamName:       req.TeamName,
		TeamMembers:    req.TeamMembers,
		PaymentMethod:  req.Payment.Method,
		TransactionID:  req.Payment.TransactionID,
		GatewayOrderID: req.Payment.GatewayOrderID,
		AmountPaid:     req.Payment.Amount,
		Status:         status,
	}
	if reg.PaymentMethod == "" {
		reg.PaymentMethod = storage.PaymentNone
	}

	participants := append([]uuid.UUID{req.UserID}, req.TeamMembers...)

	err := ctl.store.WithEventLock(ctx, req.EventID, func(event *storage.Event, txn storage.EventTxn) error {
		if err := validateTeam(event, req); err != nil {
			return err
		}

		if event.MaxParticipants > 0 {
			count, err := txn.CountActiveRegistrations(ctx, req.EventID)
			if err != nil {
				return err
			}
			if count >= event.MaxParticipants {
				return ErrCapacityReached
			}
		}

		taken, err := txn.HasParticipants(ctx, req.EventID, participants)
		if err != nil {
			return err
		}
		if taken {
			return storage.ErrAlreadyRegistered
		}

		return txn.InsertRegistration(ctx, reg)
	})
	if err != nil {
		return nil, err
	}

	ctl.logger.Info("registration admitted",
		slog.String("registration_id", reg.ID.String()),
		slog.String("event_id", req.EventID.String()),
		slog.String("user_id", req.UserID.String()),
		slog.String("status", string(reg.Status)),
	)
	return reg, nil
}

// Verify transitions a registration to paid. It deliberately re-checks
// nothing: the manual UPI path trusts the superior admin's judgment.
func (ctl *Controller) Verify(ctx context.Context, registrationID uuid.UUID) (*storage.Registration, error) {
	reg, err := ctl.store.MarkRegistrationPaid(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	ctl.logger.Info("registration verified", slog.String("registration_id", reg.ID.String()))
	return reg, nil
}

func validateTeam(event *storage.Event, req Request) error {
	if len(req.TeamMembers) == 0 {
		return nil
	}
	if event.EventType != storage.EventTeam {
		return fmt.Errorf("%w: event does not accept teams", ErrInvalidTeam)
	}

	seen := map[uuid.UUID]struct{}{req.UserID: {}}
	for _, memberID := range req.TeamMembers {
		if _, dup := seen[memberID]; dup {
			return fmt.Errorf("%w: duplicate team member", ErrInvalidTeam)
		}
		seen[memberID] = struct{}{}
	}

	// Size counts the primary registrant plus every listed member.
	if event.MaxTeamSize > 0 && 1+len(req.TeamMembers) > event.MaxTeamSize {
		return ErrTeamSizeExceeded
	}
	return nil
}
