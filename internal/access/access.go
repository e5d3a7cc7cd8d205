// Package access decides what an authenticated principal may do. The user
// record is re-read on every request, never cached, so role, approval and
// assignment edits by a superior admin bind from the very next request.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/irongopher75/Techfest-Server/internal/storage"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

type Store interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*storage.User, error)
}

// Scope bounds what an admin may see. All=true is the superior admin's
// unscoped view; otherwise only the listed events are visible.
type Scope struct {
	All      bool
	EventIDs []uuid.UUID
}

func (s Scope) Allows(eventID uuid.UUID) bool {
	if s.All {
		return true
	}
	for _, id := range s.EventIDs {
		if id == eventID {
			return true
		}
	}
	return false
}

type Evaluator struct {
	store Store
}

func NewEvaluator(store Store) *Evaluator {
	return &Evaluator{store: store}
}

// Principal resolves the verified token subject to a live user record.
// A user deleted after token issuance fails here, not with a 500 later.
func (e *Evaluator) Principal(ctx context.Context, subject string) (*storage.User, error) {
	id, err := uuid.Parse(subject)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	user, err := e.store.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	return user, nil
}

func (e *Evaluator) RequireSuperior(user *storage.User) error {
	switch user.Role {
	case storage.RoleSuperiorAdmin:
		return nil
	case storage.RoleEventAdmin, storage.RoleUser:
		return fmt.Errorf("%w: superior admin clearance required", ErrForbidden)
	default:
		return fmt.Errorf("%w: unknown role", ErrForbidden)
	}
}

// EventAdminScope evaluates the event-admin-or-superior capability. The
// returned scope bounds any listing the route performs.
func (e *Evaluator) EventAdminScope(user *storage.User) (Scope, error) {
	switch user.Role {
	case storage.RoleSuperiorAdmin:
		return Scope{All: true}, nil
	case storage.RoleEventAdmin:
		if !user.IsApproved {
			return Scope{}, fmt.Errorf("%w: admin account pending approval", ErrForbidden)
		}
		return Scope{EventIDs: user.AssignedEvents}, nil
	case storage.RoleUser:
		return Scope{}, fmt.Errorf("%w: event admin clearance required", ErrForbidden)
	default:
		return Scope{}, fmt.Errorf("%w: unknown role", ErrForbidden)
	}
}
