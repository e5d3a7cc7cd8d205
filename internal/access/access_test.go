package access

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/irongopher75/Techfest-Server/internal/storage"
)

type memStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*storage.User
}

func newMemStore() *memStore {
	return &memStore{users: map[uuid.UUID]*storage.User{}}
}

func (m *memStore) put(user *storage.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
}

func (m *memStore) GetUserByID(ctx context.Context, id uuid.UUID) (*storage.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func TestPrincipal(t *testing.T) {
	store := newMemStore()
	eval := NewEvaluator(store)
	ctx := context.Background()

	user := &storage.User{ID: uuid.New(), Role: storage.RoleUser}
	store.put(user)

	got, err := eval.Principal(ctx, user.ID.String())
	if err != nil {
		t.Fatalf("Principal: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("principal id = %s, want %s", got.ID, user.ID)
	}

	if _, err := eval.Principal(ctx, "not-a-uuid"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("malformed subject: err = %v, want ErrUnauthenticated", err)
	}

	if _, err := eval.Principal(ctx, uuid.New().String()); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("deleted user: err = %v, want ErrUnauthenticated", err)
	}
}

func TestRequireSuperior(t *testing.T) {
	eval := NewEvaluator(newMemStore())

	tests := []struct {
		role    storage.Role
		allowed bool
	}{
		{storage.RoleSuperiorAdmin, true},
		{storage.RoleEventAdmin, false},
		{storage.RoleUser, false},
		{storage.Role("owner"), false},
	}

	for _, tt := range tests {
		err := eval.RequireSuperior(&storage.User{ID: uuid.New(), Role: tt.role, IsApproved: true})
		if tt.allowed && err != nil {
			t.Errorf("role %s: unexpected error %v", tt.role, err)
		}
		if !tt.allowed && !errors.Is(err, ErrForbidden) {
			t.Errorf("role %s: err = %v, want ErrForbidden", tt.role, err)
		}
	}
}

func TestEventAdminScope(t *testing.T) {
	eval := NewEvaluator(newMemStore())
	assigned := []uuid.UUID{uuid.New(), uuid.New()}

	t.Run("superior is unscoped", func(t *testing.T) {
		scope, err := eval.EventAdminScope(&storage.User{Role: storage.RoleSuperiorAdmin})
		if err != nil {
			t.Fatalf("EventAdminScope: %v", err)
		}
		if !scope.All {
			t.Fatal("superior admin scope should be unscoped")
		}
	})

	t.Run("approved event admin is scoped", func(t *testing.T) {
		scope, err := eval.EventAdminScope(&storage.User{
			Role:           storage.RoleEventAdmin,
			IsApproved:     true,
			AssignedEvents: assigned,
		})
		if err != nil {
			t.Fatalf("EventAdminScope: %v", err)
		}
		if scope.All {
			t.Fatal("event admin scope should not be unscoped")
		}
		if len(scope.EventIDs) != 2 {
			t.Fatalf("scope has %d events, want 2", len(scope.EventIDs))
		}
	})

	t.Run("unapproved event admin is denied", func(t *testing.T) {
		_, err := eval.EventAdminScope(&storage.User{
			Role:           storage.RoleEventAdmin,
			IsApproved:     false,
			AssignedEvents: assigned,
		})
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("err = %v, want ErrForbidden", err)
		}
	})

	t.Run("plain user is denied", func(t *testing.T) {
		_, err := eval.EventAdminScope(&storage.User{Role: storage.RoleUser, IsApproved: true})
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("err = %v, want ErrForbidden", err)
		}
	})

	t.Run("unknown role is denied", func(t *testing.T) {
		_, err := eval.EventAdminScope(&storage.User{Role: storage.Role("moderator"), IsApproved: true})
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("err = %v, want ErrForbidden", err)
		}
	})
}

func TestScopeAllows(t *testing.T) {
	evA, evB := uuid.New(), uuid.New()

	all := Scope{All: true}
	if !all.Allows(evA) || !all.Allows(evB) {
		t.Fatal("unscoped view must allow every event")
	}

	scoped := Scope{EventIDs: []uuid.UUID{evA}}
	if !scoped.Allows(evA) {
		t.Fatal("assigned event denied")
	}
	if scoped.Allows(evB) {
		t.Fatal("unassigned event allowed")
	}

	empty := Scope{}
	if empty.Allows(evA) {
		t.Fatal("empty scope allowed an event")
	}
}

// Role and assignment edits must bind on the next request because the
// evaluator re-reads the user record every time.
func TestPrincipalSeesFreshRecord(t *testing.T) {
	store := newMemStore()
	eval := NewEvaluator(store)
	ctx := context.Background()

	user := &storage.User{ID: uuid.New(), Role: storage.RoleEventAdmin, IsApproved: false}
	store.put(user)

	loaded, err := eval.Principal(ctx, user.ID.String())
	if err != nil {
		t.Fatalf("Principal: %v", err)
	}
	if _, err := eval.EventAdminScope(loaded); !errors.Is(err, ErrForbidden) {
		t.Fatalf("unapproved admin: err = %v, want ErrForbidden", err)
	}

	user.IsApproved = true
	store.put(user)

	loaded, err = eval.Principal(ctx, user.ID.String())
	if err != nil {
		t.Fatalf("Principal: %v", err)
	}
	if _, err := eval.EventAdminScope(loaded); err != nil {
		t.Fatalf("approved admin denied: %v", err)
	}
}
