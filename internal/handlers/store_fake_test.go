package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/irongopher75/Techfest-Server/internal/access"
	"github.com/irongopher75/Techfest-Server/internal/admission"
	"github.com/irongopher75/Techfest-Server/internal/payment"
	"github.com/irongopher75/Techfest-Server/internal/rate"
	"github.com/irongopher75/Techfest-Server/internal/security"
	"github.com/irongopher75/Techfest-Server/internal/storage"
	"github.com/shopspring/decimal"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeStore backs every handler interface in the package with maps. The
// event lock reproduces the production store's per-event serialization.
type fakeStore struct {
	mu            sync.Mutex
	users         map[uuid.UUID]*storage.User
	events        map[uuid.UUID]*storage.Event
	registrations map[uuid.UUID]*storage.Registration
	eventLocks    map[uuid.UUID]*sync.Mutex

	// getUserErr, when set, fails every GetUserByID call.
	getUserErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:         map[uuid.UUID]*storage.User{},
		events:        map[uuid.UUID]*storage.Event{},
		registrations: map[uuid.UUID]*storage.Registration{},
		eventLocks:    map[uuid.UUID]*sync.Mutex{},
	}
}

func (f *fakeStore) CreateUser(ctx context.Context, user *storage.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if strings.EqualFold(existing.Email, user.Email) || strings.EqualFold(existing.Username, user.Username) {
			return storage.ErrDuplicateIdentity
		}
	}
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeStore) GetUserByID(ctx context.Context, id uuid.UUID) (*storage.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getUserErr != nil {
		return nil, f.getUserErr
	}
	user, ok := f.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (*storage.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if strings.EqualFold(user.Email, email) {
			copied := *user
			return &copied, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (f *fakeStore) GetUserByUsername(ctx context.Context, username string) (*storage.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if strings.EqualFold(user.Username, username) {
			copied := *user
			return &copied, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (f *fakeStore) SetRefreshTokenHash(ctx context.Context, userID uuid.UUID, hash *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return storage.ErrNotFound
	}
	user.RefreshTokenHash = hash
	return nil
}

func (f *fakeStore) UpdateAdmin(ctx context.Context, userID uuid.UUID, role storage.Role, isApproved bool, assigned []uuid.UUID) (*storage.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	user.Role = role
	user.IsApproved = isApproved
	user.AssignedEvents = assigned
	copied := *user
	return &copied, nil
}

func (f *fakeStore) ListAdmins(ctx context.Context) ([]storage.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var admins []storage.User
	for _, user := range f.users {
		if user.Role != storage.RoleUser {
			admins = append(admins, *user)
		}
	}
	return admins, nil
}

func (f *fakeStore) CreateEvent(ctx context.Context, ev *storage.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *ev
	f.events[ev.ID] = &copied
	return nil
}

func (f *fakeStore) GetEvent(ctx context.Context, id uuid.UUID) (*storage.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.events[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *ev
	return &copied, nil
}

func (f *fakeStore) ListEvents(ctx context.Context) ([]storage.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var events []storage.Event
	for _, ev := range f.events {
		events = append(events, *ev)
	}
	return events, nil
}

func (f *fakeStore) UpdateEvent(ctx context.Context, ev *storage.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.events[ev.ID]; !ok {
		return storage.ErrNotFound
	}
	copied := *ev
	f.events[ev.ID] = &copied
	return nil
}

func (f *fakeStore) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.events[id]; !ok {
		return storage.ErrNotFound
	}
	delete(f.events, id)
	for regID, reg := range f.registrations {
		if reg.EventID == id {
			delete(f.registrations, regID)
		}
	}
	return nil
}

func (f *fakeStore) GetRegistration(ctx context.Context, id uuid.UUID) (*storage.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reg, ok := f.registrations[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *reg
	return &copied, nil
}

func (f *fakeStore) ListRegistrations(ctx context.Context, eventIDs []uuid.UUID, page, limit int) ([]storage.Registration, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	allowed := func(eventID uuid.UUID) bool {
		if eventIDs == nil {
			return true
		}
		for _, id := range eventIDs {
			if id == eventID {
				return true
			}
		}
		return false
	}
	var regs []storage.Registration
	for _, reg := range f.registrations {
		if allowed(reg.EventID) {
			regs = append(regs, *reg)
		}
	}
	return regs, len(regs), nil
}

func (f *fakeStore) ListUserRegistrations(ctx context.Context, userID uuid.UUID) ([]storage.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var regs []storage.Registration
	for _, reg := range f.registrations {
		if reg.UserID == userID {
			regs = append(regs, *reg)
		}
	}
	return regs, nil
}

func (f *fakeStore) WithEventLock(ctx context.Context, eventID uuid.UUID, fn func(*storage.Event, storage.EventTxn) error) error {
	f.mu.Lock()
	lock, has := f.eventLocks[eventID]
	if !has {
		lock = &sync.Mutex{}
		f.eventLocks[eventID] = lock
	}
	f.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()

	f.mu.Lock()
	ev, ok := f.events[eventID]
	var copied storage.Event
	if ok {
		copied = *ev
	}
	f.mu.Unlock()
	if !ok {
		return storage.ErrNotFound
	}

	return fn(&copied, &fakeTxn{store: f})
}

func (f *fakeStore) MarkRegistrationPaid(ctx context.Context, id uuid.UUID) (*storage.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reg, ok := f.registrations[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	reg.Status = storage.StatusPaid
	copied := *reg
	return &copied, nil
}

func (f *fakeStore) MarkPaidByOrderID(ctx context.Context, orderID, paymentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, reg := range f.registrations {
		if reg.GatewayOrderID == orderID {
			reg.Status = storage.StatusPaid
			reg.GatewayPaymentID = paymentID
			return nil
		}
	}
	return storage.ErrNotFound
}

type fakeTxn struct {
	store *fakeStore
}

func (t *fakeTxn) CountActiveRegistrations(ctx context.Context, eventID uuid.UUID) (int, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	count := 0
	for _, reg := range t.store.registrations {
		if reg.EventID == eventID && reg.Status != storage.StatusFailed {
			count++
		}
	}
	return count, nil
}

func (t *fakeTxn) HasParticipants(ctx context.Context, eventID uuid.UUID, userIDs []uuid.UUID) (bool, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	taken := map[uuid.UUID]struct{}{}
	for _, reg := range t.store.registrations {
		if reg.EventID != eventID {
			continue
		}
		taken[reg.UserID] = struct{}{}
		for _, memberID := range reg.TeamMembers {
			taken[memberID] = struct{}{}
		}
	}
	for _, id := range userIDs {
		if _, ok := taken[id]; ok {
			return true, nil
		}
	}
	return false, nil
}

func (t *fakeTxn) InsertRegistration(ctx context.Context, reg *storage.Registration) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for _, existing := range t.store.registrations {
		if existing.EventID == reg.EventID && existing.UserID == reg.UserID {
			return storage.ErrAlreadyRegistered
		}
	}
	copied := *reg
	reg.CreatedAt = time.Now()
	copied.CreatedAt = reg.CreatedAt
	t.store.registrations[reg.ID] = &copied
	return nil
}

// stubGateway stands in for the gateway client. Signatures are the literal
// string "sig:<orderID>:<paymentID>".
type stubGateway struct {
	mu         sync.Mutex
	nextOrder  int
	failCreate bool
}

func newStubGateway() *stubGateway {
	return &stubGateway{}
}

func (g *stubGateway) CreateOrder(ctx context.Context, fee decimal.Decimal, receipt string) (*payment.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failCreate {
		return nil, errGatewayDown
	}
	g.nextOrder++
	return &payment.Order{
		ID:       fmt.Sprintf("order_%d", g.nextOrder),
		Amount:   fee.Mul(decimal.NewFromInt(100)).IntPart(),
		Currency: "INR",
		Receipt:  receipt,
		Status:   "created",
	}, nil
}

func (g *stubGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return signature == g.signature(orderID, paymentID)
}

func (g *stubGateway) signature(orderID, paymentID string) string {
	return "sig:" + orderID + ":" + paymentID
}

var errGatewayDown = errors.New("gateway unavailable")

type testEnv struct {
	store   *fakeStore
	tokens  *security.TokenService
	clock   *fakeClock
	gateway *stubGateway
	router  *gin.Engine
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := &fakeClock{now: time.Now()}

	tokens := security.NewTokenService("test-access-secret", "test-refresh-secret", 15*time.Minute, 7*24*time.Hour, "techfest-test")
	tokens.Clock = clock

	store := newFakeStore()
	eval := access.NewEvaluator(store)
	admitter := admission.NewController(store, logger)
	limiter := rate.NewMemory(100, time.Minute)
	gateway := newStubGateway()

	authHandler := NewAuthHandler(store, tokens, logger, limiter, security.Argon2Params{
		Memory:      16 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}, 7*24*time.Hour, "test")
	authHandler.Clock = clock

	adminHandler := NewAdminHandler(store, logger, "test")
	eventHandler := NewEventHandler(store, logger, "test")
	registrationHandler := NewRegistrationHandler(store, admitter, logger, UPIConfig{
		UPIID:        "techfest@upi",
		MerchantName: "Techfest",
	}, "test")
	paymentHandler := NewPaymentHandler(store, admitter, gateway, logger, "test")

	router := gin.New()
	RegisterRoutes(router, tokens, eval, authHandler, adminHandler, eventHandler, registrationHandler, paymentHandler)

	return &testEnv{
		store:   store,
		tokens:  tokens,
		clock:   clock,
		gateway: gateway,
		router:  router,
	}
}

// addUser inserts a user directly and returns a valid access token for them.
func (env *testEnv) addUser(t *testing.T, user *storage.User) string {
	t.Helper()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Role == "" {
		user.Role = storage.RoleUser
	}
	env.store.mu.Lock()
	copied := *user
	env.store.users[user.ID] = &copied
	env.store.mu.Unlock()

	pair, err := env.tokens.IssuePair(user.ID.String())
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	return pair.AccessToken
}

func (env *testEnv) addEvent(t *testing.T, ev *storage.Event) *storage.Event {
	t.Helper()
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.EventType == "" {
		ev.EventType = storage.EventIndividual
		ev.MaxTeamSize = 1
	}
	if err := env.store.CreateEvent(context.Background(), ev); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	return ev
}
