package storage

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Role is a closed enumeration. Anything outside the three known values is
// treated as deny by the access evaluator.
type Role string

const (
	RoleUser          Role = "user"
	RoleEventAdmin    Role = "event_admin"
	RoleSuperiorAdmin Role = "superior_admin"
)

func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleUser, RoleEventAdmin, RoleSuperiorAdmin:
		return Role(s), true
	}
	return "", false
}

type EventType string

const (
	EventIndividual EventType = "individual"
	EventTeam       EventType = "team"
)

type RegistrationStatus string

const (
	StatusRegistered          RegistrationStatus = "registered"
	StatusPendingVerification RegistrationStatus = "pending_verification"
	StatusPaid                RegistrationStatus = "paid"
	StatusFailed              RegistrationStatus = "failed"
)

type PaymentMethod string

const (
	PaymentNone      PaymentMethod = "none"
	PaymentUPIDirect PaymentMethod = "upi_direct"
	PaymentGateway   PaymentMethod = "gateway"
)

type User struct {
	ID               uuid.UUID
	Name             string
	Email            string
	Username         string
	PasswordHash     string
	College          string
	Role             Role
	IsApproved       bool
	AssignedEvents   []uuid.UUID
	RefreshTokenHash *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Event struct {
	ID              uuid.UUID
	Title           string
	Description     string
	Fee             decimal.Decimal
	Date            time.Time
	Venue           string
	Category        string
	EventType       EventType
	MaxTeamSize     int
	MaxParticipants int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Registration struct {
	ID               uuid.UUID
	EventID          uuid.UUID
	UserID           uuid.UUID
	TeamName         string
	TeamMembers      []uuid.UUID
	PaymentMethod    PaymentMethod
	TransactionID    string
	GatewayOrderID   string
	GatewayPaymentID string
	AmountPaid       decimal.Decimal
	Status           RegistrationStatus
	CreatedAt        time.Time
}
