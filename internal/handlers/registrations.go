package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/irongopher75/Techfest-Server/internal/access"
	"github.com/irongopher75/Techfest-Server/internal/admission"
	"github.com/irongopher75/Techfest-Server/internal/metrics"
	"github.com/irongopher75/Techfest-Server/internal/storage"
	"github.com/shopspring/decimal"
)

type RegistrationStore interface {
	GetRegistration(ctx context.Context, id uuid.UUID) (*storage.Registration, error)
	ListRegistrations(ctx context.Context, eventIDs []uuid.UUID, page, limit int) ([]storage.Registration, int, error)
	ListUserRegistrations(ctx context.Context, userID uuid.UUID) ([]storage.Registration, error)
}

type UPIConfig struct {
	UPIID        string
	MerchantName string
}

type RegistrationHandler struct {
	Store     RegistrationStore
	Admission *admission.Controller
	Logger    *slog.Logger
	UPI       UPIConfig
	Env       string
}

func NewRegistrationHandler(store RegistrationStore, ctl *admission.Controller, logger *slog.Logger, upi UPIConfig, env string) *RegistrationHandler {
	return &RegistrationHandler{Store: store, Admission: ctl, Logger: logger, UPI: upi, Env: env}
}

type registerRequest struct {
	EventID     string   `json:"eventId" binding:"required"`
	TeamName    string   `json:"teamName"`
	TeamMembers []string `json:"teamMembers"`
}

type manualUPIRequest struct {
	EventID       string          `json:"eventId" binding:"required"`
	TransactionID string          `json:"transactionId" binding:"required"`
	AmountPaid    decimal.Decimal `json:"amountPaid" binding:"required"`
	TeamName      string          `json:"teamName"`
	TeamMembers   []string        `json:"teamMembers"`
}

type registrationView struct {
	ID               string          `json:"id"`
	EventID          string          `json:"eventId"`
	UserID           string          `json:"userId"`
	TeamName         string          `json:"teamName,omitempty"`
	TeamMembers      []string        `json:"teamMembers,omitempty"`
	PaymentMethod    string          `json:"paymentMethod"`
	TransactionID    string          `json:"transactionId,omitempty"`
	GatewayOrderID   string          `json:"gatewayOrderId,omitempty"`
	GatewayPaymentID string          `json:"gatewayPaymentId,omitempty"`
	AmountPaid       decimal.Decimal `json:"amountPaid"`
	Status           string          `json:"status"`
	CreatedAt        time.Time       `json:"createdAt"`
}

func newRegistrationView(reg *storage.Registration) registrationView {
	view := registrationView{
		ID:               reg.ID.String(),
		EventID:          reg.EventID.String(),
		UserID:           reg.UserID.String(),
		TeamName:         reg.TeamName,
		PaymentMethod:    string(reg.PaymentMethod),
		TransactionID:    reg.TransactionID,
		GatewayOrderID:   reg.GatewayOrderID,
		GatewayPaymentID: reg.GatewayPaymentID,
		AmountPaid:       reg.AmountPaid,
		Status:           string(reg.Status),
		CreatedAt:        reg.CreatedAt,
	}
	for _, id := range reg.TeamMembers {
		view.TeamMembers = append(view.TeamMembers, id.String())
	}
	return view
}

// Register admits a free registration: status goes straight to registered.
func (h *RegistrationHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	admReq, ok := h.buildRequest(c, req.EventID, req.TeamName, req.TeamMembers)
	if !ok {
		return
	}

	reg, err := h.Admission.Admit(c.Request.Context(), admReq)
	if err != nil {
		metrics.RegistrationsAdmitted.WithLabelValues("rejected").Inc()
		respondDomainError(c, h.Logger, h.Env, err)
		return
	}

	metrics.RegistrationsAdmitted.WithLabelValues("admitted").Inc()
	c.JSON(http.StatusOK, newRegistrationView(reg))
}

// ManualUPI admits a registration backed by a manual UPI transfer; it stays
// pending_verification until a superior admin verifies it.
func (h *RegistrationHandler) ManualUPI(c *gin.Context) {
	var req manualUPIRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	admReq, ok := h.buildRequest(c, req.EventID, req.TeamName, req.TeamMembers)
	if !ok {
		return
	}
	admReq.Payment = admission.Payment{
		Method:        storage.PaymentUPIDirect,
		TransactionID: req.TransactionID,
		Amount:        req.AmountPaid,
	}

	reg, err := h.Admission.Admit(c.Request.Context(), admReq)
	if err != nil {
		metrics.RegistrationsAdmitted.WithLabelValues("rejected").Inc()
		respondDomainError(c, h.Logger, h.Env, err)
		return
	}

	metrics.RegistrationsAdmitted.WithLabelValues("admitted").Inc()
	c.JSON(http.StatusOK, gin.H{
		"message":      "registration submitted for verification, please wait for admin approval",
		"registration": newRegistrationView(reg),
		"upiUsed":      h.UPI.UPIID,
	})
}

func (h *RegistrationHandler) UPIDetails(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"upiId":        h.UPI.UPIID,
		"merchantName": h.UPI.MerchantName,
	})
}

// Verify is the superior-admin confirmation of a manual payment.
func (h *RegistrationHandler) Verify(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	reg, err := h.Admission.Verify(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, h.Logger, h.Env, err)
		return
	}
	c.JSON(http.StatusOK, newRegistrationView(reg))
}

func (h *RegistrationHandler) My(c *gin.Context) {
	userID, ok := principalUUID(c)
	if !ok {
		return
	}

	regs, err := h.Store.ListUserRegistrations(c.Request.Context(), userID)
	if err != nil {
		respondDomainError(c, h.Logger, h.Env, err)
		return
	}

	views := make([]registrationView, 0, len(regs))
	for i := range regs {
		views = append(views, newRegistrationView(&regs[i]))
	}
	c.JSON(http.StatusOK, views)
}

// ListAll is scoped: superior admins see everything, event admins only the
// registrations of their assigned events.
func (h *RegistrationHandler) ListAll(c *gin.Context) {
	scope, ok := access.CurrentScope(c)
	if !ok {
		c.JSON(http.StatusForbidden, errorResponse{Code: "FORBIDDEN", Message: "event admin clearance required"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	var filter []uuid.UUID
	if !scope.All {
		filter = scope.EventIDs
		if filter == nil {
			filter = []uuid.UUID{}
		}
	}

	regs, total, err := h.Store.ListRegistrations(c.Request.Context(), filter, page, limit)
	if err != nil {
		respondDomainError(c, h.Logger, h.Env, err)
		return
	}

	views := make([]registrationView, 0, len(regs))
	for i := range regs {
		views = append(views, newRegistrationView(&regs[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"registrations": views,
		"total":         total,
		"page":          page,
		"limit":         limit,
	})
}

func (h *RegistrationHandler) buildRequest(c *gin.Context, eventID, teamName string, members []string) (admission.Request, bool) {
	userID, ok := principalUUID(c)
	if !ok {
		return admission.Request{}, false
	}

	evID, err := uuid.Parse(eventID)
	if err != nil {
		badRequest(c, "invalid event id")
		return admission.Request{}, false
	}

	memberIDs, err := parseIDList(members)
	if err != nil {
		badRequest(c, "invalid team member id")
		return admission.Request{}, false
	}

	return admission.Request{
		UserID:      userID,
		EventID:     evID,
		TeamName:    teamName,
		TeamMembers: memberIDs,
	}, true
}
