package handlers

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"

	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/irongopher75/Techfest-Server/internal/admission"
	"github.com/irongopher75/Techfest-Server/internal/payment"
	"github.com/irongopher75/Techfest-Server/internal/storage"
	"github.com/shopspring/decimal"
)

type Gateway interface {
	CreateOrder(ctx context.Context, fee decimal.Decimal, receipt string) (*payment.Order, error)
	VerifySignature(orderID, paymentID, signature string) bool
}

type PaymentStore interface {
	GetEvent(ctx context.Context, id uuid.UUID) (*storage.Event, error)
	MarkPaidByOrderID(ctx context.Context, orderID, paymentID string) error
}

type PaymentHandler struct {
	Store     PaymentStore
	Admission *admission.Controller
	Gateway   Gateway
	Logger    *slog.Logger
	Env       string
}

func NewPaymentHandler(store PaymentStore, ctl *admission.Controller, gateway Gateway, logger *slog.Logger, env string) *PaymentHandler {
	return &PaymentHandler{Store: store, Admission: ctl, Gateway: gateway, Logger: logger, Env: env}
}

type createOrderRequest struct {
	EventID     string   `json:"eventId" binding:"required"`
	TeamName    string   `json:"teamName"`
	TeamMembers []string `json:"teamMembers"`
}

type verifyPaymentRequest struct {
	OrderID   string `json:"orderId" binding:"required"`
	PaymentID string `json:"paymentId" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

// CreateOrder registers a gateway order for the event fee and admits a
// pending registration carrying the order id. Admission checks run before
// anything is persisted, so a full event never produces a dangling order
// registration.
func (h *PaymentHandler) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	userID, ok := principalUUID(c)
	if !ok {
		return
	}

	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		badRequest(c, "invalid event id")
		return
	}

	memberIDs, err := parseIDList(req.TeamMembers)
	if err != nil {
		badRequest(c, "invalid team member id")
		return
	}

	event, err := h.Store.GetEvent(c.Request.Context(), eventID)
	if err != nil {
		respondDomainError(c, h.Logger, h.Env, err)
		return
	}

	receipt := fmt.Sprintf("receipt_order_%06d", rand.Intn(1000000))
	order, err := h.Gateway.CreateOrder(c.Request.Context(), event.Fee, receipt)
	if err != nil {
		h.Logger.Error("gateway order failed", "error", err, "event_id", eventID.String())
		c.JSON(http.StatusBadGateway, errorResponse{Code: "GATEWAY_ERROR", Message: "could not create payment order"})
		return
	}

	reg, err := h.Admission.Admit(c.Request.Context(), admission.Request{
		UserID:      userID,
		EventID:     eventID,
		TeamName:    req.TeamName,
		TeamMembers: memberIDs,
		Payment: admission.Payment{
			Method:         storage.PaymentGateway,
			GatewayOrderID: order.ID,
			Amount:         event.Fee,
		},
	})
	if err != nil {
		respondDomainError(c, h.Logger, h.Env, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order":        order,
		"registration": newRegistrationView(reg),
	})
}

// VerifyPayment checks the gateway callback signature and marks the
// matching registration paid.
func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	var req verifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	if !h.Gateway.VerifySignature(req.OrderID, req.PaymentID, req.Signature) {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "VALIDATION_ERROR", Message: "payment verification failed"})
		return
	}

	if err := h.Store.MarkPaidByOrderID(c.Request.Context(), req.OrderID, req.PaymentID); err != nil {
		respondDomainError(c, h.Logger, h.Env, err)
		return
	}

	h.Logger.Info("gateway payment verified", slog.String("order_id", req.OrderID))
	c.JSON(http.StatusOK, gin.H{"message": "payment verified successfully", "success": true})
}
