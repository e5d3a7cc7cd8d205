package handlers

import (
	"context"
	"net/http"
	"time"

	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/irongopher75/Techfest-Server/internal/access"
	"github.com/irongopher75/Techfest-Server/internal/storage"
	"github.com/shopspring/decimal"
)

type EventStore interface {
	CreateEvent(ctx context.Context, ev *storage.Event) error
	GetEvent(ctx context.Context, id uuid.UUID) (*storage.Event, error)
	ListEvents(ctx context.Context) ([]storage.Event, error)
	UpdateEvent(ctx context.Context, ev *storage.Event) error
	DeleteEvent(ctx context.Context, id uuid.UUID) error
}

type EventHandler struct {
	Store  EventStore
	Logger *slog.Logger
	Env    string
}

func NewEventHandler(store EventStore, logger *slog.Logger, env string) *EventHandler {
	return &EventHandler{Store: store, Logger: logger, Env: env}
}

type createEventRequest struct {
	Title           string          `json:"title" binding:"required"`
	Description     string          `json:"description" binding:"required"`
	Fee             decimal.Decimal `json:"fee"`
	Date            time.Time       `json:"date" binding:"required"`
	Venue           string          `json:"venue"`
	Category        string          `json:"category"`
	EventType       string          `json:"eventType" binding:"omitempty,oneof=individual team"`
	MaxTeamSize     int             `json:"maxTeamSize" binding:"omitempty,min=1"`
	MaxParticipants int             `json:"maxParticipants" binding:"omitempty,min=0"`
}

type updateEventRequest struct {
	Title           *string          `json:"title"`
	Description     *string          `json:"description"`
	Fee             *decimal.Decimal `json:"fee"`
	Date            *time.Time       `json:"date"`
	Venue           *string          `json:"venue"`
	Category        *string          `json:"category"`
	EventType       *string          `json:"eventType" binding:"omitempty,oneof=individual team"`
	MaxTeamSize     *int             `json:"maxTeamSize" binding:"omitempty,min=1"`
	MaxParticipants *int             `json:"maxParticipants" binding:"omitempty,min=0"`
}

type eventView struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	Fee             decimal.Decimal `json:"fee"`
	Date            time.Time       `json:"date"`
	Venue           string          `json:"venue"`
	Category        string          `json:"category"`
	EventType       string          `json:"eventType"`
	MaxTeamSize     int             `json:"maxTeamSize"`
	MaxParticipants int             `json:"maxParticipants"`
}

func newEventView(ev *storage.Event) eventView {
	return eventView{
		ID:              ev.ID.String(),
		Title:           ev.Title,
		Description:     ev.Description,
		Fee:             ev.Fee,
		Date:            ev.Date,
		Venue:           ev.Venue,
		Category:        ev.Category,
		EventType:       string(ev.EventType),
		MaxTeamSize:     ev.MaxTeamSize,
		MaxParticipants: ev.MaxParticipants,
	}
}

func (h *EventHandler) List(c *gin.Context) {
	events, err := h.Store.ListEvents(c.Request.Context())
	if err != nil {
		respondDomainError(c, h.Logger, h.Env, err)
		return
	}

	views := make([]eventView, 0, len(events))
	for i := range events {
		views = append(views, newEventView(&events[i]))
	}
	c.JSON(http.StatusOK, views)
}

func (h *EventHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ev, err := h.Store.GetEvent(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, h.Logger, h.Env, err)
		return
	}
	c.JSON(http.StatusOK, newEventView(ev))
}

func (h *EventHandler) Create(c *gin.Context) {
	var req createEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	eventType := storage.EventType(req.EventType)
	if eventType == "" {
		eventType = storage.EventIndividual
	}
	maxTeamSize := req.MaxTeamSize
	if eventType == storage.EventIndividual {
		maxTeamSize = 1
	}

	ev := &storage.Event{
		ID:              uuid.New(),
		Title:           req.Title,
		Description:     req.Description,
		Fee:             req.Fee,
		Date:            req.Date,
		Venue:           req.Venue,
		Category:        req.Category,
		EventType:       eventType,
		MaxTeamSize:     maxTeamSize,
		MaxParticipants: req.MaxParticipants,
	}

	if err := h.Store.CreateEvent(c.Request.Context(), ev); err != nil {
		respondDomainError(c, h.Logger, h.Env, err)
		return
	}

	h.Logger.Info("event created", slog.String("event_id", ev.ID.String()), slog.String("title", ev.Title))
	c.JSON(http.StatusOK, newEventView(ev))
}

// Update allows a superior admin, or an approved event admin assigned to
// this event, to patch event fields.
func (h *EventHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	scope, ok := access.CurrentScope(c)
	if !ok || !scope.Allows(id) {
		c.JSON(http.StatusForbidden, errorResponse{Code: "FORBIDDEN", Message: "not assigned to this event"})
		return
	}

	var req updateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ev, err := h.Store.GetEvent(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, h.Logger, h.Env, err)
		return
	}

	applyEventPatch(ev, &req)

	if err := h.Store.UpdateEvent(c.Request.Context(), ev); err != nil {
		respondDomainError(c, h.Logger, h.Env, err)
		return
	}

	c.JSON(http.StatusOK, newEventView(ev))
}

func (h *EventHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.Store.DeleteEvent(c.Request.Context(), id); err != nil {
		respondDomainError(c, h.Logger, h.Env, err)
		return
	}

	h.Logger.Info("event deleted", slog.String("event_id", id.String()))
	c.JSON(http.StatusOK, gin.H{"message": "event deleted"})
}

func applyEventPatch(ev *storage.Event, req *updateEventRequest) {
	if req.Title != nil {
		ev.Title = *req.Title
	}
	if req.Description != nil {
		ev.Description = *req.Description
	}
	if req.Fee != nil {
		ev.Fee = *req.Fee
	}
	if req.Date != nil {
		ev.Date = *req.Date
	}
	if req.Venue != nil {
		ev.Venue = *req.Venue
	}
	if req.Category != nil {
		ev.Category = *req.Category
	}
	if req.EventType != nil {
		ev.EventType = storage.EventType(*req.EventType)
	}
	if req.MaxTeamSize != nil {
		ev.MaxTeamSize = *req.MaxTeamSize
	}
	if req.MaxParticipants != nil {
		ev.MaxParticipants = *req.MaxParticipants
	}
}
