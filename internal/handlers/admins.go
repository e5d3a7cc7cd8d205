package handlers

import (
	"context"
	"net/http"

	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/irongopher75/Techfest-Server/internal/storage"
)

type AdminStore interface {
	UpdateAdmin(ctx context.Context, userID uuid.UUID, role storage.Role, isApproved bool, assigned []uuid.UUID) (*storage.User, error)
	ListAdmins(ctx context.Context) ([]storage.User, error)
	GetUserByUsername(ctx context.Context, username string) (*storage.User, error)
}

type AdminHandler struct {
	Store  AdminStore
	Logger *slog.Logger
	Env    string
}

func NewAdminHandler(store AdminStore, logger *slog.Logger, env string) *AdminHandler {
	return &AdminHandler{Store: store, Logger: logger, Env: env}
}

type updateAdminRequest struct {
	Role           string   `json:"role" binding:"required"`
	IsApproved     *bool    `json:"isApproved" binding:"required"`
	AssignedEvents []string `json:"assignedEvents"`
}

// Update is the only path that mutates role, approval or assignments, and
// it is gated to superior admins by the route middleware. The change binds
// on the target's very next request since capability checks re-read the
// user record.
func (h *AdminHandler) Update(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req updateAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	role, ok := storage.ParseRole(req.Role)
	if !ok {
		badRequest(c, "unknown role")
		return
	}

	assigned, err := parseIDList(req.AssignedEvents)
	if err != nil {
		badRequest(c, "invalid assigned event id")
		return
	}

	user, err := h.Store.UpdateAdmin(c.Request.Context(), userID, role, *req.IsApproved, assigned)
	if err != nil {
		respondDomainError(c, h.Logger, h.Env, err)
		return
	}

	h.Logger.Info("admin updated",
		slog.String("user_id", userID.String()),
		slog.String("role", string(role)),
		slog.Bool("is_approved", *req.IsApproved),
	)
	c.JSON(http.StatusOK, newUserView(user))
}

func (h *AdminHandler) List(c *gin.Context) {
	admins, err := h.Store.ListAdmins(c.Request.Context())
	if err != nil {
		respondDomainError(c, h.Logger, h.Env, err)
		return
	}

	views := make([]userView, 0, len(admins))
	for i := range admins {
		views = append(views, newUserView(&admins[i]))
	}
	c.JSON(http.StatusOK, views)
}

// FindUser resolves a username to a minimal public view, used by the team
// registration form to look up member ids.
func (h *AdminHandler) FindUser(c *gin.Context) {
	user, err := h.Store.GetUserByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		respondDomainError(c, h.Logger, h.Env, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": user.ID.String(), "name": user.Name, "username": user.Username})
}
