package handlers

import (
	"errors"
	"net/http"

	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/irongopher75/Techfest-Server/internal/access"
	"github.com/irongopher75/Techfest-Server/internal/admission"
	"github.com/irongopher75/Techfest-Server/internal/security"
	"github.com/irongopher75/Techfest-Server/internal/storage"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// respondDomainError maps the error taxonomy onto HTTP statuses at the
// route boundary. Anything unrecognized is logged in full and surfaced as a
// generic 500; outside production the detail is kept in the body.
func respondDomainError(c *gin.Context, logger *slog.Logger, env string, err error) {
	switch {
	case errors.Is(err, security.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHENTICATED", Message: "token is not valid"})
	case errors.Is(err, security.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "INVALID_TOKEN", Message: "refresh token is not valid"})
	case errors.Is(err, access.ErrForbidden):
		c.JSON(http.StatusForbidden, errorResponse{Code: "FORBIDDEN", Message: err.Error()})
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "resource not found"})
	case errors.Is(err, storage.ErrDuplicateIdentity):
		c.JSON(http.StatusBadRequest, errorResponse{Code: "DUPLICATE_IDENTITY", Message: "email or username already taken"})
	case errors.Is(err, storage.ErrAlreadyRegistered):
		c.JSON(http.StatusBadRequest, errorResponse{Code: "ALREADY_REGISTERED", Message: "already registered for this event"})
	case errors.Is(err, admission.ErrTeamSizeExceeded):
		c.JSON(http.StatusBadRequest, errorResponse{Code: "TEAM_SIZE_EXCEEDED", Message: "team size exceeds the event limit"})
	case errors.Is(err, admission.ErrCapacityReached):
		c.JSON(http.StatusBadRequest, errorResponse{Code: "CAPACITY_REACHED", Message: "event capacity reached"})
	case errors.Is(err, admission.ErrInvalidTeam):
		c.JSON(http.StatusBadRequest, errorResponse{Code: "VALIDATION_ERROR", Message: err.Error()})
	default:
		logger.Error("unhandled error", "error", err, "path", c.FullPath())
		msg := "internal error"
		if env != "prod" && env != "production" {
			msg = err.Error()
		}
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: msg})
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, errorResponse{Code: "VALIDATION_ERROR", Message: message})
}

func parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func parseIDList(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// principalUUID parses the subject set by the Authenticate middleware.
func principalUUID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(access.PrincipalID(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHENTICATED", Message: "token is not valid"})
		return uuid.Nil, false
	}
	return id, true
}
