package handlers

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/irongopher75/Techfest-Server/internal/rate"
	"github.com/irongopher75/Techfest-Server/internal/security"
	"github.com/irongopher75/Techfest-Server/internal/storage"
)

const refreshCookieName = "refresh_token"

type AuthStore interface {
	CreateUser(ctx context.Context, user *storage.User) error
	GetUserByEmail(ctx context.Context, email string) (*storage.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*storage.User, error)
	SetRefreshTokenHash(ctx context.Context, userID uuid.UUID, hash *string) error
}

type AuthHandler struct {
	Store      AuthStore
	Tokens     *security.TokenService
	Logger     *slog.Logger
	Limiter    rate.Limiter
	Argon2     security.Argon2Params
	RefreshTTL time.Duration
	Env        string
	Clock      security.Clock
}

func NewAuthHandler(store AuthStore, tokens *security.TokenService, logger *slog.Logger, limiter rate.Limiter, argon2 security.Argon2Params, refreshTTL time.Duration, env string) *AuthHandler {
	return &AuthHandler{
		Store:      store,
		Tokens:     tokens,
		Logger:     logger,
		Limiter:    limiter,
		Argon2:     argon2,
		RefreshTTL: refreshTTL,
		Env:        env,
		Clock:      security.SystemClock{},
	}
}

type signupRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Username string `json:"username" binding:"required,min=3"`
	Password string `json:"password" binding:"required,min=6"`
	College  string `json:"college"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type userView struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Email      string   `json:"email"`
	Username   string   `json:"username"`
	College    string   `json:"college,omitempty"`
	Role       string   `json:"role"`
	IsApproved bool     `json:"isApproved"`
	Assigned   []string `json:"assignedEvents,omitempty"`
}

type authResponse struct {
	Token     string   `json:"token"`
	ExpiresIn int64    `json:"expires_in"`
	User      userView `json:"user"`
}

func newUserView(user *storage.User) userView {
	view := userView{
		ID:         user.ID.String(),
		Name:       user.Name,
		Email:      user.Email,
		Username:   user.Username,
		College:    user.College,
		Role:       string(user.Role),
		IsApproved: user.IsApproved,
	}
	for _, id := range user.AssignedEvents {
		view.Assigned = append(view.Assigned, id.String())
	}
	return view
}

func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	if !h.allow(c) {
		return
	}

	hash, err := security.HashPassword(req.Password, h.Argon2)
	if err != nil {
		respondDomainError(c, h.Logger, h.Env, err)
		return
	}

	user := &storage.User{
		ID:           uuid.New(),
		Name:         req.Name,
		Email:        strings.ToLower(req.Email),
		Username:     req.Username,
		PasswordHash: hash,
		College:      req.College,
		Role:         storage.RoleUser,
		IsApproved:   true,
	}

	if err := h.Store.CreateUser(c.Request.Context(), user); err != nil {
		respondDomainError(c, h.Logger, h.Env, err)
		return
	}

	pair, err := h.issueSession(c, user.ID)
	if err != nil {
		respondDomainError(c, h.Logger, h.Env, err)
		return
	}

	h.Logger.Info("user signed up", slog.String("user_id", user.ID.String()))
	c.JSON(http.StatusCreated, authResponse{Token: pair.AccessToken, ExpiresIn: pair.ExpiresIn, User: newUserView(user)})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	if !h.allow(c) {
		return
	}

	user, err := h.Store.GetUserByEmail(c.Request.Context(), strings.ToLower(req.Email))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_CREDENTIALS", Message: "invalid credentials"})
			return
		}
		respondDomainError(c, h.Logger, h.Env, err)
		return
	}

	ok, err := security.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil || !ok {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_CREDENTIALS", Message: "invalid credentials"})
		return
	}

	pair, err := h.issueSession(c, user.ID)
	if err != nil {
		respondDomainError(c, h.Logger, h.Env, err)
		return
	}

	c.JSON(http.StatusOK, authResponse{Token: pair.AccessToken, ExpiresIn: pair.ExpiresIn, User: newUserView(user)})
}

// Refresh rotates the refresh token: the presented token must verify
// against the refresh secret, be unexpired and exactly match the value
// stored for the user. A rotated or revoked token can never rotate again.
func (h *AuthHandler) Refresh(c *gin.Context) {
	presented, err := c.Cookie(refreshCookieName)
	if err != nil || presented == "" {
		respondDomainError(c, h.Logger, h.Env, security.ErrInvalidToken)
		return
	}

	subject, err := h.Tokens.VerifyRefresh(presented)
	if err != nil {
		respondDomainError(c, h.Logger, h.Env, err)
		return
	}

	userID, err := uuid.Parse(subject)
	if err != nil {
		respondDomainError(c, h.Logger, h.Env, security.ErrInvalidToken)
		return
	}

	user, err := h.Store.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		// A deleted user means a dead token; anything else is a store
		// failure and must not masquerade as a rejection.
		if errors.Is(err, storage.ErrNotFound) {
			err = security.ErrInvalidToken
		}
		respondDomainError(c, h.Logger, h.Env, err)
		return
	}

	if user.RefreshTokenHash == nil ||
		subtle.ConstantTimeCompare([]byte(*user.RefreshTokenHash), []byte(security.HashToken(presented))) != 1 {
		respondDomainError(c, h.Logger, h.Env, security.ErrInvalidToken)
		return
	}

	pair, err := h.issueSession(c, user.ID)
	if err != nil {
		respondDomainError(c, h.Logger, h.Env, err)
		return
	}

	c.JSON(http.StatusOK, authResponse{Token: pair.AccessToken, ExpiresIn: pair.ExpiresIn, User: newUserView(user)})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	userID, ok := principalUUID(c)
	if !ok {
		return
	}

	if err := h.Store.SetRefreshTokenHash(c.Request.Context(), userID, nil); err != nil && !errors.Is(err, storage.ErrNotFound) {
		respondDomainError(c, h.Logger, h.Env, err)
		return
	}

	h.setRefreshCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// issueSession creates a fresh token pair, persists the refresh hash
// (invalidating any prior token) and sets the cookie.
func (h *AuthHandler) issueSession(c *gin.Context, userID uuid.UUID) (security.TokenPair, error) {
	pair, err := h.Tokens.IssuePair(userID.String())
	if err != nil {
		return security.TokenPair{}, err
	}

	hash := security.HashToken(pair.RefreshToken)
	if err := h.Store.SetRefreshTokenHash(c.Request.Context(), userID, &hash); err != nil {
		return security.TokenPair{}, err
	}

	h.setRefreshCookie(c, pair.RefreshToken, int(h.RefreshTTL.Seconds()))
	return pair, nil
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, value string, maxAge int) {
	secure := h.Env == "prod" || h.Env == "production"
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookieName, value, maxAge, "/api/auth", "", secure, true)
}

func (h *AuthHandler) allow(c *gin.Context) bool {
	allowed, retryAfter, err := h.Limiter.Allow(c.Request.Context(), c.ClientIP(), h.Clock.Now())
	if err != nil {
		h.Logger.Error("rate limiter failed", "error", err)
		return true
	}
	if !allowed {
		c.Header("Retry-After", retryAfter.Truncate(time.Second).String())
		c.JSON(http.StatusTooManyRequests, errorResponse{Code: "RATE_LIMITED", Message: "too many requests"})
		return false
	}
	return true
}
