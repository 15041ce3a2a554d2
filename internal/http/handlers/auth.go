package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/quickdesk/backend/internal/auth"
	"github.com/quickdesk/backend/internal/db"
	"github.com/quickdesk/backend/internal/http/middleware"
	"github.com/quickdesk/backend/internal/models"
)

const refreshCookie = "refresh_token"

type RegisterRequest struct {
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Username   string `json:"username"`
	Password   string `json:"password" validate:"required,min=6"`
	Role       string `json:"role"`
	Department string `json:"department"`
}

// @Summary Register an account
// @Tags auth
// @Accept json
// @Produce json
// @Param body body RegisterRequest true "registration payload"
// @Success 201 {object} map[string]any
// @Failure 409 {object} map[string]any
// @Router /api/auth/register [post]
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}
	if req.Role == "" {
		req.Role = models.RoleUser
	}
	if !models.ValidRole(req.Role) {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown role", nil)
		return
	}
	if req.Username == "" {
		req.Username = req.Email
	}

	ctx := c.Request.Context()
	taken, err := h.Store.EmailOrUsernameTaken(ctx, req.Email, req.Username, 0)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if taken {
		writeError(c, http.StatusConflict, "CONFLICT", "Email or username already in use", nil)
		return
	}

	hash, err := auth.HashPassword(req.Password, h.BcryptCost)
	if err != nil {
		h.respondError(c, err)
		return
	}

	user, err := h.Store.CreateUser(ctx, models.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: hash,
		Role:         req.Role,
		Status:       models.StatusActive,
		Department:   req.Department,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "registered", "user": user})
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// @Summary Log in
// @Tags auth
// @Accept json
// @Produce json
// @Param body body LoginRequest true "credentials"
// @Success 200 {object} map[string]any
// @Router /api/auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	ctx := c.Request.Context()
	user, err := h.Store.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "User not found", nil)
			return
		}
		h.respondError(c, err)
		return
	}
	if err := auth.ComparePassword(user.PasswordHash, req.Password); err != nil {
		writeError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid credentials", nil)
		return
	}
	if user.Status != models.StatusActive {
		writeError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Account is inactive", nil)
		return
	}

	accessToken, err := h.Tokens.IssueAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		h.respondError(c, err)
		return
	}
	refreshToken, err := h.Tokens.IssueRefreshToken(user.ID, user.Email)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.Store.SaveRefreshToken(ctx, user.ID, refreshToken); err != nil {
		h.respondError(c, err)
		return
	}

	h.setRefreshCookie(c, refreshToken)
	c.JSON(http.StatusOK, gin.H{"token": accessToken, "user": user})
}

// @Summary Exchange refresh cookie for a new access token
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 401 {object} map[string]any
// @Router /api/auth/refresh [post]
func (h *Handler) Refresh(c *gin.Context) {
	tokenString, err := c.Cookie(refreshCookie)
	if err != nil || tokenString == "" {
		writeError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Missing refresh token", nil)
		return
	}

	claims, err := h.Tokens.VerifyRefresh(tokenString)
	if err != nil {
		writeError(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid refresh token", nil)
		return
	}

	ctx := c.Request.Context()
	exists, err := h.Store.RefreshTokenExists(ctx, tokenString)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !exists {
		writeError(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid refresh token", nil)
		return
	}

	// Re-read the profile so a role or status change since login takes
	// effect on the next access token.
	user, err := h.Store.GetUserByID(ctx, claims.UserID)
	if err != nil {
		writeError(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid refresh token", nil)
		return
	}
	if user.Status != models.StatusActive {
		writeError(c, http.StatusUnauthorized, "INVALID_TOKEN", "Account is inactive", nil)
		return
	}

	accessToken, err := h.Tokens.IssueAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		h.respondError(c, err)
		return
	}

	// Rotate: the presented refresh token is retired and replaced.
	newRefresh, err := h.Tokens.IssueRefreshToken(user.ID, user.Email)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.Store.DeleteRefreshToken(ctx, tokenString); err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.Store.SaveRefreshToken(ctx, user.ID, newRefresh); err != nil {
		h.respondError(c, err)
		return
	}
	h.setRefreshCookie(c, newRefresh)

	c.JSON(http.StatusOK, gin.H{"token": accessToken})
}

// Logout always succeeds, even without a cookie.
func (h *Handler) Logout(c *gin.Context) {
	if tokenString, err := c.Cookie(refreshCookie); err == nil && tokenString != "" {
		if err := h.Store.DeleteRefreshToken(c.Request.Context(), tokenString); err != nil {
			h.Logger.Warn().Err(err).Msg("failed to delete refresh token")
		}
	}
	h.clearRefreshCookie(c)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *Handler) Me(c *gin.Context) {
	claims := middleware.ClaimsFrom(c)
	user, err := h.profile(c.Request.Context(), claims.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *Handler) setRefreshCookie(c *gin.Context, token string) {
	c.SetCookie(refreshCookie, token, int(h.Tokens.RefreshTTL().Seconds()), "/api/auth", h.CookieDomain, h.CookieSecure, true)
}

func (h *Handler) clearRefreshCookie(c *gin.Context) {
	c.SetCookie(refreshCookie, "", -1, "/api/auth", h.CookieDomain, h.CookieSecure, true)
}
