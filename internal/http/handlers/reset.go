package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/quickdesk/backend/internal/auth"
	"github.com/quickdesk/backend/internal/db"
)

const resetTokenTTL = time.Hour

type RequestResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// RequestReset answers 200 whether or not the email is registered, so the
// endpoint cannot be used to enumerate accounts.
func (h *Handler) RequestReset(c *gin.Context) {
	var req RequestResetRequest
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
		if !errors.Is(err, db.ErrNotFound) {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "If the account exists, a reset link has been sent"})
		return
	}

	token := uuid.NewString()
	if err := h.Store.CreatePasswordReset(ctx, user.ID, token, time.Now().Add(resetTokenTTL)); err != nil {
		h.respondError(c, err)
		return
	}

	resetURL := fmt.Sprintf("%s?token=%s", h.ResetBaseURL, token)
	if err := h.Mailer.SendPasswordReset(user.Email, resetURL); err != nil {
		h.Logger.Warn().Err(err).Int64("user_id", user.ID).Msg("reset mail failed")
	}
	c.JSON(http.StatusOK, gin.H{"message": "If the account exists, a reset link has been sent"})
}

type ResetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=6"`
}

// ResetPassword consumes the token, rewrites the hash and revokes every
// outstanding refresh token for the account.
func (h *Handler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	ctx := c.Request.Context()
	userID, err := h.Store.ConsumePasswordReset(ctx, req.Token)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(c, http.StatusBadRequest, "INVALID_TOKEN", "Invalid or expired reset token", nil)
			return
		}
		h.respondError(c, err)
		return
	}

	hash, err := auth.HashPassword(req.Password, h.BcryptCost)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.Store.UpdateUserPassword(ctx, userID, hash); err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.Store.DeleteRefreshTokensForUser(ctx, userID); err != nil {
		h.Logger.Warn().Err(err).Int64("user_id", userID).Msg("failed to revoke sessions after reset")
	}
	c.JSON(http.StatusOK, gin.H{"message": "password updated"})
}
