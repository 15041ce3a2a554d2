package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/quickdesk/backend/internal/auth"
	"github.com/quickdesk/backend/internal/models"
)

// @Summary List agents with workload
// @Tags admin
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/admin/agents [get]
func (h *Handler) AgentsList(c *gin.Context) {
	agents, err := h.Store.ListAgents(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	if agents == nil {
		agents = []models.Agent{}
	}
	c.JSON(http.StatusOK, gin.H{"agents": agents})
}

type CreateAgentRequest struct {
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Username   string `json:"username"`
	Password   string `json:"password" validate:"required,min=6"`
	Department string `json:"department"`
}

func (h *Handler) AgentCreate(c *gin.Context) {
	var req CreateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
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
	agent, err := h.Store.CreateUser(ctx, models.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: hash,
		Role:         models.RoleAgent,
		Status:       models.StatusActive,
		Department:   req.Department,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, agent)
}

func (h *Handler) AgentGet(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	agent, err := h.Store.GetAgent(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, agent)
}

// UserUpdate handles PUT for both agents and users: profile fields plus an
// optional avatar file, which replaces and deletes the previous one.
func (h *Handler) UserUpdate(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	user, err := h.Store.GetUserByID(ctx, id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	name := c.PostForm("name")
	email := c.PostForm("email")
	username := c.PostForm("username")
	department := c.PostForm("department")
	role := c.PostForm("role")
	if c.ContentType() == "application/json" {
		var body struct {
			Name       string `json:"name"`
			Email      string `json:"email"`
			Username   string `json:"username"`
			Department string `json:"department"`
			Role       string `json:"role"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
			return
		}
		name, email, username, department, role = body.Name, body.Email, body.Username, body.Department, body.Role
	}

	if name != "" {
		user.Name = strings.TrimSpace(name)
	}
	if email != "" {
		user.Email = email
	}
	if username != "" {
		user.Username = username
	}
	if department != "" {
		user.Department = department
	}
	if role != "" {
		if !models.ValidRole(role) {
			writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown role", nil)
			return
		}
		user.Role = role
	}

	taken, err := h.Store.EmailOrUsernameTaken(ctx, user.Email, user.Username, user.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if taken {
		writeError(c, http.StatusConflict, "CONFLICT", "Email or username already in use", nil)
		return
	}

	var oldAvatar *string
	if file, err := c.FormFile("avatar"); err == nil {
		url, err := h.saveUpload(c, file, "avatars")
		if err != nil {
			h.respondError(c, err)
			return
		}
		oldAvatar = user.AvatarPath
		user.AvatarPath = &url
	}

	updated, err := h.Store.UpdateUser(ctx, user)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if oldAvatar != nil {
		h.removeUpload(*oldAvatar)
	}
	h.invalidateProfile(ctx, updated.ID)
	c.JSON(http.StatusOK, updated)
}

// UserDelete removes the account and its avatar file. A user who still
// owns tickets cannot be deleted (created_by is ON DELETE RESTRICT) and
// comes back as a 409.
func (h *Handler) UserDelete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	avatar, err := h.Store.DeleteUser(ctx, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if avatar != nil {
		h.removeUpload(*avatar)
	}
	if err := h.Store.DeleteRefreshTokensForUser(ctx, id); err != nil {
		h.Logger.Warn().Err(err).Int64("user_id", id).Msg("failed to revoke sessions")
	}
	h.invalidateProfile(ctx, id)
	c.JSON(http.StatusOK, gin.H{"message": "user deleted"})
}

func (h *Handler) AgentToggleStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	status, err := h.Store.ToggleUserStatus(ctx, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.invalidateProfile(ctx, id)
	c.JSON(http.StatusOK, gin.H{"status": status})
}

func (h *Handler) UsersList(c *gin.Context) {
	role := c.Query("role")
	if role != "" && !models.ValidRole(role) {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown role", nil)
		return
	}
	users, err := h.Store.ListUsers(c.Request.Context(), role)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// @Summary Ticket KPI counters
// @Tags admin
// @Produce json
// @Success 200 {object} models.TicketStats
// @Router /api/admin/stats [get]
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.Store.TicketStats(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
