package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/quickdesk/backend/internal/auth"
	"github.com/quickdesk/backend/internal/db"
	"github.com/quickdesk/backend/internal/http/middleware"
	"github.com/quickdesk/backend/internal/models"
)

// @Summary List tickets
// @Tags tickets
// @Produce json
// @Param status query string false "Open|Pending|Closed"
// @Param search query string false "substring match on subject/description"
// @Param page query int false "page, 1-based"
// @Param limit query int false "page size"
// @Success 200 {object} map[string]any
// @Router /api/tickets [get]
func (h *Handler) TicketsList(c *gin.Context) {
	claims := middleware.ClaimsFrom(c)

	status, ok := mapStatusFilter(c.Query("status"))
	if !ok {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown status filter", nil)
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	filter := db.TicketFilter{
		Status:     status,
		Search:     strings.TrimSpace(c.Query("search")),
		Page:       page,
		Limit:      limit,
		CallerID:   claims.UserID,
		CallerRole: claims.Role,
	}
	if claims.Role == models.RoleAgent {
		user, err := h.profile(c.Request.Context(), claims.UserID)
		if err != nil {
			h.respondError(c, err)
			return
		}
		filter.Department = user.Department
	}

	tickets, total, err := h.Store.ListTickets(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if tickets == nil {
		tickets = []models.Ticket{}
	}
	c.JSON(http.StatusOK, gin.H{
		"tickets": tickets,
		"total":   total,
		"page":    filter.Page,
		"limit":   filter.Limit,
	})
}

type CreateTicketRequest struct {
	Subject     string `json:"subject" form:"subject" validate:"required"`
	Description string `json:"description" form:"description" validate:"required"`
	Priority    string `json:"priority" form:"priority" validate:"required"`
	Department  string `json:"department" form:"department"`
}

// @Summary Create a ticket
// @Tags tickets
// @Accept json
// @Accept multipart/form-data
// @Produce json
// @Success 201 {object} models.Ticket
// @Router /api/tickets [post]
func (h *Handler) TicketCreate(c *gin.Context) {
	claims := middleware.ClaimsFrom(c)

	var req CreateTicketRequest
	if err := c.ShouldBind(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}
	if !models.ValidPriority(req.Priority) {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Priority must be low, medium or high", nil)
		return
	}

	ctx := c.Request.Context()
	if req.Department == "" {
		user, err := h.profile(ctx, claims.UserID)
		if err != nil {
			h.respondError(c, err)
			return
		}
		req.Department = user.Department
	}

	var attachmentURL *string
	if file, err := c.FormFile("file"); err == nil {
		url, err := h.saveUpload(c, file, "tickets")
		if err != nil {
			h.respondError(c, err)
			return
		}
		attachmentURL = &url
	}

	ticket, err := h.Store.CreateTicket(ctx, models.Ticket{
		Subject:       strings.TrimSpace(req.Subject),
		Description:   req.Description,
		Priority:      req.Priority,
		CreatedBy:     claims.UserID,
		Department:    req.Department,
		AttachmentURL: attachmentURL,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ticket)
}

func (h *Handler) TicketDetails(c *gin.Context) {
	claims := middleware.ClaimsFrom(c)
	id, ok := pathID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	ticket, err := h.Store.GetTicket(ctx, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !h.canViewTicket(c, claims, ticket) {
		return
	}

	comments, err := h.Store.ListComments(ctx, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if comments == nil {
		comments = []models.Comment{}
	}
	c.JSON(http.StatusOK, gin.H{"ticket": ticket, "comments": comments})
}

type AssignRequest struct {
	AgentID int64 `json:"agent_id" validate:"required"`
}

// @Summary Assign a ticket to an agent
// @Tags tickets
// @Accept json
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Router /api/tickets/{id}/assign [patch]
func (h *Handler) TicketAssign(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	ctx := c.Request.Context()
	ticket, agentName, err := h.Store.AssignTicket(ctx, id, req.AgentID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.invalidateUnread(ctx, &req.AgentID)
	c.JSON(http.StatusOK, gin.H{"assigned_to_name": agentName, "ticket": ticket})
}

type StatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// TicketStatus is scoped like reads: whoever may not view a ticket may
// not change its status either.
func (h *Handler) TicketStatus(c *gin.Context) {
	claims := middleware.ClaimsFrom(c)
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if !models.ValidTicketStatus(req.Status) {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Status must be open, in_progress or closed", nil)
		return
	}

	ctx := c.Request.Context()
	current, err := h.Store.GetTicket(ctx, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !h.canViewTicket(c, claims, current) {
		return
	}

	ticket, err := h.Store.UpdateTicketStatus(ctx, id, req.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.invalidateUnread(ctx, ticket.AssignedTo)
	c.JSON(http.StatusOK, ticket)
}

// TicketEscalate flags the ticket and notifies an admin by mail. The mail
// is best effort: a delivery failure is logged, never surfaced.
func (h *Handler) TicketEscalate(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	ticket, err := h.Store.EscalateTicket(ctx, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.invalidateUnread(ctx, ticket.AssignedTo)

	if h.AdminEmail != "" {
		if err := h.Mailer.SendEscalationAlert(h.AdminEmail, ticket.Subject, ticket.ID); err != nil {
			h.Logger.Warn().Err(err).Int64("ticket_id", ticket.ID).Msg("escalation mail failed")
		}
	}
	c.JSON(http.StatusOK, ticket)
}

// canViewTicket enforces role scoping on single-ticket reads: users see
// their own tickets; agents see tickets assigned to them or unassigned in
// their department; admins see everything. Writes a 403 itself on denial.
func (h *Handler) canViewTicket(c *gin.Context, claims *auth.Claims, ticket models.Ticket) bool {
	switch claims.Role {
	case models.RoleAdmin:
		return true
	case models.RoleAgent:
		if ticket.AssignedTo != nil && *ticket.AssignedTo == claims.UserID {
			return true
		}
		user, err := h.profile(c.Request.Context(), claims.UserID)
		if err == nil && ticket.AssignedTo == nil && ticket.Department == user.Department {
			return true
		}
	default:
		if ticket.CreatedBy == claims.UserID {
			return true
		}
	}
	writeError(c, http.StatusForbidden, "FORBIDDEN", "No access to this ticket", nil)
	return false
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid id", nil)
		return 0, false
	}
	return id, true
}
