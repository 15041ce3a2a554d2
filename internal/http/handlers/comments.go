package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/quickdesk/backend/internal/http/middleware"
	"github.com/quickdesk/backend/internal/models"
)

type AddCommentRequest struct {
	Message  string `json:"message" form:"message" validate:"required"`
	ParentID *int64 `json:"parent_id" form:"parent_id"`
}

// @Summary Comment on a ticket
// @Tags comments
// @Accept json
// @Accept multipart/form-data
// @Produce json
// @Success 201 {object} models.Comment
// @Failure 404 {object} map[string]any
// @Router /api/tickets/{id}/comments [post]
func (h *Handler) CommentAdd(c *gin.Context) {
	claims := middleware.ClaimsFrom(c)
	ticketID, ok := pathID(c)
	if !ok {
		return
	}

	var req AddCommentRequest
	if err := c.ShouldBind(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}
	if req.ParentID == nil {
		if raw := c.PostForm("parent_id"); raw != "" {
			parsed, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid parent_id", nil)
				return
			}
			req.ParentID = &parsed
		}
	}

	ctx := c.Request.Context()
	ticket, err := h.Store.GetTicket(ctx, ticketID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !h.canViewTicket(c, claims, ticket) {
		return
	}

	var attachment *string
	if file, err := c.FormFile("file"); err == nil {
		url, err := h.saveUpload(c, file, "comments")
		if err != nil {
			h.respondError(c, err)
			return
		}
		attachment = &url
	}

	comment, err := h.Store.AddComment(ctx, models.Comment{
		TicketID:   ticketID,
		UserID:     claims.UserID,
		Message:    req.Message,
		ParentID:   req.ParentID,
		Attachment: attachment,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	// A fresh comment changes the assignee's derived unread count.
	if ticket.AssignedTo != nil && *ticket.AssignedTo != claims.UserID {
		h.invalidateUnread(ctx, ticket.AssignedTo)
	}
	c.JSON(http.StatusCreated, comment)
}

type EditCommentRequest struct {
	Message string `json:"message" validate:"required"`
}

func (h *Handler) CommentEdit(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req EditCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	comment, err := h.Store.EditComment(c.Request.Context(), id, req.Message)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

func (h *Handler) CommentDelete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.Store.DeleteComment(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "comment deleted"})
}
