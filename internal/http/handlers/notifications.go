package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quickdesk/backend/internal/http/middleware"
)

// @Summary Unread notification count
// @Description Comments on the caller's assigned tickets, by other authors,
// @Description newer than each ticket's last update. Derived, never stored.
// @Tags notifications
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/notifications/unread-count [get]
func (h *Handler) UnreadCount(c *gin.Context) {
	claims := middleware.ClaimsFrom(c)
	ctx := c.Request.Context()

	key := unreadCacheKey(claims.UserID)
	var cached int
	if err := h.Cache.Get(ctx, key, &cached); err == nil {
		c.JSON(http.StatusOK, gin.H{"unreadCount": cached})
		return
	}

	ids, err := h.Store.AssignedTicketIDs(ctx, claims.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	count := 0
	if len(ids) > 0 {
		count, err = h.Store.CountUnreadComments(ctx, ids, claims.UserID)
		if err != nil {
			h.respondError(c, err)
			return
		}
	}
	if err := h.Cache.Set(ctx, key, count, unreadCacheTTL); err != nil {
		h.Logger.Warn().Err(err).Msg("failed to cache unread count")
	}
	c.JSON(http.StatusOK, gin.H{"unreadCount": count})
}
