package handlers

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quickdesk/backend/internal/auth"
	"github.com/quickdesk/backend/internal/cache"
	"github.com/quickdesk/backend/internal/db"
	"github.com/quickdesk/backend/internal/mail"
	"github.com/quickdesk/backend/internal/models"
)

// Store is the persistence seam the handlers are written against;
// *db.Store satisfies it, tests use in-memory fakes.
type Store interface {
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, u models.User) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUserByID(ctx context.Context, id int64) (models.User, error)
	EmailOrUsernameTaken(ctx context.Context, email, username string, excludeID int64) (bool, error)
	UpdateUser(ctx context.Context, u models.User) (models.User, error)
	UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error
	DeleteUser(ctx context.Context, id int64) (*string, error)
	ToggleUserStatus(ctx context.Context, id int64) (string, error)
	ListUsers(ctx context.Context, role string) ([]models.User, error)
	ListAgents(ctx context.Context) ([]models.Agent, error)
	GetAgent(ctx context.Context, id int64) (models.User, error)

	CreateTicket(ctx context.Context, t models.Ticket) (models.Ticket, error)
	GetTicket(ctx context.Context, id int64) (models.Ticket, error)
	ListTickets(ctx context.Context, f db.TicketFilter) ([]models.Ticket, int, error)
	AssignTicket(ctx context.Context, ticketID, agentID int64) (models.Ticket, string, error)
	UpdateTicketStatus(ctx context.Context, ticketID int64, status string) (models.Ticket, error)
	EscalateTicket(ctx context.Context, ticketID int64) (models.Ticket, error)
	TicketStats(ctx context.Context) (models.TicketStats, error)

	AddComment(ctx context.Context, cm models.Comment) (models.Comment, error)
	ListComments(ctx context.Context, ticketID int64) ([]models.Comment, error)
	EditComment(ctx context.Context, id int64, message string) (models.Comment, error)
	DeleteComment(ctx context.Context, id int64) error
	AssignedTicketIDs(ctx context.Context, userID int64) ([]int64, error)
	CountUnreadComments(ctx context.Context, ticketIDs []int64, userID int64) (int, error)

	SaveRefreshToken(ctx context.Context, userID int64, token string) error
	RefreshTokenExists(ctx context.Context, token string) (bool, error)
	DeleteRefreshToken(ctx context.Context, token string) error
	DeleteRefreshTokensForUser(ctx context.Context, userID int64) error
	CreatePasswordReset(ctx context.Context, userID int64, token string, expiresAt time.Time) error
	ConsumePasswordReset(ctx context.Context, token string) (int64, error)
}

type Handler struct {
	Store     Store
	Tokens    *auth.Manager
	Mailer    mail.Mailer
	Cache     *cache.Client
	Validator *validator.Validate
	Logger    zerolog.Logger

	UploadDir    string
	AdminEmail   string
	ResetBaseURL string
	BcryptCost   int
	CookieDomain string
	CookieSecure bool
}

const (
	profileCacheTTL = 5 * time.Minute
	unreadCacheTTL  = 30 * time.Second
)

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

// respondError is the single translation layer from store errors to HTTP.
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Resource not found", nil)
	case errors.Is(err, db.ErrConflict):
		writeError(c, http.StatusConflict, "CONFLICT", "Resource conflict", nil)
	case errors.Is(err, db.ErrInvalidParent):
		writeError(c, http.StatusBadRequest, "INVALID_PARENT", "Parent comment belongs to another ticket", nil)
	default:
		h.Logger.Error().Err(err).Str("path", c.FullPath()).Msg("store error")
		writeError(c, http.StatusInternalServerError, "INTERNAL", "Internal error", nil)
	}
}

// mapStatusFilter translates the front end's display vocabulary onto stored
// ticket statuses. Stored values pass through unchanged.
func mapStatusFilter(value string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		return "", true
	case "open", "new":
		return models.TicketOpen, true
	case "pending", "in_progress":
		return models.TicketInProgress, true
	case "closed", "resolved":
		return models.TicketClosed, true
	default:
		return "", false
	}
}

// saveUpload writes a multipart file under the upload dir with a generated
// name and returns its relative URL.
func (h *Handler) saveUpload(c *gin.Context, file *multipart.FileHeader, subdir string) (string, error) {
	dir := filepath.Join(h.UploadDir, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	name := uuid.NewString() + strings.ToLower(filepath.Ext(file.Filename))
	if err := c.SaveUploadedFile(file, filepath.Join(dir, name)); err != nil {
		return "", err
	}
	return "/" + filepath.ToSlash(filepath.Join("uploads", subdir, name)), nil
}

// removeUpload deletes a previously stored file given its relative URL.
// Best effort: a missing file is not an error worth surfacing.
func (h *Handler) removeUpload(relURL string) {
	trimmed := strings.TrimPrefix(relURL, "/")
	if !strings.HasPrefix(trimmed, "uploads/") {
		return
	}
	path := filepath.Join(h.UploadDir, strings.TrimPrefix(trimmed, "uploads/"))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		h.Logger.Warn().Err(err).Str("path", path).Msg("failed to remove upload")
	}
}

func profileCacheKey(userID int64) string {
	return fmt.Sprintf("user_profile:%d", userID)
}

func unreadCacheKey(userID int64) string {
	return fmt.Sprintf("unread_count:%d", userID)
}

// profile fetches the caller's user row through the cache.
func (h *Handler) profile(ctx context.Context, userID int64) (models.User, error) {
	key := profileCacheKey(userID)
	var cached models.User
	if err := h.Cache.Get(ctx, key, &cached); err == nil {
		return cached, nil
	}
	user, err := h.Store.GetUserByID(ctx, userID)
	if err != nil {
		return models.User{}, err
	}
	if err := h.Cache.Set(ctx, key, user, profileCacheTTL); err != nil {
		h.Logger.Warn().Err(err).Msg("failed to cache profile")
	}
	return user, nil
}

func (h *Handler) invalidateProfile(ctx context.Context, userID int64) {
	if err := h.Cache.Delete(ctx, profileCacheKey(userID)); err != nil {
		h.Logger.Warn().Err(err).Msg("failed to invalidate profile cache")
	}
}

func (h *Handler) invalidateUnread(ctx context.Context, userID *int64) {
	if userID == nil {
		return
	}
	if err := h.Cache.Delete(ctx, unreadCacheKey(*userID)); err != nil {
		h.Logger.Warn().Err(err).Msg("failed to invalidate unread cache")
	}
}
