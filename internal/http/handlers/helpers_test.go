package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/quickdesk/backend/internal/auth"
	"github.com/quickdesk/backend/internal/http/middleware"
	"github.com/quickdesk/backend/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var errSMTP = errors.New("smtp: connection refused")

func itoa(id int64) string { return strconv.FormatInt(id, 10) }

type fakeMailer struct {
	resets      []string
	escalations []int64
	err         error
}

func (m *fakeMailer) SendPasswordReset(to, resetURL string) error {
	m.resets = append(m.resets, to)
	return m.err
}

func (m *fakeMailer) SendEscalationAlert(to, subject string, ticketID int64) error {
	m.escalations = append(m.escalations, ticketID)
	return m.err
}

func newTestHandler(t *testing.T) (*Handler, *fakeStore, *fakeMailer, *auth.Manager) {
	t.Helper()
	store := newFakeStore()
	mailer := &fakeMailer{}
	tokens := auth.NewManager("test-secret", 15*time.Minute, 7*24*time.Hour)
	h := &Handler{
		Store:        store,
		Tokens:       tokens,
		Mailer:       mailer,
		Validator:    validator.New(),
		Logger:       zerolog.Nop(),
		UploadDir:    t.TempDir(),
		AdminEmail:   "admin@quickdesk.test",
		ResetBaseURL: "http://localhost/reset-password",
		BcryptCost:   10,
	}
	return h, store, mailer, tokens
}

// testRouter wires the production route table against the test handler.
func testRouter(h *Handler, tokens *auth.Manager) *gin.Engine {
	r := gin.New()
	api := r.Group("/api")

	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)
	api.POST("/auth/refresh", h.Refresh)
	api.POST("/auth/logout", h.Logout)
	api.GET("/auth/me", middleware.Authenticate(tokens), h.Me)

	api.POST("/reset/requestReset", h.RequestReset)
	api.POST("/reset/reset-password", h.ResetPassword)

	authed := api.Group("", middleware.Authenticate(tokens))
	authed.GET("/tickets", h.TicketsList)
	authed.POST("/tickets", h.TicketCreate)
	authed.GET("/tickets/:id", h.TicketDetails)
	authed.PATCH("/tickets/:id/status", h.TicketStatus)
	authed.POST("/tickets/:id/comments", h.CommentAdd)
	authed.GET("/notifications/unread-count", h.UnreadCount)
	authed.PATCH("/tickets/:id/escalate", middleware.RequireRole(models.RoleAgent, models.RoleAdmin), h.TicketEscalate)
	authed.PATCH("/tickets/:id/assign", middleware.RequireRole(models.RoleAdmin), h.TicketAssign)

	admin := api.Group("/admin", middleware.Authenticate(tokens), middleware.RequireRole(models.RoleAdmin))
	admin.GET("/agents", h.AgentsList)
	admin.POST("/agents", h.AgentCreate)
	admin.GET("/agents/:id", h.AgentGet)
	admin.PUT("/agents/:id", h.UserUpdate)
	admin.DELETE("/agents/:id", h.UserDelete)
	admin.PATCH("/agents/:id/status", h.AgentToggleStatus)
	admin.GET("/users", h.UsersList)
	admin.PUT("/users/:id", h.UserUpdate)
	admin.DELETE("/users/:id", h.UserDelete)
	admin.GET("/stats", h.Stats)
	admin.PATCH("/comments/:id", h.CommentEdit)
	admin.DELETE("/comments/:id", h.CommentDelete)

	return r
}

// seedUser inserts a user with a real bcrypt hash and returns it.
func seedUser(t *testing.T, store *fakeStore, role, email, password string) models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u, err := store.CreateUser(context.Background(), models.User{
		Name:         "Test " + role,
		Email:        email,
		Username:     email,
		PasswordHash: string(hash),
		Role:         role,
		Status:       models.StatusActive,
		Department:   "support",
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func bearerFor(t *testing.T, tokens *auth.Manager, u models.User) string {
	t.Helper()
	token, err := tokens.IssueAccessToken(u.ID, u.Email, u.Role)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return "Bearer " + token
}

func doJSON(r *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return out
}
