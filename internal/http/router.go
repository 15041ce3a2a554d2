package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/quickdesk/backend/internal/auth"
	"github.com/quickdesk/backend/internal/cache"
	"github.com/quickdesk/backend/internal/config"
	"github.com/quickdesk/backend/internal/db"
	"github.com/quickdesk/backend/internal/http/handlers"
	"github.com/quickdesk/backend/internal/http/middleware"
	"github.com/quickdesk/backend/internal/mail"
	"github.com/quickdesk/backend/internal/models"

	_ "github.com/quickdesk/backend/docs"
)

func Router(cfg config.Config, store *db.Store, tokens *auth.Manager, mailer mail.Mailer, cacheClient *cache.Client, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.MaxMultipartMemory = cfg.MaxUploadSizeMB << 20

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Store:        store,
		Tokens:       tokens,
		Mailer:       mailer,
		Cache:        cacheClient,
		Validator:    validator.New(),
		Logger:       logger,
		UploadDir:    cfg.UploadDir,
		AdminEmail:   cfg.AdminEmail,
		ResetBaseURL: cfg.ResetBaseURL,
		BcryptCost:   cfg.BcryptCost,
		CookieDomain: cfg.CookieDomain,
		CookieSecure: cfg.CookieSecure,
	}

	r.GET("/healthz", h.Healthz)
	r.Static("/uploads", cfg.UploadDir)

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
		authGroup.POST("/refresh", h.Refresh)
		authGroup.POST("/logout", h.Logout)
		authGroup.GET("/me", middleware.Authenticate(tokens), h.Me)
	}

	reset := api.Group("/reset")
	{
		reset.POST("/requestReset", h.RequestReset)
		reset.POST("/reset-password", h.ResetPassword)
	}

	authed := api.Group("")
	authed.Use(middleware.Authenticate(tokens))
	{
		authed.GET("/tickets", h.TicketsList)
		authed.POST("/tickets", h.TicketCreate)
		authed.GET("/tickets/:id", h.TicketDetails)
		authed.PATCH("/tickets/:id/status", h.TicketStatus)
		authed.POST("/tickets/:id/comments", h.CommentAdd)
		authed.GET("/notifications/unread-count", h.UnreadCount)

		authed.PATCH("/tickets/:id/escalate", middleware.RequireRole(models.RoleAgent, models.RoleAdmin), h.TicketEscalate)
		authed.PATCH("/tickets/:id/assign", middleware.RequireRole(models.RoleAdmin), h.TicketAssign)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.Authenticate(tokens), middleware.RequireRole(models.RoleAdmin))
	{
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
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
