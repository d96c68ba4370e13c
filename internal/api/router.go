package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"moldubot/pkg/otel"
	"moldubot/pkg/rbac"
)

// Pinger is the readiness probe target, e.g. *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Router struct {
	Engine *gin.Engine
}

func NewRouter(
	intentHandler *IntentHandler,
	chatHandler *ChatHandler,
	meetingHandler *MeetingHandler,
	adminHandler *AdminHandler,
	jwtSecret string,
	db Pinger,
) *Router {
	r := gin.New()
	r.Use(gin.Recovery(), TraceMiddleware(), otel.GinMiddleware(), MetricsMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	r.GET("/readyz", func(c *gin.Context) {
		if db == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ready"})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Protected
	auth := r.Group("/")
	auth.Use(AuthMiddleware(jwtSecret))
	{
		auth.POST("/intents/decompose", RequirePermission(rbac.PermissionDecomposeIntent), intentHandler.Decompose)
		auth.POST("/intents/context", RequirePermission(rbac.PermissionDecomposeIntent), intentHandler.Context)
		auth.POST("/intents/resolve", RequirePermission(rbac.PermissionDecomposeIntent), intentHandler.Resolve)

		auth.POST("/search/chat", RequirePermission(rbac.PermissionChat), chatHandler.Chat)
		auth.POST("/search/chat/confirm", RequirePermission(rbac.PermissionChat), chatHandler.Confirm)

		auth.GET("/api/meeting-rooms", RequirePermission(rbac.PermissionReadMeetingRoom), meetingHandler.ListRooms)
		auth.POST("/api/meeting-rooms/book", RequirePermission(rbac.PermissionBookMeetingRoom), meetingHandler.Book)

		if adminHandler != nil {
			auth.POST("/admin/outbox/replay-failed", RequirePermission(rbac.PermissionReplayOutbox), adminHandler.ReplayFailedEvents)
		}
	}

	return &Router{Engine: r}
}

// Handler exposes the engine for http.Server.
func (r *Router) Handler() http.Handler {
	return r.Engine
}

func (r *Router) Run(addr string) error {
	return r.Engine.Run(addr)
}
