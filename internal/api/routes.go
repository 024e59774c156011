package api

import (
	"github.com/gin-gonic/gin"

	"github.com/euras-play/backend/internal/accounts"
	"github.com/euras-play/backend/internal/api/handlers"
	"github.com/euras-play/backend/internal/config"
	"github.com/euras-play/backend/internal/ledger"
	"github.com/euras-play/backend/internal/match"
	"github.com/euras-play/backend/internal/middleware"
	"github.com/euras-play/backend/internal/store"
)

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, st store.Store, cfg *config.Config) {
	router.Use(middleware.CORSMiddleware(cfg))
	router.Use(middleware.WebSocketCORSCheck(cfg))

	users := accounts.NewService(st)
	wagers := ledger.New(st, cfg.HouseEdgePercentage)
	mm := match.NewMatchmaker(st, cfg.MatchStaleness(), cfg.MatchScanLimit)
	sessions := match.NewSync(st)

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck)

		// Account endpoints
		auth := v1.Group("/auth")
		{
			auth.POST("/register", handlers.Register(users, cfg))
			auth.POST("/login", handlers.Login(users, cfg))
		}

		// Authenticated player surface
		authed := v1.Group("")
		authed.Use(middleware.RequireAuth(cfg))
		{
			authed.GET("/user/:id", handlers.GetUser(users))
			authed.GET("/match/ws", handlers.MatchWebSocket(mm, users, wagers, cfg))
			authed.GET("/session/:id/ws", handlers.SessionWebSocket(sessions, users, wagers))
		}

		// Admin surface
		admin := v1.Group("/admin")
		admin.Use(middleware.RequireAdmin(cfg))
		{
			admin.GET("/queue", handlers.AdminListQueue(st))
			admin.GET("/sessions", handlers.AdminListSessions(st))
		}
	}
}
