package http

import (
	stdhttp "net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/coedit/coedit-server/internal/auth"
	"github.com/coedit/coedit-server/internal/config"
	"github.com/coedit/coedit-server/internal/core"
	"github.com/coedit/coedit-server/internal/store"
)

// NewServer builds the HTTP server: account and project REST endpoints plus
// the websocket endpoint bridging into the hub.
func NewServer(hub *core.Hub, authService *auth.Service, st store.Store, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(LoggerMiddleware(logger), gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", healthHandler)
	router.GET("/ws", gin.WrapH(NewWSHandler(hub, authService, logger)))

	apiHandlers := NewAPIHandlers(authService, logger)
	projectHandlers := NewProjectHandlers(st, logger)

	api := router.Group("/api")
	api.POST("/register", apiHandlers.Register)
	api.POST("/login", apiHandlers.Login)

	project := api.Group("/project")
	project.Use(AuthMiddleware(authService, logger))
	project.GET("/:projectId/name", projectHandlers.GetName)
	project.GET("/:projectId/initial-tabs", projectHandlers.GetInitialTabs)
	project.GET("/:projectId/live-users", projectHandlers.GetLiveUsers)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
