package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-candidate/internal/config"
	"github.com/stemsi/exstem-candidate/internal/handler"
	"github.com/stemsi/exstem-candidate/internal/middleware"
	"github.com/stemsi/exstem-candidate/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Session *handler.SessionHandler
	Proctor *handler.ProctorHandler
	System  *handler.SystemHandler
	Metrics http.Handler
}

// SetupRouter configures the control API consumed by the kiosk UI.
func SetupRouter(handlers *Handlers, cfg *config.Config, log zerolog.Logger) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.LocalOnly())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})
	if handlers.Metrics != nil {
		router.GET("/metrics", gin.WrapH(handlers.Metrics))
	}

	// Submit is rate limited so a double tap cannot queue duplicate
	// submissions (5 requests per 10 seconds).
	submitLimiter := middleware.NewRateLimiter(5, 10*time.Second)

	// ─── 1. Session Group ──────────────────────────────────────────────
	sessionAPI := router.Group("/api/v1/session")
	sessionAPI.Use(middleware.NoStore())
	{
		sessionAPI.GET("", handlers.Session.GetState)
		sessionAPI.GET("/stream", handlers.System.SessionStream)
		sessionAPI.GET("/questions/:index", handlers.Session.GetQuestion)
		sessionAPI.GET("/languages", handlers.Session.GetLanguages)
		sessionAPI.GET("/summary", handlers.Session.GetSummary)

		sessionAPI.POST("/goto", handlers.Session.GoTo)
		sessionAPI.POST("/next", handlers.Session.Next)
		sessionAPI.POST("/prev", handlers.Session.Prev)
		sessionAPI.POST("/answer", handlers.Session.Answer)
		sessionAPI.POST("/review", handlers.Session.ToggleReview)
		sessionAPI.POST("/submit", submitLimiter.Middleware(), handlers.Session.Submit)
		sessionAPI.POST("/lifecycle", handlers.Session.Lifecycle)
		sessionAPI.POST("/leave", handlers.Session.Leave)
	}

	// ─── 2. Proctor Group ──────────────────────────────────────────────
	proctorAPI := router.Group("/api/v1/proctor")
	{
		proctorAPI.GET("/captures", handlers.Proctor.ListCaptures)
		proctorAPI.GET("/preview", handlers.Proctor.Preview)
	}

	// ─── 3. System Group ───────────────────────────────────────────────
	systemAPI := router.Group("/api/v1/system")
	{
		systemAPI.GET("/status", handlers.System.Status)
	}

	return router
}
