package router

import (
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/medsurvey/internal/config"
	"github.com/stemsi/medsurvey/internal/handler"
	"github.com/stemsi/medsurvey/internal/middleware"
	"github.com/stemsi/medsurvey/internal/response"
	"github.com/stemsi/medsurvey/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Page   *handler.PageHandler
	Form   *handler.FormHandler
	WS     *handler.WSHandler
	System *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	tokens *service.TokenService,
	variant string,
	handlers *Handlers,
	limiter *middleware.RateLimiter,
	page *template.Template,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Retry-After"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.BrotliWithConfig(middleware.BrotliConfig{
		Quality:   middleware.DefaultBrotliConfig.Quality,
		MinLength: middleware.DefaultBrotliConfig.MinLength,
		// Stream frames are written by the WebSocket itself.
		Skipper: func(c *gin.Context) bool { return strings.HasPrefix(c.Request.URL.Path, "/ws/") },
	}))

	router.NoRoute(func(c *gin.Context) {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	})

	// ─── 0. Page + Health ──────────────────────────────────────────────
	router.SetHTMLTemplate(page)
	router.GET("/", middleware.CacheControl(300), handlers.Page.Survey)
	router.GET("/health", middleware.NoStore(), handlers.System.Health)

	// ─── 1. Public API ─────────────────────────────────────────────────
	api := router.Group("/api/v1")
	api.Use(middleware.NoStore())
	{
		api.GET("/definition", handlers.Form.GetDefinition)
		api.GET("/system/stats", handlers.System.Stats)
		api.POST("/forms", limiter.Middleware(), handlers.Form.OpenForm)
	}

	// ─── 2. Form Instance (Instance Token) ─────────────────────────────
	forms := api.Group("/forms/current")
	forms.Use(
		middleware.RequireFormToken(tokens),
		middleware.RequireCurrentVariant(variant),
	)
	{
		forms.GET("", handlers.Form.GetForm)
		forms.PUT("/fields/:key", handlers.Form.UpdateText)
		forms.PUT("/choices/:key", handlers.Form.SelectChoice)
		forms.POST("/submit", limiter.Middleware(), handlers.Form.Submit)
	}

	// ─── 3. WebSocket (Token In Query) ─────────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(
		middleware.RequireFormToken(tokens),
		middleware.RequireCurrentVariant(variant),
	)
	{
		ws.GET("/forms/stream", handlers.WS.FormStream)
	}

	return router
}
