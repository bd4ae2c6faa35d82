// Package router sets up all HTTP routes for the API.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Shimizu-Technology/docsight-api/internal/config"
	"github.com/Shimizu-Technology/docsight-api/internal/handlers"
	"github.com/Shimizu-Technology/docsight-api/internal/middleware"
)

// Options are the router-level settings.
type Options struct {
	JWTSecret      string
	AllowedOrigins []string
	RateLimiter    *middleware.RateLimiter
	Logger         *zap.Logger
}

// Setup creates and configures the Gin router with all routes.
func Setup(h *handlers.Handler, opts Options) *gin.Engine {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(log.Named("http")))
	r.Use(middleware.Metrics())
	// cors.New panics on an empty origin list.
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{config.DefaultCORSOrigin}
	}
	r.Use(middleware.CORS(origins))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API documentation
	r.GET("/api/docs", h.ServeSwaggerUI)
	r.GET("/api/docs/openapi.yaml", h.ServeOpenAPISpec)

	// --- Public Routes (no session required) ---
	api := r.Group("/api/v1")
	{
		api.GET("/health", h.HealthCheck)
		api.POST("/sessions", h.CreateSession)
		api.GET("/viewer/config", h.ViewerConfig)

		// Preview URLs are opened by the viewer and by new tabs, which carry
		// no Authorization header; the token in the path is the capability.
		api.GET("/previews/:session/:token", h.ServePreview)
	}

	// --- Session Routes ---
	protected := r.Group("/api/v1")
	protected.Use(middleware.SessionAuth(h.Sessions, opts.JWTSecret))
	if opts.RateLimiter != nil {
		protected.Use(opts.RateLimiter.RateLimit())
	}
	{
		protected.GET("/session", h.GetSession)
		protected.DELETE("/session", h.DeleteSession)
		protected.GET("/session/events", h.SessionEvents)

		// File set
		protected.POST("/documents", h.UploadDocuments)
		protected.GET("/documents", h.ListDocuments)
		protected.DELETE("/documents", h.ClearDocuments)
		protected.GET("/documents/resolve", h.ResolveDocument)
		protected.DELETE("/documents/:name", h.DeleteDocument)

		// Viewer synchronizer
		protected.GET("/viewer", h.GetViewer)
		protected.DELETE("/viewer", h.ClearViewer)
		protected.POST("/viewer/select", h.SelectViewer)
		protected.POST("/viewer/highlight", h.HighlightHeading)

		// Analysis backend
		protected.POST("/outline", h.CreateOutline)
		protected.GET("/outline", h.GetOutline)
		protected.GET("/outline/export", h.ExportOutline)
		protected.POST("/recommendations", h.CreateRecommendations)
		protected.GET("/recommendations", h.GetRecommendations)
		protected.GET("/recommendations/export", h.ExportRecommendations)
		protected.POST("/snippets", h.FindSnippets)
		protected.GET("/runs", h.ListRuns)

		// LLM features
		protected.POST("/ask", h.AskDocuments)
		protected.GET("/chat", h.ListChat)
		protected.POST("/facts", h.SessionFacts)
		protected.POST("/podcast", h.SessionPodcast)
	}

	// --- Stateless Routes (browser extension) ---
	r.POST("/summarize-text", h.SummarizeText)
	r.POST("/ask", h.AskText)
	r.POST("/ask-pdf", h.AskPDF)
	r.POST("/facts", h.Facts)
	r.POST("/generate-podcast", h.GeneratePodcast)

	return r
}
