// Package handlers contains HTTP handler functions for the API.
//
// Go Pattern: Handlers in Gin receive a *gin.Context which provides:
// - Request data (params, query, body, headers)
// - Response methods (JSON, String, Status)
// - Middleware data (c.Get/c.Set)
//
// Related handlers hang off one Handler struct that holds the shared
// dependencies. Outbound collaborators are interfaces so tests can swap in
// fakes.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Shimizu-Technology/docsight-api/internal/models"
	"github.com/Shimizu-Technology/docsight-api/internal/services/analysis"
	"github.com/Shimizu-Technology/docsight-api/internal/services/summary"
	"github.com/Shimizu-Technology/docsight-api/internal/services/worker"
	"github.com/Shimizu-Technology/docsight-api/internal/session"
)

// Analyzer is the external analysis backend.
type Analyzer interface {
	Outline(ctx context.Context, files []analysis.File) ([]analysis.OutlineEntry, error)
	ProcessPDFs(ctx context.Context, files []analysis.File, persona, job string) (*analysis.ProcessResult, error)
	FindSimilarSnippets(ctx context.Context, files []analysis.File, query, current string) ([]analysis.Snippet, error)
}

// Synthesizer turns text into mp3 audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Store persists chat history and the analysis run log.
type Store interface {
	HealthCheck(ctx context.Context) error
	CreateChatMessage(ctx context.Context, msg *models.ChatMessage) error
	ListChatMessages(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error)
	DeleteSessionData(ctx context.Context, sessionID string) error
	CreateAnalysisRun(ctx context.Context, run *models.AnalysisRun) error
	ListAnalysisRuns(ctx context.Context, sessionID string, limit int) ([]models.AnalysisRun, error)
}

// Settings are the handler-level configuration values.
type Settings struct {
	Version        string
	JWTSecret      string
	TokenTTL       time.Duration
	MaxUploadBytes int64
	ViewerClientID string
	Environment    string
	Model          string
}

// Deps are the dependencies of Handler. Store may be nil.
type Deps struct {
	Sessions *session.Manager
	Analysis Analyzer
	Summary  *summary.Service
	Speech   Synthesizer
	Worker   *worker.Pool
	Store    Store
	Logger   *zap.Logger
	Settings Settings
}

// Handler holds shared dependencies for all HTTP handlers.
type Handler struct {
	Sessions *session.Manager
	Analysis Analyzer
	Summary  *summary.Service
	Speech   Synthesizer
	Worker   *worker.Pool
	Store    Store

	settings Settings
	log      *zap.Logger
}

// NewHandler creates a new handler with all dependencies.
func NewHandler(d Deps) *Handler {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if d.Settings.MaxUploadBytes <= 0 {
		d.Settings.MaxUploadBytes = 50 << 20
	}
	if d.Settings.TokenTTL <= 0 {
		d.Settings.TokenTTL = 24 * time.Hour
	}
	return &Handler{
		Sessions: d.Sessions,
		Analysis: d.Analysis,
		Summary:  d.Summary,
		Speech:   d.Speech,
		Worker:   d.Worker,
		Store:    d.Store,
		settings: d.Settings,
		log:      log.Named("handlers"),
	}
}

// HealthCheck returns the API health status.
// GET /api/v1/health
func (h *Handler) HealthCheck(c *gin.Context) {
	dbStatus := "not configured"
	if h.Store != nil {
		dbStatus = "healthy"
		if err := h.Store.HealthCheck(c.Request.Context()); err != nil {
			dbStatus = "unhealthy: " + err.Error()
		}
	}

	c.JSON(http.StatusOK, models.HealthResponse{
		Status:   "ok",
		Version:  h.settings.Version,
		Database: dbStatus,
		Workers:  h.Worker.WorkerCount(),
		Sessions: h.Sessions.Count(),
	})
}
