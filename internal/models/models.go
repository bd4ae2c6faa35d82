// Package models defines the request, response and persisted record types.
//
// Go Pattern: Models are plain structs with JSON tags for serialization.
// The `db` tags work with sqlx for database column mapping; the `binding`
// tags are checked by gin's ShouldBindJSON before a handler runs.
package models

import (
	"encoding/json"
	"time"
)

// ErrorResponse is a standard error format for all API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Database string `json:"database"`
	Workers  int    `json:"workers"`
	Sessions int    `json:"sessions"`
}

// --- Sessions ---

// CreateSessionResponse is returned when a browser tab opens a session.
type CreateSessionResponse struct {
	SessionID string    `json:"session_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ViewerConfigResponse tells the browser which viewer SDK client id to use.
type ViewerConfigResponse struct {
	ClientID    string `json:"client_id"`
	Environment string `json:"environment"`
	// Banner is set when no client id is configured for this deployment.
	Banner string `json:"banner,omitempty"`
}

// --- Viewer ---

// SelectRequest shows a page of a document. Page is 1-based.
type SelectRequest struct {
	Document string `json:"document" binding:"required"`
	Page     int    `json:"page"`
}

// HighlightRequest highlights an outline heading. Page is 0-based as the
// outline backend reports it.
type HighlightRequest struct {
	Document string `json:"document" binding:"required"`
	Text     string `json:"text" binding:"required"`
	Level    string `json:"level"`
	Page     int    `json:"page" binding:"min=0"`
}

// --- Analysis ---

// RecommendationRequest asks for persona-driven section recommendations.
type RecommendationRequest struct {
	Persona string `json:"persona" binding:"required"`
	Job     string `json:"job" binding:"required"`
	Top     int    `json:"top"`
}

// SnippetRequest searches for passages related to a selection.
type SnippetRequest struct {
	QueryText           string `json:"query_text" binding:"required"`
	CurrentDocumentName string `json:"current_document_name"`
}

// AskRequest is a question about the session's documents.
type AskRequest struct {
	Question string `json:"question" binding:"required"`
}

// AnswerResponse carries a markdown answer.
type AnswerResponse struct {
	Answer string `json:"answer"`
}

// --- Stateless routes ---

// SummarizeTextRequest is the body of POST /summarize-text.
type SummarizeTextRequest struct {
	Text string `json:"text" binding:"required"`
}

// SummaryResponse is returned by POST /summarize-text.
type SummaryResponse struct {
	Summary string `json:"summary"`
}

// AskTextRequest is a question about one page of text.
type AskTextRequest struct {
	Text     string `json:"text" binding:"required"`
	Question string `json:"question" binding:"required"`
}

// PodcastTextRequest is the JSON form of POST /generate-podcast.
type PodcastTextRequest struct {
	Text string `json:"text" binding:"required"`
}

// PodcastResponse carries base64-encoded audio.
type PodcastResponse struct {
	AudioContent string `json:"audioContent"`
	Format       string `json:"format"`
	Script       string `json:"script,omitempty"`
}

// --- Persistence ---

// ChatMessage is one turn of the per-session document chat.
type ChatMessage struct {
	ID        string    `json:"id" db:"id"`
	SessionID string    `json:"session_id" db:"session_id"`
	Role      string    `json:"role" db:"role"` // "user" or "assistant"
	Content   string    `json:"content" db:"content"`
	ModelUsed string    `json:"model_used,omitempty" db:"model_used"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// RunStatus is the outcome of an analysis run.
type RunStatus string

const (
	RunCompleted  RunStatus = "completed"
	RunFailed     RunStatus = "failed"
	RunSuperseded RunStatus = "superseded"
)

// AnalysisRun records one outbound analysis request of a session.
type AnalysisRun struct {
	ID           string          `json:"id" db:"id"`
	SessionID    string          `json:"session_id" db:"session_id"`
	Operation    string          `json:"operation" db:"operation"`
	Status       RunStatus       `json:"status" db:"status"`
	Documents    json.RawMessage `json:"documents" db:"documents"` // JSONB array of names
	ErrorMessage string          `json:"error_message,omitempty" db:"error_message"`
	DurationMS   int64           `json:"duration_ms" db:"duration_ms"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}
