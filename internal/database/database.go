// Package database handles PostgreSQL connections and queries.
//
// Go Pattern: We use the `sqlx` package which extends Go's standard `database/sql`
// with convenient features like scanning rows into structs. You write raw SQL,
// and sqlx maps columns onto struct fields through `db` tags.
//
// The database is optional for this service: sessions live in memory, and
// only the chat history and the analysis run log are persisted.
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver; the underscore import runs its init()

	"github.com/Shimizu-Technology/docsight-api/internal/models"
)

// DB wraps the sqlx database connection with our application-specific methods.
type DB struct {
	*sqlx.DB
}

// New creates a new database connection with connection pooling configured.
func New(databaseURL string) (*DB, error) {
	// sqlx.Connect both opens the connection and pings the database
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(2 * time.Minute)
	db.SetConnMaxIdleTime(30 * time.Second)

	return &DB{db}, nil
}

// HealthCheck verifies the database connection is alive.
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.PingContext(ctx)
}

// --- Chat Operations ---

// CreateChatMessage inserts a chat message.
func (db *DB) CreateChatMessage(ctx context.Context, msg *models.ChatMessage) error {
	query := `
		INSERT INTO chat_messages (session_id, role, content, model_used)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`
	if err := db.QueryRowContext(ctx, query,
		msg.SessionID, msg.Role, msg.Content, msg.ModelUsed,
	).Scan(&msg.ID, &msg.CreatedAt); err != nil {
		return fmt.Errorf("failed to create chat message: %w", err)
	}
	return nil
}

// ListChatMessages returns the chat messages of a session, oldest first.
func (db *DB) ListChatMessages(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	messages := []models.ChatMessage{}
	err := db.SelectContext(ctx, &messages,
		`SELECT * FROM (
			SELECT * FROM chat_messages WHERE session_id = $1 ORDER BY created_at DESC LIMIT $2
		) recent ORDER BY created_at ASC`,
		sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	return messages, nil
}

// DeleteSessionData removes everything stored for a session.
func (db *DB) DeleteSessionData(ctx context.Context, sessionID string) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_messages WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("failed to delete chat messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM analysis_runs WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("failed to delete analysis runs: %w", err)
	}
	return tx.Commit()
}

// --- Analysis Run Operations ---

// CreateAnalysisRun records one outbound analysis request.
func (db *DB) CreateAnalysisRun(ctx context.Context, run *models.AnalysisRun) error {
	if run.Documents == nil {
		run.Documents = json.RawMessage("[]")
	}
	query := `
		INSERT INTO analysis_runs (session_id, operation, status, documents, error_message, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`
	if err := db.QueryRowContext(ctx, query,
		run.SessionID, run.Operation, run.Status, string(run.Documents), run.ErrorMessage, run.DurationMS,
	).Scan(&run.ID, &run.CreatedAt); err != nil {
		return fmt.Errorf("failed to create analysis run: %w", err)
	}
	return nil
}

// ListAnalysisRuns returns the most recent runs of a session, newest first.
func (db *DB) ListAnalysisRuns(ctx context.Context, sessionID string, limit int) ([]models.AnalysisRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	runs := []models.AnalysisRun{}
	err := db.SelectContext(ctx, &runs,
		`SELECT * FROM analysis_runs WHERE session_id = $1 ORDER BY created_at DESC LIMIT $2`,
		sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list analysis runs: %w", err)
	}
	return runs, nil
}
