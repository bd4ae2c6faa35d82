// sessions.go handles session lifecycle and the session event stream.
package handlers

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Shimizu-Technology/docsight-api/internal/middleware"
	"github.com/Shimizu-Technology/docsight-api/internal/models"
	"github.com/Shimizu-Technology/docsight-api/internal/session"
)

// sessionView is the JSON form of a session.
type sessionView struct {
	SessionID string                 `json:"session_id"`
	CreatedAt time.Time              `json:"created_at"`
	Documents []session.DocumentInfo `json:"documents"`
	Viewer    session.Snapshot       `json:"viewer"`
}

// CreateSession opens a new document session for a browser tab.
// POST /api/v1/sessions
func (h *Handler) CreateSession(c *gin.Context) {
	s := h.Sessions.Create()
	token, expiresAt, err := middleware.GenerateSessionToken(s.ID, h.settings.JWTSecret, h.settings.TokenTTL)
	if err != nil {
		h.Sessions.Delete(s.ID)
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.CreateSessionResponse{
		SessionID: s.ID,
		Token:     token,
		ExpiresAt: expiresAt,
	})
}

// GetSession returns the session's documents and viewer state.
// GET /api/v1/session
func (h *Handler) GetSession(c *gin.Context) {
	s := middleware.GetSession(c)
	c.JSON(http.StatusOK, sessionView{
		SessionID: s.ID,
		CreatedAt: s.CreatedAt,
		Documents: s.Documents(),
		Viewer:    s.Viewer(),
	})
}

// DeleteSession closes the session, revoking every preview, and drops its
// stored history.
// DELETE /api/v1/session
func (h *Handler) DeleteSession(c *gin.Context) {
	s := middleware.GetSession(c)
	h.Sessions.Delete(s.ID)

	if h.Store != nil {
		if err := h.Store.DeleteSessionData(c.Request.Context(), s.ID); err != nil {
			h.log.Warn("failed to delete session data", zap.String("session", s.ID), zap.Error(err))
		}
	}
	c.Status(http.StatusNoContent)
}

// sessionEvent is one server-sent event.
type sessionEvent struct {
	name string
	data any
}

// SessionEvents streams files and viewer changes as server-sent events. The
// current state is sent first.
// GET /api/v1/session/events
func (h *Handler) SessionEvents(c *gin.Context) {
	s := middleware.GetSession(c)

	events := make(chan sessionEvent, 32)
	push := func(ev sessionEvent) {
		select {
		case events <- ev:
		default:
			h.log.Warn("event stream lagging, event dropped", zap.String("session", s.ID), zap.String("event", ev.name))
		}
	}
	unsubFiles := s.FilesChanged.Subscribe(func(ev session.FilesChanged) {
		push(sessionEvent{name: "files", data: ev})
	})
	defer unsubFiles()
	unsubViewer := s.ViewerChanged.Subscribe(func(snap session.Snapshot) {
		push(sessionEvent{name: "viewer", data: snap})
	})
	defer unsubViewer()

	names := make([]string, 0)
	for _, d := range s.Documents() {
		names = append(names, d.Name)
	}
	push(sessionEvent{name: "files", data: session.FilesChanged{Documents: names}})
	push(sessionEvent{name: "viewer", data: s.Viewer()})

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	ctx := c.Request.Context()
	heartbeat := time.NewTicker(25 * time.Second)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		return h.nextEvent(ctx, c, events, heartbeat.C)
	})
}

func (h *Handler) nextEvent(ctx context.Context, c *gin.Context, events <-chan sessionEvent, heartbeat <-chan time.Time) bool {
	select {
	case <-ctx.Done():
		return false
	case ev := <-events:
		c.SSEvent(ev.name, ev.data)
		return true
	case <-heartbeat:
		c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
		return true
	}
}
