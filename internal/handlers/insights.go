// insights.go handles the facts and podcast features for a session's
// documents.
package handlers

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/docsight-api/internal/middleware"
	"github.com/Shimizu-Technology/docsight-api/internal/models"
	"github.com/Shimizu-Technology/docsight-api/internal/services/summary"
	"github.com/Shimizu-Technology/docsight-api/internal/services/worker"
	"github.com/Shimizu-Technology/docsight-api/internal/session"
)

// SessionFacts extracts "did you know" facts from every session document.
// POST /api/v1/facts
func (h *Handler) SessionFacts(c *gin.Context) {
	s := middleware.GetSession(c)
	docs := documentTexts(h.log, s.Contents())
	if len(docs) == 0 {
		badRequest(c, "no_documents", "Upload at least one document first")
		return
	}

	var facts []summary.FileFacts
	err := h.superseding(c, s, session.OpFacts, func(ctx context.Context) error {
		return h.Worker.Do(ctx, worker.JobFacts, func(ctx context.Context) (err error) {
			facts, err = h.Summary.Facts(ctx, docs)
			return err
		})
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"facts": facts})
}

// SessionPodcast turns the session's documents into a short narrated summary.
// POST /api/v1/podcast
func (h *Handler) SessionPodcast(c *gin.Context) {
	s := middleware.GetSession(c)
	text := joinTexts(documentTexts(h.log, s.Contents()))
	if text == "" {
		badRequest(c, "no_documents", "Upload at least one document with text first")
		return
	}

	var resp models.PodcastResponse
	err := h.superseding(c, s, session.OpPodcast, func(ctx context.Context) (err error) {
		resp, err = h.podcast(ctx, text)
		return err
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// superseding runs fn as the session's current request of op.
func (h *Handler) superseding(c *gin.Context, s *session.Session, op session.Operation, fn func(ctx context.Context) error) error {
	ctx, ticket, release, err := s.Begin(c.Request.Context(), op)
	if err != nil {
		return err
	}
	defer release()

	if err := fn(ctx); err != nil {
		if !s.Current(ticket) {
			return session.ErrSuperseded
		}
		return err
	}
	return s.Commit(ticket, func() {})
}

// podcast writes a script for text and synthesizes it, as one worker job.
func (h *Handler) podcast(ctx context.Context, text string) (models.PodcastResponse, error) {
	var script string
	var audio []byte
	err := h.Worker.Do(ctx, worker.JobPodcast, func(ctx context.Context) (err error) {
		if script, err = h.Summary.PodcastScript(ctx, text); err != nil {
			return err
		}
		audio, err = h.Speech.Synthesize(ctx, script)
		return err
	})
	if err != nil {
		return models.PodcastResponse{}, err
	}
	return models.PodcastResponse{
		AudioContent: base64.StdEncoding.EncodeToString(audio),
		Format:       "mp3",
		Script:       script,
	}, nil
}

func joinTexts(docs []summary.DocumentText) string {
	var b strings.Builder
	for _, d := range docs {
		if strings.TrimSpace(d.Text) == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(d.Text)
	}
	return b.String()
}
