// chat.go handles questions about the session's documents and the chat
// history.
package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Shimizu-Technology/docsight-api/internal/middleware"
	"github.com/Shimizu-Technology/docsight-api/internal/models"
	"github.com/Shimizu-Technology/docsight-api/internal/services/pdf"
	"github.com/Shimizu-Technology/docsight-api/internal/services/summary"
	"github.com/Shimizu-Technology/docsight-api/internal/services/worker"
	"github.com/Shimizu-Technology/docsight-api/internal/session"
)

// AskDocuments answers a question from the session's documents in markdown.
// A newer question supersedes an unanswered older one.
// POST /api/v1/ask
func (h *Handler) AskDocuments(c *gin.Context) {
	var req models.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Question) == "" {
		badRequest(c, "invalid_request", "Provide a non-empty 'question'")
		return
	}

	s := middleware.GetSession(c)
	docs := documentTexts(h.log, s.Contents())
	if len(docs) == 0 {
		badRequest(c, "no_documents", "Upload at least one document first")
		return
	}

	var answer string
	err := h.superseding(c, s, session.OpAsk, func(ctx context.Context) error {
		return h.Worker.Do(ctx, worker.JobAsk, func(ctx context.Context) (err error) {
			answer, err = h.Summary.AskDocuments(ctx, docs, req.Question)
			return err
		})
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.saveChat(c, s.ID, req.Question, answer)
	c.JSON(http.StatusOK, models.AnswerResponse{Answer: answer})
}

// ListChat returns the session's chat history, oldest first.
// GET /api/v1/chat
func (h *Handler) ListChat(c *gin.Context) {
	if h.Store == nil {
		c.JSON(http.StatusOK, gin.H{"messages": []models.ChatMessage{}})
		return
	}
	messages, err := h.Store.ListChatMessages(c.Request.Context(), middleware.GetSession(c).ID, 50)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// saveChat persists a question and its answer. Failures are logged only: the
// user already has the answer.
func (h *Handler) saveChat(c *gin.Context, sessionID, question, answer string) {
	if h.Store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), 5*time.Second)
	defer cancel()

	for _, msg := range []*models.ChatMessage{
		{SessionID: sessionID, Role: "user", Content: question},
		{SessionID: sessionID, Role: "assistant", Content: answer, ModelUsed: h.settings.Model},
	} {
		if err := h.Store.CreateChatMessage(ctx, msg); err != nil {
			h.log.Warn("failed to save chat message", zap.String("session", sessionID), zap.Error(err))
			return
		}
	}
}

// documentTexts extracts the text of every document. PDFs go through the
// extractor, plain text is used as is, anything else is skipped. A PDF that
// fails to parse yields empty text so it still shows up by name.
func documentTexts(log *zap.Logger, docs []*session.Document) []summary.DocumentText {
	out := make([]summary.DocumentText, 0, len(docs))
	for _, d := range docs {
		switch {
		case session.IsPDFType(d.ContentType):
			res, err := pdf.Extract(d.Bytes)
			if err != nil {
				log.Warn("text extraction failed", zap.String("document", d.Name), zap.Error(err))
				out = append(out, summary.DocumentText{Name: d.Name})
				continue
			}
			out = append(out, summary.DocumentText{Name: d.Name, Text: res.Text})
		case strings.HasPrefix(d.ContentType, "text/"):
			out = append(out, summary.DocumentText{Name: d.Name, Text: string(d.Bytes)})
		}
	}
	return out
}
