// stateless.go serves the session-less routes used by the browser extension
// and by clients that only need a one-shot answer: summarize text, ask about
// a page, ask about uploaded PDFs, facts and podcast generation.
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/docsight-api/internal/models"
	"github.com/Shimizu-Technology/docsight-api/internal/services/summary"
	"github.com/Shimizu-Technology/docsight-api/internal/services/worker"
	"github.com/Shimizu-Technology/docsight-api/internal/session"
)

// SummarizeText summarizes a block of text.
// POST /summarize-text
func (h *Handler) SummarizeText(c *gin.Context) {
	var req models.SummarizeTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", "Provide 'text'")
		return
	}

	var out string
	err := h.Worker.Do(c.Request.Context(), worker.JobSummarize, func(ctx context.Context) (err error) {
		out, err = h.Summary.Summarize(ctx, req.Text)
		return err
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SummaryResponse{Summary: out})
}

// AskText answers a question about the content of one page.
// POST /ask
func (h *Handler) AskText(c *gin.Context) {
	var req models.AskTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", "Provide 'text' and 'question'")
		return
	}

	var answer string
	err := h.Worker.Do(c.Request.Context(), worker.JobAsk, func(ctx context.Context) (err error) {
		answer, err = h.Summary.Answer(ctx, req.Text, req.Question)
		return err
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.AnswerResponse{Answer: answer})
}

// AskPDF answers a question about the uploaded files.
// POST /ask-pdf (multipart: files[], question)
func (h *Handler) AskPDF(c *gin.Context) {
	docs, ok := h.uploadedTexts(c)
	if !ok {
		return
	}
	question := strings.TrimSpace(c.PostForm("question"))
	if question == "" {
		badRequest(c, "invalid_request", "Provide a non-empty 'question'")
		return
	}

	var answer string
	err := h.Worker.Do(c.Request.Context(), worker.JobAsk, func(ctx context.Context) (err error) {
		answer, err = h.Summary.AskDocuments(ctx, docs, question)
		return err
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.AnswerResponse{Answer: answer})
}

// Facts extracts facts from every uploaded file.
// POST /facts (multipart: files[])
func (h *Handler) Facts(c *gin.Context) {
	docs, ok := h.uploadedTexts(c)
	if !ok {
		return
	}

	var facts []summary.FileFacts
	err := h.Worker.Do(c.Request.Context(), worker.JobFacts, func(ctx context.Context) (err error) {
		facts, err = h.Summary.Facts(ctx, docs)
		return err
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"facts": facts})
}

// GeneratePodcast narrates a short summary of the uploaded files, or of a
// JSON {"text": ...} body.
// POST /generate-podcast
func (h *Handler) GeneratePodcast(c *gin.Context) {
	var text string
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		docs, ok := h.uploadedTexts(c)
		if !ok {
			return
		}
		text = joinTexts(docs)
	} else {
		var req models.PodcastTextRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid_request", "Upload 'files' or provide 'text'")
			return
		}
		text = req.Text
	}
	if strings.TrimSpace(text) == "" {
		badRequest(c, "no_text", "The uploaded files contain no extractable text")
		return
	}

	resp, err := h.podcast(c.Request.Context(), text)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// uploadedTexts reads the multipart "files" and extracts their text.
func (h *Handler) uploadedTexts(c *gin.Context) ([]summary.DocumentText, bool) {
	candidates, ok := h.readUploads(c)
	if !ok {
		return nil, false
	}
	docs := make([]*session.Document, len(candidates))
	for i, cand := range candidates {
		docs[i] = &session.Document{Name: cand.Name, Bytes: cand.Bytes, ContentType: cand.ContentType}
	}
	texts := documentTexts(h.log, docs)
	if len(texts) == 0 {
		badRequest(c, "unsupported_files", "Upload PDF or text files")
		return nil, false
	}
	return texts, true
}
