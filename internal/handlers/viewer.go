// viewer.go handles the viewer synchronizer: selecting a document page and
// highlighting outline headings.
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/docsight-api/internal/middleware"
	"github.com/Shimizu-Technology/docsight-api/internal/models"
	"github.com/Shimizu-Technology/docsight-api/internal/session"
)

// maxViewerWait bounds how long a request waits for the viewer to load.
const maxViewerWait = 30 * time.Second

// ViewerConfig returns the viewer SDK client id for this deployment.
// GET /api/v1/viewer/config
func (h *Handler) ViewerConfig(c *gin.Context) {
	resp := models.ViewerConfigResponse{
		ClientID:    h.settings.ViewerClientID,
		Environment: h.settings.Environment,
	}
	if resp.ClientID == "" {
		resp.Banner = "PDF viewer is not configured for this deployment; previews open in a new tab instead."
	}
	c.JSON(http.StatusOK, resp)
}

// GetViewer returns the viewer state. With ?wait=true it first waits for the
// current selection to finish loading.
// GET /api/v1/viewer
func (h *Handler) GetViewer(c *gin.Context) {
	s := middleware.GetSession(c)
	if wait, _ := strconv.ParseBool(c.Query("wait")); wait {
		ctx, cancel := context.WithTimeout(c.Request.Context(), maxViewerWait)
		defer cancel()
		snap, err := s.WaitViewer(ctx)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, snap)
		return
	}
	c.JSON(http.StatusOK, s.Viewer())
}

// SelectViewer shows a page of a document. The engine loads in the
// background; the response reports "loading" until it is ready.
// POST /api/v1/viewer/select
func (h *Handler) SelectViewer(c *gin.Context) {
	var req models.SelectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", "Provide 'document' and an optional 1-based 'page'")
		return
	}
	if req.Page < 1 {
		req.Page = 1
	}

	s := middleware.GetSession(c)
	snap, err := s.Select(req.Document, req.Page)
	if err != nil {
		h.respondError(c, err)
		return
	}
	status := http.StatusOK
	if snap.State == session.StateLoading {
		status = http.StatusAccepted
	}
	c.JSON(status, snap)
}

// ClearViewer drops the selection and highlight.
// DELETE /api/v1/viewer
func (h *Handler) ClearViewer(c *gin.Context) {
	middleware.GetSession(c).ClearViewer()
	c.Status(http.StatusNoContent)
}

// HighlightHeading navigates to an outline heading and highlights it. When
// the heading text is not found on its page, the viewer still navigates to
// the page and the response carries a warning instead of a highlight.
// POST /api/v1/viewer/highlight
func (h *Handler) HighlightHeading(c *gin.Context) {
	var req models.HighlightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", "Provide 'document', 'text' and the 0-based 'page' of the heading")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), maxViewerWait)
	defer cancel()

	s := middleware.GetSession(c)
	res, err := s.HighlightHeading(ctx, req.Document, session.Heading{
		Text:  req.Text,
		Level: req.Level,
		Page:  req.Page,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
