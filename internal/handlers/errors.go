package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Shimizu-Technology/docsight-api/internal/models"
	"github.com/Shimizu-Technology/docsight-api/internal/services/analysis"
	"github.com/Shimizu-Technology/docsight-api/internal/services/pdf"
	"github.com/Shimizu-Technology/docsight-api/internal/services/speech"
	"github.com/Shimizu-Technology/docsight-api/internal/services/summary"
	"github.com/Shimizu-Technology/docsight-api/internal/services/worker"
	"github.com/Shimizu-Technology/docsight-api/internal/session"
)

// errorStatus maps a domain error onto an HTTP status and error code.
func errorStatus(err error) (int, string) {
	var backendErr *analysis.BackendError
	switch {
	case errors.Is(err, session.ErrSuperseded):
		return http.StatusConflict, "superseded"
	case errors.Is(err, session.ErrDocumentNotFound):
		return http.StatusNotFound, "document_not_found"
	case errors.Is(err, session.ErrPreviewRevoked):
		return http.StatusGone, "preview_revoked"
	case errors.Is(err, session.ErrDocumentRemoved):
		return http.StatusConflict, "document_removed"
	case errors.Is(err, session.ErrSessionClosed):
		return http.StatusGone, "session_closed"
	case errors.Is(err, session.ErrViewerUnavailable):
		return http.StatusServiceUnavailable, "viewer_unavailable"
	case errors.Is(err, pdf.ErrNotPDF):
		return http.StatusBadRequest, "invalid_pdf"
	case errors.Is(err, worker.ErrQueueFull), errors.Is(err, worker.ErrStopped):
		return http.StatusServiceUnavailable, "queue_full"
	case errors.Is(err, analysis.ErrBackendUnavailable):
		return http.StatusServiceUnavailable, "backend_unavailable"
	case errors.Is(err, summary.ErrNotConfigured), errors.Is(err, speech.ErrNotConfigured):
		return http.StatusServiceUnavailable, "not_configured"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout, "cancelled"
	case errors.As(err, &backendErr):
		return http.StatusBadGateway, "backend_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// respondError writes err in the standard error format. Upstream messages are
// passed through so the user sees what the backend said.
func (h *Handler) respondError(c *gin.Context, err error) {
	status, code := errorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		msg = "Internal server error"
	}
	_ = c.Error(err)
	c.JSON(status, models.ErrorResponse{
		Error:   code,
		Message: msg,
		Code:    status,
	})
}

func badRequest(c *gin.Context, code, msg string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   code,
		Message: msg,
		Code:    http.StatusBadRequest,
	})
}
