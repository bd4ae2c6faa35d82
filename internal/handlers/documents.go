// documents.go handles the session's document set and preview serving.
package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/docsight-api/internal/middleware"
	"github.com/Shimizu-Technology/docsight-api/internal/models"
	"github.com/Shimizu-Technology/docsight-api/internal/session"
)

// documentView adds the preview URL to a document.
type documentView struct {
	session.DocumentInfo
	PreviewURL string `json:"preview_url,omitempty"`
}

type documentsResponse struct {
	Added     []string       `json:"added,omitempty"`
	Skipped   []string       `json:"skipped,omitempty"`
	Documents []documentView `json:"documents"`
}

// UploadDocuments adds the uploaded files to the session. Files whose name is
// already in the session are skipped and listed in "skipped".
// POST /api/v1/documents (multipart, field "files")
func (h *Handler) UploadDocuments(c *gin.Context) {
	s := middleware.GetSession(c)

	candidates, ok := h.readUploads(c)
	if !ok {
		return
	}

	res, err := s.AddFiles(candidates)
	if err != nil {
		h.respondError(c, err)
		return
	}

	status := http.StatusCreated
	if len(res.Added) == 0 {
		status = http.StatusOK
	}
	c.JSON(status, documentsResponse{
		Added:     res.Added,
		Skipped:   res.Skipped,
		Documents: documentViews(s.ID, res.Documents),
	})
}

// ListDocuments lists the session's documents in upload order.
// GET /api/v1/documents
func (h *Handler) ListDocuments(c *gin.Context) {
	s := middleware.GetSession(c)
	c.JSON(http.StatusOK, documentsResponse{Documents: documentViews(s.ID, s.Documents())})
}

// DeleteDocument removes one document, revoking its preview. If the viewer
// shows it, the viewer is cleared.
// DELETE /api/v1/documents/:name
func (h *Handler) DeleteDocument(c *gin.Context) {
	s := middleware.GetSession(c)
	if err := s.RemoveFile(c.Param("name")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, documentsResponse{Documents: documentViews(s.ID, s.Documents())})
}

// ClearDocuments removes every document.
// DELETE /api/v1/documents
func (h *Handler) ClearDocuments(c *gin.Context) {
	s := middleware.GetSession(c)
	s.ClearAll()
	c.Status(http.StatusNoContent)
}

// ResolveDocument maps a backend-reported filename onto a session document.
// GET /api/v1/documents/resolve?name=
func (h *Handler) ResolveDocument(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		badRequest(c, "invalid_request", "Query parameter 'name' is required")
		return
	}
	s := middleware.GetSession(c)
	d, err := s.ResolveDocumentName(name)
	if err != nil {
		h.respondError(c, err)
		return
	}
	view := documentView{DocumentInfo: session.DocumentInfo{
		Name:        d.Name,
		Size:        d.Size,
		ContentType: d.ContentType,
		AddedAt:     d.AddedAt,
	}}
	if p, ok := s.Preview(d.Name); ok {
		view.PreviewToken = p.Token
		view.PreviewURL = previewURL(s.ID, p.Token)
	}
	c.JSON(http.StatusOK, view)
}

// ServePreview returns the PDF behind a preview token. Revoked tokens, and
// tokens of closed sessions, answer 410.
// GET /api/v1/previews/:session/:token
func (h *Handler) ServePreview(c *gin.Context) {
	s, ok := h.Sessions.Get(c.Param("session"))
	if !ok {
		h.respondError(c, session.ErrPreviewRevoked)
		return
	}
	content, err := s.OpenPreview(c.Param("token"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": content.Name}))
	c.Header("Cache-Control", "private, no-store")
	c.Data(http.StatusOK, content.ContentType, content.Data)
}

// readUploads reads every "files" part of a multipart request, enforcing the
// upload size limit.
func (h *Handler) readUploads(c *gin.Context) ([]session.Candidate, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.settings.MaxUploadBytes)
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{
				Error:   "upload_too_large",
				Message: fmt.Sprintf("Upload exceeds %d MB", h.settings.MaxUploadBytes>>20),
				Code:    http.StatusRequestEntityTooLarge,
			})
			return nil, false
		}
		badRequest(c, "invalid_request", "Expected a multipart form with 'files'")
		return nil, false
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		badRequest(c, "no_files", "Upload at least one file in the 'files' field")
		return nil, false
	}

	candidates := make([]session.Candidate, 0, len(headers))
	for _, fh := range headers {
		data, err := readPart(fh)
		if err != nil {
			badRequest(c, "invalid_file", fmt.Sprintf("Failed to read %s: %v", fh.Filename, err))
			return nil, false
		}
		contentType := fh.Header.Get("Content-Type")
		if contentType == "" || contentType == "application/octet-stream" {
			contentType = http.DetectContentType(data)
		}
		candidates = append(candidates, session.Candidate{
			Name:        fh.Filename,
			Bytes:       data,
			ContentType: contentType,
		})
	}
	return candidates, true
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func documentViews(sessionID string, docs []session.DocumentInfo) []documentView {
	out := make([]documentView, len(docs))
	for i, d := range docs {
		out[i] = documentView{DocumentInfo: d}
		if d.PreviewToken != "" {
			out[i].PreviewURL = previewURL(sessionID, d.PreviewToken)
		}
	}
	return out
}

func previewURL(sessionID, token string) string {
	return "/api/v1/previews/" + sessionID + "/" + token
}
