// export.go handles downloading the session's analysis results.
//
// Supported formats:
//   - md   Markdown, one section per ranked entry or document
//   - txt  Plain text (recommendations only)
//   - json The same payload the GET route returns, indented
//
// Go Pattern: each export format is its own function, and the handlers
// switch on the format string. A new format is a new case and a new
// formatter.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/docsight-api/internal/middleware"
	"github.com/Shimizu-Technology/docsight-api/internal/models"
	"github.com/Shimizu-Technology/docsight-api/internal/session"
)

// ExportRecommendations downloads the last recommendation.
// GET /api/v1/recommendations/export?format=md|txt|json
func (h *Handler) ExportRecommendations(c *gin.Context) {
	format := c.DefaultQuery("format", "md")
	if !validFormat(c, format, "md", "txt", "json") {
		return
	}

	rec := middleware.GetSession(c).Recommendation()
	if rec == nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_found",
			Message: "No recommendation yet",
			Code:    http.StatusNotFound,
		})
		return
	}

	filename := sanitizeFilename(rec.Persona)
	if filename == "" {
		filename = "recommendations"
	}

	switch format {
	case "md":
		attach(c, filename+".md", "text/markdown; charset=utf-8", []byte(recommendationMarkdown(rec)))
	case "txt":
		attach(c, filename+".txt", "text/plain; charset=utf-8", []byte(recommendationText(rec)))
	case "json":
		h.exportJSON(c, filename, rec)
	}
}

// ExportOutline downloads the last outline.
// GET /api/v1/outline/export?format=md|json
func (h *Handler) ExportOutline(c *gin.Context) {
	format := c.DefaultQuery("format", "md")
	if !validFormat(c, format, "md", "json") {
		return
	}

	outlines := middleware.GetSession(c).Outline()
	if outlines == nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_found",
			Message: "No outline yet",
			Code:    http.StatusNotFound,
		})
		return
	}

	switch format {
	case "md":
		attach(c, "outline.md", "text/markdown; charset=utf-8", []byte(outlineMarkdown(outlines)))
	case "json":
		h.exportJSON(c, "outline", gin.H{"outlines": outlines})
	}
}

func validFormat(c *gin.Context, format string, allowed ...string) bool {
	for _, f := range allowed {
		if f == format {
			return true
		}
	}
	badRequest(c, "invalid_format", "Supported formats: "+strings.Join(allowed, ", "))
	return false
}

func attach(c *gin.Context, filename, contentType string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, contentType, data)
}

func (h *Handler) exportJSON(c *gin.Context, filename string, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		h.respondError(c, fmt.Errorf("export json: %w", err))
		return
	}
	attach(c, filename+".json", "application/json; charset=utf-8", data)
}

// recommendationMarkdown renders the ranked sections with a summary table.
func recommendationMarkdown(rec *session.Recommendation) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Recommendations for %s\n\n", rec.Persona)
	fmt.Fprintf(&sb, "**Job:** %s\n\n", rec.Job)
	sb.WriteString("| Rank | Section | Document | Page |\n")
	sb.WriteString("|------|---------|----------|------|\n")
	for _, s := range rec.Sections {
		fmt.Fprintf(&sb, "| %d | %s | %s | %d |\n", s.Rank, escapeCell(s.Title), escapeCell(sectionDocument(s)), s.Page)
	}

	for _, s := range rec.Sections {
		fmt.Fprintf(&sb, "\n## %d. %s\n\n", s.Rank, s.Title)
		fmt.Fprintf(&sb, "_%s, page %d_\n\n", sectionDocument(s), s.Page)
		sb.WriteString(s.RefinedText)
		sb.WriteString("\n")
	}
	return sb.String()
}

func recommendationText(rec *session.Recommendation) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Persona: %s\nJob: %s\n", rec.Persona, rec.Job)
	for _, s := range rec.Sections {
		fmt.Fprintf(&sb, "\n%d. %s (%s, page %d)\n%s\n", s.Rank, s.Title, sectionDocument(s), s.Page, s.RefinedText)
	}
	return sb.String()
}

// outlineMarkdown renders each document's headings as a nested list, indented
// by heading level. Pages are shown 1-based.
func outlineMarkdown(outlines []session.DocumentOutline) string {
	var sb strings.Builder
	sb.WriteString("# Outline\n")
	for _, o := range outlines {
		name := o.Filename
		if o.ResolvedDocument != "" {
			name = o.ResolvedDocument
		}
		fmt.Fprintf(&sb, "\n## %s\n\n", name)
		if len(o.Headings) == 0 {
			sb.WriteString("_No headings found._\n")
			continue
		}
		for _, hd := range o.Headings {
			depth := min(session.LevelOrdinal(hd.Level), 6) - 1
			fmt.Fprintf(&sb, "%s- %s (p. %d)\n", strings.Repeat("  ", depth), hd.Text, hd.Page+1)
		}
	}
	return sb.String()
}

// sectionDocument prefers the local document name over the backend's.
func sectionDocument(s session.Section) string {
	if s.ResolvedDocument != "" {
		return s.ResolvedDocument
	}
	return s.Document
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// sanitizeFilename replaces characters that are unsafe in a
// Content-Disposition filename with hyphens, collapses repeats and caps the
// length.
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "-", "\\", "-", ":", "-", "*", "-",
		"?", "-", "\"", "-", "<", "-", ">", "-",
		"|", "-", "\n", " ", "\r", "",
	)
	name = replacer.Replace(name)

	for strings.Contains(name, "  ") {
		name = strings.ReplaceAll(name, "  ", " ")
	}
	for strings.Contains(name, "--") {
		name = strings.ReplaceAll(name, "--", "-")
	}

	name = strings.TrimSpace(name)
	if len(name) > 100 {
		name = name[:100]
	}
	return name
}
