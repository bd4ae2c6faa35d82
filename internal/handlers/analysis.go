// analysis.go handles the outline, recommendation and snippet requests that
// go to the external analysis backend.
//
// Each request supersedes the previous one of the same kind in the session:
// the older request's context is cancelled and, should its result arrive
// anyway, it is discarded with 409 "superseded".
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Shimizu-Technology/docsight-api/internal/middleware"
	"github.com/Shimizu-Technology/docsight-api/internal/models"
	"github.com/Shimizu-Technology/docsight-api/internal/services/analysis"
	"github.com/Shimizu-Technology/docsight-api/internal/services/worker"
	"github.com/Shimizu-Technology/docsight-api/internal/session"
)

const (
	defaultTopSections = 3
	noRefinedText      = "No detailed summary available."
)

// CreateOutline extracts the heading outline of every PDF in the session.
// POST /api/v1/outline
func (h *Handler) CreateOutline(c *gin.Context) {
	s := middleware.GetSession(c)
	files, ok := requirePDFs(c, s)
	if !ok {
		return
	}

	var entries []analysis.OutlineEntry
	var outlines []session.DocumentOutline
	err := h.analyze(c, s, session.OpOutline, worker.JobOutline, files,
		func(ctx context.Context) (err error) {
			entries, err = h.Analysis.Outline(ctx, files)
			return err
		},
		func(t session.Ticket) (err error) {
			outlines, err = s.CommitOutline(t, toOutlines(entries))
			return err
		})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"outlines": outlines})
}

// GetOutline returns the last outline of the session.
// GET /api/v1/outline
func (h *Handler) GetOutline(c *gin.Context) {
	outlines := middleware.GetSession(c).Outline()
	if outlines == nil {
		outlines = []session.DocumentOutline{}
	}
	c.JSON(http.StatusOK, gin.H{"outlines": outlines})
}

// CreateRecommendations ranks the sections of the session's PDFs for a
// persona and job. The result replaces any earlier recommendation.
// POST /api/v1/recommendations
func (h *Handler) CreateRecommendations(c *gin.Context) {
	var req models.RecommendationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", "Provide 'persona' and 'job'")
		return
	}
	if req.Top <= 0 {
		req.Top = defaultTopSections
	}

	s := middleware.GetSession(c)
	files, ok := requirePDFs(c, s)
	if !ok {
		return
	}

	var result *analysis.ProcessResult
	var rec *session.Recommendation
	err := h.analyze(c, s, session.OpRecommendations, worker.JobRecommendations, files,
		func(ctx context.Context) (err error) {
			result, err = h.Analysis.ProcessPDFs(ctx, files, req.Persona, req.Job)
			return err
		},
		func(t session.Ticket) (err error) {
			rec, err = s.CommitRecommendation(t, buildRecommendation(req.Persona, req.Job, result, req.Top))
			return err
		})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// GetRecommendations returns the last recommendation of the session.
// GET /api/v1/recommendations
func (h *Handler) GetRecommendations(c *gin.Context) {
	rec := middleware.GetSession(c).Recommendation()
	if rec == nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_found",
			Message: "No recommendation yet",
			Code:    http.StatusNotFound,
		})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// FindSnippets finds passages related to a text selection.
// POST /api/v1/snippets
func (h *Handler) FindSnippets(c *gin.Context) {
	var req models.SnippetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", "Provide 'query_text'")
		return
	}

	s := middleware.GetSession(c)
	files, ok := requirePDFs(c, s)
	if !ok {
		return
	}

	var found []analysis.Snippet
	var snippets []session.Snippet
	err := h.analyze(c, s, session.OpSnippets, worker.JobSnippets, files,
		func(ctx context.Context) (err error) {
			found, err = h.Analysis.FindSimilarSnippets(ctx, files, req.QueryText, req.CurrentDocumentName)
			return err
		},
		func(t session.Ticket) error {
			snippets = s.ReconcileSnippets(toSnippets(found))
			return s.Commit(t, func() {})
		})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"snippets": snippets})
}

// ListRuns returns the session's recent analysis runs.
// GET /api/v1/runs
func (h *Handler) ListRuns(c *gin.Context) {
	if h.Store == nil {
		c.JSON(http.StatusOK, gin.H{"runs": []models.AnalysisRun{}})
		return
	}
	runs, err := h.Store.ListAnalysisRuns(c.Request.Context(), middleware.GetSession(c).ID, 20)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// analyze runs call on the worker pool as the session's current request of
// op, then commits through commit. A call that fails after a newer request
// superseded it reports ErrSuperseded.
func (h *Handler) analyze(
	c *gin.Context,
	s *session.Session,
	op session.Operation,
	job worker.JobType,
	files []analysis.File,
	call func(ctx context.Context) error,
	commit func(t session.Ticket) error,
) error {
	ctx, ticket, release, err := s.Begin(c.Request.Context(), op)
	if err != nil {
		return err
	}
	defer release()

	start := time.Now()
	err = h.Worker.Do(ctx, job, call)
	switch {
	case err == nil:
		err = commit(ticket)
	case !s.Current(ticket):
		err = session.ErrSuperseded
	}
	h.recordRun(c, s.ID, op, files, time.Since(start), err)
	return err
}

// recordRun appends to the run log when a store is configured.
func (h *Handler) recordRun(c *gin.Context, sessionID string, op session.Operation, files []analysis.File, took time.Duration, runErr error) {
	if h.Store == nil {
		return
	}
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	docs, _ := json.Marshal(names)

	run := &models.AnalysisRun{
		SessionID:  sessionID,
		Operation:  string(op),
		Status:     models.RunCompleted,
		Documents:  docs,
		DurationMS: took.Milliseconds(),
	}
	switch {
	case errors.Is(runErr, session.ErrSuperseded):
		run.Status = models.RunSuperseded
	case runErr != nil:
		run.Status = models.RunFailed
		run.ErrorMessage = runErr.Error()
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), 5*time.Second)
	defer cancel()
	if err := h.Store.CreateAnalysisRun(ctx, run); err != nil {
		h.log.Warn("failed to record analysis run", zap.String("session", sessionID), zap.Error(err))
	}
}

// requirePDFs returns the session's PDFs as upload files, answering 400 when
// there are none.
func requirePDFs(c *gin.Context, s *session.Session) ([]analysis.File, bool) {
	files := pdfFiles(s)
	if len(files) == 0 {
		badRequest(c, "no_documents", "Upload at least one PDF first")
		return nil, false
	}
	return files, true
}

func pdfFiles(s *session.Session) []analysis.File {
	var files []analysis.File
	for _, d := range s.Contents() {
		if !session.IsPDFType(d.ContentType) {
			continue
		}
		files = append(files, analysis.File{Name: d.Name, ContentType: d.ContentType, Data: d.Bytes})
	}
	return files
}

func toOutlines(entries []analysis.OutlineEntry) []session.DocumentOutline {
	out := make([]session.DocumentOutline, len(entries))
	for i, e := range entries {
		headings := make([]session.Heading, len(e.Outline.Outline))
		for j, oh := range e.Outline.Outline {
			headings[j] = session.Heading{Text: oh.Text, Level: oh.Level, Page: oh.Page}
		}
		out[i] = session.DocumentOutline{Filename: e.Filename, Headings: headings}
	}
	return out
}

// buildRecommendation keeps the top ranked sections and pairs each with the
// subsection analysis at the same index.
func buildRecommendation(persona, job string, res *analysis.ProcessResult, top int) session.Recommendation {
	rec := session.Recommendation{Persona: persona, Job: job, Sections: []session.Section{}}
	if res == nil {
		return rec
	}
	rec.Metadata = res.Metadata

	n := min(top, len(res.ExtractedSections))
	for i := 0; i < n; i++ {
		es := res.ExtractedSections[i]
		refined := noRefinedText
		if i < len(res.SubsectionAnalysis) && res.SubsectionAnalysis[i].RefinedText != "" {
			refined = res.SubsectionAnalysis[i].RefinedText
		}
		rec.Sections = append(rec.Sections, session.Section{
			Document:    es.Document,
			Page:        es.PageNumber,
			Title:       es.SectionTitle,
			Rank:        es.ImportanceRank,
			Score:       es.SimilarityScore,
			RefinedText: refined,
		})
	}
	return rec
}

func toSnippets(in []analysis.Snippet) []session.Snippet {
	out := make([]session.Snippet, len(in))
	for i, sn := range in {
		out[i] = session.Snippet{Text: sn.Text, DocumentName: sn.DocumentName, Page: sn.PageNumber}
	}
	return out
}
