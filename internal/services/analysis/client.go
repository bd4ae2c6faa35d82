// Package analysis is the HTTP client for the external analysis backend:
// heading outline extraction, persona-driven section ranking and
// similar-snippet search.
//
// Every call uploads the session's documents as multipart "files" parts.
// Calls go through a circuit breaker so a dead backend fails fast instead of
// holding uploads for the full timeout; nothing is retried automatically.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/Shimizu-Technology/docsight-api/internal/metrics"
)

// ErrBackendUnavailable is returned while the circuit breaker is open.
var ErrBackendUnavailable = errors.New("analysis backend unavailable")

// File is one document uploaded with a request.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Client talks to the outline and semantic analysis services. They may be
// deployed separately, so each has its own base URL.
type Client struct {
	outlineURL  string
	analysisURL string
	httpClient  *http.Client
	breaker     *gobreaker.CircuitBreaker
	log         *zap.Logger
}

// New creates a client. Requests carry their own deadlines; the HTTP client
// timeout is only a backstop.
func New(outlineBaseURL, analysisBaseURL string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("analysis")
	return &Client{
		outlineURL:  strings.TrimRight(outlineBaseURL, "/"),
		analysisURL: strings.TrimRight(analysisBaseURL, "/"),
		httpClient:  &http.Client{Timeout: 5 * time.Minute},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "analysis-backend",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			// client errors and cancelled requests say nothing about backend health
			IsSuccessful: func(err error) bool {
				if err == nil || errors.Is(err, context.Canceled) {
					return true
				}
				var be *BackendError
				return errors.As(err, &be) && be.Status < 500
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("circuit breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		}),
		log: log,
	}
}

// --- wire types ---

// OutlineHeading is one heading as returned by /api/pdf-outline.
type OutlineHeading struct {
	Text  string `json:"text"`
	Level string `json:"level"`
	Page  int    `json:"page"`
}

// OutlineEntry is the outline of one uploaded file.
type OutlineEntry struct {
	Filename string `json:"filename"`
	Outline  struct {
		Title   string           `json:"title"`
		Outline []OutlineHeading `json:"outline"`
	} `json:"outline"`
}

// ExtractedSection is one ranked section from /semantic/process-pdfs.
type ExtractedSection struct {
	Document        string  `json:"document"`
	PageNumber      int     `json:"page_number"`
	SectionTitle    string  `json:"section_title"`
	ImportanceRank  int     `json:"importance_rank"`
	SimilarityScore float64 `json:"similarity_score"`
}

// SubsectionAnalysis is the refined text behind a ranked section.
type SubsectionAnalysis struct {
	Document        string  `json:"document"`
	PageNumber      int     `json:"page_number"`
	RefinedText     string  `json:"refined_text"`
	SimilarityScore float64 `json:"similarity_score"`
}

// ProcessResult is the data payload of /semantic/process-pdfs.
type ProcessResult struct {
	Metadata           map[string]any       `json:"metadata"`
	ExtractedSections  []ExtractedSection   `json:"extracted_sections"`
	SubsectionAnalysis []SubsectionAnalysis `json:"subsection_analysis"`
}

// Snippet is one passage from /semantic/find-similar-snippets.
type Snippet struct {
	Text         string `json:"text"`
	DocumentName string `json:"document_name"`
	PageNumber   int    `json:"page_number"`
}

// Outline extracts the heading outline of every file.
func (c *Client) Outline(ctx context.Context, files []File) ([]OutlineEntry, error) {
	var out []OutlineEntry
	err := c.post(ctx, "outline", c.outlineURL+"/api/pdf-outline", files, nil, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ProcessPDFs ranks sections of files for a persona and job.
func (c *Client) ProcessPDFs(ctx context.Context, files []File, persona, job string) (*ProcessResult, error) {
	var out struct {
		Data ProcessResult `json:"data"`
	}
	fields := [][2]string{{"persona", persona}, {"job", job}}
	if err := c.post(ctx, "process_pdfs", c.analysisURL+"/semantic/process-pdfs", files, fields, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// FindSimilarSnippets finds passages related to query, scoped to current.
func (c *Client) FindSimilarSnippets(ctx context.Context, files []File, query, current string) ([]Snippet, error) {
	var out struct {
		Data struct {
			Snippets []Snippet `json:"snippets"`
		} `json:"data"`
	}
	fields := [][2]string{{"query_text", query}, {"current_document_name", current}}
	if err := c.post(ctx, "snippets", c.analysisURL+"/semantic/find-similar-snippets", files, fields, &out); err != nil {
		return nil, err
	}
	return out.Data.Snippets, nil
}

func (c *Client) post(ctx context.Context, op, url string, files []File, fields [][2]string, out any) error {
	start := time.Now()
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.do(ctx, url, files, fields, out)
	})
	metrics.BackendRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.BackendRequestsTotal.WithLabelValues(op, "ok").Inc()
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.BackendRequestsTotal.WithLabelValues(op, "breaker_open").Inc()
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	default:
		metrics.BackendRequestsTotal.WithLabelValues(op, "error").Inc()
		c.log.Warn("analysis request failed", zap.String("operation", op), zap.Error(err))
		return err
	}
}

func (c *Client) do(ctx context.Context, url string, files []File, fields [][2]string, out any) error {
	body, contentType, err := encodeMultipart(files, fields)
	if err != nil {
		return fmt.Errorf("failed to build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("analysis request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &BackendError{Status: resp.StatusCode, Message: DecodeErrorMessage(resp.StatusCode, raw)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func encodeMultipart(files []File, fields [][2]string) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range files {
		ct := f.ContentType
		if ct == "" {
			ct = "application/pdf"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, escapeQuotes(f.Name)))
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", err
		}
	}
	for _, kv := range fields {
		if err := w.WriteField(kv[0], kv[1]); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
