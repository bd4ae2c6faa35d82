// client_test.go: Analysis backend client against a fake backend.
package analysis

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeErrorMessage(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{name: "error field", status: 400, body: `{"error":"No files uploaded"}`, want: "No files uploaded"},
		{name: "detail field", status: 422, body: `{"detail":"persona is required"}`, want: "persona is required"},
		{name: "error wins over detail", status: 500, body: `{"error":"a","detail":"b"}`, want: "a"},
		{name: "detail list", status: 422, body: `{"detail":[{"msg":"field required"}]}`, want: `[{"msg":"field required"}]`},
		{name: "empty body", status: 502, body: ``, want: "HTTP error! status: 502"},
		{name: "html body", status: 504, body: `<html>Gateway Timeout</html>`, want: "HTTP error! status: 504"},
		{name: "no known fields", status: 500, body: `{"message":"boom"}`, want: "HTTP error! status: 500"},
		{name: "null error", status: 500, body: `{"error":null}`, want: "HTTP error! status: 500"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeErrorMessage(tt.status, []byte(tt.body)))
		})
	}
}

func TestClient_ProcessPDFs(t *testing.T) {
	var gotPersona, gotJob string
	var gotFiles []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/semantic/process-pdfs", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotPersona = r.FormValue("persona")
		gotJob = r.FormValue("job")
		for _, fh := range r.MultipartForm.File["files"] {
			f, err := fh.Open()
			require.NoError(t, err)
			data, _ := io.ReadAll(f)
			f.Close()
			gotFiles = append(gotFiles, fh.Filename+":"+string(data))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"metadata": map[string]any{"persona": gotPersona},
				"extracted_sections": []map[string]any{
					{"document": "Paris.pdf", "page_number": 3, "section_title": "Museums", "importance_rank": 1, "similarity_score": 0.42},
				},
				"subsection_analysis": []map[string]any{
					{"document": "Paris.pdf", "page_number": 3, "refined_text": "The Louvre...", "similarity_score": 0.42},
				},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, srv.URL+"/", nil)
	res, err := c.ProcessPDFs(context.Background(), []File{
		{Name: "Paris.pdf", Data: []byte("one")},
		{Name: `Odd "name".pdf`, Data: []byte("two")},
	}, "Tourist", "Plan a trip")
	require.NoError(t, err)

	assert.Equal(t, "Tourist", gotPersona)
	assert.Equal(t, "Plan a trip", gotJob)
	assert.Equal(t, []string{"Paris.pdf:one", `Odd "name".pdf:two`}, gotFiles)

	require.Len(t, res.ExtractedSections, 1)
	assert.Equal(t, ExtractedSection{Document: "Paris.pdf", PageNumber: 3, SectionTitle: "Museums", ImportanceRank: 1, SimilarityScore: 0.42}, res.ExtractedSections[0])
	require.Len(t, res.SubsectionAnalysis, 1)
	assert.Equal(t, "The Louvre...", res.SubsectionAnalysis[0].RefinedText)
	assert.Equal(t, "Tourist", res.Metadata["persona"])
}

func TestClient_OutlineAndSnippets(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/pdf-outline", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"filename":"a.pdf","outline":{"title":"A","outline":[{"text":"Intro","level":"H1","page":0}]}}]`)
	})
	mux.HandleFunc("/semantic/find-similar-snippets", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "louvre", r.FormValue("query_text"))
		assert.Equal(t, "a.pdf", r.FormValue("current_document_name"))
		_, _ = io.WriteString(w, `{"data":{"snippets":[{"text":"The Louvre","document_name":"b.pdf","page_number":2}]}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, srv.URL, nil)
	files := []File{{Name: "a.pdf", Data: []byte("x")}}

	outline, err := c.Outline(context.Background(), files)
	require.NoError(t, err)
	require.Len(t, outline, 1)
	assert.Equal(t, "a.pdf", outline[0].Filename)
	assert.Equal(t, []OutlineHeading{{Text: "Intro", Level: "H1", Page: 0}}, outline[0].Outline.Outline)

	snippets, err := c.FindSimilarSnippets(context.Background(), files, "louvre", "a.pdf")
	require.NoError(t, err)
	assert.Equal(t, []Snippet{{Text: "The Louvre", DocumentName: "b.pdf", PageNumber: 2}}, snippets)
}

func TestClient_ErrorResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"detail":"No PDF files provided"}`)
	}))
	defer srv.Close()

	c := New(srv.URL, srv.URL, nil)
	_, err := c.Outline(context.Background(), nil)
	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, http.StatusBadRequest, be.Status)
	assert.Equal(t, "No PDF files provided", be.Message)
}

func TestClient_BreakerOpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, srv.URL, nil)
	for i := 0; i < 5; i++ {
		_, err := c.Outline(context.Background(), nil)
		var be *BackendError
		require.ErrorAs(t, err, &be)
		assert.Equal(t, "HTTP error! status: 500", be.Message)
	}

	_, err := c.Outline(context.Background(), nil)
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.Equal(t, int32(5), calls.Load())
}

func TestClient_ClientErrorsDoNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := New(srv.URL, srv.URL, nil)
	for i := 0; i < 10; i++ {
		_, err := c.Outline(context.Background(), nil)
		assert.NotErrorIs(t, err, ErrBackendUnavailable)
	}
}
