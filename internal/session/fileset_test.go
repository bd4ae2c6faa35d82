// fileset_test.go: File set and preview handle lifecycle.
package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSet_Add_UniqueNames(t *testing.T) {
	tests := []struct {
		name        string
		batches     [][]string
		wantNames   []string
		wantSkipped []string // skipped in the last batch
	}{
		{
			name:        "single batch",
			batches:     [][]string{{"a.pdf", "b.pdf"}},
			wantNames:   []string{"a.pdf", "b.pdf"},
			wantSkipped: []string{},
		},
		{
			name:        "duplicate across batches is dropped",
			batches:     [][]string{{"a.pdf"}, {"a.pdf", "c.pdf"}},
			wantNames:   []string{"a.pdf", "c.pdf"},
			wantSkipped: []string{"a.pdf"},
		},
		{
			name:        "duplicate within one batch keeps the first",
			batches:     [][]string{{"a.pdf", "a.pdf"}},
			wantNames:   []string{"a.pdf"},
			wantSkipped: []string{"a.pdf"},
		},
		{
			name:        "names are case-sensitive",
			batches:     [][]string{{"Report.pdf"}, {"report.pdf"}},
			wantNames:   []string{"Report.pdf", "report.pdf"},
			wantSkipped: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := NewFileSet(nil)
			var res AddResult
			for _, batch := range tt.batches {
				before := fs.Len()
				res = fs.Add(pdfCandidates(batch...))
				assert.Equal(t, before+len(res.Added), fs.Len())
			}
			assert.Equal(t, tt.wantNames, fs.Names())
			assert.Equal(t, tt.wantSkipped, res.Skipped)
			assert.Len(t, res.Documents, len(tt.wantNames))
		})
	}
}

func TestFileSet_Add_PreviewOnlyForPDF(t *testing.T) {
	fs := NewFileSet(nil)
	fs.Add([]Candidate{
		{Name: "a.pdf", Bytes: []byte("x"), ContentType: "application/pdf"},
		{Name: "notes.txt", Bytes: []byte("y"), ContentType: "text/plain"},
		{Name: "b.pdf", Bytes: []byte("z"), ContentType: "application/pdf; charset=binary"},
	})

	_, ok := fs.Preview("a.pdf")
	assert.True(t, ok)
	_, ok = fs.Preview("notes.txt")
	assert.False(t, ok)
	_, ok = fs.Preview("b.pdf")
	assert.True(t, ok)
	assert.Equal(t, 2, fs.LivePreviews())

	d, ok := fs.Get("notes.txt")
	require.True(t, ok)
	assert.Equal(t, int64(1), d.Size)
}

func TestFileSet_Remove_RevokesOnce(t *testing.T) {
	revoked := map[string]int{}
	fs := NewFileSet(func(h PreviewHandle) { revoked[h.Document]++ })
	fs.Add(pdfCandidates("a.pdf", "b.pdf"))

	aHandle, ok := fs.Preview("a.pdf")
	require.True(t, ok)
	bHandle, ok := fs.Preview("b.pdf")
	require.True(t, ok)

	require.NoError(t, fs.Remove("a.pdf"))

	assert.Equal(t, []string{"b.pdf"}, fs.Names())
	assert.Equal(t, map[string]int{"a.pdf": 1}, revoked)

	_, err := fs.OpenPreview(aHandle.Token)
	assert.ErrorIs(t, err, ErrPreviewRevoked)

	content, err := fs.OpenPreview(bHandle.Token)
	require.NoError(t, err)
	assert.Equal(t, "b.pdf", content.Name)

	assert.ErrorIs(t, fs.Remove("a.pdf"), ErrDocumentNotFound)
	assert.Equal(t, 1, revoked["a.pdf"])
}

func TestFileSet_Clear_RevokesEveryHandle(t *testing.T) {
	revoked := map[string]int{}
	fs := NewFileSet(func(h PreviewHandle) { revoked[h.Document]++ })
	fs.Add(pdfCandidates("a.pdf", "b.pdf", "c.pdf"))
	tokens := []string{}
	for _, n := range fs.Names() {
		h, _ := fs.Preview(n)
		tokens = append(tokens, h.Token)
	}

	removed := fs.Clear()
	assert.ElementsMatch(t, []string{"a.pdf", "b.pdf", "c.pdf"}, removed)
	assert.Equal(t, 0, fs.Len())
	assert.Equal(t, 0, fs.LivePreviews())
	assert.Equal(t, map[string]int{"a.pdf": 1, "b.pdf": 1, "c.pdf": 1}, revoked)
	for _, tok := range tokens {
		_, err := fs.OpenPreview(tok)
		assert.ErrorIs(t, err, ErrPreviewRevoked)
	}

	// re-adding a name issues a fresh handle
	fs.Add(pdfCandidates("a.pdf"))
	h, ok := fs.Preview("a.pdf")
	require.True(t, ok)
	assert.NotContains(t, tokens, h.Token)
}

func TestIsPDFType(t *testing.T) {
	tests := []struct {
		contentType string
		want        bool
	}{
		{"application/pdf", true},
		{"APPLICATION/PDF", true},
		{"application/x-pdf", true},
		{"application/pdf; name=a.pdf", true},
		{"text/plain", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPDFType(tt.contentType))
		})
	}
}
