// session_test.go: Cross-component behaviour of a document session.
package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Shimizu-Technology/docsight-api/internal/viewer"
)

func newTestSession(t *testing.T, op *fakeOpener) *Session {
	t.Helper()
	if op == nil {
		op = &fakeOpener{auto: true}
	}
	return New("test", Options{Opener: op, Logger: zaptest.NewLogger(t)})
}

func TestSession_RemoveScenario(t *testing.T) {
	s := newTestSession(t, nil)

	_, err := s.AddFiles(pdfCandidates("a.pdf", "b.pdf"))
	require.NoError(t, err)
	aHandle, _ := s.Preview("a.pdf")
	bHandle, _ := s.Preview("b.pdf")

	require.NoError(t, s.RemoveFile("a.pdf"))

	docs := s.Documents()
	require.Len(t, docs, 1)
	assert.Equal(t, "b.pdf", docs[0].Name)
	assert.Equal(t, bHandle.Token, docs[0].PreviewToken)

	_, err = s.OpenPreview(aHandle.Token)
	assert.ErrorIs(t, err, ErrPreviewRevoked)
	content, err := s.OpenPreview(bHandle.Token)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4 b.pdf"), content.Data)
}

func TestSession_RemovingShownDocumentClearsViewer(t *testing.T) {
	op := &fakeOpener{auto: true, setup: func(e *fakeEngine) {
		e.matches["Overview"] = []viewer.SearchMatch{{Page: 1, Boxes: []viewer.BoundingBox{{Left: 3, Top: 4}}}}
	}}
	s := newTestSession(t, op)
	_, err := s.AddFiles(pdfCandidates("a.pdf", "b.pdf"))
	require.NoError(t, err)

	res, err := s.HighlightHeading(context.Background(), "a", Heading{Text: "Overview", Page: 0})
	require.NoError(t, err)
	require.True(t, res.Highlighted)
	require.NotNil(t, s.Viewer().Highlight)

	// removing another document leaves the viewer alone
	require.NoError(t, s.RemoveFile("b.pdf"))
	assert.Equal(t, "a.pdf", s.Viewer().Document)

	require.NoError(t, s.RemoveFile("a.pdf"))
	snap := s.Viewer()
	assert.Equal(t, StateIdle, snap.State)
	assert.Empty(t, snap.Document)
	assert.Nil(t, snap.Highlight)
	assert.True(t, op.last().isClosed())
}

func TestSession_FilesChangedEvents(t *testing.T) {
	s := newTestSession(t, nil)
	var events [][]string
	unsub := s.FilesChanged.Subscribe(func(e FilesChanged) { events = append(events, e.Documents) })
	defer unsub()

	_, _ = s.AddFiles(pdfCandidates("a.pdf", "b.pdf"))
	_, _ = s.AddFiles(pdfCandidates("a.pdf")) // duplicate only, no event
	_ = s.RemoveFile("a.pdf")
	s.ClearAll()

	assert.Equal(t, [][]string{
		{"a.pdf", "b.pdf"},
		{"b.pdf"},
		{},
	}, events)
}

func TestSession_ViewerChangedEvents(t *testing.T) {
	op := &fakeOpener{}
	s := newTestSession(t, op)
	states := make(chan ViewerState, 16)
	s.ViewerChanged.Subscribe(func(snap Snapshot) { states <- snap.State })

	_, _ = s.AddFiles(pdfCandidates("a.pdf"))
	_, err := s.Select("a.pdf", 1)
	require.NoError(t, err)
	op.last().finishLoad(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = s.WaitViewer(ctx)
	require.NoError(t, err)
	s.ClearViewer()

	assert.Equal(t, StateLoading, <-states)
	assert.Equal(t, StateReady, <-states)
	assert.Equal(t, StateIdle, <-states)
}

func TestSession_UnresolvedNameIsNamedError(t *testing.T) {
	s := newTestSession(t, nil)
	_, _ = s.AddFiles(pdfCandidates("a.pdf"))

	_, err := s.HighlightHeading(context.Background(), "berlin.pdf", Heading{Text: "x"})
	assert.ErrorIs(t, err, ErrDocumentNotFound)
	assert.EqualError(t, err, `document "berlin.pdf" not available for preview`)
}

func TestSession_CommitOutline(t *testing.T) {
	s := newTestSession(t, nil)
	_, _ = s.AddFiles(pdfCandidates("Travel Guide_Paris.pdf"))

	_, stale, releaseStale, err := s.Begin(context.Background(), OpOutline)
	require.NoError(t, err)
	defer releaseStale()
	_, fresh, releaseFresh, err := s.Begin(context.Background(), OpOutline)
	require.NoError(t, err)
	defer releaseFresh()

	outlines := []DocumentOutline{
		{Filename: "Travel_Guide_Paris.pdf", Headings: []Heading{{Text: "Intro", Level: "H1", Page: 0}}},
		{Filename: "unknown.pdf"},
	}

	got, err := s.CommitOutline(fresh, outlines)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Travel Guide_Paris.pdf", got[0].ResolvedDocument)
	assert.Equal(t, TierNormalized, got[0].MatchTier)
	assert.Empty(t, got[0].Unavailable)
	assert.Empty(t, got[1].ResolvedDocument)
	assert.Equal(t, `document "unknown.pdf" not available for preview`, got[1].Unavailable)
	assert.Equal(t, got, s.Outline())

	_, err = s.CommitOutline(stale, []DocumentOutline{{Filename: "late.pdf"}})
	assert.ErrorIs(t, err, ErrSuperseded)
	assert.Equal(t, got, s.Outline())
}

func TestSession_CommitRecommendationReplacesWholesale(t *testing.T) {
	s := newTestSession(t, nil)
	_, _ = s.AddFiles(pdfCandidates("a.pdf", "b.pdf"))

	commit := func(rec Recommendation) {
		_, tk, release, err := s.Begin(context.Background(), OpRecommendations)
		require.NoError(t, err)
		defer release()
		_, err = s.CommitRecommendation(tk, rec)
		require.NoError(t, err)
	}

	commit(Recommendation{Persona: "p1", Sections: []Section{{Document: "a.pdf"}, {Document: "b.pdf"}}})
	commit(Recommendation{Persona: "p2", Sections: []Section{{Document: "b"}}})

	rec := s.Recommendation()
	require.NotNil(t, rec)
	assert.Equal(t, "p2", rec.Persona)
	require.Len(t, rec.Sections, 1)
	assert.Equal(t, "b.pdf", rec.Sections[0].ResolvedDocument)
}

func TestSession_Close(t *testing.T) {
	s := newTestSession(t, nil)
	_, _ = s.AddFiles(pdfCandidates("a.pdf"))
	h, _ := s.Preview("a.pdf")
	ctx, _, release, err := s.Begin(context.Background(), OpAsk)
	require.NoError(t, err)
	defer release()

	s.Close()
	s.Close()

	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.Empty(t, s.Documents())
	_, err = s.OpenPreview(h.Token)
	assert.ErrorIs(t, err, ErrPreviewRevoked)
	_, err = s.AddFiles(pdfCandidates("b.pdf"))
	assert.ErrorIs(t, err, ErrSessionClosed)
	_, _, _, err = s.Begin(context.Background(), OpAsk)
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestLevelOrdinal(t *testing.T) {
	tests := []struct {
		level string
		want  int
	}{
		{"H1", 1},
		{"h3", 3},
		{" H6 ", 6},
		{"title", 99},
		{"", 99},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.want, LevelOrdinal(tt.level))
		})
	}
}
