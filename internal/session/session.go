package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Shimizu-Technology/docsight-api/internal/metrics"
	"github.com/Shimizu-Technology/docsight-api/internal/viewer"
)

// Options configures a Session.
type Options struct {
	Opener viewer.Opener
	Logger *zap.Logger
	// RequestTimeout bounds every outbound analysis request. Zero disables it.
	RequestTimeout time.Duration
}

// Session is the document session of one browser tab.
type Session struct {
	ID        string
	CreatedAt time.Time

	// FilesChanged fires after every change to the document set.
	FilesChanged Topic[FilesChanged]
	// ViewerChanged fires after every viewer state change.
	ViewerChanged Topic[Snapshot]

	log      *zap.Logger
	files    *FileSet
	viewer   *Synchronizer
	requests *Requests

	mu             sync.RWMutex
	closed         bool
	outline        []DocumentOutline
	recommendation *Recommendation
}

// New creates an empty session.
func New(id string, opts Options) *Session {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("session", id))

	s := &Session{
		ID:        id,
		CreatedAt: time.Now(),
		log:       log,
		requests:  NewRequests(opts.RequestTimeout),
	}
	s.files = NewFileSet(func(h PreviewHandle) {
		metrics.PreviewsRevokedTotal.Inc()
		log.Debug("preview revoked", zap.String("document", h.Document))
	})
	s.viewer = NewSynchronizer(s.files, opts.Opener, log, s.ViewerChanged.Publish)
	return s
}

// AddFiles stores every candidate whose name is not yet taken. Duplicates are
// reported in AddResult.Skipped and otherwise ignored.
func (s *Session) AddFiles(candidates []Candidate) (AddResult, error) {
	if s.isClosed() {
		return AddResult{}, ErrSessionClosed
	}
	res := s.files.Add(candidates)
	if len(res.Skipped) > 0 {
		s.log.Info("duplicate documents ignored", zap.Strings("names", res.Skipped))
	}
	if len(res.Added) > 0 {
		s.publishFiles()
	}
	return res, nil
}

// RemoveFile revokes the document's preview, removes it, and clears the
// viewer if it was showing it.
func (s *Session) RemoveFile(name string) error {
	if err := s.files.Remove(name); err != nil {
		return err
	}
	s.viewer.ClearIf(name)
	s.publishFiles()
	return nil
}

// ClearAll revokes every preview, empties the set and clears the viewer.
func (s *Session) ClearAll() {
	removed := s.files.Clear()
	s.viewer.Clear()
	if len(removed) > 0 {
		s.publishFiles()
	}
}

// Documents lists the set in insertion order.
func (s *Session) Documents() []DocumentInfo {
	return s.files.List()
}

// Contents returns the stored documents in insertion order.
func (s *Session) Contents() []*Document {
	return s.files.Documents()
}

// Document returns the document stored under exactly name.
func (s *Session) Document(name string) (*Document, bool) {
	return s.files.Get(name)
}

// Preview returns the live preview handle for name.
func (s *Session) Preview(name string) (PreviewHandle, bool) {
	return s.files.Preview(name)
}

// OpenPreview captures the content behind a preview token.
func (s *Session) OpenPreview(token string) (PreviewContent, error) {
	return s.files.OpenPreview(token)
}

// ResolveDocumentName maps a backend-reported name onto a local document.
func (s *Session) ResolveDocumentName(candidate string) (*Document, error) {
	d, tier, err := s.files.Resolve(candidate)
	if err != nil {
		metrics.NameResolutionTotal.WithLabelValues("none").Inc()
		s.log.Warn("document name not resolved", zap.String("candidate", candidate))
		return nil, err
	}
	metrics.NameResolutionTotal.WithLabelValues(string(tier)).Inc()
	if tier != TierExact {
		s.log.Debug("document name resolved",
			zap.String("candidate", candidate),
			zap.String("document", d.Name),
			zap.String("tier", string(tier)))
	}
	return d, nil
}

// Select shows page (1-based) of the document that name resolves to.
func (s *Session) Select(name string, page int) (Snapshot, error) {
	d, err := s.ResolveDocumentName(name)
	if err != nil {
		return Snapshot{}, err
	}
	if err := s.viewer.Select(d.Name, page); err != nil {
		return Snapshot{}, err
	}
	return s.viewer.Snapshot(), nil
}

// HighlightHeading highlights heading in the document that name resolves to.
func (s *Session) HighlightHeading(ctx context.Context, name string, h Heading) (HighlightResult, error) {
	d, err := s.ResolveDocumentName(name)
	if err != nil {
		return HighlightResult{}, err
	}
	return s.viewer.HighlightHeading(ctx, d.Name, h)
}

// Viewer returns the current viewer state.
func (s *Session) Viewer() Snapshot {
	return s.viewer.Snapshot()
}

// WaitViewer blocks until the current selection has loaded or failed.
func (s *Session) WaitViewer(ctx context.Context) (Snapshot, error) {
	return s.viewer.WaitLoaded(ctx)
}

// ClearViewer drops the selection and highlight.
func (s *Session) ClearViewer() {
	s.viewer.Clear()
}

// Begin starts an outbound request of op, superseding any older one.
func (s *Session) Begin(ctx context.Context, op Operation) (context.Context, Ticket, func(), error) {
	if s.isClosed() {
		return nil, Ticket{}, func() {}, ErrSessionClosed
	}
	return s.requests.Begin(ctx, op)
}

// Current reports whether t is still the latest request of its operation.
func (s *Session) Current(t Ticket) bool {
	return s.requests.Current(t)
}

// Commit runs apply only while t is current. A stale ticket is counted and
// reported as ErrSuperseded.
func (s *Session) Commit(t Ticket, apply func()) error {
	if !s.requests.Commit(t, apply) {
		metrics.StaleResultsTotal.WithLabelValues(string(t.Op)).Inc()
		s.log.Info("discarded stale result", zap.String("operation", string(t.Op)), zap.Uint64("seq", t.Seq))
		return ErrSuperseded
	}
	return nil
}

// CommitOutline replaces the stored outline with outlines, each reconciled
// against the local set.
func (s *Session) CommitOutline(t Ticket, outlines []DocumentOutline) ([]DocumentOutline, error) {
	resolved := make([]DocumentOutline, len(outlines))
	for i, o := range outlines {
		o.Resolution = s.resolution(o.Filename)
		resolved[i] = o
	}
	err := s.Commit(t, func() {
		s.mu.Lock()
		s.outline = resolved
		s.mu.Unlock()
	})
	if err != nil {
		return nil, err
	}
	return resolved, nil
}

// Outline returns the last committed outline.
func (s *Session) Outline() []DocumentOutline {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.outline
}

// CommitRecommendation replaces the stored recommendation, reconciling every
// section's document name.
func (s *Session) CommitRecommendation(t Ticket, rec Recommendation) (*Recommendation, error) {
	rec.Sections = s.ReconcileSections(rec.Sections)
	err := s.Commit(t, func() {
		s.mu.Lock()
		s.recommendation = &rec
		s.mu.Unlock()
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Recommendation returns the last committed recommendation, if any.
func (s *Session) Recommendation() *Recommendation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recommendation
}

// ReconcileSections returns a copy of sections with each document name
// resolved. Unresolved sections are kept and marked unavailable.
func (s *Session) ReconcileSections(sections []Section) []Section {
	out := make([]Section, len(sections))
	for i, sec := range sections {
		sec.Resolution = s.resolution(sec.Document)
		out[i] = sec
	}
	return out
}

// ReconcileSnippets returns a copy of snippets with each document name resolved.
func (s *Session) ReconcileSnippets(snippets []Snippet) []Snippet {
	out := make([]Snippet, len(snippets))
	for i, sn := range snippets {
		sn.Resolution = s.resolution(sn.DocumentName)
		out[i] = sn
	}
	return out
}

// Close clears the session and cancels every in-flight request. Further
// uploads and requests fail with ErrSessionClosed.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.requests.CancelAll(true)
	s.ClearAll()
	s.log.Debug("session closed")
}

func (s *Session) resolution(name string) Resolution {
	r, ok := resolution(s.files, name)
	if !ok {
		metrics.NameResolutionTotal.WithLabelValues("none").Inc()
		s.log.Warn("document name not resolved", zap.String("candidate", name))
		return r
	}
	metrics.NameResolutionTotal.WithLabelValues(string(r.MatchTier)).Inc()
	return r
}

func (s *Session) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func (s *Session) publishFiles() {
	s.FilesChanged.Publish(FilesChanged{Documents: s.files.Names()})
}
