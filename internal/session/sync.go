package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Shimizu-Technology/docsight-api/internal/metrics"
	"github.com/Shimizu-Technology/docsight-api/internal/viewer"
)

// ViewerState is the state of the viewer synchronizer.
type ViewerState string

const (
	StateIdle    ViewerState = "idle"
	StateLoading ViewerState = "loading"
	StateReady   ViewerState = "ready"
	// StateFailed keeps the selection but reports that the engine could not
	// load it. The rest of the session stays usable.
	StateFailed ViewerState = "failed"
)

// Highlight is the single live highlight annotation.
type Highlight struct {
	ID   string             `json:"id"`
	Page int                `json:"page"`
	Box  viewer.BoundingBox `json:"box"`
}

// Snapshot is the observable viewer state.
type Snapshot struct {
	State     ViewerState `json:"state"`
	Document  string      `json:"document,omitempty"`
	Page      int         `json:"page,omitempty"`
	Highlight *Highlight  `json:"highlight,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// HighlightResult is the outcome of a heading highlight. When no match was
// found on the target page, Highlighted is false and Warning says why.
type HighlightResult struct {
	Document    string     `json:"document"`
	Page        int        `json:"page"`
	Highlighted bool       `json:"highlighted"`
	Highlight   *Highlight `json:"highlight,omitempty"`
	Warning     string     `json:"warning,omitempty"`
}

// instance is one engine opened for one selection.
type instance struct {
	doc    string
	page   int
	engine viewer.Engine
	loaded chan struct{}
	once   sync.Once
}

func (i *instance) markLoaded() {
	i.once.Do(func() { close(i.loaded) })
}

// Synchronizer keeps exactly one engine instance in step with the viewer
// selection and owns the single highlight annotation. It is the only caller
// of engine navigation and annotation methods.
type Synchronizer struct {
	files    *FileSet
	opener   viewer.Opener
	log      *zap.Logger
	onChange func(Snapshot)

	mu        sync.Mutex
	state     ViewerState
	current   *instance
	highlight *Highlight
	failure   string
	seqID     uint64
	seqCancel context.CancelFunc

	// held for the whole of a highlight sequence
	seqMu sync.Mutex
}

// NewSynchronizer creates an idle synchronizer over files. onChange, if
// non-nil, receives a snapshot after every state change, outside any lock.
func NewSynchronizer(files *FileSet, opener viewer.Opener, log *zap.Logger, onChange func(Snapshot)) *Synchronizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Synchronizer{
		files:    files,
		opener:   opener,
		log:      log.Named("viewer"),
		onChange: onChange,
		state:    StateIdle,
	}
}

// Snapshot returns the current viewer state.
func (s *Synchronizer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Select shows page (1-based) of document name. Any running highlight
// sequence is superseded. Selecting the shown document and page again is a
// no-op unless the viewer failed.
func (s *Synchronizer) Select(name string, page int) error {
	s.mu.Lock()
	s.cancelSequenceLocked()
	_, changed, err := s.selectLocked(name, page)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if changed {
		s.notify(snap)
	}
	return err
}

// WaitLoaded blocks until the current selection has finished loading (or
// failed) and returns the resulting snapshot.
func (s *Synchronizer) WaitLoaded(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	inst := s.current
	s.mu.Unlock()
	if inst == nil {
		return s.Snapshot(), nil
	}
	select {
	case <-inst.loaded:
		return s.Snapshot(), nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// Clear tears down the engine and drops selection and highlight.
func (s *Synchronizer) Clear() {
	s.mu.Lock()
	s.cancelSequenceLocked()
	wasIdle := s.current == nil
	s.teardownLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if !wasIdle {
		s.notify(snap)
	}
}

// ClearIf clears the viewer only when it shows document name. It reports
// whether it did.
func (s *Synchronizer) ClearIf(name string) bool {
	s.mu.Lock()
	if s.current == nil || s.current.doc != name {
		s.mu.Unlock()
		return false
	}
	s.cancelSequenceLocked()
	s.teardownLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return true
}

// HighlightHeading highlights heading in document name, switching the
// selection first if needed. Sequences are serialized: a new call cancels
// the running one, which then returns ErrSuperseded without touching the
// highlight state.
func (s *Synchronizer) HighlightHeading(parent context.Context, name string, h Heading) (HighlightResult, error) {
	ctx, id := s.beginSequence(parent)
	defer s.endSequence(id)

	s.seqMu.Lock()
	defer s.seqMu.Unlock()

	res, err := s.runSequence(parent, ctx, name, h)
	switch {
	case err == nil && res.Highlighted:
		metrics.HighlightTotal.WithLabelValues(metrics.HighlightApplied).Inc()
	case err == nil:
		metrics.HighlightTotal.WithLabelValues(metrics.HighlightFallback).Inc()
	case errors.Is(err, ErrSuperseded):
		metrics.HighlightTotal.WithLabelValues(metrics.HighlightSuperseded).Inc()
	default:
		metrics.HighlightTotal.WithLabelValues(metrics.HighlightFailed).Inc()
	}
	return res, err
}

func (s *Synchronizer) runSequence(parent, ctx context.Context, name string, h Heading) (HighlightResult, error) {
	if ctx.Err() != nil {
		return HighlightResult{}, sequenceErr(parent)
	}
	target := h.Page + 1
	if target < 1 {
		target = 1
	}

	// 1. select the document and wait for the ready signal
	inst, err := s.ensureSelected(name, target)
	if err != nil {
		return HighlightResult{}, err
	}
	select {
	case <-inst.loaded:
	case <-ctx.Done():
		return HighlightResult{}, sequenceErr(parent)
	}

	s.mu.Lock()
	if s.current != inst {
		s.mu.Unlock()
		return HighlightResult{}, ErrSuperseded
	}
	if s.state == StateFailed {
		failure := s.failure
		s.mu.Unlock()
		return HighlightResult{}, fmt.Errorf("%w: %s", ErrViewerUnavailable, failure)
	}
	engine := inst.engine
	prev := s.highlight
	s.mu.Unlock()

	// 2. remove the previous highlight before adding a new one
	if prev != nil {
		if err := engine.RemoveAnnotations(ctx, []string{prev.ID}); err != nil {
			if ctx.Err() != nil {
				return HighlightResult{}, sequenceErr(parent)
			}
			return HighlightResult{}, fmt.Errorf("remove highlight: %w", err)
		}
		s.mu.Lock()
		if s.highlight == prev {
			s.highlight = nil
		}
		s.mu.Unlock()
	}

	// 3. search, 4. pick the match on the target page
	res := HighlightResult{Document: name, Page: target}
	matches, searchErr := engine.Search(ctx, h.Text)
	if ctx.Err() != nil {
		return HighlightResult{}, sequenceErr(parent)
	}
	box, found := matchOnPage(matches, target)

	if found {
		// 5. highlight the first box and move the viewport to it
		annID, err := engine.AddHighlight(ctx, target, box)
		if err != nil {
			if ctx.Err() != nil {
				return HighlightResult{}, sequenceErr(parent)
			}
			return HighlightResult{}, fmt.Errorf("add highlight: %w", err)
		}
		hl := &Highlight{ID: annID, Page: target, Box: box}
		if !s.record(inst, hl, target) {
			return HighlightResult{}, ErrSuperseded
		}
		if err := engine.GotoLocation(ctx, target, &viewer.Point{X: box.Left, Y: box.Top}); err != nil {
			if ctx.Err() != nil {
				return HighlightResult{}, sequenceErr(parent)
			}
			return HighlightResult{}, fmt.Errorf("navigate: %w", err)
		}
		res.Highlighted = true
		res.Highlight = hl
		return res, nil
	}

	// 6. fall back to page navigation
	if err := engine.GotoLocation(ctx, target, nil); err != nil {
		if ctx.Err() != nil {
			return HighlightResult{}, sequenceErr(parent)
		}
		return HighlightResult{}, fmt.Errorf("navigate: %w", err)
	}
	if !s.record(inst, nil, target) {
		return HighlightResult{}, ErrSuperseded
	}
	res.Warning = fmt.Sprintf("heading %q not found on page %d", h.Text, target)
	fields := []zap.Field{
		zap.String("document", name),
		zap.String("heading", h.Text),
		zap.Int("page", target),
	}
	if searchErr != nil {
		fields = append(fields, zap.Error(searchErr))
	}
	s.log.Warn("heading not found on target page, navigated to page only", fields...)
	return res, nil
}

// ensureSelected returns the instance showing name, opening one if the
// current selection is a different document or has failed.
func (s *Synchronizer) ensureSelected(name string, page int) (*instance, error) {
	s.mu.Lock()
	if s.current != nil && s.current.doc == name && s.state != StateFailed {
		inst := s.current
		s.mu.Unlock()
		return inst, nil
	}
	inst, changed, err := s.selectLocked(name, page)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if changed {
		s.notify(snap)
	}
	return inst, err
}

// record stores hl as the live highlight and page as the shown page, provided
// inst is still the current instance.
func (s *Synchronizer) record(inst *instance, hl *Highlight, page int) bool {
	s.mu.Lock()
	if s.current != inst {
		s.mu.Unlock()
		return false
	}
	if hl != nil {
		s.highlight = hl
	}
	inst.page = page
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return true
}

// selectLocked replaces the current instance with a new one for name.
func (s *Synchronizer) selectLocked(name string, page int) (*instance, bool, error) {
	if page < 1 {
		page = 1
	}
	doc, ok := s.files.Get(name)
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", ErrDocumentRemoved, name)
	}
	if s.current != nil && s.current.doc == name && s.current.page == page && s.state != StateFailed {
		return s.current, false, nil
	}

	s.teardownLocked()
	inst := &instance{doc: name, page: page, loaded: make(chan struct{})}
	s.current = inst

	engine, err := s.opener.Open(doc.Name, doc.Bytes)
	if err != nil {
		s.state = StateFailed
		s.failure = err.Error()
		inst.markLoaded()
		s.log.Warn("viewer failed to open document", zap.String("document", name), zap.Error(err))
		return inst, true, nil
	}
	inst.engine = engine
	s.state = StateLoading
	go s.awaitReady(inst)
	return inst, true, nil
}

// awaitReady waits for the engine's ready signal and only then navigates to
// the requested page.
func (s *Synchronizer) awaitReady(inst *instance) {
	defer inst.markLoaded()

	<-inst.engine.Ready()
	loadErr := inst.engine.Err()

	s.mu.Lock()
	if s.current != inst {
		s.mu.Unlock()
		return
	}
	if loadErr != nil {
		s.state = StateFailed
		s.failure = loadErr.Error()
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.log.Warn("viewer failed to load document", zap.String("document", inst.doc), zap.Error(loadErr))
		s.notify(snap)
		return
	}
	page := inst.page
	s.mu.Unlock()

	if page > 1 {
		if err := inst.engine.GotoLocation(context.Background(), page, nil); err != nil {
			s.log.Warn("initial navigation failed", zap.String("document", inst.doc), zap.Int("page", page), zap.Error(err))
		}
	}

	s.mu.Lock()
	if s.current != inst {
		s.mu.Unlock()
		return
	}
	s.state = StateReady
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

func (s *Synchronizer) teardownLocked() {
	if s.current != nil {
		if s.current.engine != nil {
			if err := s.current.engine.Close(); err != nil {
				s.log.Debug("engine close", zap.String("document", s.current.doc), zap.Error(err))
			}
		}
		s.current.markLoaded()
		s.current = nil
	}
	s.highlight = nil
	s.state = StateIdle
	s.failure = ""
}

func (s *Synchronizer) beginSequence(parent context.Context) (context.Context, uint64) {
	ctx, cancel := context.WithCancel(parent)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelSequenceLocked()
	s.seqID++
	s.seqCancel = cancel
	return ctx, s.seqID
}

func (s *Synchronizer) endSequence(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seqID == id && s.seqCancel != nil {
		s.seqCancel()
		s.seqCancel = nil
	}
}

func (s *Synchronizer) cancelSequenceLocked() {
	if s.seqCancel != nil {
		s.seqCancel()
		s.seqCancel = nil
	}
}

func (s *Synchronizer) snapshotLocked() Snapshot {
	snap := Snapshot{State: s.state, Error: s.failure}
	if s.current != nil {
		snap.Document = s.current.doc
		snap.Page = s.current.page
	}
	if s.highlight != nil {
		hl := *s.highlight
		snap.Highlight = &hl
	}
	return snap
}

func (s *Synchronizer) notify(snap Snapshot) {
	if s.onChange != nil {
		s.onChange(snap)
	}
}

// matchOnPage returns the first box of the first match on page.
func matchOnPage(matches []viewer.SearchMatch, page int) (viewer.BoundingBox, bool) {
	for _, m := range matches {
		if m.Page == page && len(m.Boxes) > 0 {
			return m.Boxes[0], true
		}
	}
	return viewer.BoundingBox{}, false
}

// sequenceErr reports why a cancelled sequence stopped: the caller's own
// context, or a newer sequence.
func sequenceErr(parent context.Context) error {
	if err := parent.Err(); err != nil {
		return err
	}
	return ErrSuperseded
}
