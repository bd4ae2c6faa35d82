package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Shimizu-Technology/docsight-api/internal/viewer"
)

type gotoCall struct {
	Page int
	At   *viewer.Point
}

// fakeEngine is an in-memory viewer.Engine. Loading completes when
// finishLoad is called, or immediately when the opener is in auto mode.
type fakeEngine struct {
	name string

	mu          sync.Mutex
	ready       chan struct{}
	readyOnce   sync.Once
	loadErr     error
	closed      bool
	matches     map[string][]viewer.SearchMatch
	searchErr   error
	searchGate  chan struct{}
	entered     chan struct{}
	annotations map[string]int
	nextID      int
	gotos       []gotoCall
	searches    []string
}

func newFakeEngine(name string) *fakeEngine {
	return &fakeEngine{
		name:        name,
		ready:       make(chan struct{}),
		matches:     make(map[string][]viewer.SearchMatch),
		annotations: make(map[string]int),
		entered:     make(chan struct{}, 8),
	}
}

func (e *fakeEngine) finishLoad(err error) {
	e.mu.Lock()
	e.loadErr = err
	e.mu.Unlock()
	e.readyOnce.Do(func() { close(e.ready) })
}

func (e *fakeEngine) Ready() <-chan struct{} { return e.ready }

func (e *fakeEngine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loadErr != nil {
		return e.loadErr
	}
	if e.closed {
		return viewer.ErrClosed
	}
	return nil
}

func (e *fakeEngine) Search(ctx context.Context, text string) ([]viewer.SearchMatch, error) {
	e.mu.Lock()
	e.searches = append(e.searches, text)
	gate := e.searchGate
	e.mu.Unlock()

	select {
	case e.entered <- struct{}{}:
	default:
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, viewer.ErrClosed
	}
	return e.matches[text], e.searchErr
}

func (e *fakeEngine) AddHighlight(ctx context.Context, page int, box viewer.BoundingBox) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return "", viewer.ErrClosed
	}
	e.nextID++
	id := fmt.Sprintf("ann-%d", e.nextID)
	e.annotations[id] = page
	return id, nil
}

func (e *fakeEngine) RemoveAnnotations(ctx context.Context, ids []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, id := range ids {
		delete(e.annotations, id)
	}
	return nil
}

func (e *fakeEngine) GotoLocation(ctx context.Context, page int, at *viewer.Point) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gotos = append(e.gotos, gotoCall{Page: page, At: at})
	return nil
}

func (e *fakeEngine) Close() error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.readyOnce.Do(func() { close(e.ready) })
	return nil
}

func (e *fakeEngine) liveAnnotations() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.annotations)
}

func (e *fakeEngine) gotoCalls() []gotoCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]gotoCall(nil), e.gotos...)
}

func (e *fakeEngine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// fakeOpener hands out fakeEngines and remembers them.
type fakeOpener struct {
	auto    bool
	openErr error
	setup   func(*fakeEngine)

	mu      sync.Mutex
	engines []*fakeEngine
}

func (o *fakeOpener) Open(name string, data []byte) (viewer.Engine, error) {
	if o.openErr != nil {
		return nil, o.openErr
	}
	e := newFakeEngine(name)
	if o.setup != nil {
		o.setup(e)
	}
	o.mu.Lock()
	o.engines = append(o.engines, e)
	o.mu.Unlock()
	if o.auto {
		e.finishLoad(nil)
	}
	return e, nil
}

func (o *fakeOpener) last() *fakeEngine {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.engines) == 0 {
		return nil
	}
	return o.engines[len(o.engines)-1]
}

func (o *fakeOpener) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.engines)
}

var errBrokenPDF = errors.New("broken pdf")

func pdfCandidates(names ...string) []Candidate {
	out := make([]Candidate, 0, len(names))
	for _, n := range names {
		out = append(out, Candidate{Name: n, Bytes: []byte("%PDF-1.4 " + n), ContentType: "application/pdf"})
	}
	return out
}
