package session

import (
	"context"
	"sync"
	"time"
)

// Operation names a kind of outbound analysis request.
type Operation string

const (
	OpOutline         Operation = "outline"
	OpRecommendations Operation = "recommendations"
	OpSnippets        Operation = "snippets"
	OpAsk             Operation = "ask"
	OpFacts           Operation = "facts"
	OpPodcast         Operation = "podcast"
)

// Ticket identifies one request of an operation. Only the latest ticket of an
// operation may commit its result.
type Ticket struct {
	Op  Operation
	Seq uint64
}

// Requests tracks the in-flight request per operation. Beginning a request
// cancels the previous one of the same operation, and every request carries
// a deadline.
type Requests struct {
	mu      sync.Mutex
	timeout time.Duration
	seq     map[Operation]uint64
	cancels map[Operation]context.CancelFunc
	closed  bool
}

// NewRequests creates a tracker whose requests time out after timeout.
// A zero timeout disables the deadline.
func NewRequests(timeout time.Duration) *Requests {
	return &Requests{
		timeout: timeout,
		seq:     make(map[Operation]uint64),
		cancels: make(map[Operation]context.CancelFunc),
	}
}

// Begin starts a request of op, cancelling any older one. The returned
// release func must be called when the request finishes.
func (r *Requests) Begin(parent context.Context, op Operation) (context.Context, Ticket, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, Ticket{}, func() {}, ErrSessionClosed
	}
	if cancel := r.cancels[op]; cancel != nil {
		cancel()
	}

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if r.timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, r.timeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}

	r.seq[op]++
	t := Ticket{Op: op, Seq: r.seq[op]}
	r.cancels[op] = cancel

	release := func() {
		cancel()
		r.mu.Lock()
		if r.seq[t.Op] == t.Seq {
			delete(r.cancels, t.Op)
		}
		r.mu.Unlock()
	}
	return ctx, t, release, nil
}

// Current reports whether t is still the latest request of its operation.
func (r *Requests) Current(t Ticket) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.closed && r.seq[t.Op] == t.Seq
}

// Commit runs apply only if t is still current, atomically with respect to
// Begin. It reports whether apply ran.
func (r *Requests) Commit(t Ticket, apply func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.seq[t.Op] != t.Seq {
		return false
	}
	apply()
	return true
}

// CancelAll cancels every in-flight request and, when closing, rejects
// further ones.
func (r *Requests) CancelAll(closing bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for op, cancel := range r.cancels {
		cancel()
		delete(r.cancels, op)
		// bump so late results of cancelled requests are discarded
		r.seq[op]++
	}
	if closing {
		r.closed = true
	}
}
