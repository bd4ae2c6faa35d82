// Package viewer defines the contract between the session's viewer
// synchronizer and a Viewer Engine: an embedded PDF renderer that loads a
// document asynchronously, searches its text and draws highlight annotations.
//
// The synchronizer is the only caller of these methods. Engines may assume a
// single caller at a time but must tolerate Close racing with a load.
package viewer

import (
	"context"
	"errors"
)

var (
	// ErrNotReady is returned by engine calls issued before the ready signal.
	ErrNotReady = errors.New("viewer: document not loaded yet")
	// ErrClosed is returned by engine calls issued after Close.
	ErrClosed = errors.New("viewer: engine closed")
)

// BoundingBox is a rectangle in PDF user space (origin bottom-left).
type BoundingBox struct {
	Left   float64 `json:"left"`
	Bottom float64 `json:"bottom"`
	Right  float64 `json:"right"`
	Top    float64 `json:"top"`
}

// Point is a viewport position in PDF user space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SearchMatch is one occurrence of a search string. Page is 1-based.
type SearchMatch struct {
	Page  int           `json:"page"`
	Boxes []BoundingBox `json:"boxes"`
}

// Engine is one loaded document instance. Instances are never reused across
// documents: a new selection always opens a new instance.
type Engine interface {
	// Ready is closed once the document has loaded, failed to load, or the
	// engine was closed. Err reports which.
	Ready() <-chan struct{}
	Err() error

	Search(ctx context.Context, text string) ([]SearchMatch, error)
	// AddHighlight draws a highlight and returns its annotation id.
	AddHighlight(ctx context.Context, page int, box BoundingBox) (string, error)
	// RemoveAnnotations removes the given ids. Unknown ids are skipped.
	RemoveAnnotations(ctx context.Context, ids []string) error
	// GotoLocation moves the viewport to page, optionally to a point on it.
	GotoLocation(ctx context.Context, page int, at *Point) error

	Close() error
}

// Opener creates engine instances from document content.
type Opener interface {
	Open(name string, data []byte) (Engine, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(name string, data []byte) (Engine, error)

// Open calls f(name, data).
func (f OpenerFunc) Open(name string, data []byte) (Engine, error) {
	return f(name, data)
}
