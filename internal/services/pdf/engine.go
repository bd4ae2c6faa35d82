package pdf

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"unicode"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"

	"github.com/Shimizu-Technology/docsight-api/internal/viewer"
)

// Annotation is a highlight drawn by the engine.
type Annotation struct {
	ID      string             `json:"id"`
	Page    int                `json:"page"`
	Box     viewer.BoundingBox `json:"box"`
	Color   [3]uint8           `json:"color"`
	Opacity float64            `json:"opacity"`
}

// Location is the engine's viewport position.
type Location struct {
	Page int           `json:"page"`
	At   *viewer.Point `json:"at,omitempty"`
}

var highlightColor = [3]uint8{255, 215, 0}

// Engine is a headless viewer engine over one document. It loads the glyph
// layout of every page in the background and closes Ready when done.
type Engine struct {
	name string
	data []byte

	ready     chan struct{}
	readyOnce sync.Once

	mu          sync.Mutex
	err         error
	closed      bool
	pages       [][]pdf.Text
	annotations map[string]Annotation
	location    Location
}

var _ viewer.Engine = (*Engine)(nil)

// OpenEngine validates data and starts loading it.
func OpenEngine(name string, data []byte) (*Engine, error) {
	if !ValidatePDF(data) {
		return nil, fmt.Errorf("%s: %w", name, ErrNotPDF)
	}
	e := &Engine{
		name:        name,
		data:        data,
		ready:       make(chan struct{}),
		annotations: make(map[string]Annotation),
	}
	go e.load()
	return e, nil
}

// Opener returns a viewer.Opener backed by OpenEngine.
func Opener() viewer.Opener {
	return viewer.OpenerFunc(func(name string, data []byte) (viewer.Engine, error) {
		return OpenEngine(name, data)
	})
}

func (e *Engine) load() {
	defer e.signal()

	pages, err := readGlyphs(e.data)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	if err != nil {
		e.err = fmt.Errorf("%s: %w", e.name, err)
		return
	}
	if len(pages) == 0 {
		e.err = fmt.Errorf("%s: document has no pages", e.name)
		return
	}
	e.pages = pages
	e.location = Location{Page: 1}
}

func readGlyphs(data []byte) (pages [][]pdf.Text, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("failed to read PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	n := reader.NumPage()
	pages = make([][]pdf.Text, 0, n)
	for i := 1; i <= n; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, nil)
			continue
		}
		pages = append(pages, page.Content().Text)
	}
	return pages, nil
}

func (e *Engine) signal() {
	e.readyOnce.Do(func() { close(e.ready) })
}

// Ready is closed once loading finished, failed, or the engine was closed.
func (e *Engine) Ready() <-chan struct{} {
	return e.ready
}

// Err reports why the engine is not usable, or nil once loaded.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.usableLocked()
}

func (e *Engine) usableLocked() error {
	switch {
	case e.closed:
		return viewer.ErrClosed
	case e.err != nil:
		return e.err
	case e.pages == nil:
		return viewer.ErrNotReady
	}
	return nil
}

// PageCount returns the number of pages, or 0 before the document loaded.
func (e *Engine) PageCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pages)
}

// Search finds every occurrence of text, case-insensitively and ignoring
// differences in whitespace. Each match has one box per line it spans.
func (e *Engine) Search(ctx context.Context, text string) ([]viewer.SearchMatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.usableLocked(); err != nil {
		return nil, err
	}

	query := []rune(collapseSpace(strings.ToLower(text)))
	if len(query) == 0 {
		return nil, nil
	}

	var matches []viewer.SearchMatch
	for i, glyphs := range e.pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		runes, owners := layout(glyphs)
		for _, start := range indexAll(runes, query) {
			boxes := boxesFor(glyphs, owners[start:start+len(query)])
			if len(boxes) > 0 {
				matches = append(matches, viewer.SearchMatch{Page: i + 1, Boxes: boxes})
			}
		}
	}
	return matches, nil
}

// AddHighlight draws a highlight on page and returns its id.
func (e *Engine) AddHighlight(ctx context.Context, page int, box viewer.BoundingBox) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.usableLocked(); err != nil {
		return "", err
	}
	if err := e.checkPageLocked(page); err != nil {
		return "", err
	}
	a := Annotation{
		ID:      uuid.NewString(),
		Page:    page,
		Box:     box,
		Color:   highlightColor,
		Opacity: 0.5,
	}
	e.annotations[a.ID] = a
	return a.ID, nil
}

// RemoveAnnotations deletes the given annotations; unknown ids are skipped.
func (e *Engine) RemoveAnnotations(ctx context.Context, ids []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.usableLocked(); err != nil {
		return err
	}
	for _, id := range ids {
		delete(e.annotations, id)
	}
	return nil
}

// Annotations returns the live annotations.
func (e *Engine) Annotations() []Annotation {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Annotation, 0, len(e.annotations))
	for _, a := range e.annotations {
		out = append(out, a)
	}
	return out
}

// GotoLocation moves the viewport.
func (e *Engine) GotoLocation(ctx context.Context, page int, at *viewer.Point) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.usableLocked(); err != nil {
		return err
	}
	if err := e.checkPageLocked(page); err != nil {
		return err
	}
	e.location = Location{Page: page, At: at}
	return nil
}

// Location returns the viewport position.
func (e *Engine) Location() Location {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.location
}

// Close releases the document. A load still running is discarded.
func (e *Engine) Close() error {
	e.mu.Lock()
	e.closed = true
	e.pages = nil
	e.annotations = make(map[string]Annotation)
	e.mu.Unlock()
	e.signal()
	return nil
}

func (e *Engine) checkPageLocked(page int) error {
	if page < 1 || page > len(e.pages) {
		return fmt.Errorf("page %d out of range 1..%d", page, len(e.pages))
	}
	return nil
}

// layout flattens a page's glyphs into lowercase runes with single spaces
// between words and lines. owners[i] is the glyph index of runes[i], or -1
// for an inserted space.
func layout(glyphs []pdf.Text) (runes []rune, owners []int) {
	space := func(owner int) {
		if len(runes) > 0 && runes[len(runes)-1] != ' ' {
			runes = append(runes, ' ')
			owners = append(owners, owner)
		}
	}
	for i, g := range glyphs {
		if i > 0 && breaksWord(glyphs[i-1], g) {
			space(-1)
		}
		for _, r := range strings.ToLower(g.S) {
			if unicode.IsSpace(r) {
				space(i)
				continue
			}
			runes = append(runes, r)
			owners = append(owners, i)
		}
	}
	return runes, owners
}

// breaksWord reports whether a gap or line change separates two glyphs.
func breaksWord(prev, next pdf.Text) bool {
	size := math.Max(prev.FontSize, 1)
	if math.Abs(next.Y-prev.Y) > size*0.5 {
		return true
	}
	gap := next.X - (prev.X + prev.W)
	return gap > size*0.15 || gap < -size
}

// boxesFor groups the glyphs behind a match into one box per line.
func boxesFor(glyphs []pdf.Text, owners []int) []viewer.BoundingBox {
	var boxes []viewer.BoundingBox
	var lineY float64
	for _, idx := range owners {
		if idx < 0 {
			continue
		}
		g := glyphs[idx]
		if strings.TrimSpace(g.S) == "" {
			continue
		}
		size := math.Max(g.FontSize, 1)
		if len(boxes) == 0 || math.Abs(g.Y-lineY) > size*0.5 {
			boxes = append(boxes, viewer.BoundingBox{
				Left:   g.X,
				Bottom: g.Y,
				Right:  g.X + g.W,
				Top:    g.Y + size,
			})
			lineY = g.Y
			continue
		}
		b := &boxes[len(boxes)-1]
		b.Left = math.Min(b.Left, g.X)
		b.Right = math.Max(b.Right, g.X+g.W)
		b.Bottom = math.Min(b.Bottom, g.Y)
		b.Top = math.Max(b.Top, g.Y+size)
	}
	return boxes
}

// indexAll returns the start of every non-overlapping occurrence of needle.
func indexAll(haystack, needle []rune) []int {
	var out []int
	for i := 0; i+len(needle) <= len(haystack); {
		if runesEqual(haystack[i:i+len(needle)], needle) {
			out = append(out, i)
			i += len(needle)
			continue
		}
		i++
	}
	return out
}

func runesEqual(a, b []rune) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
