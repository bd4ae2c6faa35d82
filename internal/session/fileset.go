package session

import (
	"sync"
	"time"
)

// AddResult reports the outcome of AddFiles. Duplicate names are dropped,
// never renamed or replaced; Skipped makes that policy observable.
type AddResult struct {
	Added     []string       `json:"added"`
	Skipped   []string       `json:"skipped"`
	Documents []DocumentInfo `json:"documents"`
}

// FileSet is the unique-by-name collection of uploaded documents together
// with their preview handles.
type FileSet struct {
	mu       sync.RWMutex
	order    []string
	docs     map[string]*Document
	previews *previews
	now      func() time.Time
}

// NewFileSet creates an empty set. onRevoke, if non-nil, is called once for
// every preview handle at the moment it is revoked.
func NewFileSet(onRevoke func(PreviewHandle)) *FileSet {
	return &FileSet{
		docs:     make(map[string]*Document),
		previews: newPreviews(onRevoke),
		now:      time.Now,
	}
}

// Add stores every candidate whose name is not already present. Names are
// compared case-sensitively. A preview handle is issued for PDF content types.
func (f *FileSet) Add(candidates []Candidate) AddResult {
	f.mu.Lock()
	defer f.mu.Unlock()

	res := AddResult{Added: []string{}, Skipped: []string{}}
	for _, c := range candidates {
		if _, exists := f.docs[c.Name]; exists {
			res.Skipped = append(res.Skipped, c.Name)
			continue
		}
		now := f.now()
		f.docs[c.Name] = &Document{
			Name:        c.Name,
			Bytes:       c.Bytes,
			Size:        int64(len(c.Bytes)),
			ContentType: c.ContentType,
			AddedAt:     now,
		}
		f.order = append(f.order, c.Name)
		if IsPDFType(c.ContentType) {
			f.previews.issue(c.Name, now)
		}
		res.Added = append(res.Added, c.Name)
	}
	res.Documents = f.listLocked()
	return res
}

// Remove revokes the document's preview handle and then deletes it.
func (f *FileSet) Remove(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.docs[name]; !ok {
		return ErrDocumentNotFound
	}
	f.previews.revoke(name)
	delete(f.docs, name)
	for i, n := range f.order {
		if n == name {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return nil
}

// Clear revokes every handle and empties the set. It returns the removed names.
func (f *FileSet) Clear() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	removed := f.order
	for _, name := range removed {
		f.previews.revoke(name)
	}
	f.order = nil
	f.docs = make(map[string]*Document)
	return removed
}

// Get returns the document stored under exactly name.
func (f *FileSet) Get(name string) (*Document, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	d, ok := f.docs[name]
	return d, ok
}

// Has reports whether name is present.
func (f *FileSet) Has(name string) bool {
	_, ok := f.Get(name)
	return ok
}

// Len returns the number of documents.
func (f *FileSet) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.order)
}

// Names returns document names in insertion order.
func (f *FileSet) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// Documents returns the documents in insertion order.
func (f *FileSet) Documents() []*Document {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.documentsLocked()
}

// List returns the public view of the set in insertion order.
func (f *FileSet) List() []DocumentInfo {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.listLocked()
}

// Preview returns the live handle for a document, if any.
func (f *FileSet) Preview(name string) (PreviewHandle, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	h, ok := f.previews.forName(name)
	if !ok {
		return PreviewHandle{}, false
	}
	return *h, true
}

// LivePreviews returns the number of unrevoked handles.
func (f *FileSet) LivePreviews() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.previews.live()
}

// OpenPreview captures the content behind a handle. Capture and revocation
// take the same lock, so a preview is either captured before removal or
// rejected with ErrPreviewRevoked.
func (f *FileSet) OpenPreview(token string) (PreviewContent, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	h, ok := f.previews.lookup(token)
	if !ok {
		return PreviewContent{}, ErrPreviewRevoked
	}
	d := f.docs[h.Document]
	return PreviewContent{Name: d.Name, ContentType: d.ContentType, Data: d.Bytes}, nil
}

// Resolve maps a backend-reported name onto a local document.
func (f *FileSet) Resolve(candidate string) (*Document, MatchTier, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return resolve(f.documentsLocked(), candidate)
}

func (f *FileSet) documentsLocked() []*Document {
	out := make([]*Document, 0, len(f.order))
	for _, name := range f.order {
		out = append(out, f.docs[name])
	}
	return out
}

func (f *FileSet) listLocked() []DocumentInfo {
	out := make([]DocumentInfo, 0, len(f.order))
	for _, name := range f.order {
		d := f.docs[name]
		info := DocumentInfo{
			Name:        d.Name,
			Size:        d.Size,
			ContentType: d.ContentType,
			AddedAt:     d.AddedAt,
		}
		if h, ok := f.previews.forName(name); ok {
			info.PreviewToken = h.Token
		}
		out = append(out, info)
	}
	return out
}
