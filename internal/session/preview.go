package session

import (
	"time"

	"github.com/google/uuid"
)

// PreviewHandle is a revocable token that lets the browser open a document in
// a new tab. It is the server-side counterpart of a blob URL.
type PreviewHandle struct {
	Token     string    `json:"token"`
	Document  string    `json:"document"`
	CreatedAt time.Time `json:"created_at"`
}

// PreviewContent is what an open-preview action captures. Data is the
// document's immutable blob, so it stays valid after the handle is revoked.
type PreviewContent struct {
	Name        string
	ContentType string
	Data        []byte
}

// previews indexes live handles by document name and by token.
// Not safe for concurrent use; FileSet guards it with its own mutex.
type previews struct {
	byName   map[string]*PreviewHandle
	byToken  map[string]*PreviewHandle
	onRevoke func(PreviewHandle)
}

func newPreviews(onRevoke func(PreviewHandle)) *previews {
	return &previews{
		byName:   make(map[string]*PreviewHandle),
		byToken:  make(map[string]*PreviewHandle),
		onRevoke: onRevoke,
	}
}

func (p *previews) issue(name string, now time.Time) *PreviewHandle {
	h := &PreviewHandle{
		Token:     uuid.NewString(),
		Document:  name,
		CreatedAt: now,
	}
	p.byName[name] = h
	p.byToken[h.Token] = h
	return h
}

func (p *previews) revoke(name string) bool {
	h, ok := p.byName[name]
	if !ok {
		return false
	}
	delete(p.byName, name)
	delete(p.byToken, h.Token)
	if p.onRevoke != nil {
		p.onRevoke(*h)
	}
	return true
}

func (p *previews) lookup(token string) (*PreviewHandle, bool) {
	h, ok := p.byToken[token]
	return h, ok
}

func (p *previews) forName(name string) (*PreviewHandle, bool) {
	h, ok := p.byName[name]
	return h, ok
}

func (p *previews) live() int {
	return len(p.byToken)
}
