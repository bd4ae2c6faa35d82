// Package session implements the per-tab document session: the uploaded file
// set and its preview handles, the viewer synchronizer, reconciliation of
// backend-reported filenames against local documents, and supersession of
// overlapping analysis requests.
//
// A Session is safe for concurrent use. HTTP handlers for the same browser tab
// may run in parallel; every invariant below holds between calls:
//
//   - document names are unique within a session
//   - every live document has at most one preview handle, and no handle
//     outlives its document
//   - at most one viewer selection and at most one highlight annotation exist,
//     and both refer to a document still in the set
package session

import (
	"mime"
	"strings"
	"time"
)

// Document is an uploaded file. The session owns Bytes exclusively; callers
// must not modify a slice after handing it to AddFiles.
type Document struct {
	Name        string
	Bytes       []byte
	Size        int64
	ContentType string
	AddedAt     time.Time
}

// Candidate is a raw file offered to AddFiles.
type Candidate struct {
	Name        string
	Bytes       []byte
	ContentType string
}

// DocumentInfo is the public view of a Document.
type DocumentInfo struct {
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type"`
	PreviewToken string    `json:"preview_token,omitempty"`
	AddedAt      time.Time `json:"added_at"`
}

// IsPDFType reports whether a declared content type denotes a PDF.
func IsPDFType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	switch mediaType {
	case "application/pdf", "application/x-pdf":
		return true
	}
	return false
}
