package session

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound  = errors.New("document not found")
	ErrPreviewRevoked    = errors.New("preview handle revoked")
	ErrSuperseded        = errors.New("superseded by a newer request")
	ErrDocumentRemoved   = errors.New("document is no longer in the session")
	ErrViewerUnavailable = errors.New("viewer unavailable")
	ErrSessionClosed     = errors.New("session closed")
)

// NotFoundError is returned when a name reported by a backend cannot be
// matched to any local document. It satisfies errors.Is(err, ErrDocumentNotFound).
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("document %q not available for preview", e.Name)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrDocumentNotFound
}
