package deposition

import (
	"context"
	"errors"
	"sync"

	"nmrdeposit/internal/star/document"
)

var (
	ErrEntryRequired = errors.New("entry_id is required")
	// ErrSuperseded is returned to a save that a newer save canceled.
	ErrSuperseded = errors.New("save superseded by a newer request")
)

// session owns the authoritative tree of one deposition. Every read and
// write of entry happens under mu.
type session struct {
	mu      sync.Mutex
	entry   *document.Entry
	rev     uint64
	changed chan struct{}
	save    *saveJob
}

type saveJob struct {
	id     string
	rev    uint64
	cancel context.CancelFunc
	done   chan struct{}
}

func newSession(e *document.Entry) *session {
	return &session{entry: e, changed: make(chan struct{})}
}

// notifyLocked wakes every subscriber. The caller holds mu.
func (s *session) notifyLocked() {
	s.rev++
	close(s.changed)
	s.changed = make(chan struct{})
}

// SaveResult reports a completed save.
type SaveResult struct {
	SaveID string          `json:"save_id"`
	Status document.Status `json:"status"`
}

// UploadResult reports a stored data file.
type UploadResult struct {
	UploadID string          `json:"upload_id"`
	Name     string          `json:"name"`
	Size     int             `json:"size"`
	Status   document.Status `json:"status"`
}
