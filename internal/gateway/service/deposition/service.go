// Package deposition keeps one authoritative document per deposition and
// runs loads, mutations, saves and uploads against it.
package deposition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"nmrdeposit/internal/gateway/repository/entrystore"
	"nmrdeposit/internal/gateway/repository/upload"
	"nmrdeposit/internal/gateway/service/catalog"
	"nmrdeposit/internal/star/document"
	"nmrdeposit/internal/star/envelope"
)

type Service struct {
	entries  entrystore.Store
	uploads  upload.Store
	catalogs *catalog.Service
	checker  *envelope.Checker

	mu       sync.Mutex
	sessions map[string]*session
}

func New(entries entrystore.Store, uploads upload.Store, catalogs *catalog.Service, checker *envelope.Checker) *Service {
	return &Service{
		entries:  entries,
		uploads:  uploads,
		catalogs: catalogs,
		checker:  checker,
		sessions: make(map[string]*session),
	}
}

type loadHead struct {
	EntryID       string          `json:"entry_id"`
	Schema        json.RawMessage `json:"schema"`
	SchemaVersion string          `json:"schema_version"`
}

// Load builds a tree from a load payload and makes it the authoritative
// document for its entry id, replacing any previous one.
func (s *Service) Load(ctx context.Context, raw []byte) (document.Status, error) {
	if s.checker != nil {
		if err := s.checker.Check(raw); err != nil {
			return document.Status{}, err
		}
	}
	var head loadHead
	if err := json.Unmarshal(raw, &head); err != nil {
		return document.Status{}, fmt.Errorf("decode entry: %w", err)
	}
	id := strings.TrimSpace(head.EntryID)
	if id == "" {
		return document.Status{}, ErrEntryRequired
	}
	schemaRaw := []byte(head.Schema)
	if string(schemaRaw) == "null" {
		schemaRaw = nil
	}
	cat, err := s.catalogs.Resolve(ctx, head.SchemaVersion, schemaRaw)
	if err != nil {
		return document.Status{}, err
	}
	e, err := document.DecodeWithCatalog(raw, cat)
	if err != nil {
		return document.Status{}, err
	}

	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = newSession(e)
		s.sessions[id] = sess
	}
	s.mu.Unlock()

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.entry = e
	sess.notifyLocked()
	log.Printf("deposition: loaded %s (%d saveframes, valid=%t)", id, len(e.Saveframes), e.Valid)
	return e.Status(), nil
}

// session returns the live session for id, opening it from the entry store
// on first use.
func (s *Service) session(ctx context.Context, entryID string) (*session, error) {
	id := strings.TrimSpace(entryID)
	if id == "" {
		return nil, ErrEntryRequired
	}
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if ok {
		return sess, nil
	}

	rec, err := s.entries.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", id, err)
	}
	cat, err := s.catalogs.Resolve(ctx, rec.SchemaVersion, nil)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", id, err)
	}
	e, err := document.DecodeWithCatalog(rec.Payload, cat)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[id]; ok {
		return existing, nil
	}
	sess = newSession(e)
	s.sessions[id] = sess
	log.Printf("deposition: opened %s from store", id)
	return sess, nil
}

// Open makes sure the deposition is live and returns its status.
func (s *Service) Open(ctx context.Context, entryID string) (document.Status, error) {
	return s.Status(ctx, entryID)
}

func (s *Service) Status(ctx context.Context, entryID string) (document.Status, error) {
	sess, err := s.session(ctx, entryID)
	if err != nil {
		return document.Status{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.entry.Status(), nil
}

// Apply runs one mutation. Uploaded blobs follow file renames and deletes.
func (s *Service) Apply(ctx context.Context, entryID string, m document.Mutation) (document.Status, error) {
	sess, err := s.session(ctx, entryID)
	if err != nil {
		return document.Status{}, err
	}
	sess.mu.Lock()
	if err := sess.entry.Apply(m); err != nil {
		sess.mu.Unlock()
		return document.Status{}, err
	}
	sess.notifyLocked()
	st := sess.entry.Status()
	sess.mu.Unlock()

	s.syncUploads(ctx, st.EntryID, m)
	return st, nil
}

func (s *Service) syncUploads(ctx context.Context, entryID string, m document.Mutation) {
	if s.uploads == nil {
		return
	}
	switch m := m.(type) {
	case document.RenameFile:
		content, err := s.uploads.Get(ctx, entryID, m.Name)
		if errors.Is(err, upload.ErrNotFound) {
			return
		}
		if err == nil {
			err = s.uploads.Put(ctx, entryID, m.NewName, content)
		}
		if err == nil {
			err = s.uploads.Delete(ctx, entryID, m.Name)
		}
		if err != nil {
			log.Printf("deposition: move upload %s -> %s for %s: %v", m.Name, m.NewName, entryID, err)
		}
	case document.DeleteFile:
		err := s.uploads.Delete(ctx, entryID, m.Name)
		if err != nil && !errors.Is(err, upload.ErrNotFound) {
			log.Printf("deposition: delete upload %s for %s: %v", m.Name, entryID, err)
		}
	}
}

// Export renders the deposition as NMR-STAR text.
func (s *Service) Export(ctx context.Context, entryID string) (string, error) {
	sess, err := s.session(ctx, entryID)
	if err != nil {
		return "", err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.entry.Print()
}

// JSON returns the deposition with its dictionary embedded, ready to be
// loaded again.
func (s *Service) JSON(ctx context.Context, entryID string) ([]byte, error) {
	sess, err := s.session(ctx, entryID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.entry.ExportJSON()
}

// Save persists the current tree. A newer save cancels and waits for the
// one in flight, so the last request wins. Unsaved is cleared only when no
// mutation landed while the write was running.
func (s *Service) Save(ctx context.Context, entryID string) (SaveResult, error) {
	sess, err := s.session(ctx, entryID)
	if err != nil {
		return SaveResult{}, err
	}

	sess.mu.Lock()
	e := sess.entry
	wasUnsaved := e.Unsaved
	e.Unsaved = false
	payload, err := e.SaveJSON()
	e.Unsaved = wasUnsaved
	if err != nil {
		sess.mu.Unlock()
		return SaveResult{}, err
	}
	saveCtx, cancel := context.WithCancel(ctx)
	job := &saveJob{
		id:     uuid.NewString(),
		rev:    sess.rev,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	prev := sess.save
	sess.save = job
	rec := entrystore.Record{
		EntryID:       e.ID,
		SchemaVersion: e.Schema.Version,
		Payload:       payload,
		UpdatedAt:     time.Now().UTC(),
	}
	sess.mu.Unlock()

	defer close(job.done)
	defer cancel()
	if prev != nil {
		prev.cancel()
		<-prev.done
	}

	err = s.entries.Put(saveCtx, rec)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	superseded := sess.save != job
	if !superseded {
		sess.save = nil
	}
	if err != nil {
		if superseded && errors.Is(err, context.Canceled) {
			return SaveResult{}, ErrSuperseded
		}
		return SaveResult{}, fmt.Errorf("save %s: %w", rec.EntryID, err)
	}
	if superseded {
		return SaveResult{}, ErrSuperseded
	}
	if sess.entry == e && sess.rev == job.rev && e.Unsaved {
		e.Unsaved = false
		sess.notifyLocked()
	}
	log.Printf("deposition: saved %s (save %s)", rec.EntryID, job.id)
	return SaveResult{SaveID: job.id, Status: sess.entry.Status()}, nil
}

// Subscribe streams the status after every change until ctx is canceled.
// A slow reader only sees the latest status.
func (s *Service) Subscribe(ctx context.Context, entryID string) (<-chan document.Status, error) {
	sess, err := s.session(ctx, entryID)
	if err != nil {
		return nil, err
	}
	out := make(chan document.Status, 1)
	go func() {
		defer close(out)
		for {
			sess.mu.Lock()
			st := sess.entry.Status()
			ch := sess.changed
			sess.mu.Unlock()

			pushStatus(out, st)

			select {
			case <-ctx.Done():
				return
			case <-ch:
			}
		}
	}()
	return out, nil
}

func pushStatus(out chan document.Status, st document.Status) {
	select {
	case out <- st:
		return
	default:
	}
	select {
	case <-out:
	default:
	}
	select {
	case out <- st:
	default:
	}
}

// UploadFile stores a data file and registers it with the deposition.
func (s *Service) UploadFile(ctx context.Context, entryID, name string, content []byte) (UploadResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return UploadResult{}, fmt.Errorf("file name: %w", document.ErrNotFound)
	}
	if _, err := s.session(ctx, entryID); err != nil {
		return UploadResult{}, err
	}
	if s.uploads == nil {
		return UploadResult{}, errors.New("upload store is not configured")
	}
	id := strings.TrimSpace(entryID)
	if err := s.uploads.Put(ctx, id, name, content); err != nil {
		return UploadResult{}, fmt.Errorf("store upload %s: %w", name, err)
	}
	st, err := s.Apply(ctx, id, document.AddFile{Name: name})
	if err != nil {
		return UploadResult{}, err
	}
	uploadID := uuid.NewString()
	log.Printf("deposition: upload %s stored %s (%d bytes) for %s", uploadID, name, len(content), id)
	return UploadResult{UploadID: uploadID, Name: name, Size: len(content), Status: st}, nil
}
