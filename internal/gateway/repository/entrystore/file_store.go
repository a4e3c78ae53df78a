package entrystore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

type fileState struct {
	Entries map[string]Record          `json:"entries"`
	Schemas map[string]json.RawMessage `json:"schemas"`
}

// FileStore keeps every record in one JSON document on disk. It is meant
// for local runs; the SQL store is used when a database is configured.
type FileStore struct {
	path string

	loadOnce sync.Once
	loadErr  error

	mu    sync.RWMutex
	state fileState
}

func NewFileStore(path string) *FileStore {
	return &FileStore{
		path: path,
		state: fileState{
			Entries: make(map[string]Record),
			Schemas: make(map[string]json.RawMessage),
		},
	}
}

func (s *FileStore) ensureLoaded() error {
	s.loadOnce.Do(func() {
		b, err := os.ReadFile(s.path)
		if errors.Is(err, os.ErrNotExist) {
			return
		}
		if err != nil {
			s.loadErr = fmt.Errorf("read entry store: %w", err)
			return
		}
		var st fileState
		if err := json.Unmarshal(b, &st); err != nil {
			s.loadErr = fmt.Errorf("decode entry store: %w", err)
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		for id, rec := range st.Entries {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			s.state.Entries[id] = rec
		}
		for version, raw := range st.Schemas {
			s.state.Schemas[version] = raw
		}
		log.Printf("entrystore: loaded %d entries from %s", len(s.state.Entries), s.path)
	})
	return s.loadErr
}

// flushLocked writes the state to a temp file and renames it into place.
// The caller holds mu.
func (s *FileStore) flushLocked() error {
	b, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *FileStore) Get(_ context.Context, entryID string) (Record, error) {
	if err := s.ensureLoaded(); err != nil {
		return Record{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.state.Entries[strings.TrimSpace(entryID)]
	if !ok {
		return Record{}, ErrNotFound
	}
	rec.Payload = append(json.RawMessage(nil), rec.Payload...)
	return rec, nil
}

func (s *FileStore) Put(ctx context.Context, rec Record) error {
	if err := s.ensureLoaded(); err != nil {
		return err
	}
	rec, err := normalizeRecord(rec)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.state.Entries[rec.EntryID]
	s.state.Entries[rec.EntryID] = rec
	if err := s.flushLocked(); err != nil {
		if had {
			s.state.Entries[rec.EntryID] = prev
		} else {
			delete(s.state.Entries, rec.EntryID)
		}
		return fmt.Errorf("write entry store: %w", err)
	}
	return nil
}

func (s *FileStore) GetSchema(_ context.Context, version string) ([]byte, error) {
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.state.Schemas[strings.TrimSpace(version)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), raw...), nil
}

func (s *FileStore) PutSchema(_ context.Context, version string, raw []byte) error {
	if err := s.ensureLoaded(); err != nil {
		return err
	}
	version = strings.TrimSpace(version)
	if version == "" {
		return errors.New("schema version is required")
	}
	if !json.Valid(raw) {
		return errors.New("schema payload is not valid json")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state.Schemas[version]; ok {
		return nil
	}
	s.state.Schemas[version] = append(json.RawMessage(nil), raw...)
	if err := s.flushLocked(); err != nil {
		delete(s.state.Schemas, version)
		return fmt.Errorf("write entry store: %w", err)
	}
	return nil
}
