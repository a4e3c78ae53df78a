package entrystore

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultCacheSize = 256

// CachedStore reads through an LRU of recently used records. Writes go to
// the origin first and refresh the cache only on success.
type CachedStore struct {
	origin  Store
	entries *lru.Cache[string, Record]
}

func NewCachedStore(origin Store, size int) (*CachedStore, error) {
	if origin == nil {
		return nil, errors.New("origin store is nil")
	}
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, Record](size)
	if err != nil {
		return nil, err
	}
	return &CachedStore{origin: origin, entries: cache}, nil
}

func (s *CachedStore) Get(ctx context.Context, entryID string) (Record, error) {
	id := strings.TrimSpace(entryID)
	if rec, ok := s.entries.Get(id); ok {
		return cloneRecord(rec), nil
	}
	rec, err := s.origin.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	s.entries.Add(id, cloneRecord(rec))
	return rec, nil
}

func (s *CachedStore) Put(ctx context.Context, rec Record) error {
	rec, err := normalizeRecord(rec)
	if err != nil {
		return err
	}
	if err := s.origin.Put(ctx, rec); err != nil {
		s.entries.Remove(rec.EntryID)
		return err
	}
	s.entries.Add(rec.EntryID, cloneRecord(rec))
	return nil
}

// Dictionaries are cached by the catalog service, so schema calls pass
// straight through.
func (s *CachedStore) GetSchema(ctx context.Context, version string) ([]byte, error) {
	return s.origin.GetSchema(ctx, version)
}

func (s *CachedStore) PutSchema(ctx context.Context, version string, raw []byte) error {
	return s.origin.PutSchema(ctx, version, raw)
}

func cloneRecord(rec Record) Record {
	rec.Payload = append(json.RawMessage(nil), rec.Payload...)
	return rec
}
