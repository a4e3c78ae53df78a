package entrystore

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.GetSchema(ctx, "0.0")
	assert.ErrorIs(t, err, ErrNotFound)

	stamp := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Put(ctx, Record{
		EntryID:       " 12345 ",
		SchemaVersion: "3.2.1.15",
		Payload:       json.RawMessage(`{"entry_id":"12345"}`),
		UpdatedAt:     stamp,
	}))
	rec, err := store.Get(ctx, "12345")
	require.NoError(t, err)
	assert.Equal(t, "12345", rec.EntryID)
	assert.Equal(t, "3.2.1.15", rec.SchemaVersion)
	assert.JSONEq(t, `{"entry_id":"12345"}`, string(rec.Payload))
	assert.True(t, stamp.Equal(rec.UpdatedAt))

	require.NoError(t, store.Put(ctx, Record{
		EntryID: "12345",
		Payload: json.RawMessage(`{"entry_id":"12345","unsaved":false}`),
	}))
	rec, err = store.Get(ctx, "12345")
	require.NoError(t, err)
	assert.JSONEq(t, `{"entry_id":"12345","unsaved":false}`, string(rec.Payload))

	require.NoError(t, store.PutSchema(ctx, "3.2.1.15", []byte(`{"version":"3.2.1.15"}`)))
	require.NoError(t, store.PutSchema(ctx, "3.2.1.15", []byte(`{"version":"other"}`)))
	raw, err := store.GetSchema(ctx, "3.2.1.15")
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":"3.2.1.15"}`, string(raw))

	assert.Error(t, store.Put(ctx, Record{EntryID: " ", Payload: json.RawMessage(`{}`)}))
	assert.Error(t, store.Put(ctx, Record{EntryID: "x"}))
	assert.Error(t, store.PutSchema(ctx, "", []byte(`{}`)))
	assert.Error(t, store.PutSchema(ctx, "v", []byte(`{`)))
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entries.json")
	exerciseStore(t, NewFileStore(path))

	reopened := NewFileStore(path)
	rec, err := reopened.Get(context.Background(), "12345")
	require.NoError(t, err)
	assert.Equal(t, "12345", rec.EntryID)
	_, err = reopened.GetSchema(context.Background(), "3.2.1.15")
	assert.NoError(t, err)
}

func TestSQLiteStore(t *testing.T) {
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "entries.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	exerciseStore(t, store)
}

func TestNewSQLStoreRejectsUnknownDialect(t *testing.T) {
	_, err := NewSQLStore(nil, "sqlite3")
	assert.Error(t, err)
}

type fakeOriginStore struct {
	mu       sync.Mutex
	records  map[string]Record
	getCalls int
	failPut  bool
}

func newFakeOriginStore() *fakeOriginStore {
	return &fakeOriginStore{records: map[string]Record{}}
}

func (s *fakeOriginStore) Get(_ context.Context, entryID string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	rec, ok := s.records[entryID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *fakeOriginStore) Put(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPut {
		return errors.New("put failed")
	}
	s.records[rec.EntryID] = rec
	return nil
}

func (s *fakeOriginStore) GetSchema(context.Context, string) ([]byte, error) {
	return nil, ErrNotFound
}

func (s *fakeOriginStore) PutSchema(context.Context, string, []byte) error { return nil }

func TestCachedStoreReadThrough(t *testing.T) {
	ctx := context.Background()
	origin := newFakeOriginStore()
	origin.records["1"] = Record{EntryID: "1", Payload: json.RawMessage(`{"a":1}`)}
	store, err := NewCachedStore(origin, 4)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		rec, err := store.Get(ctx, "1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"a":1}`, string(rec.Payload))
		rec.Payload[0] = 'X'
	}
	assert.Equal(t, 1, origin.getCalls)

	_, err = store.Get(ctx, "2")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Put(ctx, Record{EntryID: "1", Payload: json.RawMessage(`{"a":2}`)}))
	rec, err := store.Get(ctx, "1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":2}`, string(rec.Payload))
	assert.Equal(t, 2, origin.getCalls)
}

func TestCachedStoreDropsEntryOnFailedWrite(t *testing.T) {
	ctx := context.Background()
	origin := newFakeOriginStore()
	origin.records["1"] = Record{EntryID: "1", Payload: json.RawMessage(`{"a":1}`)}
	store, err := NewCachedStore(origin, 0)
	require.NoError(t, err)

	_, err = store.Get(ctx, "1")
	require.NoError(t, err)
	origin.failPut = true
	assert.Error(t, store.Put(ctx, Record{EntryID: "1", Payload: json.RawMessage(`{"a":2}`)}))

	rec, err := store.Get(ctx, "1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(rec.Payload))
	assert.Equal(t, 2, origin.getCalls)

	_, err = NewCachedStore(nil, 1)
	assert.Error(t, err)
}
