package entrystore

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Record is one persisted deposition in its save form (no embedded
// dictionary). SchemaVersion names the dictionary it was built against.
type Record struct {
	EntryID       string          `json:"entry_id"`
	SchemaVersion string          `json:"schema_version"`
	Payload       json.RawMessage `json:"payload"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Store persists depositions and the dictionaries they reference.
type Store interface {
	Get(ctx context.Context, entryID string) (Record, error)
	Put(ctx context.Context, rec Record) error
	GetSchema(ctx context.Context, version string) ([]byte, error)
	PutSchema(ctx context.Context, version string, raw []byte) error
}

var ErrNotFound = errors.New("entry not found")

func normalizeRecord(rec Record) (Record, error) {
	rec.EntryID = strings.TrimSpace(rec.EntryID)
	rec.SchemaVersion = strings.TrimSpace(rec.SchemaVersion)
	if rec.EntryID == "" {
		return Record{}, errors.New("entry_id is required")
	}
	if len(rec.Payload) == 0 {
		return Record{}, errors.New("payload is required")
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	rec.Payload = append(json.RawMessage(nil), rec.Payload...)
	return rec, nil
}
