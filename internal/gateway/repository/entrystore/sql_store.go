package entrystore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	entriesTable = "deposition_entries"
	schemasTable = "deposition_schemas"
)

var ddl = []string{
	`CREATE TABLE IF NOT EXISTS deposition_entries (
  entry_id TEXT PRIMARY KEY,
  schema_version TEXT NOT NULL DEFAULT '',
  payload TEXT NOT NULL,
  updated_at BIGINT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS deposition_schemas (
  version TEXT PRIMARY KEY,
  payload TEXT NOT NULL
)`,
}

// SQLStore persists records in postgres or sqlite. Statements are built
// with the ent dialect builder so both engines share one code path.
type SQLStore struct {
	db      *sql.DB
	dialect string

	schemaOnce sync.Once
	schemaErr  error
}

func OpenPostgres(dsn string) (*SQLStore, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewSQLStore(db, dialect.Postgres)
}

func OpenSQLite(path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", strings.TrimSpace(path))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return NewSQLStore(db, dialect.SQLite)
}

func NewSQLStore(db *sql.DB, name string) (*SQLStore, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	switch name {
	case dialect.Postgres, dialect.SQLite:
	default:
		return nil, fmt.Errorf("unsupported dialect %q", name)
	}
	return &SQLStore{db: db, dialect: name}, nil
}

func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLStore) ensureSchema(ctx context.Context) error {
	s.schemaOnce.Do(func() {
		for _, stmt := range ddl {
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				s.schemaErr = fmt.Errorf("create tables: %w", err)
				return
			}
		}
	})
	return s.schemaErr
}

func (s *SQLStore) Get(ctx context.Context, entryID string) (Record, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return Record{}, err
	}
	query, args := entsql.Dialect(s.dialect).
		Select("entry_id", "schema_version", "payload", "updated_at").
		From(entsql.Table(entriesTable)).
		Where(entsql.EQ("entry_id", strings.TrimSpace(entryID))).
		Query()

	var (
		rec     Record
		payload string
		updated int64
	)
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&rec.EntryID, &rec.SchemaVersion, &payload, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("select entry: %w", err)
	}
	rec.Payload = json.RawMessage(payload)
	rec.UpdatedAt = time.UnixMilli(updated).UTC()
	return rec, nil
}

func (s *SQLStore) Put(ctx context.Context, rec Record) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	rec, err := normalizeRecord(rec)
	if err != nil {
		return err
	}
	query, args := entsql.Dialect(s.dialect).
		Insert(entriesTable).
		Columns("entry_id", "schema_version", "payload", "updated_at").
		Values(rec.EntryID, rec.SchemaVersion, string(rec.Payload), rec.UpdatedAt.UnixMilli()).
		OnConflict(
			entsql.ConflictColumns("entry_id"),
			entsql.ResolveWithNewValues(),
		).
		Query()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert entry: %w", err)
	}
	return nil
}

func (s *SQLStore) GetSchema(ctx context.Context, version string) ([]byte, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	query, args := entsql.Dialect(s.dialect).
		Select("payload").
		From(entsql.Table(schemasTable)).
		Where(entsql.EQ("version", strings.TrimSpace(version))).
		Query()
	var payload string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select schema: %w", err)
	}
	return []byte(payload), nil
}

// PutSchema stores a dictionary version. An existing version is kept as is.
func (s *SQLStore) PutSchema(ctx context.Context, version string, raw []byte) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	version = strings.TrimSpace(version)
	if version == "" {
		return errors.New("schema version is required")
	}
	if !json.Valid(raw) {
		return errors.New("schema payload is not valid json")
	}
	query, args := entsql.Dialect(s.dialect).
		Insert(schemasTable).
		Columns("version", "payload").
		Values(version, string(raw)).
		OnConflict(
			entsql.ConflictColumns("version"),
			entsql.DoNothing(),
		).
		Query()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert schema: %w", err)
	}
	return nil
}
