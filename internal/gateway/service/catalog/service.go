// Package catalog resolves dictionary versions to parsed catalogs. Each
// version is persisted once and kept parsed in a TTL bounded LRU.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"nmrdeposit/internal/gateway/repository/entrystore"
	"nmrdeposit/internal/star/document"
	"nmrdeposit/internal/star/schema"
)

const (
	DefaultSize = 16
	DefaultTTL  = 30 * time.Minute
)

var ErrUnknownVersion = errors.New("unknown schema version")

// SchemaStore is the slice of the entry store the service needs.
type SchemaStore interface {
	GetSchema(ctx context.Context, version string) ([]byte, error)
	PutSchema(ctx context.Context, version string, raw []byte) error
}

type Service struct {
	store SchemaStore
	cache *expirable.LRU[string, *schema.Catalog]

	// serializes misses so a version is parsed and persisted once
	mu sync.Mutex
}

func New(store SchemaStore, size int, ttl time.Duration) *Service {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		store: store,
		cache: expirable.NewLRU[string, *schema.Catalog](size, nil, ttl),
	}
}

// Resolve returns the catalog for version. When raw is given it is the
// dictionary payload for that version (version may then be empty and is
// read from the payload); otherwise the stored copy is used.
func (s *Service) Resolve(ctx context.Context, version string, raw []byte) (*schema.Catalog, error) {
	version = strings.TrimSpace(version)
	if version == "" && len(raw) > 0 {
		version = peekVersion(raw)
	}
	if version != "" {
		if cat, ok := s.cache.Get(version); ok {
			return cat, nil
		}
	}
	if version == "" && len(raw) == 0 {
		return nil, document.ErrNoSchema
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if version != "" {
		if cat, ok := s.cache.Get(version); ok {
			return cat, nil
		}
	}

	persist := len(raw) > 0
	if !persist {
		stored, err := s.store.GetSchema(ctx, version)
		if errors.Is(err, entrystore.ErrNotFound) {
			return nil, fmt.Errorf("schema %s: %w", version, ErrUnknownVersion)
		}
		if err != nil {
			return nil, fmt.Errorf("load schema %s: %w", version, err)
		}
		raw = stored
	}

	cat, err := schema.Build(raw)
	if err != nil {
		return nil, err
	}
	if version == "" {
		version = cat.Version
	}
	if version == "" {
		log.Printf("catalog: dictionary without a version is not cached")
		return cat, nil
	}
	if persist && s.store != nil {
		if err := s.store.PutSchema(ctx, version, raw); err != nil {
			return nil, fmt.Errorf("persist schema %s: %w", version, err)
		}
		log.Printf("catalog: stored dictionary %s", version)
	}
	s.cache.Add(version, cat)
	return cat, nil
}

func peekVersion(raw []byte) string {
	var head struct {
		Version any `json:"version"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return ""
	}
	switch v := head.Version.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}
