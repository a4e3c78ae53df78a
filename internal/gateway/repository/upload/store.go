package upload

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Store keeps the raw bytes of data files uploaded to a deposition. Files
// are addressed by entry id and file name.
type Store interface {
	Put(ctx context.Context, entryID, name string, content []byte) error
	Get(ctx context.Context, entryID, name string) ([]byte, error)
	List(ctx context.Context, entryID string) ([]string, error)
	Delete(ctx context.Context, entryID, name string) error
}

var ErrNotFound = errors.New("upload not found")

func objectKey(entryID, name string) (string, error) {
	entryID = strings.TrimSpace(entryID)
	name = strings.TrimLeft(strings.TrimSpace(name), "/")
	if entryID == "" {
		return "", fmt.Errorf("entry_id is required")
	}
	if name == "" {
		return "", fmt.Errorf("file name is required")
	}
	return entryID + "/" + name, nil
}

func entryPrefix(entryID string) (string, error) {
	entryID = strings.TrimSpace(entryID)
	if entryID == "" {
		return "", fmt.Errorf("entry_id is required")
	}
	return strings.TrimSuffix(entryID, "/") + "/", nil
}
