package document

import "errors"

var (
	// ErrNotFound is returned when a mutation addresses a saveframe, loop,
	// row, tag or file that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDisabled is returned when a mutation writes a locked tag.
	ErrDisabled = errors.New("tag is disabled")
	// ErrExists is returned when a new saveframe or file name is taken.
	ErrExists = errors.New("already exists")
	// ErrStructure marks a corrupted tree that must not be serialized.
	ErrStructure = errors.New("structural error")
	// ErrNoSchema is returned by Decode when the payload carries no dictionary.
	ErrNoSchema = errors.New("payload has no schema")
)
