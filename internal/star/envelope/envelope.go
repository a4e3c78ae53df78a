// Package envelope checks the outer shape of a deposition payload before it
// reaches the document decoder.
package envelope

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cuejson "cuelang.org/go/encoding/json"
)

//go:embed envelope.cue
var source string

// ErrInvalid marks a payload that does not have the load shape.
var ErrInvalid = errors.New("invalid entry payload")

// Checker validates payloads against the #Entry definition. A cue.Context is
// not safe for concurrent use, so Check serializes callers.
type Checker struct {
	mu    sync.Mutex
	ctx   *cue.Context
	entry cue.Value
}

// New compiles the embedded definitions.
func New() (*Checker, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(source, cue.Filename("envelope.cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile envelope: %w", err)
	}
	entry := v.LookupPath(cue.ParsePath("#Entry"))
	if !entry.Exists() {
		return nil, fmt.Errorf("compile envelope: #Entry not defined")
	}
	return &Checker{ctx: ctx, entry: entry}, nil
}

// Check reports ErrInvalid, with the CUE diagnostics, when raw is not a
// well-formed load payload.
func (c *Checker) Check(raw []byte) error {
	expr, err := cuejson.Extract("entry.json", raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.ctx.BuildExpr(expr)
	if err := v.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := c.entry.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalid, cueerrors.Details(err, nil))
	}
	return nil
}
