// Package search runs the per-track matching state machine against a
// foreign catalog: cache check, planned search attempts, scoring, filtering
// and the cache update.
package search

import (
	"context"
	"fmt"

	"github.com/garry/tracklink/matching"
)

// Backend is a foreign catalog. Search returns no candidates and a nil error
// when nothing was found; errors are reserved for transport and auth failures.
// GetByID returns nil, nil for an unknown id. Candidates without an id are
// reported but never de-duplicated or cached.
type Backend interface {
	Name() string
	Search(ctx context.Context, q matching.Query) ([]matching.Candidate, error)
	GetByID(ctx context.Context, id string) (*matching.Candidate, error)
}

// Adapter operations reported in AdapterError.
const (
	OpSearch  = "search"
	OpGetByID = "get-by-id"
)

// AdapterError is a backend failure for one track.
type AdapterError struct {
	Backend string
	Op      string
	Err     error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Backend, e.Op, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}
