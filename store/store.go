// Package store archives dataset generation and constraint check runs.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotInitialized is returned by stores used before Init.
var ErrNotInitialized = errors.New("store: not initialized")

// Kind names what a run did.
type Kind string

const (
	KindDataset Kind = "dataset"
	KindCheck   Kind = "check"
)

// Run is one archived benchmark invocation. Params and Outcome hold JSON
// documents.
type Run struct {
	ID        string          `json:"id"`
	Equation  string          `json:"equation"`
	Kind      Kind            `json:"kind"`
	Params    json.RawMessage `json:"params,omitempty"`
	Outcome   json.RawMessage `json:"outcome,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewRun marshals params and outcome into a fresh run stamped with the
// current time.
func NewRun(equation string, kind Kind, params, outcome any) (Run, error) {
	p, err := json.Marshal(params)
	if err != nil {
		return Run{}, fmt.Errorf("encode params: %w", err)
	}
	o, err := json.Marshal(outcome)
	if err != nil {
		return Run{}, fmt.Errorf("encode outcome: %w", err)
	}
	return Run{
		ID:        uuid.NewString(),
		Equation:  equation,
		Kind:      kind,
		Params:    p,
		Outcome:   o,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Store persists runs. Saving a run with an existing ID replaces it.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run Run) error
	GetRun(ctx context.Context, id string) (Run, bool, error)
	// ListRuns returns runs oldest first; an empty equation lists every run.
	ListRuns(ctx context.Context, equation string) ([]Run, error)
}

// New returns the store backend named by kind.
func New(kind, sqlitePath string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(sqlitePath), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

// CloseIfSupported closes stores holding resources.
func CloseIfSupported(s Store) error {
	closer, ok := s.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
