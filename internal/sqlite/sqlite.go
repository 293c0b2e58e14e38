package sqlite

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNoSuchDatabase is returned for labels with no configured backend.
	ErrNoSuchDatabase = errors.New("no such database")
	// ErrAccessDenied is returned when a component opens a label missing
	// from its sqlite_databases list.
	ErrAccessDenied = errors.New("access to database denied")
)

// QueryResult holds the columns and rows produced by a query.
type QueryResult struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Connection is a handle to one database.
type Connection interface {
	// Query runs a statement and returns its result set.
	Query(ctx context.Context, query string, params []any) (*QueryResult, error)
	// Execute runs a statement and returns the number of affected rows.
	Execute(ctx context.Context, query string, params []any) (int64, error)
	// Summary describes the backing database for diagnostics.
	Summary() string
}

// ConnectionCreator creates connections for one database label.
type ConnectionCreator interface {
	Create(ctx context.Context) (Connection, error)
	Summary() string
}

// Dispatch gates database access by a component's allowed labels.
type Dispatch struct {
	allowed  map[string]struct{}
	creators map[string]ConnectionCreator
}

// NewDispatch creates the per-component database view.
func NewDispatch(allowedLabels []string, creators map[string]ConnectionCreator) *Dispatch {
	allowed := make(map[string]struct{}, len(allowedLabels))
	for _, l := range allowedLabels {
		allowed[l] = struct{}{}
	}
	return &Dispatch{allowed: allowed, creators: creators}
}

// Open returns a connection for label if the component may use it.
func (d *Dispatch) Open(ctx context.Context, label string) (Connection, error) {
	if _, ok := d.allowed[label]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrAccessDenied, label)
	}
	creator, ok := d.creators[label]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoSuchDatabase, label)
	}
	return creator.Create(ctx)
}

// ValidateAllowed fails configuration for labels without a backend.
func ValidateAllowed(componentID string, labels []string, creators map[string]ConnectionCreator) error {
	for _, label := range labels {
		if _, ok := creators[label]; !ok {
			return fmt.Errorf("unknown sqlite_databases label %q for component %q", label, componentID)
		}
	}
	return nil
}
