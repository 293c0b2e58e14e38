package kv

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNoSuchStore is returned for labels with no configured backend.
	ErrNoSuchStore = errors.New("no such store")
	// ErrAccessDenied is returned when a component opens a label missing
	// from its key_value_stores list.
	ErrAccessDenied = errors.New("access to store denied")
)

// Store is a single key-value store.
type Store interface {
	// Get returns the value for key; ok is false if the key does not exist.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	GetKeys(ctx context.Context) ([]string, error)
}

// StoreManager resolves store labels to stores.
type StoreManager interface {
	Get(ctx context.Context, label string) (Store, error)
	IsDefined(label string) bool
	// Summary describes the backing of a label for diagnostics, or "".
	Summary(label string) string
}

// Dispatch gates store access by a component's allowed labels. It is the
// per-component view handed to executors.
type Dispatch struct {
	allowed map[string]struct{}
	manager StoreManager
}

// NewDispatch creates a Dispatch for one component.
func NewDispatch(allowedLabels []string, manager StoreManager) *Dispatch {
	allowed := make(map[string]struct{}, len(allowedLabels))
	for _, l := range allowedLabels {
		allowed[l] = struct{}{}
	}
	return &Dispatch{allowed: allowed, manager: manager}
}

// Open returns the store for label if the component may use it.
func (d *Dispatch) Open(ctx context.Context, label string) (Store, error) {
	if _, ok := d.allowed[label]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrAccessDenied, label)
	}
	return d.manager.Get(ctx, label)
}

// AllowedLabels returns the labels this component may open.
func (d *Dispatch) AllowedLabels() []string {
	labels := make([]string, 0, len(d.allowed))
	for l := range d.allowed {
		labels = append(labels, l)
	}
	return labels
}

// ValidateAllowed fails configuration if any component label has no
// configured backend. This runs at app configure time so unknown labels
// fail startup, not first use.
func ValidateAllowed(componentID string, labels []string, manager StoreManager) error {
	for _, label := range labels {
		if !manager.IsDefined(label) {
			return fmt.Errorf("unknown key_value_stores label %q for component %q", label, componentID)
		}
	}
	return nil
}
