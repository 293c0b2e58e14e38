package kv

import (
	"context"
	"fmt"
)

// DelegatingStoreManager routes store labels to other managers.
type DelegatingStoreManager struct {
	delegates map[string]StoreManager
}

// NewDelegatingStoreManager creates a manager over a label -> manager map.
func NewDelegatingStoreManager(delegates map[string]StoreManager) *DelegatingStoreManager {
	return &DelegatingStoreManager{delegates: delegates}
}

func (m *DelegatingStoreManager) Get(ctx context.Context, label string) (Store, error) {
	delegate, ok := m.delegates[label]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoSuchStore, label)
	}
	return delegate.Get(ctx, label)
}

func (m *DelegatingStoreManager) IsDefined(label string) bool {
	_, ok := m.delegates[label]
	return ok
}

func (m *DelegatingStoreManager) Summary(label string) string {
	if delegate, ok := m.delegates[label]; ok {
		return delegate.Summary(label)
	}
	return ""
}

// singleStoreManager serves one lazily created store for any label. Backend
// constructors wrap their store in this.
type singleStoreManager struct {
	open    func(ctx context.Context) (Store, error)
	summary string
}

func (m *singleStoreManager) Get(ctx context.Context, _ string) (Store, error) {
	return m.open(ctx)
}

func (m *singleStoreManager) IsDefined(_ string) bool { return true }

func (m *singleStoreManager) Summary(_ string) string { return m.summary }
