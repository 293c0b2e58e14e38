package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

var (
	// ErrNoSuchContainer is returned for labels with no configured backend.
	ErrNoSuchContainer = errors.New("no such container")
	// ErrNoSuchObject is returned when getting a key that does not exist.
	ErrNoSuchObject = errors.New("no such object")
	// ErrAccessDenied is returned when a component opens a container
	// missing from its blobstore_containers list.
	ErrAccessDenied = errors.New("access to container denied")
)

// PutOptions define optional parameters for uploading objects. Size should
// be the exact number of bytes if known; -1 lets the backend buffer/chunk.
type PutOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Container is one named blob container. Implementations use streaming I/O
// and are safe for concurrent use.
type Container interface {
	Put(ctx context.Context, key string, r io.Reader, opt PutOptions) (ObjectInfo, error)
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// ContainerManager resolves container labels to containers.
type ContainerManager interface {
	Get(ctx context.Context, name string) (Container, error)
	IsDefined(name string) bool
}

// Dispatch gates container access by a component's allowed labels.
type Dispatch struct {
	allowed  map[string]struct{}
	managers map[string]ContainerManager
}

// NewDispatch creates the per-component container view.
func NewDispatch(allowedLabels []string, managers map[string]ContainerManager) *Dispatch {
	allowed := make(map[string]struct{}, len(allowedLabels))
	for _, l := range allowedLabels {
		allowed[l] = struct{}{}
	}
	return &Dispatch{allowed: allowed, managers: managers}
}

// Open returns the container for label if the component may use it.
func (d *Dispatch) Open(ctx context.Context, label string) (Container, error) {
	if _, ok := d.allowed[label]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrAccessDenied, label)
	}
	mgr, ok := d.managers[label]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoSuchContainer, label)
	}
	return mgr.Get(ctx, label)
}

// ValidateAllowed fails configuration for labels without a backend.
func ValidateAllowed(componentID string, labels []string, managers map[string]ContainerManager) error {
	for _, label := range labels {
		mgr, ok := managers[label]
		if !ok || !mgr.IsDefined(label) {
			return fmt.Errorf("unknown blobstore_containers label %q for component %q", label, componentID)
		}
	}
	return nil
}
