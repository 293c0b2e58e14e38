package blobstore

import (
	"bytes"
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryManager serves in-memory containers, created on first use.
type MemoryManager struct {
	mu         sync.Mutex
	containers map[string]*memoryContainer
}

// NewMemoryManager creates an empty in-memory blob store.
func NewMemoryManager() *MemoryManager {
	return &MemoryManager{containers: make(map[string]*memoryContainer)}
}

func (m *MemoryManager) Get(_ context.Context, name string) (Container, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.containers[name]
	if !ok {
		c = &memoryContainer{objects: make(map[string]memoryObject)}
		m.containers[name] = c
	}
	return c, nil
}

func (m *MemoryManager) IsDefined(string) bool { return true }

type memoryObject struct {
	data []byte
	info ObjectInfo
}

type memoryContainer struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

func (c *memoryContainer) Put(_ context.Context, key string, r io.Reader, opt PutOptions) (ObjectInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("read object content: %w", err)
	}
	info := ObjectInfo{
		Key:          key,
		Size:         int64(len(data)),
		ETag:         fmt.Sprintf("%x", md5.Sum(data)),
		ContentType:  opt.ContentType,
		LastModified: time.Now().UTC(),
		Metadata:     opt.Metadata,
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.objects[key] = memoryObject{data: data, info: info}
	return info, nil
}

func (c *memoryContainer) Get(_ context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	obj, ok := c.objects[key]
	if !ok {
		return nil, ObjectInfo{}, fmt.Errorf("%w: %q", ErrNoSuchObject, key)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), obj.info, nil
}

func (c *memoryContainer) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.objects, key)
	return nil
}

func (c *memoryContainer) Exists(_ context.Context, key string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.objects[key]
	return ok, nil
}

func (c *memoryContainer) List(_ context.Context, prefix string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := []string{}
	for k := range c.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
