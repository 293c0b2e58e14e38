package outbound

import (
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisClients opens and caches outbound Redis clients keyed by URL, with
// allow-list checks before the first dial.
type RedisClients struct {
	mu      sync.Mutex
	clients map[string]*redis.Client
}

// NewRedisClients creates an empty client cache.
func NewRedisClients() *RedisClients {
	return &RedisClients{clients: make(map[string]*redis.Client)}
}

// Open returns a client for the given redis:// URL. The address must pass
// the checker. The connection itself is established lazily by go-redis.
func (r *RedisClients) Open(address string, checker *Checker) (*redis.Client, error) {
	opt, err := redis.ParseURL(address)
	if err != nil {
		return nil, fmt.Errorf("invalid redis address %q: %w", address, err)
	}
	scheme := "redis"
	if opt.TLSConfig != nil {
		scheme = "rediss"
	}
	if !checker.CheckURL(opt.Addr, scheme) {
		return nil, &ErrDestinationNotAllowed{URL: scheme + "://" + opt.Addr}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[address]; ok {
		return c, nil
	}
	c := redis.NewClient(opt)
	r.clients[address] = c
	return c, nil
}

// Close closes every cached client.
func (r *RedisClients) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for addr, c := range r.clients {
		_ = c.Close()
		delete(r.clients, addr)
	}
}
