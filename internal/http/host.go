package http

import (
	"context"
	"database/sql"

	"github.com/redis/go-redis/v9"

	"github.com/itowlson/spin/internal/blobstore"
	"github.com/itowlson/spin/internal/kv"
	"github.com/itowlson/spin/internal/outbound"
	"github.com/itowlson/spin/internal/sqlite"
	"github.com/itowlson/spin/internal/variables"
)

// Host is the per-component view of the runtime's services. Every access
// goes through a dispatch gated by the component's manifest grants, and
// every outbound connection through the component's allow-list checker.
type Host struct {
	ComponentID string

	KV       *kv.Dispatch
	Sqlite   *sqlite.Dispatch
	Blob     *blobstore.Dispatch
	Vars     *variables.Resolver
	Outbound *outbound.HTTPClient

	checker *outbound.Checker
	pgPools *outbound.PgPools
	redis   *outbound.RedisClients
}

// Var resolves one of the component's declared variables.
func (h *Host) Var(ctx context.Context, key string) (string, error) {
	return h.Vars.Resolve(ctx, h.ComponentID, key)
}

// OpenPostgres returns a pooled connection to an outbound Postgres
// database, subject to the component's allowed_outbound_hosts.
func (h *Host) OpenPostgres(ctx context.Context, address string) (*sql.DB, error) {
	return h.pgPools.Open(ctx, address, h.checker)
}

// OpenRedis returns a cached client for an outbound Redis server, subject
// to the component's allowed_outbound_hosts.
func (h *Host) OpenRedis(address string) (*redis.Client, error) {
	return h.redis.Open(address, h.checker)
}
