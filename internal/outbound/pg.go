package outbound

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/XSAM/otelsql"
	_ "github.com/jackc/pgx/v5/stdlib"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

var (
	pgDriverOnce sync.Once
	pgDriverName string
	pgDriverErr  error
)

// pgDriver registers the otelsql-wrapped pgx driver once.
func pgDriver() (string, error) {
	pgDriverOnce.Do(func() {
		pgDriverName, pgDriverErr = otelsql.Register("pgx",
			otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
			otelsql.WithSQLCommenter(true),
		)
	})
	return pgDriverName, pgDriverErr
}

// PgPools opens and caches outbound Postgres pools keyed by connection
// string. Every open is checked against the caller's allow-list first.
type PgPools struct {
	mu    sync.Mutex
	pools map[string]*sql.DB
}

// NewPgPools creates an empty pool cache.
func NewPgPools() *PgPools {
	return &PgPools{pools: make(map[string]*sql.DB)}
}

// Open returns a pool for the given postgres:// URL, creating and pinging
// it on first use. The address must pass the checker.
func (p *PgPools) Open(ctx context.Context, address string, checker *Checker) (*sql.DB, error) {
	u, err := url.Parse(address)
	if err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
		return nil, fmt.Errorf("invalid postgres address %q", address)
	}
	if !checker.CheckURL(u.Host, "postgres") {
		return nil, &ErrDestinationNotAllowed{URL: "postgres://" + u.Host}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if db, ok := p.pools[address]; ok {
		return db, nil
	}

	driver, err := pgDriver()
	if err != nil {
		return nil, fmt.Errorf("failed to register otelsql: %w", err)
	}
	db, err := sql.Open(driver, address)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	p.pools[address] = db
	return db, nil
}

// Close closes every cached pool.
func (p *PgPools) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for addr, db := range p.pools {
		_ = db.Close()
		delete(p.pools, addr)
	}
}
