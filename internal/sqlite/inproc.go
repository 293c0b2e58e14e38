package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/XSAM/otelsql"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	_ "modernc.org/sqlite"
)

var (
	driverOnce sync.Once
	driverName string
	driverErr  error
)

// driver registers the otelsql-wrapped sqlite driver once.
func driver() (string, error) {
	driverOnce.Do(func() {
		driverName, driverErr = otelsql.Register("sqlite",
			otelsql.WithAttributes(semconv.DBSystemSqlite),
		)
	})
	return driverName, driverErr
}

// OpenDatabase opens a sqlite database at path, creating parent directories
// as needed. An empty path opens an in-memory database. Also used by the
// sqlite-backed key-value store.
func OpenDatabase(path string) (*sql.DB, error) {
	dsn := ":memory:"
	if path != "" {
		if parent := filepath.Dir(path); parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create sqlite database directory %q: %w", parent, err)
			}
		}
		dsn = path
	}
	name, err := driver()
	if err != nil {
		return nil, fmt.Errorf("failed to register otelsql: %w", err)
	}
	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	// sqlite allows one writer; a single connection avoids SQLITE_BUSY
	// under concurrent requests.
	db.SetMaxOpenConns(1)
	return db, nil
}

// InProcConnection is a connection to an in-process sqlite database,
// created lazily on first use.
type InProcConnection struct {
	path string

	once sync.Once
	db   *sql.DB
	err  error
}

// NewInProcCreator creates a ConnectionCreator for a file database, or an
// in-memory database when path is empty.
func NewInProcCreator(path string) ConnectionCreator {
	return &inProcCreator{conn: &InProcConnection{path: path}}
}

type inProcCreator struct {
	conn *InProcConnection
}

func (c *inProcCreator) Create(context.Context) (Connection, error) {
	if _, err := c.conn.handle(); err != nil {
		return nil, err
	}
	return c.conn, nil
}

func (c *inProcCreator) Summary() string { return c.conn.Summary() }

func (c *InProcConnection) handle() (*sql.DB, error) {
	c.once.Do(func() {
		c.db, c.err = OpenDatabase(c.path)
	})
	return c.db, c.err
}

func (c *InProcConnection) Summary() string {
	if c.path == "" {
		return "in-memory sqlite database"
	}
	return fmt.Sprintf("sqlite database at %q", c.path)
}

func (c *InProcConnection) Query(ctx context.Context, query string, params []any) (*QueryResult, error) {
	db, err := c.handle()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	result := &QueryResult{Columns: columns, Rows: [][]any{}}
	for rows.Next() {
		values := make([]any, len(columns))
		scans := make([]any, len(columns))
		for i := range values {
			scans[i] = &values[i]
		}
		if err := rows.Scan(scans...); err != nil {
			return nil, err
		}
		result.Rows = append(result.Rows, values)
	}
	return result, rows.Err()
}

func (c *InProcConnection) Execute(ctx context.Context, query string, params []any) (int64, error) {
	db, err := c.handle()
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx, query, params...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Close closes the underlying database if it was opened.
func (c *InProcConnection) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
