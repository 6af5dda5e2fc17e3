// Package relstore executes builder statements against the relational tier.
// It owns the SQL drivers: Postgres through the pgx stdlib adapter for real
// deployments, pure-go SQLite for local and test runs.
package relstore

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"sync"

	"idvault/internal/sqlbuilder"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"             // pure go sqlite driver
)

// Driver names accepted in connection config.
const (
	DriverPostgres = "pg"
	DriverSQLite   = "sqlite"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Config describes one relational endpoint. Postgres uses the host fields;
// SQLite uses Path only.
type Config struct {
	Driver   string
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	Path     string
}

// DSN renders the driver connection string. Credentials pass through URL
// escaping so passwords with reserved characters survive.
func (c Config) DSN() string {
	if c.Driver == DriverSQLite {
		return c.Path
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// Store executes named-placeholder statements against one database.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// Open connects to the configured endpoint and verifies it with a ping.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	driver := "pgx"
	dialect := Postgres
	switch cfg.Driver {
	case DriverPostgres, "":
	case DriverSQLite:
		driver = "sqlite"
		dialect = SQLite
	default:
		return nil, fmt.Errorf("relstore: unknown driver %q", cfg.Driver)
	}
	openMu.Lock()
	db, err := sqlOpen(driver, cfg.DSN())
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return &Store{db: db, dialect: dialect}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Exec runs every text in the statement sequentially and returns the affected
// row count of the last one. The first failure aborts the remainder.
func (s *Store) Exec(ctx context.Context, stmt sqlbuilder.Statement) (int64, error) {
	var affected int64
	for _, text := range stmt.SQL {
		bound, values, err := Rebind(s.dialect, text, stmt.Args)
		if err != nil {
			return 0, err
		}
		res, err := s.db.ExecContext(ctx, bound, values...)
		if err != nil {
			return 0, fmt.Errorf("exec: %w", err)
		}
		affected, err = res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected: %w", err)
		}
	}
	return affected, nil
}

// ExecReturning runs every text as a query and collects the first column of
// every returned row, in statement order. Used for INSERT ... RETURNING.
func (s *Store) ExecReturning(ctx context.Context, stmt sqlbuilder.Statement) ([]any, error) {
	var keys []any
	for _, text := range stmt.SQL {
		bound, values, err := Rebind(s.dialect, text, stmt.Args)
		if err != nil {
			return nil, err
		}
		rows, err := s.db.QueryContext(ctx, bound, values...)
		if err != nil {
			return nil, fmt.Errorf("exec returning: %w", err)
		}
		collected, err := scanFirstColumn(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, collected...)
	}
	return keys, nil
}

// Fetch runs a single-text statement and returns every row as a column map.
func (s *Store) Fetch(ctx context.Context, stmt sqlbuilder.Statement) ([]map[string]any, error) {
	if len(stmt.SQL) != 1 {
		return nil, fmt.Errorf("fetch: want one statement, got %d", len(stmt.SQL))
	}
	bound, values, err := Rebind(s.dialect, stmt.SQL[0], stmt.Args)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, bound, values...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	var out []map[string]any
	for rows.Next() {
		cells := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, name := range columns {
			row[name] = normalize(cells[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// FetchScalar runs a single-text statement and returns the first column of
// the first row. No rows is an error.
func (s *Store) FetchScalar(ctx context.Context, stmt sqlbuilder.Statement) (any, error) {
	if len(stmt.SQL) != 1 {
		return nil, fmt.Errorf("fetch scalar: want one statement, got %d", len(stmt.SQL))
	}
	bound, values, err := Rebind(s.dialect, stmt.SQL[0], stmt.Args)
	if err != nil {
		return nil, err
	}
	var cell any
	if err := s.db.QueryRowContext(ctx, bound, values...).Scan(&cell); err != nil {
		return nil, fmt.Errorf("scan scalar: %w", err)
	}
	return normalize(cell), nil
}

func scanFirstColumn(rows *sql.Rows) ([]any, error) {
	defer func() { _ = rows.Close() }()
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	var out []any
	for rows.Next() {
		cells := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, normalize(cells[0]))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// normalize widens driver byte slices to strings so rows serialize as text.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	prev := sqlOpen
	sqlOpen = fn
	openMu.Unlock()
	return func() {
		openMu.Lock()
		sqlOpen = prev
		openMu.Unlock()
	}
}
