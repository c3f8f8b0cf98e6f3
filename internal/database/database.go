package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	_ "github.com/tursodatabase/go-libsql"
)

// BusyTimeoutMillis is how long a connection waits for the write lock
// before SQLite reports the database as busy.
const BusyTimeoutMillis = 5000

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	fmt.Sprintf("PRAGMA busy_timeout=%d", BusyTimeoutMillis),
	"PRAGMA foreign_keys=ON",
}

// Open creates a SQLite pool via libSQL. Every connection the pool dials
// gets WAL journal mode, the busy timeout and foreign keys. An in-memory
// database is pinned to a single connection so every caller sees the same
// schema.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	dsn := "file:" + path

	probe, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	drv := probe.Driver()
	probe.Close()

	base, err := baseConnector(drv, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db := sql.OpenDB(&pragmaConnector{base: base})
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return db, nil
}

// IsBusy reports whether err is SQLite refusing a lock that another
// connection holds.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "sqlite_busy") ||
		strings.Contains(msg, "sqlite_locked")
}

func baseConnector(drv driver.Driver, dsn string) (driver.Connector, error) {
	if dc, ok := drv.(driver.DriverContext); ok {
		return dc.OpenConnector(dsn)
	}
	return dsnConnector{drv: drv, dsn: dsn}, nil
}

type dsnConnector struct {
	drv driver.Driver
	dsn string
}

func (c dsnConnector) Connect(context.Context) (driver.Conn, error) { return c.drv.Open(c.dsn) }
func (c dsnConnector) Driver() driver.Driver                       { return c.drv }

// pragmaConnector runs the connection pragmas on each new connection.
// busy_timeout and foreign_keys are per connection in SQLite.
type pragmaConnector struct {
	base driver.Connector
}

func (c *pragmaConnector) Connect(ctx context.Context) (driver.Conn, error) {
	conn, err := c.base.Connect(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range pragmas {
		if err := runPragma(ctx, conn, p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("executing %s: %w", p, err)
		}
	}
	return conn, nil
}

func (c *pragmaConnector) Driver() driver.Driver { return c.base.Driver() }

// runPragma queries and drains p. libSQL rejects Exec for PRAGMAs that
// return rows, while others (like foreign_keys=ON) return nothing.
func runPragma(ctx context.Context, conn driver.Conn, p string) error {
	if q, ok := conn.(driver.QueryerContext); ok {
		rows, err := q.QueryContext(ctx, p, nil)
		if err == nil {
			return rows.Close()
		}
		if !errors.Is(err, driver.ErrSkip) {
			return err
		}
	}

	stmt, err := conn.Prepare(p)
	if err != nil {
		return err
	}
	defer stmt.Close()

	var rows driver.Rows
	if sq, ok := stmt.(driver.StmtQueryContext); ok {
		rows, err = sq.QueryContext(ctx, nil)
	} else {
		rows, err = stmt.Query(nil)
	}
	if err != nil {
		return err
	}
	return rows.Close()
}
