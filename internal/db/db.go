// Package db opens the database generated statements are executed against.
package db

import (
	"context"
	"database/sql"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"

	// SQLite driver (pure Go).
	_ "modernc.org/sqlite"

	"gramfuzz/internal/config"
)

// DB wraps a database handle pinned to a single connection so session state
// such as an in-memory SQLite schema survives between statements.
type DB struct {
	*sql.DB
	Driver  string
	Observe func(sql string, err error)
}

// Open connects to driver ("sqlite" or "mysql") at dsn.
func Open(driver, dsn string) (*DB, error) {
	switch driver {
	case "", config.DriverSQLite:
		driver = config.DriverSQLite
		if strings.TrimSpace(dsn) == "" {
			dsn = "file::memory:"
		}
	case config.DriverMySQL:
		parsed, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, errors.Wrap(err, "parse mysql dsn")
		}
		parsed.MultiStatements = false
		dsn = parsed.FormatDSN()
	default:
		return nil, errors.Errorf("unsupported driver %q", driver)
	}
	handle, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", driver)
	}
	handle.SetMaxOpenConns(1)
	handle.SetMaxIdleConns(1)
	handle.SetConnMaxLifetime(0)
	if err := handle.Ping(); err != nil {
		_ = handle.Close()
		return nil, errors.Wrapf(err, "ping %s", driver)
	}
	return &DB{DB: handle, Driver: driver}, nil
}

// ExecContext executes one statement and reports it to Observe.
func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := d.DB.ExecContext(ctx, query, args...)
	if d.Observe != nil {
		d.Observe(query, err)
	}
	return res, err
}

// TableNames lists the base tables the database reports, sorted by name.
func (d *DB) TableNames(ctx context.Context) ([]string, error) {
	query := "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name"
	if d.Driver == config.DriverMySQL {
		query = "SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE' ORDER BY table_name"
	}
	rows, err := d.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}
