package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	_ "modernc.org/sqlite"

	"github.com/zhubert/plural-mcp/internal/model"
)

const sqliteTimeout = 5 * time.Second

var sqliteSchema = []string{
	`PRAGMA busy_timeout = 5000`,
	`CREATE TABLE IF NOT EXISTS mcp_servers (
		id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		command_line TEXT NOT NULL DEFAULT '',
		enabled INTEGER NOT NULL DEFAULT 1,
		status TEXT NOT NULL DEFAULT 'connecting',
		updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
}

// ErrReadOnly is returned by Save on a persister opened with OpenReadOnly.
var ErrReadOnly = errors.New("settings opened read-only")

// SQLite stores the server list in a SQLite database.
type SQLite struct {
	db       *sql.DB
	path     string
	readOnly bool
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("settings: open sqlite store: %w", err)
	}
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), sqliteTimeout)
	defer cancel()

	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("settings: apply schema: %w", err)
		}
	}

	return &SQLite{db: db, path: path}, nil
}

// OpenSQLiteReadOnly opens an existing database without creating it or
// touching its schema.
func OpenSQLiteReadOnly(path string) (*SQLite, error) {
	dsn := (&url.URL{Scheme: "file", OmitHost: true, Path: path, RawQuery: "mode=ro"}).String()
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("settings: open sqlite store: %w", err)
	}
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), sqliteTimeout)
	defer cancel()
	if _, err := db.ExecContext(ctx, sqliteSchema[0]); err != nil {
		db.Close()
		return nil, fmt.Errorf("settings: open sqlite store read-only: %w", err)
	}

	return &SQLite{db: db, path: path, readOnly: true}, nil
}

// Path returns the database path.
func (s *SQLite) Path() string {
	return s.path
}

// Close finalises the underlying database connection.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load returns the servers ordered by position.
func (s *SQLite) Load() ([]model.MCPServer, error) {
	ctx, cancel := context.WithTimeout(context.Background(), sqliteTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, command_line, enabled, status
		FROM mcp_servers
		ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("settings: query mcp servers: %w", err)
	}
	defer rows.Close()

	servers := []model.MCPServer{}
	for rows.Next() {
		var (
			srv     model.MCPServer
			enabled int
			status  string
		)
		if err := rows.Scan(&srv.ID, &srv.Name, &srv.Description, &srv.CommandLine, &enabled, &status); err != nil {
			return nil, fmt.Errorf("settings: scan mcp server: %w", err)
		}
		srv.Enabled = enabled != 0
		srv.Status = model.Status(status)
		servers = append(servers, srv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("settings: iterate mcp servers: %w", err)
	}
	return servers, nil
}

// Save replaces the stored list in a single transaction.
func (s *SQLite) Save(servers []model.MCPServer) error {
	if s.readOnly {
		return ErrReadOnly
	}
	ctx, cancel := context.WithTimeout(context.Background(), sqliteTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("settings: begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM mcp_servers`); err != nil {
		return fmt.Errorf("settings: clear mcp servers: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO mcp_servers (id, position, name, description, command_line, enabled, status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)`)
	if err != nil {
		return fmt.Errorf("settings: prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, srv := range servers {
		enabled := 0
		if srv.Enabled {
			enabled = 1
		}
		if _, err := stmt.ExecContext(ctx, srv.ID, i, srv.Name, srv.Description, srv.CommandLine, enabled, string(srv.Status)); err != nil {
			return fmt.Errorf("settings: insert mcp server %s: %w", srv.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("settings: commit: %w", err)
	}
	return nil
}
