// Package store persists the small amount of app state the core keeps
// between runs: recent search queries and user preferences. Backed by
// sqlite with embedded schema migrations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"
)

// Search kinds recorded with each query.
const (
	KindItem = "item"
	KindText = "text"
)

// Search is one recorded search query.
type Search struct {
	ID        int64
	SessionID string
	Kind      string
	Query     string
	CreatedAt string
}

// Store wraps the sqlite database.
type Store struct {
	*sql.DB
	path string
}

// Open opens (or creates) the database at path and runs pending
// migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}

	s := &Store{DB: db, path: path}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// RecordSearch inserts one search query row.
func (s *Store) RecordSearch(ctx context.Context, sessionID, kind, query string) error {
	_, err := s.ExecContext(ctx,
		"INSERT INTO recent_searches (session_id, kind, query) VALUES (?, ?, ?)",
		sessionID, kind, query)
	if err != nil {
		return fmt.Errorf("record search: %w", err)
	}
	return nil
}

// RecentSearches returns the newest searches first, at most limit rows.
func (s *Store) RecentSearches(ctx context.Context, limit int) ([]Search, error) {
	rows, err := s.QueryContext(ctx,
		"SELECT id, session_id, kind, query, created_at FROM recent_searches ORDER BY id DESC LIMIT ?",
		limit)
	if err != nil {
		return nil, fmt.Errorf("query recent searches: %w", err)
	}
	defer rows.Close()

	var out []Search
	for rows.Next() {
		var r Search
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Kind, &r.Query, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SetPreference upserts one preference value.
func (s *Store) SetPreference(ctx context.Context, key, value string) error {
	_, err := s.ExecContext(ctx, `
		INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value)
	if err != nil {
		return fmt.Errorf("set preference %q: %w", key, err)
	}
	return nil
}

// Preference reads one preference value; found is false when the key
// has never been set.
func (s *Store) Preference(ctx context.Context, key string) (value string, found bool, err error) {
	err = s.QueryRowContext(ctx, "SELECT value FROM preferences WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read preference %q: %w", key, err)
	}
	return value, true, nil
}

// AttachAdminRoutes mounts a tailsql console for live SQL debugging
// under the tsweb debug handler.
func (s *Store) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+s.path, s.DB, &tailsql.DBOptions{
		Label: "Waypoint DB",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())
	return nil
}
