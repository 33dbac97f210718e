// Package sqlite persists the last-known-good alert set so a restarted
// instance starts with a warm fallback cache.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/paulmach/orb/geojson"
	_ "modernc.org/sqlite"

	"github.com/couchcryptid/radar-overlay/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS alerts (
	id          TEXT PRIMARY KEY,
	severity    TEXT NOT NULL,
	title       TEXT NOT NULL,
	description TEXT NOT NULL,
	urgency     TEXT NOT NULL,
	expires     TEXT NOT NULL,
	geometry    TEXT NOT NULL,
	fetched_at  TEXT NOT NULL
);`

// Store keeps one full alert set in a local SQLite database, replaced
// wholesale on each successful fetch.
type Store struct {
	db *sql.DB
}

// Open creates or opens the alert store at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open alert store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init alert store schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Replace swaps the stored alert set in one transaction.
func (s *Store) Replace(ctx context.Context, alerts []domain.Alert, fetchedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM alerts`); err != nil {
		return fmt.Errorf("clear alerts: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO alerts(id, severity, title, description, urgency, expires, geometry, fetched_at)
		 VALUES(?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range alerts {
		geom, err := marshalGeometry(a)
		if err != nil {
			return err
		}
		expires := ""
		if !a.Expires.IsZero() {
			expires = a.Expires.UTC().Format(time.RFC3339)
		}
		if _, err := stmt.ExecContext(ctx,
			a.ID, a.Severity.String(), a.Title, a.Description, a.Urgency,
			expires, geom, fetchedAt.UTC().Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("insert alert %s: %w", a.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}
	return nil
}

// Load returns the stored alert set and its fetch time. An empty store
// yields a nil slice and zero time, not an error.
func (s *Store) Load(ctx context.Context) ([]domain.Alert, time.Time, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, severity, title, description, urgency, expires, geometry, fetched_at FROM alerts`)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("load alerts: %w", err)
	}
	defer rows.Close()

	var (
		alerts    []domain.Alert
		fetchedAt time.Time
	)
	for rows.Next() {
		var (
			a                           domain.Alert
			severity, expires, geometry string
			fetched                     string
		)
		if err := rows.Scan(&a.ID, &severity, &a.Title, &a.Description, &a.Urgency,
			&expires, &geometry, &fetched); err != nil {
			return nil, time.Time{}, fmt.Errorf("scan alert: %w", err)
		}
		a.Severity = domain.ParseSeverity(severity)
		if expires != "" {
			if t, err := time.Parse(time.RFC3339, expires); err == nil {
				a.Expires = t
			}
		}
		if geometry != "" {
			g, err := geojson.UnmarshalGeometry([]byte(geometry))
			if err != nil {
				return nil, time.Time{}, fmt.Errorf("decode geometry for %s: %w", a.ID, err)
			}
			a.Geometry = g.Geometry()
		}
		if t, err := time.Parse(time.RFC3339, fetched); err == nil {
			fetchedAt = t
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, fmt.Errorf("iterate alerts: %w", err)
	}
	return alerts, fetchedAt, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func marshalGeometry(a domain.Alert) (string, error) {
	if !a.HasGeometry() {
		return "", nil
	}
	data, err := json.Marshal(geojson.NewGeometry(a.Geometry))
	if err != nil {
		return "", fmt.Errorf("encode geometry for %s: %w", a.ID, err)
	}
	return string(data), nil
}
