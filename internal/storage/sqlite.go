package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/contacts/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS contacts (
	id         TEXT PRIMARY KEY,
	position   INTEGER NOT NULL,
	first      TEXT,
	last       TEXT,
	avatar     TEXT,
	twitter    TEXT,
	notes      TEXT,
	favorite   INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_contacts_position ON contacts(position);
`

// SQLite implements Provider on a SQLite database. Absent optional fields
// are stored as NULL.
type SQLite struct {
	conn *sql.DB
}

var _ Provider = (*SQLite)(nil)

// OpenSQLite opens (or creates) the database at dsn and applies the schema.
// For a plain file path the parent directory is created if needed.
func OpenSQLite(dsn string) (*SQLite, error) {
	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("storage: mkdir: %w", err)
		}
	}
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("storage: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: apply schema: %w", err)
	}
	return &SQLite{conn: conn}, nil
}

// Load returns all rows ordered by position.
func (s *SQLite) Load(ctx context.Context) ([]models.Contact, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, first, last, avatar, twitter, notes, favorite, created_at
		FROM contacts
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("storage: load: %w", err)
	}
	defer rows.Close()

	out := []models.Contact{}
	for rows.Next() {
		var (
			c                              models.Contact
			first, last, avatar, tw, notes sql.NullString
			createdAt                      string
		)
		if err := rows.Scan(&c.ID, &first, &last, &avatar, &tw, &notes, &c.Favorite, &createdAt); err != nil {
			return nil, fmt.Errorf("storage: scan: %w", err)
		}
		c.First = fromNull(first)
		c.Last = fromNull(last)
		c.Avatar = fromNull(avatar)
		c.Twitter = fromNull(tw)
		c.Notes = fromNull(notes)
		c.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("storage: parse created_at for %s: %w", c.ID, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Save replaces the table contents within a single transaction.
func (s *SQLite) Save(ctx context.Context, contacts []models.Contact) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.ExecContext(ctx, `DELETE FROM contacts`); err != nil {
		return fmt.Errorf("storage: clear: %w", err)
	}
	if len(contacts) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO contacts (id, position, first, last, avatar, twitter, notes, favorite, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("storage: prepare insert: %w", err)
		}
		defer stmt.Close()
		for i, c := range contacts {
			_, err := stmt.ExecContext(ctx, c.ID, i,
				toNull(c.First), toNull(c.Last), toNull(c.Avatar), toNull(c.Twitter), toNull(c.Notes),
				c.Favorite, c.CreatedAt.UTC().Format(time.RFC3339Nano))
			if err != nil {
				return fmt.Errorf("storage: insert %s: %w", c.ID, err)
			}
		}
	}
	return tx.Commit()
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.conn.Close()
}

func toNull(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNull(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return models.String(ns.String)
}
