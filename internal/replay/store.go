// Package replay records collaborator traffic (web searches and model
// completions) to SQLite and serves it back, so an analysis can be rerun
// without network access and with identical inputs.
package replay

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

var ErrNotRecorded = errors.New("no recorded interaction")

type Kind string

const (
	KindSearch     Kind = "search"
	KindCompletion Kind = "completion"
)

type Interaction struct {
	Kind      Kind
	Key       string
	Request   string
	Response  string
	Error     string
	CreatedAt time.Time
}

type interactionRow struct {
	Kind      string `db:"kind"`
	Key       string `db:"key"`
	Request   string `db:"request"`
	Response  string `db:"response"`
	Error     string `db:"error"`
	CreatedAt string `db:"created_at"`
}

const schema = `
CREATE TABLE IF NOT EXISTS interactions (
	kind       TEXT NOT NULL,
	key        TEXT NOT NULL,
	request    TEXT NOT NULL,
	response   TEXT NOT NULL DEFAULT '',
	error      TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	PRIMARY KEY (kind, key)
);
`

type Store struct {
	db *sqlx.DB
}

func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// KeyFor identifies a request independent of when it was made.
func KeyFor(kind Kind, request string) string {
	sum := sha256.Sum256([]byte(string(kind) + "\x00" + request))
	return hex.EncodeToString(sum[:])
}

// Put stores it, replacing any earlier interaction for the same request.
func (s *Store) Put(ctx context.Context, it Interaction) error {
	if it.Key == "" {
		it.Key = KeyFor(it.Kind, it.Request)
	}
	if it.CreatedAt.IsZero() {
		it.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO interactions (kind, key, request, response, error, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		string(it.Kind), it.Key, it.Request, it.Response, it.Error, it.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("store interaction: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, kind Kind, request string) (Interaction, error) {
	var row interactionRow
	err := s.db.GetContext(ctx, &row, `SELECT kind, key, request, response, error, created_at FROM interactions WHERE kind = ? AND key = ?`,
		string(kind), KeyFor(kind, request))
	if errors.Is(err, sql.ErrNoRows) {
		return Interaction{}, fmt.Errorf("%w: %s", ErrNotRecorded, kind)
	}
	if err != nil {
		return Interaction{}, fmt.Errorf("load interaction: %w", err)
	}
	created, _ := time.Parse(time.RFC3339Nano, row.CreatedAt)
	return Interaction{
		Kind:      Kind(row.Kind),
		Key:       row.Key,
		Request:   row.Request,
		Response:  row.Response,
		Error:     row.Error,
		CreatedAt: created,
	}, nil
}

func (s *Store) Count(ctx context.Context, kind Kind) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM interactions WHERE kind = ?`, string(kind)); err != nil {
		return 0, fmt.Errorf("count interactions: %w", err)
	}
	return n, nil
}
