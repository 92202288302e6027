// Package journal keeps an append-only history of transfers. Nothing in the
// sync core reads it back; it exists for the history command and audits.
package journal

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Operation is the kind of transfer recorded
type Operation string

const (
	OpUpload Operation = "upload"
	OpDelete Operation = "delete"
)

// Entry is one journal row
type Entry struct {
	ID        int64     `json:"id"`
	TargetID  string    `json:"targetId"`
	Operation Operation `json:"operation"`
	Path      string    `json:"path"`
	RemoteID  string    `json:"remoteId,omitempty"`
	Bytes     int64     `json:"bytes"`
	Succeeded bool      `json:"succeeded"`
	Error     string    `json:"error,omitempty"`
	TraceID   string    `json:"traceId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type DB struct {
	db *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	instance := &DB{db: db}
	if err := instance.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return instance, nil
}

func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *DB) Migrate(ctx context.Context) error {
	_, err := d.db.ExecContext(ctx, schemaSQL)
	return err
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS transfers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	target_id TEXT NOT NULL,
	operation TEXT NOT NULL,
	path TEXT NOT NULL,
	remote_id TEXT,
	bytes INTEGER NOT NULL DEFAULT 0,
	succeeded INTEGER NOT NULL,
	error TEXT,
	trace_id TEXT,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transfers_target ON transfers(target_id, id);
`

// Record appends e. CreatedAt defaults to now.
func (d *DB) Record(ctx context.Context, e Entry) (int64, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	res, err := d.db.ExecContext(ctx, `
		INSERT INTO transfers (target_id, operation, path, remote_id, bytes, succeeded, error, trace_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.TargetID, string(e.Operation), e.Path, e.RemoteID, e.Bytes, boolToInt(e.Succeeded), e.Error, e.TraceID, e.CreatedAt.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// List returns the newest entries first. An empty targetID lists every
// target; limit <= 0 means no limit.
func (d *DB) List(ctx context.Context, targetID string, limit int) (entries []Entry, err error) {
	query := `
		SELECT id, target_id, operation, path, remote_id, bytes, succeeded, error, trace_id, created_at
		FROM transfers WHERE (? = '' OR target_id = ?) ORDER BY id DESC`
	args := []any{targetID, targetID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	for rows.Next() {
		var (
			e         Entry
			op        string
			remoteID  sql.NullString
			errText   sql.NullString
			traceID   sql.NullString
			succeeded int
			created   int64
		)
		if err := rows.Scan(&e.ID, &e.TargetID, &op, &e.Path, &remoteID, &e.Bytes, &succeeded, &errText, &traceID, &created); err != nil {
			return nil, err
		}
		e.Operation = Operation(op)
		e.RemoteID = remoteID.String
		e.Error = errText.String
		e.TraceID = traceID.String
		e.Succeeded = succeeded == 1
		e.CreatedAt = time.UnixMilli(created)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
