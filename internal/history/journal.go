// Package history keeps a durable journal of settled transfers. The
// journal is write-behind: the transfer manager appends terminal records
// and never reads them back into live state.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	_ "modernc.org/sqlite"

	"shuttle/internal/transfer"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped on incompatible schema changes. A mismatched
// database must be deleted; the journal carries no live state.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was written by a different
// journal version.
var ErrSchemaMismatch = errors.New("history schema version mismatch")

const appendTimeout = 5 * time.Second

// Journal is a SQLite-backed record of settled transfers.
type Journal struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database at path.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	journal := &Journal{db: db, path: path}
	if err := journal.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return journal, nil
}

// Path returns the database file path.
func (j *Journal) Path() string {
	return j.path
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

func (j *Journal) initSchema(ctx context.Context) error {
	var tableExists int
	err := j.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return j.createSchema(ctx)
	}

	var version int
	if err := j.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read history schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to reset)",
			ErrSchemaMismatch, version, schemaVersion, j.path)
	}
	return nil
}

func (j *Journal) createSchema(ctx context.Context) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create history schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record history schema version: %w", err)
	}
	return tx.Commit()
}

// Append writes one settled transfer. Re-appending the same id overwrites,
// which keeps retried cancellations idempotent.
func (j *Journal) Append(record transfer.Record) error {
	ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
	defer cancel()

	_, err := j.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO transfer_history (
			id, batch_id, source_host_id, dest_host_id,
			source_path, dest_path, file_name, size,
			status, error_message, created_at, started_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.BatchID,
		record.SourceHostID,
		record.DestHostID,
		record.SourcePath,
		record.DestPath,
		record.FileName,
		record.Size,
		string(record.Status),
		record.ErrorMessage,
		formatTime(&record.CreatedAt),
		formatTimePtr(record.StartedAt),
		formatTimePtr(record.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("append history record: %w", err)
	}
	return nil
}

// List returns up to limit settled transfers, most recent first.
func (j *Journal) List(ctx context.Context, limit int) ([]transfer.Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, batch_id, source_host_id, dest_host_id,
			source_path, dest_path, file_name, size,
			status, error_message, created_at, started_at, completed_at
		FROM transfer_history
		ORDER BY completed_at DESC, created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []transfer.Record
	for rows.Next() {
		var (
			record      transfer.Record
			status      string
			createdAt   string
			startedAt   sql.NullString
			completedAt sql.NullString
		)
		if err := rows.Scan(
			&record.ID,
			&record.BatchID,
			&record.SourceHostID,
			&record.DestHostID,
			&record.SourcePath,
			&record.DestPath,
			&record.FileName,
			&record.Size,
			&status,
			&record.ErrorMessage,
			&createdAt,
			&startedAt,
			&completedAt,
		); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		record.Status = transfer.Status(status)
		if ts, err := parseTime(createdAt); err == nil {
			record.CreatedAt = ts
		}
		record.StartedAt = parseTimeNull(startedAt)
		record.CompletedAt = parseTimeNull(completedAt)
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return out, nil
}

func formatTime(t *time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(t)
}

func parseTime(value string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, value)
}

func parseTimeNull(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	ts, err := parseTime(value.String)
	if err != nil {
		return nil
	}
	return &ts
}
