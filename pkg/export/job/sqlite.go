package job

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"mercator-hq/courier/pkg/export"
)

// SQLiteConfig contains configuration for the SQLite job store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 4
	MaxOpenConns int

	// WALMode enables Write-Ahead Logging.
	// Default: true
	WALMode bool

	// BusyTimeout is how long to wait on a locked database.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/jobs.db",
		MaxOpenConns: 4,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStore implements Store on SQLite.
type SQLiteStore struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStore opens the database and creates the schema.
func NewSQLiteStore(config *SQLiteConfig) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	logger := slog.Default().With("component", "export.job.sqlite")

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, export.NewStorageError("sqlite", "open", err)
	}
	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}

	s := &SQLiteStore{db: db, config: config, logger: logger}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite job store initialized", "path", config.Path, "wal_mode", config.WALMode)
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return export.NewStorageError("sqlite", "enable_wal", err)
		}
	}
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
		return export.NewStorageError("sqlite", "set_busy_timeout", err)
	}
	if _, err := s.db.Exec(Schema); err != nil {
		return export.NewStorageError("sqlite", "create_schema", err)
	}
	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return export.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return export.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return export.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}
	return nil
}

// Create implements Store.
func (s *SQLiteStore) Create(ctx context.Context, j *Job) error {
	ids, err := json.Marshal(j.IDs)
	if err != nil {
		return export.NewStorageError("sqlite", "create", err)
	}
	opts, err := json.Marshal(j.Options)
	if err != nil {
		return export.NewStorageError("sqlite", "create", err)
	}

	query := `INSERT INTO export_jobs (` + jobColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query,
		j.ID, string(j.RecordType), j.FormatKey, string(j.Method), string(j.Invocation), string(ids), string(opts),
		string(j.Status), string(j.TransferStatus), j.TransferMessage, j.Error,
		j.FileName, j.Cursor, j.BytesWritten, j.RowsWritten, j.Skipped,
		j.CancelRequested, j.LockedBy, nanos(j.LockedUntil),
		nanos(j.CreatedAt), nanos(j.UpdatedAt), nullNanos(j.CompletedAt),
	)
	if err != nil {
		return export.NewStorageError("sqlite", "create", err)
	}
	return nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM export_jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, export.ErrJobNotFound
	}
	if err != nil {
		return nil, export.NewStorageError("sqlite", "get", err)
	}
	return j, nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context, f Filter) ([]*Job, error) {
	var (
		where []string
		args  []any
	)
	if f.RecordType != "" {
		where = append(where, "record_type = ?")
		args = append(args, string(f.RecordType))
	}
	if len(f.Statuses) > 0 {
		marks := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			marks[i] = "?"
			args = append(args, string(st))
		}
		where = append(where, "status IN ("+strings.Join(marks, ", ")+")")
	}
	if f.CreatedBefore != nil {
		where = append(where, "created_at < ?")
		args = append(args, nanos(*f.CreatedBefore))
	}

	query := `SELECT ` + jobColumns + ` FROM export_jobs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, export.NewStorageError("sqlite", "list", err)
	}
	defer rows.Close()

	jobs := []*Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, export.NewStorageError("sqlite", "scan", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, export.NewStorageError("sqlite", "list", err)
	}
	return jobs, nil
}

// Update implements Store.
func (s *SQLiteStore) Update(ctx context.Context, j *Job) error {
	query := `UPDATE export_jobs SET
		format_key = ?, status = ?, error = ?,
		cursor = ?, bytes_written = ?, rows_written = ?, skipped = ?,
		cancel_requested = MAX(cancel_requested, ?),
		updated_at = ?, completed_at = ?
		WHERE id = ? AND (? = '' OR locked_by = ?)`
	res, err := s.db.ExecContext(ctx, query,
		j.FormatKey, string(j.Status), j.Error,
		j.Cursor, j.BytesWritten, j.RowsWritten, j.Skipped,
		j.CancelRequested,
		nanos(j.UpdatedAt), nullNanos(j.CompletedAt),
		j.ID, j.LockedBy, j.LockedBy,
	)
	err = s.affected(res, err, "update")
	if errors.Is(err, export.ErrJobNotFound) && j.LockedBy != "" {
		if _, gerr := s.Get(ctx, j.ID); gerr == nil {
			return export.ErrJobLocked
		}
	}
	return err
}

// UpdateTransfer implements Store.
func (s *SQLiteStore) UpdateTransfer(ctx context.Context, id string, status TransferStatus, message string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE export_jobs SET transfer_status = ?, transfer_message = ?, updated_at = ? WHERE id = ?`,
		string(status), message, nanos(time.Now()), id)
	return s.affected(res, err, "update_transfer")
}

// Claim implements Store.
func (s *SQLiteStore) Claim(ctx context.Context, id, owner string, now time.Time, ttl time.Duration) (*Job, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE export_jobs SET locked_by = ?, locked_until = ?
		 WHERE id = ? AND (locked_by = '' OR locked_by = ? OR locked_until <= ?)`,
		owner, nanos(now.Add(ttl)), id, owner, nanos(now))
	if err != nil {
		return nil, export.NewStorageError("sqlite", "claim", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, export.NewStorageError("sqlite", "claim", err)
	}
	if n == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, export.ErrJobLocked
	}
	return s.Get(ctx, id)
}

// Release implements Store.
func (s *SQLiteStore) Release(ctx context.Context, id, owner string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE export_jobs SET locked_by = '', locked_until = 0 WHERE id = ? AND locked_by = ?`, id, owner)
	if err != nil {
		return export.NewStorageError("sqlite", "release", err)
	}
	return nil
}

// RequestCancel implements Store.
func (s *SQLiteStore) RequestCancel(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE export_jobs SET cancel_requested = 1 WHERE id = ?`, id)
	return s.affected(res, err, "request_cancel")
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM export_jobs WHERE id = ?`, id); err != nil {
		return export.NewStorageError("sqlite", "delete", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return export.NewStorageError("sqlite", "close", err)
	}
	return nil
}

func (s *SQLiteStore) affected(res sql.Result, err error, op string) error {
	if err != nil {
		return export.NewStorageError("sqlite", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return export.NewStorageError("sqlite", op, err)
	}
	if n == 0 {
		return export.ErrJobNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(sc scanner) (*Job, error) {
	var (
		j                       Job
		recordType, method, inv string
		status, transferStatus  string
		ids, opts               string
		lockedUntil             int64
		createdAt, updatedAt    int64
		completedAt             sql.NullInt64
	)
	err := sc.Scan(
		&j.ID, &recordType, &j.FormatKey, &method, &inv, &ids, &opts,
		&status, &transferStatus, &j.TransferMessage, &j.Error,
		&j.FileName, &j.Cursor, &j.BytesWritten, &j.RowsWritten, &j.Skipped,
		&j.CancelRequested, &j.LockedBy, &lockedUntil,
		&createdAt, &updatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(ids), &j.IDs); err != nil {
		return nil, fmt.Errorf("decode ids: %w", err)
	}
	if err := json.Unmarshal([]byte(opts), &j.Options); err != nil {
		return nil, fmt.Errorf("decode options: %w", err)
	}
	j.RecordType = export.RecordType(recordType)
	j.Method = Method(method)
	j.Invocation = Invocation(inv)
	j.Status = Status(status)
	j.TransferStatus = TransferStatus(transferStatus)
	j.LockedUntil = fromNanos(lockedUntil)
	j.CreatedAt = fromNanos(createdAt)
	j.UpdatedAt = fromNanos(updatedAt)
	if completedAt.Valid {
		t := fromNanos(completedAt.Int64)
		j.CompletedAt = &t
	}
	return &j, nil
}

func nanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func nullNanos(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
