package job

// SchemaVersion is the current job database schema version.
const SchemaVersion = 1

// Schema creates the job tables. Timestamps are unix nanoseconds.
const Schema = `
CREATE TABLE IF NOT EXISTS export_jobs (
    id TEXT PRIMARY KEY,
    record_type TEXT NOT NULL,
    format_key TEXT NOT NULL,
    method TEXT NOT NULL,
    invocation TEXT NOT NULL,
    ids TEXT NOT NULL,
    options TEXT NOT NULL,

    status TEXT NOT NULL,
    transfer_status TEXT NOT NULL DEFAULT '',
    transfer_message TEXT NOT NULL DEFAULT '',
    error TEXT NOT NULL DEFAULT '',

    file_name TEXT NOT NULL,
    cursor INTEGER NOT NULL DEFAULT 0,
    bytes_written INTEGER NOT NULL DEFAULT 0,
    rows_written INTEGER NOT NULL DEFAULT 0,
    skipped INTEGER NOT NULL DEFAULT 0,

    cancel_requested INTEGER NOT NULL DEFAULT 0,
    locked_by TEXT NOT NULL DEFAULT '',
    locked_until INTEGER NOT NULL DEFAULT 0,

    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    completed_at INTEGER
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_export_jobs_created_at ON export_jobs(created_at);
CREATE INDEX IF NOT EXISTS idx_export_jobs_status ON export_jobs(status);
`

// InsertSchemaVersion records the schema version.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion returns the newest applied schema version.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`

const jobColumns = `id, record_type, format_key, method, invocation, ids, options,
    status, transfer_status, transfer_message, error,
    file_name, cursor, bytes_written, rows_written, skipped,
    cancel_requested, locked_by, locked_until,
    created_at, updated_at, completed_at`
