package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"mercator-hq/courier/pkg/export"
)

// SQLiteStore is a record store over a SQLite database. Records are kept as
// JSON documents with the columns queries filter on pulled out alongside.
// Metadata keys are discovered with json_each over the documents.
type SQLiteStore struct {
	db        *sql.DB
	path      string
	closeOnce sync.Once
}

// SQLiteStoreConfig configures a SQLiteStore.
type SQLiteStoreConfig struct {
	// Path is the database file.
	Path string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// NewSQLiteStore opens (and if needed creates) the record database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	return NewSQLiteStoreWithConfig(SQLiteStoreConfig{Path: path})
}

// NewSQLiteStoreWithConfig opens a record database with custom settings.
func NewSQLiteStoreWithConfig(cfg SQLiteStoreConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)",
		cfg.Path, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite only supports a single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{db: db, path: cfg.Path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT '',
		customer_id TEXT NOT NULL DEFAULT '',
		billing_email TEXT NOT NULL DEFAULT '',
		doc TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_orders_created ON orders(created_at, id);
	CREATE INDEX IF NOT EXISTS idx_orders_guest ON orders(customer_id, billing_email);

	CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		registered_at INTEGER NOT NULL,
		doc TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_customers_registered ON customers(registered_at, id);

	CREATE TABLE IF NOT EXISTS exported (
		record_type TEXT NOT NULL,
		identifier TEXT NOT NULL,
		exported_at INTEGER NOT NULL,
		PRIMARY KEY (record_type, identifier)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.db.Close()
	})
	return err
}

// PutOrder implements Writer.
func (s *SQLiteStore) PutOrder(ctx context.Context, o *export.OrderRecord) error {
	doc, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to encode order %s: %w", o.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO orders (id, created_at, status, customer_id, billing_email, doc)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			created_at = excluded.created_at,
			status = excluded.status,
			customer_id = excluded.customer_id,
			billing_email = excluded.billing_email,
			doc = excluded.doc
	`, o.ID, o.Date.UnixNano(), o.Status, o.CustomerID, o.Billing.Email, string(doc))
	if err != nil {
		return export.NewRecordStoreError(export.RecordTypeOrders, "put_order", err)
	}
	return nil
}

// PutCustomer implements Writer.
func (s *SQLiteStore) PutCustomer(ctx context.Context, c *export.CustomerRecord) error {
	doc, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode customer %s: %w", c.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO customers (id, registered_at, doc)
		VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			registered_at = excluded.registered_at,
			doc = excluded.doc
	`, c.ID, c.DateRegistered.UnixNano(), string(doc))
	if err != nil {
		return export.NewRecordStoreError(export.RecordTypeCustomers, "put_customer", err)
	}
	return nil
}

// GetOrder implements export.RecordStore.
func (s *SQLiteStore) GetOrder(ctx context.Context, id string) (*export.OrderRecord, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM orders WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, export.ErrRecordNotFound
	}
	if err != nil {
		return nil, export.NewRecordStoreError(export.RecordTypeOrders, "get_order", err)
	}
	var o export.OrderRecord
	if err := json.Unmarshal([]byte(doc), &o); err != nil {
		// A corrupt document is a bad record, not an unreachable store.
		return nil, fmt.Errorf("%w: order %s: %v", export.ErrRecordNotFound, id, err)
	}
	return &o, nil
}

// GetCustomer implements export.RecordStore.
func (s *SQLiteStore) GetCustomer(ctx context.Context, id string) (*export.CustomerRecord, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM customers WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, export.ErrRecordNotFound
	}
	if err != nil {
		return nil, export.NewRecordStoreError(export.RecordTypeCustomers, "get_customer", err)
	}
	var c export.CustomerRecord
	if err := json.Unmarshal([]byte(doc), &c); err != nil {
		return nil, fmt.Errorf("%w: customer %s: %v", export.ErrRecordNotFound, id, err)
	}
	return &c, nil
}

// QueryIDs implements export.RecordStore.
func (s *SQLiteStore) QueryIDs(ctx context.Context, t export.RecordType, filter export.QueryFilter) ([]export.Identifier, error) {
	var (
		ids []export.Identifier
		err error
	)
	switch t {
	case export.RecordTypeOrders:
		ids, err = s.queryOrders(ctx, filter)
	case export.RecordTypeCustomers:
		ids, err = s.queryCustomers(ctx, filter)
	default:
		return nil, export.NewRecordStoreError(t, "query_ids", errUnknownType)
	}
	if err != nil {
		return nil, export.NewRecordStoreError(t, "query_ids", err)
	}

	if filter.OnlyNew {
		exported, err := s.exportedSet(ctx, t)
		if err != nil {
			return nil, export.NewRecordStoreError(t, "query_ids", err)
		}
		out := ids[:0]
		for _, id := range ids {
			if _, done := exported[id.String()]; !done {
				out = append(out, id)
			}
		}
		ids = out
	}
	return limit(ids, filter.Limit), nil
}

func (s *SQLiteStore) queryOrders(ctx context.Context, filter export.QueryFilter) ([]export.Identifier, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Since != nil {
		where = append(where, "created_at >= ?")
		args = append(args, filter.Since.UnixNano())
	}
	if filter.Until != nil {
		where = append(where, "created_at <= ?")
		args = append(args, filter.Until.UnixNano())
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, strings.ToLower(st))
		}
		where = append(where, "lower(status) IN ("+strings.Join(placeholders, ",")+")")
	}

	query := "SELECT id FROM orders"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []export.Identifier
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, export.Identifier{ID: id})
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) queryCustomers(ctx context.Context, filter export.QueryFilter) ([]export.Identifier, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, registered_at FROM customers ORDER BY registered_at, id`)
	if err != nil {
		return nil, err
	}
	var ids []export.Identifier
	for rows.Next() {
		var (
			id string
			at int64
		)
		if err := rows.Scan(&id, &at); err != nil {
			rows.Close()
			return nil, err
		}
		if inRange(time.Unix(0, at), filter) {
			ids = append(ids, export.Identifier{ID: id})
		}
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	guestRows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, billing_email FROM orders
		WHERE customer_id = '' AND billing_email != ''
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer guestRows.Close()

	var guests []*export.OrderRecord
	for guestRows.Next() {
		var (
			o  export.OrderRecord
			at int64
		)
		if err := guestRows.Scan(&o.ID, &at, &o.Billing.Email); err != nil {
			return nil, err
		}
		o.Date = time.Unix(0, at)
		guests = append(guests, &o)
	}
	if err := guestRows.Err(); err != nil {
		return nil, err
	}
	return append(ids, guestIdentifiers(guests, filter)...), nil
}

func (s *SQLiteStore) exportedSet(ctx context.Context, t export.RecordType) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT identifier FROM exported WHERE record_type = ?`, string(t))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		set[id] = struct{}{}
	}
	return set, rows.Err()
}

// ListMetaKeys implements export.RecordStore.
func (s *SQLiteStore) ListMetaKeys(ctx context.Context, t export.RecordType) ([]string, error) {
	var table string
	switch t {
	case export.RecordTypeOrders:
		table = "orders"
	case export.RecordTypeCustomers:
		table = "customers"
	default:
		return nil, export.NewRecordStoreError(t, "list_meta_keys", errUnknownType)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT m.key
		FROM `+table+` AS r, json_each(r.doc, '$.metadata') AS m
		ORDER BY m.key
	`)
	if err != nil {
		return nil, export.NewRecordStoreError(t, "list_meta_keys", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, export.NewRecordStoreError(t, "list_meta_keys", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, export.NewRecordStoreError(t, "list_meta_keys", err)
	}
	return keys, nil
}

// MarkExported implements export.RecordStore. Already flagged identifiers
// keep their original timestamp.
func (s *SQLiteStore) MarkExported(ctx context.Context, t export.RecordType, ids []export.Identifier) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return export.NewRecordStoreError(t, "mark_exported", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO exported (record_type, identifier, exported_at) VALUES (?, ?, ?)
		ON CONFLICT (record_type, identifier) DO NOTHING
	`)
	if err != nil {
		return export.NewRecordStoreError(t, "mark_exported", err)
	}
	defer stmt.Close()

	now := time.Now().UnixNano()
	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, string(t), id.String(), now); err != nil {
			return export.NewRecordStoreError(t, "mark_exported", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return export.NewRecordStoreError(t, "mark_exported", err)
	}
	return nil
}
