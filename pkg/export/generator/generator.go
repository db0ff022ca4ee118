package generator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"mercator-hq/courier/pkg/export"
	"mercator-hq/courier/pkg/export/format"
)

// Source is the record a row was generated from, handed to row transforms.
type Source struct {
	RecordType export.RecordType
	Order      *export.OrderRecord
	Customer   *export.CustomerRecord

	// ItemIndex is the line item this row carries, or ItemIndexNone.
	ItemIndex int
}

// Transforms post-process generated headers and rows for a format. They run
// after row generation and before CSV encoding.
type Transforms interface {
	// Columns returns the effective columns for def, starting from cols.
	// The result may only depend on the definition.
	Columns(def *format.Definition, cols format.Columns) format.Columns

	// Row returns the transformed row. It may modify and return row.
	Row(def *format.Definition, row Row, src Source) Row
}

// Result counts what one Generate call produced.
type Result struct {
	Records int // records loaded and written
	Rows    int // data rows written
	Skipped int // identifiers whose record was not found
}

// Generator turns record identifiers into CSV for a resolved format.
// It holds no per-export state and is safe for concurrent use.
type Generator struct {
	records    export.RecordStore
	opts       Options
	fmt        formatter
	transforms Transforms
	logger     *slog.Logger
}

// New creates a generator. transforms may be nil.
func New(records export.RecordStore, opts Options, transforms Transforms) *Generator {
	opts = opts.withDefaults()
	return &Generator{
		records:    records,
		opts:       opts,
		fmt:        formatter{opts: opts},
		transforms: transforms,
		logger:     slog.Default().With("component", "export.generator"),
	}
}

// Options returns the options the generator was built with.
func (g *Generator) Options() Options { return g.opts }

// Columns returns the effective output columns of def.
func (g *Generator) Columns(def *format.Definition) format.Columns {
	cols := def.Columns.Clone()
	if g.transforms != nil {
		cols = g.transforms.Columns(def, cols)
	}
	return cols
}

// WriteHeader writes the header row of def. Headers are written verbatim;
// the cell guard applies to data rows only. It uses the same encoder as data
// rows so quoting is identical.
func (g *Generator) WriteHeader(w io.Writer, def *format.Definition) error {
	cols := g.Columns(def)
	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = col.Header
	}
	rw := newRowWriter(w, def.Delimiter, def.Enclosure)
	if err := rw.Write(names); err != nil {
		return err
	}
	rw.Flush()
	return rw.Error()
}

// Generate writes the rows for ids to w in input order, preceded by the
// header row when includeHeader is set. Identifiers whose record does not
// exist are skipped. Any other record store failure aborts the call with a
// *export.RecordStoreError.
func (g *Generator) Generate(ctx context.Context, def *format.Definition, ids []export.Identifier, includeHeader bool, w io.Writer) (Result, error) {
	var res Result

	if includeHeader {
		if err := g.WriteHeader(w, def); err != nil {
			return res, fmt.Errorf("failed to write header: %w", err)
		}
	}

	cols := g.Columns(def)
	rw := newRowWriter(w, def.Delimiter, def.Enclosure)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		rows, err := g.recordRows(ctx, def, cols, id)
		if errors.Is(err, export.ErrRecordNotFound) {
			res.Skipped++
			g.logger.Debug("Skipping missing record", "record_type", def.RecordType, "id", id.String())
			continue
		}
		if err != nil {
			return res, err
		}

		for _, row := range rows {
			if err := rw.Write(Project(row, cols)); err != nil {
				return res, fmt.Errorf("failed to write row: %w", err)
			}
		}
		res.Records++
		res.Rows += len(rows)
	}

	rw.Flush()
	if err := rw.Error(); err != nil {
		return res, fmt.Errorf("failed to flush rows: %w", err)
	}
	return res, nil
}

// RecordRows loads one record and returns its transformed rows. Every
// effective column is present in every row. It returns
// export.ErrRecordNotFound for a missing record.
func (g *Generator) RecordRows(ctx context.Context, def *format.Definition, id export.Identifier) ([]Row, error) {
	return g.recordRows(ctx, def, g.Columns(def), id)
}

func (g *Generator) recordRows(ctx context.Context, def *format.Definition, cols format.Columns, id export.Identifier) ([]Row, error) {
	src, err := g.load(ctx, def.RecordType, id)
	if err != nil {
		return nil, err
	}

	var (
		rows    []Row
		indexes []int
	)
	switch def.RecordType {
	case export.RecordTypeOrders:
		rows, indexes = g.orderRows(def, src.Order)
	case export.RecordTypeCustomers:
		rows, indexes = []Row{g.customerRow(def, src.Customer)}, []int{ItemIndexNone}
	default:
		return nil, export.NewFormatError(def.RecordType, def.Key, "record_type", "unsupported record type")
	}

	for i := range rows {
		if g.transforms != nil {
			s := src
			s.ItemIndex = indexes[i]
			rows[i] = g.transforms.Row(def, rows[i], s)
			if rows[i] == nil {
				rows[i] = Row{}
			}
		}
		for _, col := range cols {
			if _, ok := rows[i][col.Key]; !ok {
				rows[i][col.Key] = ""
			}
		}
	}
	return rows, nil
}

func (g *Generator) load(ctx context.Context, t export.RecordType, id export.Identifier) (Source, error) {
	src := Source{RecordType: t, ItemIndex: ItemIndexNone}

	switch t {
	case export.RecordTypeOrders:
		order, err := g.records.GetOrder(ctx, id.ID)
		if err != nil {
			return src, storeError(t, "get_order", err)
		}
		src.Order = order

	case export.RecordTypeCustomers:
		if !id.IsGuest() {
			customer, err := g.records.GetCustomer(ctx, id.ID)
			if err == nil {
				src.Customer = customer
				return src, nil
			}
			if !errors.Is(err, export.ErrRecordNotFound) || id.OrderID == "" {
				return src, storeError(t, "get_customer", err)
			}
		}
		// No registered customer: synthesize a guest from the order.
		order, err := g.records.GetOrder(ctx, id.OrderID)
		if err != nil {
			return src, storeError(t, "get_order", err)
		}
		src.Order = order
		src.Customer = export.GuestCustomerFromOrder(order, id.Email)

	default:
		return src, fmt.Errorf("unsupported record type %q", t)
	}
	return src, nil
}

// storeError passes not-found, context and already-typed errors through and
// wraps everything else as a RecordStoreError.
func storeError(t export.RecordType, op string, err error) error {
	if errors.Is(err, export.ErrRecordNotFound) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var rse *export.RecordStoreError
	if errors.As(err, &rse) {
		return err
	}
	return export.NewRecordStoreError(t, op, err)
}
