package generator

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"mercator-hq/courier/pkg/export"
	"mercator-hq/courier/pkg/export/format"
	"mercator-hq/courier/pkg/export/records"
)

var orderDate = time.Date(2025, 4, 2, 9, 30, 0, 0, time.UTC)

func testOrder(id string, items int) *export.OrderRecord {
	o := &export.OrderRecord{
		ID:            id,
		Number:        "N-" + id,
		Date:          orderDate,
		Status:        "completed",
		Currency:      "EUR",
		Total:         42.5,
		PaymentMethod: "card",
		CustomerID:    "7",
		Billing:       export.Address{FirstName: "Ann", LastName: "Lee", Email: "ann@example.com", City: "Oslo"},
		Shipping:      export.Address{FirstName: "Ann", LastName: "Lee", City: "Oslo"},
		ShippingLines: []export.ShippingLine{{ID: "s1", MethodID: "flat_rate", Title: "Flat", Total: 5}},
		CouponLines:   []export.CouponLine{{ID: "c1", Code: "SPRING", Amount: 2}},
		Metadata:      map[string]string{"gift_wrap": "yes"},
	}
	for i := 0; i < items; i++ {
		n := string(rune('a' + i))
		o.LineItems = append(o.LineItems, export.LineItem{
			ID:       "li-" + n,
			Name:     "Item " + n,
			SKU:      "SKU-" + n,
			Quantity: float64(i + 1),
			Total:    float64(10 * (i + 1)),
			Taxes:    []export.ItemTax{{RateID: "1", Total: 1, Subtotal: 1}},
		})
	}
	return o
}

func newTestGenerator(t *testing.T, orders ...*export.OrderRecord) (*Generator, *records.MemoryStore) {
	t.Helper()
	store := records.NewMemoryStore()
	for _, o := range orders {
		if err := store.PutOrder(context.Background(), o); err != nil {
			t.Fatal(err)
		}
	}
	return New(store, DefaultOptions(), nil), store
}

func builtin(t *testing.T, rt export.RecordType, key string) *format.Definition {
	t.Helper()
	def, ok := format.Builtin(rt, key)
	if !ok {
		t.Fatalf("built-in %s/%s missing", rt, key)
	}
	return def
}

func ids(values ...string) []export.Identifier {
	out := make([]export.Identifier, len(values))
	for i, v := range values {
		out[i] = export.Identifier{ID: v}
	}
	return out
}

func parseCSV(t *testing.T, data string, delimiter rune) [][]string {
	t.Helper()
	r := csv.NewReader(strings.NewReader(data))
	r.Comma = delimiter
	r.FieldsPerRecord = -1
	recs, err := r.ReadAll()
	if err != nil {
		t.Fatalf("generated CSV does not parse: %v\n%s", err, data)
	}
	return recs
}

func TestGenerator_ColumnCompleteness(t *testing.T) {
	g, store := newTestGenerator(t, testOrder("1", 2), testOrder("2", 0))
	store.PutCustomer(context.Background(), &export.CustomerRecord{ID: "7", Email: "ann@example.com"})
	ctx := context.Background()

	for _, rt := range []export.RecordType{export.RecordTypeOrders, export.RecordTypeCustomers} {
		for _, def := range format.Builtins(rt) {
			idList := ids("1", "2")
			if rt == export.RecordTypeCustomers {
				idList = ids("7")
			}
			cols := g.Columns(def)
			for _, id := range idList {
				rows, err := g.RecordRows(ctx, def, id)
				if err != nil {
					t.Fatalf("%s/%s RecordRows(%s) error = %v", rt, def.Key, id, err)
				}
				for _, row := range rows {
					for _, col := range cols {
						if _, ok := row[col.Key]; !ok {
							t.Errorf("%s/%s row missing column %q", rt, def.Key, col.Key)
						}
					}
				}
			}
		}
	}
}

func TestGenerator_FanOutPerItem(t *testing.T) {
	g, _ := newTestGenerator(t, testOrder("1", 3))
	def := builtin(t, export.RecordTypeOrders, format.KeyDefaultOneRowPerItem)

	rows, err := g.RecordRows(context.Background(), def, export.Identifier{ID: "1"})
	if err != nil {
		t.Fatalf("RecordRows() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}

	itemCols := map[string]bool{}
	for _, k := range format.OrderItemFields() {
		itemCols[k] = true
	}
	for _, col := range def.Columns {
		if itemCols[col.Key] {
			continue
		}
		for i := 1; i < len(rows); i++ {
			if rows[i][col.Key] != rows[0][col.Key] {
				t.Errorf("column %q differs between rows: %q vs %q", col.Key, rows[0][col.Key], rows[i][col.Key])
			}
		}
	}

	for i, want := range []string{"li-a", "li-b", "li-c"} {
		if rows[i][format.FieldItemID] != want {
			t.Errorf("row %d item_id = %q, want %q", i, rows[i][format.FieldItemID], want)
		}
	}
	if rows[2][format.FieldItemQuantity] != "3" || rows[2][format.FieldItemTotal] != "30.00" {
		t.Errorf("row 2 quantity/total = %q/%q", rows[2][format.FieldItemQuantity], rows[2][format.FieldItemTotal])
	}
}

func TestGenerator_ZeroItemsPerItemMode(t *testing.T) {
	g, _ := newTestGenerator(t, testOrder("1", 0))
	def := builtin(t, export.RecordTypeOrders, format.KeyDefaultOneRowPerItem)

	rows, err := g.RecordRows(context.Background(), def, export.Identifier{ID: "1"})
	if err != nil {
		t.Fatalf("RecordRows() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want exactly 1 for an order without items", len(rows))
	}
	if rows[0][format.FieldOrderID] != "1" {
		t.Errorf("order_id = %q, want 1", rows[0][format.FieldOrderID])
	}
	for _, k := range format.OrderItemFields() {
		if v := rows[0][k]; v != "" {
			t.Errorf("item column %q = %q, want blank", k, v)
		}
	}
}

func TestGenerator_PerRecordEmbedsItems(t *testing.T) {
	g, _ := newTestGenerator(t, testOrder("1", 2))
	def := builtin(t, export.RecordTypeOrders, format.KeyDefault)

	var buf bytes.Buffer
	res, err := g.Generate(context.Background(), def, ids("1"), true, &buf)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if res.Rows != 1 || res.Records != 1 {
		t.Errorf("Generate() = %+v, want one row", res)
	}

	recs := parseCSV(t, buf.String(), ',')
	if len(recs) != 2 {
		t.Fatalf("got %d CSV records, want header + 1", len(recs))
	}
	idx := def.Columns.Index(format.FieldLineItems)
	items, err := DecodePipe(recs[1][idx])
	if err != nil {
		t.Fatalf("DecodePipe() error = %v", err)
	}
	if len(items) != 2 || items[1].Get("sku") != "SKU-b" || items[1].Get("quantity") != "2" {
		t.Errorf("decoded line items = %v", items)
	}
}

func TestGenerator_JSONEncoding(t *testing.T) {
	g, _ := newTestGenerator(t, testOrder("1", 1))
	def := builtin(t, export.RecordTypeOrders, format.KeyImport)

	rows, err := g.RecordRows(context.Background(), def, export.Identifier{ID: "1"})
	if err != nil {
		t.Fatalf("RecordRows() error = %v", err)
	}

	var items []map[string]interface{}
	if err := json.Unmarshal([]byte(rows[0][format.FieldLineItems]), &items); err != nil {
		t.Fatalf("line_items is not JSON: %v (%q)", err, rows[0][format.FieldLineItems])
	}
	if len(items) != 1 || items[0]["sku"] != "SKU-a" {
		t.Errorf("line_items = %v", items)
	}
	if taxes, ok := items[0]["taxes"].([]interface{}); !ok || len(taxes) != 1 {
		t.Errorf("tax breakdown missing: %v", items[0]["taxes"])
	}
	if rows[0][format.FieldFeeItems] != "" {
		t.Errorf("empty fee collection = %q, want blank", rows[0][format.FieldFeeItems])
	}
}

func TestGenerator_SkipsMissingRecords(t *testing.T) {
	g, _ := newTestGenerator(t, testOrder("1", 1), testOrder("3", 1))
	def := builtin(t, export.RecordTypeOrders, format.KeyDefault)

	var buf bytes.Buffer
	res, err := g.Generate(context.Background(), def, ids("3", "2", "1"), false, &buf)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if res.Skipped != 1 || res.Records != 2 {
		t.Errorf("Generate() = %+v, want 2 records and 1 skipped", res)
	}

	recs := parseCSV(t, buf.String(), ',')
	if len(recs) != 2 || recs[0][0] != "3" || recs[1][0] != "1" {
		t.Errorf("rows out of input order: %v", recs)
	}
}

func TestGenerator_StoreUnavailableIsFatal(t *testing.T) {
	g, store := newTestGenerator(t, testOrder("1", 1))
	store.SetFailure(errors.New("connection refused"))
	def := builtin(t, export.RecordTypeOrders, format.KeyDefault)

	_, err := g.Generate(context.Background(), def, ids("1"), false, &bytes.Buffer{})
	var rse *export.RecordStoreError
	if !errors.As(err, &rse) {
		t.Fatalf("Generate() error = %v, want *export.RecordStoreError", err)
	}
}

func TestGenerator_InjectionGuard(t *testing.T) {
	o := testOrder("1", 0)
	o.CustomerNote = "=1+1"
	o.Billing.Company = "normal text"
	o.Billing.Phone = "+47 555"
	g, _ := newTestGenerator(t, o)
	def := builtin(t, export.RecordTypeOrders, format.KeyDefault)

	var buf bytes.Buffer
	if _, err := g.Generate(context.Background(), def, ids("1"), false, &buf); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	rec := parseCSV(t, buf.String(), ',')[0]

	tests := []struct {
		col  string
		want string
	}{
		{format.FieldCustomerNote, "'=1+1"},
		{"billing_company", "normal text"},
		{"billing_phone", "'+47 555"},
	}
	for _, tt := range tests {
		if got := rec[def.Columns.Index(tt.col)]; got != tt.want {
			t.Errorf("%s = %q, want %q", tt.col, got, tt.want)
		}
	}
}

func TestGenerator_CSVStructuralValidity(t *testing.T) {
	tricky := "semi;colon, comma \"quoted\"\nnew line"
	o := testOrder("1", 0)
	o.CustomerNote = tricky

	g, _ := newTestGenerator(t, o)
	def := builtin(t, export.RecordTypeOrders, format.KeyDefault)
	def.Delimiter = ';'

	var buf bytes.Buffer
	if _, err := g.Generate(context.Background(), def, ids("1"), true, &buf); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	recs := parseCSV(t, buf.String(), ';')
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if got := recs[1][def.Columns.Index(format.FieldCustomerNote)]; got != tricky {
		t.Errorf("customer_note = %q, want %q", got, tricky)
	}
	if len(recs[0]) != len(recs[1]) {
		t.Errorf("header has %d fields, row has %d", len(recs[0]), len(recs[1]))
	}
}

func TestGenerator_HeaderVerbatim(t *testing.T) {
	g := New(records.NewMemoryStore(), DefaultOptions(), nil)

	def := &format.Definition{
		Key:        "t",
		RecordType: export.RecordTypeCustomers,
		Delimiter:  ',',
		Enclosure:  '"',
		Columns: format.Columns{
			{Key: "email", Header: "E-mail, primary"},
			{Key: "first_name", Header: "First"},
			{Key: "-discount", Header: "-discount"},
			{Key: "total", Header: "=Total"},
		},
	}

	var buf bytes.Buffer
	if err := g.WriteHeader(&buf, def); err != nil {
		t.Fatalf("WriteHeader() error = %v", err)
	}
	want := "\"E-mail, primary\",First,-discount,=Total\n"
	if buf.String() != want {
		t.Errorf("WriteHeader() = %q, want %q", buf.String(), want)
	}
}

func TestGenerator_GuestCustomer(t *testing.T) {
	o := testOrder("55", 1)
	o.CustomerID = ""
	o.Total = 30
	o.RefundedTotal = 5
	g, _ := newTestGenerator(t, o)
	def := builtin(t, export.RecordTypeCustomers, format.KeyDefault)

	rows, err := g.RecordRows(context.Background(), def, export.Identifier{OrderID: "55", Email: "guest@example.com"})
	if err != nil {
		t.Fatalf("RecordRows() error = %v", err)
	}
	row := rows[0]
	if row[format.FieldEmail] != "guest@example.com" || row[format.FieldFirstName] != "Ann" {
		t.Errorf("guest row email/name = %q/%q", row[format.FieldEmail], row[format.FieldFirstName])
	}
	if row[format.FieldCustomerUserID] != "" || row[format.FieldCustomerIsGuest] != "1" {
		t.Errorf("guest id/is_guest = %q/%q", row[format.FieldCustomerUserID], row[format.FieldCustomerIsGuest])
	}
	if row[format.FieldTotalSpent] != "25.00" || row[format.FieldOrderCount] != "1" {
		t.Errorf("guest totals = %q/%q", row[format.FieldTotalSpent], row[format.FieldOrderCount])
	}

	// A registered id that no longer exists falls back to the guest order.
	rows, err = g.RecordRows(context.Background(), def, export.Identifier{ID: "9", OrderID: "55"})
	if err != nil || rows[0][format.FieldEmail] != "ann@example.com" {
		t.Errorf("fallback to guest failed: %v %v", rows, err)
	}
}

func TestGenerator_CustomFormatStaticAndMeta(t *testing.T) {
	g, _ := newTestGenerator(t, testOrder("1", 0))
	def := &format.Definition{
		Kind:         format.KindCustomOrders,
		Key:          "custom-x",
		RecordType:   export.RecordTypeOrders,
		Delimiter:    '|',
		Enclosure:    '\'',
		RowMode:      format.RowPerRecord,
		ItemEncoding: format.EncodingPipe,
		Columns: format.Columns{
			{Key: "order_id", Header: "ID"},
			{Key: "meta:gift_wrap", Header: "Gift"},
			{Key: "meta:missing", Header: "Missing"},
			{Key: "Channel", Header: "Channel"},
		},
		StaticValues: map[string]string{"Channel": "it's web"},
	}

	var buf bytes.Buffer
	if _, err := g.Generate(context.Background(), def, ids("1"), true, &buf); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	want := "ID|Gift|Missing|Channel\n1|yes||'it''s web'\n"
	if buf.String() != want {
		t.Errorf("Generate() = %q, want %q", buf.String(), want)
	}
}
