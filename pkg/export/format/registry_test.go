package format

import (
	"context"
	"errors"
	"testing"

	"mercator-hq/courier/pkg/export"
)

type fakeMeta struct {
	keys  map[export.RecordType][]string
	calls int
}

func (f *fakeMeta) ListMetaKeys(_ context.Context, t export.RecordType) ([]string, error) {
	f.calls++
	return f.keys[t], nil
}

func newTestRegistry() (*Registry, *fakeMeta) {
	meta := &fakeMeta{keys: map[export.RecordType][]string{
		export.RecordTypeOrders: {"gift_wrap", "_billing_phone"},
	}}
	return NewRegistry(NewMemoryStore(), meta), meta
}

func TestBuiltins_Validate(t *testing.T) {
	for _, rt := range []export.RecordType{export.RecordTypeOrders, export.RecordTypeCustomers} {
		defs := Builtins(rt)
		if len(defs) == 0 {
			t.Fatalf("no built-ins for %s", rt)
		}
		for _, def := range defs {
			if err := def.Validate(); err != nil {
				t.Errorf("built-in %s/%s invalid: %v", rt, def.Key, err)
			}
			if def.Kind != KindBuiltin {
				t.Errorf("built-in %s/%s kind = %v", rt, def.Key, def.Kind)
			}
		}
	}
}

func TestBuiltins_ReturnCopies(t *testing.T) {
	def, ok := Builtin(export.RecordTypeOrders, KeyDefault)
	if !ok {
		t.Fatal("default order format missing")
	}
	def.Columns[0].Header = "changed"

	again, _ := Builtin(export.RecordTypeOrders, KeyDefault)
	if again.Columns[0].Header == "changed" {
		t.Error("built-in definition was mutated through a returned copy")
	}
}

func TestRegistry_GetFormat_Builtin(t *testing.T) {
	r, _ := newTestRegistry()
	ctx := context.Background()

	def, err := r.GetFormat(ctx, export.RecordTypeOrders, KeyDefaultOneRowPerItem)
	if err != nil {
		t.Fatalf("GetFormat() error = %v", err)
	}
	if !def.IsPerSubItem() {
		t.Error("default_one_row_per_item should fan out per item")
	}

	// Empty key resolves the active format, which defaults to "default".
	def, err = r.GetFormat(ctx, export.RecordTypeCustomers, "")
	if err != nil {
		t.Fatalf("GetFormat(\"\") error = %v", err)
	}
	if def.Key != KeyDefault {
		t.Errorf("GetFormat(\"\").Key = %q, want %q", def.Key, KeyDefault)
	}

	_, err = r.GetFormat(ctx, export.RecordTypeOrders, "nope")
	if !errors.Is(err, export.ErrFormatNotFound) {
		t.Errorf("GetFormat(unknown) error = %v, want ErrFormatNotFound", err)
	}
}

func TestRegistry_SaveAndResolveCustom(t *testing.T) {
	r, meta := newTestRegistry()
	ctx := context.Background()

	saved, err := r.SaveCustomFormat(ctx, &CustomFormat{
		Name:       "Warehouse",
		RecordType: export.RecordTypeOrders,
		Delimiter:  ";",
		RowMode:    RowPerSubItem,
		Mapping: []MappingEntry{
			{Source: SourceField, Value: FieldOrderID},
			{Source: SourceField, Value: FieldItemSKU},
		},
		IncludeAllMeta: true,
	})
	if err != nil {
		t.Fatalf("SaveCustomFormat() error = %v", err)
	}
	if saved.Key != "custom-warehouse" {
		t.Errorf("generated key = %q, want custom-warehouse", saved.Key)
	}

	def, err := r.GetFormat(ctx, export.RecordTypeOrders, saved.Key)
	if err != nil {
		t.Fatalf("GetFormat() error = %v", err)
	}
	if def.Kind != KindCustomOrders {
		t.Errorf("Kind = %v, want custom_orders", def.Kind)
	}
	if def.Delimiter != ';' || def.Enclosure != '"' {
		t.Errorf("delimiter/enclosure = %q/%q", def.Delimiter, def.Enclosure)
	}
	if def.ItemEncoding != EncodingPipe {
		t.Errorf("ItemEncoding = %q, want default pipe", def.ItemEncoding)
	}
	wantKeys := []string{"order_id", "item_sku", "meta:gift_wrap"}
	if got := def.Columns.Keys(); len(got) != len(wantKeys) || got[2] != wantKeys[2] {
		t.Errorf("columns = %v, want %v", got, wantKeys)
	}

	// Meta keys are discovered on every resolution.
	before := meta.calls
	meta.keys[export.RecordTypeOrders] = append(meta.keys[export.RecordTypeOrders], "packing_note")
	def, _ = r.GetFormat(ctx, export.RecordTypeOrders, saved.Key)
	if meta.calls == before {
		t.Error("meta keys were not re-discovered")
	}
	if !def.Columns.Has("meta:packing_note") {
		t.Errorf("new meta key not picked up: %v", def.Columns.Keys())
	}

	// A second format with the same name gets a suffixed key.
	again, err := r.SaveCustomFormat(ctx, &CustomFormat{
		Name:       "Warehouse",
		RecordType: export.RecordTypeOrders,
		Mapping:    []MappingEntry{{Source: SourceField, Value: FieldOrderID}},
	})
	if err != nil {
		t.Fatalf("SaveCustomFormat() error = %v", err)
	}
	if again.Key != "custom-warehouse-1" {
		t.Errorf("second key = %q, want custom-warehouse-1", again.Key)
	}

	defs, err := r.ListFormats(ctx, export.RecordTypeOrders)
	if err != nil {
		t.Fatalf("ListFormats() error = %v", err)
	}
	if n := len(Builtins(export.RecordTypeOrders)) + 2; len(defs) != n {
		t.Errorf("ListFormats() returned %d formats, want %d", len(defs), n)
	}
	if defs[0].Key != KeyDefault {
		t.Errorf("first listed format = %q, want built-ins first", defs[0].Key)
	}
}

func TestRegistry_SaveCustomFormat_Invalid(t *testing.T) {
	r, _ := newTestRegistry()
	ctx := context.Background()

	tests := []struct {
		name string
		cf   *CustomFormat
	}{
		{
			"builtin key",
			&CustomFormat{Key: KeyDefault, Name: "x", RecordType: export.RecordTypeOrders,
				Mapping: []MappingEntry{{Source: SourceField, Value: FieldOrderID}}},
		},
		{
			"unknown field",
			&CustomFormat{Name: "x", RecordType: export.RecordTypeOrders,
				Mapping: []MappingEntry{{Source: SourceField, Value: "no_such_field"}}},
		},
		{
			"multi-char delimiter",
			&CustomFormat{Name: "x", RecordType: export.RecordTypeOrders, Delimiter: ";;",
				Mapping: []MappingEntry{{Source: SourceField, Value: FieldOrderID}}},
		},
		{
			"delimiter equals enclosure",
			&CustomFormat{Name: "x", RecordType: export.RecordTypeCustomers, Delimiter: "|", Enclosure: "|",
				Mapping: []MappingEntry{{Source: SourceField, Value: FieldEmail}}},
		},
		{
			"row mode on customers",
			&CustomFormat{Name: "x", RecordType: export.RecordTypeCustomers, RowMode: RowPerSubItem,
				Mapping: []MappingEntry{{Source: SourceField, Value: FieldEmail}}},
		},
		{
			"static without name",
			&CustomFormat{Name: "x", RecordType: export.RecordTypeOrders,
				Mapping: []MappingEntry{{Source: SourceStatic, Value: "web"}}},
		},
		{
			"no columns",
			&CustomFormat{Name: "x", RecordType: export.RecordTypeOrders},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.SaveCustomFormat(ctx, tt.cf)
			var fe *export.FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("SaveCustomFormat() error = %v, want *export.FormatError", err)
			}
		})
	}
}

func TestRegistry_DeleteCustomFormat(t *testing.T) {
	r, _ := newTestRegistry()
	ctx := context.Background()

	saved, err := r.SaveCustomFormat(ctx, &CustomFormat{
		Name:       "Newsletter",
		RecordType: export.RecordTypeCustomers,
		Mapping:    []MappingEntry{{Source: SourceField, Value: FieldEmail}},
	})
	if err != nil {
		t.Fatalf("SaveCustomFormat() error = %v", err)
	}

	if err := r.SetActiveFormat(ctx, export.RecordTypeCustomers, saved.Key); err != nil {
		t.Fatalf("SetActiveFormat() error = %v", err)
	}

	err = r.DeleteCustomFormat(ctx, export.RecordTypeCustomers, saved.Key)
	if !errors.Is(err, export.ErrFormatInUse) {
		t.Fatalf("DeleteCustomFormat(active) error = %v, want ErrFormatInUse", err)
	}
	if _, err := r.GetFormat(ctx, export.RecordTypeCustomers, saved.Key); err != nil {
		t.Fatalf("format vanished after refused delete: %v", err)
	}

	if err := r.SetActiveFormat(ctx, export.RecordTypeCustomers, KeyLegacy); err != nil {
		t.Fatalf("SetActiveFormat() error = %v", err)
	}
	if err := r.DeleteCustomFormat(ctx, export.RecordTypeCustomers, saved.Key); err != nil {
		t.Fatalf("DeleteCustomFormat() error = %v", err)
	}
	if _, err := r.GetFormat(ctx, export.RecordTypeCustomers, saved.Key); !errors.Is(err, export.ErrFormatNotFound) {
		t.Errorf("GetFormat(deleted) error = %v, want ErrFormatNotFound", err)
	}

	if err := r.DeleteCustomFormat(ctx, export.RecordTypeCustomers, KeyDefault); err == nil {
		t.Error("DeleteCustomFormat(builtin) error = nil, want error")
	}
}

func TestRegistry_SetActiveFormat_Unknown(t *testing.T) {
	r, _ := newTestRegistry()
	err := r.SetActiveFormat(context.Background(), export.RecordTypeOrders, "custom-missing")
	if !errors.Is(err, export.ErrFormatNotFound) {
		t.Errorf("SetActiveFormat(unknown) error = %v, want ErrFormatNotFound", err)
	}
}
