package format

import (
	"testing"

	"mercator-hq/courier/pkg/export"
)

func TestGenerateKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		existing []string
		want     string
	}{
		{"fresh", "Accounting Export", nil, "custom-accounting-export"},
		{"first collision", "Accounting Export", []string{"custom-accounting-export"}, "custom-accounting-export-1"},
		{
			"second collision",
			"Accounting Export",
			[]string{"custom-accounting-export", "custom-accounting-export-1"},
			"custom-accounting-export-2",
		},
		{
			"gap is reused",
			"Accounting Export",
			[]string{"custom-accounting-export", "custom-accounting-export-2"},
			"custom-accounting-export-1",
		},
		{"empty name", "", nil, "custom-format"},
		{"unrelated keys", "Foo", []string{"custom-bar", "custom-foo-1"}, "custom-foo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GenerateKey(export.RecordTypeOrders, tt.input, tt.existing)
			if got != tt.want {
				t.Errorf("GenerateKey(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestGenerateKey_Deterministic(t *testing.T) {
	existing := []string{"custom-weekly", "custom-weekly-1"}
	first := GenerateKey(export.RecordTypeCustomers, "Weekly", existing)
	second := GenerateKey(export.RecordTypeCustomers, "Weekly", existing)
	if first != second {
		t.Errorf("GenerateKey not deterministic: %q vs %q", first, second)
	}
	if first != "custom-weekly-2" {
		t.Errorf("GenerateKey = %q, want custom-weekly-2", first)
	}
}

func TestGenerateKey_NeverBuiltin(t *testing.T) {
	for _, def := range Builtins(export.RecordTypeOrders) {
		got := GenerateKey(export.RecordTypeOrders, def.Name, nil)
		if IsBuiltinKey(export.RecordTypeOrders, got) {
			t.Errorf("GenerateKey(%q) = %q collides with a built-in", def.Name, got)
		}
	}
}
