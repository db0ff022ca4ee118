package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

var testTable = Table{
	Header: []string{"ID", "STATUS"},
	Rows: [][]string{
		{"a1", "completed"},
		{"b22", "queued"},
	},
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", FormatText, false},
		{"text", FormatText, false},
		{"JSON", FormatJSON, false},
		{"csv", FormatCSV, false},
		{"junit", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOutputFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseOutputFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseOutputFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTextFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := (&TextFormatter{}).FormatTo(&buf, "test message"); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}
	if buf.String() != "test message\n" {
		t.Errorf("FormatTo() = %q", buf.String())
	}
}

func TestTextFormatter_Table(t *testing.T) {
	var buf bytes.Buffer
	if err := (&TextFormatter{}).FormatTo(&buf, testTable); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}
	want := "ID   STATUS\na1   completed\nb22  queued\n"
	if buf.String() != want {
		t.Errorf("FormatTo() = %q, want %q", buf.String(), want)
	}
}

func TestJSONFormatter_Table(t *testing.T) {
	tests := []struct {
		name  string
		table Table
		want  string
	}{
		{"rows as objects", testTable, `[{"ID":"a1","STATUS":"completed"},{"ID":"b22","STATUS":"queued"}]`},
		{"raw value", Table{Header: []string{"X"}, Rows: [][]string{{"1"}}, Raw: map[string]int{"x": 1}}, `{"x":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := (&JSONFormatter{}).FormatTo(&buf, &tt.table); err != nil {
				t.Fatalf("FormatTo() error = %v", err)
			}
			if got := strings.TrimSpace(buf.String()); got != tt.want {
				t.Errorf("FormatTo() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestJSONFormatter_Indent(t *testing.T) {
	var buf bytes.Buffer
	if err := (&JSONFormatter{Indent: true}).FormatTo(&buf, map[string]string{"key": "value"}); err != nil {
		t.Fatal(err)
	}
	var decoded map[string]string
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if !strings.Contains(buf.String(), "\n  ") {
		t.Errorf("expected indented output, got %q", buf.String())
	}
}

func TestCSVFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := (&CSVFormatter{}).FormatTo(&buf, testTable); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}
	want := "ID,STATUS\na1,completed\nb22,queued\n"
	if buf.String() != want {
		t.Errorf("FormatTo() = %q, want %q", buf.String(), want)
	}

	if err := (&CSVFormatter{}).FormatTo(&buf, "not a table"); err == nil {
		t.Error("expected error for non-table data")
	}
}

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		format OutputFormat
		want   string
	}{
		{FormatText, "*cli.TextFormatter"},
		{FormatJSON, "*cli.JSONFormatter"},
		{FormatCSV, "*cli.CSVFormatter"},
		{"unknown", "*cli.TextFormatter"},
	}
	for _, tt := range tests {
		got := NewFormatter(tt.format)
		var name string
		switch got.(type) {
		case *TextFormatter:
			name = "*cli.TextFormatter"
		case *JSONFormatter:
			name = "*cli.JSONFormatter"
		case *CSVFormatter:
			name = "*cli.CSVFormatter"
		}
		if name != tt.want {
			t.Errorf("NewFormatter(%q) = %s, want %s", tt.format, name, tt.want)
		}
	}
}
