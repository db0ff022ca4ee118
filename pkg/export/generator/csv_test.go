package generator

import (
	"bytes"
	"testing"
)

func TestGuardCell(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"=1+1", "'=1+1"},
		{"+15551234", "'+15551234"},
		{"-5", "'-5"},
		{"@SUM(A1)", "'@SUM(A1)"},
		{"normal text", "normal text"},
		{"a=b", "a=b"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := GuardCell(tt.in); got != tt.want {
			t.Errorf("GuardCell(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEnclosureWriter(t *testing.T) {
	tests := []struct {
		name      string
		delimiter rune
		enclosure rune
		record    []string
		want      string
	}{
		{"plain", ',', '\'', []string{"a", "b"}, "a,b\n"},
		{"delimiter inside", ',', '\'', []string{"a,b", "c"}, "'a,b',c\n"},
		{"enclosure doubled", ',', '\'', []string{"it's"}, "'it''s'\n"},
		{"newline", '\t', '#', []string{"a\nb", "c"}, "#a\nb#\tc\n"},
		{"leading space", ';', '~', []string{" x"}, "~ x~\n"},
		{"empty fields", '|', '\'', []string{"", "", ""}, "||\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			w := newRowWriter(&buf, tt.delimiter, tt.enclosure)
			if err := w.Write(tt.record); err != nil {
				t.Fatalf("Write() error = %v", err)
			}
			w.Flush()
			if err := w.Error(); err != nil {
				t.Fatalf("Flush() error = %v", err)
			}
			if buf.String() != tt.want {
				t.Errorf("got %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestRowWriter_DoubleQuoteUsesStandardQuoting(t *testing.T) {
	var buf bytes.Buffer
	w := newRowWriter(&buf, ';', '"')
	w.Write([]string{`say "hi"`, "a;b", "plain"})
	w.Flush()
	if want := "\"say \"\"hi\"\"\";\"a;b\";plain\n"; buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}
