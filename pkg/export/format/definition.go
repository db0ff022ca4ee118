package format

import (
	"fmt"
	"unicode/utf8"

	"mercator-hq/courier/pkg/export"
)

// RowMode controls whether one CSV row represents a record or a line item.
type RowMode string

const (
	// RowPerRecord emits exactly one row per record.
	RowPerRecord RowMode = "one-row-per-record"
	// RowPerSubItem emits one row per line item.
	RowPerSubItem RowMode = "one-row-per-subitem"
)

// ItemEncoding controls how sub-collections serialize into one cell.
type ItemEncoding string

const (
	// EncodingPipe serializes items as key:value|key:value joined by ';'.
	EncodingPipe ItemEncoding = "pipe-delimited"
	// EncodingJSON serializes items as a JSON array of objects.
	EncodingJSON ItemEncoding = "json"
)

// Kind tags the variant a Definition was resolved from.
type Kind int

const (
	// KindBuiltin is a static, read-only template.
	KindBuiltin Kind = iota
	// KindCustom is a user mapping for a record type without sub-items.
	KindCustom
	// KindCustomOrders is a user mapping that also carries row mode and
	// item encoding.
	KindCustomOrders
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindBuiltin:
		return "builtin"
	case KindCustom:
		return "custom"
	case KindCustomOrders:
		return "custom_orders"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Column is one output column: the row key it reads and the header it prints.
type Column struct {
	Key    string `json:"key" yaml:"key"`
	Header string `json:"header" yaml:"header"`
}

// Columns is an ordered column list with unique keys.
type Columns []Column

// Keys returns the column keys in order.
func (c Columns) Keys() []string {
	keys := make([]string, len(c))
	for i, col := range c {
		keys[i] = col.Key
	}
	return keys
}

// Headers returns the display headers in order.
func (c Columns) Headers() []string {
	headers := make([]string, len(c))
	for i, col := range c {
		headers[i] = col.Header
	}
	return headers
}

// Index returns the position of key, or -1.
func (c Columns) Index(key string) int {
	for i, col := range c {
		if col.Key == key {
			return i
		}
	}
	return -1
}

// Has reports whether key is a column.
func (c Columns) Has(key string) bool {
	return c.Index(key) >= 0
}

// Clone returns a copy that can be modified independently.
func (c Columns) Clone() Columns {
	out := make(Columns, len(c))
	copy(out, c)
	return out
}

// Definition is a fully resolved format: everything the generator needs and
// nothing it has to look up.
type Definition struct {
	Kind         Kind
	Key          string
	Name         string
	RecordType   export.RecordType
	Delimiter    rune
	Enclosure    rune
	RowMode      RowMode
	ItemEncoding ItemEncoding
	Columns      Columns

	// StaticValues holds fixed cell values for custom static columns,
	// keyed by column key.
	StaticValues map[string]string
}

// IsPerSubItem reports whether rows fan out per line item.
func (d *Definition) IsPerSubItem() bool {
	return d.RecordType.HasSubItems() && d.RowMode == RowPerSubItem
}

// Validate checks the structural invariants of a resolved definition.
func (d *Definition) Validate() error {
	if d.Key == "" {
		return export.NewFormatError(d.RecordType, d.Key, "key", "key is required")
	}
	if !d.RecordType.Valid() {
		return export.NewFormatError(d.RecordType, d.Key, "record_type", "unknown record type")
	}
	if err := validateDelimiters(d.RecordType, d.Key, d.Delimiter, d.Enclosure); err != nil {
		return err
	}
	if len(d.Columns) == 0 {
		return export.NewFormatError(d.RecordType, d.Key, "columns", "at least one column is required")
	}
	seen := make(map[string]struct{}, len(d.Columns))
	for _, col := range d.Columns {
		if col.Key == "" {
			return export.NewFormatError(d.RecordType, d.Key, "columns", "column key is empty")
		}
		if _, dup := seen[col.Key]; dup {
			return export.NewFormatError(d.RecordType, d.Key, "columns", fmt.Sprintf("duplicate column %q", col.Key))
		}
		seen[col.Key] = struct{}{}
	}
	if d.RecordType.HasSubItems() {
		switch d.RowMode {
		case RowPerRecord, RowPerSubItem:
		default:
			return export.NewFormatError(d.RecordType, d.Key, "row_mode", fmt.Sprintf("unknown row mode %q", d.RowMode))
		}
		switch d.ItemEncoding {
		case EncodingPipe, EncodingJSON:
		default:
			return export.NewFormatError(d.RecordType, d.Key, "item_encoding", fmt.Sprintf("unknown item encoding %q", d.ItemEncoding))
		}
	}
	return nil
}

func validateDelimiters(t export.RecordType, key string, delimiter, enclosure rune) error {
	switch {
	case delimiter == 0 || delimiter == utf8.RuneError:
		return export.NewFormatError(t, key, "delimiter", "delimiter is required")
	case delimiter == '\r' || delimiter == '\n':
		return export.NewFormatError(t, key, "delimiter", "delimiter cannot be a line break")
	case enclosure == 0 || enclosure == utf8.RuneError:
		return export.NewFormatError(t, key, "enclosure", "enclosure is required")
	case enclosure == '\r' || enclosure == '\n':
		return export.NewFormatError(t, key, "enclosure", "enclosure cannot be a line break")
	case delimiter == enclosure:
		return export.NewFormatError(t, key, "enclosure", "delimiter and enclosure must differ")
	}
	return nil
}

// parseSingleRune turns a one-character setting into a rune, falling back
// to def when s is empty.
func parseSingleRune(s string, def rune) (rune, bool) {
	if s == "" {
		return def, true
	}
	if s == `\t` {
		return '\t', true
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, false
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, true
}
