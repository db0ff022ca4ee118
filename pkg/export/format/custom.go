package format

import (
	"time"

	"mercator-hq/courier/pkg/export"
)

// Source tells a mapping entry where its cell value comes from.
type Source string

const (
	// SourceField reads a first-class record field.
	SourceField Source = "field"
	// SourceMeta reads a key from the record's metadata bag.
	SourceMeta Source = "meta"
	// SourceStatic writes the same literal value on every row.
	SourceStatic Source = "static"
)

// MappingEntry is one user-configured column of a custom format.
type MappingEntry struct {
	Source Source `yaml:"source" json:"source" validate:"required,oneof=field meta static"`

	// Value is the field name, the meta key, or the static cell value,
	// depending on Source.
	Value string `yaml:"value" json:"value" validate:"required_unless=Source static"`

	// Name is the display header. Static columns key on it, so it is
	// required for them.
	Name string `yaml:"name,omitempty" json:"name,omitempty" validate:"required_if=Source static"`
}

// ColumnKey derives the row key this entry populates.
func (e MappingEntry) ColumnKey() string {
	switch e.Source {
	case SourceMeta:
		return MetaColumnKey(e.Value)
	case SourceStatic:
		return e.Name
	default:
		return e.Value
	}
}

// Header returns the display header, defaulting to the column key.
func (e MappingEntry) Header() string {
	if e.Name != "" {
		return e.Name
	}
	return e.ColumnKey()
}

// CustomFormat is a user-authored format as persisted by a Store. It becomes
// a Definition only after column resolution.
type CustomFormat struct {
	Key        string            `yaml:"key" json:"key" validate:"required,max=200"`
	Name       string            `yaml:"name" json:"name" validate:"required,max=200"`
	RecordType export.RecordType `yaml:"record_type" json:"record_type" validate:"required,oneof=orders customers"`
	Delimiter  string            `yaml:"delimiter,omitempty" json:"delimiter,omitempty"`
	Enclosure  string            `yaml:"enclosure,omitempty" json:"enclosure,omitempty"`

	// RowMode and ItemEncoding apply to orders only.
	RowMode      RowMode      `yaml:"row_mode,omitempty" json:"row_mode,omitempty" validate:"omitempty,oneof=one-row-per-record one-row-per-subitem"`
	ItemEncoding ItemEncoding `yaml:"item_encoding,omitempty" json:"item_encoding,omitempty" validate:"omitempty,oneof=pipe-delimited json"`

	Mapping        []MappingEntry `yaml:"mapping" json:"mapping" validate:"required_without=IncludeAllMeta,dive"`
	IncludeAllMeta bool           `yaml:"include_all_meta,omitempty" json:"include_all_meta,omitempty"`

	UpdatedAt time.Time `yaml:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// Kind returns the variant this custom format resolves to.
func (c *CustomFormat) Kind() Kind {
	if c.RecordType.HasSubItems() {
		return KindCustomOrders
	}
	return KindCustom
}

// StaticValues returns the fixed cell values of static columns.
func (c *CustomFormat) StaticValues() map[string]string {
	var out map[string]string
	for _, e := range c.Mapping {
		if e.Source != SourceStatic {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[e.ColumnKey()] = e.Value
	}
	return out
}

// Clone returns a deep copy.
func (c *CustomFormat) Clone() *CustomFormat {
	cp := *c
	cp.Mapping = append([]MappingEntry(nil), c.Mapping...)
	return &cp
}

// definition builds the resolved Definition for the given columns.
func (c *CustomFormat) definition(columns Columns) (*Definition, error) {
	delimiter, ok := parseSingleRune(c.Delimiter, ',')
	if !ok {
		return nil, export.NewFormatError(c.RecordType, c.Key, "delimiter", "delimiter must be a single character")
	}
	enclosure, ok := parseSingleRune(c.Enclosure, '"')
	if !ok {
		return nil, export.NewFormatError(c.RecordType, c.Key, "enclosure", "enclosure must be a single character")
	}

	def := &Definition{
		Kind:         c.Kind(),
		Key:          c.Key,
		Name:         c.Name,
		RecordType:   c.RecordType,
		Delimiter:    delimiter,
		Enclosure:    enclosure,
		Columns:      columns,
		StaticValues: c.StaticValues(),
	}
	if def.Kind == KindCustomOrders {
		def.RowMode = c.RowMode
		if def.RowMode == "" {
			def.RowMode = RowPerRecord
		}
		def.ItemEncoding = c.ItemEncoding
		if def.ItemEncoding == "" {
			def.ItemEncoding = EncodingPipe
		}
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}
