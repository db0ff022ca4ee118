package generator

import (
	"encoding/json"
	"time"

	"mercator-hq/courier/pkg/export"
	"mercator-hq/courier/pkg/export/format"
)

// Row is one generated row keyed by column key.
type Row map[string]string

// Clone returns a copy of r.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Project orders the row by cols. Missing keys become blank cells and every
// value passes through GuardCell.
func Project(row Row, cols format.Columns) []string {
	out := make([]string, len(cols))
	for i, col := range cols {
		out[i] = GuardCell(row[col.Key])
	}
	return out
}

// formatter renders typed values as cells according to Options.
type formatter struct {
	opts Options
}

func (f formatter) price(v float64) string {
	return f.opts.Price(v)
}

// priceNumber renders a price for JSON cells, keeping it numeric.
func (f formatter) priceNumber(v float64) json.Number {
	return json.Number(f.price(v))
}

func (f formatter) quantity(v float64) string {
	return f.opts.Quantity(v)
}

func (f formatter) date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	if f.opts.Location != nil {
		t = t.In(f.opts.Location)
	}
	return t.Format(f.opts.DateFormat)
}

func boolCell(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func addAddress(row Row, prefix string, a export.Address) {
	row[prefix+"_first_name"] = a.FirstName
	row[prefix+"_last_name"] = a.LastName
	row[prefix+"_full_name"] = a.FullName()
	row[prefix+"_company"] = a.Company
	row[prefix+"_address_1"] = a.Address1
	row[prefix+"_address_2"] = a.Address2
	row[prefix+"_postcode"] = a.Postcode
	row[prefix+"_city"] = a.City
	row[prefix+"_state"] = a.State
	row[prefix+"_state_code"] = a.StateCode
	row[prefix+"_country"] = a.Country
	if prefix == "billing" {
		row[prefix+"_email"] = a.Email
		row[prefix+"_phone"] = a.Phone
	}
}

func addMeta(row Row, meta map[string]string) {
	for k, v := range meta {
		row[format.MetaColumnKey(k)] = v
	}
}

func addStatic(row Row, def *format.Definition) {
	for k, v := range def.StaticValues {
		row[k] = v
	}
}
