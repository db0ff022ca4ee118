package generator

import (
	"strconv"
	"time"
)

// DefaultDateFormat is the layout used for dates when Options leaves it blank.
const DefaultDateFormat = "2006-01-02 15:04:05"

// Options are the export settings the generator needs. They are built once
// from configuration and passed in explicitly.
type Options struct {
	// PriceDecimals is the number of decimals for monetary values.
	PriceDecimals int `yaml:"price_decimals" json:"price_decimals" validate:"min=0,max=8"`

	// DateFormat is a Go time layout for dates.
	DateFormat string `yaml:"date_format" json:"date_format"`

	// Location converts dates before formatting. Nil keeps them as stored.
	Location *time.Location `yaml:"-" json:"-"`
}

// DefaultOptions returns options with two price decimals and the default
// date layout.
func DefaultOptions() Options {
	return Options{
		PriceDecimals: 2,
		DateFormat:    DefaultDateFormat,
	}
}

func (o Options) withDefaults() Options {
	if o.DateFormat == "" {
		o.DateFormat = DefaultDateFormat
	}
	if o.PriceDecimals < 0 {
		o.PriceDecimals = 2
	}
	return o
}

// Price renders a monetary value with PriceDecimals decimals.
func (o Options) Price(v float64) string {
	return strconv.FormatFloat(v, 'f', o.PriceDecimals, 64)
}

// Quantity renders a quantity without trailing zeros.
func (o Options) Quantity(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
