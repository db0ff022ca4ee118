package generator

import (
	"bufio"
	"encoding/csv"
	"io"
	"strings"
)

// BOM is the UTF-8 byte order mark a job writes at the start of its file.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// GuardCell neutralizes spreadsheet formula injection by prefixing values
// that start with =, +, - or @ with a single quote.
func GuardCell(v string) string {
	if v == "" {
		return v
	}
	switch v[0] {
	case '=', '+', '-', '@':
		return "'" + v
	}
	return v
}

// rowWriter writes one CSV record per call.
type rowWriter interface {
	Write(record []string) error
	Flush()
	Error() error
}

// newRowWriter returns a writer for the given delimiter and enclosure. The
// common double-quote enclosure goes through encoding/csv; any other
// enclosure character uses the same quoting rules with that character.
func newRowWriter(w io.Writer, delimiter, enclosure rune) rowWriter {
	if enclosure == '"' {
		cw := csv.NewWriter(w)
		cw.Comma = delimiter
		return cw
	}
	return &enclosureWriter{
		w:         bufio.NewWriter(w),
		delimiter: delimiter,
		enclosure: enclosure,
	}
}

// enclosureWriter is an RFC 4180 writer with a configurable enclosure.
// Fields containing the delimiter, the enclosure, a line break or leading
// whitespace are enclosed, and enclosure characters are doubled.
type enclosureWriter struct {
	w         *bufio.Writer
	delimiter rune
	enclosure rune
	err       error
}

func (e *enclosureWriter) Write(record []string) error {
	if e.err != nil {
		return e.err
	}
	for i, field := range record {
		if i > 0 {
			if _, e.err = e.w.WriteRune(e.delimiter); e.err != nil {
				return e.err
			}
		}
		if !e.needsEnclosure(field) {
			if _, e.err = e.w.WriteString(field); e.err != nil {
				return e.err
			}
			continue
		}
		if _, e.err = e.w.WriteRune(e.enclosure); e.err != nil {
			return e.err
		}
		for _, r := range field {
			if r == e.enclosure {
				if _, e.err = e.w.WriteRune(e.enclosure); e.err != nil {
					return e.err
				}
			}
			if _, e.err = e.w.WriteRune(r); e.err != nil {
				return e.err
			}
		}
		if _, e.err = e.w.WriteRune(e.enclosure); e.err != nil {
			return e.err
		}
	}
	_, e.err = e.w.WriteRune('\n')
	return e.err
}

func (e *enclosureWriter) needsEnclosure(field string) bool {
	if field == "" {
		return false
	}
	if field[0] == ' ' || field[0] == '\t' {
		return true
	}
	return strings.ContainsRune(field, e.delimiter) ||
		strings.ContainsRune(field, e.enclosure) ||
		strings.ContainsAny(field, "\r\n")
}

func (e *enclosureWriter) Flush() {
	if e.err == nil {
		e.err = e.w.Flush()
	}
}

func (e *enclosureWriter) Error() error {
	return e.err
}
