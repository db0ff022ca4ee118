package generator

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Pipe encoding reserved characters.
const (
	pairSep  = ':'
	fieldSep = '|'
	itemSep  = ';'
	escape   = '\\'
)

// Pair is one key/value of a pipe-encoded item.
type Pair struct {
	Key   string
	Value string
}

// Item is one sub-item as an ordered list of pairs.
type Item []Pair

// Get returns the value of key, or "".
func (it Item) Get(key string) string {
	for _, p := range it {
		if p.Key == key {
			return p.Value
		}
	}
	return ""
}

var pipeEscaper = strings.NewReplacer(
	`\`, `\\`,
	`:`, `\:`,
	`|`, `\|`,
	`;`, `\;`,
)

// EscapePipe backslash-escapes the reserved characters \ : | ;.
func EscapePipe(s string) string {
	return pipeEscaper.Replace(s)
}

// EncodePipeItem encodes one item as key:value|key:value.
func EncodePipeItem(item Item) string {
	var b strings.Builder
	for i, p := range item {
		if i > 0 {
			b.WriteByte(fieldSep)
		}
		b.WriteString(EscapePipe(p.Key))
		b.WriteByte(pairSep)
		b.WriteString(EscapePipe(p.Value))
	}
	return b.String()
}

// EncodePipe encodes items joined by ';'. No items encode as "".
func EncodePipe(items []Item) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = EncodePipeItem(it)
	}
	return strings.Join(parts, string(itemSep))
}

// DecodePipe parses the output of EncodePipe.
func DecodePipe(s string) ([]Item, error) {
	if s == "" {
		return nil, nil
	}

	var (
		items   []Item
		item    Item
		buf     strings.Builder
		key     string
		haveKey bool
		escaped bool
	)

	endPair := func() error {
		if !haveKey {
			return fmt.Errorf("pair %q has no key separator", buf.String())
		}
		item = append(item, Pair{Key: key, Value: buf.String()})
		buf.Reset()
		key, haveKey = "", false
		return nil
	}

	for _, r := range s {
		if escaped {
			buf.WriteRune(r)
			escaped = false
			continue
		}
		switch r {
		case escape:
			escaped = true
		case pairSep:
			if haveKey {
				return nil, fmt.Errorf("unescaped %q in value", pairSep)
			}
			key, haveKey = buf.String(), true
			buf.Reset()
		case fieldSep:
			if err := endPair(); err != nil {
				return nil, err
			}
		case itemSep:
			if err := endPair(); err != nil {
				return nil, err
			}
			items = append(items, item)
			item = nil
		default:
			buf.WriteRune(r)
		}
	}
	if escaped {
		return nil, fmt.Errorf("dangling escape at end of input")
	}
	if err := endPair(); err != nil {
		return nil, err
	}
	return append(items, item), nil
}

var lineCollapser = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// collapseLines replaces embedded line breaks with spaces so free text
// cannot break row boundaries.
func collapseLines(s string) string {
	return lineCollapser.Replace(s)
}

// encodeJSON renders v as a JSON cell. Empty collections are blank.
func encodeJSON(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	if string(b) == "null" || string(b) == "[]" {
		return ""
	}
	return string(b)
}
