package format

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"sync"

	"mercator-hq/courier/pkg/export"
)

// maxCachedResolutions bounds the mapper cache. Past it the cache is reset.
const maxCachedResolutions = 256

// MetaKeysFunc discovers the metadata keys currently present for a record type.
type MetaKeysFunc func() ([]string, error)

// Mapper turns a custom format's mapping into concrete columns. Results are
// memoized by a fingerprint of the mapping and the meta-key snapshot, so an
// edited mapping or a changed key universe always resolves afresh.
type Mapper struct {
	mu    sync.Mutex
	cache map[string]Columns
}

// NewMapper creates an empty mapper.
func NewMapper() *Mapper {
	return &Mapper{cache: make(map[string]Columns)}
}

// ResolveColumns returns the ordered columns of cf. Explicit mapping entries
// come first in mapping order. When IncludeAllMeta is set, every discovered
// meta key follows in ascending order unless it is already mapped explicitly
// or backs a dedicated field. discover is only called when IncludeAllMeta is
// set and may be nil otherwise.
func (m *Mapper) ResolveColumns(cf *CustomFormat, discover MetaKeysFunc) (Columns, error) {
	var metaKeys []string
	if cf.IncludeAllMeta && discover != nil {
		keys, err := discover()
		if err != nil {
			return nil, err
		}
		metaKeys = append([]string(nil), keys...)
		sort.Strings(metaKeys)
	}

	fp := fingerprint(cf, metaKeys)

	m.mu.Lock()
	if cols, ok := m.cache[fp]; ok {
		m.mu.Unlock()
		return cols.Clone(), nil
	}
	m.mu.Unlock()

	cols, err := resolve(cf, metaKeys)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if len(m.cache) >= maxCachedResolutions {
		m.cache = make(map[string]Columns)
	}
	m.cache[fp] = cols
	m.mu.Unlock()

	return cols.Clone(), nil
}

func resolve(cf *CustomFormat, metaKeys []string) (Columns, error) {
	cols := make(Columns, 0, len(cf.Mapping)+len(metaKeys))
	seen := make(map[string]struct{}, len(cf.Mapping))
	explicitMeta := make(map[string]struct{})

	for _, entry := range cf.Mapping {
		key := entry.ColumnKey()
		if _, dup := seen[key]; dup {
			return nil, export.NewFormatError(cf.RecordType, cf.Key, "mapping", "duplicate column "+key)
		}
		seen[key] = struct{}{}
		if entry.Source == SourceMeta {
			explicitMeta[entry.Value] = struct{}{}
		}
		cols = append(cols, Column{Key: key, Header: entry.Header()})
	}

	for _, metaKey := range metaKeys {
		if metaKey == "" {
			continue
		}
		if _, ok := explicitMeta[metaKey]; ok {
			continue
		}
		if IsDedicatedMetaKey(cf.RecordType, metaKey) {
			continue
		}
		key := MetaColumnKey(metaKey)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		cols = append(cols, Column{Key: key, Header: key})
	}

	return cols, nil
}

func fingerprint(cf *CustomFormat, metaKeys []string) string {
	payload := struct {
		RecordType     export.RecordType `json:"t"`
		Mapping        []MappingEntry    `json:"m"`
		IncludeAllMeta bool              `json:"a"`
		MetaKeys       []string          `json:"k"`
	}{cf.RecordType, cf.Mapping, cf.IncludeAllMeta, metaKeys}

	// Marshal of plain strings and bools cannot fail.
	b, _ := json.Marshal(payload)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
