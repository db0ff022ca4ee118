package format

import (
	"strconv"

	"github.com/gosimple/slug"

	"mercator-hq/courier/pkg/export"
)

// CustomKeyPrefix prefixes every generated custom format key.
const CustomKeyPrefix = "custom-"

// GenerateKey derives a custom format key from name. The result is
// custom-<slug>; if that collides with a built-in or an existing key, -1,
// -2, ... is appended until it is free. The result depends only on the
// inputs.
func GenerateKey(t export.RecordType, name string, existing []string) string {
	taken := make(map[string]struct{}, len(existing))
	for _, k := range existing {
		taken[k] = struct{}{}
	}

	s := slug.Make(name)
	if s == "" {
		s = "format"
	}
	base := CustomKeyPrefix + s

	free := func(k string) bool {
		if IsBuiltinKey(t, k) {
			return false
		}
		_, ok := taken[k]
		return !ok
	}

	if free(base) {
		return base
	}
	for n := 1; ; n++ {
		candidate := base + "-" + strconv.Itoa(n)
		if free(candidate) {
			return candidate
		}
	}
}
