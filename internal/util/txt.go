package util

import (
	"sort"
	"strings"
)

// EncodeTXT flattens TXT attributes into the "key=value" strings the
// mDNS libraries expect. Keys are emitted in sorted order so repeated
// advertisements produce identical records.
func EncodeTXT(attrs map[string]string) []string {
	if len(attrs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+attrs[k])
	}
	return pairs
}

// DecodeTXT parses "key=value" TXT strings back into a map. A string
// without "=" becomes a boolean-style key with an empty value; a later
// duplicate key wins. Empty input yields nil.
func DecodeTXT(pairs []string) map[string]string {
	if len(pairs) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(pairs))
	for _, p := range pairs {
		if p == "" {
			continue
		}
		k, v, _ := strings.Cut(p, "=")
		attrs[k] = v
	}
	if len(attrs) == 0 {
		return nil
	}
	return attrs
}
