// Package models defines the data structures shared by the fetcher, the
// normalizer and the inserter boundary.
package models

import (
	"sort"

	"github.com/samber/lo"
)

// Record is one gene entry as delivered by the source. Values are either
// scalars (string, json.Number, float64, int, bool) or []any.
type Record map[string]any

// Has reports whether the field is present.
func (r Record) Has(field string) bool {
	_, ok := r[field]

	return ok
}

// IsList reports whether the field holds an ordered sequence.
func (r Record) IsList(field string) bool {
	_, ok := r[field].([]any)

	return ok
}

// Keys returns the record's field names in sorted order.
func (r Record) Keys() []string {
	keys := lo.Keys(map[string]any(r))
	sort.Strings(keys)

	return keys
}

// Clone returns a copy whose list values are copied too, so the clone can
// be mutated without touching the original.
func (r Record) Clone() Record {
	out := make(Record, len(r))

	for k, v := range r {
		if list, ok := v.([]any); ok {
			v = append([]any(nil), list...)
		}

		out[k] = v
	}

	return out
}

// Identify returns the first present value among keys, used to name a
// record in error messages.
func (r Record) Identify(keys ...string) string {
	for _, k := range keys {
		if s, ok := r[k].(string); ok && s != "" {
			return s
		}
	}

	return ""
}

// CloneAll copies every record.
func CloneAll(records []Record) []Record {
	return lo.Map(records, func(r Record, _ int) Record {
		return r.Clone()
	})
}
