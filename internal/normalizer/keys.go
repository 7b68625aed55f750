package normalizer

import (
	"sort"

	"hgncmap/internal/models"
)

// DeriveKeySets returns the union of field names across records and the
// subset of names holding a list in at least one record. Both are sorted.
func DeriveKeySets(records []models.Record) (supported, listValued []string) {
	all := make(map[string]struct{})
	lists := make(map[string]struct{})

	for _, rec := range records {
		for key, value := range rec {
			all[key] = struct{}{}

			if _, ok := value.([]any); ok {
				lists[key] = struct{}{}
			}
		}
	}

	return setToSorted(all), setToSorted(lists)
}

// rawKeys returns every distinct field name across records.
func rawKeys(records []models.Record) []string {
	all := make(map[string]struct{})

	for _, rec := range records {
		for key := range rec {
			all[key] = struct{}{}
		}
	}

	return setToSorted(all)
}

func setToSorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}

	sort.Strings(out)

	return out
}
