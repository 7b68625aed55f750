// Package mapping builds the mapping definition handed to the ingestion
// pipeline: canonical key, key synonyms, disjoint keys and the MIRIAM
// namespace table, plus the key sets derived from cleaned records.
package mapping

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Table errors. All of them are configuration failures.
var (
	ErrMissingName       = errors.New("mapping table has no name")
	ErrMissingMainKey    = errors.New("mapping table has no main key")
	ErrEmptyEntry        = errors.New("mapping table has an empty entry")
	ErrSelfSynonym       = errors.New("synonym maps a key to itself")
	ErrSynonymChain      = errors.New("synonym target is itself an alias")
	ErrDuplicateDisjoint = errors.New("disjoint key listed twice")
	ErrDisjointTooShort  = errors.New("disjoint needs at least two keys")
	ErrUnknownField      = errors.New("mapping table references fields no record has")
)

// Table is the per-dataset domain knowledge behind a mapping definition.
// It is supplied verbatim, never inferred from data.
type Table struct {
	KeySynonyms   map[string]string `yaml:"key_synonyms"`
	MiriamMapping map[string]string `yaml:"miriam_mapping"`
	Name          string            `yaml:"name"`
	MapperData    string            `yaml:"mapper_data"`
	MainKey       string            `yaml:"main_key"`
	Disjoint      []string          `yaml:"disjoint"`
	// StrictKeys makes Build fail when the table names a field that no
	// cleaned record carries.
	StrictKeys bool `yaml:"strict_keys"`
}

// LoadTable reads a YAML table and validates it.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping table: %w", err)
	}

	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse mapping table: %w", err)
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}

	return &t, nil
}

// Validate checks the table's internal consistency.
func (t *Table) Validate() error {
	if t.Name == "" {
		return ErrMissingName
	}

	if t.MainKey == "" {
		return ErrMissingMainKey
	}

	for _, alias := range sortedKeys(t.KeySynonyms) {
		canonical := t.KeySynonyms[alias]

		switch {
		case alias == "" || canonical == "":
			return fmt.Errorf("%w: key_synonyms %q -> %q", ErrEmptyEntry, alias, canonical)
		case alias == canonical:
			return fmt.Errorf("%w: %q", ErrSelfSynonym, alias)
		}

		if _, chained := t.KeySynonyms[canonical]; chained {
			return fmt.Errorf("%w: %q -> %q", ErrSynonymChain, alias, canonical)
		}
	}

	for _, token := range sortedKeys(t.MiriamMapping) {
		if token == "" || t.MiriamMapping[token] == "" {
			return fmt.Errorf("%w: miriam_mapping %q -> %q", ErrEmptyEntry, token, t.MiriamMapping[token])
		}
	}

	if len(t.Disjoint) == 1 {
		return fmt.Errorf("%w: %v", ErrDisjointTooShort, t.Disjoint)
	}

	seen := make(map[string]bool, len(t.Disjoint))

	for _, key := range t.Disjoint {
		if key == "" {
			return fmt.Errorf("%w: disjoint", ErrEmptyEntry)
		}

		if seen[key] {
			return fmt.Errorf("%w: %q", ErrDuplicateDisjoint, key)
		}

		seen[key] = true
	}

	return nil
}

// ReferencedFields lists every record field the table points at: the main
// key, synonym targets, MIRIAM fields and disjoint keys.
func (t *Table) ReferencedFields() []string {
	set := map[string]struct{}{t.MainKey: {}}

	for _, canonical := range t.KeySynonyms {
		set[canonical] = struct{}{}
	}

	for _, field := range t.MiriamMapping {
		set[field] = struct{}{}
	}

	for _, key := range t.Disjoint {
		set[key] = struct{}{}
	}

	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}

	sort.Strings(out)

	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
