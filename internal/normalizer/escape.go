package normalizer

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"hgncmap/internal/models"
)

// Escaping errors.
var (
	ErrDuplicateRename = errors.New("two keys are renamed to the same target")
	ErrUnsafeRename    = errors.New("rename target is not a safe key")
	ErrKeyCollision    = errors.New("escaped key collides with another key")
	ErrRenameChain     = errors.New("rename target is itself renamed")
)

// IsSafeKey reports whether key fits the downstream store's key grammar:
// no dots, no NUL bytes and no leading '$'.
func IsSafeKey(key string) bool {
	return !strings.ContainsAny(key, ".\x00") && !strings.HasPrefix(key, "$")
}

// KeyEscaper renames keys the downstream store cannot hold. Declared
// renames win; any other unsafe key has each offending character replaced
// with '_'.
type KeyEscaper struct {
	renames map[string]string
}

// NewKeyEscaper validates the declared rename table.
func NewKeyEscaper(renames map[string]string) (*KeyEscaper, error) {
	seen := make(map[string]string, len(renames))
	table := make(map[string]string, len(renames))

	for _, from := range sortedKeys(renames) {
		to := renames[from]

		if !IsSafeKey(to) || to == "" {
			return nil, fmt.Errorf("%w: %q -> %q", ErrUnsafeRename, from, to)
		}

		if other, dup := seen[to]; dup {
			return nil, fmt.Errorf("%w: %q and %q -> %q", ErrDuplicateRename, other, from, to)
		}

		if _, chained := renames[to]; chained && to != from {
			return nil, fmt.Errorf("%w: %q -> %q -> %q", ErrRenameChain, from, to, renames[to])
		}

		seen[to] = from
		table[from] = to
	}

	return &KeyEscaper{renames: table}, nil
}

// Escape returns the safe form of key.
func (e *KeyEscaper) Escape(key string) string {
	if to, ok := e.renames[key]; ok {
		return to
	}

	if IsSafeKey(key) {
		return key
	}

	escaped := strings.NewReplacer(".", "_", "\x00", "_").Replace(key)
	if strings.HasPrefix(escaped, "$") {
		escaped = "_" + escaped[1:]
	}

	return escaped
}

// Plan maps every key to its escaped form and fails if two distinct keys
// would end up with the same name.
func (e *KeyEscaper) Plan(keys []string) (map[string]string, error) {
	plan := make(map[string]string, len(keys))
	owner := make(map[string]string, len(keys))

	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	for _, key := range sorted {
		if _, done := plan[key]; done {
			continue
		}

		escaped := e.Escape(key)

		if other, taken := owner[escaped]; taken {
			return nil, fmt.Errorf("%w: %q and %q -> %q", ErrKeyCollision, other, key, escaped)
		}

		owner[escaped] = key
		plan[key] = escaped
	}

	return plan, nil
}

// Apply renames the keys of rec according to plan, keeping values. The
// renamed record is built apart from rec so a target that is also a source
// key never overwrites a value that has not moved yet.
func (e *KeyEscaper) Apply(rec models.Record, plan map[string]string) {
	out := make(models.Record, len(rec))

	for key, value := range rec {
		to, ok := plan[key]
		if !ok {
			to = e.Escape(key)
		}

		out[to] = value
	}

	clear(rec)

	for key, value := range out {
		rec[key] = value
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
