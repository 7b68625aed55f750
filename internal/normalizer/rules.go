// Package normalizer cleans raw records so they fit the downstream key
// grammar and carry uniformly typed identifier fields.
package normalizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cast"

	"hgncmap/internal/models"
	"hgncmap/pkg/utils"
)

const previewLength = 60

// Rule errors. They describe bad data and are reported as data-quality
// failures by the Processor.
var (
	ErrNilValue            = errors.New("value is null")
	ErrUnsupportedValue    = errors.New("value cannot be converted to a string")
	ErrNotAList            = errors.New("value is not a list")
	ErrUnexpectedList      = errors.New("value is a list, expected a scalar")
	ErrNotAString          = errors.New("value is not a string")
	ErrMissingDelimiter    = errors.New("compound token has no delimiter")
	ErrMultipleDelimiters  = errors.New("compound token has more than one delimiter")
	ErrEmptyTokenPart      = errors.New("compound token has an empty prefix or identifier")
	ErrMalformedIdentifier = errors.New("identifier does not match the expected pattern")
)

// Rule rewrites one field of a record. Rules only act when their field is
// present and leave an already normalized value unchanged.
type Rule interface {
	Field() string
	Apply(rec models.Record) error
}

// stringify renders a scalar the way identifiers are written in the source.
func stringify(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", ErrNilValue
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case []any, map[string]any:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedValue, preview(v))
	}

	s, err := cast.ToStringE(v)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedValue, err)
	}

	return s, nil
}

func preview(v any) string {
	return utils.NewStringHelper().Preview(v, previewLength)
}

// ListStringifier turns every element of a list field into a string,
// keeping order and length.
type ListStringifier struct {
	Name string
}

// Field implements Rule.
func (r ListStringifier) Field() string { return r.Name }

// Apply implements Rule.
func (r ListStringifier) Apply(rec models.Record) error {
	v, ok := rec[r.Name]
	if !ok {
		return nil
	}

	var list []any

	switch t := v.(type) {
	case []any:
		list = t
	case []string:
		list = make([]any, len(t))
		for i, s := range t {
			list[i] = s
		}
	default:
		return fmt.Errorf("%w: %s", ErrNotAList, preview(v))
	}

	out := make([]any, len(list))

	for i, elem := range list {
		s, err := stringify(elem)
		if err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}

		out[i] = s
	}

	rec[r.Name] = out

	return nil
}

// ScalarStringifier turns a non-string scalar field into a string.
type ScalarStringifier struct {
	Name string
}

// Field implements Rule.
func (r ScalarStringifier) Field() string { return r.Name }

// Apply implements Rule.
func (r ScalarStringifier) Apply(rec models.Record) error {
	v, ok := rec[r.Name]
	if !ok {
		return nil
	}

	if _, isList := v.([]any); isList {
		return ErrUnexpectedList
	}

	s, err := stringify(v)
	if err != nil {
		return err
	}

	rec[r.Name] = s

	return nil
}

// CompoundTokenExtractor keeps the identifier of a "prefix<delim>identifier"
// token. A value without the delimiter is accepted only when it already
// matches Pattern, which is what a second pass over clean data sees.
type CompoundTokenExtractor struct {
	Pattern   *regexp.Regexp
	Name      string
	Delimiter string
}

// NewCompoundTokenExtractor builds an extractor splitting on ":" and
// validating identifiers against pattern (may be empty).
func NewCompoundTokenExtractor(field, pattern string) (CompoundTokenExtractor, error) {
	r := CompoundTokenExtractor{Name: field, Delimiter: ":"}

	if pattern != "" {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return r, fmt.Errorf("identifier pattern for %s: %w", field, err)
		}

		r.Pattern = re
	}

	return r, nil
}

// Field implements Rule.
func (r CompoundTokenExtractor) Field() string { return r.Name }

// Apply implements Rule.
func (r CompoundTokenExtractor) Apply(rec models.Record) error {
	v, ok := rec[r.Name]
	if !ok {
		return nil
	}

	s, ok := v.(string)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotAString, preview(v))
	}

	delim := r.Delimiter
	if delim == "" {
		delim = ":"
	}

	parts := strings.Split(s, delim)

	switch len(parts) {
	case 1:
		if r.Pattern != nil && r.Pattern.MatchString(s) {
			return nil
		}

		return fmt.Errorf("%w: %q", ErrMissingDelimiter, s)
	case 2:
	default:
		return fmt.Errorf("%w: %q", ErrMultipleDelimiters, s)
	}

	prefix, id := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	if prefix == "" || id == "" {
		return fmt.Errorf("%w: %q", ErrEmptyTokenPart, s)
	}

	if r.Pattern != nil && !r.Pattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrMalformedIdentifier, id)
	}

	rec[r.Name] = id

	return nil
}
