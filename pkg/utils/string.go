package utils

import (
	"fmt"
	"strings"
)

// StringHelper provides string utility functions.
type StringHelper struct{}

// NewStringHelper creates a new string helper.
func NewStringHelper() *StringHelper {
	return &StringHelper{}
}

// NormalizeWhitespace replaces multiple whitespace with single space.
func (s *StringHelper) NormalizeWhitespace(str string) string {
	return strings.Join(strings.Fields(str), " ")
}

// TruncateString truncates string to max length.
func (s *StringHelper) TruncateString(str string, maxLength int) string {
	if len(str) <= maxLength {
		return str
	}

	return str[:maxLength] + "..."
}

// Preview renders an arbitrary field value for an error message, cut to
// maxLength.
func (s *StringHelper) Preview(v any, maxLength int) string {
	return s.TruncateString(fmt.Sprintf("%#v", v), maxLength)
}
