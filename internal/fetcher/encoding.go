// Package fetcher downloads HGNC items from a remote file server, keeps a
// local cache of them and decodes them into records.
package fetcher

import (
	"errors"
	"fmt"

	"hgncmap/internal/config"
)

// ErrUnknownEncoding is returned when an encoding name cannot be parsed.
var ErrUnknownEncoding = errors.New("unknown encoding")

// Encoding is the serialization an item is retrieved in.
type Encoding int

// Supported encodings.
const (
	// Tabular is the row-oriented tab-separated file.
	Tabular Encoding = iota
	// Structured is the nested JSON document.
	Structured
)

// ParseEncoding accepts the encoding names used in config files and flags.
func ParseEncoding(s string) (Encoding, error) {
	switch config.EncodingKind(s) {
	case "tabular":
		return Tabular, nil
	case "structured":
		return Structured, nil
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownEncoding, s)
}

// Ext is the file extension used both remotely and in the cache.
func (e Encoding) Ext() string {
	if e == Structured {
		return "json"
	}

	return "txt"
}

// Dir is the remote directory holding files of this encoding.
func (e Encoding) Dir() string {
	if e == Structured {
		return "json"
	}

	return "tsv"
}

// String implements fmt.Stringer.
func (e Encoding) String() string {
	if e == Structured {
		return "structured"
	}

	return "tabular"
}
