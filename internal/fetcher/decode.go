package fetcher

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/samber/lo"

	"hgncmap/internal/models"
	"hgncmap/pkg/utils"
)

// Decoding errors.
var (
	ErrDocsPathNotFound = errors.New("docs path not found")
	ErrDocsNotArray     = errors.New("docs path does not hold an array")
	ErrDocNotObject     = errors.New("document is not an object")
	ErrMissingHeader    = errors.New("tabular file has no header row")
)

// TabularOptions controls how tab-separated cells become values.
type TabularOptions struct {
	// ListSeparator splits cells of ListColumns into lists.
	ListSeparator string
	ListColumns   []string
}

// DecodeStructured reads a JSON document and returns the records found at
// docsPath, a dot-separated path such as "response.docs". Numbers are kept
// as json.Number so identifiers survive without float formatting.
func DecodeStructured(r io.Reader, docsPath string) ([]models.Record, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}

	node, err := navigatePath(raw, docsPath)
	if err != nil {
		return nil, err
	}

	docs, ok := node.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDocsNotArray, docsPath)
	}

	records := make([]models.Record, 0, len(docs))

	for i, doc := range docs {
		obj, ok := doc.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: index %d", ErrDocNotObject, i)
		}

		records = append(records, models.Record(obj))
	}

	return records, nil
}

// navigatePath walks a dot-separated path into nested objects.
func navigatePath(data any, path string) (any, error) {
	if path == "" {
		return data, nil
	}

	current := data

	for _, part := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s (at %q)", ErrDocsPathNotFound, path, part)
		}

		current, ok = obj[part]
		if !ok {
			return nil, fmt.Errorf("%w: %s (at %q)", ErrDocsPathNotFound, path, part)
		}
	}

	return current, nil
}

// DecodeTabular reads a tab-separated file whose first row names the
// columns. Empty cells are left out so records stay sparse.
func DecodeTabular(r io.Reader, opts TabularOptions) ([]models.Record, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrMissingHeader
	}

	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	strs := utils.NewStringHelper()

	for i, h := range headers {
		headers[i] = strs.NormalizeWhitespace(h)
	}

	var records []models.Record

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(records)+1, err)
		}

		rec := make(models.Record, len(headers))

		for j, h := range headers {
			if j >= len(row) || row[j] == "" {
				continue
			}

			rec[h] = tabularValue(h, row[j], opts)
		}

		records = append(records, rec)
	}

	return records, nil
}

func tabularValue(column, cell string, opts TabularOptions) any {
	if opts.ListSeparator == "" || !lo.Contains(opts.ListColumns, column) {
		return cell
	}

	parts := strings.Split(cell, opts.ListSeparator)

	return lo.Map(parts, func(p string, _ int) any {
		return strings.TrimSpace(p)
	})
}
