package hgnc

import (
	"context"
	"errors"
	"fmt"

	"hgncmap/internal/fetcher"
	"hgncmap/internal/logger"
	"hgncmap/internal/mapping"
	"hgncmap/internal/models"
	"hgncmap/internal/normalizer"
)

// ErrNoFetcher is returned when NewMapper is called without a fetcher.
var ErrNoFetcher = errors.New("fetcher is required")

// Fetcher is the capability the mapper consumes.
type Fetcher interface {
	Fetch(ctx context.Context, item string, enc fetcher.Encoding) ([]models.Record, error)
}

// Options configures NewMapper. Zero values select the HGNC defaults.
type Options struct {
	Logger *logger.Logger
	// Table overrides the built-in mapping table.
	Table *mapping.Table
	// Item defaults to ItemCompleteSet.
	Item                 string
	ContinueOnDataErrors bool
	StrictKeys           bool
}

// Mapper holds one loaded, cleaned HGNC item and its mapping definition.
// Both are computed once in NewMapper and never change afterwards.
type Mapper struct {
	definition models.MappingDefinition
	records    []models.Record
	rejected   []error
}

// NewMapper fetches the item in its structured encoding, cleans it and
// builds the mapping definition. A fetch failure is returned as is; no
// mapper is built from missing data.
func NewMapper(ctx context.Context, f Fetcher, opts Options) (*Mapper, error) {
	if f == nil {
		return nil, ErrNoFetcher
	}

	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}

	if opts.Item == "" {
		opts.Item = ItemCompleteSet
	}

	table := Table()
	if opts.Table != nil {
		table = *opts.Table
	}

	table.StrictKeys = table.StrictKeys || opts.StrictKeys

	proc, err := normalizer.NewProcessor(RuleSet(), normalizer.Options{
		Logger:               opts.Logger,
		ContinueOnDataErrors: opts.ContinueOnDataErrors,
	})
	if err != nil {
		return nil, err
	}

	records, err := f.Fetch(ctx, opts.Item, fetcher.Structured)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", opts.Item, err)
	}

	result, err := proc.Process(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("normalize %s: %w", opts.Item, err)
	}

	def, err := mapping.Build(table, result.SupportedKeys, result.ListValuedKeys)
	if err != nil {
		return nil, err
	}

	if missing := mapping.Missing(table, def.SupportedKeys); len(missing) > 0 {
		opts.Logger.Warn("mapping table references fields absent from the data", "fields", missing)
	}

	opts.Logger.Info("mapper ready",
		"item", opts.Item,
		"records", len(result.Records),
		"rejected", len(result.Rejected),
		"supported_keys", len(def.SupportedKeys),
		"list_valued_keys", len(def.ListValuedKeys),
	)

	return &Mapper{
		definition: def,
		records:    result.Records,
		rejected:   result.Rejected,
	}, nil
}

// MapperData returns the cleaned records.
func (m *Mapper) MapperData() []models.Record {
	return m.records
}

// MapperDefinition returns a copy of the mapping definition.
func (m *Mapper) MapperDefinition() models.MappingDefinition {
	return m.definition.Clone()
}

// Rejected returns the data-quality errors of records dropped while
// loading with ContinueOnDataErrors.
func (m *Mapper) Rejected() []error {
	return append([]error(nil), m.rejected...)
}
