package normalizer

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"hgncmap/internal/failure"
	"hgncmap/internal/logger"
	"hgncmap/internal/models"
)

// Rule set errors.
var (
	ErrDuplicateRule = errors.New("field has more than one rule")
	ErrRuleOnRawKey  = errors.New("rule targets a key that is renamed before rules run")
	ErrEmptyField    = errors.New("rule has no field")
)

var tracer = otel.Tracer("hgncmap/internal/normalizer")

// RuleSet is the per-dataset cleaning table.
type RuleSet struct {
	// Renames maps unsafe source keys to their safe names.
	Renames map[string]string
	// Rules act on escaped field names.
	Rules []Rule
	// IdentityKeys name a record in error messages, first present wins.
	IdentityKeys []string
}

// Options tunes a Processor.
type Options struct {
	Logger *logger.Logger
	// ContinueOnDataErrors drops records that fail a rule instead of
	// failing the whole pass. Dropped records are logged and returned in
	// Result.Rejected.
	ContinueOnDataErrors bool
}

// Result is the outcome of a cleaning pass.
type Result struct {
	// Renamed lists the keys that were actually escaped, raw -> safe.
	Renamed        map[string]string
	Records        []models.Record
	SupportedKeys  []string
	ListValuedKeys []string
	Rejected       []error
}

// Processor validates raw records, escapes their keys and applies the rule
// set, then derives the key sets from the cleaned records.
type Processor struct {
	validator *Validator
	escaper   *KeyEscaper
	logger    *logger.Logger
	rules     []Rule
	identity  []string
	opts      Options
}

// NewProcessor checks the rule set and builds a processor. Rule set
// problems are configuration failures.
func NewProcessor(set RuleSet, opts Options) (*Processor, error) {
	escaper, err := NewKeyEscaper(set.Renames)
	if err != nil {
		return nil, failure.Configuration("rules", err)
	}

	seen := make(map[string]bool, len(set.Rules))

	for _, rule := range set.Rules {
		field := rule.Field()

		switch {
		case field == "":
			return nil, failure.Configuration("rules", ErrEmptyField)
		case seen[field]:
			return nil, failure.Configuration("rules", fmt.Errorf("%w: %s", ErrDuplicateRule, field))
		case escaper.Escape(field) != field:
			return nil, failure.Configuration("rules", fmt.Errorf("%w: %s", ErrRuleOnRawKey, field))
		}

		seen[field] = true
	}

	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}

	return &Processor{
		validator: NewValidator(),
		escaper:   escaper,
		logger:    opts.Logger,
		rules:     append([]Rule(nil), set.Rules...),
		identity:  append([]string(nil), set.IdentityKeys...),
		opts:      opts,
	}, nil
}

// Process cleans records in place. A record is either fully cleaned or
// reported; it is never left half-rewritten.
func (p *Processor) Process(ctx context.Context, records []models.Record) (*Result, error) {
	_, span := tracer.Start(ctx, "normalize")
	defer span.End()

	result, err := p.process(records)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "normalization failed")

		return nil, err
	}

	span.SetAttributes(
		attribute.Int("records", len(result.Records)),
		attribute.Int("rejected", len(result.Rejected)),
		attribute.Int("supported_keys", len(result.SupportedKeys)),
	)

	return result, nil
}

func (p *Processor) process(records []models.Record) (*Result, error) {
	if err := p.validator.Validate(records); err != nil {
		return nil, failure.DataQuality("normalize", -1, "", "", err)
	}

	plan, err := p.escaper.Plan(rawKeys(records))
	if err != nil {
		return nil, failure.DataQuality("escape", -1, "", "", err)
	}

	renamed := make(map[string]string)

	for from, to := range plan {
		if from != to {
			renamed[from] = to
		}
	}

	var (
		kept     = make([]models.Record, 0, len(records))
		failures []error
	)

	for i, rec := range records {
		if errs := p.cleanRecord(i, rec, plan); len(errs) > 0 {
			failures = append(failures, errs...)

			continue
		}

		kept = append(kept, rec)
	}

	if len(failures) > 0 {
		if !p.opts.ContinueOnDataErrors {
			return nil, errors.Join(failures...)
		}

		for _, err := range failures {
			p.logger.Warn("record rejected", "error", err)
		}

		if len(kept) == 0 {
			return nil, failure.DataQuality("normalize", -1, "", "", fmt.Errorf("every record was rejected: %w", ErrNoRecords))
		}
	}

	supported, listValued := DeriveKeySets(kept)

	return &Result{
		Renamed:        renamed,
		Records:        kept,
		SupportedKeys:  supported,
		ListValuedKeys: listValued,
		Rejected:       failures,
	}, nil
}

// cleanRecord works on a copy and only writes back when every rule passed.
func (p *Processor) cleanRecord(index int, rec models.Record, plan map[string]string) []error {
	work := rec.Clone()
	p.escaper.Apply(work, plan)

	var errs []error

	for _, rule := range p.rules {
		if err := rule.Apply(work); err != nil {
			errs = append(errs, failure.DataQuality("normalize", index, work.Identify(p.identity...), rule.Field(), err))
		}
	}

	if len(errs) > 0 {
		return errs
	}

	clear(rec)
	maps.Copy(rec, work)

	return nil
}
