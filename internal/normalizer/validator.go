package normalizer

import (
	"errors"
	"fmt"

	"hgncmap/internal/models"
)

// Validation errors.
var (
	ErrNoRecords = errors.New("record set is empty")
	ErrNilRecord = errors.New("record is null")
)

// Validator checks raw input before any rule runs.
type Validator struct{}

// NewValidator creates a new validator instance.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate rejects empty record sets and null records.
func (v *Validator) Validate(records []models.Record) error {
	if len(records) == 0 {
		return ErrNoRecords
	}

	for i, rec := range records {
		if rec == nil {
			return fmt.Errorf("%w at index %d", ErrNilRecord, i)
		}
	}

	return nil
}
