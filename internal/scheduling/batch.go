package scheduling

import (
	"context"
	"fmt"

	"github.com/akademik-fk/curriculum-api/internal/models"
)

// BatchValidator runs the conflict detector and capacity validator over
// a list of candidate rows with all-or-nothing semantics: all row errors
// are collected and any error fails the whole batch.
type BatchValidator struct {
	detector *Detector
	capacity *CapacityValidator
}

// NewBatchValidator builds a BatchValidator.
func NewBatchValidator(detector *Detector, capacity *CapacityValidator) *BatchValidator {
	return &BatchValidator{detector: detector, capacity: capacity}
}

// Validate checks every row in input order: against the persisted
// universe, then pairwise against every earlier row of the same batch
// (earlier rows are not yet persisted, so a store-backed detector cannot
// see them), then room capacity. Returns nil when every row passes.
// Store failures abort immediately; validation must reflect the true
// state of the store.
func (b *BatchValidator) Validate(ctx context.Context, rows []models.Entry) (*models.BatchValidationError, error) {
	var rowErrors []models.BatchRowError

	for i, row := range rows {
		conflict, err := b.detector.Detect(ctx, row, DetectOptions{Extra: rows[:i]})
		if err != nil {
			return nil, fmt.Errorf("validate batch row %d: %w", i+1, err)
		}
		if conflict != nil {
			rowErrors = append(rowErrors, models.BatchRowError{Row: i + 1, Message: conflict.Message()})
			continue
		}

		check, err := b.capacity.Validate(ctx, row)
		if err != nil {
			return nil, fmt.Errorf("validate batch row %d capacity: %w", i+1, err)
		}
		if !check.OK {
			rowErrors = append(rowErrors, models.BatchRowError{Row: i + 1, Message: check.Message()})
		}
	}

	if len(rowErrors) > 0 {
		return &models.BatchValidationError{Rows: rowErrors}, nil
	}
	return nil, nil
}
