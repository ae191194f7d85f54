package domain

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidDecision is returned when a decision input fails validation.
var ErrInvalidDecision = errors.New("invalid decision")

// DecisionInput is what the player chooses for one season.
type DecisionInput struct {
	Crop         string  `json:"crop"`
	IrrigationMm float64 `json:"irrigation_mm"`
	FertilizerKg float64 `json:"fertilizer_kg_per_ha"`
}

// Validate checks that the amounts are finite and non-negative and that a
// crop was named. Catalog membership is checked by the lookup itself.
func (d DecisionInput) Validate() error {
	if d.Crop == "" {
		return fmt.Errorf("%w: crop is required", ErrInvalidDecision)
	}
	if err := checkAmount("irrigation_mm", d.IrrigationMm); err != nil {
		return err
	}
	return checkAmount("fertilizer_kg_per_ha", d.FertilizerKg)
}

func checkAmount(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s must be a finite number", ErrInvalidDecision, field)
	}
	if v < 0 {
		return fmt.Errorf("%w: %s must not be negative", ErrInvalidDecision, field)
	}
	return nil
}
