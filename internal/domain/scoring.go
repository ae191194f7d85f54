package domain

import (
	"fmt"
	"math"
)

const (
	fertilizerBonus    = 0.2
	maxWaterFactor     = 1.5
	overuseThreshold   = 1.2
	overusePenalty     = 0.8
	heatOnsetCelsius   = 25.0
	heatPenaltySpanDeg = 50.0

	maxScore              = 100
	waterOveruseDeduction = 30
	fertOveruseDeduction  = 20
	droughtDeduction      = 10
)

// SimulationResult is the scored outcome of one season.
type SimulationResult struct {
	YieldTonsPerHa      float64 `json:"yield_tons_per_ha"`
	SustainabilityScore int     `json:"sustainability_score"`
}

// FertilizerFactor scales yield by how close fertilizer is to the crop's
// optimum: 1.2 at the optimum, falling linearly with absolute deviation.
// The result is not clamped.
func FertilizerFactor(p CropProfile, fertilizer float64) float64 {
	deviation := math.Abs(fertilizer-p.FertilizerOptimum) / p.FertilizerOptimum
	return 1 + fertilizerBonus*(1-deviation)
}

// WaterFactor scales yield by water availability relative to the crop's
// need, capped at 1.5, with a flat 20% cut once total water exceeds 1.2x need.
func WaterFactor(p CropProfile, totalWater float64) float64 {
	factor := math.Min(maxWaterFactor, totalWater/p.WaterNeed)
	if totalWater > p.WaterNeed*overuseThreshold {
		factor *= overusePenalty
	}
	return factor
}

// TemperatureFactor is 1 at or below 25 °C and falls linearly above it,
// reaching 0 at 75 °C.
func TemperatureFactor(temperature float64) float64 {
	return 1 - math.Max(0, (temperature-heatOnsetCelsius)/heatPenaltySpanDeg)
}

// ComputeYield estimates tons/hectare for the season. It never returns a
// negative value.
func ComputeYield(p CropProfile, irrigation, fertilizer, rainfall, temperature float64) float64 {
	totalWater := rainfall + irrigation
	y := p.BaseYield *
		FertilizerFactor(p, fertilizer) *
		WaterFactor(p, totalWater) *
		TemperatureFactor(temperature)
	return math.Max(0, y)
}

// ComputeSustainability scores resource use on a 0-100 scale.
func ComputeSustainability(p CropProfile, irrigation, fertilizer, rainfall float64) int {
	score := maxScore

	if rainfall+irrigation > p.WaterNeed*1.5 {
		score -= waterOveruseDeduction
	}
	if fertilizer > p.FertilizerOptimum*1.5 {
		score -= fertOveruseDeduction
	}
	if rainfall < p.WaterNeed*0.5 && !p.DroughtResistant {
		score -= droughtDeduction
	}

	return max(0, score)
}

// SimulateSeason scores one season for an already resolved crop profile.
func SimulateSeason(p CropProfile, irrigation, fertilizer, avgRainfall, avgTemperature float64) SimulationResult {
	return SimulationResult{
		YieldTonsPerHa:      ComputeYield(p, irrigation, fertilizer, avgRainfall, avgTemperature),
		SustainabilityScore: ComputeSustainability(p, irrigation, fertilizer, avgRainfall),
	}
}

// Engine scores seasons by crop name against a catalog.
type Engine struct {
	catalog *Catalog
}

// NewEngine creates an Engine over catalog. A nil catalog selects the
// embedded default.
func NewEngine(catalog *Catalog) *Engine {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Engine{catalog: catalog}
}

// Catalog returns the catalog the engine resolves crop names against.
func (e *Engine) Catalog() *Catalog {
	return e.catalog
}

// SimulateSeason looks up cropName and scores the season. An unknown crop
// returns an error wrapping ErrUnknownCrop.
func (e *Engine) SimulateSeason(cropName string, irrigation, fertilizer, avgRainfall, avgTemperature float64) (SimulationResult, error) {
	p, err := e.catalog.Lookup(cropName)
	if err != nil {
		return SimulationResult{}, fmt.Errorf("simulate season: %w", err)
	}
	return SimulateSeason(p, irrigation, fertilizer, avgRainfall, avgTemperature), nil
}
