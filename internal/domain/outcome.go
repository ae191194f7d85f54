package domain

import "time"

// Advice levels.
const (
	AdviceNone    = "none"
	AdviceInfo    = "info"
	AdviceWarning = "warning"
)

const (
	lowSustainabilityScore = 50
	lowYieldRatio          = 0.8
)

// Advice is a one-line hint shown after a season is scored.
type Advice struct {
	Level   string `json:"level"`
	Message string `json:"message,omitempty"`
}

// Advise derives feedback for a result. A low sustainability score takes
// precedence over a low yield.
func Advise(p CropProfile, r SimulationResult) Advice {
	switch {
	case r.SustainabilityScore < lowSustainabilityScore:
		return Advice{
			Level:   AdviceWarning,
			Message: "Your sustainability score is low. Consider reducing water or fertilizer usage.",
		}
	case r.YieldTonsPerHa < p.BaseYield*lowYieldRatio:
		return Advice{
			Level:   AdviceInfo,
			Message: "Yield is low. Try adjusting irrigation or fertilizer based on climate data.",
		}
	default:
		return Advice{Level: AdviceNone}
	}
}

// SurfaceReading is a display-only soil and vegetation sample for one day.
type SurfaceReading struct {
	Date            time.Time `json:"date"`
	SoilMoisturePct float64   `json:"soil_moisture_pct"`
	NDVI            float64   `json:"ndvi"`
}

// SeasonOutcome is the full record of one simulation run.
type SeasonOutcome struct {
	ID          string           `json:"id"`
	SimulatedAt time.Time        `json:"simulated_at"`
	Location    Point            `json:"location"`
	Decision    DecisionInput    `json:"decision"`
	Climate     ClimateSummary   `json:"climate"`
	Result      SimulationResult `json:"result"`
	Advice      Advice           `json:"advice"`
	Surface     []SurfaceReading `json:"surface,omitempty"`
}
