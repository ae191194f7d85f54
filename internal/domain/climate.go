package domain

import (
	"context"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Climate summary sources.
const (
	SourcePower    = "nasa-power"
	SourceFallback = "fallback"
	SourceOverride = "override"
)

// Fallback averages used when the climate provider is unavailable.
const (
	DefaultFallbackRainfallMm    = 100.0
	DefaultFallbackTemperatureC  = 25.0
	defaultObservationWindowDays = 90
)

// Point is a WGS-84 latitude/longitude pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ClimateObservation is one day of provider data.
type ClimateObservation struct {
	Date            time.Time `json:"date"`
	PrecipitationMm float64   `json:"precipitation_mm"`
	TemperatureC    float64   `json:"temperature_c"`
}

// ClimateSummary holds the two averages the scoring model consumes, along
// with where they came from.
type ClimateSummary struct {
	AvgRainfallMm   float64   `json:"avg_rainfall_mm"`
	AvgTemperatureC float64   `json:"avg_temperature_c"`
	Source          string    `json:"source"`
	Observations    int       `json:"observations"`
	WindowStart     time.Time `json:"window_start,omitzero"`
	WindowEnd       time.Time `json:"window_end,omitzero"`
}

// ClimateProvider supplies a daily precipitation and temperature series for
// a point and an inclusive date range.
type ClimateProvider interface {
	FetchClimateSeries(ctx context.Context, at Point, start, end time.Time) ([]ClimateObservation, error)
}

// Summarize averages a series. ok is false for an empty series.
func Summarize(series []ClimateObservation) (ClimateSummary, bool) {
	if len(series) == 0 {
		return ClimateSummary{}, false
	}

	rain := make([]float64, len(series))
	temp := make([]float64, len(series))
	start, end := series[0].Date, series[0].Date
	for i, o := range series {
		rain[i] = o.PrecipitationMm
		temp[i] = o.TemperatureC
		if o.Date.Before(start) {
			start = o.Date
		}
		if o.Date.After(end) {
			end = o.Date
		}
	}

	return ClimateSummary{
		AvgRainfallMm:   stat.Mean(rain, nil),
		AvgTemperatureC: stat.Mean(temp, nil),
		Source:          SourcePower,
		Observations:    len(series),
		WindowStart:     start,
		WindowEnd:       end,
	}, true
}

// FallbackClimate returns the fixed summary substituted for an unavailable
// provider.
func FallbackClimate(rainfallMm, temperatureC float64) ClimateSummary {
	return ClimateSummary{
		AvgRainfallMm:   rainfallMm,
		AvgTemperatureC: temperatureC,
		Source:          SourceFallback,
	}
}

// OverrideClimate wraps caller-supplied averages.
func OverrideClimate(rainfallMm, temperatureC float64) ClimateSummary {
	return ClimateSummary{
		AvgRainfallMm:   rainfallMm,
		AvgTemperatureC: temperatureC,
		Source:          SourceOverride,
	}
}

// ObservationWindow returns the inclusive [now-days, now] range truncated to
// UTC calendar days. Non-positive days select the 90-day default.
func ObservationWindow(now time.Time, days int) (start, end time.Time) {
	if days <= 0 {
		days = defaultObservationWindowDays
	}
	now = now.UTC()
	end = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	start = end.AddDate(0, 0, -days)
	return start, end
}
