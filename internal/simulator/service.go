// Package simulator ties the climate provider, the scoring engine and the
// optional outcome publisher into a single season simulation call.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/agrisense/internal/domain"
	"github.com/couchcryptid/agrisense/internal/observability"
)

// SurfaceSource produces display-only soil and vegetation readings.
type SurfaceSource interface {
	SurfaceSeries(at domain.Point, start time.Time, days int) []domain.SurfaceReading
}

// Publisher delivers a finished season outcome downstream.
type Publisher interface {
	Publish(ctx context.Context, outcome domain.SeasonOutcome) error
}

// Options configures a Service.
type Options struct {
	Farm                 domain.Point
	WindowDays           int
	FallbackRainfallMm   float64
	FallbackTemperatureC float64
}

// Request is one season simulation. Location defaults to the configured farm.
// When both RainfallMm and TemperatureC are set the climate provider is
// skipped.
type Request struct {
	Decision       domain.DecisionInput
	Location       *domain.Point
	RainfallMm     *float64
	TemperatureC   *float64
	IncludeSurface bool
}

// Service runs season simulations.
type Service struct {
	engine    *domain.Engine
	provider  domain.ClimateProvider
	surface   SurfaceSource
	publisher Publisher
	clock     clockwork.Clock
	metrics   *observability.Metrics
	logger    *slog.Logger
	opts      Options
	ready     atomic.Bool
}

// New creates a Service. surface and publisher may be nil.
func New(engine *domain.Engine, provider domain.ClimateProvider, surface SurfaceSource, publisher Publisher, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger, opts Options) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		engine:    engine,
		provider:  provider,
		surface:   surface,
		publisher: publisher,
		clock:     clock,
		metrics:   metrics,
		logger:    logger,
		opts:      opts,
	}
}

// Catalog returns the crop catalog simulations are resolved against.
func (s *Service) Catalog() *domain.Catalog {
	return s.engine.Catalog()
}

// Farm returns the default simulation location.
func (s *Service) Farm() domain.Point {
	return s.opts.Farm
}

// ResolveClimate averages the provider's series over the observation window
// ending today. Provider errors and empty series never surface to the caller;
// the fallback averages are returned instead.
func (s *Service) ResolveClimate(ctx context.Context, at domain.Point) domain.ClimateSummary {
	start, end := domain.ObservationWindow(s.clock.Now(), s.opts.WindowDays)

	series, err := s.provider.FetchClimateSeries(ctx, at, start, end)
	if err != nil {
		s.logger.Warn("climate provider unavailable, using fallback",
			"error", err, "lat", at.Lat, "lon", at.Lon)
		return s.fallback()
	}

	summary, ok := domain.Summarize(series)
	if !ok {
		s.logger.Warn("climate provider returned no observations, using fallback",
			"lat", at.Lat, "lon", at.Lon,
			"start", start.Format(time.DateOnly), "end", end.Format(time.DateOnly))
		return s.fallback()
	}

	s.logger.Debug("climate resolved",
		"source", summary.Source,
		"observations", summary.Observations,
		"avg_rainfall_mm", summary.AvgRainfallMm,
		"avg_temperature_c", summary.AvgTemperatureC)
	return summary
}

func (s *Service) fallback() domain.ClimateSummary {
	s.metrics.ClimateFallbacks.Inc()
	return domain.FallbackClimate(s.opts.FallbackRainfallMm, s.opts.FallbackTemperatureC)
}

// Simulate validates the request, resolves climate and scores the season.
// Errors wrap domain.ErrInvalidDecision or domain.ErrUnknownCrop.
func (s *Service) Simulate(ctx context.Context, req Request) (domain.SeasonOutcome, error) {
	if err := req.Decision.Validate(); err != nil {
		return domain.SeasonOutcome{}, err
	}
	if err := req.validateOverride(); err != nil {
		return domain.SeasonOutcome{}, err
	}
	profile, err := s.engine.Catalog().Lookup(req.Decision.Crop)
	if err != nil {
		return domain.SeasonOutcome{}, fmt.Errorf("simulate season: %w", err)
	}

	at := s.opts.Farm
	if req.Location != nil {
		at = *req.Location
	}

	var climate domain.ClimateSummary
	if req.RainfallMm != nil && req.TemperatureC != nil {
		climate = domain.OverrideClimate(*req.RainfallMm, *req.TemperatureC)
	} else {
		climate = s.ResolveClimate(ctx, at)
	}

	result, err := s.engine.SimulateSeason(profile.Name,
		req.Decision.IrrigationMm, req.Decision.FertilizerKg,
		climate.AvgRainfallMm, climate.AvgTemperatureC)
	if err != nil {
		return domain.SeasonOutcome{}, err
	}
	if math.IsInf(result.YieldTonsPerHa, 0) || math.IsNaN(result.YieldTonsPerHa) {
		return domain.SeasonOutcome{}, fmt.Errorf("%w: inputs produce a non-finite yield", domain.ErrInvalidDecision)
	}

	now := s.clock.Now().UTC()
	outcome := domain.SeasonOutcome{
		ID:          uuid.NewString(),
		SimulatedAt: now,
		Location:    at,
		Decision:    req.Decision,
		Climate:     climate,
		Result:      result,
		Advice:      domain.Advise(profile, result),
	}
	if req.IncludeSurface && s.surface != nil {
		start, _ := domain.ObservationWindow(now, s.opts.WindowDays)
		outcome.Surface = s.surface.SurfaceSeries(at, start, windowDays(s.opts.WindowDays))
	}

	s.record(profile.Name, outcome)
	s.publish(ctx, outcome)
	return outcome, nil
}

func (s *Service) record(crop string, outcome domain.SeasonOutcome) {
	s.metrics.Simulations.WithLabelValues(crop, outcome.Climate.Source).Inc()
	s.metrics.YieldEstimate.WithLabelValues(crop).Observe(outcome.Result.YieldTonsPerHa)
	s.metrics.SustainabilityScore.WithLabelValues(crop).Observe(float64(outcome.Result.SustainabilityScore))

	s.logger.Info("season simulated",
		"id", outcome.ID,
		"crop", crop,
		"source", outcome.Climate.Source,
		"yield_tons_per_ha", outcome.Result.YieldTonsPerHa,
		"sustainability_score", outcome.Result.SustainabilityScore,
		"advice", outcome.Advice.Level)
}

// publish never fails the simulation; errors are logged and counted.
func (s *Service) publish(ctx context.Context, outcome domain.SeasonOutcome) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, outcome); err != nil {
		s.metrics.PublishErrors.Inc()
		s.logger.Error("publish outcome failed", "error", err, "id", outcome.ID)
		return
	}
	s.metrics.OutcomesPublished.Inc()
}

// Warm resolves climate for the configured farm once so the first request
// and the readiness probe do not wait on the provider. It reports whether
// real provider data was obtained.
func (s *Service) Warm(ctx context.Context) bool {
	summary := s.ResolveClimate(ctx, s.opts.Farm)
	s.ready.Store(true)
	s.logger.Info("climate warmed", "source", summary.Source, "observations", summary.Observations)
	return summary.Source == domain.SourcePower
}

// CheckReadiness returns nil once Warm has completed.
func (s *Service) CheckReadiness(_ context.Context) error {
	if !s.ready.Load() {
		return errors.New("climate has not been resolved yet")
	}
	return nil
}

// validateOverride checks caller-supplied climate averages. A partial
// override is ignored, but any value given must still be usable.
func (r Request) validateOverride() error {
	if r.RainfallMm != nil {
		v := *r.RainfallMm
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: rainfall_mm must be a finite number", domain.ErrInvalidDecision)
		}
		if v < 0 {
			return fmt.Errorf("%w: rainfall_mm must not be negative", domain.ErrInvalidDecision)
		}
	}
	if r.TemperatureC != nil {
		v := *r.TemperatureC
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: temperature_c must be a finite number", domain.ErrInvalidDecision)
		}
	}
	return nil
}

func windowDays(days int) int {
	if days <= 0 {
		return 90
	}
	return days
}
