package simulator_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/agrisense/internal/adapter/surface"
	"github.com/couchcryptid/agrisense/internal/domain"
	"github.com/couchcryptid/agrisense/internal/observability"
	"github.com/couchcryptid/agrisense/internal/simulator"
)

// --- mocks ---

type mockProvider struct {
	mu     sync.Mutex
	series []domain.ClimateObservation
	err    error
	calls  int
	start  time.Time
	end    time.Time
	at     domain.Point
}

func (m *mockProvider) FetchClimateSeries(_ context.Context, at domain.Point, start, end time.Time) ([]domain.ClimateObservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.at, m.start, m.end = at, start, end
	return m.series, m.err
}

type mockPublisher struct {
	published []domain.SeasonOutcome
	err       error
}

func (m *mockPublisher) Publish(_ context.Context, outcome domain.SeasonOutcome) error {
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, outcome)
	return nil
}

var (
	farm    = domain.Point{Lat: 23.8103, Lon: 90.4125}
	fixedAt = time.Date(2025, 7, 15, 9, 30, 0, 0, time.UTC)
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testOptions() simulator.Options {
	return simulator.Options{
		Farm:                 farm,
		WindowDays:           90,
		FallbackRainfallMm:   domain.DefaultFallbackRainfallMm,
		FallbackTemperatureC: domain.DefaultFallbackTemperatureC,
	}
}

func newService(p domain.ClimateProvider, pub simulator.Publisher, metrics *observability.Metrics) *simulator.Service {
	return simulator.New(
		domain.NewEngine(nil),
		p,
		surface.NewSeededGenerator(1, 1),
		pub,
		clockwork.NewFakeClockAt(fixedAt),
		metrics,
		discardLogger(),
		testOptions(),
	)
}

func ptr(v float64) *float64 { return &v }

func series(values ...[2]float64) []domain.ClimateObservation {
	out := make([]domain.ClimateObservation, len(values))
	for i, v := range values {
		out[i] = domain.ClimateObservation{
			Date:            time.Date(2025, 5, 1+i, 0, 0, 0, 0, time.UTC),
			PrecipitationMm: v[0],
			TemperatureC:    v[1],
		}
	}
	return out
}

// --- tests ---

func TestResolveClimate_AveragesSeries(t *testing.T) {
	p := &mockProvider{series: series([2]float64{10, 28}, [2]float64{20, 30}, [2]float64{0, 32})}
	svc := newService(p, nil, observability.NewMetricsForTesting())

	got := svc.ResolveClimate(context.Background(), farm)

	want := domain.ClimateSummary{
		AvgRainfallMm:   10,
		AvgTemperatureC: 30,
		Source:          domain.SourcePower,
		Observations:    3,
		WindowStart:     time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		WindowEnd:       time.Date(2025, 5, 3, 0, 0, 0, 0, time.UTC),
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("ResolveClimate mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, time.Date(2025, 4, 16, 0, 0, 0, 0, time.UTC), p.start)
	assert.Equal(t, time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC), p.end)
	assert.Equal(t, farm, p.at)
}

func TestResolveClimate_FallbackOnError(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	svc := newService(&mockProvider{err: errors.New("connection refused")}, nil, metrics)

	got := svc.ResolveClimate(context.Background(), farm)

	assert.Equal(t, domain.FallbackClimate(100, 25), got)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ClimateFallbacks))
}

func TestResolveClimate_FallbackOnEmptySeries(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	svc := newService(&mockProvider{}, nil, metrics)

	got := svc.ResolveClimate(context.Background(), farm)

	assert.Equal(t, domain.SourceFallback, got.Source)
	assert.Equal(t, 100.0, got.AvgRainfallMm)
	assert.Equal(t, 25.0, got.AvgTemperatureC)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ClimateFallbacks))
}

func TestSimulate_RiceWithFallbackClimate(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	pub := &mockPublisher{}
	svc := newService(&mockProvider{err: errors.New("down")}, pub, metrics)

	out, err := svc.Simulate(context.Background(), simulator.Request{
		Decision: domain.DecisionInput{Crop: "Rice", IrrigationMm: 1200, FertilizerKg: 100},
	})
	require.NoError(t, err)

	// 1300 mm total water is 1.083x need, under the overuse threshold.
	assert.InDelta(t, 5.0*1.2*(1300.0/1200.0), out.Result.YieldTonsPerHa, 1e-9)
	assert.Equal(t, 90, out.Result.SustainabilityScore)
	assert.Equal(t, domain.SourceFallback, out.Climate.Source)
	assert.Equal(t, fixedAt, out.SimulatedAt)
	assert.Equal(t, farm, out.Location)
	assert.NotEmpty(t, out.ID)
	assert.Equal(t, domain.AdviceNone, out.Advice.Level)
	assert.Empty(t, out.Surface)

	require.Len(t, pub.published, 1)
	assert.Equal(t, out, pub.published[0])
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Simulations.WithLabelValues("Rice", domain.SourceFallback)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.OutcomesPublished))
}

func TestSimulate_ClimateOverrideSkipsProvider(t *testing.T) {
	p := &mockProvider{series: series([2]float64{5, 40})}
	svc := newService(p, nil, observability.NewMetricsForTesting())

	out, err := svc.Simulate(context.Background(), simulator.Request{
		Decision:     domain.DecisionInput{Crop: "Maize", IrrigationMm: 900, FertilizerKg: 300},
		RainfallMm:   ptr(100),
		TemperatureC: ptr(25),
	})
	require.NoError(t, err)

	assert.Equal(t, 0, p.calls)
	assert.Equal(t, domain.SourceOverride, out.Climate.Source)
	assert.Equal(t, 50, out.Result.SustainabilityScore)
	// 50 is not below the warning threshold and 9.6 t/ha beats 0.8x base.
	assert.InDelta(t, 9.6, out.Result.YieldTonsPerHa, 1e-9)
	assert.Equal(t, domain.AdviceNone, out.Advice.Level)
}

func TestSimulate_PartialOverrideUsesProvider(t *testing.T) {
	p := &mockProvider{series: series([2]float64{10, 25})}
	svc := newService(p, nil, observability.NewMetricsForTesting())

	out, err := svc.Simulate(context.Background(), simulator.Request{
		Decision:   domain.DecisionInput{Crop: "Wheat", IrrigationMm: 300, FertilizerKg: 120},
		RainfallMm: ptr(100),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, p.calls)
	assert.Equal(t, domain.SourcePower, out.Climate.Source)
	assert.Equal(t, 10.0, out.Climate.AvgRainfallMm)
}

func TestSimulate_CustomLocation(t *testing.T) {
	p := &mockProvider{series: series([2]float64{10, 25})}
	svc := newService(p, nil, observability.NewMetricsForTesting())
	chittagong := domain.Point{Lat: 22.3569, Lon: 91.7832}

	out, err := svc.Simulate(context.Background(), simulator.Request{
		Decision: domain.DecisionInput{Crop: "Rice", IrrigationMm: 1000, FertilizerKg: 100},
		Location: &chittagong,
	})
	require.NoError(t, err)
	assert.Equal(t, chittagong, p.at)
	assert.Equal(t, chittagong, out.Location)
}

func TestSimulate_IncludeSurface(t *testing.T) {
	svc := newService(&mockProvider{err: errors.New("down")}, nil, observability.NewMetricsForTesting())

	out, err := svc.Simulate(context.Background(), simulator.Request{
		Decision:       domain.DecisionInput{Crop: "Rice", IrrigationMm: 1000, FertilizerKg: 100},
		IncludeSurface: true,
	})
	require.NoError(t, err)

	require.Len(t, out.Surface, 90)
	assert.Equal(t, time.Date(2025, 4, 16, 0, 0, 0, 0, time.UTC), out.Surface[0].Date)
	for _, r := range out.Surface {
		assert.GreaterOrEqual(t, r.SoilMoisturePct, 30.0)
		assert.Less(t, r.SoilMoisturePct, 50.0)
		assert.GreaterOrEqual(t, r.NDVI, 0.2)
		assert.Less(t, r.NDVI, 0.8)
	}
}

func TestSimulate_SurfaceDoesNotChangeScore(t *testing.T) {
	svc := newService(&mockProvider{err: errors.New("down")}, nil, observability.NewMetricsForTesting())
	decision := domain.DecisionInput{Crop: "Sorghum", IrrigationMm: 200, FertilizerKg: 60}

	plain, err := svc.Simulate(context.Background(), simulator.Request{Decision: decision})
	require.NoError(t, err)
	withSurface, err := svc.Simulate(context.Background(), simulator.Request{Decision: decision, IncludeSurface: true})
	require.NoError(t, err)

	assert.Equal(t, plain.Result, withSurface.Result)
	assert.NotEqual(t, plain.ID, withSurface.ID)
}

func TestSimulate_UnknownCrop(t *testing.T) {
	p := &mockProvider{}
	svc := newService(p, nil, observability.NewMetricsForTesting())

	_, err := svc.Simulate(context.Background(), simulator.Request{
		Decision: domain.DecisionInput{Crop: "Cassava", IrrigationMm: 100, FertilizerKg: 10},
	})
	require.ErrorIs(t, err, domain.ErrUnknownCrop)
	assert.Equal(t, 0, p.calls, "climate should not be fetched for an unknown crop")
}

func TestSimulate_InvalidDecision(t *testing.T) {
	svc := newService(&mockProvider{}, nil, observability.NewMetricsForTesting())

	_, err := svc.Simulate(context.Background(), simulator.Request{
		Decision: domain.DecisionInput{Crop: "Rice", IrrigationMm: -1, FertilizerKg: 10},
	})
	require.ErrorIs(t, err, domain.ErrInvalidDecision)
}

func TestSimulate_PublishErrorDoesNotFail(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	pub := &mockPublisher{err: errors.New("broker unavailable")}
	svc := newService(&mockProvider{err: errors.New("down")}, pub, metrics)

	out, err := svc.Simulate(context.Background(), simulator.Request{
		Decision: domain.DecisionInput{Crop: "Rice", IrrigationMm: 1000, FertilizerKg: 100},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, out.ID)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PublishErrors))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.OutcomesPublished))
}

func TestSimulate_TracksClockAdvance(t *testing.T) {
	clock := clockwork.NewFakeClockAt(fixedAt)
	p := &mockProvider{}
	svc := simulator.New(domain.NewEngine(nil), p, nil, nil, clock, observability.NewMetricsForTesting(), discardLogger(), testOptions())

	_, err := svc.Simulate(context.Background(), simulator.Request{
		Decision: domain.DecisionInput{Crop: "Rice", IrrigationMm: 1000, FertilizerKg: 100},
	})
	require.NoError(t, err)
	firstEnd := p.end

	clock.Advance(48 * time.Hour)
	out, err := svc.Simulate(context.Background(), simulator.Request{
		Decision: domain.DecisionInput{Crop: "Rice", IrrigationMm: 1000, FertilizerKg: 100},
		// Surface is requested but no source is configured.
		IncludeSurface: true,
	})
	require.NoError(t, err)
	assert.Equal(t, firstEnd.AddDate(0, 0, 2), p.end)
	assert.Equal(t, fixedAt.Add(48*time.Hour), out.SimulatedAt)
	assert.Empty(t, out.Surface)
}

func TestWarm_SetsReady(t *testing.T) {
	svc := newService(&mockProvider{series: series([2]float64{3, 29})}, nil, observability.NewMetricsForTesting())

	require.Error(t, svc.CheckReadiness(context.Background()))
	assert.True(t, svc.Warm(context.Background()))
	require.NoError(t, svc.CheckReadiness(context.Background()))
}

func TestWarm_FallbackStillReady(t *testing.T) {
	svc := newService(&mockProvider{err: errors.New("down")}, nil, observability.NewMetricsForTesting())

	assert.False(t, svc.Warm(context.Background()))
	require.NoError(t, svc.CheckReadiness(context.Background()))
}

func TestCatalog(t *testing.T) {
	svc := newService(&mockProvider{}, nil, observability.NewMetricsForTesting())
	assert.Equal(t, []string{"Rice", "Maize", "Wheat", "Sorghum"}, svc.Catalog().Names())
	assert.Equal(t, farm, svc.Farm())
}

func TestSimulate_NonFiniteYieldRejected(t *testing.T) {
	pub := &mockPublisher{}
	svc := newService(&mockProvider{}, pub, observability.NewMetricsForTesting())

	_, err := svc.Simulate(context.Background(), simulator.Request{
		Decision:     domain.DecisionInput{Crop: "Rice", FertilizerKg: 1e308},
		RainfallMm:   ptr(100),
		TemperatureC: ptr(1e308),
	})
	require.ErrorIs(t, err, domain.ErrInvalidDecision)
	assert.Contains(t, err.Error(), "non-finite yield")
	assert.Empty(t, pub.published)
}

func TestSimulate_InvalidClimateOverride(t *testing.T) {
	tests := []struct {
		name        string
		rainfall    *float64
		temperature *float64
		field       string
	}{
		{"negative rainfall", ptr(-5), ptr(25), "rainfall_mm"},
		{"negative rainfall alone", ptr(-5), nil, "rainfall_mm"},
		{"infinite temperature", ptr(100), ptr(math.Inf(1)), "temperature_c"},
		{"nan rainfall", ptr(math.NaN()), ptr(25), "rainfall_mm"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &mockProvider{}
			svc := newService(p, nil, observability.NewMetricsForTesting())

			_, err := svc.Simulate(context.Background(), simulator.Request{
				Decision:     domain.DecisionInput{Crop: "Rice", IrrigationMm: 100, FertilizerKg: 10},
				RainfallMm:   tt.rainfall,
				TemperatureC: tt.temperature,
			})
			require.ErrorIs(t, err, domain.ErrInvalidDecision)
			assert.Contains(t, err.Error(), tt.field)
			assert.Equal(t, 0, p.calls)
		})
	}
}
