package power

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/couchcryptid/agrisense/internal/domain"
	"github.com/couchcryptid/agrisense/internal/observability"
)

// BreakerProvider fails fast while the wrapped provider keeps erroring.
// After failures consecutive errors the breaker opens for openTimeout, then
// lets a single probe through.
type BreakerProvider struct {
	inner domain.ClimateProvider
	cb    *gobreaker.CircuitBreaker
}

// NewBreakerProvider wraps inner with a circuit breaker.
func NewBreakerProvider(inner domain.ClimateProvider, failures int, openTimeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *BreakerProvider {
	if failures < 1 {
		failures = 1
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "nasa-power",
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(failures)
		},
		IsSuccessful: func(err error) bool {
			// A caller giving up or a rejected request is not an upstream failure.
			return err == nil || errors.Is(err, context.Canceled) || IsClientError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.BreakerState.Set(float64(to))
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return &BreakerProvider{inner: inner, cb: cb}
}

func (b *BreakerProvider) FetchClimateSeries(ctx context.Context, at domain.Point, start, end time.Time) ([]domain.ClimateObservation, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.FetchClimateSeries(ctx, at, start, end)
	})
	if err != nil {
		return nil, err
	}
	series, _ := res.([]domain.ClimateObservation)
	return series, nil
}

// State reports the breaker's current state.
func (b *BreakerProvider) State() gobreaker.State {
	return b.cb.State()
}
