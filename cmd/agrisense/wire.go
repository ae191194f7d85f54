package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/viper"

	kafkaadapter "github.com/couchcryptid/agrisense/internal/adapter/kafka"
	"github.com/couchcryptid/agrisense/internal/adapter/power"
	"github.com/couchcryptid/agrisense/internal/adapter/surface"
	"github.com/couchcryptid/agrisense/internal/config"
	"github.com/couchcryptid/agrisense/internal/domain"
	"github.com/couchcryptid/agrisense/internal/observability"
	"github.com/couchcryptid/agrisense/internal/simulator"
)

// app bundles the wired service and the resources that need closing.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	service *simulator.Service
	closers []io.Closer
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Error("close error", "error", err)
		}
	}
}

// newApp wires the provider chain (client, cache, breaker) and the service.
// The Kafka publisher is attached only when publish is set and
// KAFKA_ENABLED is true.
func newApp(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics, publish bool) (*app, error) {
	client := power.NewClient(power.Options{
		BaseURL:    cfg.PowerBaseURL,
		Community:  cfg.PowerCommunity,
		Timeout:    cfg.PowerTimeout,
		MaxRetries: cfg.PowerMaxRetries,
	}, metrics, logger)
	breaker := power.NewBreakerProvider(client, cfg.BreakerFailures, cfg.BreakerOpenTimeout, metrics, logger)
	provider, err := power.NewCachedProvider(breaker, cfg.PowerCacheSize, metrics)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}

	var publisher simulator.Publisher
	if publish && cfg.KafkaEnabled {
		w := kafkaadapter.NewWriter(cfg, logger)
		publisher = w
		a.closers = append(a.closers, w)
		logger.Info("outcome publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	a.service = simulator.New(
		domain.NewEngine(domain.DefaultCatalog()),
		provider,
		surface.NewGenerator(),
		publisher,
		clockwork.NewRealClock(),
		metrics,
		logger,
		simulator.Options{
			Farm:                 domain.Point{Lat: cfg.FarmLatitude, Lon: cfg.FarmLongitude},
			WindowDays:           cfg.ClimateWindowDays,
			FallbackRainfallMm:   cfg.FallbackRainfallMm,
			FallbackTemperatureC: cfg.FallbackTemperatureC,
		},
	)
	return a, nil
}

// location applies --lat/--lon (or AGRISENSE_LAT/AGRISENSE_LON) over the farm.
func (a *app) location() (domain.Point, error) {
	at := a.service.Farm()
	if viper.IsSet("lat") {
		at.Lat = viper.GetFloat64("lat")
	}
	if viper.IsSet("lon") {
		at.Lon = viper.GetFloat64("lon")
	}
	if at.Lat < -90 || at.Lat > 90 || at.Lon < -180 || at.Lon > 180 {
		return domain.Point{}, fmt.Errorf("location %.4f,%.4f out of range", at.Lat, at.Lon)
	}
	return at, nil
}

// loadApp builds an app for a one-shot command. Logs go to stderr so stdout
// carries only results.
func loadApp(publish bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := observability.NewStderrLogger(cfg)
	return newApp(cfg, logger, observability.NewMetrics(), publish)
}
