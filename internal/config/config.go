package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Farm location and climate window.
	FarmLatitude      float64
	FarmLongitude     float64
	ClimateWindowDays int

	// Averages substituted when the climate provider is unavailable.
	FallbackRainfallMm   float64
	FallbackTemperatureC float64

	// NASA POWER client configuration.
	PowerBaseURL    string
	PowerCommunity  string
	PowerTimeout    time.Duration
	PowerMaxRetries int
	PowerCacheSize  int

	BreakerFailures    int
	BreakerOpenTimeout time.Duration

	// Outcome publishing (optional).
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	powerTimeout, err := parsePositiveDuration("POWER_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	breakerOpenTimeout, err := parsePositiveDuration("BREAKER_OPEN_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}

	lat, err := parseFloat("FARM_LATITUDE", 23.8103)
	if err != nil {
		return nil, err
	}
	lon, err := parseFloat("FARM_LONGITUDE", 90.4125)
	if err != nil {
		return nil, err
	}
	fallbackRain, err := parseFloat("FALLBACK_RAINFALL_MM", 100)
	if err != nil {
		return nil, err
	}
	fallbackTemp, err := parseFloat("FALLBACK_TEMPERATURE_C", 25)
	if err != nil {
		return nil, err
	}

	windowDays, err := parseInt("CLIMATE_WINDOW_DAYS", 90)
	if err != nil {
		return nil, err
	}
	maxRetries, err := parseInt("POWER_MAX_RETRIES", 2)
	if err != nil {
		return nil, err
	}
	breakerFailures, err := parseInt("BREAKER_FAILURES", 3)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		FarmLatitude:      lat,
		FarmLongitude:     lon,
		ClimateWindowDays: windowDays,

		FallbackRainfallMm:   fallbackRain,
		FallbackTemperatureC: fallbackTemp,

		PowerBaseURL:    sharedcfg.EnvOrDefault("POWER_BASE_URL", "https://power.larc.nasa.gov/api"),
		PowerCommunity:  sharedcfg.EnvOrDefault("POWER_COMMUNITY", "RE"),
		PowerTimeout:    powerTimeout,
		PowerMaxRetries: maxRetries,
		PowerCacheSize:  parsePowerCacheSize(),

		BreakerFailures:    breakerFailures,
		BreakerOpenTimeout: breakerOpenTimeout,

		KafkaEnabled: os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "season-simulations"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.FarmLatitude < -90 || c.FarmLatitude > 90 {
		return errors.New("FARM_LATITUDE must be between -90 and 90")
	}
	if c.FarmLongitude < -180 || c.FarmLongitude > 180 {
		return errors.New("FARM_LONGITUDE must be between -180 and 180")
	}
	if c.ClimateWindowDays < 1 || c.ClimateWindowDays > 366 {
		return errors.New("CLIMATE_WINDOW_DAYS must be between 1 and 366")
	}
	if c.FallbackRainfallMm < 0 {
		return errors.New("FALLBACK_RAINFALL_MM must not be negative")
	}
	if c.PowerBaseURL == "" {
		return errors.New("POWER_BASE_URL is required")
	}
	if c.PowerMaxRetries < 0 {
		return errors.New("POWER_MAX_RETRIES must not be negative")
	}
	if c.BreakerFailures < 1 {
		return errors.New("BREAKER_FAILURES must be at least 1")
	}
	if c.KafkaEnabled {
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if c.KafkaTopic == "" {
			return errors.New("KAFKA_TOPIC is required when KAFKA_ENABLED is true")
		}
	}
	return nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid %s: must be finite", key)
	}
	return v, nil
}

func parseInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func parsePowerCacheSize() int {
	if s := os.Getenv("POWER_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 128
}
