package power

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/couchcryptid/agrisense/internal/domain"
	"github.com/couchcryptid/agrisense/internal/observability"
)

const (
	// DefaultBaseURL is the public NASA POWER API root.
	DefaultBaseURL = "https://power.larc.nasa.gov/api"

	paramPrecipitation = "PRECTOTCORR"
	paramTemperature   = "T2M"
	dateLayout         = "20060102"
	defaultFillValue   = -999.0
)

// StatusError is returned for a non-2xx response from the POWER API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("power API error: status %d: %s", e.Code, e.Body)
}

// Options tunes a Client.
type Options struct {
	BaseURL    string
	Community  string
	Timeout    time.Duration
	MaxRetries int
}

// Client implements domain.ClimateProvider using the NASA POWER daily point API.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	community      string
	maxRetries     int
	initialBackoff time.Duration
	metrics        *observability.Metrics
	logger         *slog.Logger
}

// NewClient creates a NASA POWER client.
func NewClient(opts Options, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Community == "" {
		opts.Community = "RE"
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		baseURL:        opts.BaseURL,
		community:      opts.Community,
		maxRetries:     opts.MaxRetries,
		initialBackoff: 250 * time.Millisecond,
		metrics:        metrics,
		logger:         logger,
	}
}

// FetchClimateSeries returns daily precipitation and 2m temperature for the
// inclusive date range, sorted by date. Days carrying the API's fill value are
// dropped. Server errors and transport failures are retried with exponential
// backoff; client errors are not.
func (c *Client) FetchClimateSeries(ctx context.Context, at domain.Point, start, end time.Time) ([]domain.ClimateObservation, error) {
	params := url.Values{
		"parameters": {paramPrecipitation + "," + paramTemperature},
		"community":  {c.community},
		"longitude":  {fmt.Sprintf("%.4f", at.Lon)},
		"latitude":   {fmt.Sprintf("%.4f", at.Lat)},
		"start":      {start.UTC().Format(dateLayout)},
		"end":        {end.UTC().Format(dateLayout)},
		"format":     {"JSON"},
	}
	fullURL := c.baseURL + "/temporal/daily/point?" + params.Encode()

	var series []domain.ClimateObservation
	op := func() error {
		var err error
		series, err = c.doRequest(ctx, fullURL)
		return err
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("climate request failed, retrying", "error", err, "backoff", wait)
	}

	if err := backoff.RetryNotify(op, c.newBackOff(ctx), notify); err != nil {
		c.metrics.ClimateRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	if len(series) == 0 {
		c.metrics.ClimateRequests.WithLabelValues("empty").Inc()
		return nil, nil
	}
	c.metrics.ClimateRequests.WithLabelValues("success").Inc()
	return series, nil
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.initialBackoff
	bo.MaxInterval = 5 * time.Second
	bo.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(bo, uint64(c.maxRetries)), ctx)
}

func (c *Client) doRequest(ctx context.Context, fullURL string) ([]domain.ClimateObservation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.ClimateAPIDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(fmt.Errorf("climate request: %w", err))
		}
		return nil, fmt.Errorf("climate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		statusErr := &StatusError{Code: resp.StatusCode, Body: string(body)}
		if resp.StatusCode >= 500 {
			return nil, statusErr
		}
		return nil, backoff.Permanent(statusErr)
	}

	var powerResp response
	if err := json.NewDecoder(resp.Body).Decode(&powerResp); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return powerResp.observations()
}

// IsClientError reports whether err is a StatusError for a 4xx response,
// meaning the request itself was rejected rather than the upstream failing.
func IsClientError(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code >= 400 && se.Code < 500
}

// POWER API response types.

type response struct {
	Header struct {
		FillValue *float64 `json:"fill_value"`
	} `json:"header"`
	Properties struct {
		Parameter map[string]map[string]float64 `json:"parameter"`
	} `json:"properties"`
}

// observations joins the precipitation and temperature maps by date. A day
// is kept only when both values are present and neither is the fill value.
func (r response) observations() ([]domain.ClimateObservation, error) {
	fill := defaultFillValue
	if r.Header.FillValue != nil {
		fill = *r.Header.FillValue
	}

	precip := r.Properties.Parameter[paramPrecipitation]
	temp := r.Properties.Parameter[paramTemperature]

	out := make([]domain.ClimateObservation, 0, len(precip))
	for key, p := range precip {
		t, ok := temp[key]
		if !ok || p == fill || t == fill {
			continue
		}
		date, err := time.Parse(dateLayout, key)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("parse date %q: %w", key, err))
		}
		out = append(out, domain.ClimateObservation{
			Date:            date,
			PrecipitationMm: p,
			TemperatureC:    t,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}
