//go:build power

package power

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/agrisense/internal/domain"
	"github.com/couchcryptid/agrisense/internal/observability"
)

// These tests hit the real NASA POWER API. No credentials are needed.
// Run with: go test -tags=power ./internal/adapter/power/ -v -count=1

func smokeClient() *Client {
	c := testClient(DefaultBaseURL, 2)
	c.httpClient = &http.Client{Timeout: 30 * time.Second}
	c.initialBackoff = time.Second
	c.metrics = observability.NewMetricsForTesting()
	return c
}

func TestSmoke_FetchClimateSeries(t *testing.T) {
	c := smokeClient()

	// A settled window well in the past so no day carries the fill value.
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)

	series, err := c.FetchClimateSeries(context.Background(), dhaka, start, end)
	require.NoError(t, err)
	require.NotEmpty(t, series)
	assert.Len(t, series, 30)

	summary, ok := domain.Summarize(series)
	require.True(t, ok)
	assert.Greater(t, summary.AvgTemperatureC, 20.0, "Dhaka in June should be warm")
	assert.GreaterOrEqual(t, summary.AvgRainfallMm, 0.0)
	t.Logf("summary: %+v", summary)
}

func TestSmoke_RecentWindow(t *testing.T) {
	c := smokeClient()

	start, end := domain.ObservationWindow(time.Now(), 90)
	series, err := c.FetchClimateSeries(context.Background(), dhaka, start, end)
	require.NoError(t, err)

	// The trailing days usually have not been processed yet and are dropped.
	assert.LessOrEqual(t, len(series), 91)
	t.Logf("observations in last 90 days: %d", len(series))
}
