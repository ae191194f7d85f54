// Package surface produces display-only soil moisture and NDVI readings.
// The values are uniform random placeholders and never feed the scoring model.
package surface

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/couchcryptid/agrisense/internal/domain"
)

const (
	minSoilMoisturePct = 30.0
	maxSoilMoisturePct = 50.0
	minNDVI            = 0.2
	maxNDVI            = 0.8
	maxSeriesDays      = 366
)

// Generator draws placeholder readings. It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator creates a Generator seeded from the runtime's random source.
func NewGenerator() *Generator {
	return NewSeededGenerator(rand.Uint64(), rand.Uint64())
}

// NewSeededGenerator creates a Generator with a fixed PCG seed, for
// reproducible output.
func NewSeededGenerator(seed1, seed2 uint64) *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(seed1, seed2))}
}

// SoilMoisture returns a soil moisture percentage in [30, 50). The location
// and day are accepted for interface stability but do not influence the draw.
func (g *Generator) SoilMoisture(_ domain.Point, _ time.Time) float64 {
	return g.uniform(minSoilMoisturePct, maxSoilMoisturePct)
}

// NDVI returns a vegetation index in [0.2, 0.8).
func (g *Generator) NDVI(_ domain.Point, _ time.Time) float64 {
	return g.uniform(minNDVI, maxNDVI)
}

// SurfaceSeries returns one reading per day starting at start. days is
// clamped to [0, 366].
func (g *Generator) SurfaceSeries(at domain.Point, start time.Time, days int) []domain.SurfaceReading {
	days = min(max(days, 0), maxSeriesDays)
	out := make([]domain.SurfaceReading, days)
	for i := range out {
		day := start.AddDate(0, 0, i)
		out[i] = domain.SurfaceReading{
			Date:            day,
			SoilMoisturePct: g.SoilMoisture(at, day),
			NDVI:            g.NDVI(at, day),
		}
	}
	return out
}

func (g *Generator) uniform(lo, hi float64) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return lo + g.rng.Float64()*(hi-lo)
}
