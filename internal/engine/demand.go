package engine

import (
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/firmsim/internal/config"
)

// DemandField generates the daily quantity consumers buy from each firm.
// Demand drifts smoothly over days along one noise axis per firm, and falls
// as a firm's price rises above the reference price.
type DemandField struct {
	noise opensimplex.Noise
	cfg   config.DemandConfig
}

func NewDemandField(seed int64, cfg config.DemandConfig) *DemandField {
	if cfg.Scale <= 0 {
		cfg.Scale = 0.1
	}
	return &DemandField{noise: opensimplex.NewNormalized(seed), cfg: cfg}
}

// Level is the price-independent demand for the firm at slot on day.
func (d *DemandField) Level(day uint64, slot int) float64 {
	// Two octaves: a slow trend and a faster wobble.
	n := octaveNoise(d.noise, float64(day), float64(slot)*7.31, 2, d.cfg.Scale, 0.5)
	return math.Max(0, d.cfg.Base*(1+d.cfg.Amplitude*(2*n-1)))
}

// Quantity is the whole number of units demanded at price.
func (d *DemandField) Quantity(day uint64, slot int, price float64) int {
	level := d.Level(day, slot)
	if d.cfg.ReferencePrice > 0 && d.cfg.Elasticity > 0 && price > 0 {
		level *= math.Pow(d.cfg.ReferencePrice/price, d.cfg.Elasticity)
	}
	if math.IsNaN(level) || math.IsInf(level, 0) {
		return 0
	}
	return int(math.Round(level))
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
