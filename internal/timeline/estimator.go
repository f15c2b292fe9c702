package timeline

import (
	"math"
	"math/rand/v2"
	"sync"
)

// Post-repair clarity band, [RepairFloor, RepairCeil).
const (
	RepairFloor = 85.0
	RepairCeil  = 95.0
)

// RepairEstimator predicts the clarity of a word after repair.
type RepairEstimator interface {
	Estimate(t WordToken) float64
}

// RandomEstimator draws uniformly from the repair band.
type RandomEstimator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomEstimator seeds a RandomEstimator.
func NewRandomEstimator(seed uint64) *RandomEstimator {
	return &RandomEstimator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (e *RandomEstimator) Estimate(WordToken) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return RepairFloor + e.rng.Float64()*(RepairCeil-RepairFloor)
}

// LinearEstimator maps the pre-repair score onto the repair band, so a word
// that was nearly clear ends up clearer than one that was buried.
type LinearEstimator struct{}

func (LinearEstimator) Estimate(t WordToken) float64 {
	return RepairFloor + max(0, min(t.Score, 99.9))/10
}

// FixedEstimator always returns the same value.
type FixedEstimator float64

func (f FixedEstimator) Estimate(WordToken) float64 { return float64(f) }

// clampRepair keeps estimator output inside the repair band.
func clampRepair(v float64) float64 {
	if math.IsNaN(v) || v < RepairFloor {
		return RepairFloor
	}
	if v >= RepairCeil {
		return RepairCeil - 0.01
	}
	return v
}
