package domain

import (
	"math/rand/v2"
	"sync"
	"time"
)

// RandomSource yields floats in [0,1). Implementations must be safe for
// concurrent use.
type RandomSource interface {
	Float64() float64
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRandomSource returns a seeded source. A zero seed draws one from the clock.
func NewRandomSource(seed uint64) RandomSource {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &lockedRand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

// FixedRandom always returns the same value. Useful in tests.
type FixedRandom float64

func (f FixedRandom) Float64() float64 { return float64(f) }
