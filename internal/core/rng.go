package core

import mrand "math/rand"

// Rand is the random source injected into game start and death-message
// selection. Keeping it an interface lets tests swap in a deterministic
// generator.
type Rand interface {
	// Intn returns a value in [0, n). n must be > 0.
	Intn(n int) int
}

// NewSeededRand returns a production Rand backed by math/rand.
func NewSeededRand(seed int64) Rand {
	return mrand.New(mrand.NewSource(seed))
}

// StepRand is a deterministic Rand for tests: Intn(n) yields next % n and
// then advances next by step.
type StepRand struct {
	Next uint64
	Step uint64
}

func NewStepRand(next, step uint64) *StepRand {
	return &StepRand{Next: next, Step: step}
}

func (r *StepRand) Intn(n int) int {
	v := r.Next % uint64(n)
	r.Next += r.Step
	return int(v)
}
