// SPDX-License-Identifier: MIT
package analysis

import "math"

// SmoothingCoefficient converts a time constant in milliseconds to a
// per-frame feedback coefficient in [0, 1). A zero time disables smoothing.
//
//	coef = exp(log10(0.01) / (sampleRate * 0.001 * ms * 0.001))
func SmoothingCoefficient(sampleRate int, ms float64) float64 {
	if sampleRate <= 0 || ms <= 0 {
		return 0
	}
	return math.Exp(math.Log10(0.01) / (float64(sampleRate) * 0.001 * ms * 0.001))
}

// Smoother applies exponential attack/decay across frames. A falling value
// is pulled back towards the previous frame by the attack coefficient, a
// rising one by the decay coefficient.
type Smoother struct {
	attack float64
	decay  float64
	prev   []float64
	seeded bool
}

// NewSmoother derives both coefficients from their time constants.
func NewSmoother(sampleRate int, attackMs, decayMs float64) *Smoother {
	s := &Smoother{}
	s.SetTimes(sampleRate, attackMs, decayMs)
	return s
}

// SetTimes recomputes the coefficients and keeps the history.
func (s *Smoother) SetTimes(sampleRate int, attackMs, decayMs float64) {
	s.attack = SmoothingCoefficient(sampleRate, attackMs)
	s.decay = SmoothingCoefficient(sampleRate, decayMs)
}

// Coefficients returns the attack and decay coefficients.
func (s *Smoother) Coefficients() (attack, decay float64) {
	return s.attack, s.decay
}

// Smooth filters cur in place against the previous frame and remembers the
// result. The first frame, and any frame whose length differs from the
// previous one, passes through unchanged and reseeds the history.
func (s *Smoother) Smooth(cur []float64) {
	if !s.seeded || len(s.prev) != len(cur) {
		s.prev = append(s.prev[:0], cur...)
		s.seeded = true
		return
	}

	for i, c := range cur {
		p := s.prev[i]
		if c < p {
			c += s.attack * (p - c)
		} else if c > p {
			c += s.decay * (p - c)
		}
		cur[i] = c
		s.prev[i] = c
	}
}

// Reset forgets the history; the next frame reseeds it.
func (s *Smoother) Reset() {
	s.prev = s.prev[:0]
	s.seeded = false
}
