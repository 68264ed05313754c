package bands

// smoother is an asymmetric one-pole filter. Rising input is tracked with
// the attack coefficient, falling input with the decay coefficient, so
// hits land fast and fade slow.
type smoother struct {
	attack float64
	decay  float64
	value  float64
}

func newSmoother(attack, decay float64) *smoother {
	return &smoother{attack: attack, decay: decay}
}

// Update advances the filter by one frame and returns the new value.
// decayMult stretches the release time, so 2 falls half as fast; 1 is
// the configured decay.
func (s *smoother) Update(target, decayMult float64) float64 {
	coeff := s.decay
	if decayMult > 0 {
		coeff = s.decay / decayMult
	}
	if target > s.value {
		coeff = s.attack
	}
	s.value += (target - s.value) * coeff
	if s.value < 0 {
		s.value = 0
	}
	return s.value
}

// envelope tracks beat intensity: it snaps up on a hit and decays
// multiplicatively, which reads as a flash on the strip.
type envelope struct {
	attack float64
	decay  float64
	value  float64
}

func newEnvelope(attack, decay float64) *envelope {
	return &envelope{attack: attack, decay: decay}
}

func (e *envelope) Update(intensity float64) float64 {
	if intensity > e.value {
		e.value += (intensity - e.value) * e.attack
	} else {
		e.value *= e.decay
	}
	if e.value < 0.005 {
		e.value = 0
	}
	return e.value
}
