package audio

import "github.com/spotrgb/agent/internal/config"

// agc is an automatic gain control: it steers overall level toward a
// target so quiet masters still light the strip and loud ones do not pin
// it. Gain moves slowly down (attack, on loud input) and slowly up
// (release, on quiet input).
type agc struct {
	cfg  config.AudioConfig
	gain float64
}

func newAGC(cfg config.AudioConfig) *agc {
	return &agc{cfg: cfg, gain: 1}
}

// Update adapts the gain from the overall volume and returns it. The
// same gain is then applied to every band so their balance is preserved.
func (a *agc) Update(volume float64) float64 {
	if !a.cfg.AGCEnabled {
		a.gain = 1
		return 1
	}
	if volume > 0.01 {
		desired := a.cfg.AGCTarget / volume
		if desired > a.cfg.AGCMaxGain {
			desired = a.cfg.AGCMaxGain
		}
		if desired < a.cfg.AGCMinGain {
			desired = a.cfg.AGCMinGain
		}
		coeff := a.cfg.AGCRelease
		if desired < a.gain {
			coeff = a.cfg.AGCAttack
		}
		a.gain += (desired - a.gain) * coeff
	}
	return a.gain
}

// Gain is the current AGC gain, exposed for monitoring.
func (a *agc) Gain() float64 {
	return a.gain
}

// compress applies a soft-knee downward compressor to one level sample.
// Levels below the threshold pass through, levels above are reduced by
// the ratio, with a smooth transition across the knee. Makeup gain is
// applied to the result.
func compress(level float64, cfg config.AudioConfig) float64 {
	t, r, k := cfg.CompressorThreshold, cfg.CompressorRatio, cfg.CompressorKnee
	if r <= 1 {
		return clampUnit(level * cfg.CompressorMakeup)
	}

	var out float64
	switch {
	case level < t-k/2:
		out = level
	case level > t+k/2:
		out = t + (level-t)/r
	default:
		// Quadratic interpolation across the knee.
		x := level - t + k/2
		out = level + (1/r-1)*x*x/(2*k)
	}
	return clampUnit(out * cfg.CompressorMakeup)
}

// dynamicFloor tracks the quiet-passage noise floor and subtracts it, so
// hiss and bleed do not glow the strip between songs. The floor only
// builds while the signal stays below the threshold and drains fast when
// real signal returns.
type dynamicFloor struct {
	cfg   config.AudioConfig
	floor float64
}

func newDynamicFloor(cfg config.AudioConfig) *dynamicFloor {
	return &dynamicFloor{cfg: cfg}
}

func (d *dynamicFloor) Apply(level float64) float64 {
	if !d.cfg.DynamicFloorEnabled {
		return level
	}
	if level < d.cfg.DynamicFloorThresh {
		d.floor += (level - d.floor) * 0.02
		if d.floor > d.cfg.DynamicFloorMax {
			d.floor = d.cfg.DynamicFloorMax
		}
	} else {
		d.floor *= 0.8
	}
	out := level - d.floor
	if out < 0 {
		return 0
	}
	return out
}

// smoothingDecayMult slows decay at low volume so quiet passages shimmer
// instead of strobing. Returns a multiplier for the visual decay time.
func smoothingDecayMult(volume float64, cfg config.AudioConfig) float64 {
	if !cfg.AdaptiveSmoothing || volume >= cfg.LowVolThresh {
		return 1
	}
	if cfg.LowVolThresh <= 0 {
		return 1
	}
	// Scales linearly from LowVolMult at silence down to 1 at the threshold.
	t := volume / cfg.LowVolThresh
	return cfg.LowVolMult + (1-cfg.LowVolMult)*t
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
