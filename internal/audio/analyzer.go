// Package audio turns PCM sample frames into band levels for the
// visualizer: Goertzel band energies, an AGC/compressor/floor DSP chain,
// and beat detection with kick, snare and peak states.
package audio

import (
	"math"
	"time"

	"github.com/spotrgb/agent/internal/config"
	"github.com/spotrgb/agent/internal/models"
)

// probesPerBand is how many frequencies are sampled across each band range.
const probesPerBand = 4

// historyLen is how many recent frames feed the beat-detection average,
// roughly half a second at typical frame rates.
const historyLen = 30

// thresholds for the beat detector, as flux over the recent average.
type thresholds struct {
	kick  float64
	snare float64
}

// sensitivityThresholds maps the preset names. Custom reads the
// configured values.
func sensitivityThresholds(cfg config.AudioConfig) thresholds {
	switch cfg.Sensitivity {
	case "low":
		return thresholds{kick: 0.60, snare: 0.50}
	case "high":
		return thresholds{kick: 0.30, snare: 0.25}
	case "ultra":
		return thresholds{kick: 0.20, snare: 0.15}
	case "custom":
		return thresholds{kick: cfg.CustomKick, snare: cfg.CustomSnare}
	default: // medium
		return thresholds{kick: 0.45, snare: 0.35}
	}
}

// Analyzer extracts band levels and beats from mono PCM frames. Not safe
// for concurrent use.
type Analyzer struct {
	cfg        config.AudioConfig
	sampleRate int
	thresh     thresholds

	agc *agc

	// One floor per band; each tracks its own noise level independently.
	percFloor   *dynamicFloor
	bassFloor   *dynamicFloor
	melodyFloor *dynamicFloor

	percHistory []float64
	bassHistory []float64

	beatState string
	beatUntil time.Time
	now       func() time.Time
}

// NewAnalyzer creates an analyzer for frames at the given sample rate.
func NewAnalyzer(cfg config.AudioConfig, sampleRate int) *Analyzer {
	return &Analyzer{
		cfg:         cfg,
		sampleRate:  sampleRate,
		thresh:      sensitivityThresholds(cfg),
		agc:         newAGC(cfg),
		percFloor:   newDynamicFloor(cfg),
		bassFloor:   newDynamicFloor(cfg),
		melodyFloor: newDynamicFloor(cfg),
		beatState:   "idle",
		now:         time.Now,
	}
}

// Analyze processes one frame of mono samples in [-1, 1].
func (a *Analyzer) Analyze(samples []float64) models.BandLevels {
	if len(samples) == 0 {
		return models.BandLevels{State: a.beatState, AGCGain: a.agc.Gain()}
	}

	volume := rms(samples)
	gain := a.agc.Update(volume)

	perc := a.bandEnergy(samples, a.cfg.PercussionBand)
	bass := a.bandEnergy(samples, a.cfg.BassBand)
	melody := a.bandEnergy(samples, a.cfg.MelodyBand)

	perc = a.percFloor.Apply(compress(clampUnit(perc*gain), a.cfg))
	bass = a.bassFloor.Apply(compress(clampUnit(bass*gain), a.cfg))
	melody = a.melodyFloor.Apply(compress(clampUnit(melody*gain), a.cfg))

	state, intensity := a.detectBeat(perc, bass)

	return models.BandLevels{
		Percussion:    perc,
		Bass:          bass,
		Melody:        melody,
		Volume:        clampUnit(volume * gain),
		BeatIntensity: intensity,
		State:         state,
		AGCGain:       gain,
	}
}

// DecayMult exposes the adaptive smoothing multiplier for the current
// volume, consumed by the render loop.
func (a *Analyzer) DecayMult(volume float64) float64 {
	return smoothingDecayMult(volume, a.cfg)
}

// bandEnergy is the strongest Goertzel magnitude across a few probe
// frequencies in the band range. The max, not the mean, so a pure tone
// registers at full strength wherever it falls in the band.
func (a *Analyzer) bandEnergy(samples []float64, band config.BandRange) float64 {
	if band.Max <= band.Min || band.Min <= 0 {
		return 0
	}
	nyquist := float64(a.sampleRate) / 2
	var peak float64
	step := (band.Max - band.Min) / float64(probesPerBand-1)
	for i := 0; i < probesPerBand; i++ {
		freq := band.Min + step*float64(i)
		if freq >= nyquist {
			break
		}
		if m := goertzel(samples, freq, a.sampleRate); m > peak {
			peak = m
		}
	}
	return peak
}

// detectBeat classifies the frame from the percussion and bass flux over
// their recent averages. A detected beat holds its state for the
// configured hold time so the monitor does not flicker.
func (a *Analyzer) detectBeat(perc, bass float64) (string, float64) {
	percFlux := perc - average(a.percHistory)
	bassFlux := bass - average(a.bassHistory)
	a.percHistory = push(a.percHistory, perc)
	a.bassHistory = push(a.bassHistory, bass)

	now := a.now()
	kick := percFlux > a.thresh.kick
	snare := bassFlux > a.thresh.snare

	switch {
	case kick && snare:
		a.beatState = "peak"
		a.beatUntil = now.Add(a.cfg.BeatHold.Duration)
		return "peak", 1
	case kick:
		a.beatState = "kick"
		a.beatUntil = now.Add(a.cfg.BeatHold.Duration)
		intensity := percFlux / a.thresh.kick * 0.8
		return "kick", clampUnit(intensity)
	case snare:
		a.beatState = "snare"
		a.beatUntil = now.Add(a.cfg.BeatHold.Duration)
		return "snare", 0.6
	}

	if a.beatState != "idle" && now.After(a.beatUntil) {
		a.beatState = "idle"
	}
	return a.beatState, 0
}

// goertzel computes the normalized single-frequency magnitude of the
// frame. A full-scale sine at freq yields roughly 1.0.
func goertzel(samples []float64, freq float64, sampleRate int) float64 {
	omega := 2 * math.Pi * freq / float64(sampleRate)
	coeff := 2 * math.Cos(omega)
	var s1, s2 float64
	for _, x := range samples {
		s0 := x + coeff*s1 - s2
		s2 = s1
		s1 = s0
	}
	power := s1*s1 + s2*s2 - coeff*s1*s2
	if power < 0 {
		power = 0
	}
	return 2 * math.Sqrt(power) / float64(len(samples))
}

func rms(samples []float64) float64 {
	var sum float64
	for _, x := range samples {
		sum += x * x
	}
	return math.Sqrt(sum / float64(len(samples)))
}

func average(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func push(history []float64, v float64) []float64 {
	history = append(history, v)
	if len(history) > historyLen {
		history = history[1:]
	}
	return history
}
