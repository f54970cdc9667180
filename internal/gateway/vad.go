package gateway

import "math"

// VADEvent reports a speech boundary crossing detected by the Detector.
type VADEvent int

const (
	VADNone VADEvent = iota
	VADStarted
	VADStopped
)

// Detector is an energy-based voice activity detector over PCM16 chunks.
// Speech starts when normalized RMS crosses the threshold and stops once
// the silence duration elapses without crossing it again.
type Detector struct {
	threshold  float64
	silenceMs  int
	sampleRate int

	speaking       bool
	silenceSamples int
}

func NewDetector(threshold float64, silenceMs, sampleRate int) *Detector {
	if threshold <= 0 {
		threshold = 0.5
	}
	if silenceMs <= 0 {
		silenceMs = 800
	}
	return &Detector{threshold: threshold, silenceMs: silenceMs, sampleRate: sampleRate}
}

// Feed consumes one chunk of samples and reports at most one boundary event.
func (d *Detector) Feed(samples []int16) VADEvent {
	if len(samples) == 0 {
		return VADNone
	}
	level := rms(samples)

	if !d.speaking {
		if level >= d.threshold {
			d.speaking = true
			d.silenceSamples = 0
			return VADStarted
		}
		return VADNone
	}

	if level >= d.threshold {
		d.silenceSamples = 0
		return VADNone
	}
	d.silenceSamples += len(samples)
	if d.silenceSamples >= d.silenceMs*d.sampleRate/1000 {
		d.speaking = false
		d.silenceSamples = 0
		return VADStopped
	}
	return VADNone
}

func (d *Detector) Speaking() bool { return d.speaking }

func (d *Detector) Reset() {
	d.speaking = false
	d.silenceSamples = 0
}

func rms(samples []int16) float64 {
	var sum float64
	for _, s := range samples {
		f := float64(s)
		sum += f * f
	}
	return math.Sqrt(sum/float64(len(samples))) / 32768
}
