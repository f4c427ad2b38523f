// Package vad decides where spoken chunks end in the canonical sample
// stream.
package vad

import "math"

// Detector classifies one canonical batch as speech or not. Implementations
// keep their own state and are driven from the capture callback path, so
// they must not block.
type Detector interface {
	IsSpeech(batch []float32) bool
}

// Energy is the default detector: batch RMS against a fixed threshold.
// Simple, zero-latency, and good enough next to a 600 ms silence hold.
type Energy struct {
	Threshold float64
}

func (e Energy) IsSpeech(batch []float32) bool {
	return rms(batch) >= e.Threshold
}

func rms(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
