package audio

import (
	"sync"
	"time"
)

// CanonicalRate is the sample rate every stage downstream of capture
// conversion works in. Whisper models expect 16 kHz mono.
const CanonicalRate = 16000

// Buffer accumulates float32 samples from the capture callback. Append and
// Flush may be called from different goroutines; the capture path only ever
// appends, so the critical section stays short enough for a device callback.
type Buffer struct {
	mu      sync.Mutex
	samples []float32
}

// NewBuffer returns an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Append copies samples into the buffer.
func (b *Buffer) Append(samples []float32) {
	if len(samples) == 0 {
		return
	}
	b.mu.Lock()
	b.samples = append(b.samples, samples...)
	b.mu.Unlock()
}

// Flush returns everything accumulated so far and resets the buffer in one
// step. A flush with nothing accumulated returns an empty slice.
func (b *Buffer) Flush() []float32 {
	b.mu.Lock()
	out := b.samples
	b.samples = nil
	b.mu.Unlock()
	if out == nil {
		return []float32{}
	}
	return out
}

// Len returns the number of buffered samples.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples)
}

// Duration returns the buffered audio length at the canonical rate.
func (b *Buffer) Duration() time.Duration {
	return DurationOf(b.Len())
}

// DurationOf converts a canonical-rate sample count to a duration.
func DurationOf(sampleCount int) time.Duration {
	return time.Duration(sampleCount) * time.Second / CanonicalRate
}

// SamplesFor converts a duration to a canonical-rate sample count.
func SamplesFor(d time.Duration) int {
	return int(d * CanonicalRate / time.Second)
}
