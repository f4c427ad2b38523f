// Package session runs the recording pipeline: it owns the capture
// buffers, cuts chunks through the segmenter, feeds them to the engine
// one at a time, and assembles the final transcript.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Tesseric/careless-whisper/internal/audio"
	"github.com/Tesseric/careless-whisper/internal/engine"
	"github.com/Tesseric/careless-whisper/internal/filter"
	"github.com/Tesseric/careless-whisper/internal/metrics"
)

// chunk is one segment of session audio queued for transcription.
type chunk struct {
	samples []float32
	seq     int
}

// orchestrator serializes engine calls for one session. Chunks are
// processed strictly in arrival order, one at a time; a failed chunk
// contributes nothing and the queue keeps moving.
type orchestrator struct {
	eng    engine.Transcriber
	logger *logrus.Logger
	events Events
	met    *metrics.Metrics

	mu       sync.Mutex
	pending  []chunk
	inFlight bool
	closed   bool
	parts    []string
	seq      int

	wake chan struct{}
	done chan struct{}
}

func newOrchestrator(eng engine.Transcriber, logger *logrus.Logger, events Events, met *metrics.Metrics) *orchestrator {
	return &orchestrator{
		eng:    eng,
		logger: logger,
		events: events,
		met:    met,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (o *orchestrator) start(ctx context.Context) {
	go o.run(ctx)
}

// enqueue adds a chunk from the capture callback. Never blocks.
func (o *orchestrator) enqueue(samples []float32) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		o.logger.Debugf("chunk after close dropped: %d samples", len(samples))
		return
	}
	o.seq++
	o.pending = append(o.pending, chunk{samples: samples, seq: o.seq})
	depth := len(o.pending)
	o.mu.Unlock()

	o.met.RecordChunkEmitted(audio.DurationOf(len(samples)), depth)
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

func (o *orchestrator) run(ctx context.Context) {
	defer close(o.done)
	for {
		o.mu.Lock()
		if len(o.pending) == 0 {
			closed := o.closed
			o.mu.Unlock()
			if closed {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-o.wake:
			}
			continue
		}
		c := o.pending[0]
		o.pending = o.pending[1:]
		depth := len(o.pending)
		o.inFlight = true
		o.mu.Unlock()

		o.met.RecordChunkDequeued(depth)
		o.transcribe(ctx, c.samples, c.seq)

		o.mu.Lock()
		o.inFlight = false
		o.mu.Unlock()
	}
}

// transcribe runs one engine call and applies the fragment. On failure
// the chunk contributes nothing; the session continues.
func (o *orchestrator) transcribe(ctx context.Context, samples []float32, seq int) {
	start := time.Now()
	text, err := o.eng.Transcribe(ctx, samples)
	if err != nil {
		o.logger.Errorf("transcribe chunk %d (%s): %v", seq, audio.DurationOf(len(samples)), err)
		o.met.RecordTranscriptionError()
		if o.events.OnError != nil {
			o.events.OnError(ErrorTranscription, err)
		}
		return
	}
	o.met.RecordTranscription(time.Since(start))
	o.logger.Debugf("chunk %d transcribed in %s", seq, time.Since(start).Round(time.Millisecond))
	o.apply(text)
}

// apply trims a fragment, drops it if the hallucination filter rejects
// it, and otherwise appends it to the running transcript.
func (o *orchestrator) apply(text string) {
	text = strings.TrimSpace(text)
	if filter.IsHallucination(text) {
		if text != "" {
			o.logger.Debugf("fragment filtered: %q", text)
			o.met.RecordFragmentFiltered()
		}
		return
	}
	o.mu.Lock()
	o.parts = append(o.parts, text)
	o.mu.Unlock()

	o.met.RecordFragmentAccepted()
	if o.events.OnChunkTranscribed != nil {
		o.events.OnChunkTranscribed(text)
	}
}

// applyFinal pushes the merged tail block through the same transcribe
// path as a queued chunk. Callers must wait for the queue to drain first
// so the engine never sees two calls at once.
func (o *orchestrator) applyFinal(ctx context.Context, samples []float32) {
	o.mu.Lock()
	o.seq++
	seq := o.seq
	o.mu.Unlock()
	o.transcribe(ctx, samples, seq)
}

// close stops intake and steals whatever was queued but never started.
// The caller merges those samples into the final block.
func (o *orchestrator) close() [][]float32 {
	o.mu.Lock()
	o.closed = true
	undequeued := o.pending
	o.pending = nil
	o.mu.Unlock()

	select {
	case o.wake <- struct{}{}:
	default:
	}
	out := make([][]float32, 0, len(undequeued))
	for _, c := range undequeued {
		out = append(out, c.samples)
	}
	return out
}

// waitIdle polls until no chunk is in flight or ctx expires.
func (o *orchestrator) waitIdle(ctx context.Context) {
	for {
		o.mu.Lock()
		busy := o.inFlight || len(o.pending) > 0
		o.mu.Unlock()
		if !busy {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(20 * time.Millisecond):
		}
	}
}

// transcript joins the accepted fragments with single spaces.
func (o *orchestrator) transcript() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return strings.Join(o.parts, " ")
}

func (o *orchestrator) queueDepth() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := len(o.pending)
	if o.inFlight {
		n++
	}
	return n
}
