package vad

import (
	"time"

	"github.com/Tesseric/careless-whisper/internal/audio"
)

// Config sets the segmentation timing knobs.
type Config struct {
	// SilenceHold is how much continuous silence after speech closes a chunk.
	SilenceHold time.Duration
	// MinChunk is the shortest chunk worth transcribing. Shorter chunks at a
	// silence boundary are discarded as noise blips.
	MinChunk time.Duration
	// MaxChunk force-closes a chunk regardless of voice state so live
	// feedback keeps flowing during long monologues.
	MaxChunk time.Duration
}

// Segmenter watches the canonical batch stream for chunk boundaries. It
// feeds both session buffers and decides when the since-last-boundary
// buffer's contents become a transcription chunk. Driven entirely from the
// capture callback; no locking of its own state is needed.
type Segmenter struct {
	det     Detector
	session *audio.Buffer
	chunk   *audio.Buffer

	holdSamples int
	minSamples  int
	maxSamples  int

	speechActive bool
	silenceRun   int
}

// New wires a segmenter over the whole-session and per-chunk buffers.
func New(det Detector, session, chunk *audio.Buffer, cfg Config) *Segmenter {
	return &Segmenter{
		det:         det,
		session:     session,
		chunk:       chunk,
		holdSamples: audio.SamplesFor(cfg.SilenceHold),
		minSamples:  audio.SamplesFor(cfg.MinChunk),
		maxSamples:  audio.SamplesFor(cfg.MaxChunk),
	}
}

// Process appends one canonical batch and returns a completed chunk, or nil
// when no boundary was reached or the chunk was too short to keep.
//
// The silence run accumulates across batches and resets on any speech
// batch. A boundary needs either speech followed by the full silence hold,
// or the chunk hitting its maximum length. Only the max-length case may
// emit a chunk shorter than the minimum.
func (s *Segmenter) Process(batch []float32) []float32 {
	if len(batch) == 0 {
		return nil
	}
	s.session.Append(batch)
	s.chunk.Append(batch)

	if s.det.IsSpeech(batch) {
		s.speechActive = true
		s.silenceRun = 0
	} else {
		s.silenceRun += len(batch)
	}

	silenceBoundary := s.speechActive && s.silenceRun >= s.holdSamples
	forced := s.chunk.Len() >= s.maxSamples
	if !silenceBoundary && !forced {
		return nil
	}

	samples := s.chunk.Flush()
	s.speechActive = false
	s.silenceRun = 0
	if len(samples) < s.minSamples && !forced {
		return nil
	}
	return samples
}

// Flush drains whatever is left since the last boundary and resets the
// voice state. Called once at session stop for the final tail.
func (s *Segmenter) Flush() []float32 {
	s.speechActive = false
	s.silenceRun = 0
	return s.chunk.Flush()
}
