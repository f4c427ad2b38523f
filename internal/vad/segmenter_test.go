package vad

import (
	"testing"
	"time"

	"github.com/Tesseric/careless-whisper/internal/audio"
)

const batchLen = 320 // 20 ms at the canonical rate

func speechBatch() []float32 {
	b := make([]float32, batchLen)
	for i := range b {
		b[i] = 0.1
	}
	return b
}

func silenceBatch() []float32 {
	return make([]float32, batchLen)
}

func newTestSegmenter(cfg Config) (*Segmenter, *audio.Buffer, *audio.Buffer) {
	session := audio.NewBuffer()
	chunk := audio.NewBuffer()
	return New(Energy{Threshold: 0.01}, session, chunk, cfg), session, chunk
}

func feed(s *Segmenter, batches int, batch func() []float32) [][]float32 {
	var emitted [][]float32
	for i := 0; i < batches; i++ {
		if out := s.Process(batch()); out != nil {
			emitted = append(emitted, out)
		}
	}
	return emitted
}

func TestBoundaryAfterSilenceHold(t *testing.T) {
	s, session, chunk := newTestSegmenter(Config{
		SilenceHold: 600 * time.Millisecond,
		MinChunk:    300 * time.Millisecond,
		MaxChunk:    10 * time.Second,
	})

	// 400 ms speech, 700 ms silence, 400 ms speech: exactly one boundary,
	// 600 ms into the silence.
	var emitted [][]float32
	emitted = append(emitted, feed(s, 20, speechBatch)...)
	emitted = append(emitted, feed(s, 35, silenceBatch)...)
	emitted = append(emitted, feed(s, 20, speechBatch)...)

	if len(emitted) != 1 {
		t.Fatalf("emitted %d chunks, want 1", len(emitted))
	}
	// 400 ms speech + 600 ms of the silence hold.
	if got, want := len(emitted[0]), audio.SamplesFor(time.Second); got != want {
		t.Fatalf("chunk has %d samples, want %d", got, want)
	}
	// Remaining 100 ms silence + 400 ms speech stay in the chunk buffer.
	if got, want := chunk.Len(), audio.SamplesFor(500*time.Millisecond); got != want {
		t.Fatalf("chunk buffer holds %d samples, want %d", got, want)
	}
	// The whole-session buffer keeps everything.
	if got, want := session.Len(), audio.SamplesFor(1500*time.Millisecond); got != want {
		t.Fatalf("session buffer holds %d samples, want %d", got, want)
	}
}

func TestSilenceRunAccumulatesAcrossBatches(t *testing.T) {
	s, _, _ := newTestSegmenter(Config{
		SilenceHold: 600 * time.Millisecond,
		MinChunk:    300 * time.Millisecond,
		MaxChunk:    10 * time.Second,
	})

	feed(s, 20, speechBatch)
	// 29 silence batches = 580 ms: one short of the hold.
	if got := feed(s, 29, silenceBatch); len(got) != 0 {
		t.Fatalf("boundary fired at 580 ms of silence")
	}
	// The 30th batch crosses 600 ms.
	if out := s.Process(silenceBatch()); out == nil {
		t.Fatalf("boundary did not fire at 600 ms of silence")
	}
}

func TestShortChunkDiscardedAtSilenceBoundary(t *testing.T) {
	s, _, chunk := newTestSegmenter(Config{
		SilenceHold: 100 * time.Millisecond,
		MinChunk:    300 * time.Millisecond,
		MaxChunk:    10 * time.Second,
	})

	// 60 ms speech + 100 ms silence = 160 ms chunk, under the minimum.
	if got := feed(s, 3, speechBatch); len(got) != 0 {
		t.Fatalf("unexpected emission during speech")
	}
	if got := feed(s, 5, silenceBatch); len(got) != 0 {
		t.Fatalf("sub-minimum chunk was emitted")
	}
	if chunk.Len() != 0 {
		t.Fatalf("chunk buffer not reset after discard: %d samples", chunk.Len())
	}
	// Discard also clears the voice state: bare silence afterwards must not
	// trigger another boundary.
	if got := feed(s, 20, silenceBatch); len(got) != 0 {
		t.Fatalf("boundary fired without speech")
	}
}

func TestMaxForcedEmitsBelowMinimum(t *testing.T) {
	s, _, _ := newTestSegmenter(Config{
		SilenceHold: 600 * time.Millisecond,
		MinChunk:    300 * time.Millisecond,
		MaxChunk:    200 * time.Millisecond,
	})

	emitted := feed(s, 10, speechBatch)
	if len(emitted) != 1 {
		t.Fatalf("emitted %d chunks, want 1", len(emitted))
	}
	if got, want := len(emitted[0]), audio.SamplesFor(200*time.Millisecond); got != want {
		t.Fatalf("forced chunk has %d samples, want %d", got, want)
	}
}

func TestMaxForcedKeepsCuttingLongSpeech(t *testing.T) {
	s, _, chunk := newTestSegmenter(Config{
		SilenceHold: 600 * time.Millisecond,
		MinChunk:    300 * time.Millisecond,
		MaxChunk:    time.Second,
	})

	// 2.5 s of continuous speech: two forced cuts, half a second left over.
	emitted := feed(s, 125, speechBatch)
	if len(emitted) != 2 {
		t.Fatalf("emitted %d chunks, want 2", len(emitted))
	}
	for i, c := range emitted {
		if got, want := len(c), audio.SamplesFor(time.Second); got != want {
			t.Fatalf("chunk %d has %d samples, want %d", i, got, want)
		}
	}
	if got, want := chunk.Len(), audio.SamplesFor(500*time.Millisecond); got != want {
		t.Fatalf("leftover %d samples, want %d", got, want)
	}
}

func TestSilenceOnlyNeverEmits(t *testing.T) {
	s, _, _ := newTestSegmenter(Config{
		SilenceHold: 600 * time.Millisecond,
		MinChunk:    300 * time.Millisecond,
		MaxChunk:    10 * time.Second,
	})
	if got := feed(s, 100, silenceBatch); len(got) != 0 {
		t.Fatalf("silence-only stream emitted %d chunks", len(got))
	}
}

func TestFlushReturnsTailAndResets(t *testing.T) {
	s, _, chunk := newTestSegmenter(Config{
		SilenceHold: 600 * time.Millisecond,
		MinChunk:    300 * time.Millisecond,
		MaxChunk:    10 * time.Second,
	})
	feed(s, 10, speechBatch)

	tail := s.Flush()
	if got, want := len(tail), audio.SamplesFor(200*time.Millisecond); got != want {
		t.Fatalf("tail has %d samples, want %d", got, want)
	}
	if chunk.Len() != 0 {
		t.Fatalf("chunk buffer not drained by flush")
	}
	// Voice state is gone: silence alone cannot close a boundary now.
	if got := feed(s, 40, silenceBatch); len(got) != 0 {
		t.Fatalf("boundary fired after flush without speech")
	}
}
