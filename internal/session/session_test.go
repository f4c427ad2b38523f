package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Tesseric/careless-whisper/internal/audio"
	"github.com/Tesseric/careless-whisper/internal/capture"
	"github.com/Tesseric/careless-whisper/internal/config"
	"github.com/Tesseric/careless-whisper/internal/engine"
	"github.com/Tesseric/careless-whisper/internal/logging"
)

// fakeSource lets tests push canonical batches straight into the
// recorder's capture callback.
type fakeSource struct {
	mu      sync.Mutex
	fn      capture.BatchFunc
	onDrop  capture.DropFunc
	started int
	stopped int

	startErr error
}

func (s *fakeSource) Start(fn capture.BatchFunc, onDrop capture.DropFunc) error {
	if s.startErr != nil {
		return s.startErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fn = fn
	s.onDrop = onDrop
	s.started++
	return nil
}

func (s *fakeSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fn = nil
	s.stopped++
	return nil
}

func (s *fakeSource) Close() error { return nil }

func (s *fakeSource) Dropped() int64 { return 0 }

func (s *fakeSource) push(samples []float32) {
	s.mu.Lock()
	fn := s.fn
	s.mu.Unlock()
	if fn != nil {
		fn(samples)
	}
}

func (s *fakeSource) pushDrop(err error) {
	s.mu.Lock()
	onDrop := s.onDrop
	s.mu.Unlock()
	if onDrop != nil {
		onDrop(err)
	}
}

func (s *fakeSource) startCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// eventLog records callbacks under a lock.
type eventLog struct {
	mu     sync.Mutex
	chunks []string
	finals []string
	kinds  []ErrorKind
}

func (e *eventLog) events() Events {
	return Events{
		OnChunkTranscribed: func(text string) {
			e.mu.Lock()
			e.chunks = append(e.chunks, text)
			e.mu.Unlock()
		},
		OnSessionFinalized: func(text string) {
			e.mu.Lock()
			e.finals = append(e.finals, text)
			e.mu.Unlock()
		},
		OnError: func(kind ErrorKind, _ error) {
			e.mu.Lock()
			e.kinds = append(e.kinds, kind)
			e.mu.Unlock()
		},
	}
}

func (e *eventLog) finalized() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.finals...)
}

func (e *eventLog) errorKinds() []ErrorKind {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]ErrorKind(nil), e.kinds...)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	cfg.Archive.Enabled = false
	return cfg
}

// batch sizes below are 20 ms at 16 kHz.
const testBatch = 320

func speech(batches int) [][]float32 {
	out := make([][]float32, batches)
	for i := range out {
		b := make([]float32, testBatch)
		for j := range b {
			b[j] = 0.1
		}
		out[i] = b
	}
	return out
}

func silence(batches int) [][]float32 {
	out := make([][]float32, batches)
	for i := range out {
		out[i] = make([]float32, testBatch)
	}
	return out
}

func wavFileIn(t *testing.T, dir string) string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".wav") {
			names = append(names, e.Name())
		}
	}
	if len(names) != 1 {
		t.Fatalf("found %d wav files in %s, want 1", len(names), dir)
	}
	return names[0]
}

func waitFor(t *testing.T, d time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestStartRequiresReadyEngine(t *testing.T) {
	eng := newFakeEngine()
	eng.ready = false
	src := &fakeSource{}
	r := NewRecorder(testConfig(t), logging.NewTestLogger(), src, eng, Events{}, nil)

	err := r.Start()
	if !errors.Is(err, engine.ErrNotReady) {
		t.Fatalf("err = %v, want ErrNotReady", err)
	}
	if got := r.State(); got != StateIdle {
		t.Fatalf("state = %s, want idle", got)
	}
	if src.startCount() != 0 {
		t.Fatalf("capture started despite unready engine")
	}
}

func TestStartFailsWhenCaptureFails(t *testing.T) {
	src := &fakeSource{startErr: errors.New("device busy")}
	r := NewRecorder(testConfig(t), logging.NewTestLogger(), src, newFakeEngine(), Events{}, nil)

	if err := r.Start(); err == nil {
		t.Fatalf("expected capture error")
	}
	if got := r.State(); got != StateIdle {
		t.Fatalf("state = %s, want idle", got)
	}
}

func TestStopWithoutStartIsNoOp(t *testing.T) {
	log := &eventLog{}
	r := NewRecorder(testConfig(t), logging.NewTestLogger(), &fakeSource{}, newFakeEngine(), log.events(), nil)

	final, err := r.Stop(context.Background())
	if err != nil || final != "" {
		t.Fatalf("stop = (%q, %v), want empty no-op", final, err)
	}
	if len(log.finalized()) != 0 {
		t.Fatalf("no-op stop fired OnSessionFinalized")
	}
}

func TestStartWhileRecordingIsNoOp(t *testing.T) {
	src := &fakeSource{}
	r := NewRecorder(testConfig(t), logging.NewTestLogger(), src, newFakeEngine(), Events{}, nil)

	if err := r.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := r.Start(); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if src.startCount() != 1 {
		t.Fatalf("capture started %d times, want 1", src.startCount())
	}
	if _, err := r.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	eng := newFakeEngine()
	eng.fn = func([]float32) (string, error) { return "hello", nil }
	src := &fakeSource{}
	log := &eventLog{}
	r := NewRecorder(testConfig(t), logging.NewTestLogger(), src, eng, log.events(), nil)

	if err := r.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := r.State(); got != StateRecording {
		t.Fatalf("state = %s, want recording", got)
	}

	// 1 s of speech, then 700 ms of silence crosses the 600 ms hold and
	// cuts one chunk.
	for _, b := range speech(50) {
		src.push(b)
	}
	for _, b := range silence(35) {
		src.push(b)
	}
	waitFor(t, 3*time.Second, "chunk transcription", func() bool {
		return eng.callCount() == 1
	})

	final, err := r.Stop(context.Background())
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if final != "hello" {
		t.Fatalf("final = %q, want %q", final, "hello")
	}
	if got := r.State(); got != StateIdle {
		t.Fatalf("state = %s, want idle", got)
	}
	if got := log.finalized(); len(got) != 1 || got[0] != "hello" {
		t.Fatalf("finalized = %v, want [hello]", got)
	}
	// The 100 ms of silence left after the boundary is under the chunk
	// minimum, so stop must not trigger a second engine call.
	if got := eng.callCount(); got != 1 {
		t.Fatalf("engine calls = %d, want 1", got)
	}
	if eng.overlap.Load() {
		t.Fatalf("engine saw overlapping calls")
	}
}

func TestStopTranscribesUnflushedTail(t *testing.T) {
	eng := newFakeEngine()
	eng.fn = func([]float32) (string, error) { return "hello", nil }
	src := &fakeSource{}
	r := NewRecorder(testConfig(t), logging.NewTestLogger(), src, eng, Events{}, nil)

	if err := r.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	// 500 ms of speech with no trailing silence: nothing is emitted
	// until stop merges the tail into the final block.
	for _, b := range speech(25) {
		src.push(b)
	}
	final, err := r.Stop(context.Background())
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if final != "hello" {
		t.Fatalf("final = %q, want %q", final, "hello")
	}
	if got := eng.callCount(); got != 1 {
		t.Fatalf("engine calls = %d, want 1", got)
	}
	eng.mu.Lock()
	got := len(eng.calls[0])
	eng.mu.Unlock()
	if got != 25*testBatch {
		t.Fatalf("final block = %d samples, want %d", got, 25*testBatch)
	}
}

func TestShortSessionDiscardedWithoutEngineCalls(t *testing.T) {
	eng := newFakeEngine()
	src := &fakeSource{}
	log := &eventLog{}
	r := NewRecorder(testConfig(t), logging.NewTestLogger(), src, eng, log.events(), nil)

	if err := r.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	// 200 ms is under the 300 ms session minimum.
	for _, b := range speech(10) {
		src.push(b)
	}
	final, err := r.Stop(context.Background())
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if final != "" {
		t.Fatalf("final = %q, want empty", final)
	}
	if got := eng.callCount(); got != 0 {
		t.Fatalf("engine calls = %d, want 0 for a discarded session", got)
	}
	if got := log.finalized(); len(got) != 1 || got[0] != "" {
		t.Fatalf("finalized = %v, want one empty transcript", got)
	}
	if got := r.State(); got != StateIdle {
		t.Fatalf("state = %s, want idle", got)
	}
}

func TestMaxDurationAutoStops(t *testing.T) {
	eng := newFakeEngine()
	eng.fn = func([]float32) (string, error) { return "hello", nil }
	src := &fakeSource{}
	log := &eventLog{}
	cfg := testConfig(t)
	cfg.Session.MaxSec = 1
	r := NewRecorder(cfg, logging.NewTestLogger(), src, eng, log.events(), nil)

	if err := r.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	for _, b := range speech(30) {
		src.push(b)
	}
	waitFor(t, 3*time.Second, "auto-stop", func() bool {
		return r.State() == StateIdle
	})
	if got := log.finalized(); len(got) != 1 || got[0] != "hello" {
		t.Fatalf("finalized = %v, want [hello]", got)
	}
}

func TestConversionDropsSurfaceAsErrors(t *testing.T) {
	src := &fakeSource{}
	log := &eventLog{}
	r := NewRecorder(testConfig(t), logging.NewTestLogger(), src, newFakeEngine(), log.events(), nil)

	if err := r.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	src.pushDrop(errors.New("frame not a multiple of sample size"))

	kinds := log.errorKinds()
	if len(kinds) != 1 || kinds[0] != ErrorConversion {
		t.Fatalf("error kinds = %v, want [conversion]", kinds)
	}
	if _, err := r.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestArchiveWritesSessionWAV(t *testing.T) {
	eng := newFakeEngine()
	eng.fn = func([]float32) (string, error) { return "hello", nil }
	src := &fakeSource{}
	cfg := testConfig(t)
	cfg.Archive.Enabled = true
	cfg.Archive.Dir = t.TempDir()
	r := NewRecorder(cfg, logging.NewTestLogger(), src, eng, Events{}, nil)

	if err := r.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	for _, b := range speech(25) {
		src.push(b)
	}
	if _, err := r.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}

	id := wavFileIn(t, cfg.Archive.Dir)
	samples, err := audio.ReadWAV(filepath.Join(cfg.Archive.Dir, id))
	if err != nil {
		t.Fatalf("read archived wav: %v", err)
	}
	if len(samples) != 25*testBatch {
		t.Fatalf("archived %d samples, want %d", len(samples), 25*testBatch)
	}
}
