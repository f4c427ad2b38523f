package session

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Tesseric/careless-whisper/internal/audio"
	"github.com/Tesseric/careless-whisper/internal/capture"
	"github.com/Tesseric/careless-whisper/internal/config"
	"github.com/Tesseric/careless-whisper/internal/engine"
	"github.com/Tesseric/careless-whisper/internal/metrics"
	"github.com/Tesseric/careless-whisper/internal/vad"
)

// State is the recorder lifecycle phase.
type State int32

const (
	StateIdle State = iota
	StateRecording
	StateTranscribing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateTranscribing:
		return "transcribing"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ErrorKind classifies pipeline failures surfaced through Events.OnError.
type ErrorKind string

const (
	// ErrorCapture is a device failure while a session is live.
	ErrorCapture ErrorKind = "capture"
	// ErrorConversion is a malformed batch dropped during format conversion.
	ErrorConversion ErrorKind = "conversion"
	// ErrorTranscription is a failed engine call; the chunk contributed
	// nothing and the session continued.
	ErrorTranscription ErrorKind = "transcription"
)

// Events are the recorder's callbacks. They fire on pipeline goroutines
// and must not block. Any field may be nil.
type Events struct {
	// OnChunkTranscribed fires for each accepted fragment, in order.
	OnChunkTranscribed func(text string)
	// OnSessionFinalized fires exactly once per session with the full
	// transcript, empty for discarded sessions.
	OnSessionFinalized func(text string)
	OnError            func(kind ErrorKind, err error)
}

// liveSession is the per-session state. The capture callback closes over
// it and never touches the Recorder mutex, so audio keeps flowing while
// Stop runs.
type liveSession struct {
	id        string
	startedAt time.Time
	accepting atomic.Bool

	buf    *audio.Buffer
	seg    *vad.Segmenter
	orch   *orchestrator
	cancel context.CancelFunc
	timer  *time.Timer

	startDropped int64
}

// Recorder is the session state machine: Idle -> Recording -> Transcribing
// -> Idle. Invalid transitions are logged and ignored.
type Recorder struct {
	cfg    *config.Config
	logger *logrus.Logger
	source capture.Source
	eng    engine.Transcriber
	events Events
	met    *metrics.Metrics

	mu    sync.Mutex
	state State
	live  *liveSession
}

// NewRecorder wires the pipeline. met may be nil.
func NewRecorder(cfg *config.Config, logger *logrus.Logger, source capture.Source, eng engine.Transcriber, events Events, met *metrics.Metrics) *Recorder {
	return &Recorder{
		cfg:    cfg,
		logger: logger,
		source: source,
		eng:    eng,
		events: events,
		met:    met,
	}
}

// Status is a point-in-time snapshot for the control surface.
type Status struct {
	State      State
	SessionID  string
	Elapsed    time.Duration
	QueueDepth int
}

func (r *Recorder) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := Status{State: r.state}
	if r.live != nil {
		st.SessionID = r.live.id
		st.Elapsed = time.Since(r.live.startedAt)
		st.QueueDepth = r.live.orch.queueDepth()
	}
	return st
}

func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Start begins a recording session. It fails when the engine has no
// model loaded or the capture device cannot start; a start in any state
// but Idle is a no-op.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateIdle {
		r.logger.Debugf("start ignored in state %s", r.state)
		return nil
	}
	if r.eng == nil || !r.eng.Ready() {
		return engine.ErrNotReady
	}

	det, err := r.newDetector()
	if err != nil {
		return fmt.Errorf("vad: %w", err)
	}

	sessionBuf := audio.NewBuffer()
	chunkBuf := audio.NewBuffer()
	seg := vad.New(det, sessionBuf, chunkBuf, vad.Config{
		SilenceHold: time.Duration(r.cfg.VAD.SilenceMS) * time.Millisecond,
		MinChunk:    time.Duration(r.cfg.VAD.MinChunkMS) * time.Millisecond,
		MaxChunk:    time.Duration(r.cfg.VAD.MaxChunkMS) * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	orch := newOrchestrator(r.eng, r.logger, r.events, r.met)
	orch.start(ctx)

	ls := &liveSession{
		id:           uuid.New().String(),
		startedAt:    time.Now(),
		buf:          sessionBuf,
		seg:          seg,
		orch:         orch,
		cancel:       cancel,
		startDropped: r.source.Dropped(),
	}
	ls.accepting.Store(true)

	onBatch := func(samples []float32) {
		if !ls.accepting.Load() {
			return
		}
		if emitted := seg.Process(samples); emitted != nil {
			orch.enqueue(emitted)
		}
	}
	onDrop := func(err error) {
		r.met.RecordBatchDropped()
		if r.events.OnError != nil {
			r.events.OnError(ErrorConversion, err)
		}
	}
	if err := r.source.Start(onBatch, onDrop); err != nil {
		cancel()
		return fmt.Errorf("capture: %w", err)
	}

	if max := time.Duration(r.cfg.Session.MaxSec) * time.Second; max > 0 {
		ls.timer = time.AfterFunc(max, func() {
			r.logger.Warnf("session %s hit max duration %s, stopping", ls.id, max)
			if _, err := r.Stop(context.Background()); err != nil {
				r.logger.Errorf("auto-stop: %v", err)
			}
		})
	}

	r.live = ls
	r.state = StateRecording
	r.met.RecordSessionStarted()
	r.logger.Infof("session %s recording", ls.id)
	return nil
}

// Stop ends the live session, drains the chunk queue, transcribes the
// merged tail, and returns the final transcript. A stop in any state but
// Recording is a no-op returning "".
func (r *Recorder) Stop(ctx context.Context) (string, error) {
	r.mu.Lock()
	if r.state != StateRecording || r.live == nil {
		state := r.state
		r.mu.Unlock()
		r.logger.Debugf("stop ignored in state %s", state)
		return "", nil
	}
	r.state = StateTranscribing
	ls := r.live
	r.mu.Unlock()

	ls.accepting.Store(false)
	if ls.timer != nil {
		ls.timer.Stop()
	}
	if err := r.source.Stop(); err != nil {
		r.logger.Warnf("capture stop: %v", err)
	}

	final := r.finalize(ctx, ls)

	r.mu.Lock()
	r.state = StateIdle
	r.live = nil
	r.mu.Unlock()
	return final, nil
}

// finalize runs after capture has stopped, so no callback touches the
// buffers anymore.
func (r *Recorder) finalize(ctx context.Context, ls *liveSession) string {
	captured := ls.buf.Flush()
	total := audio.DurationOf(len(captured))
	if d := r.source.Dropped() - ls.startDropped; d > 0 {
		r.logger.Warnf("session %s dropped %d batches", ls.id, d)
	}

	undequeued := ls.orch.close()
	tail := ls.seg.Flush()

	if min := time.Duration(r.cfg.Session.MinMS) * time.Millisecond; len(captured) == 0 || total < min {
		ls.cancel()
		r.met.RecordSessionDiscarded()
		r.logger.Infof("session %s too short (%s), discarding", ls.id, total)
		if r.events.OnSessionFinalized != nil {
			r.events.OnSessionFinalized("")
		}
		return ""
	}

	ls.orch.waitIdle(ctx)

	var block []float32
	for _, p := range undequeued {
		block = append(block, p...)
	}
	block = append(block, tail...)
	if audio.DurationOf(len(block)) >= time.Duration(r.cfg.VAD.MinChunkMS)*time.Millisecond {
		ls.orch.applyFinal(ctx, block)
	}
	ls.cancel()

	final := ls.orch.transcript()
	r.archive(ls.id, captured)
	r.met.RecordSessionFinalized(total)
	r.logger.Infof("session %s finalized: %d chars from %s of audio", ls.id, len(final), total.Round(time.Millisecond))
	if r.events.OnSessionFinalized != nil {
		r.events.OnSessionFinalized(final)
	}
	return final
}

func (r *Recorder) newDetector() (vad.Detector, error) {
	switch r.cfg.VAD.Detector {
	case "", "energy":
		return vad.Energy{Threshold: r.cfg.VAD.EnergyThreshold}, nil
	case "webrtc":
		return vad.NewWebRTC(r.cfg.VAD.WebRTCMode)
	default:
		return nil, fmt.Errorf("unknown detector %q", r.cfg.VAD.Detector)
	}
}

func (r *Recorder) archive(id string, samples []float32) {
	if !r.cfg.Archive.Enabled || len(samples) == 0 {
		return
	}
	path := filepath.Join(r.cfg.ArchiveDir(), id+".wav")
	if err := audio.WriteWAV(path, samples); err != nil {
		r.logger.Errorf("archive session %s: %v", id, err)
		return
	}
	r.logger.Infof("session audio archived to %s", path)
}
