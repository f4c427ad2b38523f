// Package run hosts the daemon: the control socket, the session
// recorder, hook dispatch, and the metrics endpoint.
package run

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Tesseric/careless-whisper/internal/capture"
	"github.com/Tesseric/careless-whisper/internal/config"
	"github.com/Tesseric/careless-whisper/internal/control"
	"github.com/Tesseric/careless-whisper/internal/engine"
	"github.com/Tesseric/careless-whisper/internal/hook"
	"github.com/Tesseric/careless-whisper/internal/metrics"
	"github.com/Tesseric/careless-whisper/internal/session"
	"github.com/Tesseric/careless-whisper/internal/transcript"
)

// Server wires capture, the recorder, hook dispatch, transcripts, and
// the control endpoints.
type Server struct {
	cfg       *config.Config
	logger    *logrus.Logger
	hook      *hook.Runner
	met       *metrics.Metrics
	store     *transcript.Store
	source    capture.Source
	eng       engine.Transcriber
	rec       *session.Recorder
	startedAt time.Time
	lastHeard atomic.Int64

	hookCh chan hook.Job
	wg     sync.WaitGroup
}

// Serve runs the daemon until interrupted.
func Serve(cfg *config.Config, logger *logrus.Logger) error {
	if err := config.MustStatePaths(cfg); err != nil {
		return err
	}
	// Write pid file.
	if err := os.WriteFile(cfg.Paths.PidPath, []byte(fmt.Sprintf("%d", os.Getpid())), 0o644); err != nil {
		return err
	}
	defer func() {
		if err := os.Remove(cfg.Paths.PidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warnf("remove pid file: %v", err)
		}
	}()
	// Ensure socket removed
	if err := os.Remove(cfg.Paths.SocketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Debugf("remove stale socket: %v", err)
	}

	srv := &Server{
		cfg:       cfg,
		logger:    logger,
		hook:      hook.NewRunner(cfg, logger),
		store:     transcript.NewStore(cfg, logger),
		startedAt: time.Now(),
		hookCh:    make(chan hook.Job, max(1, cfg.Hook.QueueSize)),
	}
	if cfg.Metrics.Enabled {
		srv.met = metrics.New()
	}

	eng, err := engine.New(cfg, logger)
	if err != nil {
		logger.Warnf("transcription engine unavailable: %v", err)
	} else {
		srv.eng = eng
		defer func() {
			if err := eng.Close(); err != nil {
				logger.Warnf("engine close: %v", err)
			}
		}()
	}

	source, err := capture.New(cfg, logger)
	if err != nil {
		logger.Errorf("audio capture unavailable: %v", err)
	} else {
		srv.source = source
		defer func() {
			if err := source.Close(); err != nil {
				logger.Warnf("capture close: %v", err)
			}
		}()
	}

	if srv.source != nil {
		srv.rec = session.NewRecorder(cfg, logger, srv.source, srv.eng, srv.events(), srv.met)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Control socket
	go srv.controlLoop(ctx)

	// Hook worker
	srv.wg.Add(1)
	go srv.hookWorker(ctx)

	// Metrics server
	if cfg.Metrics.Enabled {
		go srv.metricsServe(ctx.Done())
	}

	// Watchdog
	go srv.watchdog(ctx.Done())

	logger.Infof("daemon up, control socket %s", cfg.Paths.SocketPath)

	// Handle signals
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)
	select {
	case s := <-sigCh:
		logger.Infof("received signal %s, shutting down", s)
	case <-ctx.Done():
	}

	// Finish a live session so captured audio is not lost.
	if srv.rec != nil && srv.rec.State() == session.StateRecording {
		logger.Info("stopping live session before shutdown")
		if _, err := srv.rec.Stop(context.Background()); err != nil {
			logger.Errorf("shutdown stop: %v", err)
		}
	}
	cancel()
	srv.wg.Wait()
	return nil
}

func (s *Server) events() session.Events {
	return session.Events{
		OnChunkTranscribed: func(text string) {
			s.lastHeard.Store(time.Now().UnixNano())
			s.logger.Infof("heard: %q", text)
		},
		OnSessionFinalized: func(text string) {
			if text == "" {
				return
			}
			s.store.Add(text)
			s.dispatchHook(text)
		},
		OnError: func(kind session.ErrorKind, err error) {
			// Conversion drops are already warned per batch by capture.
			if kind == session.ErrorConversion {
				s.logger.Debugf("conversion: %v", err)
				return
			}
			s.logger.Warnf("%s: %v", kind, err)
		},
	}
}

func (s *Server) dispatchHook(text string) {
	if !s.hook.Enabled() {
		return
	}
	if n := s.cfg.Hook.MinChars; n > 0 && len(text) < n {
		s.logger.Debugf("hook skipped: %d chars < min_chars %d", len(text), n)
		return
	}
	if !s.hook.ShouldRun() {
		s.logger.Debug("hook skipped (cooldown)")
		return
	}
	s.logger.Infof("dispatching hook payload: %q", text)
	job := hook.Job{Text: text, Timestamp: time.Now()}
	select {
	case s.hookCh <- job:
	default:
		s.met.RecordHookDropped()
		s.logger.Warn("hook queue full, dropping job")
	}
}

func (s *Server) watchdog(done <-chan struct{}) {
	t := time.NewTicker(30 * time.Second)
	defer t.Stop()
	var lastDropped int64
	for {
		select {
		case <-done:
			return
		case <-t.C:
			if s.source != nil {
				if d := s.source.Dropped(); d > lastDropped {
					s.logger.Warnf("watchdog: %d batches dropped since last check", d-lastDropped)
					lastDropped = d
				}
			}
			if s.rec != nil {
				if st := s.rec.Status(); st.State != session.StateIdle {
					s.logger.Debugf("watchdog: %s session=%s elapsed=%s queue=%d",
						st.State, st.SessionID, st.Elapsed.Round(time.Second), st.QueueDepth)
				}
			}
		}
	}
}

func (s *Server) controlLoop(ctx context.Context) {
	ln, err := net.Listen("unix", s.cfg.Paths.SocketPath)
	if err != nil {
		s.logger.Errorf("control listen: %v", err)
		return
	}
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Errorf("control accept: %v", err)
			continue
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer func() {
		if err := conn.Close(); err != nil && ctx.Err() == nil {
			s.logger.Warnf("control connection close: %v", err)
		}
	}()
	sc := bufio.NewScanner(conn)
	if !sc.Scan() {
		return
	}
	var req control.Request
	if err := json.Unmarshal(sc.Bytes(), &req); err != nil {
		return
	}
	enc := json.NewEncoder(conn)
	switch req.Op {
	case "status":
		_ = enc.Encode(s.statusResponse())
	case "health":
		msg := "ok"
		if s.eng == nil || !s.eng.Ready() {
			msg = "ok (engine not ready)"
		}
		_ = enc.Encode(control.SimpleResponse{OK: true, Message: msg})
	case "start":
		_ = enc.Encode(s.handleStart())
	case "stop":
		_ = enc.Encode(s.handleStop(ctx))
	case "toggle":
		_ = enc.Encode(s.handleToggle(ctx))
	default:
		_ = enc.Encode(control.SimpleResponse{OK: false, Message: fmt.Sprintf("unknown op %q", req.Op)})
	}
}

func (s *Server) statusResponse() control.Status {
	resp := control.Status{
		Running:     true,
		UptimeSec:   time.Since(s.startedAt).Seconds(),
		State:       session.StateIdle.String(),
		EngineReady: s.eng != nil && s.eng.Ready(),
		TS:          config.NowUnixMilli(),
	}
	if s.rec != nil {
		st := s.rec.Status()
		resp.State = st.State.String()
		resp.SessionID = st.SessionID
		resp.ElapsedSec = st.Elapsed.Seconds()
		resp.QueueDepth = st.QueueDepth
	}
	if s.source != nil {
		resp.DroppedBatches = s.source.Dropped()
	}
	if ts := s.lastHeard.Load(); ts > 0 {
		resp.LastHeardSec = time.Since(time.Unix(0, ts)).Seconds()
	}
	for _, e := range s.store.Recent(s.cfg.UI.StatusTail) {
		resp.Transcripts = append(resp.Transcripts, control.Transcript{Text: e.Text, Timestamp: e.Time})
	}
	return resp
}

func (s *Server) handleStart() control.SimpleResponse {
	if s.rec == nil {
		return control.SimpleResponse{OK: false, Message: "audio capture unavailable"}
	}
	if st := s.rec.State(); st == session.StateTranscribing {
		return control.SimpleResponse{OK: false, Message: "busy finalizing previous session"}
	}
	if err := s.rec.Start(); err != nil {
		return control.SimpleResponse{OK: false, Message: err.Error()}
	}
	return control.SimpleResponse{OK: true, Message: "recording"}
}

func (s *Server) handleStop(ctx context.Context) control.StopResponse {
	if s.rec == nil {
		return control.StopResponse{OK: false}
	}
	final, err := s.rec.Stop(ctx)
	if err != nil {
		s.logger.Errorf("stop: %v", err)
		return control.StopResponse{OK: false}
	}
	return control.StopResponse{OK: true, Transcript: final}
}

func (s *Server) handleToggle(ctx context.Context) control.ToggleResponse {
	if s.rec == nil {
		return control.ToggleResponse{OK: false, Message: "audio capture unavailable"}
	}
	switch s.rec.State() {
	case session.StateIdle:
		if err := s.rec.Start(); err != nil {
			return control.ToggleResponse{OK: false, Action: "started", Message: err.Error()}
		}
		return control.ToggleResponse{OK: true, Action: "started"}
	case session.StateRecording:
		final, err := s.rec.Stop(ctx)
		if err != nil {
			return control.ToggleResponse{OK: false, Action: "stopped", Message: err.Error()}
		}
		return control.ToggleResponse{OK: true, Action: "stopped", Transcript: final}
	default:
		return control.ToggleResponse{OK: false, Action: "busy", Message: "finalizing previous session"}
	}
}
