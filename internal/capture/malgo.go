package capture

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
	"github.com/sirupsen/logrus"

	"github.com/Tesseric/careless-whisper/internal/audio"
	"github.com/Tesseric/careless-whisper/internal/config"
)

// Malgo captures through miniaudio. The context lives for the daemon's
// lifetime; the device is initialized per recording session so Start can
// fail fast on bad format or a missing device without tearing anything
// else down.
type Malgo struct {
	cfg    *config.Config
	logger *logrus.Logger
	ctx    *malgo.AllocatedContext

	mu      sync.Mutex
	device  *malgo.Device
	dropped atomic.Int64
}

// NewMalgo initializes the miniaudio context.
func NewMalgo(cfg *config.Config, logger *logrus.Logger) (*Malgo, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("audio context: %w", err)
	}
	return &Malgo{cfg: cfg, logger: logger, ctx: ctx}, nil
}

func (m *Malgo) Start(fn BatchFunc, onDrop DropFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device != nil {
		return errors.New("capture already running")
	}

	conv, err := audio.NewConverter(m.cfg.Audio.SampleRate, m.cfg.Audio.Channels)
	if err != nil {
		return fmt.Errorf("audio format: %w", err)
	}

	devCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	devCfg.Capture.Format = malgo.FormatF32
	devCfg.Capture.Channels = uint32(m.cfg.Audio.Channels)
	devCfg.SampleRate = uint32(m.cfg.Audio.SampleRate)
	devCfg.Alsa.NoMMap = 1
	if name := m.cfg.Audio.DeviceName; name != "" {
		id, err := findDeviceID(m.ctx, name)
		if err != nil {
			return err
		}
		devCfg.Capture.DeviceID = id.Pointer()
	}

	onData := func(_, in []byte, frameCount uint32) {
		batch, err := conv.Frames(in)
		if err != nil {
			m.dropped.Add(1)
			m.logger.Warnf("capture: dropping batch: %v", err)
			if onDrop != nil {
				onDrop(err)
			}
			return
		}
		fn(batch)
	}
	device, err := malgo.InitDevice(m.ctx.Context, devCfg, malgo.DeviceCallbacks{Data: onData})
	if err != nil {
		return fmt.Errorf("init capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("start capture device: %w", err)
	}
	m.device = device
	m.logger.Infof("capturing @ %d Hz, %d ch (malgo)", m.cfg.Audio.SampleRate, m.cfg.Audio.Channels)
	return nil
}

// Stop uninitializes the device; no callbacks fire after it returns.
func (m *Malgo) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device != nil {
		m.device.Uninit()
		m.device = nil
	}
	return nil
}

func (m *Malgo) Close() error {
	_ = m.Stop()
	if m.ctx != nil {
		if err := m.ctx.Uninit(); err != nil {
			return err
		}
		m.ctx.Free()
		m.ctx = nil
	}
	return nil
}

func (m *Malgo) Dropped() int64 {
	return m.dropped.Load()
}
