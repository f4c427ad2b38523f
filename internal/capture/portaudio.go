//go:build portaudio

package capture

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
	"github.com/sirupsen/logrus"

	"github.com/Tesseric/careless-whisper/internal/audio"
	"github.com/Tesseric/careless-whisper/internal/config"
)

// PortAudio is the alternate backend for hosts where miniaudio misbehaves.
// It pulls 20 ms int16 frames on a reader goroutine and pushes converted
// batches, so downstream sees the same callback contract as malgo.
type PortAudio struct {
	cfg    *config.Config
	logger *logrus.Logger

	mu      sync.Mutex
	stream  *portaudio.Stream
	stop    chan struct{}
	done    chan struct{}
	dropped atomic.Int64
}

// NewPortAudio initializes the PortAudio runtime.
func NewPortAudio(cfg *config.Config, logger *logrus.Logger) (*PortAudio, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	return &PortAudio{cfg: cfg, logger: logger}, nil
}

func (p *PortAudio) Start(fn BatchFunc, onDrop DropFunc) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream != nil {
		return errors.New("capture already running")
	}

	conv, err := audio.NewConverter(p.cfg.Audio.SampleRate, p.cfg.Audio.Channels)
	if err != nil {
		return fmt.Errorf("audio format: %w", err)
	}
	dev, err := selectInputDevice(p.cfg.Audio.DeviceName)
	if err != nil {
		return err
	}

	frameSamples := p.cfg.Audio.SampleRate / 50 * p.cfg.Audio.Channels
	buf := make([]int16, frameSamples)
	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: p.cfg.Audio.Channels,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(p.cfg.Audio.SampleRate),
		FramesPerBuffer: p.cfg.Audio.SampleRate / 50,
	}, &buf)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return fmt.Errorf("start stream: %w", err)
	}

	p.stream = stream
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	p.logger.Infof("capturing on %s @ %d Hz, %d ch (portaudio)", dev.Name, p.cfg.Audio.SampleRate, p.cfg.Audio.Channels)

	go func(stop, done chan struct{}) {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
			}
			if err := stream.Read(); err != nil {
				if errors.Is(err, portaudio.InputOverflowed) {
					p.logger.Warn("input overflow")
					continue
				}
				p.dropped.Add(1)
				p.logger.Warnf("stream read: %v", err)
				if onDrop != nil {
					onDrop(err)
				}
				continue
			}
			fn(conv.Samples(audio.Int16ToFloat32(buf)))
		}
	}(p.stop, p.done)
	return nil
}

func (p *PortAudio) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream == nil {
		return nil
	}
	// Let the reader finish its current 20 ms read before tearing down.
	close(p.stop)
	<-p.done
	err := p.stream.Stop()
	_ = p.stream.Close()
	p.stream = nil
	return err
}

func (p *PortAudio) Close() error {
	_ = p.Stop()
	return portaudio.Terminate()
}

func (p *PortAudio) Dropped() int64 {
	return p.dropped.Load()
}

func selectInputDevice(preferred string) (*portaudio.DeviceInfo, error) {
	devs, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	if preferred != "" {
		for _, d := range devs {
			if d.MaxInputChannels > 0 && strings.Contains(strings.ToLower(d.Name), strings.ToLower(preferred)) {
				return d, nil
			}
		}
	}
	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
		return def, nil
	}
	for _, d := range devs {
		if d.MaxInputChannels > 0 {
			return d, nil
		}
	}
	return nil, errors.New("no input devices found")
}
