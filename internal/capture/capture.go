// Package capture reads microphone audio and hands canonical 16 kHz mono
// float32 batches to the session pipeline.
package capture

import (
	"fmt"
	"strings"

	"github.com/gen2brain/malgo"
	"github.com/sirupsen/logrus"

	"github.com/Tesseric/careless-whisper/internal/config"
)

// BatchFunc receives one converted batch. It runs on the device callback
// path and must not block.
type BatchFunc func(samples []float32)

// DropFunc is told about each batch discarded because conversion failed.
// It runs on the device callback path and must not block. May be nil.
type DropFunc func(err error)

// Source is a start/stoppable microphone stream. Start may be called again
// after Stop; Close releases the platform audio context.
type Source interface {
	Start(fn BatchFunc, onDrop DropFunc) error
	Stop() error
	Close() error
	// Dropped counts batches discarded because conversion failed.
	Dropped() int64
}

// New picks the backend configured under [audio].
func New(cfg *config.Config, logger *logrus.Logger) (Source, error) {
	switch cfg.Audio.Backend {
	case "", "malgo":
		return NewMalgo(cfg, logger)
	case "portaudio":
		return NewPortAudio(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown audio backend %q", cfg.Audio.Backend)
	}
}

// Device describes one capture device for `mic list`.
type Device struct {
	Name string `json:"name"`
}

// ListDevices enumerates capture devices through miniaudio.
func ListDevices() ([]Device, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("audio context: %w", err)
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	devices := make([]Device, 0, len(infos))
	for _, info := range infos {
		devices = append(devices, Device{Name: info.Name()})
	}
	return devices, nil
}

func findDeviceID(ctx *malgo.AllocatedContext, name string) (*malgo.DeviceID, error) {
	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	lower := strings.ToLower(name)
	for i := range infos {
		if strings.Contains(strings.ToLower(infos[i].Name()), lower) {
			id := infos[i].ID
			return &id, nil
		}
	}
	return nil, fmt.Errorf("no capture device matching %q", name)
}
