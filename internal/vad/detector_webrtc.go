package vad

import (
	"fmt"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"

	"github.com/Tesseric/careless-whisper/internal/audio"
)

// webrtcvad wants 16-bit PCM in 10/20/30 ms frames; 10 ms keeps latency low.
const webrtcFrameBytes = audio.CanonicalRate / 100 * 2

// WebRTC runs the GIPS voice detector over fixed 10 ms frames carved out of
// the incoming batches. Partial frames carry over to the next batch.
type WebRTC struct {
	v     *webrtcvad.VAD
	frame []byte
}

// NewWebRTC builds a detector with the given aggressiveness mode (0 least
// to 3 most aggressive).
func NewWebRTC(mode int) (*WebRTC, error) {
	v, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("webrtc vad: %w", err)
	}
	if err := v.SetMode(mode); err != nil {
		return nil, fmt.Errorf("webrtc vad mode %d: %w", mode, err)
	}
	if !v.ValidRateAndFrameLength(audio.CanonicalRate, webrtcFrameBytes) {
		return nil, fmt.Errorf("webrtc vad rejects %d Hz / %d byte frames", audio.CanonicalRate, webrtcFrameBytes)
	}
	return &WebRTC{v: v, frame: make([]byte, 0, webrtcFrameBytes)}, nil
}

// IsSpeech reports whether any complete frame inside the batch was voiced.
func (w *WebRTC) IsSpeech(batch []float32) bool {
	voiced := false
	for _, s := range audio.Float32ToInt16(batch) {
		w.frame = append(w.frame, byte(s), byte(uint16(s)>>8))
		if len(w.frame) < webrtcFrameBytes {
			continue
		}
		if active, err := w.v.Process(audio.CanonicalRate, w.frame); err == nil && active {
			voiced = true
		}
		w.frame = w.frame[:0]
	}
	return voiced
}
