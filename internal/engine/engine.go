// Package engine wraps local speech-to-text backends behind a single
// request/response interface.
package engine

import (
	"context"
	"errors"
)

// ErrNotReady is returned when no usable engine is loaded, e.g. a build
// without the whisper tag or a missing model file.
var ErrNotReady = errors.New("transcription engine not ready")

// Transcriber converts canonical 16 kHz mono samples into text. It is NOT
// safe for concurrent calls; callers must serialize.
type Transcriber interface {
	Transcribe(ctx context.Context, samples []float32) (string, error)
	Ready() bool
	Close() error
}
