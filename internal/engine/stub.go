//go:build !whisper

package engine

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Tesseric/careless-whisper/internal/config"
)

// New without the whisper tag: nothing can transcribe.
func New(cfg *config.Config, logger *logrus.Logger) (Transcriber, error) {
	return nil, fmt.Errorf("%w: build with -tags whisper", ErrNotReady)
}
