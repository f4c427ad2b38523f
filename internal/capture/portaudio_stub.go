//go:build !portaudio

package capture

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/Tesseric/careless-whisper/internal/config"
)

// NewPortAudio without the portaudio tag.
func NewPortAudio(cfg *config.Config, logger *logrus.Logger) (Source, error) {
	return nil, errors.New("built without portaudio support; rebuild with -tags portaudio or use audio.backend = \"malgo\"")
}
