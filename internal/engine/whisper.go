//go:build whisper

package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/sirupsen/logrus"

	"github.com/Tesseric/careless-whisper/internal/config"
)

// whisperEngine keeps one loaded model for the process lifetime and spins
// up a fresh decoding context per request.
type whisperEngine struct {
	model    whisper.Model
	language string
	threads  uint
	logger   *logrus.Logger
}

// New loads the configured ggml model.
func New(cfg *config.Config, logger *logrus.Logger) (Transcriber, error) {
	modelPath := os.ExpandEnv(cfg.ASR.ModelPath)
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}
	model, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", modelPath, err)
	}
	threads := cfg.ASR.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	logger.Infof("whisper model loaded: %s", modelPath)
	return &whisperEngine{
		model:    model,
		language: strings.TrimSpace(cfg.ASR.Language),
		threads:  uint(threads),
		logger:   logger,
	}, nil
}

func (w *whisperEngine) Transcribe(ctx context.Context, samples []float32) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	wctx, err := w.model.NewContext()
	if err != nil {
		return "", err
	}
	wctx.SetThreads(w.threads)
	if w.language != "" {
		if err := wctx.SetLanguage(w.language); err != nil {
			w.logger.Warnf("set language %q: %v", w.language, err)
		}
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", err
	}

	var b strings.Builder
	for {
		seg, err := wctx.NextSegment()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", err
		}
		b.WriteString(seg.Text)
		if !strings.HasSuffix(seg.Text, " ") {
			b.WriteRune(' ')
		}
	}
	return strings.TrimSpace(b.String()), nil
}

func (w *whisperEngine) Ready() bool {
	return w.model != nil
}

func (w *whisperEngine) Close() error {
	if w.model == nil {
		return nil
	}
	err := w.model.Close()
	w.model = nil
	return err
}
