package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Tesseric/careless-whisper/internal/control"
	"github.com/Tesseric/careless-whisper/internal/daemon"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	root := &cobra.Command{
		Use:   "careless-whisper",
		Short: "careless-whisper — local push-to-talk dictation daemon",
		Long: `careless-whisper records your mic on demand, segments the audio on voice
activity, transcribes chunks locally with whisper.cpp while you are still
speaking, and hands the finished transcript to a configurable hook.

Key commands:
  start|stop|restart          Daemon lifecycle
  record start|stop|toggle    Recording session control
  status [--json]             Uptime + state + recent transcripts
  mic list|set                Select microphone (alias: mics)
  transcribe <wav>            One-shot transcription of a WAV file
  service install|uninstall|status   launchd helper (macOS)
  health|tail-log|test-hook   Liveness, log tail, manual hook
  doctor                      Check model/hook/capture setup

Notable flags/env:
  --metrics-addr <addr>       Enable Prometheus /metrics for this run
  Env overrides: CW_DEVICE, CW_MODEL, CW_DETECTOR, CW_METRICS_ADDR,
                 CW_LOG_LEVEL, CW_LOG_FORMAT, CW_TRANSCRIPTS_ENABLED,
                 CW_ARCHIVE_ENABLED`,
		Example: `  careless-whisper start --metrics-addr 127.0.0.1:9317
  careless-whisper record toggle
  careless-whisper mic list
  careless-whisper transcribe note.wav --hook
  careless-whisper service install --env CW_METRICS_ADDR=127.0.0.1:9317
  careless-whisper test-hook "make it so"`,
		DisableFlagsInUseLine: true,
	}

	root.Version = version
	root.SetVersionTemplate("careless-whisper v{{.Version}}\n")

	cfgPath := root.PersistentFlags().StringP("config", "c", "", "Path to config file (TOML). Defaults to ~/.config/careless-whisper/config.toml")
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(daemon.NewStartCmd(cfgPath))
	root.AddCommand(daemon.NewStopCmd(cfgPath))
	root.AddCommand(daemon.NewRestartCmd(cfgPath))
	root.AddCommand(control.NewRecordCmd(cfgPath))
	root.AddCommand(control.NewStatusCmd(cfgPath))
	root.AddCommand(control.NewHealthCmd(cfgPath))
	root.AddCommand(control.NewTailLogCmd(cfgPath))
	root.AddCommand(control.NewMicCmd(cfgPath))
	root.AddCommand(control.NewTranscribeCmd(cfgPath))
	root.AddCommand(control.NewTestHookCmd(cfgPath))
	root.AddCommand(control.NewDoctorCmd(cfgPath))
	root.AddCommand(control.NewServiceCmd(cfgPath))

	// Hidden internal serve command used by start.
	root.AddCommand(daemon.NewServeCmd(cfgPath))

	return root.Execute()
}
