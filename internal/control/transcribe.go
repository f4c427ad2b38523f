//go:build whisper

package control

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tesseric/careless-whisper/internal/audio"
	"github.com/Tesseric/careless-whisper/internal/config"
	"github.com/Tesseric/careless-whisper/internal/engine"
	"github.com/Tesseric/careless-whisper/internal/hook"
	"github.com/Tesseric/careless-whisper/internal/logging"
)

// NewTranscribeCmd transcribes a WAV file and optionally fires the hook.
func NewTranscribeCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcribe <wavfile>",
		Short: "Transcribe a WAV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			logger, err := logging.Configure(cfg)
			if err != nil {
				return err
			}
			wantHook, _ := cmd.Flags().GetBool("hook")

			samples, err := audio.ReadWAV(args[0])
			if err != nil {
				return err
			}

			eng, err := engine.New(cfg, logger)
			if err != nil {
				return err
			}
			defer eng.Close()

			text, err := eng.Transcribe(cmd.Context(), samples)
			if err != nil {
				return err
			}
			text = strings.TrimSpace(text)
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), text)

			if !wantHook {
				return nil
			}
			if cfg.Hook.MinChars > 0 && len(text) < cfg.Hook.MinChars {
				return fmt.Errorf("skipped: len(text)=%d < min_chars=%d", len(text), cfg.Hook.MinChars)
			}
			r := hook.NewRunner(cfg, logger)
			if !r.Enabled() {
				return fmt.Errorf("no hook.command configured")
			}
			if !r.ShouldRun() {
				return fmt.Errorf("hook on cooldown")
			}
			return r.Run(cmd.Context(), hook.Job{Text: text, Timestamp: time.Now()})
		},
	}
	cmd.Flags().Bool("hook", false, "also send through configured hook")
	return cmd
}
