package control

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tesseric/careless-whisper/internal/config"
)

// NewRecordCmd groups the recording-session commands.
func NewRecordCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "record",
		Short:   "Start, stop, or toggle a recording session",
		Aliases: []string{"rec"},
	}
	cmd.AddCommand(NewStartCmd(cfgPath))
	cmd.AddCommand(NewStopCmd(cfgPath))
	cmd.AddCommand(NewToggleCmd(cfgPath))
	return cmd
}

// NewStartCmd tells the daemon to begin a recording session.
func NewStartCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start recording",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			var resp SimpleResponse
			if err := request(cfg, "start", &resp); err != nil {
				return err
			}
			if !resp.OK {
				return fmt.Errorf("%s", resp.Message)
			}
			fmt.Println(resp.Message)
			return nil
		},
	}
}

// NewStopCmd stops the session and prints the final transcript. The
// daemon blocks until the chunk queue drains, so this can take a moment
// on long dictations.
func NewStopCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop recording and print the transcript",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			var resp StopResponse
			if err := request(cfg, "stop", &resp); err != nil {
				return err
			}
			if resp.Transcript != "" {
				fmt.Println(resp.Transcript)
			}
			return nil
		},
	}
}

// NewToggleCmd starts when idle and stops when recording, for a single
// push-to-talk style binding.
func NewToggleCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle",
		Short: "Start or stop recording depending on state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			var resp ToggleResponse
			if err := request(cfg, "toggle", &resp); err != nil {
				return err
			}
			if !resp.OK {
				return fmt.Errorf("%s", resp.Message)
			}
			switch resp.Action {
			case "stopped":
				if resp.Transcript != "" {
					fmt.Println(resp.Transcript)
				}
			default:
				fmt.Println(resp.Action)
			}
			return nil
		},
	}
}
