package cli

import (
	"io"

	"github.com/spf13/cobra"

	"smartnotes/internal/bootstrap"
	"smartnotes/internal/config"
	"smartnotes/internal/ports"
	"smartnotes/internal/version"
)

// Dependencies are shared by every command.
type Dependencies struct {
	Config config.Config
	Out    io.Writer
	Err    io.Writer

	// Build assembles the service graph. Commands that only read the library
	// pass a sink that ignores session events.
	Build func(cfg config.Config, events ports.EventSink, clipboard ports.Clipboard, logOut io.Writer) (bootstrap.Services, error)
}

func NewRootCmd(deps *Dependencies) *cobra.Command {
	if deps.Build == nil {
		deps.Build = bootstrap.BuildWithConfig
	}

	rootCmd := &cobra.Command{
		Use:           "smartnotes",
		Short:         "Record, transcribe and summarize voice notes",
		Long:          "Records the microphone, streams it to Deepgram for a live transcript, and turns each recording into a Gemini summary with action items.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.Version = version.Version
	rootCmd.SetVersionTemplate(version.Full() + "\n")
	rootCmd.SetOut(deps.Out)
	rootCmd.SetErr(deps.Err)

	rootCmd.AddCommand(NewRecordCmd(deps))
	rootCmd.AddCommand(NewListCmd(deps))
	rootCmd.AddCommand(NewShowCmd(deps))
	rootCmd.AddCommand(NewStarCmd(deps))
	rootCmd.AddCommand(NewDeleteCmd(deps))
	rootCmd.AddCommand(NewMCPCmd(deps))
	rootCmd.AddCommand(NewVersionCmd(deps))

	return rootCmd
}

// library builds services for commands that never record.
func library(deps *Dependencies) (bootstrap.Services, error) {
	return deps.Build(deps.Config, discardEvents{}, systemClipboard{}, deps.Err)
}
