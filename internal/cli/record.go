package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"smartnotes/internal/domain"
	"smartnotes/internal/output"
	"smartnotes/internal/tui"
	"smartnotes/internal/usecase"
)

func NewRecordCmd(deps *Dependencies) *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a note with a live transcript",
		Long:  "Opens a live view of the microphone. space pauses and resumes, s stops and summarizes, q discards the recording.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(deps.Out)

			// The live view owns the terminal, so logs go to a file.
			cfg := deps.Config
			if cfg.Log.Dir == "" {
				cfg.Log.Dir = filepath.Dir(cfg.Store.Path)
			}

			sink := tui.NewSink()
			services, err := deps.Build(cfg, sink, systemClipboard{}, deps.Err)
			if err != nil {
				return fmt.Errorf("initializing: %w", err)
			}
			defer services.Close()

			program := tea.NewProgram(tui.New(services.Controller), tea.WithContext(cmd.Context()))
			sink.Attach(program)
			final, err := program.Run()
			sink.Detach()
			if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return fmt.Errorf("live view: %w", err)
			}

			// A retry after a failure leaves the failed take behind. Its words
			// were cleared by the retry, so its audio goes too.
			removeRecordings(services.Logger, services.Controller.AbandonedRecordings()...)

			snap := services.Controller.Snapshot()
			loc, haveFile := services.Controller.FinalRecordingLocation()

			model, _ := final.(tui.Model)
			if model.Outcome() != tui.OutcomeSave {
				if haveFile {
					removeRecordings(services.Logger, loc)
				}
				formatter.Info("Recording discarded")
				return nil
			}

			formatter.RecordingStopped(snap.Elapsed, loc.Path)
			formatter.Summarizing()

			result, err := services.Finalizer.SaveSession(cmd.Context(), services.Controller, title)
			if err != nil {
				if errors.Is(err, usecase.ErrEmptyTranscript) {
					formatter.Warning("Nothing was transcribed; no note saved")
					return nil
				}
				return err
			}

			formatter.NoteSaved(result.Recording, result.Copied)
			return nil
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "note title (defaults to the date and time)")
	return cmd
}

// removeRecordings deletes recording files, skipping ones already gone, and
// reports how many it removed.
func removeRecordings(log zerolog.Logger, locs ...domain.RecordingLocation) int {
	removed := 0
	for _, loc := range locs {
		err := os.Remove(loc.Path)
		switch {
		case err == nil:
			removed++
		case !errors.Is(err, os.ErrNotExist):
			log.Warn().Err(err).Str("path", loc.Path).Msg("failed to remove recording")
		}
	}
	return removed
}
