package cli

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"smartnotes/internal/output"
)

func NewDeleteCmd(deps *Dependencies) *cobra.Command {
	var keepAudio bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a note and its audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(deps.Out)

			services, err := library(deps)
			if err != nil {
				return err
			}
			defer services.Close()

			rec, err := services.Store.Get(cmd.Context(), args[0])
			if err != nil {
				return notFound(args[0], err)
			}
			if err := services.Store.Delete(cmd.Context(), rec.ID); err != nil {
				return notFound(rec.ID, err)
			}

			if !keepAudio && rec.AudioPath != "" {
				if err := os.Remove(rec.AudioPath); err != nil && !errors.Is(err, os.ErrNotExist) {
					formatter.Warning("Could not remove audio file: " + err.Error())
				}
			}
			formatter.Success("Deleted " + rec.ID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&keepAudio, "keep-audio", false, "leave the recording file on disk")
	return cmd
}
