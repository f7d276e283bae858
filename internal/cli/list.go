package cli

import (
	"github.com/spf13/cobra"

	"smartnotes/internal/domain"
	"smartnotes/internal/output"
)

func NewListCmd(deps *Dependencies) *cobra.Command {
	var (
		limit   int
		starred bool
		search  string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved notes, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(deps.Out)

			services, err := library(deps)
			if err != nil {
				return err
			}
			defer services.Close()

			var recs []domain.Recording
			switch {
			case search != "":
				recs, err = services.Store.Search(cmd.Context(), search, limit)
			case starred:
				recs, err = services.Store.Starred(cmd.Context(), limit)
			default:
				recs, err = services.Store.List(cmd.Context(), limit)
			}
			if err != nil {
				return err
			}

			if len(recs) == 0 {
				formatter.Info("No notes found")
				return nil
			}

			formatter.RecordingListHeader()
			for _, rec := range recs {
				formatter.RecordingListItem(rec)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of notes")
	cmd.Flags().BoolVar(&starred, "starred", false, "only starred notes")
	cmd.Flags().StringVarP(&search, "search", "s", "", "only notes whose title, transcript or summary contain this text")
	return cmd
}
