package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"smartnotes/internal/output"
	"smartnotes/internal/store"
)

func NewShowCmd(deps *Dependencies) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a saved note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := library(deps)
			if err != nil {
				return err
			}
			defer services.Close()

			rec, err := services.Store.Get(cmd.Context(), args[0])
			if err != nil {
				return notFound(args[0], err)
			}

			if asJSON {
				enc := json.NewEncoder(deps.Out)
				enc.SetIndent("", "  ")
				return enc.Encode(rec)
			}
			output.NewFormatter(deps.Out).Recording(rec)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the note as JSON")
	return cmd
}

func NewStarCmd(deps *Dependencies) *cobra.Command {
	var unstar bool

	cmd := &cobra.Command{
		Use:   "star <id>",
		Short: "Star or unstar a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := library(deps)
			if err != nil {
				return err
			}
			defer services.Close()

			if err := services.Store.SetStarred(cmd.Context(), args[0], !unstar); err != nil {
				return notFound(args[0], err)
			}
			if unstar {
				output.NewFormatter(deps.Out).Success("Unstarred " + args[0])
			} else {
				output.NewFormatter(deps.Out).Success("Starred " + args[0])
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&unstar, "off", false, "remove the star")
	return cmd
}

func notFound(id string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("no note with id %q", id)
	}
	return err
}
