package cli

import (
	"github.com/spf13/cobra"

	"smartnotes/internal/mcpserver"
	"smartnotes/internal/version"
)

func NewMCPCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve saved notes to MCP clients over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := library(deps)
			if err != nil {
				return err
			}
			defer services.Close()

			return mcpserver.ServeStdio(mcpserver.New(services.Store, version.Version, services.Logger))
		},
	}
}

func NewVersionCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version.Full())
		},
	}
}
