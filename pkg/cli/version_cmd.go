package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if a.output == "json" || a.output == "yaml" {
				return a.render(out, map[string]string{"version": version, "commit": commit}, nil, nil)
			}
			_, _ = fmt.Fprintf(out, "mdms version %s (commit: %s)\n", version, commit)
			return nil
		},
	}
}
