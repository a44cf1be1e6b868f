package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models the server offers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := apiClient.Models(cmd.Context())
		if err != nil {
			return fmt.Errorf("list models: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Models (%d):\n\n", len(catalog))
		for _, m := range catalog {
			fmt.Fprintf(out, "- %-20s %s [%s]\n", m.ID, m.Label, m.Provider)
			if verbose && m.Description != "" {
				fmt.Fprintf(out, "  %s\n", m.Description)
			}
		}
		return nil
	},
}
