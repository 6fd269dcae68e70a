package main

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newPlanCommand(flags *stackFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Print the composed resource graph as YAML",
		Example: `  # Graph for the dev environment
  apistack-local plan --env dev --account 123456789012 --region us-east-1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			g, err := flags.compose(cmd.Context())
			if err != nil {
				return err
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(g); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}
