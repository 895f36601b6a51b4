package cli

import (
	"github.com/spf13/cobra"
)

// GlobalOptions are flags shared by every command.
type GlobalOptions struct {
	SchemaDir string
}

func NewRootCmd() *cobra.Command {
	opts := &GlobalOptions{}

	rootCmd := &cobra.Command{
		Use:   "paysync",
		Short: "paysync - incremental Stripe to warehouse ingestion",
		Long: `paysync copies Stripe charges, customers and balance transactions into an
analytical warehouse (BigQuery, SQL Server, Postgres, SQLite or MongoDB).
Each run resumes from the newest row already loaded, or covers an explicit
date range, and merges the new rows so every object appears once.`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.SchemaDir, "schema-dir", "", "Directory of resource definition files overriding the built-ins")

	rootCmd.AddCommand(
		NewRunCmd(opts),
		NewScheduleCmd(opts),
		NewServeCmd(opts),
		NewResourcesCmd(opts),
	)

	return rootCmd
}
