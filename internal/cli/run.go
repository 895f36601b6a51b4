package cli

import (
	"encoding/json"

	"github.com/BartekS5/paysync/internal/etl"
	"github.com/BartekS5/paysync/pkg/models"
	"github.com/spf13/cobra"
)

type RunOptions struct {
	Tables []string
	Start  string
	End    string
	DryRun bool
}

// RunResponse is printed to stdout after a successful run.
type RunResponse struct {
	Results []*models.RunSummary `json:"results"`
}

func NewRunCmd(global *GlobalOptions) *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Ingest one or more resources once",
		Example: `  paysync run -t Charge
  paysync run -t Charge -t Customer --start 2021-07-01 --end 2021-07-02`,
		RunE: func(c *cobra.Command, args []string) error {
			a, err := newApp(c.Context(), global, opts.DryRun, opts.Tables)
			if err != nil {
				return err
			}
			defer a.Close()

			reqs := make([]etl.Request, len(opts.Tables))
			for i, t := range opts.Tables {
				reqs[i] = etl.Request{Table: t, Start: opts.Start, End: opts.End}
			}
			summaries, runErr := a.pipeline.RunMany(c.Context(), reqs)
			if summaries == nil {
				return runErr
			}

			// failed runs show up as null next to the ones that finished
			enc := json.NewEncoder(c.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(RunResponse{Results: summaries}); err != nil {
				return err
			}
			return runErr
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Tables, "table", "t", nil, "Resource to ingest (repeatable)")
	cmd.Flags().StringVar(&opts.Start, "start", "", "Window start date, YYYY-MM-DD (requires --end)")
	cmd.Flags().StringVar(&opts.End, "end", "", "Window end date, YYYY-MM-DD (requires --start)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Fetch and transform without loading")
	cmd.MarkFlagRequired("table")

	return cmd
}
