package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SL-LAIDLAW/metallaxis/internal/pipeline"
)

func newAnnotateCmd(a *app) *cobra.Command {
	var (
		noProgress bool
		output     string
	)

	cmd := &cobra.Command{
		Use:   "annotate [store]",
		Short: "Annotate an ingested store with Ensembl VEP consequences",
		Long: `Send the variant identifiers of an ingested store to the Ensembl VEP REST
service and write an annotated copy of the store. The original store is not
modified. Rows without a matching consequence carry "." annotations.`,
		Example: `  metallaxis annotate
  metallaxis annotate ~/.metallaxis/input.duckdb -o annotated.duckdb
  metallaxis annotate --max-retries 3`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := pipeline.Options{
				Settings:           a.settings,
				AnnotatedStorePath: output,
				Logger:             a.logger,
			}
			if len(args) == 1 {
				opts.StorePath = args[0]
			}

			progress := newProgress(noProgress, a.logger)
			opts.Progress = progress.Func()
			run := pipeline.NewRun(opts)

			sum, err := run.Enrich(cmd.Context(), pipeline.NewVEPClient(a.settings, a.logger))
			progress.Finish()
			if err != nil {
				return err
			}

			fmt.Printf("Annotated store: %s\n", run.AnnotatedStorePath())
			fmt.Printf("  Identifiers sent: %d in %d batches\n", sum.IDs, sum.Batches)
			fmt.Printf("  Rows: %d (%d annotated, %d without consequence)\n", sum.Rows, sum.Annotated, sum.Placeholders)
			return nil
		},
	}

	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Log progress instead of drawing a progress bar")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Annotated store path (default <workdir>/input_annotated.duckdb)")
	cmd.Flags().String("url", "", "VEP REST base URL")
	cmd.Flags().Int("batch-size", 0, "Identifiers per VEP request")
	cmd.Flags().Int("max-retries", 0, "Retries for transient VEP failures")

	return cmd
}
