package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SL-LAIDLAW/metallaxis/internal/pipeline"
)

func newIngestCmd(a *app) *cobra.Command {
	var (
		annotate   bool
		force      bool
		noProgress bool
		storePath  string
	)

	cmd := &cobra.Command{
		Use:   "ingest <vcf>",
		Short: "Validate a VCF and load it into a store",
		Long: `Validate a VCF file, compute summary statistics, expand INFO into columns
and write everything to an indexed DuckDB store. Plain, gzip, bzip2 and xz
inputs are detected automatically.`,
		Example: `  metallaxis ingest sample.vcf.gz
  metallaxis ingest --annotate sample.vcf
  metallaxis ingest --chunk-size 10000 --compression snappy sample.vcf.xz`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			progress := newProgress(noProgress, a.logger)
			run := pipeline.NewRun(pipeline.Options{
				Settings:  a.settings,
				StorePath: storePath,
				Force:     force,
				Enrich:    annotate,
				Logger:    a.logger,
				Progress:  progress.Func(),
			})

			res, err := run.Ingest(cmd.Context(), args[0])
			if err != nil {
				progress.Finish()
				return err
			}
			if annotate {
				client := pipeline.NewVEPClient(a.settings, a.logger)
				sum, err := run.Enrich(cmd.Context(), client)
				progress.Finish()
				if err != nil {
					return fmt.Errorf("annotation failed, the unannotated store is kept at %s: %w", run.StorePath(), err)
				}
				a.logger.Info("annotation summary",
					zap.Int("ids", sum.IDs),
					zap.Int("batches", sum.Batches),
					zap.Int("annotated", sum.Annotated),
					zap.Int("placeholders", sum.Placeholders))
			} else {
				progress.Finish()
			}

			printIngestSummary(res)
			if annotate {
				fmt.Printf("Annotated store: %s\n", run.AnnotatedStorePath())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&annotate, "annotate", false, "Annotate variants with Ensembl VEP after ingestion")
	cmd.Flags().BoolVar(&force, "force", false, "Rebuild the store even if it is up to date")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Log progress instead of drawing a progress bar")
	cmd.Flags().StringVarP(&storePath, "output", "o", "", "Store path (default <workdir>/input.duckdb)")
	cmd.Flags().Int("chunk-size", 0, "Rows per append chunk")
	cmd.Flags().String("compression", "", "Parquet export codec: uncompressed, snappy, gzip, zstd, brotli, lz4")
	cmd.Flags().Int("compression-level", 0, "Parquet export compression level")
	cmd.Flags().Bool("export-parquet", false, "Also export every relation as Parquet next to the store")
	cmd.Flags().String("url", "", "VEP REST base URL")
	cmd.Flags().Int("batch-size", 0, "Identifiers per VEP request")
	cmd.Flags().Int("max-retries", 0, "Retries for transient VEP failures")

	return cmd
}

func printIngestSummary(res *pipeline.IngestResult) {
	if res.Reused {
		fmt.Printf("Store is up to date: %s (use --force to rebuild)\n", res.StorePath)
		return
	}

	fmt.Printf("Store: %s\n", res.StorePath)
	fmt.Printf("  Input format: %s\n", res.Format)
	fmt.Printf("  Variants: %d (%d chunks)\n", res.Rows, res.Chunks)
	fmt.Printf("  Columns: %d (%d from INFO)\n", len(res.Schema.Columns), len(res.Schema.InfoKeys()))
	fmt.Printf("  Chromosomes: %d\n", len(res.Stats.Chromosomes))
	fmt.Printf("  SNPs: %d, indels: %d\n",
		res.Stats.Counts.Get("Total_SNP_Count"), res.Stats.Counts.Get("Total_Indel_Count"))
	if !res.Schema.QualNumeric {
		fmt.Println("  QUAL contains missing values and is stored as text")
	}
	fmt.Printf("  Header tags: %d basic, %d structured\n", len(res.Stats.Metadata), len(res.Stats.Structured))
	for _, f := range res.ParquetFiles {
		fmt.Printf("  Parquet: %s\n", f)
	}
	if res.Warning != "" {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", res.Warning)
	}
}
