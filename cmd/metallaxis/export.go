package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SL-LAIDLAW/metallaxis/internal/store"
)

func newExportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <store> <dir>",
		Short: "Write every relation of a store to Parquet files",
		Example: `  metallaxis export ~/.metallaxis/input.duckdb ./parquet
  metallaxis export --compression gzip --compression-level 6 input.duckdb ./out`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(args[0], store.Options{
				Compression:      a.settings.Compression,
				CompressionLevel: a.settings.CompressionLevel,
				Logger:           a.logger,
			})
			if err != nil {
				return err
			}
			defer st.Close()

			paths, err := st.Export(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Println(p)
			}
			return nil
		},
	}

	cmd.Flags().String("compression", "", "Parquet codec: uncompressed, snappy, gzip, zstd, brotli, lz4")
	cmd.Flags().Int("compression-level", 0, "Compression level (zstd only)")
	return cmd
}
