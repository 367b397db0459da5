package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/SL-LAIDLAW/metallaxis/internal/output"
	"github.com/SL-LAIDLAW/metallaxis/internal/query"
	"github.com/SL-LAIDLAW/metallaxis/internal/store"
)

func newQueryCmd(a *app) *cobra.Command {
	var (
		column string
		filter string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "query [store]",
		Short: "Filter the variants of a store",
		Long: `Print the variants whose column matches a filter, tab-delimited.

Filters:
  A          equality
  A,B,C      any of the listed values
  LO-HI      inclusive range (numeric columns only)
  (empty)    every row

Whitespace is ignored and text matches are case-insensitive.`,
		Example: `  metallaxis query --column CHROM --filter X
  metallaxis query --column POS --filter 10000-20000
  metallaxis query ~/.metallaxis/input_annotated.duckdb --column IMPACT --filter HIGH,MODERATE`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if column == "" {
				return &usageError{fmt.Errorf("--column is required")}
			}

			path := a.settings.StorePath()
			if len(args) == 1 {
				path = args[0]
			}

			st, err := store.Open(path, store.Options{Logger: a.logger})
			if err != nil {
				return err
			}
			defer st.Close()

			f := &query.Filter{Store: st, Limit: limit}
			rows, err := f.Run(cmd.Context(), column, filter)
			if err != nil {
				return err
			}
			if err := output.WriteRows(os.Stdout, rows); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "%d rows\n", rows.Len())
			return nil
		},
	}

	cmd.Flags().StringVarP(&column, "column", "c", "", "Column to filter on")
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "Filter expression")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum rows to print (0 for all)")

	return cmd
}
