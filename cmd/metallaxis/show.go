package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/SL-LAIDLAW/metallaxis/internal/output"
	"github.com/SL-LAIDLAW/metallaxis/internal/store"
)

func newShowCmd(a *app) *cobra.Command {
	var showColumns bool

	cmd := &cobra.Command{
		Use:   "show [store]",
		Short: "Print the metadata and statistics of a store",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.settings.StorePath()
			if len(args) == 1 {
				path = args[0]
			}

			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}

			st, err := store.Open(path, store.Options{Logger: a.logger})
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()
			n, err := st.Count(ctx, store.Variants)
			if err != nil {
				return err
			}
			fmt.Printf("Store: %s (%s, %d variants)\n\n", path, formatSize(info.Size()), n)

			for _, rel := range []string{store.Metadata, store.Stats} {
				rows, err := st.ReadAll(ctx, rel)
				if err != nil {
					return err
				}
				fmt.Printf("== %s ==\n", rel)
				if err := output.WriteRows(os.Stdout, rows); err != nil {
					return err
				}
				fmt.Println()
			}

			if showColumns {
				cols, err := st.Columns(ctx, store.Variants)
				if err != nil {
					return err
				}
				fmt.Printf("== %s columns ==\n", store.Variants)
				for _, c := range cols {
					kind := "text"
					if c.Numeric() {
						kind = "numeric"
					}
					fmt.Printf("%s\t%s\t%s\n", c.Name, c.Type, kind)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showColumns, "columns", false, "Also list the variant columns and their types")
	return cmd
}

// formatSize formats bytes as human-readable size.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
