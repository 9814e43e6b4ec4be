package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/ordercsv/internal/config"
	"github.com/JonMunkholm/ordercsv/internal/export"
)

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List grouping strategies for the attribute export",
	Long: `List grouping strategies. All strategies produce identical output;
they differ only in how rows are pulled from the database cursor.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		def := export.DefaultStrategy
		if cfg, err := config.Load(); err == nil {
			def = cfg.Export.Strategy()
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tALIASES\tDEFAULT")
		for _, st := range export.Strategies() {
			mark := ""
			if st == def {
				mark = "*"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", st, strings.Join(st.Aliases(), ", "), mark)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(strategiesCmd)
}
