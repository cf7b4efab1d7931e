package main

import (
	"fmt"
	"text/tabwriter"

	"ctxembed/internal/embedding"

	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models with known dimensions and token limits",
	RunE: func(cmd *cobra.Command, args []string) error {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "MODEL\tDIMENSION\tMAX TOKENS\tDESCRIPTION")
		for _, m := range embedding.Models() {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", m.ModelID, m.Dimension, m.MaxTokens, m.Description)
		}
		return tw.Flush()
	},
}
