package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	dimensionDetect bool
	dimensionModel  string
)

var dimensionCmd = &cobra.Command{
	Use:   "dimension",
	Short: "Print the embedding dimension of the configured model",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := setup(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		if dimensionModel != "" {
			if err := setModel(ctx, rt.provider, dimensionModel); err != nil {
				return err
			}
		}

		var dim int
		if dimensionDetect {
			dim, err = rt.provider.DetectDimension(ctx, "")
			if err != nil {
				return err
			}
		} else {
			dim = rt.provider.Dimension()
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", rt.provider.Model(), dim)
		return nil
	},
}

func init() {
	dimensionCmd.Flags().BoolVarP(&dimensionDetect, "detect", "d", false, "resolve the dimension with the endpoint for custom models")
	dimensionCmd.Flags().StringVarP(&dimensionModel, "model", "m", "", "switch to this model first")
}
