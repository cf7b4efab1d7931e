package main

import (
	"context"
	"fmt"

	"ctxembed/internal/embedding"

	"github.com/spf13/cobra"
)

var similarityCmd = &cobra.Command{
	Use:   "similarity <text> <text>",
	Short: "Print the cosine similarity of two texts",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := setup(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		vecs, err := rt.provider.EmbedBatch(ctx, args)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%.6f\n", embedding.CosineSimilarity(vecs[0].Values, vecs[1].Values))
		return nil
	},
}

func setModel(ctx context.Context, p embedding.Provider, model string) error {
	ms, ok := p.(embedding.ModelSetter)
	if !ok {
		return fmt.Errorf("provider %s does not support changing models", p.Provider())
	}
	return ms.SetModel(ctx, model)
}
