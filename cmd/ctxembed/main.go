package main

import (
	"os"

	"ctxembed/internal/logger"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	logger.Init()
	rootCmd := &cobra.Command{
		Use:          "ctxembed",
		Short:        "ctxembed turns text into embeddings through an OpenAI-compatible endpoint",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.toml")

	rootCmd.AddCommand(embedCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(dimensionCmd)
	rootCmd.AddCommand(similarityCmd)
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
