package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jurisearch/statuteqa/internal/config"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "statuteqa",
	Short: "Grounded question answering over Canadian statutes and regulations",
	Long: `statuteqa answers natural-language questions about Canadian statutes and
regulations. Retrieval escalates through four backend tiers (weaviate hybrid
narrow and broad, neo4j graph, postgres full-text) until the evidence is good
enough, then a single generation call drafts an answer that is stripped back
to the claims its citations actually support. When the sources cannot carry
an answer, the response says so instead of guessing.`,
	Version:           version,
	PersistentPreRunE: bootstrap,
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		_ = zap.L().Sync()
	},
}

// bootstrap runs before every subcommand: read config.yaml and the
// environment into the cfg global, then install the process logger.
func bootstrap(_ *cobra.Command, _ []string) error {
	c, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg = c

	if err := config.InitLogger(cfg.Log); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
