package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/connectingdocs/match-engine/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "match-engine",
	Short: "Clinical treatment matching and report engine",
	Long:  "Normalizes patient intake answers, scores them against the protocol catalog, builds ranked risk-grouped reports and tracks doctor engagement tiers.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
