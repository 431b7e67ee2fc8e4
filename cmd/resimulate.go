package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/connectingdocs/match-engine/internal/report"
	"github.com/connectingdocs/match-engine/internal/whatif"
)

var resimIn whatif.Input

var resimulateCmd = &cobra.Command{
	Use:   "resimulate",
	Short: "Project a match score under new pain and downtime tolerances",
	RunE: func(cmd *cobra.Command, args []string) error {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report.Project(resimIn))
	},
}

func init() {
	f := resimulateCmd.Flags()
	f.IntVar(&resimIn.BaseScore, "base", 80, "base match score")
	f.IntVar(&resimIn.BaselinePain, "baseline-pain", 50, "pain tolerance when the report was built (0-100)")
	f.IntVar(&resimIn.BaselineDowntime, "baseline-downtime", 3, "downtime days when the report was built (0-7)")
	f.IntVar(&resimIn.CurrentPain, "pain", 50, "new pain tolerance (0-100)")
	f.IntVar(&resimIn.CurrentDowntime, "downtime", 3, "new downtime days (0-7)")
	rootCmd.AddCommand(resimulateCmd)
}
