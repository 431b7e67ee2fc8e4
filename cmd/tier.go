package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/connectingdocs/match-engine/internal/engagement"
)

var tierCounters engagement.Counters

var tierCmd = &cobra.Command{
	Use:   "tier",
	Short: "Compute the engagement tier for a set of counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := engagement.NewEngine(engagement.TiersV1, engagement.PointsV1, cfg.Engagement.BaseOffset)
		if err != nil {
			return err
		}
		res, err := e.Compute(tierCounters)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	f := tierCmd.Flags()
	f.IntVar(&tierCounters.Clicks, "clicks", 0, "click count")
	f.IntVar(&tierCounters.Saves, "saves", 0, "save count")
	f.IntVar(&tierCounters.Adoptions, "adoptions", 0, "adoption count")
	f.IntVar(&tierCounters.Matches, "matches", 0, "match count")
	rootCmd.AddCommand(tierCmd)
}
