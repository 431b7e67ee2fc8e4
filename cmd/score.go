package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/connectingdocs/match-engine/internal/intake"
	"github.com/connectingdocs/match-engine/internal/model"
)

var scoreSave bool

var scoreCmd = &cobra.Command{
	Use:   "score <intake.json>",
	Short: "Build a report for one intake record and print it",
	Long:  "Reads a questionnaire record as JSON (use - for stdin), builds the report and prints it. With --save the report is persisted.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		raw, err := readIntake(args[0], cmd.InOrStdin())
		if err != nil {
			return err
		}
		profile, err := intake.Normalize(raw)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, "score")
		if err != nil {
			return err
		}
		defer env.Close()

		var rep *model.Report
		if scoreSave {
			rep, err = env.Reports.Generate(ctx, profile)
		} else {
			rep, err = env.Reports.Build(ctx, profile)
		}
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	},
}

func readIntake(path string, stdin io.Reader) (intake.RawIntake, error) {
	if path == "-" {
		return intake.ReadJSON(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return intake.RawIntake{}, eris.Wrapf(err, "open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return intake.ReadJSON(f)
}

func init() {
	scoreCmd.Flags().BoolVar(&scoreSave, "save", false, "persist the report")
	rootCmd.AddCommand(scoreCmd)
}
