package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/connectingdocs/match-engine/internal/intake"
	"github.com/connectingdocs/match-engine/internal/model"
)

var batchConcurrency int

var batchCmd = &cobra.Command{
	Use:   "batch <intakes.csv>",
	Short: "Generate and store reports for a CSV export of intake answers",
	Long:  "Streams questionnaire rows from a CSV export, builds and persists one report per row and prints one JSON result line per row.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		f, err := os.Open(args[0])
		if err != nil {
			return eris.Wrapf(err, "open %s", args[0])
		}
		defer f.Close() //nolint:errcheck

		env, err := initEnv(ctx, "batch")
		if err != nil {
			return err
		}
		defer env.Close()

		concurrency := batchConcurrency
		if concurrency <= 0 {
			concurrency = cfg.Batch.Concurrency
		}

		rows, errs := intake.StreamCSV(ctx, f)
		summary, err := processBatch(ctx, rows, concurrency, cmd.OutOrStdout(), env.Reports.Generate)
		if err != nil {
			return err
		}
		if err := <-errs; err != nil {
			return err
		}
		if summary.Failed > 0 {
			zap.L().Warn("batch finished with failures", zap.Int64("failed", summary.Failed))
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "max rows processed at once (default from config)")
	rootCmd.AddCommand(batchCmd)
}

// reportFunc builds (and usually persists) a report for one profile.
type reportFunc func(ctx context.Context, profile model.CanonicalProfile) (*model.Report, error)

// batchLine is the JSON result written per input row.
type batchLine struct {
	Row       int    `json:"row"`
	PatientID string `json:"patient_id,omitempty"`
	ReportID  string `json:"report_id,omitempty"`
	Status    string `json:"status,omitempty"`
	Alignment int    `json:"alignment_score"`
	Error     string `json:"error,omitempty"`
}

type batchSummary struct {
	Succeeded int64
	Failed    int64
}

// processBatch normalizes and reports every row from rows with at most
// concurrency workers. Row failures are written as result lines and never
// abort the batch.
func processBatch(ctx context.Context, rows <-chan intake.RawIntake, concurrency int, w io.Writer, build reportFunc) (batchSummary, error) {
	if concurrency <= 0 {
		concurrency = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var (
		succeeded, failed atomic.Int64
		mu                sync.Mutex
		enc               = json.NewEncoder(w)
	)
	emit := func(line batchLine) error {
		mu.Lock()
		defer mu.Unlock()
		return enc.Encode(line)
	}

	row := 0
	for raw := range rows {
		row++
		n, raw := row, raw
		g.Go(func() error {
			log := zap.L().With(zap.Int("row", n), zap.String("patient_id", raw.PatientID))
			line := batchLine{Row: n, PatientID: raw.PatientID}

			rep, err := buildRow(gctx, raw, build)
			if err != nil {
				failed.Add(1)
				log.Error("batch row failed", zap.Error(err))
				line.Error = err.Error()
				return emit(line)
			}

			succeeded.Add(1)
			line.ReportID = rep.ID
			line.Status = string(rep.Status)
			line.Alignment = rep.AlignmentScore
			log.Debug("batch row complete", zap.String("report_id", rep.ID))
			return emit(line)
		})
	}

	if err := g.Wait(); err != nil {
		return batchSummary{}, eris.Wrap(err, "batch processing")
	}

	summary := batchSummary{Succeeded: succeeded.Load(), Failed: failed.Load()}
	zap.L().Info("batch complete",
		zap.Int("rows", row),
		zap.Int64("succeeded", summary.Succeeded),
		zap.Int64("failed", summary.Failed),
	)
	return summary, nil
}

func buildRow(ctx context.Context, raw intake.RawIntake, build reportFunc) (*model.Report, error) {
	profile, err := intake.Normalize(raw)
	if err != nil {
		return nil, err
	}
	return build(ctx, profile)
}
