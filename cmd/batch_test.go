package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connectingdocs/match-engine/internal/intake"
	"github.com/connectingdocs/match-engine/internal/model"
)

func feed(rows ...intake.RawIntake) <-chan intake.RawIntake {
	ch := make(chan intake.RawIntake, len(rows))
	for _, r := range rows {
		ch <- r
	}
	close(ch)
	return ch
}

func validRow(id string) intake.RawIntake {
	return intake.RawIntake{PatientID: id, PrimaryGoal: "pigmentation", Language: "EN"}
}

func decodeLines(t *testing.T, out string) map[int]batchLine {
	t.Helper()
	lines := map[int]batchLine{}
	for _, l := range strings.Split(strings.TrimSpace(out), "\n") {
		if l == "" {
			continue
		}
		var bl batchLine
		require.NoError(t, json.Unmarshal([]byte(l), &bl))
		lines[bl.Row] = bl
	}
	return lines
}

func TestProcessBatch_Empty(t *testing.T) {
	var out bytes.Buffer
	summary, err := processBatch(context.Background(), feed(), 4, &out, func(context.Context, model.CanonicalProfile) (*model.Report, error) {
		t.Fatal("build should not be called for an empty batch")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, batchSummary{}, summary)
	assert.Empty(t, out.String())
}

func TestProcessBatch_AllSucceed(t *testing.T) {
	var calls atomic.Int64
	var out bytes.Buffer

	summary, err := processBatch(context.Background(), feed(validRow("a"), validRow("b"), validRow("c")), 2, &out,
		func(_ context.Context, p model.CanonicalProfile) (*model.Report, error) {
			n := calls.Add(1)
			return &model.Report{ID: fmt.Sprintf("rep-%s", p.PatientID), Status: model.ReportMatched, AlignmentScore: int(70 + n)}, nil
		})
	require.NoError(t, err)
	assert.Equal(t, int64(3), calls.Load())
	assert.Equal(t, batchSummary{Succeeded: 3}, summary)

	lines := decodeLines(t, out.String())
	require.Len(t, lines, 3)
	assert.Equal(t, "rep-a", lines[1].ReportID)
	assert.Equal(t, "a", lines[1].PatientID)
	assert.Equal(t, string(model.ReportMatched), lines[3].Status)
}

func TestProcessBatch_FailuresDoNotAbort(t *testing.T) {
	var out bytes.Buffer
	rows := feed(validRow("ok"), intake.RawIntake{PrimaryGoal: "lifting"}, validRow("boom"))

	summary, err := processBatch(context.Background(), rows, 1, &out,
		func(_ context.Context, p model.CanonicalProfile) (*model.Report, error) {
			if p.PatientID == "boom" {
				return nil, errors.New("store unavailable")
			}
			return &model.Report{ID: "rep-" + p.PatientID, Status: model.ReportNoMatch}, nil
		})
	require.NoError(t, err)
	assert.Equal(t, batchSummary{Succeeded: 1, Failed: 2}, summary)

	lines := decodeLines(t, out.String())
	require.Len(t, lines, 3)
	assert.Empty(t, lines[1].Error)
	assert.Contains(t, lines[2].Error, "missing required field")
	assert.Equal(t, "store unavailable", lines[3].Error)
}

func TestProcessBatch_ZeroConcurrency(t *testing.T) {
	var out bytes.Buffer
	summary, err := processBatch(context.Background(), feed(validRow("a")), 0, &out,
		func(context.Context, model.CanonicalProfile) (*model.Report, error) {
			return &model.Report{ID: "rep-a"}, nil
		})
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.Succeeded)
}
