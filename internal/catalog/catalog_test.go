package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/connectingdocs/match-engine/internal/model"
)

func TestClean(t *testing.T) {
	p, err := Clean(model.Protocol{
		ID:             " p1 ",
		PrimaryGoal:    model.GoalPigmentation,
		SecondaryGoals: []model.Goal{model.GoalGlow, model.GoalPigmentation, model.GoalGlow, "bogus"},
		TargetLayers:   []string{"SMAS", " Dermis"},
		RiskNotes: []model.RiskNote{
			{Flag: "Keloid Prone", Level: " HIGH "},
			{Flag: "  ", Level: "LOW"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, "p1", p.Name)
	assert.Equal(t, []model.Goal{model.GoalGlow}, p.SecondaryGoals)
	assert.Equal(t, []string{"smas", "dermis"}, p.TargetLayers)
	assert.Equal(t, []model.RiskNote{{Flag: "keloid_prone", Level: "HIGH"}}, p.RiskNotes)
	assert.True(t, p.TargetsDeepLayer())
}

func TestClean_Rejects(t *testing.T) {
	_, err := Clean(model.Protocol{Name: "No ID", PrimaryGoal: model.GoalGlow})
	assert.ErrorContains(t, err, "has no id")

	_, err = Clean(model.Protocol{ID: "x", PrimaryGoal: "hair"})
	assert.ErrorContains(t, err, "unknown primary goal")

	_, err = CleanAll([]model.Protocol{
		{ID: "x", PrimaryGoal: model.GoalGlow},
		{ID: "x", PrimaryGoal: model.GoalAcne},
	})
	assert.ErrorContains(t, err, "duplicate protocol id x")
}

func TestFromFields(t *testing.T) {
	p, err := FromFields(map[string]string{
		ColID:             "toning",
		ColName:           "Laser Toning",
		ColPrimaryGoal:    "기미",
		ColSecondaryGoals: "Glow, Texture",
		ColPainLevel:      "Low",
		ColDowntimeLevel:  "none",
		ColPriceTier:      "$$",
		ColTargetLayers:   "Epidermis, Dermis",
		ColRiskNotes:      "Melasma:MODERATE:may rebound; rosacea:low",
		ColDoctorID:       "doc-1",
		ColDoctorName:     "Dr. Kim",
		ColSolutionID:     "sol-1",
		ColSolution:       "Glass Skin",
	})
	require.NoError(t, err)
	assert.Equal(t, model.GoalPigmentation, p.PrimaryGoal)
	assert.Equal(t, []model.Goal{model.GoalGlow, model.GoalTexture}, p.SecondaryGoals)
	assert.Equal(t, model.LevelLow, p.PainLevel)
	assert.Equal(t, model.LevelNone, p.DowntimeLevel)
	assert.Equal(t, model.PriceStandard, p.PriceTier)
	assert.Equal(t, []model.RiskNote{
		{Flag: "melasma", Level: "MODERATE", Description: "may rebound"},
		{Flag: "rosacea", Level: "low"},
	}, p.RiskNotes)
	require.NotNil(t, p.Signature)
	assert.Equal(t, "Dr. Kim", p.Signature.DoctorName)
}

func TestFromFields_UnknownLevelsLeftBlank(t *testing.T) {
	p, err := FromFields(map[string]string{ColID: "x", ColPrimaryGoal: "lifting", ColPainLevel: "ouch"})
	require.NoError(t, err)
	assert.Equal(t, model.Level(""), p.PainLevel)
	assert.Nil(t, p.Signature)
}

func TestFromFields_Errors(t *testing.T) {
	_, err := FromFields(map[string]string{ColID: "x", ColPrimaryGoal: "hair"})
	assert.ErrorContains(t, err, "unknown primary goal")

	_, err = FromFields(map[string]string{ColID: "x", ColPrimaryGoal: "acne", ColRiskNotes: "keloid"})
	assert.ErrorContains(t, err, "flag:LEVEL")
}

func TestSolutions(t *testing.T) {
	got := Solutions([]model.Protocol{
		{ID: "a", Signature: &model.DoctorRef{DoctorID: "d1", SolutionID: "s1", Solution: "Glass Skin"}},
		{ID: "b", Signature: &model.DoctorRef{DoctorID: "d1", SolutionID: "s1"}},
		{ID: "c", Signature: &model.DoctorRef{DoctorID: "d2", SolutionID: "s2"}},
		{ID: "d"},
	})
	assert.Equal(t, []model.Solution{
		{ID: "s1", DoctorID: "d1", Name: "Glass Skin"},
		{ID: "s2", DoctorID: "d2", Name: "s2"},
	}, got)
}

func TestStaticProvider(t *testing.T) {
	in := []model.Protocol{{ID: "a"}, {ID: "b"}}
	prov := NewStaticProvider(in)
	in[0].ID = "mutated"

	got, err := prov.ListProtocols(context.Background(), model.ProtocolFilter{})
	require.NoError(t, err)
	assert.Equal(t, "a", got[0].ID)

	got, err = prov.ListProtocols(context.Background(), model.ProtocolFilter{IDs: []string{"b"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestFileProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	yaml := `
protocols:
  - id: toning
    name: Laser Toning
    primary_goal: pigmentation
    pain_level: low
    downtime_level: none
    price_tier: standard
    risk_notes:
      - flag: Melasma
        level: MODERATE
    signature:
      doctor_id: doc-1
      doctor_name: Dr. Kim
  - id: hifu
    name: HIFU Lifting
    primary_goal: lifting
    pain_level: high
    downtime_level: low
    target_layers: [SMAS]
solutions:
  - id: sol-1
    doctor_id: doc-1
    name: Glass Skin
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	prov, err := NewFileProvider(path)
	require.NoError(t, err)
	require.Len(t, prov.File.Solutions, 1)

	got, err := prov.ListProtocols(context.Background(), model.ProtocolFilter{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "melasma", got[0].RiskNotes[0].Flag)
	assert.Equal(t, []string{"smas"}, got[1].TargetLayers)

	byDoctor, err := prov.ListProtocols(context.Background(), model.ProtocolFilter{DoctorID: "doc-1"})
	require.NoError(t, err)
	assert.Len(t, byDoctor, 1)
}

func TestFileProvider_Errors(t *testing.T) {
	_, err := NewFileProvider(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "catalog: read")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("protocols:\n  - id: x\n    primary_goal: hair\n"), 0o644))
	_, err = NewFileProvider(bad)
	assert.ErrorContains(t, err, "unknown primary goal")
}

func createTestXLSX(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				cell := row.AddCell()
				cell.SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "test.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestLoadXLSX(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Protocols": {
			{"ID", "Name", "Primary Goal", "Pain Level", "Downtime Level", "Risk Notes", "Doctor ID"},
			{"toning", "Laser Toning", "Pigmentation", "Low", "None", "melasma:MODERATE", "doc-1"},
			{"", "", "", "", "", "", ""},
			{"hifu", "HIFU", "Lifting", "High", "Low", "", ""},
		},
	})

	protocols, err := LoadXLSX(path, XLSXOptions{SheetName: "Protocols"})
	require.NoError(t, err)
	require.Len(t, protocols, 2)
	assert.Equal(t, "toning", protocols[0].ID)
	assert.Equal(t, model.LevelLow, protocols[0].PainLevel)
	assert.Equal(t, "doc-1", protocols[0].Signature.DoctorID)
	assert.Equal(t, model.GoalLifting, protocols[1].PrimaryGoal)

	prov, err := NewXLSXProvider(path, XLSXOptions{})
	require.NoError(t, err)
	got, err := prov.ListProtocols(context.Background(), model.ProtocolFilter{})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestLoadXLSX_Errors(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			{"id", "primary_goal"},
			{"x", "hair removal"},
		},
	})

	_, err := LoadXLSX(path, XLSXOptions{})
	assert.ErrorContains(t, err, "xlsx: row 2")

	_, err = LoadXLSX(path, XLSXOptions{SheetName: "Nope"})
	assert.ErrorContains(t, err, `sheet "Nope" not found`)

	_, err = LoadXLSX(path, XLSXOptions{SheetIndex: 3})
	assert.ErrorContains(t, err, "out of range")
}
