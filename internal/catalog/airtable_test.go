package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connectingdocs/match-engine/internal/model"
	"github.com/connectingdocs/match-engine/pkg/airtable"
)

type fakeAirtable struct {
	records []airtable.Record
	err     error
	table   string
}

func (f *fakeAirtable) ListRecords(_ context.Context, table string, _ ...airtable.ListOption) ([]airtable.Record, error) {
	f.table = table
	return f.records, f.err
}

func TestAirtableProvider_Fetch(t *testing.T) {
	fake := &fakeAirtable{records: []airtable.Record{
		{ID: "rec1", Fields: map[string]any{
			"Name":            "Laser Toning",
			"Primary Goal":    "Pigmentation",
			"Secondary Goals": []any{"Glow", "Texture"},
			"Pain Level":      "Low",
			"Downtime Level":  "None",
			"Risk Notes":      "melasma:MODERATE",
			"Doctor ID":       "doc-1",
		}},
		{ID: "rec2", Fields: map[string]any{"id": "bad", "Primary Goal": "hair"}},
		{ID: "rec3", Fields: map[string]any{"id": "hifu", "Primary Goal": "Lifting", "Target Layers": []any{"SMAS"}}},
		{ID: "rec4", Fields: map[string]any{"id": "hifu", "Primary Goal": "Lifting"}},
	}}

	prov := NewAirtableProvider(fake, "Protocols")
	got, err := prov.ListProtocols(context.Background(), model.ProtocolFilter{})
	require.NoError(t, err)
	assert.Equal(t, "Protocols", fake.table)

	require.Len(t, got, 2)
	assert.Equal(t, "rec1", got[0].ID)
	assert.Equal(t, []model.Goal{model.GoalGlow, model.GoalTexture}, got[0].SecondaryGoals)
	assert.Equal(t, "melasma", got[0].RiskNotes[0].Flag)
	assert.Equal(t, "hifu", got[1].ID)
	assert.True(t, got[1].TargetsDeepLayer())
}

func TestAirtableProvider_Error(t *testing.T) {
	prov := NewAirtableProvider(&fakeAirtable{err: errors.New("status 401")}, "Protocols")
	_, err := prov.ListProtocols(context.Background(), model.ProtocolFilter{})
	assert.ErrorContains(t, err, "list airtable table Protocols")
}

func TestCellString(t *testing.T) {
	assert.Equal(t, "", cellString(nil))
	assert.Equal(t, "3", cellString(float64(3)))
	assert.Equal(t, "2.5", cellString(2.5))
	assert.Equal(t, "a, b", cellString([]any{"a", "", "b"}))
	assert.Equal(t, "true", cellString(true))
}
