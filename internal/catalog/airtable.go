package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/connectingdocs/match-engine/internal/model"
	"github.com/connectingdocs/match-engine/pkg/airtable"
)

// AirtableProvider reads the protocol table of the clinic's Airtable base on
// every listing.
type AirtableProvider struct {
	client airtable.Client
	table  string
}

// NewAirtableProvider returns a provider over one Airtable table.
func NewAirtableProvider(client airtable.Client, table string) *AirtableProvider {
	return &AirtableProvider{client: client, table: table}
}

func (p *AirtableProvider) ListProtocols(ctx context.Context, filter model.ProtocolFilter) ([]model.Protocol, error) {
	protocols, err := p.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return filter.Apply(protocols), nil
}

// Fetch loads and cleans every protocol record. Records that cannot be
// mapped are logged and skipped.
func (p *AirtableProvider) Fetch(ctx context.Context) ([]model.Protocol, error) {
	records, err := p.client.ListRecords(ctx, p.table)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: list airtable table %s", p.table)
	}

	var protocols []model.Protocol
	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		fields := recordFields(rec)
		if fields[ColID] == "" {
			fields[ColID] = rec.ID
		}
		proto, err := FromFields(fields)
		if err != nil {
			zap.L().Warn("catalog: skipping airtable record",
				zap.String("record_id", rec.ID),
				zap.Error(err),
			)
			continue
		}
		if seen[proto.ID] {
			zap.L().Warn("catalog: duplicate airtable protocol", zap.String("protocol_id", proto.ID))
			continue
		}
		seen[proto.ID] = true
		protocols = append(protocols, proto)
	}

	zap.L().Info("catalog: fetched airtable catalog",
		zap.String("table", p.table),
		zap.Int("records", len(records)),
		zap.Int("protocols", len(protocols)),
	)
	return protocols, nil
}

// recordFields flattens Airtable cell values to strings keyed by column name.
// Multi-select and linked-record arrays are joined with commas.
func recordFields(rec airtable.Record) map[string]string {
	out := make(map[string]string, len(rec.Fields))
	for k, v := range rec.Fields {
		out[HeaderKey(k)] = cellString(v)
	}
	return out
}

func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if s := cellString(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprint(t)
	}
}
