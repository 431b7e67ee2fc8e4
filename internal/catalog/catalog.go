// Package catalog loads the protocol candidate pool from files, spreadsheets
// and the persistent store.
package catalog

import (
	"context"
	"slices"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/connectingdocs/match-engine/internal/intake"
	"github.com/connectingdocs/match-engine/internal/model"
)

// Provider supplies the candidate pool for one matching run. The returned
// list is fully materialized.
type Provider interface {
	ListProtocols(ctx context.Context, filter model.ProtocolFilter) ([]model.Protocol, error)
}

// StaticProvider serves a fixed in-memory catalog.
type StaticProvider struct {
	protocols []model.Protocol
}

// NewStaticProvider returns a provider over a copy of protocols.
func NewStaticProvider(protocols []model.Protocol) *StaticProvider {
	return &StaticProvider{protocols: slices.Clone(protocols)}
}

func (p *StaticProvider) ListProtocols(_ context.Context, filter model.ProtocolFilter) ([]model.Protocol, error) {
	return filter.Apply(p.protocols), nil
}

// Clean canonicalizes a protocol loaded from an external source: risk-note
// flags are slugged to match profile flags, layers are lower-cased, and IDs
// and names are trimmed. It fails when the protocol cannot be scored.
func Clean(p model.Protocol) (model.Protocol, error) {
	p.ID = strings.TrimSpace(p.ID)
	p.Name = strings.TrimSpace(p.Name)
	if p.ID == "" {
		return p, eris.Errorf("catalog: protocol %q has no id", p.Name)
	}
	if p.Name == "" {
		p.Name = p.ID
	}
	if !p.PrimaryGoal.Valid() {
		return p, eris.Errorf("catalog: protocol %s has unknown primary goal %q", p.ID, p.PrimaryGoal)
	}

	goals := make([]model.Goal, 0, len(p.SecondaryGoals))
	for _, g := range p.SecondaryGoals {
		if g.Valid() && g != p.PrimaryGoal && !slices.Contains(goals, g) {
			goals = append(goals, g)
		}
	}
	p.SecondaryGoals = goals

	p.TargetLayers = slices.Clone(p.TargetLayers)
	for i, l := range p.TargetLayers {
		p.TargetLayers[i] = strings.ToLower(strings.TrimSpace(l))
	}

	notes := make([]model.RiskNote, 0, len(p.RiskNotes))
	for _, n := range p.RiskNotes {
		n.Flag = intake.Slug(n.Flag)
		n.Level = strings.TrimSpace(n.Level)
		if n.Flag == "" {
			continue
		}
		notes = append(notes, n)
	}
	p.RiskNotes = notes
	return p, nil
}

// CleanAll cleans every protocol and rejects duplicate IDs.
func CleanAll(protocols []model.Protocol) ([]model.Protocol, error) {
	out := make([]model.Protocol, 0, len(protocols))
	seen := make(map[string]bool, len(protocols))
	for _, p := range protocols {
		c, err := Clean(p)
		if err != nil {
			return nil, err
		}
		if seen[c.ID] {
			return nil, eris.Errorf("catalog: duplicate protocol id %s", c.ID)
		}
		seen[c.ID] = true
		out = append(out, c)
	}
	return out, nil
}

// Solutions derives the signature solutions referenced by protocols, in
// first-seen order.
func Solutions(protocols []model.Protocol) []model.Solution {
	var out []model.Solution
	seen := map[string]bool{}
	for _, p := range protocols {
		sig := p.Signature
		if sig == nil || sig.SolutionID == "" || seen[sig.SolutionID] {
			continue
		}
		seen[sig.SolutionID] = true
		name := sig.Solution
		if name == "" {
			name = sig.SolutionID
		}
		out = append(out, model.Solution{ID: sig.SolutionID, DoctorID: sig.DoctorID, Name: name})
	}
	return out
}
