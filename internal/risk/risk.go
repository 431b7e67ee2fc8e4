// Package risk classifies clinical risk factors into three canonical tiers.
package risk

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Tier is a canonical risk classification.
type Tier string

const (
	Safe    Tier = "safe"
	Caution Tier = "caution"
	Danger  Tier = "danger"
)

// Tiers lists the canonical tiers in presentation order, most severe first.
var Tiers = []Tier{Danger, Caution, Safe}

// levels is the single normalization table from every accepted vocabulary
// onto the canonical tiers. Keys are upper-case with spaces and hyphens
// folded to underscores.
var levels = map[string]Tier{
	"SAFE":    Safe,
	"LOW":     Safe,
	"MINIMAL": Safe,
	"NONE":    Safe,

	"CAUTION":  Caution,
	"MODERATE": Caution,
	"MEDIUM":   Caution,

	"DANGER":          Danger,
	"HIGH":            Danger,
	"VERY_HIGH":       Danger,
	"CRITICAL":        Danger,
	"CONTRAINDICATED": Danger,
}

// ClassificationError reports a risk level outside the known vocabulary.
type ClassificationError struct {
	Level string
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("risk: unknown level %q", e.Level)
}

// ParseLevel normalizes a raw level from any supported vocabulary. Canonical
// tier names parse to themselves.
func ParseLevel(raw string) (Tier, error) {
	key := strings.ToUpper(strings.TrimSpace(raw))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	if t, ok := levels[key]; ok {
		return t, nil
	}
	return "", &ClassificationError{Level: raw}
}

// Severity orders tiers: safe < caution < danger. Unknown tiers rank lowest.
func (t Tier) Severity() int {
	switch t {
	case Safe:
		return 1
	case Caution:
		return 2
	case Danger:
		return 3
	}
	return 0
}

// Max returns the most severe tier, or Safe when none are given.
func Max(tiers ...Tier) Tier {
	out := Safe
	for _, t := range tiers {
		if t.Severity() > out.Severity() {
			out = t
		}
	}
	return out
}

var tierLabels = map[string]map[Tier]string{
	"EN": {Safe: "SAFE", Caution: "CAUTION", Danger: "CONTRAINDICATED"},
	"KO": {Safe: "안전", Caution: "주의", Danger: "금기"},
	"JP": {Safe: "安全", Caution: "注意", Danger: "禁忌"},
	"CN": {Safe: "安全", Caution: "注意", Danger: "禁忌"},
}

// Label returns the localized display label, falling back to English.
func (t Tier) Label(lang string) string {
	labels, ok := tierLabels[strings.ToUpper(lang)]
	if !ok {
		labels = tierLabels["EN"]
	}
	if l, ok := labels[t]; ok {
		return l
	}
	return string(t)
}

// RawFactor is a risk factor as supplied by a collaborator, level unparsed.
type RawFactor struct {
	Factor      string `json:"factor"`
	Level       string `json:"level"`
	Description string `json:"description"`
}

// Factor is a classified risk factor.
type Factor struct {
	Factor      string `json:"factor"`
	Tier        Tier   `json:"tier"`
	Description string `json:"description"`
}

// Classify assigns every factor to exactly one tier. The first unknown level
// aborts classification.
func Classify(raw []RawFactor) ([]Factor, error) {
	out := make([]Factor, 0, len(raw))
	for _, r := range raw {
		t, err := ParseLevel(r.Level)
		if err != nil {
			return nil, err
		}
		out = append(out, Factor{Factor: r.Factor, Tier: t, Description: r.Description})
	}
	return out, nil
}

// Groups partitions factors by tier. All three groups are always present;
// an empty group means no factors of that tier, not missing data.
type Groups struct {
	Danger  []Factor `json:"danger"`
	Caution []Factor `json:"caution"`
	Safe    []Factor `json:"safe"`
}

// NewGroups returns Groups with every tier initialized to an empty list.
func NewGroups() Groups {
	return Groups{Danger: []Factor{}, Caution: []Factor{}, Safe: []Factor{}}
}

// Group partitions factors by tier, preserving input order within each tier.
func Group(factors []Factor) Groups {
	g := NewGroups()
	for _, f := range factors {
		g.add(f)
	}
	return g
}

func (g *Groups) add(f Factor) {
	switch f.Tier {
	case Danger:
		g.Danger = append(g.Danger, f)
	case Caution:
		g.Caution = append(g.Caution, f)
	default:
		g.Safe = append(g.Safe, f)
	}
}

// Get returns the factors of one tier.
func (g Groups) Get(t Tier) []Factor {
	switch t {
	case Danger:
		return g.Danger
	case Caution:
		return g.Caution
	}
	return g.Safe
}

// Len returns the total number of grouped factors.
func (g Groups) Len() int {
	return len(g.Danger) + len(g.Caution) + len(g.Safe)
}

// MarshalJSON emits all three tiers, rendering empty ones as [] and never null.
func (g Groups) MarshalJSON() ([]byte, error) {
	type plain Groups
	out := plain(g)
	if out.Danger == nil {
		out.Danger = []Factor{}
	}
	if out.Caution == nil {
		out.Caution = []Factor{}
	}
	if out.Safe == nil {
		out.Safe = []Factor{}
	}
	return json.Marshal(out)
}
