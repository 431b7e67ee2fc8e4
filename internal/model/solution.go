package model

import (
	"strings"
	"time"
)

// EngagementEvent is a counted interaction with a doctor's signature solution.
type EngagementEvent string

const (
	EventClick    EngagementEvent = "click"
	EventSave     EngagementEvent = "save"
	EventAdoption EngagementEvent = "adoption"
	EventMatch    EngagementEvent = "match"
)

// ParseEngagementEvent maps a request label onto an EngagementEvent.
func ParseEngagementEvent(s string) (EngagementEvent, bool) {
	switch e := EngagementEvent(strings.ToLower(strings.TrimSpace(s))); e {
	case EventClick, EventSave, EventAdoption, EventMatch:
		return e, true
	}
	return "", false
}

// Solution is a doctor's signature solution, the unit engagement is counted on.
type Solution struct {
	ID        string    `json:"id" yaml:"id"`
	DoctorID  string    `json:"doctor_id" yaml:"doctor_id"`
	Name      string    `json:"name" yaml:"name"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

// ProtocolFilter narrows a candidate pool listing. The zero value lists every
// protocol.
type ProtocolFilter struct {
	IDs      []string `json:"ids,omitempty"`
	DoctorID string   `json:"doctor_id,omitempty"`
	Limit    int      `json:"limit,omitempty"`
}

// Match reports whether p passes the filter's ID and doctor constraints.
func (f ProtocolFilter) Match(p Protocol) bool {
	if len(f.IDs) > 0 {
		found := false
		for _, id := range f.IDs {
			if id == p.ID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.DoctorID != "" && (p.Signature == nil || p.Signature.DoctorID != f.DoctorID) {
		return false
	}
	return true
}

// Apply filters ps and truncates to Limit.
func (f ProtocolFilter) Apply(ps []Protocol) []Protocol {
	out := make([]Protocol, 0, len(ps))
	for _, p := range ps {
		if f.Match(p) {
			out = append(out, p)
		}
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}
