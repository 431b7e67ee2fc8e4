// Package radar projects profiles and candidate sub-scores onto the fixed
// axes of the report's fit chart, with localized axis labels.
package radar

import (
	"math"
	"strings"

	"github.com/connectingdocs/match-engine/internal/model"
)

// Axis is one spoke of the chart: a scoring axis key and its English subject.
type Axis struct {
	Key     string
	Subject string
}

// DefaultAxes is the fixed, ordered axis set of the report chart.
var DefaultAxes = []Axis{
	{Key: model.AxisPain, Subject: "Pain Tolerance"},
	{Key: model.AxisDowntime, Subject: "Downtime"},
	{Key: model.AxisEfficacy, Subject: "Efficacy"},
	{Key: model.AxisSkinFit, Subject: "Skin Fit"},
	{Key: model.AxisBudget, Subject: "Budget"},
}

// FullMark is the maximum value of every axis.
const FullMark = 100

var skinFitByThickness = map[model.SkinThickness]int{
	model.SkinThin:   60,
	model.SkinNormal: 100,
	model.SkinThick:  80,
}

// FromProfile projects a profile onto DefaultAxes. Efficacy is the patient's
// demand and is always full.
func FromProfile(p model.CanonicalProfile, lang model.Language) []model.AxisValue {
	values := map[string]int{
		model.AxisPain:     p.PainTolerance,
		model.AxisDowntime: int(math.Round(float64(FullMark*p.DowntimeDays) / model.DowntimeMaxDays)),
		model.AxisEfficacy: FullMark,
		model.AxisSkinFit:  skinFitByThickness[p.SkinThickness],
		model.AxisBudget:   p.Budget,
	}
	return project(values, lang)
}

// FromSubScores projects a candidate's per-axis sub-scores onto DefaultAxes.
// Axes the candidate was not scored on read as 0.
func FromSubScores(sub map[string]int, lang model.Language) []model.AxisValue {
	return project(sub, lang)
}

func project(values map[string]int, lang model.Language) []model.AxisValue {
	out := make([]model.AxisValue, len(DefaultAxes))
	for i, a := range DefaultAxes {
		label, _ := LocalizeSubject(a.Subject, lang)
		out[i] = model.AxisValue{
			Key:   a.Key,
			Label: label,
			Value: max(0, min(values[a.Key], FullMark)),
		}
	}
	return out
}

// subjectKey maps a lower-case fragment of a free-form subject onto its
// translations.
type subjectKey struct {
	match  string
	labels map[model.Language]string
}

// subjectKeys is scanned for every key contained in the subject; the longest
// match wins and ties go to the earlier entry.
var subjectKeys = []subjectKey{
	{match: "pain", labels: map[model.Language]string{
		model.LangEN: "Pain Tolerance", model.LangKO: "통증 허용도", model.LangJP: "痛みの許容度", model.LangCN: "疼痛耐受度",
	}},
	{match: "downtime", labels: map[model.Language]string{
		model.LangEN: "Downtime", model.LangKO: "회복 기간", model.LangJP: "ダウンタイム", model.LangCN: "恢复期",
	}},
	{match: "efficacy", labels: map[model.Language]string{
		model.LangEN: "Efficacy", model.LangKO: "시술 효과", model.LangJP: "施術効果", model.LangCN: "治疗效果",
	}},
	{match: "skin fit", labels: map[model.Language]string{
		model.LangEN: "Skin Fit", model.LangKO: "피부 적합성", model.LangJP: "肌への適合性", model.LangCN: "皮肤契合度",
	}},
	{match: "budget", labels: map[model.Language]string{
		model.LangEN: "Budget", model.LangKO: "예산", model.LangJP: "予算", model.LangCN: "预算",
	}},
	{match: "thickness", labels: map[model.Language]string{
		model.LangEN: "Skin Thickness", model.LangKO: "피부 두께", model.LangJP: "肌の厚さ", model.LangCN: "皮肤厚度",
	}},
	{match: "pigment", labels: map[model.Language]string{
		model.LangEN: "Pigment Risk", model.LangKO: "색소 위험도", model.LangJP: "色素リスク", model.LangCN: "色素风险",
	}},
	{match: "aging", labels: map[model.Language]string{
		model.LangEN: "Aging Stage", model.LangKO: "노화 단계", model.LangJP: "エイジング段階", model.LangCN: "衰老阶段",
	}},
}

// LocalizeSubject translates a free-form axis subject. Matching is
// case-insensitive on substrings. An unmatched subject is returned unchanged
// with ok false, never dropped.
func LocalizeSubject(subject string, lang model.Language) (label string, ok bool) {
	lower := strings.ToLower(subject)
	best := -1
	for i, k := range subjectKeys {
		if !strings.Contains(lower, k.match) {
			continue
		}
		if best < 0 || len(k.match) > len(subjectKeys[best].match) {
			best = i
		}
	}
	if best < 0 {
		return subject, false
	}

	labels := subjectKeys[best].labels
	if l, ok := labels[lang]; ok {
		return l, true
	}
	return labels[model.LangEN], true
}

// Localize translates every subject, preserving order and length.
func Localize(subjects []string, lang model.Language) []string {
	out := make([]string, len(subjects))
	for i, s := range subjects {
		out[i], _ = LocalizeSubject(s, lang)
	}
	return out
}
