package intake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connectingdocs/match-engine/internal/model"
)

func TestNormalize_MissingPatientID(t *testing.T) {
	t.Parallel()

	_, err := Normalize(RawIntake{PainTolerance: "High tolerance"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, FieldPatientID, ve.Field)
	assert.Contains(t, err.Error(), "patient_id")
}

func TestNormalize_EmptyDefaultsToNeutral(t *testing.T) {
	t.Parallel()

	p, err := Normalize(RawIntake{PatientID: "p1"})
	require.NoError(t, err)

	assert.Equal(t, model.NeutralPain, p.PainTolerance)
	assert.Equal(t, model.NeutralDowntimeDays, p.DowntimeDays)
	assert.Equal(t, model.NeutralBudget, p.Budget)
	assert.Equal(t, model.GoalGlow, p.PrimaryGoal)
	assert.Equal(t, model.SkinNormal, p.SkinThickness)
	assert.Equal(t, model.AgeUnknown, p.AgeBand)
	assert.Equal(t, model.LangEN, p.Language)
	assert.ElementsMatch(t, []string{
		FieldPrimaryGoal, FieldAgeBand, FieldPainTolerance, FieldDowntime,
		FieldBudget, FieldSkinThickness, FieldLanguage,
	}, p.Defaulted)
	assert.NotNil(t, p.RiskFlags)
	assert.NotNil(t, p.SecondaryGoals)
}

func TestNormalize_UnknownLabelsFailSoft(t *testing.T) {
	t.Parallel()

	p, err := Normalize(RawIntake{
		PatientID:     "p1",
		PainTolerance: "purple",
		Downtime:      "whenever",
		SkinThickness: "???",
	})
	require.NoError(t, err)
	assert.Equal(t, model.NeutralPain, p.PainTolerance)
	assert.Equal(t, model.NeutralDowntimeDays, p.DowntimeDays)
	assert.Contains(t, p.Defaulted, FieldPainTolerance)
	assert.Contains(t, p.Defaulted, FieldDowntime)
	assert.Contains(t, p.Defaulted, FieldSkinThickness)
}

func TestNormalize_PainLabels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		label string
		want  int
	}{
		{"Prefer minimal pain", PainLow},
		{"Moderate is okay", PainModerate},
		{"High tolerance", PainHigh},
		{"35", 35},
		{"250", model.PainMax},
		{"LOW", PainLow},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			t.Parallel()
			p, err := Normalize(RawIntake{PatientID: "p", PainTolerance: tt.label})
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.PainTolerance)
			assert.NotContains(t, p.Defaulted, FieldPainTolerance)
		})
	}
}

func TestNormalize_DowntimeLabels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		label string
		want  int
	}{
		{"None (Daily life immediately)", DowntimeNone},
		{"Short (3–4 days)", DowntimeShort},
		{"Long (1 week+)", DowntimeLong},
		{"2 days", 2},
		{"14", model.DowntimeMaxDays},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			t.Parallel()
			p, err := Normalize(RawIntake{PatientID: "p", Downtime: tt.label})
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.DowntimeDays)
		})
	}
}

func TestNormalize_LocaleInvariant(t *testing.T) {
	t.Parallel()

	answers := map[string]RawIntake{
		"EN": {PainTolerance: "Prefer minimal pain", Downtime: "Short (3–4 days)", SkinThickness: "Thin", PrimaryGoal: "Pigmentation"},
		"KO": {PainTolerance: "통증은 최대한 피하고 싶음", Downtime: "3–4일 정도", SkinThickness: "얇은 편", PrimaryGoal: "기미/색소"},
		"JP": {PainTolerance: "痛みはなるべく避けたい", Downtime: "3〜4日", SkinThickness: "薄い", PrimaryGoal: "シミ・肝斑"},
		"CN": {PainTolerance: "尽量避免疼痛", Downtime: "3-4天", SkinThickness: "偏薄", PrimaryGoal: "色斑"},
	}

	var want *model.CanonicalProfile
	for lang, raw := range answers {
		raw.PatientID = "p1"
		raw.Language = lang
		p, err := Normalize(raw)
		require.NoError(t, err, lang)
		assert.Equal(t, model.Language(lang), p.Language)

		if want == nil {
			want = &p
			continue
		}
		assert.Equal(t, want.PainTolerance, p.PainTolerance, lang)
		assert.Equal(t, want.DowntimeDays, p.DowntimeDays, lang)
		assert.Equal(t, want.SkinThickness, p.SkinThickness, lang)
		assert.Equal(t, want.PrimaryGoal, p.PrimaryGoal, lang)
	}
	assert.Equal(t, PainLow, want.PainTolerance)
	assert.Equal(t, DowntimeShort, want.DowntimeDays)
	assert.Equal(t, model.SkinThin, want.SkinThickness)
	assert.Equal(t, model.GoalPigmentation, want.PrimaryGoal)
}

func TestNormalize_WizardOptionsLocaleInvariant(t *testing.T) {
	t.Parallel()

	type labels struct{ en, ko, jp, cn string }
	tests := []struct {
		name         string
		pain         labels
		downtime     labels
		budget       labels
		wantPain     int
		wantDowntime int
		wantBudget   int
	}{
		{
			name:         "minimal/none/economy",
			pain:         labels{"Minimal – I have low tolerance", "최소화 – 통증에 약해요", "最小限 – 痛みに弱い", "最小化 – 我对疼痛敏感"},
			downtime:     labels{"None – Need to be presentable daily", "없음 – 매일 일상생활 가능해야 함", "なし – 毎日人前に出られる必要あり", "无停工期 – 每天需要见人"},
			budget:       labels{"Economy – Minimize cost", "절약 – 비용 최소화", "エコノミー – コスト最小化", "经济 – 尽量节省"},
			wantPain:     PainLow,
			wantDowntime: DowntimeNone,
			wantBudget:   BudgetEconomy,
		},
		{
			name:         "moderate/short/balanced",
			pain:         labels{"Moderate – OK with some pain", "보통 – 어느 정도는 괜찮아요", "中程度 – ある程度は大丈夫", "适度 – 可以接受一些疼痛"},
			downtime:     labels{"Short (3–5 days OK)", "짧게 (3~5일 정도)", "短め（3〜5日程度）", "短（3~5天可接受）"},
			budget:       labels{"Balanced – Good value for money", "균형 – 가성비 좋게", "バランス – コスパ重視", "均衡 – 性价比优先"},
			wantPain:     PainModerate,
			wantDowntime: DowntimeShort,
			wantBudget:   BudgetStandard,
		},
		{
			name:         "high/long/premium",
			pain:         labels{"High Tolerance – Pain is fine", "높음 – 통증은 상관없어요", "高い – 痛みは気にしない", "高耐受 – 不在乎痛"},
			downtime:     labels{"Long (1 week+ is fine)", "길어도 OK (1주일 이상)", "長め（1週間以上でも大丈夫）", "长（1周以上都可以）"},
			budget:       labels{"Premium – Best results, cost secondary", "프리미엄 – 최고 결과 우선, 비용은 나중", "プレミアム – 最高結果優先", "高端 – 效果优先，价格其次"},
			wantPain:     PainHigh,
			wantDowntime: DowntimeLong,
			wantBudget:   BudgetPremium,
		},
		{
			name:         "not sure",
			pain:         labels{"Not Sure", "잘 모르겠음", "わからない", "不确定"},
			downtime:     labels{"Not Sure", "잘 모르겠음", "わからない", "不确定"},
			budget:       labels{"Not Sure", "잘 모르겠음", "わからない", "不确定"},
			wantPain:     model.NeutralPain,
			wantDowntime: model.NeutralDowntimeDays,
			wantBudget:   model.NeutralBudget,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			answers := map[string]RawIntake{
				"EN": {PainTolerance: tt.pain.en, Downtime: tt.downtime.en, Budget: tt.budget.en},
				"KO": {PainTolerance: tt.pain.ko, Downtime: tt.downtime.ko, Budget: tt.budget.ko},
				"JP": {PainTolerance: tt.pain.jp, Downtime: tt.downtime.jp, Budget: tt.budget.jp},
				"CN": {PainTolerance: tt.pain.cn, Downtime: tt.downtime.cn, Budget: tt.budget.cn},
			}
			for lang, raw := range answers {
				raw.PatientID = "p1"
				raw.Language = lang
				p, err := Normalize(raw)
				require.NoError(t, err, lang)
				assert.Equal(t, tt.wantPain, p.PainTolerance, lang)
				assert.Equal(t, tt.wantDowntime, p.DowntimeDays, lang)
				assert.Equal(t, tt.wantBudget, p.Budget, lang)
			}
		})
	}
}

func TestNormalize_BudgetLabels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		label string
		want  int
	}{
		{"High budget", BudgetPremium},
		{"Low budget", BudgetEconomy},
		{"Balanced – Good value for money", BudgetStandard},
		{"균형 – 가성비 좋게", BudgetStandard},
		{"가성비", BudgetStandard},
		{"Premium", BudgetPremium},
		{"cheap please", BudgetEconomy},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			t.Parallel()
			p, err := Normalize(RawIntake{PatientID: "p", Budget: tt.label})
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Budget)
			assert.NotContains(t, p.Defaulted, FieldBudget)
		})
	}
}

func TestNormalize_Goals(t *testing.T) {
	t.Parallel()

	p, err := Normalize(RawIntake{
		PatientID:      "p1",
		PrimaryGoal:    "Anti-Aging",
		SecondaryGoals: []string{"Pore Refinement", "anti aging", "Glass Skin", "Pore Refinement", "nonsense"},
	})
	require.NoError(t, err)
	assert.Equal(t, model.GoalAntiAging, p.PrimaryGoal)
	assert.Equal(t, []model.Goal{model.GoalGlow, model.GoalTexture}, p.SecondaryGoals)
}

func TestNormalize_TagSets(t *testing.T) {
	t.Parallel()

	p, err := Normalize(RawIntake{
		PatientID: "p1",
		RiskFlags: []string{"Keloid", " pregnancy ", "keloid", "", "Blood Thinners"},
		Locations: []string{"Cheek", "Forehead", "cheek"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"blood_thinners", "keloid", "pregnancy"}, p.RiskFlags)
	assert.Equal(t, []string{"cheek", "forehead"}, p.Locations)
	assert.True(t, p.HasRiskFlag("keloid"))
	assert.False(t, p.HasRiskFlag("smoker"))
}

func TestNormalize_AgeBand(t *testing.T) {
	t.Parallel()

	tests := map[string]model.AgeBand{
		"17":  model.AgeUnder20,
		"34":  model.Age30s,
		"40대": model.Age40s,
		"65+": model.Age60Plus,
	}
	for raw, want := range tests {
		p, err := Normalize(RawIntake{PatientID: "p", Age: raw})
		require.NoError(t, err)
		assert.Equal(t, want, p.AgeBand, raw)
	}
}

func TestFromRecord_CoalescesLocalizedColumns(t *testing.T) {
	t.Parallel()

	raw := FromRecord(map[string]any{
		"respondent_id":           "resp-9",
		"language":                "KO",
		"q1_primary_goal_MASTER":  "Lifting",
		"q2_risk_flags_MASTER":    "Keloid, Pregnancy",
		"q6_pain_tolerance_KO":    "약간은 괜찮음",
		"q6_down_time_EN":         "",
		"q6_down_time_JP":         "1週間以上",
		"q4_skin_thickness_CN":    "厚",
		"q_treatment_locations":   []any{"Cheek", "Jawline"},
		"q1_goal_secondary_MASTER": "Pore care",
	})

	assert.Equal(t, "resp-9", raw.PatientID)
	assert.Equal(t, "약간은 괜찮음", raw.PainTolerance)
	assert.Equal(t, "1週間以上", raw.Downtime)
	assert.Equal(t, []string{"Keloid", "Pregnancy"}, raw.RiskFlags)
	assert.Equal(t, []string{"Cheek", "Jawline"}, raw.Locations)

	p, err := Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, PainModerate, p.PainTolerance)
	assert.Equal(t, DowntimeLong, p.DowntimeDays)
	assert.Equal(t, model.SkinThick, p.SkinThickness)
	assert.Equal(t, model.GoalLifting, p.PrimaryGoal)
	assert.Equal(t, []model.Goal{model.GoalTexture}, p.SecondaryGoals)
}
