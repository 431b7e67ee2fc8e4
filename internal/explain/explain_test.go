package explain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/connectingdocs/match-engine/internal/model"
	"github.com/connectingdocs/match-engine/internal/resilience"
	"github.com/connectingdocs/match-engine/internal/risk"
	"github.com/connectingdocs/match-engine/pkg/anthropic"
)

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func matchedReport(lang model.Language) *model.Report {
	return &model.Report{
		ID:     "rep-1",
		Status: model.ReportMatched,
		Profile: model.CanonicalProfile{
			PrimaryGoal: model.GoalPigmentation,
			Language:    lang,
		},
		Candidates: []model.ScoredCandidate{
			{Protocol: model.Protocol{ID: "p1", Name: "Pico Toning", PrimaryGoal: model.GoalPigmentation}, Score: 92, Rank: 1},
		},
		RiskGroups: risk.Groups{
			Danger:  []risk.Factor{},
			Caution: []risk.Factor{{Factor: "melasma", Tier: risk.Caution}, {Factor: "melasma", Tier: risk.Caution}},
			Safe:    []risk.Factor{},
		},
		AlignmentScore: 92,
	}
}

func TestTemplate_Languages(t *testing.T) {
	tests := []struct {
		lang model.Language
		want string
	}{
		{model.LangEN, "Pico Toning is your top match with 92% alignment. Flagged for review with your doctor: melasma."},
		{model.LangKO, "Pico Toning 시술이 92% 일치도로 가장 적합합니다. 상담 시 확인 필요: melasma."},
		{model.LangJP, "Pico Toningが92%の適合度で最適です。 確認が必要な項目: melasma。"},
		{model.LangCN, "Pico Toning 以 92% 的匹配度最适合您。 需要确认的事项: melasma。"},
		{model.Language("FR"), "Pico Toning is your top match with 92% alignment. Flagged for review with your doctor: melasma."},
	}
	for _, tt := range tests {
		t.Run(string(tt.lang), func(t *testing.T) {
			assert.Equal(t, tt.want, Template(matchedReport(tt.lang)))
		})
	}
}

func TestTemplate_NoCautionAndNoMatch(t *testing.T) {
	r := matchedReport(model.LangEN)
	r.RiskGroups.Caution = nil
	assert.Equal(t, "Pico Toning is your top match with 92% alignment.", Template(r))

	empty := &model.Report{Status: model.ReportNoMatch, Profile: model.CanonicalProfile{Language: model.LangKO}}
	got, err := TemplateExplainer{}.Explain(context.Background(), empty)
	require.NoError(t, err)
	assert.Equal(t, phrasebooks[model.LangKO].noMatch, got)
}

func TestClaudeExplainer_Success(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "claude-haiku-4-5-20251001" &&
			req.MaxTokens == 300 &&
			len(req.System) == 1 && req.System[0].CacheControl != nil &&
			len(req.Messages) == 1 && req.Messages[0].Role == "user"
	})).Return(&anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: "  Pico Toning fits your goals.  "}},
		Usage:   anthropic.TokenUsage{InputTokens: 200, OutputTokens: 40},
	}, nil)

	e := NewClaudeExplainer(client, "claude-haiku-4-5-20251001", 300, 0)
	got, err := e.Explain(context.Background(), matchedReport(model.LangEN))
	require.NoError(t, err)
	assert.Equal(t, "Pico Toning fits your goals.", got)
	client.AssertExpectations(t)
}

func TestClaudeExplainer_EmptyResponse(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(&anthropic.MessageResponse{Content: []anthropic.ContentBlock{{Type: "text", Text: " "}}}, nil)

	_, err := NewClaudeExplainer(client, "m", 0, 0).Explain(context.Background(), matchedReport(model.LangEN))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty response")
}

func TestClaudeExplainer_BreakerOpens(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("overloaded"))

	e := NewClaudeExplainer(client, "m", 0, 0)
	for i := 0; i < 5; i++ {
		_, err := e.Explain(context.Background(), matchedReport(model.LangEN))
		require.Error(t, err)
	}

	_, err := e.Explain(context.Background(), matchedReport(model.LangEN))
	require.Error(t, err)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	client.AssertNumberOfCalls(t, "CreateMessage", 5)
}

func TestBuildPrompt(t *testing.T) {
	prompt, err := buildPrompt(matchedReport(model.LangJP))
	require.NoError(t, err)
	assert.Contains(t, prompt, "Language: JP")
	assert.Contains(t, prompt, `"name":"Pico Toning"`)
	assert.Contains(t, prompt, `"alignment_score":92`)
	assert.Contains(t, prompt, `"caution_factors":["melasma","melasma"]`)
}
