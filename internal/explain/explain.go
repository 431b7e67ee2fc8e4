// Package explain writes the short narrative that accompanies a report.
package explain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/connectingdocs/match-engine/internal/model"
	"github.com/connectingdocs/match-engine/internal/resilience"
	"github.com/connectingdocs/match-engine/internal/risk"
	"github.com/connectingdocs/match-engine/pkg/anthropic"
)

// Explainer produces a patient-facing explanation for a built report.
type Explainer interface {
	Explain(ctx context.Context, r *model.Report) (string, error)
}

type phrasebook struct {
	matched string // protocol name, alignment percent
	caution string // comma separated factor names
	noMatch string
}

var phrasebooks = map[model.Language]phrasebook{
	model.LangEN: {
		matched: "%s is your top match with %d%% alignment.",
		caution: "Flagged for review with your doctor: %s.",
		noMatch: "No treatment currently fits your answers safely. We recommend a consultation with a specialist.",
	},
	model.LangKO: {
		matched: "%s 시술이 %d%% 일치도로 가장 적합합니다.",
		caution: "상담 시 확인 필요: %s.",
		noMatch: "현재 조건에 안전하게 맞는 시술이 없습니다. 전문의 상담을 권장합니다.",
	},
	model.LangJP: {
		matched: "%sが%d%%の適合度で最適です。",
		caution: "確認が必要な項目: %s。",
		noMatch: "現在の条件に安全に適合する施術はありません。専門医への相談をおすすめします。",
	},
	model.LangCN: {
		matched: "%s 以 %d%% 的匹配度最适合您。",
		caution: "需要确认的事项: %s。",
		noMatch: "目前没有安全符合您条件的方案。建议咨询专业医生。",
	},
}

// TemplateExplainer renders a fixed localized sentence. It never fails and is
// the fallback for every other Explainer.
type TemplateExplainer struct{}

// Explain implements Explainer.
func (TemplateExplainer) Explain(_ context.Context, r *model.Report) (string, error) {
	return Template(r), nil
}

// Template renders the deterministic explanation of r in the profile language,
// falling back to English.
func Template(r *model.Report) string {
	book, ok := phrasebooks[r.Profile.Language]
	if !ok {
		book = phrasebooks[model.LangEN]
	}

	top := r.Top()
	if top == nil {
		return book.noMatch
	}

	var b strings.Builder
	fmt.Fprintf(&b, book.matched, top.Protocol.Name, r.AlignmentScore)
	if names := factorNames(r.RiskGroups.Caution); names != "" {
		b.WriteString(" ")
		fmt.Fprintf(&b, book.caution, names)
	}
	return b.String()
}

func factorNames(factors []risk.Factor) string {
	seen := make(map[string]bool, len(factors))
	var names []string
	for _, f := range factors {
		if f.Factor == "" || seen[f.Factor] {
			continue
		}
		seen[f.Factor] = true
		names = append(names, f.Factor)
	}
	return strings.Join(names, ", ")
}

const systemPrompt = `You write short explanations of aesthetic treatment match reports for patients.
Rules:
- Use only the facts in the report JSON. Never invent treatments, numbers or risks.
- Write two to four sentences in the requested language.
- Mention the top recommendation and its alignment percentage.
- If caution factors are present, advise discussing them with the doctor.
- If there are no recommendations, suggest a specialist consultation.
- Plain text only, no markdown.`

// ClaudeExplainer drafts explanations with the Anthropic API behind a circuit
// breaker.
type ClaudeExplainer struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	timeout   time.Duration
	breaker   *resilience.Breaker
}

// NewClaudeExplainer returns an explainer using client. A zero timeout leaves
// the caller's deadline in charge.
func NewClaudeExplainer(client anthropic.Client, model string, maxTokens int64, timeout time.Duration) *ClaudeExplainer {
	if maxTokens <= 0 {
		maxTokens = 600
	}
	return &ClaudeExplainer{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
		timeout:   timeout,
		breaker:   resilience.NewBreaker("anthropic", 5, time.Minute),
	}
}

// promptReport is the subset of a report the model sees.
type promptReport struct {
	Language        model.Language    `json:"language"`
	PrimaryGoal     string            `json:"primary_goal"`
	Status          string            `json:"status"`
	AlignmentScore  int               `json:"alignment_score"`
	Recommendations []promptCandidate `json:"recommendations"`
	Caution         []string          `json:"caution_factors"`
	Excluded        int               `json:"excluded_count"`
}

type promptCandidate struct {
	Rank  int    `json:"rank"`
	Name  string `json:"name"`
	Score int    `json:"score"`
	Goal  string `json:"goal"`
}

func buildPrompt(r *model.Report) (string, error) {
	pr := promptReport{
		Language:        r.Profile.Language,
		PrimaryGoal:     r.Profile.PrimaryGoal.Label(),
		Status:          string(r.Status),
		AlignmentScore:  r.AlignmentScore,
		Recommendations: make([]promptCandidate, 0, len(r.Candidates)),
		Excluded:        len(r.Excluded),
	}
	for _, c := range r.Candidates {
		pr.Recommendations = append(pr.Recommendations, promptCandidate{
			Rank:  c.Rank,
			Name:  c.Protocol.Name,
			Score: c.Score,
			Goal:  c.Protocol.PrimaryGoal.Label(),
		})
	}
	for _, f := range r.RiskGroups.Caution {
		pr.Caution = append(pr.Caution, f.Factor)
	}

	data, err := json.Marshal(pr)
	if err != nil {
		return "", eris.Wrap(err, "explain: marshal prompt")
	}
	return fmt.Sprintf("Language: %s\nReport:\n%s", pr.Language, data), nil
}

// Explain implements Explainer.
func (e *ClaudeExplainer) Explain(ctx context.Context, r *model.Report) (string, error) {
	prompt, err := buildPrompt(r)
	if err != nil {
		return "", err
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	resp, err := resilience.Call(ctx, e.breaker, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return e.client.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     e.model,
			MaxTokens: e.maxTokens,
			System:    anthropic.CachedSystem(systemPrompt),
			Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
		})
	})
	if err != nil {
		return "", eris.Wrapf(err, "explain: report %s", r.ID)
	}

	resp.Usage.LogCost(e.model, "explain")
	text := resp.Text()
	if text == "" {
		return "", eris.Errorf("explain: empty response for report %s", r.ID)
	}
	zap.L().Debug("explain: drafted",
		zap.String("report_id", r.ID),
		zap.Int("chars", len(text)),
	)
	return text, nil
}
