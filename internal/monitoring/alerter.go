package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/connectingdocs/match-engine/internal/config"
	"github.com/connectingdocs/match-engine/internal/resilience"
)

// AlertType identifies the condition that raised an alert.
type AlertType string

const (
	AlertNoMatchRate    AlertType = "no_match_rate"
	AlertInvalidReports AlertType = "invalid_reports"
)

// Alert is the webhook payload for one breached condition.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// rule inspects a snapshot and returns an alert when its condition holds.
type rule func(cfg config.MonitoringConfig, snap *MetricsSnapshot) *Alert

var rules = []rule{noMatchRateRule, invalidReportsRule}

// noMatchRateRule fires when too many recent reports found no safe treatment.
// Windows with fewer than MinReports reports are ignored.
func noMatchRateRule(cfg config.MonitoringConfig, snap *MetricsSnapshot) *Alert {
	minReports := max(cfg.MinReports, 1)
	if cfg.NoMatchRateThreshold <= 0 || snap.ReportsTotal < minReports ||
		snap.NoMatchRate <= cfg.NoMatchRateThreshold {
		return nil
	}
	return &Alert{
		Type:     AlertNoMatchRate,
		Severity: "medium",
		Message: fmt.Sprintf(
			"No-match rate %.1f%% exceeds threshold %.1f%% (%d of %d reports in last %dh)",
			snap.NoMatchRate*100, cfg.NoMatchRateThreshold*100,
			snap.ReportsNoMatch, snap.ReportsTotal, snap.LookbackHours,
		),
		Details: map[string]any{
			"no_match_rate": snap.NoMatchRate,
			"threshold":     cfg.NoMatchRateThreshold,
			"no_match":      snap.ReportsNoMatch,
			"total":         snap.ReportsTotal,
		},
	}
}

// invalidReportsRule fires on any stored report that fails Report.Validate.
func invalidReportsRule(_ config.MonitoringConfig, snap *MetricsSnapshot) *Alert {
	if snap.InvalidReports == 0 {
		return nil
	}
	return &Alert{
		Type:     AlertInvalidReports,
		Severity: "high",
		Message: fmt.Sprintf("%d stored report(s) fail validation in last %dh",
			snap.InvalidReports, snap.LookbackHours),
		Details: map[string]any{
			"invalid_count": snap.InvalidReports,
			"report_ids":    snap.InvalidIDs,
		},
	}
}

// Alerter turns snapshots into alerts and posts them to a webhook.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
	retry  resilience.RetryConfig
	now    func() time.Time
}

// NewAlerter returns an Alerter for cfg. Webhook posts are retried twice on
// transient failures.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = 2
	retry.InitialBackoff = 100 * time.Millisecond
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		retry:  retry,
		now:    time.Now,
	}
}

// Evaluate applies every rule to snap.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	ts := a.now().UTC()
	for _, r := range rules {
		if alert := r(a.cfg, snap); alert != nil {
			alert.Timestamp = ts
			alerts = append(alerts, *alert)
		}
	}
	return alerts
}

// SendAlerts posts alerts to the webhook and returns how many were delivered.
// Nothing is sent without a webhook URL.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		log := zap.L().With(zap.String("type", string(alert.Type)), zap.String("severity", alert.Severity))
		err := resilience.Do(ctx, a.retry, func(ctx context.Context) error {
			return a.post(ctx, alert)
		})
		if err != nil {
			log.Error("monitoring: alert not delivered", zap.Error(err))
			continue
		}
		log.Info("monitoring: alert delivered")
		sent++
	}
	return sent
}

func (a *Alerter) post(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "monitoring: build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: post webhook")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		err := eris.Errorf("monitoring: webhook status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(err, resp.StatusCode)
		}
		return err
	}
	return nil
}
