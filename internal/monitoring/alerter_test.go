package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connectingdocs/match-engine/internal/config"
)

func alertCfg() config.MonitoringConfig {
	return config.MonitoringConfig{NoMatchRateThreshold: 0.5, MinReports: 10}
}

func TestAlerter_Evaluate_NoAlerts(t *testing.T) {
	a := NewAlerter(alertCfg())

	alerts := a.Evaluate(&MetricsSnapshot{
		ReportsTotal:   40,
		ReportsMatched: 30,
		ReportsNoMatch: 10,
		NoMatchRate:    0.25,
		LookbackHours:  24,
	})
	assert.Empty(t, alerts)
}

func TestAlerter_Evaluate_NoMatchRate(t *testing.T) {
	a := NewAlerter(alertCfg())

	alerts := a.Evaluate(&MetricsSnapshot{
		ReportsTotal:   20,
		ReportsMatched: 6,
		ReportsNoMatch: 14,
		NoMatchRate:    0.7,
		LookbackHours:  24,
	})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertNoMatchRate, alerts[0].Type)
	assert.Equal(t, "medium", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "70.0%")
	assert.Contains(t, alerts[0].Message, "14 of 20")
}

func TestAlerter_Evaluate_MinimumReportsRequired(t *testing.T) {
	a := NewAlerter(alertCfg())

	alerts := a.Evaluate(&MetricsSnapshot{
		ReportsTotal:   4,
		ReportsNoMatch: 4,
		NoMatchRate:    1,
		LookbackHours:  24,
	})
	assert.Empty(t, alerts)
}

func TestAlerter_Evaluate_InvalidReports(t *testing.T) {
	a := NewAlerter(alertCfg())

	alerts := a.Evaluate(&MetricsSnapshot{
		ReportsTotal:   2,
		InvalidReports: 1,
		InvalidIDs:     []string{"rep-9"},
		LookbackHours:  6,
	})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertInvalidReports, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Equal(t, []string{"rep-9"}, alerts[0].Details["report_ids"])
}

func TestAlerter_Evaluate_MultipleAlerts(t *testing.T) {
	a := NewAlerter(alertCfg())

	alerts := a.Evaluate(&MetricsSnapshot{
		ReportsTotal:   12,
		ReportsNoMatch: 12,
		NoMatchRate:    1,
		InvalidReports: 3,
		LookbackHours:  24,
	})
	assert.Len(t, alerts, 2)

	types := make(map[AlertType]bool)
	for _, a := range alerts {
		types[a.Type] = true
	}
	assert.True(t, types[AlertNoMatchRate])
	assert.True(t, types[AlertInvalidReports])
}

func TestAlerter_SendAlerts_Webhook(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var alert Alert
		err := json.NewDecoder(r.Body).Decode(&alert)
		require.NoError(t, err)
		assert.NotEmpty(t, alert.Type)
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: ts.URL})

	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertNoMatchRate, Severity: "medium", Message: "test alert 1"},
		{Type: AlertInvalidReports, Severity: "high", Message: "test alert 2"},
	})
	assert.Equal(t, 2, sent)
	assert.Equal(t, int32(2), received.Load())
}

func TestAlerter_SendAlerts_EmptyURL(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertNoMatchRate, Message: "test"}})
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_WebhookError(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		attempts int32
	}{
		{"server error is retried", http.StatusInternalServerError, 2},
		{"client error is not retried", http.StatusBadRequest, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer ts.Close()

			a := NewAlerter(config.MonitoringConfig{WebhookURL: ts.URL})

			sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertNoMatchRate, Message: "test"}})
			assert.Equal(t, 0, sent)
			assert.Equal(t, tt.attempts, calls.Load())
		})
	}
}

func TestAlerter_Evaluate_Timestamp(t *testing.T) {
	a := NewAlerter(alertCfg())
	a.now = func() time.Time { return fixedNow }

	alerts := a.Evaluate(&MetricsSnapshot{InvalidReports: 1, LookbackHours: 1})
	require.Len(t, alerts, 1)
	assert.Equal(t, fixedNow.UTC(), alerts[0].Timestamp)
}
