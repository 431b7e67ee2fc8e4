package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/connectingdocs/match-engine/internal/config"
)

const defaultCheckInterval = 5 * time.Minute

// Checker periodically collects a report snapshot and raises alerts.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig
}

// NewChecker wires a collector and alerter under cfg.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{collector: collector, alerter: alerter, cfg: cfg}
}

// CheckResult summarizes one check cycle.
type CheckResult struct {
	Snapshot *MetricsSnapshot
	Alerts   []Alert
	Sent     int
}

// Interval is the time between checks.
func (c *Checker) Interval() time.Duration {
	if c.cfg.CheckIntervalSecs <= 0 {
		return defaultCheckInterval
	}
	return time.Duration(c.cfg.CheckIntervalSecs) * time.Second
}

// Run checks once immediately and then every Interval until ctx is done.
func (c *Checker) Run(ctx context.Context) {
	log := zap.L().Named("monitoring")
	log.Info("monitoring: checker started",
		zap.Duration("interval", c.Interval()),
		zap.Int("lookback_hours", c.cfg.LookbackWindowHours),
	)

	ticker := time.NewTicker(c.Interval())
	defer ticker.Stop()

	for {
		if ctx.Err() == nil {
			if _, err := c.Check(ctx); err != nil && ctx.Err() == nil {
				log.Error("monitoring: check failed", zap.Error(err))
			}
		}
		select {
		case <-ctx.Done():
			log.Info("monitoring: checker stopped")
			return
		case <-ticker.C:
		}
	}
}

// Check runs one collect, evaluate and deliver cycle.
func (c *Checker) Check(ctx context.Context) (*CheckResult, error) {
	snap, err := c.collector.Collect(ctx, c.cfg.LookbackWindowHours)
	if err != nil {
		return nil, err
	}

	res := &CheckResult{Snapshot: snap, Alerts: c.alerter.Evaluate(snap)}
	if len(res.Alerts) > 0 {
		res.Sent = c.alerter.SendAlerts(ctx, res.Alerts)
	}
	zap.L().Debug("monitoring: check complete",
		zap.Int("reports", snap.ReportsTotal),
		zap.Float64("no_match_rate", snap.NoMatchRate),
		zap.Int("alerts", len(res.Alerts)),
		zap.Int("sent", res.Sent),
	)
	return res, nil
}
