package main

import (
	"context"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/connectingdocs/match-engine/internal/catalog"
	"github.com/connectingdocs/match-engine/internal/engagement"
	"github.com/connectingdocs/match-engine/internal/explain"
	"github.com/connectingdocs/match-engine/internal/monitoring"
	"github.com/connectingdocs/match-engine/internal/report"
	"github.com/connectingdocs/match-engine/internal/scorer"
	"github.com/connectingdocs/match-engine/internal/store"
	"github.com/connectingdocs/match-engine/pkg/airtable"
	anthropicpkg "github.com/connectingdocs/match-engine/pkg/anthropic"
)

// engineEnv holds the store, engines and services shared by the commands.
type engineEnv struct {
	Store   store.Store
	Reports *report.Service
	Tiers   *engagement.Engine
	Metrics *monitoring.Metrics
}

// Close releases resources held by the environment.
func (e *engineEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore validates the config for mode, opens the store and migrates it.
func openStore(ctx context.Context, mode string) (store.Store, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initEnv wires the store, catalog provider, explainer and report service.
// Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*engineEnv, error) {
	st, err := openStore(ctx, mode)
	if err != nil {
		return nil, err
	}

	provider, err := initProvider(ctx, st)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	weights, err := scorer.WeightsFor(cfg.Scoring.WeightsVersion)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	engine, err := scorer.NewEngine(weights)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	tiers, err := engagement.NewEngine(engagement.TiersV1, engagement.PointsV1, cfg.Engagement.BaseOffset)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	metrics, err := monitoring.NewMetrics("match_engine", prometheus.DefaultRegisterer)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	reports, err := report.NewService(report.NewBuilder(engine, provider, initExplainer(), metrics), st, cfg.Cache.ReportSize)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &engineEnv{Store: st, Reports: reports, Tiers: tiers, Metrics: metrics}, nil
}

// initProvider selects the candidate pool source. The store itself serves
// the catalog unless a file, spreadsheet or Airtable source is configured.
func initProvider(ctx context.Context, st store.Store) (catalog.Provider, error) {
	switch cfg.Catalog.Source {
	case "file":
		p, err := catalog.NewFileProvider(cfg.Catalog.Path)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "xlsx":
		p, err := catalog.NewXLSXProvider(cfg.Catalog.Path, catalog.XLSXOptions{})
		if err != nil {
			return nil, err
		}
		return p, nil
	case "airtable":
		protocols, err := catalog.NewAirtableProvider(initAirtable(), cfg.Airtable.ProtocolTable).Fetch(ctx)
		if err != nil {
			return nil, err
		}
		return catalog.NewStaticProvider(protocols), nil
	default:
		return st, nil
	}
}

func initAirtable() airtable.Client {
	return airtable.NewClient(cfg.Airtable.Key, cfg.Airtable.BaseID,
		airtable.WithBaseURL(cfg.Airtable.BaseURL),
		airtable.WithRateLimit(cfg.Airtable.RequestsPerSecond),
	)
}

// initExplainer returns the Claude explainer when an API key is configured,
// otherwise the localized template.
func initExplainer() explain.Explainer {
	if cfg.Anthropic.Key == "" {
		zap.L().Info("anthropic key not set, using template explanations")
		return explain.TemplateExplainer{}
	}
	client := anthropicpkg.NewClient(cfg.Anthropic.Key, option.WithMaxRetries(2))
	return explain.NewClaudeExplainer(client, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens,
		time.Duration(cfg.Anthropic.TimeoutSecs)*time.Second)
}
