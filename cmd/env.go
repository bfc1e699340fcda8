package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/patabrava/nality-sub002/internal/pending"
	"github.com/patabrava/nality-sub002/internal/pipeline"
	"github.com/patabrava/nality-sub002/internal/store"
	"github.com/patabrava/nality-sub002/pkg/splitter"
)

// env holds the initialized store, splitter and services shared by the
// serve/convert/migrate commands.
type env struct {
	Store     store.Store
	Splitter  splitter.Client
	Converter *pipeline.Converter
	Pending   *pending.Service
}

// Close releases resources held by the environment.
func (e *env) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens the configured backend. SQLite serves local development,
// Postgres everything else.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		st, err := store.NewSQLite(cfg.Store.DatabaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "open sqlite store")
		}
		return st, nil
	case "postgres", "":
		st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool)
		if err != nil {
			return nil, eris.Wrap(err, "open postgres store")
		}
		return st, nil
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// initSplitter builds the splitter client. A configured collaborator URL
// wins; otherwise the in-process Anthropic splitter is used.
func initSplitter() (splitter.Client, error) {
	if cfg.Splitter.BaseURL != "" {
		opts := []splitter.Option{}
		if cfg.Splitter.AccessToken != "" {
			opts = append(opts, splitter.WithAccessToken(cfg.Splitter.AccessToken))
		}
		if cfg.Splitter.RatePerSec > 0 {
			opts = append(opts, splitter.WithRateLimit(cfg.Splitter.RatePerSec, cfg.Splitter.RateBurst))
		}
		zap.L().Info("splitter: remote collaborator", zap.String("base_url", cfg.Splitter.BaseURL))
		return splitter.NewHTTPClient(cfg.Splitter.BaseURL, opts...), nil
	}

	if cfg.Splitter.AnthropicKey == "" {
		return nil, eris.New("splitter: neither base_url nor anthropic_key configured")
	}
	zap.L().Info("splitter: in-process anthropic", zap.String("model", cfg.Splitter.AnthropicModel))
	return splitter.NewAnthropicSplitter(cfg.Splitter.AnthropicKey, cfg.Splitter.AnthropicModel), nil
}

// initEnv sets up the store, splitter client and services. Callers should
// defer env.Close().
func initEnv(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	sp, err := initSplitter()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	ttl := time.Duration(cfg.Pending.TTLDays) * 24 * time.Hour

	return &env{
		Store:     st,
		Splitter:  sp,
		Converter: pipeline.NewConverter(st, sp),
		Pending:   pending.NewService(st, ttl),
	}, nil
}
