package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rotisserie/eris"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/auth"
	"go.uber.org/zap"

	"github.com/jurisearch/statuteqa/internal/analyzer"
	"github.com/jurisearch/statuteqa/internal/audit"
	"github.com/jurisearch/statuteqa/internal/cascade"
	"github.com/jurisearch/statuteqa/internal/db"
	"github.com/jurisearch/statuteqa/internal/model"
	"github.com/jurisearch/statuteqa/internal/qa"
	"github.com/jurisearch/statuteqa/internal/resilience"
	"github.com/jurisearch/statuteqa/internal/retrieval"
	"github.com/jurisearch/statuteqa/internal/synthesis"
	"github.com/jurisearch/statuteqa/internal/validate"
	anthropicpkg "github.com/jurisearch/statuteqa/pkg/anthropic"
)

// serviceEnv holds the initialized backends and the answer service used by
// the answer/serve commands.
type serviceEnv struct {
	Service  *qa.Service
	Registry *retrieval.Registry
	Audit    audit.Store // nil when disabled

	weaviateClient *weaviate.Client
	neo4jDriver    neo4j.DriverWithContext
	pgPool         db.Pool
}

// Close releases backend connections. Safe on a partially built env.
func (e *serviceEnv) Close() {
	if e.Audit != nil {
		_ = e.Audit.Close()
	}
	if e.pgPool != nil {
		e.pgPool.Close()
	}
	if e.neo4jDriver != nil {
		_ = e.neo4jDriver.Close(context.Background())
	}
}

// initService wires the retrieval adapters, cascade controller, synthesizer,
// validator, and optional audit store from config. Backends are registered
// only when configured; the cascade treats a missing tier as zero hits, so a
// partial deployment still answers from the tiers it has.
func initService(ctx context.Context, mode string) (*serviceEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	env := &serviceEnv{Registry: retrieval.NewRegistry()}

	retry := resilience.FromRetryConfig(
		cfg.Resilience.RetryMaxAttempts,
		cfg.Resilience.RetryInitialBackoffMs,
		cfg.Resilience.RetryMaxBackoffMs,
	)
	breakers := resilience.NewServiceBreakers(resilience.FromCircuitConfig(
		cfg.Resilience.BreakerFailureThreshold,
		cfg.Resilience.BreakerResetTimeoutSecs,
	))

	if cfg.Weaviate.Host != "" {
		wvCfg := weaviate.Config{
			Host:   cfg.Weaviate.Host,
			Scheme: cfg.Weaviate.Scheme,
		}
		if cfg.Weaviate.APIKey != "" {
			wvCfg.AuthConfig = auth.ApiKey{Value: cfg.Weaviate.APIKey}
		}
		wv, err := weaviate.NewClient(wvCfg)
		if err != nil {
			env.Close()
			return nil, eris.Wrap(err, "init weaviate client")
		}
		env.weaviateClient = wv
		hybridOpts := retrieval.HybridOptions{
			Class:        cfg.Weaviate.Class,
			Alpha:        cfg.Weaviate.Alpha,
			BroadenAlpha: cfg.Weaviate.BroadenAlpha,
			Retry:        retry,
		}
		env.Registry.Register(retrieval.NewHybrid(wv, model.Tier1Narrow, hybridOpts))
		env.Registry.Register(retrieval.NewHybrid(wv, model.Tier2Broad, hybridOpts))
	} else {
		zap.L().Warn("weaviate not configured, tiers 1-2 disabled")
	}

	if cfg.Neo4j.URI != "" {
		driver, err := neo4j.NewDriverWithContext(cfg.Neo4j.URI, neo4j.BasicAuth(cfg.Neo4j.Username, cfg.Neo4j.Password, ""))
		if err != nil {
			env.Close()
			return nil, eris.Wrap(err, "init neo4j driver")
		}
		env.neo4jDriver = driver
		env.Registry.Register(retrieval.NewGraph(driver, retrieval.GraphOptions{
			Database:      cfg.Neo4j.Database,
			FulltextIndex: cfg.Neo4j.FulltextIndex,
			MaxDepth:      cfg.Neo4j.MaxDepth,
			Retry:         retry,
		}))
	} else {
		zap.L().Warn("neo4j not configured, tier 3 disabled")
	}

	if cfg.Postgres.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.Postgres.DatabaseURL)
		if err != nil {
			env.Close()
			return nil, eris.Wrap(err, "init postgres pool")
		}
		env.pgPool = pool
		env.Registry.Register(retrieval.NewFulltext(pool, retrieval.FulltextOptions{
			SearchLang: cfg.Postgres.SearchLang,
			Retry:      retry,
		}))
	} else {
		zap.L().Warn("postgres not configured, tier 4 disabled")
	}

	if len(env.Registry.Tiers()) == 0 {
		env.Close()
		return nil, eris.New("no retrieval backend configured")
	}

	policy, err := cascade.FromConfig(cfg.Cascade)
	if err != nil {
		env.Close()
		return nil, eris.Wrap(err, "load cascade policy")
	}
	ctrl := cascade.New(env.Registry, policy).WithBreakers(breakers)

	gen := anthropicpkg.NewClient(cfg.Anthropic.Key, cfg.Anthropic.RequestsPerMinute)
	syn := synthesis.New(gen, synthesis.FromConfig(cfg.Anthropic, cfg.Synthesis))
	val := validate.New(cfg.Confidence)

	env.Service = qa.New(analyzer.New(), ctrl, syn, val, cfg.Fusion.BudgetChars)

	if cfg.Audit.Enabled {
		store, err := initAudit(ctx)
		if err != nil {
			zap.L().Warn("audit store init failed, continuing without audit", zap.Error(err))
		} else {
			env.Audit = store
			env.Service = env.Service.WithAudit(store)
		}
	}

	zap.L().Info("service initialized",
		zap.Int("tiers", len(env.Registry.Tiers())),
		zap.Bool("audit", env.Audit != nil),
		zap.Bool("parallel_fallback", policy.ParallelFallback),
	)
	return env, nil
}

// initAudit opens and migrates the configured audit store.
func initAudit(ctx context.Context) (audit.Store, error) {
	var store audit.Store
	switch cfg.Audit.Driver {
	case "postgres":
		url := cfg.Audit.DatabaseURL
		if url == "" {
			url = cfg.Postgres.DatabaseURL
		}
		ps, err := audit.NewPostgres(ctx, url)
		if err != nil {
			return nil, err
		}
		store = ps
	case "sqlite":
		ss, err := audit.NewSQLite(cfg.Audit.SQLitePath)
		if err != nil {
			return nil, err
		}
		store = ss
	default:
		return nil, eris.Errorf("unknown audit driver %q", cfg.Audit.Driver)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}
