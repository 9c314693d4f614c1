package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/abhisek/quizloop/internal/config"
	"github.com/abhisek/quizloop/internal/engine"
	"github.com/abhisek/quizloop/internal/events"
	"github.com/abhisek/quizloop/internal/llm"
	"github.com/abhisek/quizloop/internal/logger"
	"github.com/abhisek/quizloop/internal/store"
)

const mongoConnectTimeout = 10 * time.Second

// runtime is the wired application shared by the subcommands.
type runtime struct {
	cfg    *config.Config
	log    *logger.Logger
	svc    *engine.Service
	closer []func() error
}

// newRuntime loads configuration and wires the store, model provider,
// event publisher and engine.
func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	rt := &runtime{cfg: cfg, log: log}
	docs, eventRepo, err := rt.openStore(ctx)
	if err != nil {
		rt.Close()
		return nil, err
	}

	var provider llm.Provider
	if cfg.LLMConfigured {
		provider, err = llm.NewProvider(ctx, cfg.LLM, eventRepo, log)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("create LLM provider: %w", err)
		}
	} else {
		log.Warn("no LLM provider configured; answers will be graded as unavailable")
	}

	embedder, err := llm.NewEmbedder(ctx, cfg.LLM)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	var pub events.Publisher = events.Noop{}
	if cfg.AMQPURL != "" {
		p, err := events.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange, log)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("connect event broker: %w", err)
		}
		pub = p
	}

	engineCfg := engine.DefaultConfig()
	engineCfg.Alpha = cfg.Alpha
	engineCfg.GradingTimeout = cfg.GradingTimeout

	rt.svc = engine.New(engine.Deps{
		Docs:     docs,
		Provider: provider,
		Embedder: embedder,
		Events:   pub,
		Logger:   log,
		Config:   engineCfg,
	})
	rt.closer = append(rt.closer, rt.svc.Close)
	return rt, nil
}

// openStore opens the configured backend. LLM request events are only
// recorded with the SQLite backend.
func (rt *runtime) openStore(ctx context.Context) (store.DocumentRepo, store.EventRepo, error) {
	switch rt.cfg.StoreBackend {
	case config.BackendMongo:
		connectCtx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
		defer cancel()
		repo, err := store.OpenMongo(connectCtx, rt.cfg.MongoURI, rt.cfg.MongoDatabase)
		if err != nil {
			return nil, nil, fmt.Errorf("open mongo store: %w", err)
		}
		rt.closer = append(rt.closer, func() error { return repo.Close(context.Background()) })
		return repo, nil, nil
	case config.BackendMemory:
		return store.NewMemoryRepo(), nil, nil
	default:
		s, err := store.Open(rt.cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		rt.closer = append(rt.closer, s.Close)
		return s.DocumentRepo(), s.EventRepo(), nil
	}
}

// Close releases resources in reverse order of acquisition.
func (rt *runtime) Close() {
	for i := len(rt.closer) - 1; i >= 0; i-- {
		if err := rt.closer[i](); err != nil {
			rt.log.Warn("close failed", "error", err)
		}
	}
	rt.log.Sync()
}

// openEventStore opens the SQLite store for the llm inspection commands.
func openEventStore() (*store.Store, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.StoreBackend != config.BackendSQLite {
		return nil, fmt.Errorf("LLM events are only recorded with the sqlite store (current: %s)", cfg.StoreBackend)
	}
	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return s, nil
}
