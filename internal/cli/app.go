package cli

import (
	"fmt"
	"path/filepath"

	"github.com/harun/lea/internal/config"
	"github.com/harun/lea/internal/logger"
	"github.com/harun/lea/pkg/adapters"
	"github.com/harun/lea/pkg/agent"
	"github.com/harun/lea/pkg/approval"
	"github.com/harun/lea/pkg/catalog"
	"github.com/harun/lea/pkg/configstore"
	"github.com/harun/lea/pkg/credentials"
	"github.com/harun/lea/pkg/orchestrator"
	"github.com/harun/lea/pkg/registry"
)

// app holds the wired components a command needs
type app struct {
	cfg       *config.Config
	log       *logger.Logger
	store     *configstore.Store
	approvals *approval.Store
	catalog   *catalog.Catalog
	orch      *orchestrator.Orchestrator
	sweeper   *approval.Sweeper
}

// newApp loads config and wires the full stack
func newApp() (*app, error) {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logCfg := logger.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: cfg.Logging.Console,
		Pretty:  cfg.Logging.Pretty,
	}
	if logLevel != "" {
		logCfg.Level = logLevel
	}
	lg, err := logger.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}

	store, err := configstore.Open(filepath.Join(cfg.DataDir, "lea.db"))
	if err != nil {
		lg.Close()
		return nil, err
	}

	approvals, err := approval.OpenStore(filepath.Join(cfg.DataDir, "approvals.db"))
	if err != nil {
		store.Close()
		lg.Close()
		return nil, err
	}

	runs, err := orchestrator.NewRunStore(filepath.Join(cfg.DataDir, "runs"))
	if err != nil {
		approvals.Close()
		store.Close()
		lg.Close()
		return nil, err
	}

	cat, err := catalog.New(catalog.Options{
		WorkspaceRoot: cfg.WorkspacePath,
		Resolver:      credentials.NewResolver(store),
		Adapters:      adapters.NewRegistry(),
	})
	if err != nil {
		approvals.Close()
		store.Close()
		lg.Close()
		return nil, err
	}

	keys := make(map[string]string, len(cfg.Providers))
	for _, p := range cfg.Providers {
		keys[p.ID] = p.APIKey
	}

	orch, err := orchestrator.New(orchestrator.Options{
		Factory:       agent.NewFactoryWithKeys(keys),
		Catalog:       cat,
		Approvals:     approvals,
		Runs:          runs,
		Policies:      store,
		WorkspacePath: cfg.WorkspacePath,
		StepBudget:    cfg.Orchestrator.StepBudget,
	})
	if err != nil {
		approvals.Close()
		store.Close()
		lg.Close()
		return nil, err
	}

	sweeper := approval.NewSweeper(approvals, cfg.Approvals.TTL)
	if err := sweeper.Start(); err != nil {
		approvals.Close()
		store.Close()
		lg.Close()
		return nil, err
	}

	return &app{
		cfg:       cfg,
		log:       lg,
		store:     store,
		approvals: approvals,
		catalog:   cat,
		orch:      orch,
		sweeper:   sweeper,
	}, nil
}

// registryBuilder builds registries from the app's catalog
func (a *app) registryBuilder() *registry.Builder {
	return registry.NewBuilder(a.catalog)
}

// close releases everything the app opened
func (a *app) close() {
	a.sweeper.Stop()
	a.approvals.Close()
	a.store.Close()
	a.log.Close()
}
