// Package app wires configuration into the runtime, cache, service and
// handler shared by both entry points.
package app

import (
	"context"
	"fmt"

	"tcc-slm-backend/internal/config"
	"tcc-slm-backend/internal/handler"
	"tcc-slm-backend/internal/runtime"
	"tcc-slm-backend/internal/service"
	"tcc-slm-backend/internal/storage"
	"tcc-slm-backend/internal/tcc"
	"tcc-slm-backend/pkg/logger"
)

type App struct {
	Config     *config.Config
	Supervisor *runtime.Supervisor
	Service    *service.InferenceService
	Handler    *handler.InferenceHandler
}

// New discovers the runtime and builds every component. Runtime discovery
// never fails; a missing runtime means demo mode.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	rules, err := tcc.LoadRules(cfg.TCC.RulesFile)
	if err != nil {
		return nil, fmt.Errorf("load tcc rules: %w", err)
	}
	analyzer := tcc.NewAnalyzer(rules)

	demo, err := runtime.NewDemoRuntime(cfg.Demo)
	if err != nil {
		return nil, fmt.Errorf("init demo runtime: %w", err)
	}

	cache, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logger.Errorf("Failed to initialize cache, continuing without it: %v", err)
		cache = storage.NopCache{}
	}

	supervisor := runtime.Start(ctx, cfg, runtime.NewExecCommander(), demo)
	svc := service.NewInferenceService(cfg, supervisor, analyzer, cache)

	a := &App{
		Config:     cfg,
		Supervisor: supervisor,
		Service:    svc,
		Handler:    handler.NewInferenceHandler(cfg, svc),
	}

	if cfg.Model.WarmupOnStart {
		if err := svc.Warmup(ctx); err != nil {
			logger.Warnf("Warmup failed: %v", err)
		}
	}

	logger.WithFields(logger.Fields{
		"model":     cfg.Model.Name,
		"demo_mode": supervisor.DemoMode(),
		"runtime":   supervisor.Runtime().Name(),
		"cache":     cfg.Storage.Backend(),
	}).Info("Application initialized")

	return a, nil
}

// Close releases the runtime and the cache. Errors are logged.
func (a *App) Close(ctx context.Context) {
	a.Service.Cleanup(ctx)
}
