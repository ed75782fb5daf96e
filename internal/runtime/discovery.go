package runtime

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tcc-slm-backend/internal/config"
	"tcc-slm-backend/pkg/logger"
)

// Discoverer locates a runtime binary and makes sure its server is up.
type Discoverer struct {
	cfg        config.RuntimeConfig
	cmd        Commander
	fileExists func(string) bool
	sleep      func(context.Context, time.Duration) error
}

func NewDiscoverer(cfg config.RuntimeConfig, cmd Commander) *Discoverer {
	return &Discoverer{
		cfg:        cfg,
		cmd:        cmd,
		fileExists: fileExists,
		sleep:      sleepContext,
	}
}

// Discovery is a runtime binary confirmed to be serving. Serve is non-nil
// when the discoverer launched the server itself.
type Discovery struct {
	Path  string
	Serve Process
}

// Discover runs the optional bootstrap script, probes the candidate paths in
// order and starts the server if it is not answering. Any failure yields
// ErrRuntimeUnavailable.
func (d *Discoverer) Discover(ctx context.Context) (*Discovery, error) {
	d.runBootstrap(ctx)

	path, err := d.findBinary(ctx)
	if err != nil {
		return nil, err
	}

	res, err := d.cmd.Run(ctx, d.cfg.ListTimeout, path, "list")
	if err == nil && res.Succeeded() {
		logger.Info("Ollama found and running")
		return &Discovery{Path: path}, nil
	}

	logger.Info("Ollama found but not running - attempting to start...")
	return d.start(ctx, path)
}

func (d *Discoverer) runBootstrap(ctx context.Context) {
	if !d.fileExists(d.cfg.BootstrapScript) {
		return
	}

	logger.Infof("Running runtime bootstrap script %s", d.cfg.BootstrapScript)
	res, err := d.cmd.Run(ctx, d.cfg.BootstrapTimeout, "bash", d.cfg.BootstrapScript)
	if err != nil {
		logger.Warnf("Failed to run bootstrap script: %v", err)
		return
	}
	if stderr := strings.TrimSpace(res.Stderr); stderr != "" {
		logger.Warnf("Bootstrap script errors: %s", stderr)
	}
}

func (d *Discoverer) findBinary(ctx context.Context) (string, error) {
	for _, path := range d.cfg.Paths {
		res, err := d.cmd.Run(ctx, d.cfg.VersionTimeout, path, "--version")
		if err != nil || !res.Succeeded() {
			continue
		}
		logger.Infof("Ollama found at: %s", path)
		return path, nil
	}

	logger.Warnf("Ollama not found in any expected location")
	return "", fmt.Errorf("%w: no runtime binary in %v", ErrRuntimeUnavailable, d.cfg.Paths)
}

func (d *Discoverer) start(ctx context.Context, path string) (*Discovery, error) {
	if d.fileExists(d.cfg.StartScript) {
		logger.Info("Starting Ollama using layer script...")
		res, err := d.cmd.Run(ctx, d.cfg.StartScriptTimeout, "bash", d.cfg.StartScript)
		switch {
		case err != nil:
			logger.Warnf("Start script failed: %v", err)
		case res.Succeeded():
			logger.Info("Ollama started successfully via layer script")
			return &Discovery{Path: path}, nil
		default:
			logger.Warnf("Start script failed: %s", strings.TrimSpace(res.Stderr))
		}
	}

	logger.Infof("Starting Ollama directly using %s...", path)
	serve, err := d.cmd.Start(path, "serve")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRuntimeUnavailable, err)
	}

	stopServe := func() {
		if err := serve.Stop(); err != nil {
			logger.Warnf("Failed to stop serve process: %v", err)
		}
	}

	if err := d.sleep(ctx, d.cfg.SettleDelay); err != nil {
		stopServe()
		return nil, fmt.Errorf("%w: %v", ErrRuntimeUnavailable, err)
	}

	res, err := d.cmd.Run(ctx, d.cfg.StartConfirmTimeout, path, "list")
	if err != nil || !res.Succeeded() {
		stopServe()
		return nil, fmt.Errorf("%w: server did not come up", ErrRuntimeUnavailable)
	}

	logger.Info("Ollama started successfully")
	return &Discovery{Path: path, Serve: serve}, nil
}
