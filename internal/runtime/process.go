package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"tcc-slm-backend/internal/config"
	"tcc-slm-backend/pkg/logger"
)

// generator performs the actual text generation for a ProcessRuntime.
type generator interface {
	generate(ctx context.Context, req GenerateRequest) (string, error)
}

// ProcessRuntime drives a runtime binary through its command line.
type ProcessRuntime struct {
	path string
	cfg  config.RuntimeConfig
	cmd  Commander
	gen  generator

	mu    sync.Mutex
	serve Process
}

func NewProcessRuntime(path string, cfg config.RuntimeConfig, cmd Commander, serve Process, streaming bool) *ProcessRuntime {
	p := &ProcessRuntime{
		path:  path,
		cfg:   cfg,
		cmd:   cmd,
		serve: serve,
	}

	switch cfg.Transport {
	case "openai":
		p.gen = newOpenAIGenerator(cfg.BaseURL, cfg.GenerateTimeout, streaming, cfg.DebugRequests)
	default:
		p.gen = &cliGenerator{runtime: p}
	}
	return p
}

func (p *ProcessRuntime) Name() string {
	return "ollama"
}

func (p *ProcessRuntime) Path() string {
	return p.path
}

func (p *ProcessRuntime) run(ctx context.Context, timeout time.Duration, args ...string) (*CommandResult, error) {
	return p.cmd.Run(ctx, timeout, p.path, args...)
}

func (p *ProcessRuntime) ProbeVersion(ctx context.Context) error {
	res, err := p.run(ctx, p.cfg.VersionTimeout, "--version")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRuntimeUnavailable, err)
	}
	if !res.Succeeded() {
		return fmt.Errorf("%w: version probe exited with %d", ErrRuntimeUnavailable, res.ExitCode)
	}
	return nil
}

func (p *ProcessRuntime) ListModels(ctx context.Context) (string, error) {
	res, err := p.run(ctx, p.cfg.ListTimeout, "list")
	if err != nil {
		return "", err
	}
	if !res.Succeeded() {
		return "", fmt.Errorf("%w: list exited with %d: %s", ErrCommandFailed, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return res.Stdout, nil
}

func (p *ProcessRuntime) PullModel(ctx context.Context, model string) error {
	logger.Infof("Pulling model %s...", model)

	res, err := p.run(ctx, p.cfg.PullTimeout, "pull", model)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrModelPull, err)
	}
	if !res.Succeeded() {
		return fmt.Errorf("%w: %s", ErrModelPull, strings.TrimSpace(res.Stderr))
	}

	logger.Infof("Model %s pulled successfully", model)
	return nil
}

func (p *ProcessRuntime) LoadModel(ctx context.Context, model string) error {
	res, err := p.run(ctx, p.cfg.LoadTimeout, "run", model, "--version")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrModelLoad, err)
	}
	if !res.Succeeded() {
		return fmt.Errorf("%w: %s", ErrModelLoad, strings.TrimSpace(res.Stderr))
	}
	return nil
}

func (p *ProcessRuntime) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	start := time.Now()
	text, err := p.gen.generate(ctx, req)
	if err != nil {
		return nil, err
	}

	return &GenerateResult{
		Text:     text,
		Model:    req.Model,
		Duration: time.Since(start),
	}, nil
}

// Stop unloads the model and kills a serve process this runtime started.
func (p *ProcessRuntime) Stop(ctx context.Context, model string) error {
	var errs []error

	res, err := p.run(ctx, p.cfg.StopTimeout, "stop", model)
	switch {
	case err != nil:
		errs = append(errs, err)
	case !res.Succeeded():
		errs = append(errs, fmt.Errorf("%w: stop exited with %d", ErrCommandFailed, res.ExitCode))
	}

	if err := p.stopServe(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (p *ProcessRuntime) stopServe() error {
	p.mu.Lock()
	serve := p.serve
	p.serve = nil
	p.mu.Unlock()

	if serve == nil {
		return nil
	}
	if err := serve.Stop(); err != nil {
		return fmt.Errorf("stop serve process %d: %w", serve.Pid(), err)
	}
	return nil
}

type generateOptions struct {
	NumPredict    int     `json:"num_predict"`
	Temperature   float64 `json:"temperature"`
	TopP          float64 `json:"top_p"`
	RepeatPenalty float64 `json:"repeat_penalty"`
}

type cliGenerator struct {
	runtime *ProcessRuntime
}

func (g *cliGenerator) generate(ctx context.Context, req GenerateRequest) (string, error) {
	system, user := splitMessages(req.Messages)

	opts, err := json.Marshal(generateOptions{
		NumPredict:    req.MaxTokens,
		Temperature:   req.Temperature,
		TopP:          defaultTopP,
		RepeatPenalty: defaultRepeatPenalty,
	})
	if err != nil {
		return "", fmt.Errorf("%w: encode options: %v", ErrGenerationFailed, err)
	}

	res, err := g.runtime.run(ctx, g.runtime.cfg.GenerateTimeout,
		"generate", req.Model,
		"--system", system,
		"--prompt", user,
		"--options", string(opts),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if !res.Succeeded() {
		return "", fmt.Errorf("%w: exit %d: %s", ErrGenerationFailed, res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	return strings.TrimSpace(res.Stdout), nil
}
