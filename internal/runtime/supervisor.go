package runtime

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"tcc-slm-backend/internal/config"
	"tcc-slm-backend/pkg/logger"
)

// State is a snapshot of the supervisor for health reporting.
type State struct {
	Loaded       bool
	DemoMode     bool
	RuntimeName  string
	LastActivity time.Time
}

// Supervisor owns the runtime lifecycle for one process. Once it falls back
// to demo mode it stays there.
type Supervisor struct {
	model string
	demo  *DemoRuntime

	loadMu sync.Mutex

	mu           sync.RWMutex
	runtime      Runtime
	loaded       bool
	demoMode     bool
	lastActivity time.Time

	now func() time.Time
}

// NewSupervisor wraps an already selected runtime. A nil rt starts the
// supervisor in demo mode.
func NewSupervisor(model string, rt Runtime, demo *DemoRuntime) *Supervisor {
	s := &Supervisor{
		model: model,
		demo:  demo,
		now:   time.Now,
	}
	if rt == nil {
		s.runtime = demo
		s.demoMode = true
	} else {
		s.runtime = rt
	}
	return s
}

// Start discovers the runtime binary and returns a supervisor over it, or
// over the demo runtime when discovery fails.
func Start(ctx context.Context, cfg *config.Config, cmd Commander, demo *DemoRuntime) *Supervisor {
	found, err := NewDiscoverer(cfg.Runtime, cmd).Discover(ctx)
	if err != nil {
		logger.Warnf("Runtime unavailable, running in demo mode: %v", err)
		return NewSupervisor(cfg.Model.Name, nil, demo)
	}

	rt := NewProcessRuntime(found.Path, cfg.Runtime, cmd, found.Serve, cfg.Model.EnableStreaming)
	return NewSupervisor(cfg.Model.Name, rt, demo)
}

func (s *Supervisor) Model() string {
	return s.model
}

// EnsureModelLoaded makes the configured model ready. Concurrent callers
// wait for the first one. A runtime that has gone away switches the
// supervisor to demo mode instead of failing.
func (s *Supervisor) EnsureModelLoaded(ctx context.Context) error {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	s.mu.RLock()
	loaded, demoMode, rt := s.loaded, s.demoMode, s.runtime
	s.mu.RUnlock()

	if loaded {
		return nil
	}

	if demoMode {
		s.markLoaded(false)
		return nil
	}

	if err := rt.ProbeVersion(ctx); err != nil {
		logger.Warnf("Runtime probe failed, switching to demo mode: %v", err)
		s.switchToDemo()
		return nil
	}

	logger.Infof("Loading model %s...", s.model)

	listing, err := rt.ListModels(ctx)
	switch {
	case errors.Is(err, ErrCommandFailed):
		// an unreadable listing means the model is not registered yet
		logger.Warnf("Model listing failed, pulling %s: %v", s.model, err)
		listing = ""
	case err != nil:
		return err
	}

	if !strings.Contains(listing, s.model) {
		if err := rt.PullModel(ctx, s.model); err != nil {
			return err
		}
	}

	if err := rt.LoadModel(ctx, s.model); err != nil {
		return err
	}

	logger.Infof("Model %s loaded successfully", s.model)
	s.markLoaded(false)
	return nil
}

func (s *Supervisor) markLoaded(demo bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = true
	if demo {
		s.demoMode = true
		s.runtime = s.demo
	}
	s.lastActivity = s.now()
}

func (s *Supervisor) switchToDemo() {
	s.markLoaded(true)
}

// Runtime returns the runtime generation calls should go to.
func (s *Supervisor) Runtime() Runtime {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runtime
}

func (s *Supervisor) DemoMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.demoMode
}

func (s *Supervisor) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{
		Loaded:       s.loaded,
		DemoMode:     s.demoMode,
		RuntimeName:  s.runtime.Name(),
		LastActivity: s.lastActivity,
	}
}

// Touch records activity after a generation.
func (s *Supervisor) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = s.now()
}

// Demo returns the fallback runtime.
func (s *Supervisor) Demo() *DemoRuntime {
	return s.demo
}

// Cleanup unloads the model and stops a server the supervisor started.
// Failures are logged, never returned.
func (s *Supervisor) Cleanup(ctx context.Context) {
	s.mu.Lock()
	loaded, demoMode, rt := s.loaded, s.demoMode, s.runtime
	s.loaded = false
	s.mu.Unlock()

	if demoMode || rt == nil {
		return
	}

	if !loaded {
		// still stop a serve process started during discovery
		if p, ok := rt.(*ProcessRuntime); ok {
			if err := p.stopServe(); err != nil {
				logger.Warnf("Error during cleanup: %v", err)
			}
		}
		return
	}

	if err := rt.Stop(ctx, s.model); err != nil {
		logger.WithFields(logger.Fields{
			"model":   s.model,
			"timeout": errors.Is(err, ErrCommandTimeout),
		}).Warnf("Error during cleanup: %v", err)
		return
	}
	logger.Info("Runtime cleanup completed")
}
