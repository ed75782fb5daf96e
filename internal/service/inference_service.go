package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"tcc-slm-backend/internal/config"
	"tcc-slm-backend/internal/model"
	"tcc-slm-backend/internal/runtime"
	"tcc-slm-backend/internal/storage"
	"tcc-slm-backend/internal/tcc"
	"tcc-slm-backend/internal/utils"
	"tcc-slm-backend/pkg/logger"
)

// GenerationResult is one annotated generation.
type GenerationResult struct {
	Text                string
	TokensGenerated     int
	GenerationTime      time.Duration
	Model               string
	Analysis            tcc.Analysis
	HomeworkSuggestions []string
	Cached              bool
}

// cachedGeneration is the value stored in the response cache.
type cachedGeneration struct {
	Text  string `json:"text"`
	Model string `json:"model"`
}

type InferenceService struct {
	cfg        *config.Config
	supervisor *runtime.Supervisor
	analyzer   *tcc.Analyzer
	session    *tcc.SessionContext
	cache      storage.Cache
	now        func() time.Time
}

func NewInferenceService(cfg *config.Config, supervisor *runtime.Supervisor, analyzer *tcc.Analyzer, cache storage.Cache) *InferenceService {
	if cache == nil {
		cache = storage.NopCache{}
	}
	return &InferenceService{
		cfg:        cfg,
		supervisor: supervisor,
		analyzer:   analyzer,
		session:    tcc.NewSessionContext(analyzer),
		cache:      cache,
		now:        time.Now,
	}
}

func (s *InferenceService) Session() *tcc.SessionContext {
	return s.session
}

// Generate loads the model if needed, annotates the prompt and runs it
// through the current runtime.
func (s *InferenceService) Generate(ctx context.Context, req model.GenerationRequest) (*GenerationResult, error) {
	if err := s.supervisor.EnsureModelLoaded(ctx); err != nil {
		return nil, fmt.Errorf("ensure model loaded: %w", err)
	}

	prompt := utils.SanitizePrompt(req.Prompt)
	analysis := s.analyzer.Analyze(prompt)

	rt := s.supervisor.Runtime()
	demo := s.supervisor.DemoMode()
	modelName := s.supervisor.Model()

	var (
		text    string
		label   string
		elapsed time.Duration
		cached  bool
	)

	key := cacheKey(modelName, req, prompt)
	if !demo {
		var hit cachedGeneration
		err := s.cache.Get(ctx, key, &hit)
		switch {
		case err == nil:
			text, label, cached = hit.Text, hit.Model, true
			logger.Debugf("Cache hit for %s", key)
		case storage.IsMiss(err) || errors.Is(err, storage.ErrCacheDisabled):
		default:
			logger.Warnf("Cache lookup failed for %s: %v", key, err)
		}
	}

	if !cached {
		messages, err := s.analyzer.BuildMessages(ctx, prompt, analysis)
		if err != nil {
			return nil, fmt.Errorf("build prompt: %w", err)
		}

		res, err := rt.Generate(ctx, runtime.GenerateRequest{
			Model:       modelName,
			Input:       prompt,
			Analysis:    analysis,
			Messages:    messages,
			MaxTokens:   req.MaxTokens,
			Temperature: req.Temperature,
		})
		if err != nil {
			return nil, err
		}
		text, label, elapsed = res.Text, res.Model, res.Duration

		if !demo {
			if err := s.cache.Put(ctx, key, cachedGeneration{Text: text, Model: label}); err != nil {
				logger.Warnf("Failed to cache generation %s: %v", key, err)
			}
		}
	}

	s.session.Record(prompt, analysis)
	s.supervisor.Touch()

	result := &GenerationResult{
		Text:                text,
		TokensGenerated:     utils.EstimateTokens(text),
		GenerationTime:      elapsed,
		Model:               label,
		Analysis:            analysis,
		HomeworkSuggestions: s.analyzer.Homework(analysis),
		Cached:              cached,
	}

	logger.WithFields(logger.Fields{
		"runtime":    rt.Name(),
		"model":      label,
		"tokens":     result.TokensGenerated,
		"elapsed_ms": elapsed.Milliseconds(),
		"cached":     cached,
		"emotions":   analysis.EmotionalIndicators,
	}).Info("Generation completed")

	return result, nil
}

// cacheKey identifies a generation by everything that shapes its output.
func cacheKey(modelName string, req model.GenerationRequest, prompt string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%g|%s", modelName, req.MaxTokens, req.Temperature, prompt)))
	return "inference/" + hex.EncodeToString(sum[:]) + ".json"
}

// Warmup runs a tiny generation so the first request does not pay for model
// loading. In demo mode it only pauses.
func (s *InferenceService) Warmup(ctx context.Context) error {
	start := s.now()
	if err := s.supervisor.EnsureModelLoaded(ctx); err != nil {
		return err
	}

	if s.supervisor.DemoMode() {
		if err := s.supervisor.Demo().Pause(ctx, s.cfg.Demo.WarmupDelay); err != nil {
			return err
		}
		logger.Info("Demo mode warmup completed")
		return nil
	}

	_, err := s.supervisor.Runtime().Generate(ctx, runtime.GenerateRequest{
		Model:       s.supervisor.Model(),
		Input:       "Hello",
		Messages:    s.analyzer.WarmupMessages("Hello"),
		MaxTokens:   10,
		Temperature: 0.1,
	})
	if err != nil {
		return fmt.Errorf("warmup: %w", err)
	}

	logger.Infof("Model warmed up in %.2fs", s.now().Sub(start).Seconds())
	return nil
}

// Status reports the runtime and session state for the health endpoint.
func (s *InferenceService) Status() model.ModelStatus {
	state := s.supervisor.State()

	var lastActivity float64
	if !state.LastActivity.IsZero() {
		lastActivity = float64(state.LastActivity.UnixNano()) / float64(time.Second)
	}

	return model.ModelStatus{
		Loaded:         state.Loaded,
		ModelName:      s.supervisor.Model(),
		LastActivity:   lastActivity,
		CacheTTL:       s.cfg.Storage.CacheTTL,
		DemoMode:       state.DemoMode,
		TCCEnabled:     true,
		Runtime:        state.RuntimeName,
		SessionSummary: s.session.Summary(),
	}
}

// Cleanup releases the runtime and closes the cache.
func (s *InferenceService) Cleanup(ctx context.Context) {
	s.supervisor.Cleanup(ctx)
	if err := s.cache.Close(); err != nil {
		logger.Warnf("Failed to close cache: %v", err)
	}
}
