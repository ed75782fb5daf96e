package service

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tcc-slm-backend/internal/config"
	"tcc-slm-backend/internal/model"
	"tcc-slm-backend/internal/runtime"
	"tcc-slm-backend/internal/storage"
	"tcc-slm-backend/internal/tcc"
)

// stubRuntime is a runtime that is always available and answers with a
// fixed text.
type stubRuntime struct {
	mu       sync.Mutex
	text     string
	err      error
	requests []runtime.GenerateRequest
}

func (r *stubRuntime) Name() string {
	return "ollama"
}

func (r *stubRuntime) ProbeVersion(ctx context.Context) error {
	return nil
}

func (r *stubRuntime) ListModels(ctx context.Context) (string, error) {
	return "llama2:7b", nil
}

func (r *stubRuntime) PullModel(ctx context.Context, name string) error {
	return nil
}

func (r *stubRuntime) LoadModel(ctx context.Context, name string) error {
	return nil
}

func (r *stubRuntime) Stop(ctx context.Context, name string) error {
	return nil
}

func (r *stubRuntime) Generate(ctx context.Context, req runtime.GenerateRequest) (*runtime.GenerateResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	if r.err != nil {
		return nil, r.err
	}
	return &runtime.GenerateResult{Text: r.text, Model: req.Model, Duration: 1500 * time.Millisecond}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Model: config.ModelConfig{Name: "llama2:7b", MaxTokens: 512, Temperature: 0.7},
		Demo: config.DemoConfig{
			MinDelay:    500 * time.Millisecond,
			MaxDelay:    2 * time.Second,
			WarmupDelay: 500 * time.Millisecond,
		},
		Storage: config.StorageConfig{CacheTTL: 3600},
	}
}

func newDemoService(t *testing.T) *InferenceService {
	t.Helper()
	cfg := testConfig()
	demo, err := runtime.NewDemoRuntime(cfg.Demo,
		runtime.WithRand(rand.New(rand.NewSource(42))),
		runtime.WithSleeper(func(context.Context, time.Duration) error { return nil }),
	)
	require.NoError(t, err)

	sup := runtime.NewSupervisor(cfg.Model.Name, nil, demo)
	return NewInferenceService(cfg, sup, tcc.NewAnalyzer(nil), nil)
}

func newStubService(t *testing.T, rt runtime.Runtime, cache storage.Cache) *InferenceService {
	t.Helper()
	cfg := testConfig()
	demo, err := runtime.NewDemoRuntime(cfg.Demo, runtime.WithSleeper(func(context.Context, time.Duration) error { return nil }))
	require.NoError(t, err)

	sup := runtime.NewSupervisor(cfg.Model.Name, rt, demo)
	return NewInferenceService(cfg, sup, tcc.NewAnalyzer(nil), cache)
}

func TestGenerateDemoAnxiety(t *testing.T) {
	svc := newDemoService(t)

	res, err := svc.Generate(context.Background(), model.GenerationRequest{
		Prompt:      "Estou ansioso com a apresentação de amanhã",
		MaxTokens:   512,
		Temperature: 0.7,
	})
	require.NoError(t, err)

	assert.Contains(t, res.Text, "apresentação de amanhã")
	assert.Equal(t, "llama2:7b (TCC demo mode)", res.Model)
	assert.Contains(t, res.Analysis.EmotionalIndicators, tcc.CategoryAnxiety)
	assert.NotEmpty(t, res.HomeworkSuggestions)
	assert.Equal(t, len([]rune(res.Text))/4, res.TokensGenerated)
	assert.GreaterOrEqual(t, res.GenerationTime, 500*time.Millisecond)
	assert.LessOrEqual(t, res.GenerationTime, 2*time.Second)
	assert.False(t, res.Cached)

	status := svc.Status()
	assert.True(t, status.Loaded)
	assert.True(t, status.DemoMode)
	assert.Equal(t, "demo", status.Runtime)
	assert.Greater(t, status.LastActivity, 0.0)
	assert.Equal(t, []string{"Estou ansioso com a apresentação de amanhã"}, status.SessionSummary.MainConcerns)
}

func TestGenerateSanitizesPrompt(t *testing.T) {
	rt := &stubRuntime{text: "ok"}
	svc := newStubService(t, rt, nil)

	_, err := svc.Generate(context.Background(), model.GenerationRequest{
		Prompt:      `  <b>"Estou tenso"</b>  `,
		MaxTokens:   64,
		Temperature: 0.2,
	})
	require.NoError(t, err)

	require.Len(t, rt.requests, 1)
	req := rt.requests[0]
	assert.Equal(t, "bEstou tenso/b", req.Input)
	assert.Equal(t, 64, req.MaxTokens)
	assert.Equal(t, 0.2, req.Temperature)
	require.Len(t, req.Messages, 2)
	assert.Contains(t, req.Messages[1].Content, "ENTRADA DO CLIENTE: bEstou tenso/b")
}

func TestGenerateUsesCacheForRealRuntime(t *testing.T) {
	rt := &stubRuntime{text: "resposta do modelo"}
	cache := storage.NewMemoryCache(time.Hour)
	svc := newStubService(t, rt, cache)

	req := model.GenerationRequest{Prompt: "nunca consigo dormir", MaxTokens: 128, Temperature: 0.7}

	first, err := svc.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := svc.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Text, second.Text)
	assert.Len(t, rt.requests, 1)

	// different parameters miss the cache
	req.Temperature = 0.1
	_, err = svc.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, rt.requests, 2)
}

func TestGenerateDemoResultsAreNotCached(t *testing.T) {
	cfg := testConfig()
	demo, err := runtime.NewDemoRuntime(cfg.Demo, runtime.WithSleeper(func(context.Context, time.Duration) error { return nil }))
	require.NoError(t, err)

	cache := storage.NewMemoryCache(time.Hour)
	svc := NewInferenceService(cfg, runtime.NewSupervisor(cfg.Model.Name, nil, demo), tcc.NewAnalyzer(nil), cache)

	req := model.GenerationRequest{Prompt: "estou triste", MaxTokens: 64, Temperature: 0.7}
	_, err = svc.Generate(context.Background(), req)
	require.NoError(t, err)

	var out cachedGeneration
	assert.ErrorIs(t, cache.Get(context.Background(), cacheKey(cfg.Model.Name, req, "estou triste"), &out), storage.ErrCacheMiss)
}

func TestGenerateRuntimeFailure(t *testing.T) {
	rt := &stubRuntime{err: runtime.ErrGenerationFailed}
	svc := newStubService(t, rt, nil)

	_, err := svc.Generate(context.Background(), model.GenerationRequest{Prompt: "olá", MaxTokens: 10, Temperature: 0.7})
	require.Error(t, err)
	assert.True(t, errors.Is(err, runtime.ErrGenerationFailed))
	assert.Empty(t, svc.Status().SessionSummary.MainConcerns)
}

func TestCacheKeyFormat(t *testing.T) {
	key := cacheKey("llama2:7b", model.GenerationRequest{MaxTokens: 512, Temperature: 0.7}, "olá")
	assert.Regexp(t, `^inference/[0-9a-f]{64}\.json$`, key)
	assert.NotEqual(t, key, cacheKey("mistral:7b", model.GenerationRequest{MaxTokens: 512, Temperature: 0.7}, "olá"))
}

func TestWarmup(t *testing.T) {
	svc := newDemoService(t)
	require.NoError(t, svc.Warmup(context.Background()))
	assert.True(t, svc.Status().Loaded)

	rt := &stubRuntime{text: "hi"}
	live := newStubService(t, rt, nil)
	require.NoError(t, live.Warmup(context.Background()))
	require.Len(t, rt.requests, 1)
	assert.Equal(t, 10, rt.requests[0].MaxTokens)
	assert.Equal(t, 0.1, rt.requests[0].Temperature)
	assert.Equal(t, "Hello", rt.requests[0].Messages[1].Content)
}
