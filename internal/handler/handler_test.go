package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"tcc-slm-backend/internal/config"
	"tcc-slm-backend/internal/model"
	"tcc-slm-backend/internal/runtime"
	"tcc-slm-backend/internal/service"
	"tcc-slm-backend/internal/tcc"
	"tcc-slm-backend/internal/utils"
)

func testConfig() *config.Config {
	return &config.Config{
		Model: config.ModelConfig{Name: "llama2:7b", MaxTokens: 512, Temperature: 0.7},
		Demo:  config.DemoConfig{MinDelay: 500 * time.Millisecond, MaxDelay: 2 * time.Second},
		CORS: config.CORSConfig{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
			MaxAge:         3600,
		},
		Storage: config.StorageConfig{CacheTTL: 3600},
	}
}

func newDemoHandler(t *testing.T) *InferenceHandler {
	t.Helper()
	cfg := testConfig()
	demo, err := runtime.NewDemoRuntime(cfg.Demo,
		runtime.WithRand(rand.New(rand.NewSource(1))),
		runtime.WithSleeper(func(context.Context, time.Duration) error { return nil }),
	)
	require.NoError(t, err)

	sup := runtime.NewSupervisor(cfg.Model.Name, nil, demo)
	svc := service.NewInferenceService(cfg, sup, tcc.NewAnalyzer(nil), nil)
	return NewInferenceHandler(cfg, svc)
}

func TestParseInferenceRequestRejects(t *testing.T) {
	v := validator.New()
	defaults := testConfig().Model

	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing prompt", `{}`, msgMissingPrompt},
		{"empty body", ``, msgMissingPrompt},
		{"non-string prompt", `{"prompt": 42}`, msgEmptyPrompt},
		{"null prompt", `{"prompt": null}`, msgEmptyPrompt},
		{"whitespace prompt", `{"prompt": "   \n\t"}`, msgEmptyPrompt},
		{"prompt too long", `{"prompt": "` + strings.Repeat("a", 10001) + `"}`, msgPromptTooLong},
		{"max_tokens zero", `{"prompt": "hello", "max_tokens": 0}`, msgMaxTokensRange},
		{"max_tokens too big", `{"prompt": "hello", "max_tokens": 2049}`, msgMaxTokensRange},
		{"max_tokens float", `{"prompt": "hello", "max_tokens": 10.5}`, msgMaxTokensRange},
		{"max_tokens string", `{"prompt": "hello", "max_tokens": "10"}`, msgMaxTokensRange},
		{"temperature negative", `{"prompt": "hello", "temperature": -0.1}`, msgTemperatureRange},
		{"temperature too high", `{"prompt": "hello", "temperature": 2.1}`, msgTemperatureRange},
		{"temperature string", `{"prompt": "hello", "temperature": "hot"}`, msgTemperatureRange},
		{"array body", `["hello"]`, msgNotObject},
		{"null body", `null`, msgNotObject},
		{"broken json", `{"prompt":`, msgNotObject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseInferenceRequest(v, []byte(tt.body), defaults)
			require.Error(t, err)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.want, verr.Message)
		})
	}
}

func TestParseInferenceRequestAccepts(t *testing.T) {
	v := validator.New()
	defaults := testConfig().Model

	tests := []struct {
		name        string
		body        string
		maxTokens   int
		temperature float64
	}{
		{"defaults", `{"prompt": "hello"}`, 512, 0.7},
		{"lower bounds", `{"prompt": "hello", "max_tokens": 1, "temperature": 0}`, 1, 0},
		{"upper bounds", `{"prompt": "hello", "max_tokens": 2048, "temperature": 2}`, 2048, 2},
		{"max length prompt", `{"prompt": "` + strings.Repeat("ç", 10000) + `"}`, 512, 0.7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseInferenceRequest(v, []byte(tt.body), defaults)
			require.NoError(t, err)
			assert.Equal(t, tt.maxTokens, req.MaxTokens)
			assert.Equal(t, tt.temperature, req.Temperature)
		})
	}
}

func TestDispatchHealthInDemoMode(t *testing.T) {
	h := newDemoHandler(t)

	resp := h.Dispatch(context.Background(), http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Headers["Access-Control-Allow-Origin"])
	assert.Equal(t, "application/json", resp.Headers["Content-Type"])

	var body model.HealthResponse
	require.NoError(t, json.Unmarshal(resp.Body, &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "llama2:7b", body.Model)
	assert.True(t, body.ModelStatus.DemoMode)
	assert.True(t, body.ModelStatus.TCCEnabled)
	assert.Equal(t, "demo", body.ModelStatus.Runtime)
	assert.Equal(t, 3600, body.ModelStatus.CacheTTL)
}

func loadDemoTemplates(t *testing.T) runtime.DemoResponses {
	t.Helper()
	raw, err := os.ReadFile("../runtime/demo_responses.yaml")
	require.NoError(t, err)

	var templates runtime.DemoResponses
	require.NoError(t, yaml.Unmarshal(raw, &templates))
	require.NotEmpty(t, templates.Categories)
	return templates
}

func TestDispatchInferenceDemo(t *testing.T) {
	h := newDemoHandler(t)

	resp := h.Dispatch(context.Background(), http.MethodPost, "/inference",
		[]byte(`{"prompt": "Estou ansioso com a apresentação de amanhã"}`))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(resp.Body))
	assert.NotEmpty(t, resp.Headers[requestIDHeader])

	var body model.InferenceResponse
	require.NoError(t, json.Unmarshal(resp.Body, &body))
	anxiety := loadDemoTemplates(t).Categories[0]
	require.Equal(t, "ansiedade", anxiety.Category)
	assert.Equal(t, anxiety.Text, body.Response)
	assert.Equal(t, "llama2:7b", body.Model)
	assert.Contains(t, body.TCCAnalysis.EmotionalIndicators, "ansiedade")
	assert.NotEmpty(t, body.HomeworkSuggestions)
	assert.Greater(t, body.TokensGenerated, 0)
	assert.Greater(t, body.Timestamp, int64(0))

	// lists are always present on the wire
	assert.Contains(t, string(resp.Body), `"behavioral_concerns":[]`)
}

func TestDispatchValidationAndNotFound(t *testing.T) {
	h := newDemoHandler(t)

	resp := h.Dispatch(context.Background(), http.MethodPost, "/inference", []byte(`{"max_tokens": 5}`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Missing required field: prompt"}`, string(resp.Body))

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/inference"},
		{http.MethodPost, "/health"},
		{http.MethodGet, "/"},
		{http.MethodDelete, "/inference"},
	} {
		resp := h.Dispatch(context.Background(), tc.method, tc.path, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, "%s %s", tc.method, tc.path)
		assert.JSONEq(t, `{"error":"Not found"}`, string(resp.Body))
		assert.Equal(t, "GET, POST, OPTIONS", resp.Headers["Access-Control-Allow-Methods"])
	}
}

func TestRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newDemoHandler(t)
	router := NewRouter(testConfig(), h)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/inference", strings.NewReader(`{"prompt": "Estou triste", "max_tokens": 64}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Not found"}`, w.Body.String())
}

func TestRouterBodyLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := NewRouter(testConfig(), newDemoHandler(t))

	// a full-length emoji prompt with every character escaped as a surrogate pair
	escaped := `{"prompt": "` + strings.Repeat(`\ud83d\ude00`, utils.MaxPromptChars) + `"}`
	require.Greater(t, len(escaped), 8*utils.MaxPromptChars)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/inference", strings.NewReader(escaped)))
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	oversized := `{"prompt": "` + strings.Repeat("a", maxBodyBytes) + `"}`
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/inference", strings.NewReader(oversized)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.JSONEq(t, `{"error":"Request body too large"}`, w.Body.String())
}

func TestHandleLambda(t *testing.T) {
	h := newDemoHandler(t)

	resp, err := h.HandleLambda(context.Background(), events.APIGatewayProxyRequest{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	body := base64.StdEncoding.EncodeToString([]byte(`{"prompt": "tenho que ser perfeito"}`))
	resp, err = h.HandleLambda(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod:      http.MethodPost,
		Path:            "/inference",
		Body:            body,
		IsBase64Encoded: true,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode, resp.Body)
	assert.Contains(t, resp.Body, "Pensamento absolutista: 'tenho que'")

	resp, err = h.HandleLambda(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod:      http.MethodPost,
		Path:            "/inference",
		Body:            "%%%",
		IsBase64Encoded: true,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
