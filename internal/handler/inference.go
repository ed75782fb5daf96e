package handler

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"tcc-slm-backend/internal/config"
	"tcc-slm-backend/internal/model"
	"tcc-slm-backend/internal/service"
	"tcc-slm-backend/pkg/logger"
)

const requestIDHeader = "X-Request-ID"

type InferenceHandler struct {
	cfg      *config.Config
	svc      *service.InferenceService
	validate *validator.Validate
	now      func() time.Time
}

func NewInferenceHandler(cfg *config.Config, svc *service.InferenceService) *InferenceHandler {
	return &InferenceHandler{
		cfg:      cfg,
		svc:      svc,
		validate: validator.New(),
		now:      time.Now,
	}
}

// Dispatch routes one request. Only GET /health and POST /inference exist;
// everything else is a 404.
func (h *InferenceHandler) Dispatch(ctx context.Context, method, path string, body []byte) Response {
	switch {
	case path == "/health" && method == http.MethodGet:
		return h.Health(ctx)
	case path == "/inference" && method == http.MethodPost:
		return h.Inference(ctx, body)
	default:
		return NotFound()
	}
}

func NotFound() Response {
	return errorResponse(http.StatusNotFound, "Not found")
}

func (h *InferenceHandler) Health(ctx context.Context) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Health check error: %v", r)
			resp = errorResponse(http.StatusInternalServerError, "Health check failed")
		}
	}()

	return jsonResponse(http.StatusOK, model.HealthResponse{
		Status:      "healthy",
		Model:       h.cfg.Model.Name,
		ModelStatus: h.svc.Status(),
		Timestamp:   h.now().Unix(),
	})
}

func (h *InferenceHandler) Inference(ctx context.Context, body []byte) Response {
	requestID := uuid.New().String()
	log := logger.WithFields(logger.Fields{"request_id": requestID})

	req, err := ParseInferenceRequest(h.validate, body, h.cfg.Model)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			log.Warnf("Rejected inference request: %s", verr.Message)
			return withRequestID(errorResponse(http.StatusBadRequest, verr.Message), requestID)
		}
		log.Errorf("Inference error: %v", err)
		return withRequestID(errorResponse(http.StatusInternalServerError, "Inference failed"), requestID)
	}

	start := h.now()
	result, err := h.svc.Generate(ctx, req)
	if err != nil {
		log.Errorf("Inference error: %v", err)
		return withRequestID(errorResponse(http.StatusInternalServerError, "Inference failed"), requestID)
	}
	elapsed := h.now().Sub(start)

	log.WithFields(logger.Fields{
		"tokens":  result.TokensGenerated,
		"seconds": elapsed.Seconds(),
	}).Info("Inference served")

	return withRequestID(jsonResponse(http.StatusOK, model.InferenceResponse{
		Response:            result.Text,
		TokensGenerated:     result.TokensGenerated,
		InferenceTime:       math.Round(elapsed.Seconds()*100) / 100,
		Model:               h.cfg.Model.Name,
		Timestamp:           h.now().Unix(),
		TCCAnalysis:         result.Analysis,
		HomeworkSuggestions: result.HomeworkSuggestions,
	}), requestID)
}

func withRequestID(resp Response, id string) Response {
	resp.Headers[requestIDHeader] = id
	return resp
}
