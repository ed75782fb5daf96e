package model

import (
	"tcc-slm-backend/internal/tcc"
)

type InferenceResponse struct {
	Response            string       `json:"response"`
	TokensGenerated     int          `json:"tokens_generated"`
	InferenceTime       float64      `json:"inference_time"`
	Model               string       `json:"model"`
	Timestamp           int64        `json:"timestamp"`
	TCCAnalysis         tcc.Analysis `json:"tcc_analysis"`
	HomeworkSuggestions []string     `json:"homework_suggestions"`
}

type HealthResponse struct {
	Status      string      `json:"status"`
	Model       string      `json:"model"`
	ModelStatus ModelStatus `json:"model_status"`
	Timestamp   int64       `json:"timestamp"`
}

type ModelStatus struct {
	Loaded         bool               `json:"loaded"`
	ModelName      string             `json:"model_name"`
	LastActivity   float64            `json:"last_activity"`
	CacheTTL       int                `json:"cache_ttl"`
	DemoMode       bool               `json:"demo_mode"`
	TCCEnabled     bool               `json:"tcc_enabled"`
	Runtime        string             `json:"runtime"`
	SessionSummary tcc.SessionSummary `json:"session_summary"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
