package handler

import (
	"encoding/json"
	"net/http"

	"tcc-slm-backend/internal/model"
	"tcc-slm-backend/pkg/logger"
)

// Response is a transport-neutral HTTP response. The gin server and the
// Lambda adapter both render it.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

func defaultHeaders() map[string]string {
	return map[string]string{
		"Content-Type":                 "application/json",
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Methods": "GET, POST, OPTIONS",
		"Access-Control-Allow-Headers": "Content-Type, Authorization",
	}
}

func jsonResponse(status int, body any) Response {
	data, err := json.Marshal(body)
	if err != nil {
		logger.Errorf("Failed to encode response: %v", err)
		status = http.StatusInternalServerError
		data = []byte(`{"error":"Internal server error"}`)
	}
	return Response{
		StatusCode: status,
		Headers:    defaultHeaders(),
		Body:       data,
	}
}

func errorResponse(status int, msg string) Response {
	return jsonResponse(status, model.ErrorResponse{Error: msg})
}
