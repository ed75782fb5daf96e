package utils

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"tcc-slm-backend/pkg/logger"
)

var sensitiveHeaders = []string{"authorization", "x-api-key", "x-auth-token", "cookie"}

// DebugTransport logs outgoing POST requests at debug level before handing
// them to the base transport. Credentials in headers are redacted.
type DebugTransport struct {
	base http.RoundTripper
}

func NewDebugTransport(base http.RoundTripper) *DebugTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &DebugTransport{base: base}
}

func (t *DebugTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method == http.MethodPost {
		t.logRequest(req)
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		logger.Debugf("[runtime http] %s %s failed: %v", req.Method, req.URL, err)
	}
	return resp, err
}

func (t *DebugTransport) logRequest(req *http.Request) {
	fields := logger.Fields{
		"method": req.Method,
		"url":    req.URL.String(),
	}
	for name, values := range req.Header {
		if isSensitiveHeader(name) {
			fields["header."+name] = "[REDACTED]"
			continue
		}
		fields["header."+name] = strings.Join(values, ", ")
	}

	if req.Body != nil {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			logger.Warnf("[runtime http] failed to read request body: %v", err)
			return
		}
		// restore the body for the real request
		req.Body = io.NopCloser(bytes.NewReader(body))
		fields["body_bytes"] = len(body)
		fields["body"] = string(body)
	}

	logger.WithFields(fields).Debug("[runtime http] request")
}

func isSensitiveHeader(name string) bool {
	for _, h := range sensitiveHeaders {
		if strings.EqualFold(name, h) {
			return true
		}
	}
	return false
}
