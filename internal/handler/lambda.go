package handler

import (
	"context"
	"encoding/base64"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"tcc-slm-backend/pkg/logger"
)

// HandleLambda adapts an API Gateway proxy event to Dispatch.
func (h *InferenceHandler) HandleLambda(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	method := req.HTTPMethod
	if method == "" {
		method = http.MethodGet
	}
	path := req.Path
	if path == "" {
		path = "/"
	}

	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			logger.Warnf("Failed to decode base64 body: %v", err)
			return toProxyResponse(errorResponse(http.StatusBadRequest, msgNotObject)), nil
		}
		body = decoded
	}

	return toProxyResponse(h.Dispatch(ctx, method, path, body)), nil
}

func toProxyResponse(resp Response) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Headers,
		Body:       string(resp.Body),
	}
}
