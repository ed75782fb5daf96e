package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"tcc-slm-backend/internal/config"
	"tcc-slm-backend/internal/model"
)

const (
	msgNotObject        = "Request body must be a JSON object"
	msgMissingPrompt    = "Missing required field: prompt"
	msgEmptyPrompt      = "Prompt must be a non-empty string"
	msgPromptTooLong    = "Prompt too long (max 10KB)"
	msgMaxTokensRange   = "max_tokens must be between 1 and 2048"
	msgTemperatureRange = "temperature must be between 0 and 2"
	msgBodyTooLarge     = "Request body too large"
)

// ValidationError is a client error reported as 400 with Message as body.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}

var fieldMessages = map[string]string{
	"Prompt":      msgPromptTooLong,
	"MaxTokens":   msgMaxTokensRange,
	"Temperature": msgTemperatureRange,
}

// ParseInferenceRequest checks the JSON types of the body by hand, since the
// wire format distinguishes integers from floats, then range-checks the
// decoded request. Omitted fields take the model defaults.
func ParseInferenceRequest(v *validator.Validate, body []byte, defaults config.ModelConfig) (model.GenerationRequest, error) {
	var fields map[string]any
	if len(bytes.TrimSpace(body)) == 0 {
		fields = map[string]any{}
	} else {
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		if err := dec.Decode(&fields); err != nil || fields == nil {
			return model.GenerationRequest{}, invalid(msgNotObject)
		}
	}

	var req model.InferenceRequest

	raw, ok := fields["prompt"]
	if !ok {
		return model.GenerationRequest{}, invalid(msgMissingPrompt)
	}
	prompt, ok := raw.(string)
	if !ok || strings.TrimSpace(prompt) == "" {
		return model.GenerationRequest{}, invalid(msgEmptyPrompt)
	}
	req.Prompt = prompt

	if raw, ok := fields["max_tokens"]; ok {
		n, isNum := raw.(json.Number)
		if !isNum {
			return model.GenerationRequest{}, invalid(msgMaxTokensRange)
		}
		i, err := n.Int64()
		if err != nil {
			return model.GenerationRequest{}, invalid(msgMaxTokensRange)
		}
		// keep out-of-range values out of int overflow territory
		if i < 0 || i > 1<<20 {
			return model.GenerationRequest{}, invalid(msgMaxTokensRange)
		}
		maxTokens := int(i)
		req.MaxTokens = &maxTokens
	}

	if raw, ok := fields["temperature"]; ok {
		n, isNum := raw.(json.Number)
		if !isNum {
			return model.GenerationRequest{}, invalid(msgTemperatureRange)
		}
		f, err := n.Float64()
		if err != nil {
			return model.GenerationRequest{}, invalid(msgTemperatureRange)
		}
		req.Temperature = &f
	}

	if err := v.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			if msg, ok := fieldMessages[verrs[0].StructField()]; ok {
				return model.GenerationRequest{}, invalid(msg)
			}
		}
		return model.GenerationRequest{}, invalid(err.Error())
	}

	out := model.GenerationRequest{
		Prompt:      req.Prompt,
		MaxTokens:   defaults.MaxTokens,
		Temperature: defaults.Temperature,
	}
	if req.MaxTokens != nil {
		out.MaxTokens = *req.MaxTokens
	}
	if req.Temperature != nil {
		out.Temperature = *req.Temperature
	}
	return out, nil
}
