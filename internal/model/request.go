package model

// InferenceRequest is the decoded and validated body of POST /inference.
// Pointers distinguish omitted fields, which take the configured defaults.
type InferenceRequest struct {
	Prompt      string   `json:"prompt" validate:"required,max=10000"`
	MaxTokens   *int     `json:"max_tokens" validate:"omitempty,min=1,max=2048"`
	Temperature *float64 `json:"temperature" validate:"omitempty,gte=0,lte=2"`
}

// GenerationRequest is what the generation service runs: every field is set.
type GenerationRequest struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
}
