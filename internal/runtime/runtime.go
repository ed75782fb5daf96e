// Package runtime owns the local text-generation runtime: discovery, start-up,
// model loading, generation calls and the canned-response fallback used when
// no runtime can be reached.
package runtime

import (
	"context"
	"time"

	"github.com/cloudwego/eino/schema"

	"tcc-slm-backend/internal/tcc"
)

const (
	defaultTopP          = 0.9
	defaultRepeatPenalty = 1.1
)

// Runtime is the capability set the supervisor and the generation service
// rely on. ProcessRuntime drives a real runtime binary; DemoRuntime answers
// from canned templates.
type Runtime interface {
	Name() string
	ProbeVersion(ctx context.Context) error
	ListModels(ctx context.Context) (string, error)
	PullModel(ctx context.Context, model string) error
	LoadModel(ctx context.Context, model string) error
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
	Stop(ctx context.Context, model string) error
}

type GenerateRequest struct {
	Model       string
	Input       string
	Analysis    tcc.Analysis
	Messages    []*schema.Message
	MaxTokens   int
	Temperature float64
}

type GenerateResult struct {
	Text     string
	Model    string
	Duration time.Duration
}

// splitMessages flattens rendered chat messages into the system and user
// prompt strings the CLI expects.
func splitMessages(msgs []*schema.Message) (system, user string) {
	for _, m := range msgs {
		switch m.Role {
		case schema.System:
			system = m.Content
		case schema.User:
			user = m.Content
		}
	}
	return system, user
}
