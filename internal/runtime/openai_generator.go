package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	openai "github.com/sashabaranov/go-openai"

	"tcc-slm-backend/internal/utils"
)

// openaiGenerator talks to the runtime's OpenAI-compatible endpoint instead
// of shelling out for every generation. The runtime process itself is still
// discovered and managed through the CLI.
type openaiGenerator struct {
	client    *openai.Client
	timeout   time.Duration
	streaming bool
}

func newOpenAIGenerator(baseURL string, timeout time.Duration, streaming, debug bool) *openaiGenerator {
	// the local runtime ignores the key, but the client requires one
	clientConfig := openai.DefaultConfig("ollama")
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	clientConfig.HTTPClient = utils.NewHTTPClient(timeout, debug)

	return &openaiGenerator{
		client:    openai.NewClientWithConfig(clientConfig),
		timeout:   timeout,
		streaming: streaming,
	}
}

func (g *openaiGenerator) request(req GenerateRequest) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    convertMessages(req.Messages),
		MaxTokens:   req.MaxTokens,
		Temperature: wireTemperature(req.Temperature),
		TopP:        defaultTopP,
		Stream:      g.streaming,
	}
}

// wireTemperature keeps a zero temperature in the request body. The client
// omits a literal 0, which would leave the runtime on its own default.
func wireTemperature(t float64) float32 {
	if t <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}

func (g *openaiGenerator) generate(ctx context.Context, req GenerateRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if g.streaming {
		return g.generateStream(ctx, req)
	}

	resp, err := g.client.CreateChatCompletion(ctx, g.request(req))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrGenerationFailed)
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (g *openaiGenerator) generateStream(ctx context.Context, req GenerateRequest) (string, error) {
	stream, err := g.client.CreateChatCompletionStream(ctx, g.request(req))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	defer stream.Close()

	var content strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: stream: %v", ErrGenerationFailed, err)
		}
		if len(chunk.Choices) > 0 {
			content.WriteString(chunk.Choices[0].Delta.Content)
		}
	}

	return strings.TrimSpace(content.String()), nil
}

func convertMessages(messages []*schema.Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		role := openai.ChatMessageRoleUser
		switch msg.Role {
		case schema.System:
			role = openai.ChatMessageRoleSystem
		case schema.Assistant:
			role = openai.ChatMessageRoleAssistant
		}

		result = append(result, openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		})
	}
	return result
}
