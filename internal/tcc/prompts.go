package tcc

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

func (a *Analyzer) SystemPrompt() string {
	return a.rules.SystemPrompt
}

func (a *Analyzer) newPromptTemplate() prompt.ChatTemplate {
	return prompt.FromMessages(schema.FString,
		schema.SystemMessage(a.rules.SystemPrompt),
		schema.UserMessage(a.rules.ContextTemplate),
	)
}

// BuildMessages renders the system prompt and the context-augmented user
// prompt for one generation call.
func (a *Analyzer) BuildMessages(ctx context.Context, clientInput string, analysis Analysis) ([]*schema.Message, error) {
	return a.newPromptTemplate().Format(ctx, map[string]any{
		"techniques":   strings.Join(analysis.SuggestedTechniques, ", "),
		"patterns":     strings.Join(analysis.CognitivePatterns, ", "),
		"emotions":     strings.Join(analysis.EmotionalIndicators, ", "),
		"client_input": clientInput,
	})
}

// WarmupMessages pairs the system prompt with a bare user input, skipping
// the session context.
func (a *Analyzer) WarmupMessages(input string) []*schema.Message {
	return []*schema.Message{
		schema.SystemMessage(a.rules.SystemPrompt),
		schema.UserMessage(input),
	}
}
