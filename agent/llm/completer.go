package llm

import (
	"context"
	"fmt"

	openaisdk "github.com/openai/openai-go"
	contractx "github.com/superbryn/voice-agent/agent/contract"
)

// Completer is a thin single-shot chat wrapper used where no tool loop
// is wanted, such as summary generation.
type Completer struct {
	client      *openaisdk.Client
	model       string
	temperature float64
	maxTokens   int
}

func NewCompleter(client *openaisdk.Client, model string, temperature float64, maxTokens int) (*Completer, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: nil model client", contractx.ErrValidation)
	}
	return &Completer{
		client:      client,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}, nil
}

func (c *Completer) Complete(ctx context.Context, system, prompt string) (string, error) {
	completion, err := c.client.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(system),
			openaisdk.UserMessage(prompt),
		},
		Temperature:         openaisdk.Float(c.temperature),
		MaxCompletionTokens: openaisdk.Int(int64(c.maxTokens)),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: completion returned no choices", contractx.ErrSchemaViolation)
	}
	return completion.Choices[0].Message.Content, nil
}
