package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/rs/zerolog/log"
	contractx "github.com/superbryn/voice-agent/agent/contract"
	promptx "github.com/superbryn/voice-agent/agent/prompt"
	toolx "github.com/superbryn/voice-agent/agent/tool"
)

// maxToolRounds bounds how many completion/tool-execution cycles a
// single user turn may spend before we give up and surface whatever
// text the model produced last.
const maxToolRounds = 4

// Runner drives one completion loop per user turn: send history plus
// the tool catalog, execute whatever the model calls, feed the results
// back, repeat until the model answers in plain text.
type Runner struct {
	client      *openaisdk.Client
	executor    contractx.ToolExecutor
	model       string
	temperature float64
	maxTokens   int
	now         func() time.Time
}

type Option func(*Runner)

func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

func WithModel(model string) Option {
	return func(r *Runner) { r.model = model }
}

func WithTemperature(t float64) Option {
	return func(r *Runner) { r.temperature = t }
}

func WithMaxTokens(n int) Option {
	return func(r *Runner) { r.maxTokens = n }
}

func New(client *openaisdk.Client, executor contractx.ToolExecutor, opts ...Option) (*Runner, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: nil model client", contractx.ErrValidation)
	}
	if executor == nil {
		return nil, fmt.Errorf("%w: nil tool executor", contractx.ErrValidation)
	}
	r := &Runner{
		client:      client,
		executor:    executor,
		model:       "openai/gpt-4o-mini",
		temperature: 0.7,
		maxTokens:   2000,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// RunTurn runs the tool loop for the latest user utterance in history.
// identifiedPhone carries the caller identity established earlier in
// the session; a successful identify_user inside this turn updates it
// for subsequent calls in the same batch.
func (r *Runner) RunTurn(
	ctx context.Context,
	history []contractx.Turn,
	identifiedPhone string,
) (contractx.TurnOutput, error) {
	messages := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(history)+1)
	messages = append(messages, openaisdk.SystemMessage(promptx.System(r.now())))
	for _, turn := range history {
		switch turn.Role {
		case contractx.RoleUser:
			messages = append(messages, openaisdk.UserMessage(turn.Text))
		case contractx.RoleAssistant:
			messages = append(messages, openaisdk.AssistantMessage(turn.Text))
		}
	}

	var executions []contractx.ToolExecution
	phone := identifiedPhone

	for round := 0; round < maxToolRounds; round++ {
		completion, err := r.client.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
			Model:               r.model,
			Messages:            messages,
			Tools:               toolx.Catalog(),
			Temperature:         openaisdk.Float(r.temperature),
			MaxCompletionTokens: openaisdk.Int(int64(r.maxTokens)),
		})
		if err != nil {
			return contractx.TurnOutput{}, fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
		}
		if len(completion.Choices) == 0 {
			return contractx.TurnOutput{}, fmt.Errorf("%w: completion returned no choices", contractx.ErrSchemaViolation)
		}

		msg := completion.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			return contractx.TurnOutput{Reply: msg.Content, Executions: executions}, nil
		}

		messages = append(messages, msg.ToParam())
		for _, tc := range msg.ToolCalls {
			name := tc.Function.Name
			args := json.RawMessage(tc.Function.Arguments)
			if len(args) == 0 {
				args = json.RawMessage("{}")
			}

			result := r.executor.Execute(ctx, name, args, phone)
			if name == toolx.ToolIdentifyUser && result.Success && result.PhoneNumber != "" {
				phone = result.PhoneNumber
			}

			out, err := json.Marshal(result)
			if err != nil {
				return contractx.TurnOutput{}, fmt.Errorf("%w: encoding result of %s: %v", contractx.ErrSchemaViolation, name, err)
			}

			log.Debug().
				Str("tool", name).
				Bool("success", result.Success).
				Msg("tool executed")

			executions = append(executions, contractx.ToolExecution{
				Name:      name,
				Arguments: string(args),
				Output:    string(out),
			})
			messages = append(messages, openaisdk.ToolMessage(string(out), tc.ID))
		}
	}

	// Round budget exhausted with the model still asking for tools.
	// Ask once more without the catalog so it has to answer in text.
	completion, err := r.client.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model:               r.model,
		Messages:            messages,
		Temperature:         openaisdk.Float(r.temperature),
		MaxCompletionTokens: openaisdk.Int(int64(r.maxTokens)),
	})
	if err != nil {
		return contractx.TurnOutput{}, fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}
	if len(completion.Choices) == 0 {
		return contractx.TurnOutput{}, fmt.Errorf("%w: completion returned no choices", contractx.ErrSchemaViolation)
	}
	return contractx.TurnOutput{Reply: completion.Choices[0].Message.Content, Executions: executions}, nil
}
