package call

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	contractx "github.com/superbryn/voice-agent/agent/contract"
	statex "github.com/superbryn/voice-agent/agent/state"
	toolx "github.com/superbryn/voice-agent/agent/tool"
)

const (
	topicUserSpeech     = "user_speech"
	topicAgentSpeech    = "agent_speech"
	topicFunctionCall   = "function_call"
	topicFunctionResult = "function_result"
	topicSummary        = "conversation_summary"
)

const (
	greeting = "Hello! Thank you for calling SuperBryn. I can help you book, check, change, or cancel appointments. How can I help you today?"
	apology  = "I'm sorry, I ran into a problem processing that. Could you say it again?"
	farewell = "Thank you for calling SuperBryn. Goodbye!"
)

// Service owns one call end to end: it consumes normalized transport
// events, drives the model turn loop, mirrors everything into the call
// state, and runs closure exactly once.
type Service struct {
	state      *statex.CallState
	engine     contractx.TurnEngine
	summarizer contractx.Summarizer
	speaker    contractx.Speaker
	publisher  contractx.Publisher

	graceDelay time.Duration
	now        func() time.Time
	closeFn    func()
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithGraceDelay sets the pause between the farewell and teardown, so
// the last synthesized audio can drain.
func WithGraceDelay(d time.Duration) Option {
	return func(s *Service) { s.graceDelay = d }
}

// WithCloseFunc registers the transport teardown invoked after closure.
func WithCloseFunc(fn func()) Option {
	return func(s *Service) { s.closeFn = fn }
}

func New(
	state *statex.CallState,
	engine contractx.TurnEngine,
	summarizer contractx.Summarizer,
	speaker contractx.Speaker,
	publisher contractx.Publisher,
	opts ...Option,
) (*Service, error) {
	if state == nil {
		return nil, fmt.Errorf("%w: nil call state", contractx.ErrValidation)
	}
	if engine == nil {
		return nil, fmt.Errorf("%w: nil turn engine", contractx.ErrValidation)
	}
	if summarizer == nil {
		return nil, fmt.Errorf("%w: nil summarizer", contractx.ErrValidation)
	}
	s := &Service{
		state:      state,
		engine:     engine,
		summarizer: summarizer,
		speaker:    speaker,
		publisher:  publisher,
		graceDelay: 2 * time.Second,
		now:        time.Now,
		closeFn:    func() {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run greets the caller, then consumes events until the channel closes,
// the context is cancelled, or the call ends. It always leaves the call
// state Closed.
func (s *Service) Run(ctx context.Context, events <-chan contractx.Event) error {
	s.speak(ctx, greeting)
	s.state.AppendAssistantTurn(greeting, s.now())

	for {
		select {
		case <-ctx.Done():
			s.finish(context.WithoutCancel(ctx), "context cancelled")
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				s.finish(ctx, "transport closed")
				return nil
			}
			if done := s.handle(ctx, ev); done {
				return nil
			}
		}
	}
}

func (s *Service) handle(ctx context.Context, ev contractx.Event) bool {
	switch e := ev.(type) {
	case contractx.UserTranscribedEvent:
		return s.handleUserTranscribed(ctx, e)
	case contractx.AssistantMessageEvent:
		s.state.AppendAssistantTurn(e.Text, e.At)
		return false
	case contractx.ToolBatchEvent:
		if s.handleToolBatch(ctx, e.Executions) {
			s.finish(ctx, "caller ended conversation")
			return true
		}
		return false
	case contractx.SessionClosedEvent:
		s.finish(ctx, e.Reason)
		return true
	case contractx.AgentStateEvent:
		log.Debug().Str("state", e.State).Msg("transport state change")
		return false
	default:
		log.Warn().Type("event", ev).Msg("unhandled event type")
		return false
	}
}

func (s *Service) handleUserTranscribed(ctx context.Context, ev contractx.UserTranscribedEvent) bool {
	if !s.state.AppendUserTurn(ev.Text, ev.At) {
		return false
	}
	s.publishAsync(ctx, topicUserSpeech, map[string]any{"text": ev.Text})

	output, err := s.engine.RunTurn(ctx, s.state.History(), s.state.IdentifiedPhone())
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return false
		}
		log.Error().Err(err).Msg("turn failed")
		s.speak(ctx, apology)
		s.state.AppendAssistantTurn(apology, s.now())
		return false
	}

	endRequested := s.handleToolBatch(ctx, output.Executions)

	if s.state.AppendAssistantTurn(output.Reply, s.now()) {
		s.publishAsync(ctx, topicAgentSpeech, map[string]any{"text": output.Reply})
		s.speak(ctx, output.Reply)
	}

	if endRequested {
		s.finish(ctx, "caller ended conversation")
		return true
	}
	return false
}

// handleToolBatch mirrors each execution into the call state and onto the
// event stream, and reports whether end_conversation was among them.
func (s *Service) handleToolBatch(ctx context.Context, executions []contractx.ToolExecution) bool {
	endRequested := false
	for _, exec := range executions {
		var args map[string]any
		if err := json.Unmarshal([]byte(exec.Arguments), &args); err != nil {
			log.Warn().Err(err).Str("tool", exec.Name).Msg("undecodable tool arguments")
			args = map[string]any{}
		}
		var result contractx.ToolResult
		if err := json.Unmarshal([]byte(exec.Output), &result); err != nil {
			log.Warn().Err(err).Str("tool", exec.Name).Msg("undecodable tool output")
		}

		s.state.RecordToolCall(contractx.ToolCallRecord{
			Name:      exec.Name,
			Args:      args,
			Result:    result,
			Timestamp: s.now(),
		})

		if exec.Name == toolx.ToolIdentifyUser && result.Success {
			s.state.SetIdentifiedPhone(result.PhoneNumber)
		}
		if exec.Name == toolx.ToolEndConversation {
			endRequested = true
		}

		s.publishAsync(ctx, topicFunctionCall, map[string]any{"name": exec.Name, "arguments": args})
		s.publishAsync(ctx, topicFunctionResult, map[string]any{"name": exec.Name, "result": result})
	}
	return endRequested
}

// finish runs the end-of-call sequence at most once, no matter how many
// paths reach it: summary, farewell, grace delay, transport teardown.
func (s *Service) finish(ctx context.Context, reason string) {
	if !s.state.BeginEnding() {
		return
	}
	log.Info().Str("call_id", s.state.CallID()).Str("reason", reason).Msg("ending call")

	summary := s.summarizer.Generate(ctx, s.state.History(), s.state.ToolCalls(), s.state.IdentifiedPhone())
	s.publishAsync(ctx, topicSummary, summary)

	s.speak(ctx, summary.SummaryText)
	s.speak(ctx, farewell)

	if s.graceDelay > 0 {
		select {
		case <-time.After(s.graceDelay):
		case <-ctx.Done():
		}
	}

	s.closeFn()
	s.state.Close()
}

func (s *Service) speak(ctx context.Context, text string) {
	if s.speaker == nil || text == "" {
		return
	}
	if err := s.speaker.Speak(ctx, text); err != nil {
		log.Warn().Err(err).Msg("speech playback failed")
	}
}

// publishAsync fires the event without blocking the call loop. Delivery
// is best-effort; failures are logged and dropped.
func (s *Service) publishAsync(ctx context.Context, topic string, data any) {
	if s.publisher == nil {
		return
	}
	ev := contractx.WireEvent{Type: topic, Data: data, Timestamp: s.now()}
	go func() {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.publisher.Publish(pubCtx, topic, ev); err != nil {
			log.Warn().Err(err).Str("topic", topic).Msg("event publish failed")
		}
	}()
}
