package summary

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	contractx "github.com/superbryn/voice-agent/agent/contract"
	promptx "github.com/superbryn/voice-agent/agent/prompt"
	storex "github.com/superbryn/voice-agent/agent/store"
)

// Summarizer turns the accumulated call state into a spoken recap. It is
// a pure transformation over its inputs plus one model call; nothing here
// mutates the store.
type Summarizer struct {
	completer contractx.Completer
	store     contractx.AppointmentStore
	now       func() time.Time
}

func New(completer contractx.Completer, store contractx.AppointmentStore) *Summarizer {
	return &Summarizer{
		completer: completer,
		store:     store,
		now:       time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (s *Summarizer) WithClock(now func() time.Time) *Summarizer {
	s.now = now
	return s
}

// Generate always returns a usable summary. Model or store failures
// degrade to the templated fallback built from counts; ending the call
// never blocks on a flaky dependency.
func (s *Summarizer) Generate(
	ctx context.Context,
	history []contractx.Turn,
	toolCalls []contractx.ToolCallRecord,
	identifiedPhone string,
) contractx.Summary {
	var appointments []storex.Appointment
	if identifiedPhone != "" && s.store != nil {
		appointments = s.store.GetUserAppointments(ctx, identifiedPhone)
	}
	if appointments == nil {
		appointments = []storex.Appointment{}
	}

	prompt := promptx.SummaryRequest(
		formatConversation(history),
		formatToolCalls(toolCalls),
		formatAppointments(appointments),
	)

	text, err := s.completer.Complete(ctx, promptx.SummarySystem, prompt)
	if err != nil || strings.TrimSpace(text) == "" {
		log.Warn().Err(err).Msg("summary generation failed, using fallback summary")
		return s.fallback(history, toolCalls, identifiedPhone)
	}

	return contractx.Summary{
		SummaryText:        strings.TrimSpace(text),
		ConversationLength: len(history),
		ToolCallsCount:     len(toolCalls),
		AppointmentsCount:  len(appointments),
		UserPhone:          identifiedPhone,
		Timestamp:          s.now(),
		Appointments:       appointments,
	}
}

func (s *Summarizer) fallback(
	history []contractx.Turn,
	toolCalls []contractx.ToolCallRecord,
	identifiedPhone string,
) contractx.Summary {
	return contractx.Summary{
		SummaryText: fmt.Sprintf(
			"Thank you for calling SuperBryn! We had a conversation with %d exchanges. %d actions were taken.",
			len(history), len(toolCalls),
		),
		ConversationLength: len(history),
		ToolCallsCount:     len(toolCalls),
		AppointmentsCount:  0,
		UserPhone:          identifiedPhone,
		Timestamp:          s.now(),
		Appointments:       []storex.Appointment{},
	}
}

func formatConversation(history []contractx.Turn) string {
	if len(history) == 0 {
		return "No conversation recorded."
	}
	lines := make([]string, 0, len(history))
	for _, turn := range history {
		role := string(turn.Role)
		if role != "" {
			role = strings.ToUpper(role[:1]) + role[1:]
		}
		lines = append(lines, fmt.Sprintf("%s: %s", role, turn.Text))
	}
	return strings.Join(lines, "\n")
}

func formatToolCalls(toolCalls []contractx.ToolCallRecord) string {
	if len(toolCalls) == 0 {
		return "No actions taken."
	}
	lines := make([]string, 0, len(toolCalls)*2)
	for _, call := range toolCalls {
		lines = append(lines, fmt.Sprintf("- %s: %v", call.Name, call.Args))
		if call.Result.Success {
			msg := call.Result.Message
			if msg == "" {
				msg = "Success"
			}
			lines = append(lines, fmt.Sprintf("  Result: %s", msg))
		} else {
			errMsg := call.Result.Error
			if errMsg == "" {
				errMsg = "Failed"
			}
			lines = append(lines, fmt.Sprintf("  Error: %s", errMsg))
		}
	}
	return strings.Join(lines, "\n")
}

func formatAppointments(appointments []storex.Appointment) string {
	if len(appointments) == 0 {
		return "No appointments found."
	}
	lines := make([]string, 0, len(appointments))
	for _, apt := range appointments {
		lines = append(lines, fmt.Sprintf("- %s: %s at %s (%s)", apt.UserName, apt.Date, apt.Time, apt.Status))
	}
	return strings.Join(lines, "\n")
}
