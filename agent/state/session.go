package state

import (
	"strings"
	"time"

	contractx "github.com/superbryn/voice-agent/agent/contract"
)

// Phase is the per-call lifecycle. Transitions are linear and one-way:
// Active -> Ending -> Closed.
type Phase string

const (
	PhaseActive Phase = "active"
	PhaseEnding Phase = "ending"
	PhaseClosed Phase = "closed"
)

// CallState is owned by exactly one call and mutated only from that
// call's event goroutine, so it carries no lock. History and the tool log
// are append-only; the identified phone has a single setter.
type CallState struct {
	callID    string
	startedAt time.Time
	phase     Phase

	history         []contractx.Turn
	toolCalls       []contractx.ToolCallRecord
	identifiedPhone string
}

func NewCallState(callID string, now time.Time) *CallState {
	return &CallState{
		callID:    callID,
		startedAt: now,
		phase:     PhaseActive,
	}
}

func (s *CallState) CallID() string       { return s.callID }
func (s *CallState) StartedAt() time.Time { return s.startedAt }
func (s *CallState) Phase() Phase         { return s.phase }

// AppendUserTurn records a user utterance. Empty text is dropped.
func (s *CallState) AppendUserTurn(text string, at time.Time) bool {
	return s.appendTurn(contractx.RoleUser, text, at)
}

// AppendAssistantTurn records an assistant utterance. Empty text is dropped.
func (s *CallState) AppendAssistantTurn(text string, at time.Time) bool {
	return s.appendTurn(contractx.RoleAssistant, text, at)
}

func (s *CallState) appendTurn(role contractx.Role, text string, at time.Time) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	s.history = append(s.history, contractx.Turn{
		Role:      role,
		Text:      text,
		Timestamp: at,
	})
	return true
}

func (s *CallState) RecordToolCall(rec contractx.ToolCallRecord) {
	s.toolCalls = append(s.toolCalls, rec)
}

// SetIdentifiedPhone binds the caller identity. Only invoked on a
// successful identify_user result; empty input is ignored.
func (s *CallState) SetIdentifiedPhone(phone string) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return
	}
	s.identifiedPhone = phone
}

func (s *CallState) IdentifiedPhone() string {
	return s.identifiedPhone
}

// History returns a copy; callers never mutate session state directly.
func (s *CallState) History() []contractx.Turn {
	return append([]contractx.Turn(nil), s.history...)
}

func (s *CallState) ToolCalls() []contractx.ToolCallRecord {
	return append([]contractx.ToolCallRecord(nil), s.toolCalls...)
}

// BeginEnding transitions Active -> Ending. Returns false when the call
// already left the Active phase, which makes the end-of-call path
// idempotent: a second end_conversation cannot run summarization twice.
func (s *CallState) BeginEnding() bool {
	if s.phase != PhaseActive {
		return false
	}
	s.phase = PhaseEnding
	return true
}

// Close marks the call terminal.
func (s *CallState) Close() {
	s.phase = PhaseClosed
}
