package contract

import (
	"time"

	storex "github.com/superbryn/voice-agent/agent/store"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one utterance in the call, in arrival order.
type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ToolResult is the canonical result shape fed back to the model after a
// tool runs. One struct covers every tool; unused fields are omitted from
// the JSON encoding.
type ToolResult struct {
	Success      bool                 `json:"success"`
	Error        string               `json:"error,omitempty"`
	Message      string               `json:"message,omitempty"`
	PhoneNumber  string               `json:"phone_number,omitempty"`
	Date         string               `json:"date,omitempty"`
	Slots        []Slot               `json:"slots,omitempty"`
	Appointment  *storex.Appointment  `json:"appointment,omitempty"`
	Appointments []storex.Appointment `json:"appointments,omitempty"`
	Count        int                  `json:"count,omitempty"`
}

// Slot is a bookable (date, time) pair.
type Slot struct {
	Date      string `json:"date"`
	Time      string `json:"time"`
	Available bool   `json:"available"`
}

// ToolExecution is one completed tool invocation as it crosses the event
// stream. Arguments and Output are canonical JSON, nothing else.
type ToolExecution struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
	Output    string `json:"output"`
}

// ToolCallRecord is the session-log entry for one tool invocation.
type ToolCallRecord struct {
	Name      string         `json:"name"`
	Args      map[string]any `json:"args"`
	Result    ToolResult     `json:"result"`
	Timestamp time.Time      `json:"timestamp"`
}

// TurnOutput is what one model turn produced: the spoken reply and every
// tool invocation executed along the way, in call order.
type TurnOutput struct {
	Reply      string
	Executions []ToolExecution
}

// Summary is the end-of-call recap.
type Summary struct {
	SummaryText        string               `json:"summary_text"`
	ConversationLength int                  `json:"conversation_length"`
	ToolCallsCount     int                  `json:"tool_calls_count"`
	AppointmentsCount  int                  `json:"appointments_count"`
	UserPhone          string               `json:"user_phone,omitempty"`
	Timestamp          time.Time            `json:"timestamp"`
	Appointments       []storex.Appointment `json:"appointments"`
}

// WireEvent is the envelope for best-effort observability publishes
// (room data channel, QStash forward).
type WireEvent struct {
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Transcript is a provider-normalized speech recognition result. Final
// marks end-of-speech for the current user turn.
type Transcript struct {
	Text       string
	Confidence float64
	Final      bool
}

// SpeechAudio is synthesized speech ready for track publishing, already
// split into frames of FrameDuration each.
type SpeechAudio struct {
	Frames        [][]byte
	FrameDuration time.Duration
}

/* ------------------------------- Events --------------------------------- */

// Event is the typed union delivered by the transport adapter. The adapter
// normalizes provider payloads into these variants once, at the boundary;
// the call service never probes raw payloads.
type Event interface {
	isEvent()
}

type UserTranscribedEvent struct {
	Text string
	At   time.Time
}

type AssistantMessageEvent struct {
	Text string
	At   time.Time
}

type ToolBatchEvent struct {
	Executions []ToolExecution
	At         time.Time
}

type AgentStateEvent struct {
	State string
}

type SessionClosedEvent struct {
	Reason string
}

func (UserTranscribedEvent) isEvent()  {}
func (AssistantMessageEvent) isEvent() {}
func (ToolBatchEvent) isEvent()        {}
func (AgentStateEvent) isEvent()       {}
func (SessionClosedEvent) isEvent()    {}
