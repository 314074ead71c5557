package contract

import (
	"context"
	"encoding/json"

	storex "github.com/superbryn/voice-agent/agent/store"
)

// AppointmentStore is the persistence contract for users and appointments.
// Implementations absorb backend faults at this boundary: on failure they
// log and return a synthesized record of the right shape (or nil / an
// empty list for lookups) instead of an error, so conversational flow is
// never interrupted by a storage fault.
type AppointmentStore interface {
	GetOrCreateUser(ctx context.Context, phone string) storex.User
	CreateAppointment(ctx context.Context, phone, name, date, timeOfDay string) storex.Appointment
	GetAppointment(ctx context.Context, id string) *storex.Appointment
	GetAppointmentByDatetime(ctx context.Context, date, timeOfDay string) *storex.Appointment
	GetUserAppointments(ctx context.Context, phone string) []storex.Appointment
	CancelAppointment(ctx context.Context, id string) storex.Appointment
	ModifyAppointment(ctx context.Context, id, newDate, newTime string) storex.Appointment
}

// ToolExecutor validates and runs one tool invocation. It never returns a
// Go error: every failure is reported inside the ToolResult.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, args json.RawMessage, identifiedPhone string) ToolResult
}

// TurnEngine runs one model turn: completion, tool execution rounds, and
// the final reply.
type TurnEngine interface {
	RunTurn(ctx context.Context, history []Turn, identifiedPhone string) (TurnOutput, error)
}

// Summarizer produces the end-of-call recap. It must always return a
// usable Summary; model or store failures degrade to a templated one.
type Summarizer interface {
	Generate(ctx context.Context, history []Turn, toolCalls []ToolCallRecord, identifiedPhone string) Summary
}

// Completer is a single-shot completion client.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Speaker synthesizes and plays text to the caller.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Publisher delivers observability events best-effort. Callers fire and
// forget; a returned error is for logging only.
type Publisher interface {
	Publish(ctx context.Context, topic string, event WireEvent) error
}

// Transcriber opens provider speech-to-text streams.
type Transcriber interface {
	OpenStream(ctx context.Context, sampleRate, channels int) (SpeechStream, error)
}

// SpeechStream is one live recognition session.
type SpeechStream interface {
	SendAudio(chunk []byte) error
	Transcripts() <-chan Transcript
	Close() error
}

// Synthesizer converts text to playable speech audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (SpeechAudio, error)
}
