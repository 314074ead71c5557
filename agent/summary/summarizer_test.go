package summary

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	contractx "github.com/superbryn/voice-agent/agent/contract"
	storex "github.com/superbryn/voice-agent/agent/store"
)

var t0 = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

type fakeCompleter struct {
	reply string
	err   error

	mu      sync.Mutex
	prompts []string
}

func (f *fakeCompleter) Complete(_ context.Context, _ string, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

type recordingStore struct {
	*storex.MemoryStore

	mu      sync.Mutex
	lookups []string
}

func newRecordingStore() *recordingStore {
	return &recordingStore{MemoryStore: storex.NewMemory()}
}

func (s *recordingStore) GetUserAppointments(ctx context.Context, phone string) []storex.Appointment {
	s.mu.Lock()
	s.lookups = append(s.lookups, phone)
	s.mu.Unlock()
	return s.MemoryStore.GetUserAppointments(ctx, phone)
}

func sampleHistory() []contractx.Turn {
	return []contractx.Turn{
		{Role: contractx.RoleAssistant, Text: "Hello!", Timestamp: t0},
		{Role: contractx.RoleUser, Text: "Book me for tomorrow", Timestamp: t0.Add(time.Second)},
		{Role: contractx.RoleAssistant, Text: "Done.", Timestamp: t0.Add(2 * time.Second)},
	}
}

func sampleToolCalls() []contractx.ToolCallRecord {
	return []contractx.ToolCallRecord{
		{
			Name:      "book_appointment",
			Args:      map[string]any{"date": "2025-06-02", "time": "14:00"},
			Result:    contractx.ToolResult{Success: true, Message: "Appointment booked successfully for Jo on 2025-06-02 at 14:00"},
			Timestamp: t0,
		},
	}
}

func TestGenerateUsesModelReply(t *testing.T) {
	t.Parallel()
	completer := &fakeCompleter{reply: "  You booked an appointment for tomorrow at 2 PM.  "}
	store := newRecordingStore()
	store.CreateAppointment(context.Background(), "5551234567", "Jo", "2025-06-02", "14:00")

	s := New(completer, store).WithClock(func() time.Time { return t0 })
	got := s.Generate(context.Background(), sampleHistory(), sampleToolCalls(), "5551234567")

	if got.SummaryText != "You booked an appointment for tomorrow at 2 PM." {
		t.Errorf("summary text = %q", got.SummaryText)
	}
	if got.ConversationLength != 3 || got.ToolCallsCount != 1 || got.AppointmentsCount != 1 {
		t.Errorf("counts = (%d, %d, %d), want (3, 1, 1)",
			got.ConversationLength, got.ToolCallsCount, got.AppointmentsCount)
	}
	if got.UserPhone != "5551234567" {
		t.Errorf("user phone = %q", got.UserPhone)
	}
	if !got.Timestamp.Equal(t0) {
		t.Errorf("timestamp = %v, want %v", got.Timestamp, t0)
	}

	prompt := completer.prompts[0]
	for _, fragment := range []string{
		"Assistant: Hello!",
		"User: Book me for tomorrow",
		"- book_appointment:",
		"- Jo: 2025-06-02 at 14:00 (confirmed)",
	} {
		if !strings.Contains(prompt, fragment) {
			t.Errorf("prompt missing %q:\n%s", fragment, prompt)
		}
	}
}

func TestGenerateFallsBackOnModelError(t *testing.T) {
	t.Parallel()
	completer := &fakeCompleter{err: errors.New("model unavailable")}
	s := New(completer, newRecordingStore()).WithClock(func() time.Time { return t0 })

	got := s.Generate(context.Background(), sampleHistory(), sampleToolCalls(), "5551234567")

	if !strings.Contains(got.SummaryText, "3 exchanges") || !strings.Contains(got.SummaryText, "1 actions") {
		t.Errorf("fallback text = %q", got.SummaryText)
	}
	if got.ConversationLength != 3 || got.ToolCallsCount != 1 {
		t.Errorf("counts = (%d, %d), want (3, 1)", got.ConversationLength, got.ToolCallsCount)
	}
	if got.Appointments == nil {
		t.Error("fallback appointments is nil, want empty slice")
	}
}

func TestGenerateFallsBackOnBlankReply(t *testing.T) {
	t.Parallel()
	completer := &fakeCompleter{reply: "   "}
	s := New(completer, newRecordingStore()).WithClock(func() time.Time { return t0 })

	got := s.Generate(context.Background(), nil, nil, "")
	if got.SummaryText == "" {
		t.Fatal("blank model reply produced an empty summary")
	}
}

func TestGenerateSkipsStoreWithoutIdentity(t *testing.T) {
	t.Parallel()
	completer := &fakeCompleter{reply: "Short call."}
	store := newRecordingStore()
	s := New(completer, store).WithClock(func() time.Time { return t0 })

	got := s.Generate(context.Background(), sampleHistory(), nil, "")

	if len(store.lookups) != 0 {
		t.Fatalf("store queried %v without an identified caller", store.lookups)
	}
	if got.AppointmentsCount != 0 {
		t.Errorf("appointments count = %d, want 0", got.AppointmentsCount)
	}
	if !strings.Contains(completer.prompts[0], "No appointments found.") {
		t.Error("prompt missing the empty-appointments placeholder")
	}
}
