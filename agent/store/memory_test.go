package store

import (
	"context"
	"testing"
	"time"
)

func testClock() time.Time {
	return time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
}

func TestGetOrCreateUserIdempotent(t *testing.T) {
	t.Parallel()
	s := NewMemory().WithClock(testClock)
	ctx := context.Background()

	first := s.GetOrCreateUser(ctx, "5551234567")
	second := s.GetOrCreateUser(ctx, "5551234567")
	if first.PhoneNumber != second.PhoneNumber || !first.CreatedAt.Equal(second.CreatedAt) {
		t.Fatalf("repeated lookup returned a different user: %+v vs %+v", first, second)
	}
}

func TestAppointmentsSortedByDateThenTime(t *testing.T) {
	t.Parallel()
	s := NewMemory().WithClock(testClock)
	ctx := context.Background()

	s.CreateAppointment(ctx, "5551234567", "Jo", "2025-06-03", "09:00")
	s.CreateAppointment(ctx, "5551234567", "Jo", "2025-06-01", "15:00")
	s.CreateAppointment(ctx, "5551234567", "Jo", "2025-06-01", "09:00")
	s.CreateAppointment(ctx, "5559999999", "Sam", "2025-06-01", "10:00")

	appts := s.GetUserAppointments(ctx, "5551234567")
	if len(appts) != 3 {
		t.Fatalf("got %d appointments, want 3", len(appts))
	}
	for i := 1; i < len(appts); i++ {
		prev, cur := appts[i-1], appts[i]
		if prev.Date > cur.Date || (prev.Date == cur.Date && prev.Time > cur.Time) {
			t.Errorf("out of order: %s %s before %s %s", prev.Date, prev.Time, cur.Date, cur.Time)
		}
	}
}

func TestCancelledSlotIsReusable(t *testing.T) {
	t.Parallel()
	s := NewMemory().WithClock(testClock)
	ctx := context.Background()

	appt := s.CreateAppointment(ctx, "5551234567", "Jo", "2025-06-01", "14:00")
	if got := s.GetAppointmentByDatetime(ctx, "2025-06-01", "14:00"); got == nil {
		t.Fatal("confirmed appointment not found by datetime")
	}

	cancelled := s.CancelAppointment(ctx, appt.ID)
	if cancelled.Status != StatusCancelled {
		t.Fatalf("status after cancel = %q, want %q", cancelled.Status, StatusCancelled)
	}
	if got := s.GetAppointmentByDatetime(ctx, "2025-06-01", "14:00"); got != nil {
		t.Fatalf("cancelled appointment still occupies the slot: %+v", got)
	}
}

func TestModifyPatchesOnlyGivenFields(t *testing.T) {
	t.Parallel()
	s := NewMemory().WithClock(testClock)
	ctx := context.Background()

	appt := s.CreateAppointment(ctx, "5551234567", "Jo", "2025-06-01", "14:00")

	modified := s.ModifyAppointment(ctx, appt.ID, "", "16:00")
	if modified.Date != "2025-06-01" || modified.Time != "16:00" {
		t.Errorf("after time-only modify: %s %s, want 2025-06-01 16:00", modified.Date, modified.Time)
	}

	modified = s.ModifyAppointment(ctx, appt.ID, "2025-06-02", "")
	if modified.Date != "2025-06-02" || modified.Time != "16:00" {
		t.Errorf("after date-only modify: %s %s, want 2025-06-02 16:00", modified.Date, modified.Time)
	}
}

func TestGetAppointmentReturnsCopy(t *testing.T) {
	t.Parallel()
	s := NewMemory().WithClock(testClock)
	ctx := context.Background()

	appt := s.CreateAppointment(ctx, "5551234567", "Jo", "2025-06-01", "14:00")
	got := s.GetAppointment(ctx, appt.ID)
	if got == nil {
		t.Fatal("appointment not found")
	}
	got.Status = StatusCancelled

	fresh := s.GetAppointment(ctx, appt.ID)
	if fresh.Status != StatusConfirmed {
		t.Fatal("mutating a returned appointment leaked into the store")
	}
}
