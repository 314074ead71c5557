package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a map-backed AppointmentStore for tests and local runs
// without Postgres. It is safe for concurrent use; the store is the only
// resource shared across calls.
type MemoryStore struct {
	mu           sync.Mutex
	users        map[string]User
	appointments map[string]Appointment
	now          func() time.Time
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		users:        make(map[string]User),
		appointments: make(map[string]Appointment),
		now:          time.Now,
	}
}

// WithClock overrides the timestamp source. Test hook.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) GetOrCreateUser(_ context.Context, phone string) User {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[phone]; ok {
		return u
	}
	u := User{PhoneNumber: phone, CreatedAt: s.now()}
	s.users[phone] = u
	return u
}

func (s *MemoryStore) CreateAppointment(_ context.Context, phone, name, date, timeOfDay string) Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()

	appt := Appointment{
		ID:          uuid.NewString(),
		PhoneNumber: phone,
		UserName:    name,
		Date:        date,
		Time:        timeOfDay,
		Status:      StatusConfirmed,
		CreatedAt:   s.now(),
	}
	s.appointments[appt.ID] = appt
	return appt
}

func (s *MemoryStore) GetAppointment(_ context.Context, id string) *Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()

	appt, ok := s.appointments[id]
	if !ok {
		return nil
	}
	return &appt
}

func (s *MemoryStore) GetAppointmentByDatetime(_ context.Context, date, timeOfDay string) *Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, appt := range s.appointments {
		if appt.Date == date && appt.Time == timeOfDay && appt.Status == StatusConfirmed {
			found := appt
			return &found
		}
	}
	return nil
}

func (s *MemoryStore) GetUserAppointments(_ context.Context, phone string) []Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()

	appts := make([]Appointment, 0, 4)
	for _, appt := range s.appointments {
		if appt.PhoneNumber == phone {
			appts = append(appts, appt)
		}
	}
	sort.Slice(appts, func(i, j int) bool {
		if appts[i].Date != appts[j].Date {
			return appts[i].Date < appts[j].Date
		}
		return appts[i].Time < appts[j].Time
	})
	return appts
}

func (s *MemoryStore) CancelAppointment(_ context.Context, id string) Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()

	appt, ok := s.appointments[id]
	if !ok {
		return Appointment{ID: id, Status: StatusCancelled, UpdatedAt: s.now()}
	}
	appt.Status = StatusCancelled
	appt.UpdatedAt = s.now()
	s.appointments[id] = appt
	return appt
}

func (s *MemoryStore) ModifyAppointment(_ context.Context, id, newDate, newTime string) Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()

	appt, ok := s.appointments[id]
	if !ok {
		return Appointment{ID: id, Date: newDate, Time: newTime, UpdatedAt: s.now()}
	}
	if newDate != "" {
		appt.Date = newDate
	}
	if newTime != "" {
		appt.Time = newTime
	}
	appt.UpdatedAt = s.now()
	s.appointments[id] = appt
	return appt
}
