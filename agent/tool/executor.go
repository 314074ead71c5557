package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	contractx "github.com/superbryn/voice-agent/agent/contract"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04"

	slotFirstHour = 9
	slotLastHour  = 17 // exclusive; last bookable slot is 16:00
)

var phoneNormalizer = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")

// NormalizePhone strips spaces, hyphens, and parentheses so that every
// spelling of the same number maps to one canonical key.
func NormalizePhone(phone string) string {
	return phoneNormalizer.Replace(strings.TrimSpace(phone))
}

// Executor validates and runs the appointment tools. It owns the
// double-booking and ownership invariants; the store stays logic-free.
type Executor struct {
	store contractx.AppointmentStore
	now   func() time.Time
}

func NewExecutor(store contractx.AppointmentStore) *Executor {
	return &Executor{
		store: store,
		now:   time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (e *Executor) WithClock(now func() time.Time) *Executor {
	e.now = now
	return e
}

// Execute runs one tool invocation. It never returns a Go error: every
// failure comes back inside the result so the model can speak it.
func (e *Executor) Execute(ctx context.Context, name string, args json.RawMessage, identifiedPhone string) (res contractx.ToolResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("tool", name).Msg("tool execution panicked")
			res = failure(fmt.Sprintf("internal error executing %s", name))
		}
	}()

	log.Info().Str("tool", name).RawJSON("args", normalizeRawArgs(args)).Msg("executing tool")

	switch name {
	case ToolIdentifyUser:
		return e.identifyUser(ctx, args)
	case ToolFetchSlots:
		return e.fetchSlots(args)
	case ToolBookAppointment:
		return e.bookAppointment(ctx, args, identifiedPhone)
	case ToolRetrieveAppointments:
		return e.retrieveAppointments(ctx, args)
	case ToolCancelAppointment:
		return e.cancelAppointment(ctx, args)
	case ToolModifyAppointment:
		return e.modifyAppointment(ctx, args)
	case ToolEndConversation:
		return contractx.ToolResult{Success: true, Message: "Conversation ended"}
	default:
		return failure(fmt.Sprintf("unknown tool: %s", name))
	}
}

type identifyArgs struct {
	PhoneNumber string `json:"phone_number"`
}

func (e *Executor) identifyUser(ctx context.Context, raw json.RawMessage) contractx.ToolResult {
	var args identifyArgs
	if err := decodeArgs(raw, &args); err != nil {
		return failure(err.Error())
	}

	phone := NormalizePhone(args.PhoneNumber)
	if phone == "" {
		return failure("Phone number is required")
	}

	e.store.GetOrCreateUser(ctx, phone)
	return contractx.ToolResult{
		Success:     true,
		PhoneNumber: phone,
		Message:     fmt.Sprintf("User identified: %s", phone),
	}
}

type fetchSlotsArgs struct {
	Date string `json:"date"`
}

func (e *Executor) fetchSlots(raw json.RawMessage) contractx.ToolResult {
	var args fetchSlotsArgs
	if err := decodeArgs(raw, &args); err != nil {
		return failure(err.Error())
	}

	target := e.now()
	if args.Date != "" {
		parsed, err := time.Parse(dateLayout, args.Date)
		if err != nil {
			return failure("Invalid date format. Use YYYY-MM-DD")
		}
		target = parsed
	}

	date := target.Format(dateLayout)
	slots := make([]contractx.Slot, 0, slotLastHour-slotFirstHour)
	for h := slotFirstHour; h < slotLastHour; h++ {
		slots = append(slots, contractx.Slot{
			Date:      date,
			Time:      fmt.Sprintf("%02d:00", h),
			Available: true,
		})
	}

	return contractx.ToolResult{
		Success: true,
		Date:    date,
		Slots:   slots,
		Message: fmt.Sprintf("Found %d available slots on %s", len(slots), date),
	}
}

type bookArgs struct {
	Date        string `json:"date"`
	Time        string `json:"time"`
	UserName    string `json:"user_name"`
	PhoneNumber string `json:"phone_number"`
}

func (e *Executor) bookAppointment(ctx context.Context, raw json.RawMessage, identifiedPhone string) contractx.ToolResult {
	var args bookArgs
	if err := decodeArgs(raw, &args); err != nil {
		return failure(err.Error())
	}

	phone := NormalizePhone(args.PhoneNumber)
	if identifiedPhone != "" && phone != identifiedPhone {
		return failure("Phone number mismatch. Please identify yourself first.")
	}
	if phone == "" {
		phone = identifiedPhone
	}
	if phone == "" {
		return failure("User must be identified first. Please provide your phone number.")
	}

	if _, err := time.Parse(dateTimeLayout, args.Date+" "+args.Time); err != nil {
		return failure("Invalid date or time format")
	}

	if existing := e.store.GetAppointmentByDatetime(ctx, args.Date, args.Time); existing != nil {
		return failure(fmt.Sprintf("Slot %s %s is already booked", args.Date, args.Time))
	}

	appt := e.store.CreateAppointment(ctx, phone, strings.TrimSpace(args.UserName), args.Date, args.Time)
	return contractx.ToolResult{
		Success:     true,
		Appointment: &appt,
		Message:     fmt.Sprintf("Appointment booked successfully for %s on %s at %s", args.UserName, args.Date, args.Time),
	}
}

type retrieveArgs struct {
	PhoneNumber string `json:"phone_number"`
}

func (e *Executor) retrieveAppointments(ctx context.Context, raw json.RawMessage) contractx.ToolResult {
	var args retrieveArgs
	if err := decodeArgs(raw, &args); err != nil {
		return failure(err.Error())
	}

	phone := NormalizePhone(args.PhoneNumber)
	if phone == "" {
		return failure("Phone number is required")
	}

	appts := e.store.GetUserAppointments(ctx, phone)
	return contractx.ToolResult{
		Success:      true,
		Appointments: appts,
		Count:        len(appts),
		Message:      fmt.Sprintf("Found %d appointment(s)", len(appts)),
	}
}

type cancelArgs struct {
	AppointmentID string `json:"appointment_id"`
	PhoneNumber   string `json:"phone_number"`
}

func (e *Executor) cancelAppointment(ctx context.Context, raw json.RawMessage) contractx.ToolResult {
	var args cancelArgs
	if err := decodeArgs(raw, &args); err != nil {
		return failure(err.Error())
	}
	if args.AppointmentID == "" {
		return failure("Appointment ID is required")
	}

	appt := e.store.GetAppointment(ctx, args.AppointmentID)
	if appt == nil {
		return failure("Appointment not found")
	}
	if appt.PhoneNumber != NormalizePhone(args.PhoneNumber) {
		return failure("You don't have permission to cancel this appointment")
	}

	e.store.CancelAppointment(ctx, args.AppointmentID)
	return contractx.ToolResult{
		Success: true,
		Message: fmt.Sprintf("Appointment %s cancelled successfully", args.AppointmentID),
	}
}

type modifyArgs struct {
	AppointmentID string `json:"appointment_id"`
	NewDate       string `json:"new_date"`
	NewTime       string `json:"new_time"`
	PhoneNumber   string `json:"phone_number"`
}

func (e *Executor) modifyAppointment(ctx context.Context, raw json.RawMessage) contractx.ToolResult {
	var args modifyArgs
	if err := decodeArgs(raw, &args); err != nil {
		return failure(err.Error())
	}
	if args.AppointmentID == "" {
		return failure("Appointment ID is required")
	}
	if args.NewDate == "" && args.NewTime == "" {
		return failure("At least one of new_date or new_time must be provided")
	}

	appt := e.store.GetAppointment(ctx, args.AppointmentID)
	if appt == nil {
		return failure("Appointment not found")
	}
	if appt.PhoneNumber != NormalizePhone(args.PhoneNumber) {
		return failure("You don't have permission to modify this appointment")
	}

	if args.NewDate != "" && args.NewTime != "" {
		if existing := e.store.GetAppointmentByDatetime(ctx, args.NewDate, args.NewTime); existing != nil && existing.ID != args.AppointmentID {
			return failure(fmt.Sprintf("Slot %s %s is already booked", args.NewDate, args.NewTime))
		}
	}

	modified := e.store.ModifyAppointment(ctx, args.AppointmentID, args.NewDate, args.NewTime)
	return contractx.ToolResult{
		Success:     true,
		Appointment: &modified,
		Message:     fmt.Sprintf("Appointment %s modified successfully", args.AppointmentID),
	}
}

func decodeArgs(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("invalid tool arguments: %v", err)
	}
	return nil
}

func normalizeRawArgs(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || !json.Valid(raw) {
		return json.RawMessage(`{}`)
	}
	return raw
}

func failure(msg string) contractx.ToolResult {
	return contractx.ToolResult{Success: false, Error: msg}
}
