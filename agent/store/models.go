package store

import (
	"time"

	"github.com/uptrace/bun"
)

type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// User is keyed by normalized phone number. Created on first identify,
// never mutated afterwards.
type User struct {
	bun.BaseModel `bun:"table:users" json:"-"`

	PhoneNumber string    `bun:"phone_number,pk" json:"phone_number"`
	CreatedAt   time.Time `bun:"created_at,notnull" json:"created_at"`
}

// Appointment holds date as ISO 8601 (YYYY-MM-DD) and time as 24-hour
// HH:MM, both as text: slot equality is string equality.
type Appointment struct {
	bun.BaseModel `bun:"table:appointments" json:"-"`

	ID          string    `bun:"id,pk" json:"id"`
	PhoneNumber string    `bun:"phone_number,notnull" json:"phone_number"`
	UserName    string    `bun:"user_name" json:"user_name"`
	Date        string    `bun:"date,notnull" json:"date"`
	Time        string    `bun:"time,notnull" json:"time"`
	Status      Status    `bun:"status,notnull" json:"status"`
	CreatedAt   time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt   time.Time `bun:"updated_at" json:"updated_at,omitempty"`
}
