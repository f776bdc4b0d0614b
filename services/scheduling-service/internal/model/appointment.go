package model

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return st, true
	}
	return "", false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Shift string

const (
	ShiftMorning Shift = "morning"
	ShiftEvening Shift = "evening"
)

func ParseShift(s string) (Shift, bool) {
	switch sh := Shift(s); sh {
	case ShiftMorning, ShiftEvening:
		return sh, true
	}
	return "", false
}

type Source string

const (
	SourcePublic Source = "public"
	SourceAdmin  Source = "admin"
)

// Appointment is one row of the clinic ledger. Date and SlotMinute are clinic-local.
type Appointment struct {
	ID          string
	PatientID   string
	ServiceID   string
	StartAt     time.Time
	Date        string // YYYY-MM-DD
	SlotMinute  int
	Shift       Shift
	Status      Status
	TokenNumber int
	Notes       string
	Source      Source
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ConfirmedAt *time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time
}

type Service struct {
	ID              string
	Name            string
	DurationMinutes int
	Active          bool
}

type Patient struct {
	ID    string
	Name  string
	Email string
	Phone string
}

// NotificationPrefs gates which lifecycle events send mail.
type NotificationPrefs struct {
	OnRequest      bool     `json:"on_request"`
	OnConfirmation bool     `json:"on_confirmation"`
	OnCancellation bool     `json:"on_cancellation"`
	OnCompletion   bool     `json:"on_completion"`
	AdminEmails    []string `json:"admin_emails"`
}

func DefaultNotificationPrefs() NotificationPrefs {
	return NotificationPrefs{OnRequest: true, OnConfirmation: true, OnCancellation: true}
}
