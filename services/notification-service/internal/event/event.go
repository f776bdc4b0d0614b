// Package event mirrors the appointment notification payload published by scheduling-service.
package event

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Kind string

const (
	KindRequest      Kind = "request"
	KindConfirmation Kind = "confirmation"
	KindCancellation Kind = "cancellation"
	KindCompletion   Kind = "completion"
)

// Topics lists every topic the service consumes, keyed by kind.
var Topics = map[Kind]string{
	KindRequest:      "clinic.appointment.requested.v1",
	KindConfirmation: "clinic.appointment.confirmed.v1",
	KindCancellation: "clinic.appointment.cancelled.v1",
	KindCompletion:   "clinic.appointment.completed.v1",
}

func TopicNames() []string {
	return []string{
		Topics[KindRequest],
		Topics[KindConfirmation],
		Topics[KindCancellation],
		Topics[KindCompletion],
	}
}

type Appointment struct {
	Kind          Kind     `json:"kind"`
	AppointmentID string   `json:"appointment_id"`
	Status        string   `json:"status"`
	Date          string   `json:"date"`
	Time          string   `json:"time"`
	Shift         string   `json:"shift"`
	TokenNumber   int      `json:"token_number"`
	ServiceID     string   `json:"service_id"`
	ServiceName   string   `json:"service_name,omitempty"`
	PatientID     string   `json:"patient_id"`
	PatientName   string   `json:"patient_name,omitempty"`
	PatientEmail  string   `json:"patient_email,omitempty"`
	AdminEmails   []string `json:"admin_emails,omitempty"`
	CancelURL     string   `json:"cancel_url,omitempty"`
	ConfirmURL    string   `json:"confirm_url,omitempty"`
	OccurredAt    string   `json:"occurred_at"`
}

// Decode parses and sanity-checks a payload. Errors mean the message can never be handled.
func Decode(raw []byte) (Appointment, error) {
	var a Appointment
	if err := json.Unmarshal(raw, &a); err != nil {
		return Appointment{}, fmt.Errorf("decode appointment event: %w", err)
	}
	if strings.TrimSpace(a.AppointmentID) == "" {
		return Appointment{}, fmt.Errorf("appointment event missing appointment_id")
	}
	if _, ok := Topics[a.Kind]; !ok {
		return Appointment{}, fmt.Errorf("appointment event has unknown kind %q", a.Kind)
	}
	return a, nil
}
