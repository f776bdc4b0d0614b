package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/libs/db"
)

const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Notification is one delivery attempt to one recipient.
type Notification struct {
	EventID       string
	AppointmentID string
	Kind          string
	Audience      string
	Recipient     string
	Provider      string
	Subject       string
	Status        string
	Error         string
	Payload       json.RawMessage
	TraceID       string
	CreatedAt     time.Time
}

type Repository struct {
	db db.Querier
}

func NewRepository(q db.Querier) *Repository {
	return &Repository{db: q}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	payload := n.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO notifications
			(event_id, appointment_id, kind, audience, recipient, provider, subject, status, error, payload, trace_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, NULLIF($11, ''))
	`, n.EventID, n.AppointmentID, n.Kind, n.Audience, n.Recipient, n.Provider, n.Subject, n.Status, n.Error, []byte(payload), n.TraceID)
	return err
}

// ListByAppointment returns the delivery log of one appointment, oldest first.
func (r *Repository) ListByAppointment(ctx context.Context, appointmentID string) ([]Notification, error) {
	rows, err := r.db.Query(ctx, `
		SELECT event_id, appointment_id, kind, audience, recipient, provider, subject, status,
		       COALESCE(error, ''), payload, COALESCE(trace_id, ''), created_at
		FROM notifications
		WHERE appointment_id = $1
		ORDER BY created_at, id
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Notification
	for rows.Next() {
		var n Notification
		var payload []byte
		if err := rows.Scan(&n.EventID, &n.AppointmentID, &n.Kind, &n.Audience, &n.Recipient, &n.Provider,
			&n.Subject, &n.Status, &n.Error, &payload, &n.TraceID, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Payload = payload
		out = append(out, n)
	}
	return out, rows.Err()
}
