package notify

import (
	"context"

	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/model"
)

type Kind string

const (
	KindRequest      Kind = "request"
	KindConfirmation Kind = "confirmation"
	KindCancellation Kind = "cancellation"
	KindCompletion   Kind = "completion"
)

// Topics maps each notification kind to its Kafka topic.
var Topics = map[Kind]string{
	KindRequest:      "clinic.appointment.requested.v1",
	KindConfirmation: "clinic.appointment.confirmed.v1",
	KindCancellation: "clinic.appointment.cancelled.v1",
	KindCompletion:   "clinic.appointment.completed.v1",
}

// KindForStatus is the notification a move into status produces.
func KindForStatus(s model.Status) (Kind, bool) {
	switch s {
	case model.StatusPending:
		return KindRequest, true
	case model.StatusConfirmed:
		return KindConfirmation, true
	case model.StatusCancelled:
		return KindCancellation, true
	case model.StatusCompleted:
		return KindCompletion, true
	}
	return "", false
}

func Enabled(p model.NotificationPrefs, k Kind) bool {
	switch k {
	case KindRequest:
		return p.OnRequest
	case KindConfirmation:
		return p.OnConfirmation
	case KindCancellation:
		return p.OnCancellation
	case KindCompletion:
		return p.OnCompletion
	}
	return false
}

// Notifier is best-effort: implementations log and count failures instead of returning them.
type Notifier interface {
	Notify(ctx context.Context, kind Kind, appt model.Appointment)
}

type Nop struct{}

func (Nop) Notify(context.Context, Kind, model.Appointment) {}
