package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	otelx "github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/libs/otel"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/metrics"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/model"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/notify"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type Actor string

const (
	ActorAdmin Actor = "admin"
	// ActorToken is a holder of an emailed action link.
	ActorToken Actor = "token"
)

// Ledger.CompareAndSetStatus applies only when the stored status still equals from;
// otherwise it returns the current row and false.
type Ledger interface {
	Get(ctx context.Context, id string) (model.Appointment, error)
	CompareAndSetStatus(ctx context.Context, id string, from, to model.Status, at time.Time) (model.Appointment, bool, error)
}

type Machine struct {
	ledger   Ledger
	notifier notify.Notifier
	metrics  *metrics.EngineMetrics
	logger   *slog.Logger
	now      func() time.Time
}

func NewMachine(ledger Ledger, notifier notify.Notifier, m *metrics.EngineMetrics, logger *slog.Logger) *Machine {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Machine{ledger: ledger, notifier: notifier, metrics: m, logger: logger, now: time.Now}
}

const maxAttempts = 3

var tracer = otel.Tracer("scheduling-service/lifecycle")

// Transition moves appointment id to status to on behalf of actor.
//
// Admins re-applying the current status get the appointment back unchanged.
// Token holders doing the same get model.ErrAlreadyProcessed alongside it.
func (m *Machine) Transition(ctx context.Context, id string, to model.Status, actor Actor) (model.Appointment, error) {
	ctx, span := tracer.Start(ctx, "lifecycle.transition")
	defer span.End()
	span.SetAttributes(
		attribute.String("appointment.id", id),
		attribute.String("appointment.to", string(to)),
		attribute.String("actor", string(actor)),
	)

	appt, changed, err := m.transition(ctx, id, to, actor)
	switch {
	case err != nil:
		m.metrics.ObserveTransition(string(actor), string(to), model.ErrorCode(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return appt, err
	case !changed:
		m.metrics.ObserveTransition(string(actor), string(to), "noop")
		return appt, nil
	}

	m.metrics.ObserveTransition(string(actor), string(to), "ok")
	m.logger.Info("appointment status changed",
		"appointment_id", appt.ID,
		"status", appt.Status,
		"actor", actor,
		"trace_id", otelx.TraceID(ctx),
	)
	if kind, ok := notify.KindForStatus(appt.Status); ok {
		m.notifier.Notify(ctx, kind, appt)
	}
	return appt, nil
}

func (m *Machine) transition(ctx context.Context, id string, to model.Status, actor Actor) (model.Appointment, bool, error) {
	if _, ok := model.ParseStatus(string(to)); !ok {
		return model.Appointment{}, false, fmt.Errorf("%w: unknown status %q", model.ErrInvalidInput, to)
	}
	if actor == ActorToken && to != model.StatusConfirmed && to != model.StatusCancelled {
		return model.Appointment{}, false, fmt.Errorf("%w: links may only confirm or cancel", model.ErrInvalidTransition)
	}

	appt, err := m.ledger.Get(ctx, id)
	if err != nil {
		return model.Appointment{}, false, err
	}
	for attempt := 1; ; attempt++ {
		if appt.Status == to {
			if actor == ActorToken {
				return appt, false, fmt.Errorf("%w: appointment already %s", model.ErrAlreadyProcessed, to)
			}
			return appt, false, nil
		}
		if !model.CanTransition(appt.Status, to) {
			return appt, false, fmt.Errorf("%w: %s -> %s", model.ErrInvalidTransition, appt.Status, to)
		}

		updated, applied, err := m.ledger.CompareAndSetStatus(ctx, id, appt.Status, to, m.now())
		if err != nil {
			return appt, false, err
		}
		if applied {
			return updated, true, nil
		}
		if attempt == maxAttempts {
			return updated, false, fmt.Errorf("%w: appointment changed concurrently", model.ErrInvalidTransition)
		}
		appt = updated
	}
}
