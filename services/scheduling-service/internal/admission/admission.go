package admission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	otelx "github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/libs/otel"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/metrics"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/model"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/notify"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/schedule"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type Catalog interface {
	GetService(ctx context.Context, id string) (model.Service, error)
}

type ConfigSource interface {
	ScheduleConfig(ctx context.Context) (schedule.Config, error)
}

type ExceptionGetter interface {
	GetException(ctx context.Context, d schedule.Date) (schedule.Exception, error)
}

// Ledger.Insert must assign the token number and fail with model.ErrSlotTaken when
// another live appointment holds the slot.
type Ledger interface {
	ExistsActiveAt(ctx context.Context, date string, slotMinute int) (bool, error)
	Insert(ctx context.Context, appt *model.Appointment) error
}

type Request struct {
	ServiceID string
	PatientID string
	Date      schedule.Date
	Time      schedule.TimeOfDay
	Notes     string
	Source    model.Source
	// Status is honoured for admin bookings only; empty means pending.
	Status model.Status
}

type Admitter struct {
	catalog    Catalog
	config     ConfigSource
	exceptions ExceptionGetter
	ledger     Ledger
	notifier   notify.Notifier
	metrics    *metrics.EngineMetrics
	logger     *slog.Logger
	loc        *time.Location
	now        func() time.Time

	// skipElapsed rejects public bookings for today's slots that have already started.
	skipElapsed bool
}

func NewAdmitter(catalog Catalog, cfg ConfigSource, exc ExceptionGetter, ledger Ledger, notifier notify.Notifier, m *metrics.EngineMetrics, logger *slog.Logger, loc *time.Location) *Admitter {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Admitter{
		catalog:    catalog,
		config:     cfg,
		exceptions: exc,
		ledger:     ledger,
		notifier:   notifier,
		metrics:    m,
		logger:     logger,
		loc:        loc,
		now:        time.Now,
	}
}

// WithSkipElapsed matches admission to availability listings that hide started slots.
func (a *Admitter) WithSkipElapsed(on bool) *Admitter {
	a.skipElapsed = on
	return a
}

// WithClock replaces the wall clock, for tests and simulations.
func (a *Admitter) WithClock(now func() time.Time) *Admitter {
	a.now = now
	return a
}

var tracer = otel.Tracer("scheduling-service/admission")

func (a *Admitter) Admit(ctx context.Context, req Request) (model.Appointment, error) {
	ctx, span := tracer.Start(ctx, "admission.admit")
	defer span.End()
	span.SetAttributes(
		attribute.String("service.id", req.ServiceID),
		attribute.String("appointment.date", req.Date.String()),
		attribute.String("appointment.time", req.Time.String()),
		attribute.String("appointment.source", string(req.Source)),
	)

	appt, err := a.admit(ctx, req)
	a.metrics.ObserveAdmission(string(req.Source), outcome(err))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return model.Appointment{}, err
	}
	span.SetAttributes(attribute.Int("appointment.token", appt.TokenNumber))

	if kind, ok := notify.KindForStatus(appt.Status); ok {
		a.notifier.Notify(ctx, kind, appt)
	}
	return appt, nil
}

func (a *Admitter) admit(ctx context.Context, req Request) (model.Appointment, error) {
	if strings.TrimSpace(req.PatientID) == "" || strings.TrimSpace(req.ServiceID) == "" {
		return model.Appointment{}, fmt.Errorf("%w: patient and service are required", model.ErrInvalidInput)
	}
	if !req.Time.Valid() {
		return model.Appointment{}, fmt.Errorf("%w: time %d out of range", model.ErrInvalidInput, req.Time)
	}
	status, err := initialStatus(req)
	if err != nil {
		return model.Appointment{}, err
	}

	svc, err := a.catalog.GetService(ctx, req.ServiceID)
	if err != nil {
		return model.Appointment{}, err
	}
	if !svc.Active || svc.DurationMinutes <= 0 {
		return model.Appointment{}, fmt.Errorf("%w: service %s", model.ErrNotFound, req.ServiceID)
	}

	now := a.now().In(a.loc)
	today := schedule.DateOf(now)
	if req.Date.Before(today) {
		return model.Appointment{}, fmt.Errorf("%w: %s is in the past", model.ErrOutsideSchedule, req.Date)
	}
	if a.skipElapsed && req.Source == model.SourcePublic && req.Date == today &&
		req.Time < schedule.NewTimeOfDay(now.Hour(), now.Minute()) {
		return model.Appointment{}, fmt.Errorf("%w: %s %s has already started", model.ErrOutsideSchedule, req.Date, req.Time)
	}

	cfg, err := a.config.ScheduleConfig(ctx)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("load schedule config: %w", err)
	}
	var exc *schedule.Exception
	if e, err := a.exceptions.GetException(ctx, req.Date); err == nil {
		exc = &e
	} else if !errors.Is(err, model.ErrNotFound) {
		return model.Appointment{}, fmt.Errorf("load schedule exception: %w", err)
	}

	duration := time.Duration(svc.DurationMinutes) * time.Minute
	shift, ok := schedule.Effective(cfg, req.Date, exc).Locate(req.Time, duration)
	if !ok {
		return model.Appointment{}, fmt.Errorf("%w: %s %s for %s does not fit an open shift",
			model.ErrOutsideSchedule, req.Date, req.Time, duration)
	}

	taken, err := a.ledger.ExistsActiveAt(ctx, req.Date.String(), int(req.Time))
	if err != nil {
		return model.Appointment{}, fmt.Errorf("check slot: %w", err)
	}
	if taken {
		return model.Appointment{}, fmt.Errorf("%w: %s %s", model.ErrSlotTaken, req.Date, req.Time)
	}

	appt := model.Appointment{
		PatientID:  req.PatientID,
		ServiceID:  req.ServiceID,
		StartAt:    req.Date.At(req.Time, a.loc),
		Date:       req.Date.String(),
		SlotMinute: int(req.Time),
		Shift:      shift,
		Status:     status,
		Notes:      strings.TrimSpace(req.Notes),
		Source:     req.Source,
	}
	if err := a.ledger.Insert(ctx, &appt); err != nil {
		return model.Appointment{}, err
	}
	a.logger.Info("appointment admitted",
		"appointment_id", appt.ID,
		"date", appt.Date,
		"shift", appt.Shift,
		"token", appt.TokenNumber,
		"source", appt.Source,
		"trace_id", otelx.TraceID(ctx),
	)
	return appt, nil
}

func initialStatus(req Request) (model.Status, error) {
	switch req.Source {
	case model.SourcePublic:
		return model.StatusPending, nil
	case model.SourceAdmin:
		switch req.Status {
		case "", model.StatusPending:
			return model.StatusPending, nil
		case model.StatusConfirmed:
			return model.StatusConfirmed, nil
		}
		return "", fmt.Errorf("%w: new appointments must be pending or confirmed", model.ErrInvalidInput)
	}
	return "", fmt.Errorf("%w: unknown source %q", model.ErrInvalidInput, req.Source)
}

func outcome(err error) string {
	if err == nil {
		return "admitted"
	}
	return model.ErrorCode(err)
}
