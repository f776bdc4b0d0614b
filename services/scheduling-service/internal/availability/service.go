package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/metrics"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/model"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/schedule"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type ConfigSource interface {
	ScheduleConfig(ctx context.Context) (schedule.Config, error)
}

type ExceptionSource interface {
	ListExceptions(ctx context.Context, start, end schedule.Date) ([]schedule.Exception, error)
}

// Ledger lists non-cancelled appointments whose date falls in [start, end].
type Ledger interface {
	ListActive(ctx context.Context, start, end schedule.Date) ([]model.Appointment, error)
}

type Catalog interface {
	GetService(ctx context.Context, id string) (model.Service, error)
}

type Options struct {
	Location *time.Location
	// MaxSpanDays caps end-start; zero means 366.
	MaxSpanDays int
	// SkipElapsedSlots hides today's slots that have already started.
	SkipElapsedSlots bool
	Now              func() time.Time
}

type Service struct {
	config     ConfigSource
	exceptions ExceptionSource
	ledger     Ledger
	catalog    Catalog
	metrics    *metrics.EngineMetrics
	opts       Options
}

func NewService(cfg ConfigSource, exc ExceptionSource, ledger Ledger, catalog Catalog, m *metrics.EngineMetrics, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.MaxSpanDays <= 0 {
		opts.MaxSpanDays = 366
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{config: cfg, exceptions: exc, ledger: ledger, catalog: catalog, metrics: m, opts: opts}
}

var tracer = otel.Tracer("scheduling-service/availability")

func (s *Service) Availability(ctx context.Context, start, end schedule.Date, serviceID string) (map[schedule.Date]DayAvailability, error) {
	ctx, span := tracer.Start(ctx, "availability.compute")
	defer span.End()
	span.SetAttributes(
		attribute.String("service.id", serviceID),
		attribute.String("range.start", start.String()),
		attribute.String("range.end", end.String()),
	)
	began := time.Now()
	defer func() { s.metrics.ObserveAvailability(time.Since(began).Seconds()) }()

	out, err := s.compute(ctx, start, end, serviceID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return out, err
}

func (s *Service) compute(ctx context.Context, start, end schedule.Date, serviceID string) (map[schedule.Date]DayAvailability, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end %s is before start %s", model.ErrInvalidRange, end, start)
	}
	if span := start.DaysUntil(end); span > s.opts.MaxSpanDays {
		return nil, fmt.Errorf("%w: %d days exceeds the %d day limit", model.ErrInvalidRange, span, s.opts.MaxSpanDays)
	}

	svc, err := s.catalog.GetService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if !svc.Active || svc.DurationMinutes <= 0 {
		return nil, fmt.Errorf("%w: service %s", model.ErrNotFound, serviceID)
	}

	cfg, err := s.config.ScheduleConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load schedule config: %w", err)
	}
	exceptions, err := s.exceptions.ListExceptions(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("load schedule exceptions: %w", err)
	}
	appts, err := s.ledger.ListActive(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}
	booked, err := BookedFrom(appts)
	if err != nil {
		return nil, err
	}

	now := s.opts.Now().In(s.opts.Location)
	in := Input{
		Config:     cfg,
		Exceptions: exceptions,
		Booked:     booked,
		Start:      start,
		End:        end,
		Duration:   time.Duration(svc.DurationMinutes) * time.Minute,
		Today:      schedule.DateOf(now),
	}
	if s.opts.SkipElapsedSlots {
		t := schedule.NewTimeOfDay(now.Hour(), now.Minute())
		in.NotBefore = &t
	}
	return Compute(in), nil
}

// BookedFrom keeps the starts of appointments that still hold their slot.
func BookedFrom(appts []model.Appointment) ([]Booked, error) {
	out := make([]Booked, 0, len(appts))
	for _, a := range appts {
		if a.Status == model.StatusCancelled {
			continue
		}
		d, err := schedule.ParseDate(a.Date)
		if err != nil {
			return nil, fmt.Errorf("appointment %s: %w", a.ID, err)
		}
		out = append(out, Booked{Date: d, Time: schedule.TimeOfDay(a.SlotMinute)})
	}
	return out, nil
}
