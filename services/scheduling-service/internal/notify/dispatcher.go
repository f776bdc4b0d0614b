package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/libs/kafkax"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/actiontoken"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/metrics"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/model"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/schedule"
	"github.com/segmentio/kafka-go"
)

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type PrefsSource interface {
	NotificationPrefs(ctx context.Context) (model.NotificationPrefs, error)
}

type PatientDirectory interface {
	GetPatient(ctx context.Context, id string) (model.Patient, error)
}

type ServiceCatalog interface {
	GetService(ctx context.Context, id string) (model.Service, error)
}

type TokenIssuer interface {
	Issue(appointmentID string, action actiontoken.Action, ttl time.Duration) (string, time.Time, error)
}

// Event is the payload published for every notification kind.
type Event struct {
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

type DispatcherConfig struct {
	// PublicBaseURL prefixes the links embedded in mails, e.g. https://tyra.clinic.
	PublicBaseURL string
	TokenTTL      time.Duration
	WriteTimeout  time.Duration
}

type Dispatcher struct {
	writer   MessageWriter
	prefs    PrefsSource
	patients PatientDirectory
	catalog  ServiceCatalog
	tokens   TokenIssuer
	metrics  *metrics.EngineMetrics
	logger   *slog.Logger
	cfg      DispatcherConfig
}

func NewDispatcher(writer MessageWriter, prefs PrefsSource, patients PatientDirectory, catalog ServiceCatalog, tokens TokenIssuer, m *metrics.EngineMetrics, logger *slog.Logger, cfg DispatcherConfig) *Dispatcher {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	return &Dispatcher{
		writer:   writer,
		prefs:    prefs,
		patients: patients,
		catalog:  catalog,
		tokens:   tokens,
		metrics:  m,
		logger:   logger,
		cfg:      cfg,
	}
}

func (d *Dispatcher) Notify(ctx context.Context, kind Kind, appt model.Appointment) {
	if err := d.dispatch(ctx, kind, appt); err != nil {
		d.metrics.ObserveNotification(string(kind), "failed")
		d.logger.Warn("notification dispatch failed",
			"kind", kind,
			"appointment_id", appt.ID,
			"err", err,
		)
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, kind Kind, appt model.Appointment) error {
	topic, ok := Topics[kind]
	if !ok {
		return fmt.Errorf("unknown notification kind %q", kind)
	}
	prefs, err := d.prefs.NotificationPrefs(ctx)
	if err != nil {
		return fmt.Errorf("load notification prefs: %w", err)
	}
	if !Enabled(prefs, kind) {
		d.metrics.ObserveNotification(string(kind), "disabled")
		return nil
	}

	evt, err := d.buildEvent(ctx, kind, appt, prefs)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	msg, meta := kafkax.NewMessage(ctx, topic, appt.ID, topic, payload)

	wctx, cancel := context.WithTimeout(ctx, d.cfg.WriteTimeout)
	defer cancel()
	if err := d.writer.WriteMessages(wctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	d.metrics.ObserveNotification(string(kind), "published")
	d.logger.Info("notification published", "kind", kind, "appointment_id", appt.ID, "event_id", meta.EventID)
	return nil
}

func (d *Dispatcher) buildEvent(ctx context.Context, kind Kind, appt model.Appointment, prefs model.NotificationPrefs) (Event, error) {
	evt := Event{
		Kind:          kind,
		AppointmentID: appt.ID,
		Status:        string(appt.Status),
		Date:          appt.Date,
		Time:          schedule.TimeOfDay(appt.SlotMinute).String(),
		Shift:         string(appt.Shift),
		TokenNumber:   appt.TokenNumber,
		ServiceID:     appt.ServiceID,
		PatientID:     appt.PatientID,
		AdminEmails:   prefs.AdminEmails,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339),
	}
	if p, err := d.patients.GetPatient(ctx, appt.PatientID); err == nil {
		evt.PatientName, evt.PatientEmail = p.Name, p.Email
	} else {
		d.logger.Debug("patient lookup failed", "patient_id", appt.PatientID, "err", err)
	}
	if svc, err := d.catalog.GetService(ctx, appt.ServiceID); err == nil {
		evt.ServiceName = svc.Name
	}

	if d.tokens == nil || d.cfg.PublicBaseURL == "" {
		return evt, nil
	}
	if !appt.Status.Terminal() {
		link, err := d.actionLink(appt.ID, actiontoken.ActionCancel)
		if err != nil {
			return Event{}, err
		}
		evt.CancelURL = link
	}
	if appt.Status == model.StatusPending {
		link, err := d.actionLink(appt.ID, actiontoken.ActionConfirm)
		if err != nil {
			return Event{}, err
		}
		evt.ConfirmURL = link
	}
	return evt, nil
}

func (d *Dispatcher) actionLink(appointmentID string, action actiontoken.Action) (string, error) {
	tok, _, err := d.tokens.Issue(appointmentID, action, d.cfg.TokenTTL)
	if err != nil {
		return "", fmt.Errorf("issue %s token: %w", action, err)
	}
	return fmt.Sprintf("%s/appointments/%s?token=%s", d.cfg.PublicBaseURL, action, tok), nil
}
