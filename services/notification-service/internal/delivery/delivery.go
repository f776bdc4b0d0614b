// Package delivery sends the emails an appointment event calls for and logs every attempt.
package delivery

import (
	"context"
	"log/slog"
	"strings"

	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/libs/kafkax"
	otelx "github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/libs/otel"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/notification-service/internal/email"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/notification-service/internal/event"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/notification-service/internal/render"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/notification-service/internal/storage"
	"github.com/segmentio/kafka-go"
)

type Log interface {
	Insert(ctx context.Context, n storage.Notification) error
}

type Processor struct {
	renderer *render.Renderer
	sender   email.Sender
	log      Log
	logger   *slog.Logger
	// failSuffix simulates provider failures for recipients ending in it (local testing).
	failSuffix string
}

func NewProcessor(renderer *render.Renderer, sender email.Sender, log Log, logger *slog.Logger, failSuffix string) *Processor {
	return &Processor{renderer: renderer, sender: sender, log: log, logger: logger, failSuffix: failSuffix}
}

type recipient struct {
	address  string
	name     string
	audience render.Audience
}

// Handle is a consumer.Handler. Undecodable payloads are dropped; only log write failures
// are returned so the event can be retried.
func (p *Processor) Handle(ctx context.Context, msg kafka.Message) error {
	evt, err := event.Decode(msg.Value)
	if err != nil {
		p.logger.Error("invalid appointment event", "err", err, "topic", msg.Topic)
		return nil
	}
	meta := kafkax.ExtractEventMeta(msg)

	var recipients []recipient
	if addr := strings.TrimSpace(evt.PatientEmail); addr != "" {
		recipients = append(recipients, recipient{address: addr, name: evt.PatientName, audience: render.AudiencePatient})
	}
	for _, addr := range evt.AdminEmails {
		if addr = strings.TrimSpace(addr); addr != "" {
			recipients = append(recipients, recipient{address: addr, audience: render.AudienceAdmin})
		}
	}
	if len(recipients) == 0 {
		p.logger.Info("appointment event has no recipients", "appointment_id", evt.AppointmentID, "kind", evt.Kind)
		return nil
	}

	for _, rcpt := range recipients {
		n := p.deliver(ctx, evt, rcpt)
		n.EventID = meta.EventID
		n.Payload = msg.Value
		n.TraceID = otelx.TraceID(ctx)
		if err := p.log.Insert(ctx, n); err != nil {
			p.logger.Error("failed to persist notification", "err", err, "event_id", meta.EventID)
			return err
		}
		p.logger.Info("notification processed",
			"appointment_id", evt.AppointmentID,
			"kind", evt.Kind,
			"audience", rcpt.audience,
			"status", n.Status,
		)
	}
	return nil
}

func (p *Processor) deliver(ctx context.Context, evt event.Appointment, rcpt recipient) storage.Notification {
	n := storage.Notification{
		AppointmentID: evt.AppointmentID,
		Kind:          string(evt.Kind),
		Audience:      string(rcpt.audience),
		Recipient:     rcpt.address,
		Provider:      p.sender.ProviderID(),
		Status:        storage.StatusSent,
	}
	mail, err := p.renderer.Render(evt, rcpt.audience)
	if err != nil {
		n.Status, n.Error = storage.StatusFailed, err.Error()
		return n
	}
	n.Subject = mail.Subject

	if p.failSuffix != "" && strings.HasSuffix(rcpt.address, p.failSuffix) {
		n.Status, n.Error = storage.StatusFailed, "simulated failure"
		return n
	}
	if err := p.sender.Send(ctx, email.Message{To: rcpt.address, ToName: rcpt.name, Subject: mail.Subject, Body: mail.Body}); err != nil {
		p.logger.Error("email send failed", "err", err, "recipient", rcpt.address)
		n.Status, n.Error = storage.StatusFailed, err.Error()
	}
	return n
}
