package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/libs/kafkax"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/notification-service/internal/email"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/notification-service/internal/event"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/notification-service/internal/render"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/notification-service/internal/storage"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type recordingSender struct {
	sent []email.Message
	fail map[string]error
}

func (s *recordingSender) ProviderID() string { return "test" }

func (s *recordingSender) Send(_ context.Context, m email.Message) error {
	if err := s.fail[m.To]; err != nil {
		return err
	}
	s.sent = append(s.sent, m)
	return nil
}

type memLog struct {
	rows []storage.Notification
	err  error
}

func (l *memLog) Insert(_ context.Context, n storage.Notification) error {
	if l.err != nil {
		return l.err
	}
	l.rows = append(l.rows, n)
	return nil
}

func newProcessor(t *testing.T, s email.Sender, l Log, failSuffix string) *Processor {
	t.Helper()
	r, err := render.New("Tyra Dental")
	require.NoError(t, err)
	return NewProcessor(r, s, l, slog.New(slog.NewTextHandler(io.Discard, nil)), failSuffix)
}

func msgFor(t *testing.T, evt event.Appointment) kafka.Message {
	t.Helper()
	raw, err := json.Marshal(evt)
	require.NoError(t, err)
	topic := event.Topics[evt.Kind]
	msg, _ := kafkax.NewMessage(context.Background(), topic, evt.AppointmentID, topic, raw)
	return msg
}

func TestHandleMailsPatientAndAdmins(t *testing.T) {
	sender := &recordingSender{}
	log := &memLog{}
	p := newProcessor(t, sender, log, "")

	err := p.Handle(context.Background(), msgFor(t, event.Appointment{
		Kind: event.KindRequest, AppointmentID: "a-1", Date: "2026-03-10", Time: "09:00",
		PatientName: "Asha", PatientEmail: "asha@example.com", AdminEmails: []string{"desk@clinic.example", " "},
	}))
	require.NoError(t, err)

	require.Len(t, sender.sent, 2)
	assert.Equal(t, "asha@example.com", sender.sent[0].To)
	assert.Equal(t, "Asha", sender.sent[0].ToName)
	assert.Equal(t, "desk@clinic.example", sender.sent[1].To)

	require.Len(t, log.rows, 2)
	assert.Equal(t, "patient", log.rows[0].Audience)
	assert.Equal(t, "admin", log.rows[1].Audience)
	assert.NotEmpty(t, log.rows[0].EventID)
	assert.Equal(t, storage.StatusSent, log.rows[1].Status)
}

func TestSendFailureIsLoggedNotReturned(t *testing.T) {
	sender := &recordingSender{fail: map[string]error{"asha@example.com": errors.New("550 mailbox unavailable")}}
	log := &memLog{}
	p := newProcessor(t, sender, log, "")

	err := p.Handle(context.Background(), msgFor(t, event.Appointment{
		Kind: event.KindCancellation, AppointmentID: "a-1", PatientEmail: "asha@example.com",
	}))
	require.NoError(t, err)
	require.Len(t, log.rows, 1)
	assert.Equal(t, storage.StatusFailed, log.rows[0].Status)
	assert.Contains(t, log.rows[0].Error, "550")
}

func TestSimulatedFailureSuffix(t *testing.T) {
	sender := &recordingSender{}
	log := &memLog{}
	p := newProcessor(t, sender, log, "@fail.test")

	require.NoError(t, p.Handle(context.Background(), msgFor(t, event.Appointment{
		Kind: event.KindConfirmation, AppointmentID: "a-1", PatientEmail: "x@fail.test",
	})))
	assert.Empty(t, sender.sent)
	assert.Equal(t, "simulated failure", log.rows[0].Error)
}

func TestLogFailureReturned(t *testing.T) {
	p := newProcessor(t, &recordingSender{}, &memLog{err: errors.New("db down")}, "")
	err := p.Handle(context.Background(), msgFor(t, event.Appointment{
		Kind: event.KindCompletion, AppointmentID: "a-1", PatientEmail: "asha@example.com",
	}))
	assert.Error(t, err)
}

func TestBadPayloadDropped(t *testing.T) {
	log := &memLog{}
	p := newProcessor(t, &recordingSender{}, log, "")
	assert.NoError(t, p.Handle(context.Background(), kafka.Message{Topic: "clinic.appointment.requested.v1", Value: []byte("{")}))
	assert.Empty(t, log.rows)
}

func TestLogRowsCarryTraceID(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	ctx, span := tp.Tracer("test").Start(context.Background(), "kafka.consume")
	defer span.End()

	log := &memLog{}
	p := newProcessor(t, &recordingSender{}, log, "")
	require.NoError(t, p.Handle(ctx, msgFor(t, event.Appointment{
		Kind: event.KindConfirmation, AppointmentID: "a-1", PatientEmail: "asha@example.com",
	})))
	require.Len(t, log.rows, 1)
	assert.Equal(t, span.SpanContext().TraceID().String(), log.rows[0].TraceID)
}
