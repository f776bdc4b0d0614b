package storage

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertDefaultsPayload(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO notifications").
		WithArgs("e-1", "a-1", "request", "patient", "asha@example.com", "smtp", "Hi", StatusSent, "", []byte(`{}`), "4bf92f3577b34da6a3ce929d0e0e4736").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = NewRepository(mock).Insert(context.Background(), Notification{
		EventID: "e-1", AppointmentID: "a-1", Kind: "request", Audience: "patient",
		Recipient: "asha@example.com", Provider: "smtp", Subject: "Hi", Status: StatusSent,
		TraceID: "4bf92f3577b34da6a3ce929d0e0e4736",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByAppointment(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM notifications").WithArgs("a-1").WillReturnRows(
		pgxmock.NewRows([]string{"event_id", "appointment_id", "kind", "audience", "recipient", "provider", "subject", "status", "error", "payload", "trace_id", "created_at"}).
			AddRow("e-1", "a-1", "request", "patient", "asha@example.com", "smtp", "Hi", StatusFailed, "550 mailbox unavailable", []byte(`{"k":1}`), "4bf92f3577b34da6a3ce929d0e0e4736", at),
	)

	got, err := NewRepository(mock).ListByAppointment(context.Background(), "a-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, StatusFailed, got[0].Status)
	assert.Equal(t, "550 mailbox unavailable", got[0].Error)
	assert.JSONEq(t, `{"k":1}`, string(got[0].Payload))
	assert.Equal(t, json.RawMessage(`{"k":1}`), got[0].Payload)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", got[0].TraceID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
