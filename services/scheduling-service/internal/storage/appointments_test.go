package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const apptID = "5f0c2a7e-0a52-4d1e-9c2c-3c8e5b1f0a11"

var apptCols = []string{
	"id", "patient_id", "service_id", "start_at", "appt_date", "slot_minute", "shift", "status",
	"token_number", "notes", "source", "created_at", "updated_at",
	"confirmed_at", "completed_at", "cancelled_at",
}

func apptRow(status string) *pgxmock.Rows {
	now := time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC)
	var nilTime *time.Time
	return pgxmock.NewRows(apptCols).AddRow(
		apptID, "p-1", "svc-1", time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), "2026-03-02", 540, "morning", status,
		3, "", "public", now, now, nilTime, nilTime, nilTime,
	)
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestInsertAssignsTokenInTx(t *testing.T) {
	mock := newMock(t)
	repo := NewAppointmentRepository(mock)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO shift_token_counters").
		WithArgs("2026-03-02", "morning").
		WillReturnRows(pgxmock.NewRows([]string{"last_token"}).AddRow(7))
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), "p-1", "svc-1", pgxmock.AnyArg(), "2026-03-02", 540, "morning", "pending",
			7, "", "public", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectCommit()

	appt := &model.Appointment{
		PatientID: "p-1", ServiceID: "svc-1", Date: "2026-03-02", SlotMinute: 540,
		Shift: model.ShiftMorning, Status: model.StatusPending, Source: model.SourcePublic,
	}
	require.NoError(t, repo.Insert(context.Background(), appt))
	assert.Equal(t, 7, appt.TokenNumber)
	assert.NotEmpty(t, appt.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertMapsSlotConflict(t *testing.T) {
	mock := newMock(t)
	repo := NewAppointmentRepository(mock)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO shift_token_counters").
		WillReturnRows(pgxmock.NewRows([]string{"last_token"}).AddRow(2))
	mock.ExpectQuery("INSERT INTO appointments").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: ActiveSlotConstraint})
	mock.ExpectRollback()

	err := repo.Insert(context.Background(), &model.Appointment{
		Date: "2026-03-02", SlotMinute: 540, Shift: model.ShiftMorning, Status: model.StatusPending,
	})
	assert.True(t, errors.Is(err, model.ErrSlotTaken), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetNotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewAppointmentRepository(mock)

	mock.ExpectQuery("FROM appointments WHERE id").WithArgs(apptID).WillReturnError(pgx.ErrNoRows)
	_, err := repo.Get(context.Background(), apptID)
	assert.True(t, errors.Is(err, model.ErrNotFound))

	_, err = repo.Get(context.Background(), "not-a-uuid")
	assert.True(t, errors.Is(err, model.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompareAndSetStatus(t *testing.T) {
	mock := newMock(t)
	repo := NewAppointmentRepository(mock)
	at := time.Now()

	mock.ExpectQuery("UPDATE appointments").
		WithArgs(apptID, "pending", "confirmed", pgxmock.AnyArg()).
		WillReturnRows(apptRow("confirmed"))
	got, ok, err := repo.CompareAndSetStatus(context.Background(), apptID, model.StatusPending, model.StatusConfirmed, at)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, model.StatusConfirmed, got.Status)
	assert.Equal(t, model.ShiftMorning, got.Shift)

	mock.ExpectQuery("UPDATE appointments").WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("FROM appointments WHERE id").WithArgs(apptID).WillReturnRows(apptRow("cancelled"))
	got, ok, err = repo.CompareAndSetStatus(context.Background(), apptID, model.StatusPending, model.StatusConfirmed, at)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, model.StatusCancelled, got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByDate(t *testing.T) {
	mock := newMock(t)
	repo := NewAppointmentRepository(mock)

	mock.ExpectQuery("WHERE appt_date = ").WithArgs("2026-03-02", "").WillReturnRows(apptRow("pending"))
	appts, err := repo.ListByDate(context.Background(), "2026-03-02", "")
	require.NoError(t, err)
	require.Len(t, appts, 1)
	assert.Equal(t, 3, appts[0].TokenNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExistsActiveAt(t *testing.T) {
	mock := newMock(t)
	repo := NewAppointmentRepository(mock)
	mock.ExpectQuery("SELECT EXISTS").WithArgs("2026-03-02", 540).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	ok, err := repo.ExistsActiveAt(context.Background(), "2026-03-02", 540)
	require.NoError(t, err)
	assert.True(t, ok)
}
