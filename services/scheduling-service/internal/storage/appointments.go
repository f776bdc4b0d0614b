package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/libs/db"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/model"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/schedule"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ActiveSlotConstraint is the partial unique index over live bookings.
const ActiveSlotConstraint = "appointments_active_slot_key"

type AppointmentRepository struct {
	db db.Beginner
}

func NewAppointmentRepository(b db.Beginner) *AppointmentRepository {
	return &AppointmentRepository{db: b}
}

const appointmentColumns = `
	id::text, patient_id::text, service_id::text, start_at, appt_date::text, slot_minute, shift, status,
	token_number, COALESCE(notes, ''), source, created_at, updated_at,
	confirmed_at, completed_at, cancelled_at`

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var a model.Appointment
	var shift, status, source string
	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.ServiceID,
		&a.StartAt,
		&a.Date,
		&a.SlotMinute,
		&shift,
		&status,
		&a.TokenNumber,
		&a.Notes,
		&source,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.ConfirmedAt,
		&a.CompletedAt,
		&a.CancelledAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	a.Shift, a.Status, a.Source = model.Shift(shift), model.Status(status), model.Source(source)
	return a, nil
}

// Insert takes the next token for the appointment's (date, shift) and writes the row in one
// transaction. A rejected insert rolls the counter back with it.
func (r *AppointmentRepository) Insert(ctx context.Context, appt *model.Appointment) error {
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var token int
		if err := tx.QueryRow(ctx, `
			INSERT INTO shift_token_counters (appt_date, shift, last_token)
			VALUES ($1::date, $2, (
				SELECT COALESCE(MAX(token_number), 0) + 1
				FROM appointments
				WHERE appt_date = $1::date AND shift = $2
			))
			ON CONFLICT (appt_date, shift)
			DO UPDATE SET last_token = shift_token_counters.last_token + 1
			RETURNING last_token
		`, appt.Date, string(appt.Shift)).Scan(&token); err != nil {
			return fmt.Errorf("next token: %w", err)
		}

		var confirmedAt *time.Time
		if appt.Status == model.StatusConfirmed {
			now := time.Now().UTC()
			confirmedAt = &now
		}
		if err := tx.QueryRow(ctx, `
			INSERT INTO appointments
				(id, patient_id, service_id, start_at, appt_date, slot_minute, shift, status,
				 token_number, notes, source, confirmed_at)
			VALUES ($1, $2, $3, $4, $5::date, $6, $7, $8, $9, NULLIF($10, ''), $11, $12)
			RETURNING created_at, updated_at
		`, appt.ID, appt.PatientID, appt.ServiceID, appt.StartAt, appt.Date, appt.SlotMinute,
			string(appt.Shift), string(appt.Status), token, appt.Notes, string(appt.Source), confirmedAt,
		).Scan(&appt.CreatedAt, &appt.UpdatedAt); err != nil {
			return err
		}
		appt.TokenNumber = token
		appt.ConfirmedAt = confirmedAt
		return nil
	})
	if db.IsUniqueViolation(err, ActiveSlotConstraint) {
		return fmt.Errorf("%w: %s %s", model.ErrSlotTaken, appt.Date, schedule.TimeOfDay(appt.SlotMinute))
	}
	if db.IsForeignKeyViolation(err) {
		return fmt.Errorf("%w: patient %s", model.ErrNotFound, appt.PatientID)
	}
	return err
}

func (r *AppointmentRepository) Get(ctx context.Context, id string) (model.Appointment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Appointment{}, fmt.Errorf("%w: appointment %s", model.ErrNotFound, id)
	}
	a, err := scanAppointment(r.db.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return model.Appointment{}, fmt.Errorf("%w: appointment %s", model.ErrNotFound, id)
	}
	return a, err
}

func (r *AppointmentRepository) ExistsActiveAt(ctx context.Context, date string, slotMinute int) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE appt_date = $1::date AND slot_minute = $2 AND status <> 'cancelled'
		)
	`, date, slotMinute).Scan(&exists)
	return exists, err
}

func (r *AppointmentRepository) ListActive(ctx context.Context, start, end schedule.Date) ([]model.Appointment, error) {
	return r.list(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE appt_date BETWEEN $1::date AND $2::date
			AND status <> 'cancelled'
		ORDER BY appt_date, shift DESC, token_number
	`, start.String(), end.String())
}

// ListByDate is the admin queue: every status, morning first, token order.
// An empty shift lists both.
func (r *AppointmentRepository) ListByDate(ctx context.Context, date string, shift model.Shift) ([]model.Appointment, error) {
	return r.list(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE appt_date = $1::date
			AND ($2 = '' OR shift = $2)
		ORDER BY shift DESC, token_number
	`, date, string(shift))
}

func (r *AppointmentRepository) list(ctx context.Context, sql string, args ...any) ([]model.Appointment, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func (r *AppointmentRepository) CompareAndSetStatus(ctx context.Context, id string, from, to model.Status, at time.Time) (model.Appointment, bool, error) {
	a, err := scanAppointment(r.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = $3::text,
			updated_at = $4,
			confirmed_at = CASE WHEN $3::text = 'confirmed' THEN $4 ELSE confirmed_at END,
			completed_at = CASE WHEN $3::text = 'completed' THEN $4 ELSE completed_at END,
			cancelled_at = CASE WHEN $3::text = 'cancelled' THEN $4 ELSE cancelled_at END
		WHERE id = $1 AND status = $2
		RETURNING `+appointmentColumns,
		id, string(from), string(to), at.UTC()))
	if err == nil {
		return a, true, nil
	}
	if !db.IsNoRows(err) {
		return model.Appointment{}, false, err
	}
	current, err := r.Get(ctx, id)
	if err != nil {
		return model.Appointment{}, false, err
	}
	return current, false, nil
}
