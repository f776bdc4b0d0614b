package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/libs/db"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/model"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/schedule"
	"github.com/jackc/pgx/v5"
)

// ExceptionRepository stores one override row per date. Overrides are jsonb so a missing
// override (NULL) stays distinct from a disabled one.
type ExceptionRepository struct {
	db db.Querier
}

func NewExceptionRepository(q db.Querier) *ExceptionRepository {
	return &ExceptionRepository{db: q}
}

func (r *ExceptionRepository) UpsertException(ctx context.Context, exc schedule.Exception) (schedule.Exception, error) {
	morning, err := marshalOverride(exc.Morning)
	if err != nil {
		return schedule.Exception{}, err
	}
	evening, err := marshalOverride(exc.Evening)
	if err != nil {
		return schedule.Exception{}, err
	}
	err = r.db.QueryRow(ctx, `
		INSERT INTO schedule_exceptions (exception_date, morning_override, evening_override, note)
		VALUES ($1::date, $2, $3, NULLIF($4, ''))
		ON CONFLICT (exception_date) DO UPDATE
		SET morning_override = EXCLUDED.morning_override,
			evening_override = EXCLUDED.evening_override,
			note = EXCLUDED.note,
			updated_at = now()
		RETURNING updated_at
	`, exc.Date.String(), morning, evening, exc.Note).Scan(&exc.UpdatedAt)
	if err != nil {
		return schedule.Exception{}, err
	}
	return exc, nil
}

func (r *ExceptionRepository) GetException(ctx context.Context, d schedule.Date) (schedule.Exception, error) {
	exc, err := scanException(r.db.QueryRow(ctx, `
		SELECT exception_date::text, morning_override, evening_override, COALESCE(note, ''), updated_at
		FROM schedule_exceptions
		WHERE exception_date = $1::date
	`, d.String()))
	if db.IsNoRows(err) {
		return schedule.Exception{}, fmt.Errorf("%w: exception %s", model.ErrNotFound, d)
	}
	return exc, err
}

func (r *ExceptionRepository) ListExceptions(ctx context.Context, start, end schedule.Date) ([]schedule.Exception, error) {
	rows, err := r.db.Query(ctx, `
		SELECT exception_date::text, morning_override, evening_override, COALESCE(note, ''), updated_at
		FROM schedule_exceptions
		WHERE exception_date BETWEEN $1::date AND $2::date
		ORDER BY exception_date
	`, start.String(), end.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schedule.Exception
	for rows.Next() {
		exc, err := scanException(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, exc)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *ExceptionRepository) DeleteException(ctx context.Context, d schedule.Date) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM schedule_exceptions WHERE exception_date = $1::date`, d.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: exception %s", model.ErrNotFound, d)
	}
	return nil
}

func scanException(row pgx.Row) (schedule.Exception, error) {
	var (
		exc              schedule.Exception
		date             string
		morning, evening []byte
		updatedAt        time.Time
	)
	if err := row.Scan(&date, &morning, &evening, &exc.Note, &updatedAt); err != nil {
		return schedule.Exception{}, err
	}
	d, err := schedule.ParseDate(date)
	if err != nil {
		return schedule.Exception{}, err
	}
	exc.Date, exc.UpdatedAt = d, updatedAt
	if exc.Morning, err = unmarshalOverride(morning); err != nil {
		return schedule.Exception{}, err
	}
	if exc.Evening, err = unmarshalOverride(evening); err != nil {
		return schedule.Exception{}, err
	}
	return exc, nil
}

func marshalOverride(ov *schedule.ShiftOverride) ([]byte, error) {
	if ov == nil {
		return nil, nil
	}
	return json.Marshal(ov)
}

func unmarshalOverride(raw []byte) (*schedule.ShiftOverride, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var ov schedule.ShiftOverride
	if err := json.Unmarshal(raw, &ov); err != nil {
		return nil, fmt.Errorf("decode shift override: %w", err)
	}
	return &ov, nil
}
