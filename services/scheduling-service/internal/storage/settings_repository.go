package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/libs/db"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/model"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/schedule"
)

type SettingsRepository struct {
	db db.Querier
}

func NewSettingsRepository(q db.Querier) *SettingsRepository {
	return &SettingsRepository{db: q}
}

// GetSettings falls back to DefaultSettings until the clinic saves its own.
func (r *SettingsRepository) GetSettings(ctx context.Context) (Settings, error) {
	var schedRaw, notifRaw []byte
	st := DefaultSettings()
	err := r.db.QueryRow(ctx, `
		SELECT schedule, notifications, updated_at FROM clinic_settings WHERE id = 1
	`).Scan(&schedRaw, &notifRaw, &st.UpdatedAt)
	if db.IsNoRows(err) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return Settings{}, err
	}
	if err := json.Unmarshal(schedRaw, &st.Schedule); err != nil {
		return Settings{}, fmt.Errorf("decode schedule settings: %w", err)
	}
	if err := json.Unmarshal(notifRaw, &st.Notifications); err != nil {
		return Settings{}, fmt.Errorf("decode notification settings: %w", err)
	}
	return st, nil
}

func (r *SettingsRepository) UpdateSettings(ctx context.Context, st Settings) (Settings, error) {
	schedRaw, err := json.Marshal(st.Schedule)
	if err != nil {
		return Settings{}, err
	}
	notifRaw, err := json.Marshal(st.Notifications)
	if err != nil {
		return Settings{}, err
	}
	err = r.db.QueryRow(ctx, `
		INSERT INTO clinic_settings (id, schedule, notifications)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE
		SET schedule = EXCLUDED.schedule,
			notifications = EXCLUDED.notifications,
			updated_at = now()
		RETURNING updated_at
	`, schedRaw, notifRaw).Scan(&st.UpdatedAt)
	if err != nil {
		return Settings{}, err
	}
	return st, nil
}

func (r *SettingsRepository) ScheduleConfig(ctx context.Context) (schedule.Config, error) {
	st, err := r.GetSettings(ctx)
	return st.Schedule, err
}

func (r *SettingsRepository) NotificationPrefs(ctx context.Context) (model.NotificationPrefs, error) {
	st, err := r.GetSettings(ctx)
	return st.Notifications, err
}
