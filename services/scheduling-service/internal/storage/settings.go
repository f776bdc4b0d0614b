package storage

import (
	"time"

	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/model"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/schedule"
)

// Settings is the clinic's single global settings record.
type Settings struct {
	Schedule      schedule.Config         `json:"schedule"`
	Notifications model.NotificationPrefs `json:"notifications"`
	UpdatedAt     time.Time               `json:"updated_at"`
}

func DefaultSettings() Settings {
	return Settings{
		Schedule:      schedule.DefaultConfig(),
		Notifications: model.DefaultNotificationPrefs(),
	}
}

func (s Settings) Validate() error {
	return s.Schedule.Validate()
}
