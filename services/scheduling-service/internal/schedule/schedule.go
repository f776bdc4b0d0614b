package schedule

import (
	"fmt"
	"time"

	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/model"
)

type ShiftWindow struct {
	Enabled bool      `json:"enabled"`
	Start   TimeOfDay `json:"start"`
	End     TimeOfDay `json:"end"`
}

// Fits reports whether a visit of d starting at t lies inside the open window.
func (w ShiftWindow) Fits(t TimeOfDay, d time.Duration) bool {
	return w.Enabled && t >= w.Start && t.Add(d) <= w.End
}

type DaySchedule struct {
	Morning ShiftWindow `json:"morning"`
	Evening ShiftWindow `json:"evening"`
}

func (ds DaySchedule) Window(s model.Shift) ShiftWindow {
	if s == model.ShiftEvening {
		return ds.Evening
	}
	return ds.Morning
}

// Locate returns the open shift that fully contains a visit of d starting at t.
func (ds DaySchedule) Locate(t TimeOfDay, d time.Duration) (model.Shift, bool) {
	switch {
	case ds.Morning.Fits(t, d):
		return model.ShiftMorning, true
	case ds.Evening.Fits(t, d):
		return model.ShiftEvening, true
	}
	return "", false
}

func (ds DaySchedule) Validate() error {
	for _, s := range []struct {
		name string
		w    ShiftWindow
	}{{"morning", ds.Morning}, {"evening", ds.Evening}} {
		if !s.w.Enabled {
			continue
		}
		if !s.w.Start.Valid() || !s.w.End.Valid() {
			return fmt.Errorf("%w: %s times out of range", model.ErrInvalidInput, s.name)
		}
		if s.w.Start >= s.w.End {
			return fmt.Errorf("%w: %s start must be before end", model.ErrInvalidInput, s.name)
		}
	}
	if ds.Morning.Enabled && ds.Evening.Enabled && ds.Morning.End > ds.Evening.Start {
		return fmt.Errorf("%w: morning shift must end before evening shift starts", model.ErrInvalidInput)
	}
	return nil
}

// Config is the clinic-wide schedule. Handlers load it once per request and pass it down.
type Config struct {
	Day            DaySchedule    `json:"day"`
	ClosedWeekdays []time.Weekday `json:"closed_weekdays"`
}

func (c Config) Validate() error {
	for _, wd := range c.ClosedWeekdays {
		if wd < time.Sunday || wd > time.Saturday {
			return fmt.Errorf("%w: weekday %d", model.ErrInvalidInput, wd)
		}
	}
	return c.Day.Validate()
}

func (c Config) closedOn(d Date) bool {
	wd := d.Weekday()
	for _, cw := range c.ClosedWeekdays {
		if cw == wd {
			return true
		}
	}
	return false
}

// DefaultConfig opens 09:00-13:00 and 17:00-21:00 every day.
func DefaultConfig() Config {
	return Config{Day: DaySchedule{
		Morning: ShiftWindow{Enabled: true, Start: NewTimeOfDay(9, 0), End: NewTimeOfDay(13, 0)},
		Evening: ShiftWindow{Enabled: true, Start: NewTimeOfDay(17, 0), End: NewTimeOfDay(21, 0)},
	}}
}
