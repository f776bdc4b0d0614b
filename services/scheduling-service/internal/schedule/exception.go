package schedule

import (
	"fmt"
	"time"

	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/model"
)

// ShiftOverride replaces one shift on one date. Missing bounds come from the clinic-wide shift.
type ShiftOverride struct {
	Enabled bool       `json:"enabled"`
	Start   *TimeOfDay `json:"start,omitempty"`
	End     *TimeOfDay `json:"end,omitempty"`
}

type Exception struct {
	Date      Date           `json:"date"`
	Morning   *ShiftOverride `json:"morning_override,omitempty"`
	Evening   *ShiftOverride `json:"evening_override,omitempty"`
	Note      string         `json:"note,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Effective resolves the schedule that applies on d. exc may be nil.
//
// Per shift: no override keeps the clinic-wide shift (closed on closed weekdays),
// a disabled override closes it, and an enabled override opens it with its own times
// or the clinic-wide ones where it gives none. The result never has overlapping shifts.
func Effective(cfg Config, d Date, exc *Exception) DaySchedule {
	onlyMorning := exc != nil && exc.Morning != nil && exc.Evening == nil
	return merge(cfg, d, exc).trimOverlap(onlyMorning)
}

func merge(cfg Config, d Date, exc *Exception) DaySchedule {
	closed := cfg.closedOn(d)
	var morning, evening *ShiftOverride
	if exc != nil {
		morning, evening = exc.Morning, exc.Evening
	}
	return DaySchedule{
		Morning: mergeShift(cfg.Day.Morning, closed, morning),
		Evening: mergeShift(cfg.Day.Evening, closed, evening),
	}
}

// trimOverlap cuts the overridden shift back to the other one. An exception saved under an
// older clinic-wide schedule can overlap after that schedule changes.
func (ds DaySchedule) trimOverlap(trimMorning bool) DaySchedule {
	if !ds.Morning.Enabled || !ds.Evening.Enabled || ds.Morning.End <= ds.Evening.Start {
		return ds
	}
	if trimMorning {
		ds.Morning.End = ds.Evening.Start
		ds.Morning.Enabled = ds.Morning.Start < ds.Morning.End
	} else {
		ds.Evening.Start = ds.Morning.End
		ds.Evening.Enabled = ds.Evening.Start < ds.Evening.End
	}
	return ds
}

func mergeShift(global ShiftWindow, closedDay bool, ov *ShiftOverride) ShiftWindow {
	if ov == nil {
		w := global
		w.Enabled = global.Enabled && !closedDay
		return w
	}
	w := ShiftWindow{Enabled: ov.Enabled, Start: global.Start, End: global.End}
	if !ov.Enabled {
		return w
	}
	if ov.Start != nil {
		w.Start = *ov.Start
	}
	if ov.End != nil {
		w.End = *ov.End
	}
	if w.Start >= w.End {
		w.Enabled = false
	}
	return w
}

// ValidateException checks the override on its own and the day it produces.
func ValidateException(cfg Config, exc Exception) error {
	if exc.Date.IsZero() {
		return fmt.Errorf("%w: date is required", model.ErrInvalidInput)
	}
	for _, s := range []struct {
		name string
		ov   *ShiftOverride
	}{{"morning", exc.Morning}, {"evening", exc.Evening}} {
		if s.ov == nil || !s.ov.Enabled {
			continue
		}
		if (s.ov.Start != nil && !s.ov.Start.Valid()) || (s.ov.End != nil && !s.ov.End.Valid()) {
			return fmt.Errorf("%w: %s override times out of range", model.ErrInvalidInput, s.name)
		}
		global := cfg.Day.Window(model.Shift(s.name))
		start, end := global.Start, global.End
		if s.ov.Start != nil {
			start = *s.ov.Start
		}
		if s.ov.End != nil {
			end = *s.ov.End
		}
		if start >= end {
			return fmt.Errorf("%w: %s override start must be before end", model.ErrInvalidInput, s.name)
		}
	}
	return merge(cfg, exc.Date, &exc).Validate()
}

// ValidateExceptions checks stored exceptions against a proposed clinic-wide schedule.
func ValidateExceptions(cfg Config, excs []Exception) error {
	for _, exc := range excs {
		if err := ValidateException(cfg, exc); err != nil {
			return fmt.Errorf("exception on %s: %w", exc.Date, err)
		}
	}
	return nil
}
