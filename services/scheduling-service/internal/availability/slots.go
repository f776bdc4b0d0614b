package availability

import (
	"time"

	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/schedule"
)

type DayAvailability struct {
	AvailableSlots []schedule.TimeOfDay `json:"available_slots"`
	MorningOpen    bool                 `json:"morning_open"`
	EveningOpen    bool                 `json:"evening_open"`
}

// Booked is a non-cancelled appointment's start on the clinic calendar.
type Booked struct {
	Date schedule.Date
	Time schedule.TimeOfDay
}

type Input struct {
	Config     schedule.Config
	Exceptions []schedule.Exception
	Booked     []Booked
	Start, End schedule.Date
	Duration   time.Duration
	Today      schedule.Date
	// NotBefore, when set, hides today's slots that start earlier.
	NotBefore *schedule.TimeOfDay
}

// Compute returns one entry per date in [Start, End]. Dates before Today are closed.
func Compute(in Input) map[schedule.Date]DayAvailability {
	exceptions := make(map[schedule.Date]*schedule.Exception, len(in.Exceptions))
	for i := range in.Exceptions {
		exceptions[in.Exceptions[i].Date] = &in.Exceptions[i]
	}
	taken := map[schedule.Date]map[schedule.TimeOfDay]bool{}
	for _, b := range in.Booked {
		if taken[b.Date] == nil {
			taken[b.Date] = map[schedule.TimeOfDay]bool{}
		}
		taken[b.Date][b.Time] = true
	}

	out := map[schedule.Date]DayAvailability{}
	if in.End.Before(in.Start) {
		return out
	}
	for d := in.Start; !d.After(in.End); d = d.AddDays(1) {
		if d.Before(in.Today) {
			out[d] = DayAvailability{AvailableSlots: []schedule.TimeOfDay{}}
			continue
		}
		day := schedule.Effective(in.Config, d, exceptions[d])
		notBefore := schedule.TimeOfDay(0)
		if in.NotBefore != nil && d == in.Today {
			notBefore = *in.NotBefore
		}

		slots := AvailableSlots(day.Morning, in.Duration, taken[d], notBefore)
		slots = append(slots, AvailableSlots(day.Evening, in.Duration, taken[d], notBefore)...)
		out[d] = DayAvailability{
			AvailableSlots: slots,
			MorningOpen:    day.Morning.Enabled,
			EveningOpen:    day.Evening.Enabled,
		}
	}
	return out
}

// AvailableSlots steps through an open window by duration, dropping a trailing partial slot,
// starts in taken and starts before notBefore.
func AvailableSlots(w schedule.ShiftWindow, duration time.Duration, taken map[schedule.TimeOfDay]bool, notBefore schedule.TimeOfDay) []schedule.TimeOfDay {
	slots := []schedule.TimeOfDay{}
	if !w.Enabled || duration < time.Minute || w.Start >= w.End {
		return slots
	}
	for t := w.Start; t.Add(duration) <= w.End; t = t.Add(duration) {
		if t < notBefore || taken[t] {
			continue
		}
		slots = append(slots, t)
	}
	return slots
}
