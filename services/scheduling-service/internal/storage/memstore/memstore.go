// Package memstore keeps the clinic ledger and its collaborators in process memory.
// A single mutex serialises writes, which is what makes slot and token checks atomic here.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/model"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/schedule"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/storage"
	"github.com/google/uuid"
)

type counterKey struct {
	date  string
	shift model.Shift
}

type Store struct {
	mu         sync.Mutex
	appts      map[string]model.Appointment
	counters   map[counterKey]int
	exceptions map[schedule.Date]schedule.Exception
	services   map[string]model.Service
	patients   map[string]model.Patient
	settings   storage.Settings
	now        func() time.Time
}

func New() *Store {
	return &Store{
		appts:      map[string]model.Appointment{},
		counters:   map[counterKey]int{},
		exceptions: map[schedule.Date]schedule.Exception{},
		services:   map[string]model.Service{},
		patients:   map[string]model.Patient{},
		settings:   storage.DefaultSettings(),
		now:        time.Now,
	}
}

// Insert assigns the id, token number and timestamps, rejecting a second live booking of the slot.
func (s *Store) Insert(_ context.Context, appt *model.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.appts {
		if a.Status != model.StatusCancelled && a.Date == appt.Date && a.SlotMinute == appt.SlotMinute && a.Shift == appt.Shift {
			return fmt.Errorf("%w: %s %s", model.ErrSlotTaken, appt.Date, schedule.TimeOfDay(appt.SlotMinute))
		}
	}

	key := counterKey{date: appt.Date, shift: appt.Shift}
	if _, ok := s.counters[key]; !ok {
		for _, a := range s.appts {
			if a.Date == appt.Date && a.Shift == appt.Shift && a.TokenNumber > s.counters[key] {
				s.counters[key] = a.TokenNumber
			}
		}
	}
	s.counters[key]++

	now := s.now().UTC()
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	appt.TokenNumber = s.counters[key]
	appt.CreatedAt = now
	appt.UpdatedAt = now
	if appt.Status == model.StatusConfirmed {
		appt.ConfirmedAt = &now
	}
	s.appts[appt.ID] = *appt
	return nil
}

func (s *Store) Get(_ context.Context, id string) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appts[id]
	if !ok {
		return model.Appointment{}, fmt.Errorf("%w: appointment %s", model.ErrNotFound, id)
	}
	return a, nil
}

func (s *Store) ExistsActiveAt(_ context.Context, date string, slotMinute int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.appts {
		if a.Status != model.StatusCancelled && a.Date == date && a.SlotMinute == slotMinute {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListActive(_ context.Context, start, end schedule.Date) ([]model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Appointment
	for _, a := range s.appts {
		if a.Status == model.StatusCancelled {
			continue
		}
		d, err := schedule.ParseDate(a.Date)
		if err != nil || d.Before(start) || d.After(end) {
			continue
		}
		out = append(out, a)
	}
	sortQueue(out)
	return out, nil
}

// ListByDate returns the day's queue in token order, all statuses included.
func (s *Store) ListByDate(_ context.Context, date string, shift model.Shift) ([]model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Appointment
	for _, a := range s.appts {
		if a.Date != date || (shift != "" && a.Shift != shift) {
			continue
		}
		out = append(out, a)
	}
	sortQueue(out)
	return out, nil
}

// CompareAndSetStatus moves id from -> to. When the stored status is no longer from it
// returns the current row and false.
func (s *Store) CompareAndSetStatus(_ context.Context, id string, from, to model.Status, at time.Time) (model.Appointment, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appts[id]
	if !ok {
		return model.Appointment{}, false, fmt.Errorf("%w: appointment %s", model.ErrNotFound, id)
	}
	if a.Status != from {
		return a, false, nil
	}
	at = at.UTC()
	a.Status = to
	a.UpdatedAt = at
	switch to {
	case model.StatusConfirmed:
		a.ConfirmedAt = &at
	case model.StatusCompleted:
		a.CompletedAt = &at
	case model.StatusCancelled:
		a.CancelledAt = &at
	}
	s.appts[id] = a
	return a, true, nil
}

func sortQueue(appts []model.Appointment) {
	sort.Slice(appts, func(i, j int) bool {
		a, b := appts[i], appts[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.Shift != b.Shift {
			return a.Shift == model.ShiftMorning
		}
		return a.TokenNumber < b.TokenNumber
	})
}
