package memstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/model"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/schedule"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/storage"
)

func (s *Store) UpsertException(_ context.Context, exc schedule.Exception) (schedule.Exception, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exc.UpdatedAt = s.now().UTC()
	s.exceptions[exc.Date] = exc
	return exc, nil
}

func (s *Store) GetException(_ context.Context, d schedule.Date) (schedule.Exception, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exc, ok := s.exceptions[d]
	if !ok {
		return schedule.Exception{}, fmt.Errorf("%w: exception %s", model.ErrNotFound, d)
	}
	return exc, nil
}

func (s *Store) ListExceptions(_ context.Context, start, end schedule.Date) ([]schedule.Exception, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []schedule.Exception
	for d, exc := range s.exceptions {
		if d.Before(start) || d.After(end) {
			continue
		}
		out = append(out, exc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) DeleteException(_ context.Context, d schedule.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.exceptions[d]; !ok {
		return fmt.Errorf("%w: exception %s", model.ErrNotFound, d)
	}
	delete(s.exceptions, d)
	return nil
}

func (s *Store) GetSettings(context.Context) (storage.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings, nil
}

func (s *Store) UpdateSettings(_ context.Context, st storage.Settings) (storage.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st.UpdatedAt = s.now().UTC()
	s.settings = st
	return st, nil
}

func (s *Store) ScheduleConfig(ctx context.Context) (schedule.Config, error) {
	st, err := s.GetSettings(ctx)
	return st.Schedule, err
}

func (s *Store) NotificationPrefs(ctx context.Context) (model.NotificationPrefs, error) {
	st, err := s.GetSettings(ctx)
	return st.Notifications, err
}

func (s *Store) PutService(svc model.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[svc.ID] = svc
}

func (s *Store) GetService(_ context.Context, id string) (model.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.services[id]
	if !ok {
		return model.Service{}, fmt.Errorf("%w: service %s", model.ErrNotFound, id)
	}
	return svc, nil
}

func (s *Store) PutPatient(p model.Patient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patients[p.ID] = p
}

func (s *Store) GetPatient(_ context.Context, id string) (model.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patients[id]
	if !ok {
		return model.Patient{}, fmt.Errorf("%w: patient %s", model.ErrNotFound, id)
	}
	return p, nil
}

func (s *Store) ListServices(context.Context) ([]model.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Service
	for _, svc := range s.services {
		if svc.Active {
			out = append(out, svc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
