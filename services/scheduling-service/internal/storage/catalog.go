package storage

import (
	"context"
	"fmt"

	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/libs/db"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/model"
	"github.com/google/uuid"
)

// CatalogRepository reads the service and patient records maintained by the clinic dashboard.
type CatalogRepository struct {
	db db.Querier
}

func NewCatalogRepository(q db.Querier) *CatalogRepository {
	return &CatalogRepository{db: q}
}

func (r *CatalogRepository) GetService(ctx context.Context, id string) (model.Service, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Service{}, fmt.Errorf("%w: service %s", model.ErrNotFound, id)
	}
	var svc model.Service
	err := r.db.QueryRow(ctx, `
		SELECT id::text, name, duration_minutes, active FROM services WHERE id = $1
	`, id).Scan(&svc.ID, &svc.Name, &svc.DurationMinutes, &svc.Active)
	if db.IsNoRows(err) {
		return model.Service{}, fmt.Errorf("%w: service %s", model.ErrNotFound, id)
	}
	return svc, err
}

func (r *CatalogRepository) ListServices(ctx context.Context) ([]model.Service, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id::text, name, duration_minutes, active FROM services WHERE active ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Service
	for rows.Next() {
		var svc model.Service
		if err := rows.Scan(&svc.ID, &svc.Name, &svc.DurationMinutes, &svc.Active); err != nil {
			return nil, err
		}
		out = append(out, svc)
	}
	return out, rows.Err()
}

func (r *CatalogRepository) GetPatient(ctx context.Context, id string) (model.Patient, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Patient{}, fmt.Errorf("%w: patient %s", model.ErrNotFound, id)
	}
	var p model.Patient
	err := r.db.QueryRow(ctx, `
		SELECT id::text, full_name, COALESCE(email, ''), COALESCE(phone, '') FROM patients WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Email, &p.Phone)
	if db.IsNoRows(err) {
		return model.Patient{}, fmt.Errorf("%w: patient %s", model.ErrNotFound, id)
	}
	return p, err
}
