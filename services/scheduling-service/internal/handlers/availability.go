package handlers

import (
	"net/http"
	"strings"

	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/availability"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/schedule"
)

type availabilityResponse struct {
	Data map[schedule.Date]availability.DayAvailability `json:"data"`
}

func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	serviceID := strings.TrimSpace(q.Get("service_id"))
	if serviceID == "" {
		badRequest(w, "service_id is required")
		return
	}
	start, err := schedule.ParseDate(strings.TrimSpace(q.Get("start")))
	if err != nil {
		badRequest(w, "start: "+err.Error())
		return
	}
	end := start
	if raw := strings.TrimSpace(q.Get("end")); raw != "" {
		if end, err = schedule.ParseDate(raw); err != nil {
			badRequest(w, "end: "+err.Error())
			return
		}
	}

	days, err := h.deps.Availability.Availability(r.Context(), start, end, serviceID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, availabilityResponse{Data: days})
}

type serviceItem struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
}

func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	svcs, err := h.deps.Services.ListServices(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items := make([]serviceItem, 0, len(svcs))
	for _, s := range svcs {
		items = append(items, serviceItem{ID: s.ID, Name: s.Name, DurationMinutes: s.DurationMinutes})
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": items})
}
