package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/libs/httpx"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/admission"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/lifecycle"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/model"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/schedule"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/storage"
	"github.com/go-chi/chi/v5"
)

type createAppointmentRequest struct {
	PatientID     string `json:"patient_id"`
	ServiceID     string `json:"service_id"`
	AppointmentAt string `json:"appointment_at"`
	Notes         string `json:"notes"`
	Status        string `json:"status"`
}

type appointmentItem struct {
	ID            string  `json:"id"`
	PatientID     string  `json:"patient_id"`
	ServiceID     string  `json:"service_id"`
	AppointmentAt string  `json:"appointment_at"`
	Date          string  `json:"date"`
	Time          string  `json:"time"`
	Shift         string  `json:"shift"`
	Status        string  `json:"status"`
	TokenNumber   int     `json:"token_number"`
	Notes         string  `json:"notes,omitempty"`
	Source        string  `json:"source"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
	ConfirmedAt   *string `json:"confirmed_at,omitempty"`
	CompletedAt   *string `json:"completed_at,omitempty"`
	CancelledAt   *string `json:"cancelled_at,omitempty"`
}

func (h *Handler) toItem(a model.Appointment) appointmentItem {
	ts := func(t *time.Time) *string {
		if t == nil {
			return nil
		}
		s := t.UTC().Format(time.RFC3339)
		return &s
	}
	return appointmentItem{
		ID:            a.ID,
		PatientID:     a.PatientID,
		ServiceID:     a.ServiceID,
		AppointmentAt: a.StartAt.In(h.deps.Location).Format(time.RFC3339),
		Date:          a.Date,
		Time:          schedule.TimeOfDay(a.SlotMinute).String(),
		Shift:         string(a.Shift),
		Status:        string(a.Status),
		TokenNumber:   a.TokenNumber,
		Notes:         a.Notes,
		Source:        string(a.Source),
		CreatedAt:     a.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     a.UpdatedAt.UTC().Format(time.RFC3339),
		ConfirmedAt:   ts(a.ConfirmedAt),
		CompletedAt:   ts(a.CompletedAt),
		CancelledAt:   ts(a.CancelledAt),
	}
}

// parseAppointmentAt accepts RFC 3339 (converted to clinic time) or a clinic-local
// "YYYY-MM-DDTHH:MM". Seconds are dropped.
func parseAppointmentAt(raw string, loc *time.Location) (schedule.Date, schedule.TimeOfDay, error) {
	raw = strings.TrimSpace(raw)
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		t, err = time.ParseInLocation("2006-01-02T15:04", raw, loc)
		if err != nil {
			return schedule.Date{}, 0, fmt.Errorf("%w: appointment_at must be RFC 3339 or YYYY-MM-DDTHH:MM", model.ErrInvalidInput)
		}
	}
	t = t.In(loc)
	return schedule.DateOf(t), schedule.NewTimeOfDay(t.Hour(), t.Minute()), nil
}

func (h *Handler) CreatePublic(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, model.SourcePublic)
}

func (h *Handler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, model.SourceAdmin)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request, source model.Source) {
	var req createAppointmentRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid json body")
		return
	}
	date, tod, err := parseAppointmentAt(req.AppointmentAt, h.deps.Location)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx := r.Context()
	scope := string(source)
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if h.deps.Idempotency == nil {
		key = ""
	}
	if key != "" {
		stored, err := h.deps.Idempotency.Begin(ctx, scope, key)
		switch {
		case errors.Is(err, storage.ErrIdempotencyInFlight):
			writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Code: "idempotency_in_flight"})
			return
		case err != nil:
			h.deps.Logger.Warn("idempotency store unavailable; proceeding without it", "err", err)
			key = ""
		case stored != nil:
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Idempotent-Replayed", "true")
			w.WriteHeader(stored.StatusCode)
			_, _ = w.Write(stored.Body)
			return
		}
	}

	appt, err := h.deps.Admitter.Admit(ctx, admission.Request{
		ServiceID: strings.TrimSpace(req.ServiceID),
		PatientID: strings.TrimSpace(req.PatientID),
		Date:      date,
		Time:      tod,
		Notes:     req.Notes,
		Source:    source,
		Status:    model.Status(strings.ToLower(strings.TrimSpace(req.Status))),
	})

	status, body := http.StatusCreated, any(nil)
	if err != nil {
		var eb errorBody
		status, eb = h.errorResponse(r, err)
		body = eb
	} else {
		body = h.toItem(appt)
	}
	raw, _ := json.Marshal(body)

	if key != "" {
		if status >= http.StatusInternalServerError {
			if err := h.deps.Idempotency.Release(ctx, scope, key); err != nil {
				h.deps.Logger.Warn("release idempotency key failed", "err", err)
			}
		} else if err := h.deps.Idempotency.Complete(ctx, scope, key, storage.IdempotentResponse{StatusCode: status, Body: raw}); err != nil {
			h.deps.Logger.Warn("finalize idempotency key failed", "err", err, "request_id", httpx.RequestIDFromContext(ctx))
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}

func (h *Handler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	appt, err := h.deps.Appointments.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toItem(appt))
}

func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date, err := schedule.ParseDate(strings.TrimSpace(q.Get("date")))
	if err != nil {
		badRequest(w, "date: "+err.Error())
		return
	}
	var shift model.Shift
	if raw := strings.TrimSpace(q.Get("shift")); raw != "" {
		s, ok := model.ParseShift(raw)
		if !ok {
			badRequest(w, "shift must be morning or evening")
			return
		}
		shift = s
	}

	appts, err := h.deps.Appointments.ListByDate(r.Context(), date.String(), shift)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items := make([]appointmentItem, 0, len(appts))
	for _, a := range appts {
		items = append(items, h.toItem(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": items})
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid json body")
		return
	}
	to, ok := model.ParseStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if !ok {
		badRequest(w, "status must be one of pending, confirmed, completed, cancelled")
		return
	}
	appt, err := h.deps.Machine.Transition(r.Context(), chi.URLParam(r, "id"), to, lifecycle.ActorAdmin)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.deps.Logger.Info("appointment status set by admin", "appointment_id", appt.ID, "status", appt.Status, "admin", adminSubject(r))
	writeJSON(w, http.StatusOK, h.toItem(appt))
}
