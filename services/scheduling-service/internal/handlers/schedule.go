package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/model"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/schedule"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/storage"
	"github.com/go-chi/chi/v5"
)

var lastDate = schedule.Date{Year: 9999, Month: time.December, Day: 31}

type exceptionRequest struct {
	Morning *schedule.ShiftOverride `json:"morning_override"`
	Evening *schedule.ShiftOverride `json:"evening_override"`
	Note    string                  `json:"note"`
}

func dateParam(r *http.Request) (schedule.Date, error) {
	d, err := schedule.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		return schedule.Date{}, fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
	}
	return d, nil
}

func (h *Handler) ListExceptions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := schedule.ParseDate(strings.TrimSpace(q.Get("start")))
	if err != nil {
		badRequest(w, "start: "+err.Error())
		return
	}
	end, err := schedule.ParseDate(strings.TrimSpace(q.Get("end")))
	if err != nil {
		badRequest(w, "end: "+err.Error())
		return
	}
	if end.Before(start) {
		h.writeError(w, r, fmt.Errorf("%w: end %s is before start %s", model.ErrInvalidRange, end, start))
		return
	}
	list, err := h.deps.Exceptions.ListExceptions(r.Context(), start, end)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []schedule.Exception{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": list})
}

func (h *Handler) GetException(w http.ResponseWriter, r *http.Request) {
	d, err := dateParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	exc, err := h.deps.Exceptions.GetException(r.Context(), d)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exc)
}

func (h *Handler) PutException(w http.ResponseWriter, r *http.Request) {
	d, err := dateParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req exceptionRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid json body")
		return
	}
	exc := schedule.Exception{Date: d, Morning: req.Morning, Evening: req.Evening, Note: strings.TrimSpace(req.Note)}

	st, err := h.deps.Settings.GetSettings(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := schedule.ValidateException(st.Schedule, exc); err != nil {
		h.writeError(w, r, err)
		return
	}
	saved, err := h.deps.Exceptions.UpsertException(r.Context(), exc)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.deps.Logger.Info("schedule exception saved", "date", d.String(), "admin", adminSubject(r))
	writeJSON(w, http.StatusOK, saved)
}

func (h *Handler) DeleteException(w http.ResponseWriter, r *http.Request) {
	d, err := dateParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.deps.Exceptions.DeleteException(r.Context(), d); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.deps.Logger.Info("schedule exception removed", "date", d.String(), "admin", adminSubject(r))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	st, err := h.deps.Settings.GetSettings(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) PutConfig(w http.ResponseWriter, r *http.Request) {
	var st storage.Settings
	if err := decodeJSON(r, &st); err != nil {
		badRequest(w, "invalid json body")
		return
	}
	if err := st.Validate(); err != nil {
		h.writeError(w, r, err)
		return
	}
	// Upcoming exceptions must stay valid under the new schedule.
	today := schedule.Today(h.deps.Location, h.deps.Now())
	upcoming, err := h.deps.Exceptions.ListExceptions(r.Context(), today, lastDate)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := schedule.ValidateExceptions(st.Schedule, upcoming); err != nil {
		h.writeError(w, r, err)
		return
	}
	saved, err := h.deps.Settings.UpdateSettings(r.Context(), st)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.deps.Logger.Info("clinic settings updated", "admin", adminSubject(r))
	writeJSON(w, http.StatusOK, saved)
}
