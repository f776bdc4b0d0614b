package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/libs/auth"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/libs/httpx"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/actiontoken"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/admission"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/availability"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/lifecycle"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/model"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/schedule"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/storage"
	"github.com/go-chi/chi/v5"
)

type AppointmentReader interface {
	Get(ctx context.Context, id string) (model.Appointment, error)
	ListByDate(ctx context.Context, date string, shift model.Shift) ([]model.Appointment, error)
}

type ExceptionStore interface {
	UpsertException(ctx context.Context, exc schedule.Exception) (schedule.Exception, error)
	GetException(ctx context.Context, d schedule.Date) (schedule.Exception, error)
	ListExceptions(ctx context.Context, start, end schedule.Date) ([]schedule.Exception, error)
	DeleteException(ctx context.Context, d schedule.Date) error
}

type ServiceLister interface {
	ListServices(ctx context.Context) ([]model.Service, error)
}

type Deps struct {
	Availability *availability.Service
	Admitter     *admission.Admitter
	Machine      *lifecycle.Machine
	Verifier     *actiontoken.Verifier
	Appointments AppointmentReader
	Exceptions   ExceptionStore
	Settings     storage.SettingsStore
	Services     ServiceLister
	// Idempotency is optional; without it Idempotency-Key headers are ignored.
	Idempotency *storage.IdempotencyStore
	Location    *time.Location
	Logger      *slog.Logger
	Now         func() time.Time
}

type Handler struct {
	deps Deps
}

func New(d Deps) *Handler {
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Handler{deps: d}
}

// Mount registers every route. admin guards dashboard routes; public, when set, wraps the
// unauthenticated booking-site routes (rate limiting).
func (h *Handler) Mount(r chi.Router, admin, public httpx.Middleware) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if public != nil {
				r.Use(public)
			}
			r.Get("/availability", h.Availability)
			r.Get("/services", h.ListServices)
			r.Post("/public/appointments", h.CreatePublic)
			r.Get("/public/appointments/verify-token", h.VerifyToken)
			r.Post("/public/appointments/cancel", h.CancelByToken)
			r.Post("/public/appointments/confirm", h.ConfirmByToken)
		})

		r.Group(func(r chi.Router) {
			if admin != nil {
				r.Use(admin)
			}
			r.Post("/appointments", h.CreateAdmin)
			r.Get("/appointments", h.ListAppointments)
			r.Get("/appointments/{id}", h.GetAppointment)
			r.Patch("/appointments/{id}/status", h.UpdateStatus)

			r.Get("/schedule/exceptions", h.ListExceptions)
			r.Get("/schedule/exceptions/{date}", h.GetException)
			r.Put("/schedule/exceptions/{date}", h.PutException)
			r.Delete("/schedule/exceptions/{date}", h.DeleteException)

			r.Get("/schedule/config", h.GetConfig)
			r.Put("/schedule/config", h.PutConfig)
		})
	})
}

// adminSubject names the dashboard user behind r for audit log lines.
func adminSubject(r *http.Request) string {
	if c, ok := auth.ClaimsFromContext(r.Context()); ok {
		return c.Subject
	}
	return ""
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidRange), errors.Is(err, model.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrOutsideSchedule):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrSlotTaken), errors.Is(err, model.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, model.ErrTokenInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, model.ErrAlreadyProcessed):
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}

// errorResponse renders err; internal errors are logged and never echoed to the client.
func (h *Handler) errorResponse(r *http.Request, err error) (int, errorBody) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.deps.Logger.Error("request failed",
			"request_id", httpx.RequestIDFromContext(r.Context()),
			"route", r.URL.Path,
			"err", err,
		)
		return status, errorBody{Error: "internal error", Code: "internal"}
	}
	return status, errorBody{Error: err.Error(), Code: model.ErrorCode(err)}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := h.errorResponse(r, err)
	writeJSON(w, status, body)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg, Code: "invalid_input"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
