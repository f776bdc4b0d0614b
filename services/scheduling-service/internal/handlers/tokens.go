package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/actiontoken"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/lifecycle"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/model"
)

type tokenResponse struct {
	Result      string          `json:"result"`
	Action      string          `json:"action,omitempty"`
	Appointment appointmentItem `json:"appointment"`
}

func (h *Handler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	v, err := h.deps.Verifier.Verify(r.Context(), strings.TrimSpace(r.URL.Query().Get("token")))
	switch {
	case errors.Is(err, model.ErrAlreadyProcessed):
		writeJSON(w, http.StatusOK, tokenResponse{Result: "already_processed", Action: string(v.Action), Appointment: h.toItem(v.Appointment)})
	case err != nil:
		h.writeError(w, r, err)
	default:
		writeJSON(w, http.StatusOK, tokenResponse{Result: "valid", Action: string(v.Action), Appointment: h.toItem(v.Appointment)})
	}
}

func (h *Handler) CancelByToken(w http.ResponseWriter, r *http.Request) {
	h.applyToken(w, r, actiontoken.ActionCancel)
}

func (h *Handler) ConfirmByToken(w http.ResponseWriter, r *http.Request) {
	h.applyToken(w, r, actiontoken.ActionConfirm)
}

func (h *Handler) applyToken(w http.ResponseWriter, r *http.Request, want actiontoken.Action) {
	ctx := r.Context()
	v, err := h.deps.Verifier.Verify(ctx, strings.TrimSpace(r.URL.Query().Get("token")))
	if v.Action != "" && v.Action != want {
		h.writeError(w, r, fmt.Errorf("%w: token is for %s", model.ErrTokenInvalid, v.Action))
		return
	}
	if errors.Is(err, model.ErrAlreadyProcessed) {
		writeJSON(w, http.StatusOK, tokenResponse{Result: "already_processed", Action: string(want), Appointment: h.toItem(v.Appointment)})
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	appt, err := h.deps.Machine.Transition(ctx, v.Appointment.ID, want.Target(), lifecycle.ActorToken)
	if errors.Is(err, model.ErrAlreadyProcessed) {
		writeJSON(w, http.StatusOK, tokenResponse{Result: "already_processed", Action: string(want), Appointment: h.toItem(appt)})
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Result: "ok", Action: string(want), Appointment: h.toItem(appt)})
}
