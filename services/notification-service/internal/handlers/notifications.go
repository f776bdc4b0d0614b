package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/notification-service/internal/storage"
)

type NotificationLister interface {
	ListByAppointment(ctx context.Context, appointmentID string) ([]storage.Notification, error)
}

type NotificationsHandler struct {
	repo   NotificationLister
	logger *slog.Logger
}

func NewNotificationsHandler(repo NotificationLister, logger *slog.Logger) *NotificationsHandler {
	return &NotificationsHandler{repo: repo, logger: logger}
}

type notificationItem struct {
	EventID   string `json:"event_id"`
	Kind      string `json:"kind"`
	Audience  string `json:"audience"`
	Recipient string `json:"recipient"`
	Provider  string `json:"provider"`
	Subject   string `json:"subject"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
	CreatedAt string `json:"created_at"`
}

// List serves GET /api/v1/notifications?appointment_id=ID.
func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("appointment_id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "appointment_id is required", "code": "invalid_input"})
		return
	}
	rows, err := h.repo.ListByAppointment(r.Context(), id)
	if err != nil {
		h.logger.Error("list notifications failed", "err", err, "appointment_id", id)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error", "code": "internal"})
		return
	}
	items := make([]notificationItem, 0, len(rows))
	for _, n := range rows {
		items = append(items, notificationItem{
			EventID:   n.EventID,
			Kind:      n.Kind,
			Audience:  n.Audience,
			Recipient: n.Recipient,
			Provider:  n.Provider,
			Subject:   n.Subject,
			Status:    n.Status,
			Error:     n.Error,
			TraceID:   n.TraceID,
			CreatedAt: n.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": items})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
