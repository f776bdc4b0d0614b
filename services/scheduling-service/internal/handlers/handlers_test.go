package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/libs/auth"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/libs/httpx"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/actiontoken"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/admission"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/availability"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/lifecycle"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/model"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/storage"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/storage/memstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var clock = func() time.Time { return time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC) }

type fixture struct {
	srv    *httptest.Server
	store  *memstore.Store
	signer *actiontoken.Signer
	logs   *bytes.Buffer
}

func newFixture(t *testing.T, idem *storage.IdempotencyStore) *fixture {
	t.Helper()
	return newFixtureWithAdmin(t, idem, nil)
}

func newFixtureWithAdmin(t *testing.T, idem *storage.IdempotencyStore, admin httpx.Middleware) *fixture {
	t.Helper()
	store := memstore.New()
	store.PutService(model.Service{ID: "cleaning", Name: "Cleaning", DurationMinutes: 30, Active: true})
	store.PutService(model.Service{ID: "rct", Name: "Root canal", DurationMinutes: 90, Active: true})
	store.PutPatient(model.Patient{ID: "p-1", Name: "Asha", Email: "asha@example.com"})

	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(logs, nil))
	signer, err := actiontoken.NewSigner([]byte("handler-test-secret-0123456789"), time.Hour)
	require.NoError(t, err)

	h := New(Deps{
		Availability: availability.NewService(store, store, store, store, nil, availability.Options{Now: clock}),
		Admitter:     admission.NewAdmitter(store, store, store, store, nil, nil, logger, time.UTC).WithClock(clock),
		Machine:      lifecycle.NewMachine(store, nil, nil, logger),
		Verifier:     actiontoken.NewVerifier(signer, store),
		Appointments: store,
		Exceptions:   store,
		Settings:     store,
		Services:     store,
		Idempotency:  idem,
		Location:     time.UTC,
		Logger:       logger,
		Now:          clock,
	})
	r := chi.NewRouter()
	h.Mount(r, admin, nil)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, store: store, signer: signer, logs: logs}
}

func (f *fixture) do(t *testing.T, method, path string, body any, hdr ...string) (*http.Response, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rd)
	require.NoError(t, err)
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func (f *fixture) book(t *testing.T, at string) map[string]any {
	t.Helper()
	resp, body := f.do(t, http.MethodPost, "/api/v1/public/appointments", map[string]any{
		"patient_id": "p-1", "service_id": "cleaning", "appointment_at": at,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	return body
}

func TestAvailabilityEmptyDay(t *testing.T) {
	f := newFixture(t, nil)
	resp, body := f.do(t, http.MethodGet, "/api/v1/availability?service_id=cleaning&start=2026-03-10", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	day := body["data"].(map[string]any)["2026-03-10"].(map[string]any)
	slots := day["available_slots"].([]any)
	assert.Len(t, slots, 16)
	assert.Equal(t, "09:00", slots[0])
	assert.Equal(t, "20:30", slots[len(slots)-1])
	assert.Equal(t, true, day["morning_open"])
	assert.Equal(t, true, day["evening_open"])
}

func TestAvailabilityHidesBookedSlot(t *testing.T) {
	f := newFixture(t, nil)
	f.book(t, "2026-03-10T09:30")

	_, body := f.do(t, http.MethodGet, "/api/v1/availability?service_id=cleaning&start=2026-03-10&end=2026-03-11", nil)
	data := body["data"].(map[string]any)
	assert.NotContains(t, data["2026-03-10"].(map[string]any)["available_slots"], "09:30")
	assert.Contains(t, data["2026-03-11"].(map[string]any)["available_slots"], "09:30")
}

func TestAvailabilityErrors(t *testing.T) {
	f := newFixture(t, nil)
	cases := []struct {
		name, query string
		status      int
		code        string
	}{
		{"missing service", "start=2026-03-10", http.StatusBadRequest, "invalid_input"},
		{"bad date", "service_id=cleaning&start=10-03-2026", http.StatusBadRequest, "invalid_input"},
		{"reversed range", "service_id=cleaning&start=2026-03-10&end=2026-03-09", http.StatusBadRequest, "invalid_range"},
		{"unknown service", "service_id=whitening&start=2026-03-10", http.StatusNotFound, "not_found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := f.do(t, http.MethodGet, "/api/v1/availability?"+tc.query, nil)
			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Equal(t, tc.code, body["code"])
		})
	}
}

func TestCreateAppointmentAssignsTokens(t *testing.T) {
	f := newFixture(t, nil)
	first := f.book(t, "2026-03-10T09:00")
	second := f.book(t, "2026-03-10T10:00")
	evening := f.book(t, "2026-03-10T17:00")

	assert.Equal(t, "pending", first["status"])
	assert.Equal(t, "morning", first["shift"])
	assert.EqualValues(t, 1, first["token_number"])
	assert.EqualValues(t, 2, second["token_number"])
	assert.Equal(t, "evening", evening["shift"])
	assert.EqualValues(t, 1, evening["token_number"])
}

func TestCreateAppointmentRejections(t *testing.T) {
	f := newFixture(t, nil)
	f.book(t, "2026-03-10T09:00")

	cases := []struct {
		name   string
		at     string
		status int
		code   string
	}{
		{"slot taken", "2026-03-10T09:00", http.StatusConflict, "slot_taken"},
		{"between shifts", "2026-03-10T14:00", http.StatusUnprocessableEntity, "outside_schedule"},
		{"runs past close", "2026-03-10T12:45", http.StatusUnprocessableEntity, "outside_schedule"},
		{"past date", "2026-03-01T09:00", http.StatusUnprocessableEntity, "outside_schedule"},
		{"garbage", "tomorrow", http.StatusBadRequest, "invalid_input"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := f.do(t, http.MethodPost, "/api/v1/public/appointments", map[string]any{
				"patient_id": "p-1", "service_id": "cleaning", "appointment_at": tc.at,
			})
			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Equal(t, tc.code, body["code"])
		})
	}
}

func TestCreateRejectsUnknownFields(t *testing.T) {
	f := newFixture(t, nil)
	resp, body := f.do(t, http.MethodPost, "/api/v1/public/appointments", map[string]any{
		"patient_id": "p-1", "service_id": "cleaning", "appointment_at": "2026-03-10T09:00", "token_number": 7,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_input", body["code"])
}

func TestCreateIdempotentReplay(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	f := newFixture(t, storage.NewIdempotencyStore(rdb, time.Hour))

	payload := map[string]any{"patient_id": "p-1", "service_id": "cleaning", "appointment_at": "2026-03-10T11:00"}
	resp1, body1 := f.do(t, http.MethodPost, "/api/v1/public/appointments", payload, "Idempotency-Key", "k-1")
	resp2, body2 := f.do(t, http.MethodPost, "/api/v1/public/appointments", payload, "Idempotency-Key", "k-1")

	require.Equal(t, http.StatusCreated, resp1.StatusCode)
	assert.Equal(t, http.StatusCreated, resp2.StatusCode)
	assert.Equal(t, "true", resp2.Header.Get("Idempotent-Replayed"))
	assert.Equal(t, body1["id"], body2["id"])

	list, err := f.store.ListByDate(context.Background(), "2026-03-10", "")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestAdminCreateConfirmed(t *testing.T) {
	f := newFixture(t, nil)
	resp, body := f.do(t, http.MethodPost, "/api/v1/appointments", map[string]any{
		"patient_id": "p-1", "service_id": "rct", "appointment_at": "2026-03-10T17:00:00Z", "status": "confirmed",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "confirmed", body["status"])
	assert.Equal(t, "admin", body["source"])
	assert.NotEmpty(t, body["confirmed_at"])
}

func TestStatusUpdates(t *testing.T) {
	f := newFixture(t, nil)
	id := f.book(t, "2026-03-10T09:00")["id"].(string)
	path := "/api/v1/appointments/" + id + "/status"

	resp, body := f.do(t, http.MethodPatch, path, map[string]any{"status": "confirmed"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "confirmed", body["status"])

	resp, _ = f.do(t, http.MethodPatch, path, map[string]any{"status": "confirmed"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = f.do(t, http.MethodPatch, path, map[string]any{"status": "completed"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "completed", body["status"])

	resp, body = f.do(t, http.MethodPatch, path, map[string]any{"status": "cancelled"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "invalid_transition", body["code"])

	resp, _ = f.do(t, http.MethodPatch, path, map[string]any{"status": "archived"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = f.do(t, http.MethodPatch, "/api/v1/appointments/nope/status", map[string]any{"status": "confirmed"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", body["code"])
}

func TestCancelFreesSlotAndKeepsToken(t *testing.T) {
	f := newFixture(t, nil)
	id := f.book(t, "2026-03-10T09:00")["id"].(string)
	resp, _ := f.do(t, http.MethodPatch, "/api/v1/appointments/"+id+"/status", map[string]any{"status": "cancelled"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	again := f.book(t, "2026-03-10T09:00")
	assert.EqualValues(t, 2, again["token_number"])
}

func TestListAppointmentsQueueOrder(t *testing.T) {
	f := newFixture(t, nil)
	f.book(t, "2026-03-10T17:00")
	f.book(t, "2026-03-10T10:00")
	f.book(t, "2026-03-10T09:00")

	_, body := f.do(t, http.MethodGet, "/api/v1/appointments?date=2026-03-10&shift=morning", nil)
	items := body["data"].([]any)
	require.Len(t, items, 2)
	assert.EqualValues(t, 1, items[0].(map[string]any)["token_number"])
	assert.Equal(t, "10:00", items[0].(map[string]any)["time"])

	resp, _ := f.do(t, http.MethodGet, "/api/v1/appointments?date=2026-03-10&shift=night", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTokenFlow(t *testing.T) {
	f := newFixture(t, nil)
	id := f.book(t, "2026-03-10T09:00")["id"].(string)
	confirm, _, err := f.signer.Issue(id, actiontoken.ActionConfirm, 0)
	require.NoError(t, err)
	cancel, _, err := f.signer.Issue(id, actiontoken.ActionCancel, 0)
	require.NoError(t, err)

	resp, body := f.do(t, http.MethodGet, "/api/v1/public/appointments/verify-token?token="+confirm, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "valid", body["result"])
	assert.Equal(t, "confirm", body["action"])

	resp, body = f.do(t, http.MethodPost, "/api/v1/public/appointments/cancel?token="+confirm, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "token_invalid", body["code"])

	resp, body = f.do(t, http.MethodPost, "/api/v1/public/appointments/confirm?token="+confirm, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["result"])
	assert.Equal(t, "confirmed", body["appointment"].(map[string]any)["status"])

	resp, body = f.do(t, http.MethodPost, "/api/v1/public/appointments/confirm?token="+confirm, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "already_processed", body["result"])

	resp, body = f.do(t, http.MethodPost, "/api/v1/public/appointments/cancel?token="+cancel, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cancelled", body["appointment"].(map[string]any)["status"])

	resp, body = f.do(t, http.MethodPost, "/api/v1/public/appointments/confirm?token="+confirm, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "invalid_transition", body["code"])
}

func TestTokenRejectsTampering(t *testing.T) {
	f := newFixture(t, nil)
	resp, body := f.do(t, http.MethodGet, "/api/v1/public/appointments/verify-token?token=not.a.jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "token_invalid", body["code"])

	other, err := actiontoken.NewSigner([]byte("some-other-secret-abcdefghijk"), time.Hour)
	require.NoError(t, err)
	id := f.book(t, "2026-03-10T09:00")["id"].(string)
	forged, _, err := other.Issue(id, actiontoken.ActionCancel, 0)
	require.NoError(t, err)

	resp, _ = f.do(t, http.MethodPost, "/api/v1/public/appointments/cancel?token="+forged, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestExceptionsCRUD(t *testing.T) {
	f := newFixture(t, nil)

	resp, _ := f.do(t, http.MethodPut, "/api/v1/schedule/exceptions/2026-03-10", map[string]any{
		"morning_override": map[string]any{"enabled": false},
		"evening_override": map[string]any{"enabled": true, "start": "18:00"},
		"note":             "dentist at conference",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, body := f.do(t, http.MethodGet, "/api/v1/availability?service_id=cleaning&start=2026-03-10", nil)
	day := body["data"].(map[string]any)["2026-03-10"].(map[string]any)
	slots := day["available_slots"].([]any)
	assert.Equal(t, false, day["morning_open"])
	require.NotEmpty(t, slots)
	assert.Equal(t, "18:00", slots[0])
	assert.Equal(t, "20:30", slots[len(slots)-1])

	resp, body = f.do(t, http.MethodPost, "/api/v1/public/appointments", map[string]any{
		"patient_id": "p-1", "service_id": "cleaning", "appointment_at": "2026-03-10T09:00",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "outside_schedule", body["code"])

	_, body = f.do(t, http.MethodGet, "/api/v1/schedule/exceptions?start=2026-03-01&end=2026-03-31", nil)
	assert.Len(t, body["data"].([]any), 1)

	resp, _ = f.do(t, http.MethodDelete, "/api/v1/schedule/exceptions/2026-03-10", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, body = f.do(t, http.MethodDelete, "/api/v1/schedule/exceptions/2026-03-10", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", body["code"])
}

func TestExceptionValidation(t *testing.T) {
	f := newFixture(t, nil)
	resp, _ := f.do(t, http.MethodPut, "/api/v1/schedule/exceptions/2026-03-10", map[string]any{
		"morning_override": map[string]any{"enabled": true, "start": "12:00", "end": "10:00"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/api/v1/schedule/exceptions?start=2026-03-10&end=2026-03-01", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/api/v1/schedule/exceptions/March-10", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestScheduleConfigRoundTrip(t *testing.T) {
	f := newFixture(t, nil)
	resp, body := f.do(t, http.MethodGet, "/api/v1/schedule/config", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "schedule")

	st := storage.DefaultSettings()
	st.Schedule.ClosedWeekdays = []time.Weekday{time.Tuesday}
	resp, _ = f.do(t, http.MethodPut, "/api/v1/schedule/config", st)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// 2026-03-10 is a Tuesday.
	_, body = f.do(t, http.MethodGet, "/api/v1/availability?service_id=cleaning&start=2026-03-10", nil)
	day := body["data"].(map[string]any)["2026-03-10"].(map[string]any)
	assert.Empty(t, day["available_slots"])
	assert.Equal(t, false, day["morning_open"])

	bad := storage.DefaultSettings()
	bad.Schedule.Day.Morning.End = bad.Schedule.Day.Morning.Start
	resp, _ = f.do(t, http.MethodPut, "/api/v1/schedule/config", bad)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestScheduleConfigRejectsBreakingUpcomingException(t *testing.T) {
	f := newFixture(t, nil)
	evening := map[string]any{"evening_override": map[string]any{"enabled": true, "start": "14:00"}}
	resp, _ := f.do(t, http.MethodPut, "/api/v1/schedule/exceptions/2026-03-10", evening)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = f.do(t, http.MethodPut, "/api/v1/schedule/exceptions/2026-02-20", evening)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	longMorning := storage.DefaultSettings()
	longMorning.Schedule.Day.Morning.End = longMorning.Schedule.Day.Morning.End.Add(2 * time.Hour)
	resp, body := f.do(t, http.MethodPut, "/api/v1/schedule/config", longMorning)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_input", body["code"])
	assert.Contains(t, body["error"], "2026-03-10")

	resp, _ = f.do(t, http.MethodDelete, "/api/v1/schedule/exceptions/2026-03-10", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	// The 2026-02-20 exception is in the past and no longer blocks the change.
	resp, _ = f.do(t, http.MethodPut, "/api/v1/schedule/config", longMorning)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, body = f.do(t, http.MethodGet, "/api/v1/availability?service_id=cleaning&start=2026-03-10", nil)
	slots := body["data"].(map[string]any)["2026-03-10"].(map[string]any)["available_slots"].([]any)
	assert.Equal(t, "14:30", slots[11])
	assert.Equal(t, "17:00", slots[12])
}

func TestAdminActionsLogSubject(t *testing.T) {
	verifier, err := auth.NewHS256([]byte("admin-test-secret-0123456789"), "")
	require.NoError(t, err)
	f := newFixtureWithAdmin(t, nil, auth.RequireRole(verifier, auth.RoleAdmin))
	bearer, err := verifier.Sign("desk@clinic.example", auth.RoleAdmin, time.Minute)
	require.NoError(t, err)

	resp, _ := f.do(t, http.MethodGet, "/api/v1/schedule/config", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, created := f.do(t, http.MethodPost, "/api/v1/appointments", map[string]any{
		"patient_id": "p-1", "service_id": "cleaning", "appointment_at": "2026-03-03T09:00",
	}, "Authorization", "Bearer "+bearer)
	require.Equal(t, http.StatusCreated, resp.StatusCode, created)

	resp, _ = f.do(t, http.MethodPatch, "/api/v1/appointments/"+created["id"].(string)+"/status",
		map[string]any{"status": "cancelled"}, "Authorization", "Bearer "+bearer)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, f.logs.String(), "admin=desk@clinic.example")
}
