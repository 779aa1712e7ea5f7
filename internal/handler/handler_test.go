package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tennis-court-reservation/internal/clock"
	"github.com/iliyamo/tennis-court-reservation/internal/handler"
	"github.com/iliyamo/tennis-court-reservation/internal/middleware"
	"github.com/iliyamo/tennis-court-reservation/internal/model"
	"github.com/iliyamo/tennis-court-reservation/internal/repository/memory"
	"github.com/iliyamo/tennis-court-reservation/internal/router"
	"github.com/iliyamo/tennis-court-reservation/internal/service"
	"github.com/iliyamo/tennis-court-reservation/internal/utils"
)

const secret = "test-secret"

var baseNow = time.Date(2030, 5, 1, 10, 0, 0, 0, time.UTC)

type server struct {
	t     *testing.T
	e     *echo.Echo
	store *memory.Store
	court model.TennisCourt
}

func newServer(t *testing.T) *server {
	t.Helper()
	store := memory.New()
	clk := clock.NewFixed(baseNow)
	st := store.Stores()

	reservations := service.NewReservationService(st, store, clk, nil)
	schedules := handler.NewScheduleHandler(service.NewScheduleService(st.Schedules, st.Courts, clk), nil)

	e := echo.New()
	passThrough := func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	router.RegisterReservations(e, handler.NewReservationHandler(reservations), secret, passThrough)
	e.GET("/v1/schedules", schedules.ListSchedules)
	e.GET("/v1/schedules/:id", schedules.GetSchedule)
	e.POST("/v1/schedules", schedules.CreateSchedule,
		middleware.JWTAuth(secret), middleware.RequireRole(model.RoleAdmin))

	return &server{t: t, e: e, store: store, court: store.AddCourt("Center")}
}

func (s *server) token(g model.Guest) string {
	s.t.Helper()
	tok, err := utils.NewAccessToken(secret, g.ID, g.Role, 10)
	if err != nil {
		s.t.Fatalf("NewAccessToken: %v", err)
	}
	return tok.Token
}

func (s *server) do(method, path, body, token string) (int, map[string]any) {
	s.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	out := map[string]any{}
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			s.t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec.Code, out
}

func idPath(prefix string, id float64) string {
	return prefix + "/" + jsonNumber(id)
}

// jsonNumber renders ids the way they come back from decoded bodies.
func jsonNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func TestReservationLifecycleOverHTTP(t *testing.T) {
	s := newServer(t)
	ana := s.store.AddGuest("Ana", "ana@example.com", model.RoleGuest)
	bo := s.store.AddGuest("Bo", "bo@example.com", model.RoleGuest)
	admin := s.store.AddGuest("Root", "root@example.com", model.RoleAdmin)
	slot := s.store.AddSchedule(s.court.ID, baseNow.Add(5*time.Hour))
	later := s.store.AddSchedule(s.court.ID, baseNow.Add(30*time.Hour))

	code, body := s.do(http.MethodPost, "/v1/reservations", `{"schedule_id":`+jsonNumber(float64(slot.ID))+`}`, s.token(ana))
	if code != http.StatusCreated {
		t.Fatalf("book: %d %v", code, body)
	}
	if body["reservation_status"] != "READY_TO_PLAY" || body["value_cents"] != float64(1000) {
		t.Fatalf("book body %v", body)
	}
	resID := body["id"].(float64)
	resPath := idPath("/v1/reservations", resID)

	code, body = s.do(http.MethodPost, "/v1/reservations", `{"schedule_id":`+jsonNumber(float64(slot.ID))+`}`, s.token(bo))
	if code != http.StatusConflict || body["error"] != "Reservation already exists." {
		t.Fatalf("double booking: %d %v", code, body)
	}

	if code, _ := s.do(http.MethodGet, resPath, "", s.token(bo)); code != http.StatusForbidden {
		t.Fatalf("other guest read: %d", code)
	}
	if code, _ := s.do(http.MethodGet, resPath, "", s.token(admin)); code != http.StatusOK {
		t.Fatalf("admin read: %d", code)
	}
	if code, _ := s.do(http.MethodDelete, resPath, "", s.token(bo)); code != http.StatusForbidden {
		t.Fatalf("other guest cancel: %d", code)
	}

	code, body = s.do(http.MethodPut, resPath+"/"+jsonNumber(float64(slot.ID)), "", s.token(ana))
	if code != http.StatusBadRequest || body["error"] != "Cannot reschedule to the same slot." {
		t.Fatalf("same-slot reschedule: %d %v", code, body)
	}

	code, body = s.do(http.MethodPut, resPath+"/"+jsonNumber(float64(later.ID)), "", s.token(ana))
	if code != http.StatusOK {
		t.Fatalf("reschedule: %d %v", code, body)
	}
	if body["previous_reservation_id"] != resID || body["reservation_status"] != "READY_TO_PLAY" {
		t.Fatalf("reschedule body %v", body)
	}
	nextPath := idPath("/v1/reservations", body["id"].(float64))

	code, body = s.do(http.MethodGet, resPath, "", s.token(ana))
	if code != http.StatusOK || body["reservation_status"] != "RESCHEDULED" || body["refund_value_cents"] != float64(500) {
		t.Fatalf("previous after reschedule: %d %v", code, body)
	}

	code, body = s.do(http.MethodDelete, nextPath, "", s.token(ana))
	if code != http.StatusOK || body["reservation_status"] != "CANCELLED" || body["refund_value_cents"] != float64(1000) || body["value_cents"] != float64(0) {
		t.Fatalf("cancel: %d %v", code, body)
	}

	code, body = s.do(http.MethodGet, "/v1/my-reservations", "", s.token(ana))
	if code != http.StatusOK {
		t.Fatalf("mine: %d", code)
	}
	if items := body["items"].([]any); len(items) != 2 {
		t.Fatalf("mine has %d items, want 2", len(items))
	}
}

func TestReservationRequestErrors(t *testing.T) {
	s := newServer(t)
	ana := s.store.AddGuest("Ana", "ana@example.com", model.RoleGuest)
	tok := s.token(ana)

	if code, _ := s.do(http.MethodGet, "/v1/my-reservations", "", ""); code != http.StatusUnauthorized {
		t.Fatalf("no token: %d", code)
	}
	if code, _ := s.do(http.MethodGet, "/v1/reservations/abc", "", tok); code != http.StatusBadRequest {
		t.Fatalf("bad id: %d", code)
	}
	code, body := s.do(http.MethodGet, "/v1/reservations/77", "", tok)
	if code != http.StatusNotFound || body["error"] != "Reservation not found." {
		t.Fatalf("missing reservation: %d %v", code, body)
	}
	code, body = s.do(http.MethodPost, "/v1/reservations", `{"schedule_id":55}`, tok)
	if code != http.StatusNotFound || body["error"] != "Schedule (#55) was not found" {
		t.Fatalf("missing slot: %d %v", code, body)
	}
	if code, _ := s.do(http.MethodPost, "/v1/reservations", `{}`, tok); code != http.StatusBadRequest {
		t.Fatalf("empty body: %d", code)
	}

	past := s.store.AddSchedule(s.court.ID, baseNow.Add(-time.Hour))
	code, body = s.do(http.MethodPost, "/v1/reservations", `{"schedule_id":`+jsonNumber(float64(past.ID))+`}`, tok)
	if code != http.StatusBadRequest || body["error"] != "It is forbidden to reserve on past." {
		t.Fatalf("past slot: %d %v", code, body)
	}

	// Only ADMIN may book on behalf of another guest.
	bo := s.store.AddGuest("Bo", "bo@example.com", model.RoleGuest)
	slot := s.store.AddSchedule(s.court.ID, baseNow.Add(3*time.Hour))
	payload := `{"schedule_id":` + jsonNumber(float64(slot.ID)) + `,"guest_id":` + jsonNumber(float64(bo.ID)) + `}`
	if code, _ := s.do(http.MethodPost, "/v1/reservations", payload, tok); code != http.StatusForbidden {
		t.Fatalf("guest booking for another: %d", code)
	}
	admin := s.store.AddGuest("Root", "root@example.com", model.RoleAdmin)
	code, body = s.do(http.MethodPost, "/v1/reservations", payload, s.token(admin))
	if code != http.StatusCreated || body["guest_id"] != float64(bo.ID) {
		t.Fatalf("admin booking for guest: %d %v", code, body)
	}
}

func TestScheduleEndpoints(t *testing.T) {
	s := newServer(t)
	guest := s.store.AddGuest("Ana", "ana@example.com", model.RoleGuest)
	admin := s.store.AddGuest("Root", "root@example.com", model.RoleAdmin)

	start := baseNow.Add(2 * time.Hour).Format(time.RFC3339)
	payload := `{"tennis_court_id":` + jsonNumber(float64(s.court.ID)) + `,"start_date_time":"` + start + `"}`

	if code, _ := s.do(http.MethodPost, "/v1/schedules", payload, s.token(guest)); code != http.StatusForbidden {
		t.Fatalf("guest creating slot: %d", code)
	}
	code, body := s.do(http.MethodPost, "/v1/schedules", payload, s.token(admin))
	if code != http.StatusCreated {
		t.Fatalf("create slot: %d %v", code, body)
	}
	code, body = s.do(http.MethodPost, "/v1/schedules", payload, s.token(admin))
	if code != http.StatusConflict || body["error"] != "Schedule slot already exists." {
		t.Fatalf("duplicate slot: %d %v", code, body)
	}

	pastPayload := `{"tennis_court_id":` + jsonNumber(float64(s.court.ID)) + `,"start_date_time":"` + baseNow.Add(-time.Hour).Format(time.RFC3339) + `"}`
	code, body = s.do(http.MethodPost, "/v1/schedules", pastPayload, s.token(admin))
	if code != http.StatusBadRequest || body["error"] != "It's forbidden add slots on the past" {
		t.Fatalf("past slot: %d %v", code, body)
	}

	q := "/v1/schedules?start=" + baseNow.Format(time.RFC3339) + "&end=" + baseNow.Add(4*time.Hour).Format(time.RFC3339)
	code, body = s.do(http.MethodGet, q, "", "")
	if code != http.StatusOK || len(body["items"].([]any)) != 1 {
		t.Fatalf("range list: %d %v", code, body)
	}
	// An unescaped "+02:00" offset decodes to a space and still parses.
	code, body = s.do(http.MethodGet, "/v1/schedules?start=2030-05-01T12:00:00+02:00&end=2030-05-01T16:00:00+02:00", "", "")
	if code != http.StatusOK || len(body["items"].([]any)) != 1 {
		t.Fatalf("range with unescaped offset: %d %v", code, body)
	}
	code, body = s.do(http.MethodGet, "/v1/schedules?start="+baseNow.Add(4*time.Hour).Format(time.RFC3339)+"&end="+baseNow.Format(time.RFC3339), "", "")
	if code != http.StatusOK || len(body["items"].([]any)) != 0 {
		t.Fatalf("reversed range: %d %v", code, body)
	}
	if code, _ := s.do(http.MethodGet, "/v1/schedules?start=yesterday&end=today", "", ""); code != http.StatusBadRequest {
		t.Fatalf("bad range: %d", code)
	}
	code, body = s.do(http.MethodGet, "/v1/schedules/999", "", "")
	if code != http.StatusNotFound || body["error"] != "Schedule (#999) was not found" {
		t.Fatalf("missing slot: %d %v", code, body)
	}
}
