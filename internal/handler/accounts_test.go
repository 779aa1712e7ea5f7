package handler_test

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tennis-court-reservation/internal/clock"
	"github.com/iliyamo/tennis-court-reservation/internal/config"
	"github.com/iliyamo/tennis-court-reservation/internal/handler"
	"github.com/iliyamo/tennis-court-reservation/internal/model"
	"github.com/iliyamo/tennis-court-reservation/internal/repository"
	"github.com/iliyamo/tennis-court-reservation/internal/repository/memory"
	"github.com/iliyamo/tennis-court-reservation/internal/router"
	"github.com/iliyamo/tennis-court-reservation/internal/service"
	"github.com/iliyamo/tennis-court-reservation/internal/utils"
)

// fakeCourts keeps courts in a map.  Deleting a court that still has slots
// fails the way the MySQL foreign key does.
type fakeCourts struct {
	mu     sync.Mutex
	seq    uint64
	courts map[uint64]model.TennisCourt
	slots  service.ScheduleStore
}

func (f *fakeCourts) Create(_ context.Context, c *model.TennisCourt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	c.ID = f.seq
	f.courts[c.ID] = *c
	return nil
}

func (f *fakeCourts) GetByID(_ context.Context, id uint64) (*model.TennisCourt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.courts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (f *fakeCourts) ListAll(_ context.Context) ([]model.TennisCourt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.TennisCourt, 0, len(f.courts))
	for _, c := range f.courts {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeCourts) Update(_ context.Context, id uint64, name string) (*model.TennisCourt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.courts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c.Name = name
	f.courts[id] = c
	return &c, nil
}

func (f *fakeCourts) Delete(ctx context.Context, id uint64) error {
	slots, err := f.slots.ListByCourt(ctx, id)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.courts[id]; !ok {
		return repository.ErrNotFound
	}
	if len(slots) > 0 {
		return repository.ErrConflict
	}
	delete(f.courts, id)
	return nil
}

type fakeGuests struct {
	mu     sync.Mutex
	seq    uint64
	guests map[uint64]model.Guest
}

func (f *fakeGuests) Create(_ context.Context, name, email, password, role string, cost int) (uint64, error) {
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.guests {
		if g.Email == email {
			return 0, repository.ErrEmailExists
		}
	}
	f.seq++
	f.guests[f.seq] = model.Guest{ID: f.seq, Name: name, Email: email, PasswordHash: hash, Role: role}
	return f.seq, nil
}

func (f *fakeGuests) GetByEmail(_ context.Context, email string) (*model.Guest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.guests {
		if g.Email == email {
			return &g, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeGuests) GetByID(_ context.Context, id uint64) (*model.Guest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.guests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &g, nil
}

func (f *fakeGuests) ListAll(ctx context.Context) ([]model.Guest, error) {
	return f.filter(func(model.Guest) bool { return true }), nil
}

func (f *fakeGuests) ListByName(_ context.Context, name string) ([]model.Guest, error) {
	return f.filter(func(g model.Guest) bool { return g.Name == name }), nil
}

func (f *fakeGuests) filter(keep func(model.Guest) bool) []model.Guest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Guest, 0)
	for _, g := range f.guests {
		if keep(g) {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeGuests) UpdateName(_ context.Context, id uint64, name string) (*model.Guest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.guests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	g.Name = name
	f.guests[id] = g
	return &g, nil
}

func (f *fakeGuests) Delete(_ context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.guests[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.guests, id)
	return nil
}

type storedToken struct {
	guestID uint64
	exp     time.Time
	revoked bool
}

type fakeTokens struct {
	mu     sync.Mutex
	tokens map[string]*storedToken
}

func (f *fakeTokens) StoreRefresh(_ context.Context, guestID uint64, hash string, exp time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[hash] = &storedToken{guestID: guestID, exp: exp}
	return nil
}

func (f *fakeTokens) ValidateRefresh(_ context.Context, hash string, now time.Time) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tok, ok := f.tokens[hash]
	switch {
	case !ok:
		return 0, repository.ErrNotFound
	case tok.revoked:
		return 0, repository.ErrTokenRevoked
	case now.After(tok.exp):
		return 0, repository.ErrTokenExpired
	}
	return tok.guestID, nil
}

func (f *fakeTokens) RevokeByHash(_ context.Context, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	tok, ok := f.tokens[hash]
	if !ok || tok.revoked {
		return repository.ErrTokenRevoked
	}
	tok.revoked = true
	return nil
}

func (f *fakeTokens) RevokeAllForGuest(_ context.Context, guestID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tok := range f.tokens {
		if tok.guestID == guestID {
			tok.revoked = true
		}
	}
	return nil
}

type app struct {
	*server
	courts *fakeCourts
	guests *fakeGuests
	tokens *fakeTokens
}

// newApp serves every route the binary registers, minus Redis and RabbitMQ.
func newApp(t *testing.T) *app {
	t.Helper()
	store := memory.New()
	st := store.Stores()
	clk := clock.NewFixed(baseNow)

	courts := &fakeCourts{courts: map[uint64]model.TennisCourt{}, slots: st.Schedules}
	guests := &fakeGuests{guests: map[uint64]model.Guest{}}
	tokens := &fakeTokens{tokens: map[string]*storedToken{}}
	cfg := config.Config{
		JWTSecret:      secret,
		AccessTTLMin:   15,
		RefreshTTLDays: 7,
		BcryptCost:     4,
		AdminEmails:    map[string]bool{"boss@example.com": true},
	}

	schedules := service.NewScheduleService(st.Schedules, courts, clk)
	courtHandler := handler.NewCourtHandler(courts, schedules, nil)
	scheduleHandler := handler.NewScheduleHandler(schedules, nil)

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, guests, tokens), secret)
	router.RegisterPublic(e, courtHandler, scheduleHandler, nil)
	router.RegisterAdmin(e, courtHandler, scheduleHandler, handler.NewGuestHandler(guests), secret)

	return &app{
		server: &server{t: t, e: e, store: store},
		courts: courts,
		guests: guests,
		tokens: tokens,
	}
}

// register signs up through the API and returns the guest, access token and
// refresh token.
func (a *app) register(name, email string) (map[string]any, string, string) {
	a.t.Helper()
	code, body := a.do(http.MethodPost, "/v1/auth/register",
		`{"name":"`+name+`","email":"`+email+`","password":"correct-horse"}`, "")
	if code != http.StatusCreated {
		a.t.Fatalf("register %s: %d %v", email, code, body)
	}
	return body["guest"].(map[string]any),
		body["access"].(map[string]any)["token"].(string),
		body["refresh"].(map[string]any)["token"].(string)
}

func TestRegisterAndLogin(t *testing.T) {
	a := newApp(t)

	boss, _, _ := a.register("Boss", "Boss@Example.com")
	if boss["role"] != model.RoleAdmin {
		t.Fatalf("listed admin email registered as %v", boss["role"])
	}
	ana, access, _ := a.register("Ana", "ana@example.com")
	if ana["role"] != model.RoleGuest {
		t.Fatalf("plain email registered as %v", ana["role"])
	}
	if _, ok := ana["password_hash"]; ok {
		t.Fatal("password hash leaked in response")
	}

	code, body := a.do(http.MethodPost, "/v1/auth/register",
		`{"name":"Ana2","email":"ana@example.com","password":"correct-horse"}`, "")
	if code != http.StatusConflict || body["error"] != "email already exists" {
		t.Fatalf("duplicate email: %d %v", code, body)
	}
	if code, _ := a.do(http.MethodPost, "/v1/auth/register",
		`{"name":"Bo","email":"bo@example.com","password":"short"}`, ""); code != http.StatusBadRequest {
		t.Fatalf("short password: %d", code)
	}

	if code, _ := a.do(http.MethodPost, "/v1/auth/login",
		`{"email":"ana@example.com","password":"wrong-horse"}`, ""); code != http.StatusUnauthorized {
		t.Fatalf("wrong password: %d", code)
	}
	if code, _ := a.do(http.MethodPost, "/v1/auth/login",
		`{"email":"ANA@example.com","password":"correct-horse"}`, ""); code != http.StatusOK {
		t.Fatalf("login: %d", code)
	}

	code, body = a.do(http.MethodGet, "/v1/me", "", access)
	if code != http.StatusOK || body["user_id"] != ana["id"] || body["role"] != model.RoleGuest {
		t.Fatalf("me: %d %v", code, body)
	}
}

func TestRefreshRotationAndLogout(t *testing.T) {
	a := newApp(t)
	_, _, refresh := a.register("Ana", "ana@example.com")
	reqBody := func(tok string) string { return `{"refresh_token":"` + tok + `"}` }

	code, body := a.do(http.MethodPost, "/v1/auth/refresh", reqBody(refresh), "")
	if code != http.StatusOK {
		t.Fatalf("refresh: %d %v", code, body)
	}
	rotated := body["refresh"].(map[string]any)["token"].(string)
	if rotated == refresh {
		t.Fatal("refresh did not rotate the token")
	}

	// The rotated-out token is revoked.
	code, body = a.do(http.MethodPost, "/v1/auth/refresh", reqBody(refresh), "")
	if code != http.StatusUnauthorized || body["error"] != "invalid refresh" {
		t.Fatalf("reuse of rotated token: %d %v", code, body)
	}
	if code, _ := a.do(http.MethodPost, "/v1/auth/refresh-access", reqBody(refresh), ""); code != http.StatusUnauthorized {
		t.Fatalf("refresh-access with rotated token: %d", code)
	}

	// refresh-access leaves the refresh token usable.
	for i := 0; i < 2; i++ {
		code, body = a.do(http.MethodPost, "/v1/auth/refresh-access", reqBody(rotated), "")
		if code != http.StatusOK || body["access"].(map[string]any)["token"] == "" {
			t.Fatalf("refresh-access #%d: %d %v", i, code, body)
		}
	}

	if code, _ := a.do(http.MethodPost, "/v1/auth/logout", reqBody(rotated), ""); code != http.StatusNoContent {
		t.Fatalf("logout: %d", code)
	}
	if code, _ := a.do(http.MethodPost, "/v1/auth/refresh", reqBody(rotated), ""); code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout: %d", code)
	}
	if code, _ := a.do(http.MethodPost, "/v1/auth/refresh", `{}`, ""); code != http.StatusBadRequest {
		t.Fatalf("refresh without token: %d", code)
	}
}

func TestLogoutWithBearerRevokesEverySession(t *testing.T) {
	a := newApp(t)
	_, access, first := a.register("Ana", "ana@example.com")
	code, body := a.do(http.MethodPost, "/v1/auth/login", `{"email":"ana@example.com","password":"correct-horse"}`, "")
	if code != http.StatusOK {
		t.Fatalf("login: %d", code)
	}
	second := body["refresh"].(map[string]any)["token"].(string)

	if code, _ := a.do(http.MethodPost, "/v1/auth/logout", "", access); code != http.StatusNoContent {
		t.Fatalf("bearer logout: %d", code)
	}
	for _, tok := range []string{first, second} {
		if code, _ := a.do(http.MethodPost, "/v1/auth/refresh", `{"refresh_token":"`+tok+`"}`, ""); code != http.StatusUnauthorized {
			t.Fatalf("token survived logout: %d", code)
		}
	}
}

func TestGuestProfileAccess(t *testing.T) {
	a := newApp(t)
	ana, anaTok, _ := a.register("Ana", "ana@example.com")
	bo, _, _ := a.register("Bo", "bo@example.com")
	_, bossTok, _ := a.register("Boss", "boss@example.com")
	anaPath := idPath("/v1/guests", ana["id"].(float64))
	boPath := idPath("/v1/guests", bo["id"].(float64))

	if code, _ := a.do(http.MethodGet, boPath, "", anaTok); code != http.StatusForbidden {
		t.Fatalf("guest reading another profile: %d", code)
	}
	if code, _ := a.do(http.MethodPut, boPath, `{"name":"Mallory"}`, anaTok); code != http.StatusForbidden {
		t.Fatalf("guest renaming another profile: %d", code)
	}
	if code, _ := a.do(http.MethodGet, "/v1/guests", "", anaTok); code != http.StatusForbidden {
		t.Fatalf("guest listing guests: %d", code)
	}
	if code, _ := a.do(http.MethodDelete, boPath, "", anaTok); code != http.StatusForbidden {
		t.Fatalf("guest deleting a guest: %d", code)
	}

	code, body := a.do(http.MethodPut, anaPath, `{"name":" Ana Maria "}`, anaTok)
	if code != http.StatusOK || body["name"] != "Ana Maria" {
		t.Fatalf("rename self: %d %v", code, body)
	}
	if code, _ := a.do(http.MethodGet, anaPath, "", anaTok); code != http.StatusOK {
		t.Fatalf("read self: %d", code)
	}

	code, body = a.do(http.MethodGet, "/v1/guests", "", bossTok)
	if code != http.StatusOK || len(body["items"].([]any)) != 3 {
		t.Fatalf("admin list: %d %v", code, body)
	}
	code, body = a.do(http.MethodGet, "/v1/guests/search?name=Bo", "", bossTok)
	if code != http.StatusOK || len(body["items"].([]any)) != 1 {
		t.Fatalf("search by name: %d %v", code, body)
	}
	if code, _ := a.do(http.MethodGet, "/v1/guests/search", "", bossTok); code != http.StatusBadRequest {
		t.Fatalf("search without name: %d", code)
	}

	if code, _ := a.do(http.MethodDelete, boPath, "", bossTok); code != http.StatusNoContent {
		t.Fatalf("admin delete: %d", code)
	}
	code, body = a.do(http.MethodGet, boPath, "", bossTok)
	if code != http.StatusNotFound || body["error"] != "Guest not found." {
		t.Fatalf("deleted guest: %d %v", code, body)
	}
}

func TestCourtEndpoints(t *testing.T) {
	a := newApp(t)
	_, guestTok, _ := a.register("Ana", "ana@example.com")
	_, bossTok, _ := a.register("Boss", "boss@example.com")

	if code, _ := a.do(http.MethodPost, "/v1/tennis-courts", `{"name":"Center"}`, guestTok); code != http.StatusForbidden {
		t.Fatalf("guest creating court: %d", code)
	}
	if code, _ := a.do(http.MethodPost, "/v1/tennis-courts", `{"name":"  "}`, bossTok); code != http.StatusBadRequest {
		t.Fatalf("blank court name: %d", code)
	}
	code, body := a.do(http.MethodPost, "/v1/tennis-courts", `{"name":"Center"}`, bossTok)
	if code != http.StatusCreated {
		t.Fatalf("create court: %d %v", code, body)
	}
	center := body["id"].(float64)
	centerPath := idPath("/v1/tennis-courts", center)
	code, body = a.do(http.MethodPost, "/v1/tennis-courts", `{"name":"Side"}`, bossTok)
	if code != http.StatusCreated {
		t.Fatalf("create court: %d %v", code, body)
	}
	sidePath := idPath("/v1/tennis-courts", body["id"].(float64))

	code, body = a.do(http.MethodPut, centerPath, `{"name":"Center Court"}`, bossTok)
	if code != http.StatusOK || body["name"] != "Center Court" {
		t.Fatalf("rename court: %d %v", code, body)
	}
	code, body = a.do(http.MethodGet, "/v1/tennis-courts", "", "")
	if code != http.StatusOK || len(body["items"].([]any)) != 2 {
		t.Fatalf("list courts: %d %v", code, body)
	}

	// Slots come back ordered by start whatever the insertion order.
	late := a.store.AddSchedule(uint64(center), baseNow.Add(5*time.Hour))
	early := a.store.AddSchedule(uint64(center), baseNow.Add(2*time.Hour))
	code, body = a.do(http.MethodGet, centerPath+"/schedules", "", "")
	if code != http.StatusOK || body["name"] != "Center Court" {
		t.Fatalf("court with schedules: %d %v", code, body)
	}
	slots := body["schedules"].([]any)
	if len(slots) != 2 ||
		slots[0].(map[string]any)["id"] != float64(early.ID) ||
		slots[1].(map[string]any)["id"] != float64(late.ID) {
		t.Fatalf("slots out of order: %v", slots)
	}
	code, body = a.do(http.MethodGet, "/v1/tennis-courts/404/schedules", "", "")
	if code != http.StatusNotFound || body["error"] != "Tennis Court not found." {
		t.Fatalf("unknown court schedules: %d %v", code, body)
	}

	code, body = a.do(http.MethodDelete, centerPath, "", bossTok)
	if code != http.StatusBadRequest || body["error"] != "Tennis Court still has schedule slots." {
		t.Fatalf("delete court with slots: %d %v", code, body)
	}
	if code, _ := a.do(http.MethodDelete, sidePath, "", bossTok); code != http.StatusNoContent {
		t.Fatalf("delete empty court: %d", code)
	}
	code, body = a.do(http.MethodGet, sidePath, "", "")
	if code != http.StatusNotFound || body["error"] != "Tennis Court not found." {
		t.Fatalf("deleted court: %d %v", code, body)
	}
}
