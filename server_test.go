package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/andre-gcosta/App-Gestao-de-Eventos/extract"
)

// ── Fakes ────────────────────────────────────────────────────────────────────

type fakeUsers struct {
	mu     sync.Mutex
	byID   map[int64]User
	nextID int64
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: map[int64]User{}}
}

func (f *fakeUsers) Create(ctx context.Context, name, email, password string) (User, error) {
	if err := validateRegistration(name, email, password); err != nil {
		return User{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email {
			return User{}, fail(KindValidation, "email already registered")
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return User{}, err
	}
	f.nextID++
	u := User{ID: f.nextID, Name: name, Email: email, PasswordHash: string(hash), CreatedAt: time.Now()}
	f.byID[u.ID] = u
	return u, nil
}

func (f *fakeUsers) FindByEmail(ctx context.Context, email string) (User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, fail(KindNotFound, "user not found")
}

func (f *fakeUsers) FindByID(ctx context.Context, id int64) (User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return User{}, fail(KindNotFound, "user not found")
}

type fakeEvents struct {
	mu sync.Mutex
	m  map[string]Event
}

func newFakeEvents() *fakeEvents {
	return &fakeEvents{m: map[string]Event{}}
}

func (f *fakeEvents) Create(ctx context.Context, ev Event) (Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Status == "" {
		ev.Status = "scheduled"
	}
	f.m[ev.ID] = ev
	return ev, nil
}

func (f *fakeEvents) Get(ctx context.Context, id string) (Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ev, ok := f.m[id]; ok {
		return ev, nil
	}
	return Event{}, fail(KindNotFound, "event not found")
}

func (f *fakeEvents) List(ctx context.Context, userID int64, from, to time.Time) ([]Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Event
	for _, ev := range f.m {
		if ev.UserID != userID {
			continue
		}
		if !from.IsZero() && !to.IsZero() && (!ev.Start.Before(to) || !ev.End.After(from)) {
			continue
		}
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (f *fakeEvents) Update(ctx context.Context, ev Event) (Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.m[ev.ID]; !ok {
		return Event{}, fail(KindNotFound, "event not found")
	}
	f.m[ev.ID] = ev
	return ev, nil
}

func (f *fakeEvents) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.m[id]; !ok {
		return fail(KindNotFound, "event not found")
	}
	delete(f.m, id)
	return nil
}

type fakeExtractor struct {
	draft extract.Draft
	err   error
}

func (f *fakeExtractor) Extract(ctx context.Context, prompt string) (extract.Draft, error) {
	if f.err != nil {
		return extract.Draft{}, f.err
	}
	return f.draft, nil
}

// ── Fixture ──────────────────────────────────────────────────────────────────

var testNow = time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	srv     *server
	users   *fakeUsers
	events  *fakeEvents
	counter *fakeCounter
	ex      *fakeExtractor
	handler http.Handler
}

func newFixture() *fixture {
	f := &fixture{
		users:   newFakeUsers(),
		events:  newFakeEvents(),
		counter: newFakeCounter(),
		ex:      &fakeExtractor{},
	}
	f.srv = &server{
		users:     f.users,
		events:    f.events,
		quota:     &dailyQuota{counter: f.counter, limit: 10},
		extractor: f.ex,
		secret:    []byte("test-secret"),
		tokenTTL:  time.Hour,
		loc:       time.UTC,
		now:       func() time.Time { return testNow },
	}
	f.handler = f.srv.routes()
	return f
}

func (f *fixture) register(t *testing.T, name, email string) (User, string) {
	t.Helper()
	u, err := f.users.Create(context.Background(), name, email, "Str0ng-pass!")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	token, err := issueToken(f.srv.secret, u, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return u, token
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return v
}

// ── Auth ─────────────────────────────────────────────────────────────────────

func TestAuthRequired(t *testing.T) {
	f := newFixture()

	w := f.do(t, http.MethodGet, "/events", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("GET /events without token: expected 401, got %d", w.Code)
	}
	w = f.do(t, http.MethodPost, "/ai/events", "", map[string]string{"prompt": "x"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("POST /ai/events without token: expected 401, got %d", w.Code)
	}

	w = f.do(t, http.MethodGet, "/events", "not-a-token", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("garbage token: expected 401, got %d", w.Code)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture()

	w := f.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"name": "Alice", "email": "alice@example.com", "password": "Str0ng-pass!",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	resp := decodeBody[map[string]any](t, w)
	if resp["accessToken"] == "" || resp["accessToken"] == nil {
		t.Fatal("register: missing accessToken")
	}

	w = f.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "Str0ng-pass!",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", w.Code)
	}

	w = f.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "wrong",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: expected 401, got %d", w.Code)
	}
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture()
	cases := []struct {
		name                  string
		uname, email, pass    string
	}{
		{"short name", "A", "a@example.com", "Str0ng-pass!"},
		{"bad email", "Alice", "not-an-email", "Str0ng-pass!"},
		{"weak password", "Alice", "a@example.com", "password"},
		{"no special char", "Alice", "a@example.com", "Password1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/auth/register", "", map[string]string{
				"name": tc.uname, "email": tc.email, "password": tc.pass,
			})
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d (%s)", w.Code, w.Body.String())
			}
		})
	}
}

// ── Event CRUD ───────────────────────────────────────────────────────────────

func eventBody(title string, start, end time.Time) map[string]any {
	return map[string]any{
		"title":     title,
		"startDate": start.Format(time.RFC3339),
		"endDate":   end.Format(time.RFC3339),
	}
}

func TestEventCRUD(t *testing.T) {
	f := newFixture()
	_, token := f.register(t, "Alice", "alice@example.com")

	start := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	w := f.do(t, http.MethodPost, "/events", token, eventBody("Meeting", start, start.Add(time.Hour)))
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	created := decodeBody[eventJSON](t, w)
	if created.ID == "" || created.Status != "scheduled" {
		t.Fatalf("create: unexpected payload %+v", created)
	}

	w = f.do(t, http.MethodGet, "/events/"+created.ID, token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", w.Code)
	}
	got := decodeBody[eventJSON](t, w)
	if got.Title != "Meeting" || !got.StartDate.Equal(start) {
		t.Fatalf("get: round-trip mismatch %+v", got)
	}

	w = f.do(t, http.MethodPut, "/events/"+created.ID, token, eventBody("Renamed", start, start.Add(2*time.Hour)))
	if w.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	if got := decodeBody[eventJSON](t, w); got.Title != "Renamed" {
		t.Fatalf("update: title not applied: %+v", got)
	}

	w = f.do(t, http.MethodGet, "/events", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", w.Code)
	}
	if list := decodeBody[[]eventJSON](t, w); len(list) != 1 {
		t.Fatalf("list: expected 1 event, got %d", len(list))
	}

	w = f.do(t, http.MethodDelete, "/events/"+created.ID, token, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", w.Code)
	}
	w = f.do(t, http.MethodGet, "/events/"+created.ID, token, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("get after delete: expected 404, got %d", w.Code)
	}
}

func TestEventValidation(t *testing.T) {
	f := newFixture()
	_, token := f.register(t, "Alice", "alice@example.com")
	start := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		body map[string]any
	}{
		{"missing title", eventBody("", start, start.Add(time.Hour))},
		{"end before start", eventBody("X", start, start.Add(-time.Hour))},
		{"too short", eventBody("X", start, start.Add(10*time.Minute))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/events", token, tc.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d (%s)", w.Code, w.Body.String())
			}
		})
	}
}

func TestEventOwnership(t *testing.T) {
	f := newFixture()
	_, aliceToken := f.register(t, "Alice", "alice@example.com")
	_, bobToken := f.register(t, "Bob", "bob@example.com")

	start := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	w := f.do(t, http.MethodPost, "/events", aliceToken, eventBody("Private", start, start.Add(time.Hour)))
	created := decodeBody[eventJSON](t, w)

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		var body any
		if method == http.MethodPut {
			body = eventBody("Hijack", start, start.Add(time.Hour))
		}
		w := f.do(t, method, "/events/"+created.ID, bobToken, body)
		if w.Code != http.StatusForbidden {
			t.Errorf("%s as other user: expected 403, got %d", method, w.Code)
		}
	}

	// Bob's own listing stays empty.
	w = f.do(t, http.MethodGet, "/events", bobToken, nil)
	if list := decodeBody[[]eventJSON](t, w); len(list) != 0 {
		t.Errorf("bob's list should be empty, got %d", len(list))
	}
}

// ── Day layout ───────────────────────────────────────────────────────────────

func TestDayLayoutEndpoint(t *testing.T) {
	f := newFixture()
	user, token := f.register(t, "Alice", "alice@example.com")

	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	seed := []Event{
		{Title: "A", Start: day.Add(9 * time.Hour), End: day.Add(11 * time.Hour), UserID: user.ID},
		{Title: "B", Start: day.Add(10 * time.Hour), End: day.Add(12 * time.Hour), UserID: user.ID},
		{Title: "Other day", Start: day.Add(40 * time.Hour), End: day.Add(41 * time.Hour), UserID: user.ID},
	}
	for _, ev := range seed {
		if _, err := f.events.Create(context.Background(), ev); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	w := f.do(t, http.MethodGet, "/events/day?date=2024-01-10", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	got := decodeBody[[]positionedJSON](t, w)
	if len(got) != 2 {
		t.Fatalf("expected 2 positioned events, got %d", len(got))
	}
	for _, p := range got {
		if p.Width != 50 {
			t.Errorf("event %s: expected width 50, got %v", p.Event.Title, p.Width)
		}
	}
	if got[0].Left == got[1].Left {
		t.Errorf("overlapping events share a column: %+v", got)
	}

	w = f.do(t, http.MethodGet, "/events/day?date=wat", token, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad date: expected 400, got %d", w.Code)
	}
}

// ── Create by prompt ─────────────────────────────────────────────────────────

func TestCreateFromPrompt(t *testing.T) {
	f := newFixture()
	user, token := f.register(t, "Alice", "alice@example.com")

	f.ex.draft = extract.Draft{
		Title:    "Lunch",
		Location: extract.DefaultLocation,
		Status:   extract.DefaultStatus,
		Start:    time.Date(2024, 1, 10, 15, 0, 0, 0, time.UTC),
		End:      time.Date(2024, 1, 10, 16, 0, 0, 0, time.UTC),
	}

	w := f.do(t, http.MethodPost, "/ai/events", token, map[string]string{"prompt": "lunch tomorrow"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	created := decodeBody[eventJSON](t, w)
	if created.Title != "Lunch" || created.Location != extract.DefaultLocation ||
		created.Status != extract.DefaultStatus || created.UserID != user.ID {
		t.Fatalf("unexpected payload %+v", created)
	}
	if got := f.counter.counts[f.counter.key(user.ID, "2024-01-10")]; got != 1 {
		t.Fatalf("expected 1 logged request, got %d", got)
	}
}

func TestCreateFromPromptRateLimited(t *testing.T) {
	f := newFixture()
	user, token := f.register(t, "Alice", "alice@example.com")
	f.counter.counts[f.counter.key(user.ID, "2024-01-10")] = 10

	w := f.do(t, http.MethodPost, "/ai/events", token, map[string]string{"prompt": "lunch"})
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	// No extraction, no event.
	if len(f.events.m) != 0 {
		t.Fatalf("no event should be created, got %d", len(f.events.m))
	}
}

func TestCreateFromPromptExtractionFailure(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"parse error", &extract.ParseError{Reason: "no JSON object in reply"}, http.StatusUnprocessableEntity},
		{"date error", &extract.DateResolutionError{Field: "startDate", Text: "whenever"}, http.StatusUnprocessableEntity},
		{"timeout", fmt.Errorf("completion: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			_, token := f.register(t, "Alice", "alice@example.com")
			f.ex.err = tc.err

			w := f.do(t, http.MethodPost, "/ai/events", token, map[string]string{"prompt": "x"})
			if w.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d (%s)", tc.wantStatus, w.Code, w.Body.String())
			}
			if len(f.events.m) != 0 {
				t.Fatal("no partial event may be stored")
			}
			if tc.wantStatus == http.StatusUnprocessableEntity {
				resp := decodeBody[map[string]string](t, w)
				if resp["error"] != "could not create event from this text" {
					t.Fatalf("internal detail leaked: %q", resp["error"])
				}
				if strings.Contains(resp["error"], "JSON") || strings.Contains(resp["error"], "whenever") {
					t.Fatalf("internal detail leaked: %q", resp["error"])
				}
			}
		})
	}
}
