package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/bcrypt"

	"github.com/andre-gcosta/App-Gestao-de-Eventos/extract"
	"github.com/andre-gcosta/App-Gestao-de-Eventos/layout"
)

type userStore interface {
	Create(ctx context.Context, name, email, password string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByID(ctx context.Context, id int64) (User, error)
}

type eventStore interface {
	Create(ctx context.Context, ev Event) (Event, error)
	Get(ctx context.Context, id string) (Event, error)
	List(ctx context.Context, userID int64, from, to time.Time) ([]Event, error)
	Update(ctx context.Context, ev Event) (Event, error)
	Delete(ctx context.Context, id string) error
}

type promptExtractor interface {
	Extract(ctx context.Context, prompt string) (extract.Draft, error)
}

type server struct {
	users     userStore
	events    eventStore
	quota     *dailyQuota
	extractor promptExtractor
	secret    []byte
	tokenTTL  time.Duration
	loc       *time.Location
	now       func() time.Time
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Post("/auth/register", s.handleRegister)
	r.Post("/auth/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Route("/events", func(r chi.Router) {
			r.Get("/", s.handleListEvents)
			r.Post("/", s.handleCreateEvent)
			r.Get("/day", s.handleDayLayout)
			r.Get("/{id}", s.handleGetEvent)
			r.Put("/{id}", s.handleUpdateEvent)
			r.Delete("/{id}", s.handleDeleteEvent)
		})
		r.Post("/ai/events", s.handleCreateFromPrompt)
	})
	return r
}

// ── Wire shapes ──────────────────────────────────────────────────────────────

type eventJSON struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Status      string    `json:"status,omitempty"`
	StartDate   time.Time `json:"startDate"`
	EndDate     time.Time `json:"endDate"`
	UserID      int64     `json:"userId"`
}

func toWire(ev Event) eventJSON {
	return eventJSON{
		ID:          ev.ID,
		Title:       ev.Title,
		Description: ev.Description,
		Location:    ev.Location,
		Status:      ev.Status,
		StartDate:   ev.Start.UTC(),
		EndDate:     ev.End.UTC(),
		UserID:      ev.UserID,
	}
}

type eventInput struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Status      string    `json:"status"`
	StartDate   time.Time `json:"startDate"`
	EndDate     time.Time `json:"endDate"`
}

type userJSON struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fail(KindValidation, "invalid request body")
	}
	return nil
}

// ── Handlers ─────────────────────────────────────────────────────────────────

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	user, err := s.users.Create(r.Context(), in.Name, in.Email, in.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	token, err := issueToken(s.secret, user, s.tokenTTL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"accessToken": token,
		"user":        userJSON{ID: user.ID, Name: user.Name, Email: user.Email},
	})
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	// One failure path for unknown email and wrong password.
	user, err := s.users.FindByEmail(r.Context(), in.Email)
	if err != nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)) != nil {
		writeError(w, fail(KindAuthenticationRequired, "invalid credentials"))
		return
	}
	token, err := issueToken(s.secret, user, s.tokenTTL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"accessToken": token,
		"user":        userJSON{ID: user.ID, Name: user.Name, Email: user.Email},
	})
}

func (s *server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r.Context())

	var from, to time.Time
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, fail(KindValidation, "invalid from parameter"))
			return
		}
		from = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, fail(KindValidation, "invalid to parameter"))
			return
		}
		to = t
	}

	events, err := s.events.List(r.Context(), sess.UserID, from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]eventJSON, 0, len(events))
	for _, ev := range events {
		out = append(out, toWire(ev))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r.Context())
	var in eventInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	ev := Event{
		Title:       in.Title,
		Description: in.Description,
		Location:    in.Location,
		Status:      in.Status,
		Start:       in.StartDate,
		End:         in.EndDate,
		UserID:      sess.UserID,
	}
	if err := validateEvent(ev); err != nil {
		writeError(w, err)
		return
	}
	created, err := s.events.Create(r.Context(), ev)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWire(created))
}

// ownedEvent fetches the event and enforces ownership. Unknown ids are
// NotFound; someone else's event is AuthorizationDenied, not NotFound.
func (s *server) ownedEvent(r *http.Request) (Event, error) {
	sess, _ := sessionFrom(r.Context())
	ev, err := s.events.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return Event{}, err
	}
	if ev.UserID != sess.UserID {
		return Event{}, fail(KindAuthorizationDenied, "access denied")
	}
	return ev, nil
}

func (s *server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := s.ownedEvent(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWire(ev))
}

func (s *server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := s.ownedEvent(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var in eventInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	ev.Title = in.Title
	ev.Description = in.Description
	ev.Location = in.Location
	ev.Status = in.Status
	ev.Start = in.StartDate
	ev.End = in.EndDate
	if err := validateEvent(ev); err != nil {
		writeError(w, err)
		return
	}
	updated, err := s.events.Update(r.Context(), ev)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWire(updated))
}

func (s *server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := s.ownedEvent(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.events.Delete(r.Context(), ev.ID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type positionedJSON struct {
	Event  eventJSON `json:"event"`
	Top    float64   `json:"top"`
	Height float64   `json:"height"`
	Left   float64   `json:"left"`
	Width  float64   `json:"width"`
}

// handleDayLayout returns the day's events as screen rectangles: overlapping
// events packed into columns, verticals from minutes of the day.
func (s *server) handleDayLayout(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r.Context())

	dateStr := r.URL.Query().Get("date")
	if dateStr == "" {
		dateStr = dayKey(s.now().In(s.loc))
	}
	day, err := time.ParseInLocation("2006-01-02", dateStr, s.loc)
	if err != nil {
		writeError(w, fail(KindValidation, "invalid date parameter, want YYYY-MM-DD"))
		return
	}
	dayStart := day
	dayEnd := day.Add(24 * time.Hour)

	events, err := s.events.List(r.Context(), sess.UserID, dayStart, dayEnd)
	if err != nil {
		writeError(w, err)
		return
	}

	byID := make(map[string]Event, len(events))
	spans := make([]layout.Event, 0, len(events))
	for _, ev := range events {
		byID[ev.ID] = ev
		spans = append(spans, layout.Event{ID: ev.ID, Start: ev.Start, End: ev.End})
	}

	out := make([]positionedJSON, 0, len(spans))
	for _, p := range layout.Compute(spans, dayStart, dayEnd) {
		out = append(out, positionedJSON{
			Event:  toWire(byID[p.Event.ID]),
			Top:    p.Box.Top,
			Height: p.Box.Height,
			Left:   p.Box.Left,
			Width:  p.Box.Width,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleCreateFromPrompt is the create-by-prompt flow: quota check, model
// round-trip, persistence. Any extraction failure aborts the whole flow; a
// partially-populated event is never stored.
func (s *server) handleCreateFromPrompt(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r.Context())
	var in struct {
		Prompt string `json:"prompt"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	if in.Prompt == "" {
		writeError(w, fail(KindValidation, "prompt is required"))
		return
	}

	if err := s.quota.Allow(r.Context(), sess.UserID, s.now()); err != nil {
		writeError(w, err)
		return
	}

	draft, err := s.extractor.Extract(r.Context(), in.Prompt)
	if err != nil {
		writeError(w, classifyExtraction(err))
		return
	}

	created, err := s.events.Create(r.Context(), Event{
		Title:       draft.Title,
		Description: draft.Description,
		Location:    draft.Location,
		Status:      draft.Status,
		Start:       draft.Start,
		End:         draft.End,
		UserID:      sess.UserID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWire(created))
}
