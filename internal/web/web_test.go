package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"calgrid/internal/config"
	"calgrid/internal/model"
	"calgrid/internal/store"
	"calgrid/internal/style"
)

func seedEvents() []model.Event {
	return []model.Event{{
		ID:       "kickoff",
		Title:    "Kickoff",
		Category: model.CategoryMeeting,
		Start:    time.Date(2025, 5, 6, 10, 0, 0, 0, time.UTC),
		End:      time.Date(2025, 5, 6, 11, 0, 0, 0, time.UTC),
	}}
}

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, *store.Store) {
	t.Helper()
	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	cfg.Normalize()

	st := store.New(seedEvents())
	s := NewServer(cfg, st)
	s.now = func() time.Time { return time.Date(2025, 5, 6, 9, 0, 0, 0, time.UTC) }
	t.Cleanup(s.Close)
	return s, st
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndBasicAuth(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "secret"}
	})
	h := s.Handler()

	if rec := do(t, h, http.MethodGet, "/health", ""); rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("health: %d %q", rec.Code, rec.Body.String())
	}
	if rec := do(t, h, http.MethodGet, "/api/events", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.SetBasicAuth("admin", "wrong")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad password, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.SetBasicAuth("admin", "secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with credentials, got %d", rec.Code)
	}
}

func TestViewAPI(t *testing.T) {
	t.Parallel()

	s, st := newTestServer(t, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/view?mode=week&date=2025-05-06", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	var resp struct {
		Version uint64 `json:"version"`
		View    struct {
			Mode string `json:"mode"`
			Days []struct {
				Key    string `json:"key"`
				Placed []struct {
					Top    float64 `json:"top"`
					Height float64 `json:"height"`
				} `json:"placed"`
			} `json:"days"`
		} `json:"view"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.View.Mode != "week" || len(resp.View.Days) != 7 {
		t.Fatalf("unexpected view %+v", resp.View)
	}
	// Sunday start: May 4..10, Kickoff on Tuesday at 10:00.
	tue := resp.View.Days[2]
	if tue.Key != "2025-05-06" || len(tue.Placed) != 1 || tue.Placed[0].Top != 120 || tue.Placed[0].Height != 60 {
		t.Fatalf("unexpected Tuesday column %+v", tue)
	}

	if _, err := st.Add(model.Event{
		Title: "Lunch",
		Start: time.Date(2025, 5, 6, 12, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 5, 6, 13, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatal(err)
	}
	rec = do(t, h, http.MethodGet, "/api/view?mode=week&date=2025-05-06", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Version != 2 || len(resp.View.Days[2].Placed) != 2 {
		t.Fatalf("cached view served after mutation: version %d", resp.Version)
	}

	for _, target := range []string{"/api/view?mode=year", "/api/view?mode=day&date=06/05/2025"} {
		if rec := do(t, h, http.MethodGet, target, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", target, rec.Code)
		}
	}
	if rec := do(t, h, http.MethodGet, "/api/view", ""); rec.Code != http.StatusOK {
		t.Errorf("defaults should apply, got %d", rec.Code)
	}
}

func cachedViews(s *Server) int {
	s.viewsMu.RLock()
	defer s.viewsMu.RUnlock()
	return len(s.views)
}

func TestViewCacheEviction(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, nil)
	clock := time.Date(2025, 5, 6, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }
	h := s.Handler()

	get := func(day time.Time) {
		t.Helper()
		target := "/api/view?mode=day&date=" + day.Format("2006-01-02")
		if rec := do(t, h, http.MethodGet, target, ""); rec.Code != http.StatusOK {
			t.Fatalf("%s: status %d", target, rec.Code)
		}
	}

	first := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		get(first.AddDate(0, 0, i))
	}
	if n := cachedViews(s); n != 10 {
		t.Fatalf("expected 10 cached views, got %d", n)
	}

	clock = clock.Add(viewCacheTTL)
	get(first.AddDate(0, 0, 10))
	if n := cachedViews(s); n != 1 {
		t.Fatalf("expired views should be dropped, %d left", n)
	}

	for i := 0; i < 2*maxCachedViews; i++ {
		get(first.AddDate(0, 0, i))
		if n := cachedViews(s); n > maxCachedViews {
			t.Fatalf("cache grew to %d entries", n)
		}
	}
}

func TestEventsCRUD(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/events",
		`{"title":"Design sync","category":"design","start":"2025-05-07T13:00:00Z","end":"2025-05-07T14:00:00Z"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body)
	}
	var created model.Event
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.ID == "" || created.Category != model.CategoryDesign {
		t.Fatalf("unexpected event %+v", created)
	}

	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   int
	}{
		{"inverted range", http.MethodPost, "/api/events", `{"title":"x","start":"2025-05-07T14:00:00Z","end":"2025-05-07T13:00:00Z"}`, http.StatusUnprocessableEntity},
		{"missing title", http.MethodPost, "/api/events", `{"start":"2025-05-07T13:00:00Z","end":"2025-05-07T14:00:00Z"}`, http.StatusBadRequest},
		{"bad json", http.MethodPost, "/api/events", `{`, http.StatusBadRequest},
		{"get", http.MethodGet, "/api/events/" + created.ID, "", http.StatusOK},
		{"get missing", http.MethodGet, "/api/events/nope", "", http.StatusNotFound},
		{"patch wrong type", http.MethodPatch, "/api/events/" + created.ID, `{"title":5}`, http.StatusBadRequest},
		{"patch bad time", http.MethodPatch, "/api/events/" + created.ID, `{"end":"tomorrow"}`, http.StatusBadRequest},
		{"patch inverted", http.MethodPatch, "/api/events/" + created.ID, `{"end":"2025-05-07T12:00:00Z"}`, http.StatusUnprocessableEntity},
		{"patch missing", http.MethodPatch, "/api/events/nope", `{"title":"x"}`, http.StatusNotFound},
		{"delete missing", http.MethodDelete, "/api/events/nope", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(t, h, tt.method, tt.target, tt.body); rec.Code != tt.want {
				t.Errorf("got %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
		})
	}

	rec = do(t, h, http.MethodPatch, "/api/events/"+created.ID, `{"title":"Renamed","category":"client","extra":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch: %d %s", rec.Code, rec.Body)
	}
	var patched model.Event
	if err := json.Unmarshal(rec.Body.Bytes(), &patched); err != nil {
		t.Fatal(err)
	}
	if patched.Title != "Renamed" || patched.Category != model.CategoryClient || !patched.Start.Equal(created.Start) {
		t.Fatalf("unexpected patch result %+v", patched)
	}

	if rec := do(t, h, http.MethodDelete, "/api/events/"+created.ID, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/api/events", "")
	var list eventsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Events) != 1 || list.Events[0].ID != "kickoff" {
		t.Fatalf("unexpected list %+v", list.Events)
	}
}

func TestCategoriesAndExport(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, func(c *config.Config) {
		c.Categories = map[string]style.Style{"meeting": {Color: "teal", Icon: "users", Label: "Sync"}}
	})
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/categories", "")
	var entries []style.Entry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != len(model.Categories) || entries[0].Color != "teal" {
		t.Fatalf("unexpected categories %+v", entries)
	}

	rec = do(t, h, http.MethodGet, "/api/export.ics", "")
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "BEGIN:VEVENT") || !strings.Contains(body, "SUMMARY:Kickoff") {
		t.Errorf("export missing event:\n%s", body)
	}
}

func TestCalendarPage(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, nil)
	h := s.Handler()

	tests := []struct {
		name     string
		target   string
		want     int
		contains []string
	}{
		{"month", "/calendar?view=month&date=2025-05-06", http.StatusOK, []string{`data-ready="true"`, "May 2025", "Kickoff"}},
		{"week", "/calendar?view=week&date=2025-05-06", http.StatusOK, []string{"top: 120px", "Kickoff"}},
		{"day", "/calendar?view=day&date=2025-05-06", http.StatusOK, []string{"Tuesday, May 6, 2025", "top: 160px"}},
		{"agenda", "/calendar?view=agenda&date=2025-05-06", http.StatusOK, []string{"Upcoming", "Kickoff"}},
		{"create", "/calendar?create=1", http.StatusOK, []string{"New event", `data-mode="creating"`}},
		{"selected", "/calendar?selected=kickoff", http.StatusOK, []string{`data-mode="viewing"`, "edit=kickoff"}},
		{"edit", "/calendar?edit=kickoff", http.StatusOK, []string{"Edit event", `value="Kickoff"`}},
		{"edit without selection", "/calendar?edit=", http.StatusBadRequest, nil},
		{"edit missing", "/calendar?edit=nope", http.StatusNotFound, nil},
		{"bad view", "/calendar?view=year", http.StatusBadRequest, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, tt.target, "")
			if rec.Code != tt.want {
				t.Fatalf("got %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
			for _, want := range tt.contains {
				if !strings.Contains(rec.Body.String(), want) {
					t.Errorf("page does not contain %q", want)
				}
			}
		})
	}
}

func TestWebSocketBroadcast(t *testing.T) {
	t.Parallel()

	s, st := newTestServer(t, nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg wsMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("initial message: %v", err)
	}
	if msg.Type != "snapshot" || msg.Version != 1 || msg.Count != 1 {
		t.Fatalf("unexpected initial message %+v", msg)
	}

	if err := st.Delete("kickoff"); err != nil {
		t.Fatal(err)
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if msg.Version != 2 || msg.Count != 0 {
		t.Fatalf("unexpected broadcast %+v", msg)
	}
}

func TestParsePatch(t *testing.T) {
	t.Parallel()

	p, err := parsePatch([]byte(`{"location":"Room 2","all_day":true,"attendees":[{"name":"Sam","email":"sam@example.com"}]}`))
	if err != nil {
		t.Fatalf("parsePatch: %v", err)
	}
	e := seedEvents()[0]
	p.apply(&e)
	if e.Location != "Room 2" || !e.AllDay || e.Title != "Kickoff" {
		t.Fatalf("unexpected event %+v", e)
	}
	if len(e.Attendees) != 1 || e.Attendees[0].Email != "sam@example.com" {
		t.Fatalf("attendees = %+v", e.Attendees)
	}

	for _, body := range []string{`[]`, `{"all_day":"yes"}`, `{"attendees":{}}`, `not json`} {
		if _, err := parsePatch([]byte(body)); err == nil {
			t.Errorf("expected error for %s", body)
		}
	}
}
