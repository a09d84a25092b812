package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"icalkit/internal/config"
	"icalkit/internal/ics"
	"icalkit/pkg/ical"
)

const feed = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//test//EN\r\n" +
	"BEGIN:VTIMEZONE\r\n" +
	"TZID:Fixed/Plus2\r\n" +
	"BEGIN:STANDARD\r\n" +
	"DTSTART:19700101T000000\r\n" +
	"TZOFFSETFROM:+0200\r\n" +
	"TZOFFSETTO:+0200\r\n" +
	"END:STANDARD\r\n" +
	"END:VTIMEZONE\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:weekly\r\n" +
	"DTSTAMP:20240101T000000Z\r\n" +
	"DTSTART;TZID=Fixed/Plus2:20240304T100000\r\n" +
	"DURATION:PT1H\r\n" +
	"RRULE:FREQ=WEEKLY;COUNT=3\r\n" +
	"SUMMARY:Weekly\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:once\r\n" +
	"DTSTAMP:20240101T000000Z\r\n" +
	"DTSTART:20240306T150000Z\r\n" +
	"DTEND:20240306T160000Z\r\n" +
	"SUMMARY:Once\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

const emptyFeed = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//test//EN\r\nEND:VCALENDAR\r\n"

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "team.ics")
	if err := os.WriteFile(path, []byte(feed), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg := config.DefaultConfig()
	cfg.ProdID = config.ProdIDConfig{Vendor: "Acme", Product: "Test"}
	cfg.Sources = []config.SourceConfig{{ID: "team", Path: path}}
	if mutate != nil {
		mutate(cfg)
	}
	s := NewServer(cfg, ics.NewLoader(filepath.Join(dir, "cache")))
	s.now = func() time.Time { return time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC) }
	return s, path
}

func getEvents(t *testing.T, h http.Handler, query string) eventsResponse {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events"+query, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var resp eventsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("health = %d %q", rec.Code, rec.Body)
	}
}

func TestEvents(t *testing.T) {
	s, _ := newTestServer(t, nil)
	resp := getEvents(t, s.Handler(), "?days=10&backfill=0")

	want := []struct {
		uid   string
		start time.Time
	}{
		{"weekly", time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)},
		{"once", time.Date(2024, 3, 6, 15, 0, 0, 0, time.UTC)},
		{"weekly", time.Date(2024, 3, 11, 8, 0, 0, 0, time.UTC)},
	}
	if len(resp.Occurrences) != len(want) {
		t.Fatalf("got %d occurrences, want %d: %+v", len(resp.Occurrences), len(want), resp.Occurrences)
	}
	for i, w := range want {
		got := resp.Occurrences[i]
		if got.UID != w.uid || !got.Start.Equal(w.start) {
			t.Errorf("occurrence %d = %s at %v, want %s at %v", i, got.UID, got.Start, w.uid, w.start)
		}
		if got.SourceID != "team" {
			t.Errorf("SourceID = %q", got.SourceID)
		}
	}
	if resp.DisplayTimeZone != "UTC" {
		t.Errorf("DisplayTimeZone = %q", resp.DisplayTimeZone)
	}
}

func TestEventsCacheClearedOnRefresh(t *testing.T) {
	s, path := newTestServer(t, nil)
	h := s.Handler()
	if n := len(getEvents(t, h, "").Occurrences); n == 0 {
		t.Fatal("no occurrences before refresh")
	}

	if err := os.WriteFile(path, []byte(emptyFeed), 0o600); err != nil {
		t.Fatal(err)
	}
	if n := len(getEvents(t, h, "").Occurrences); n == 0 {
		t.Error("cached response was not served")
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok":true`) {
		t.Fatalf("refresh = %d %s", rec.Code, rec.Body)
	}
	if n := len(getEvents(t, h, "").Occurrences); n != 0 {
		t.Errorf("got %d occurrences after refresh, want 0", n)
	}
}

func TestRefreshReportsFailures(t *testing.T) {
	s, _ := newTestServer(t, func(c *config.Config) {
		c.Sources = append(c.Sources, config.SourceConfig{ID: "gone", Path: "/nonexistent/gone.ics"})
	})
	if err := s.Refresh(context.Background()); err == nil {
		t.Fatal("Refresh succeeded with a missing source")
	}
	resp := getEvents(t, s.Handler(), "?days=10&backfill=0")
	if len(resp.Occurrences) != 3 {
		t.Errorf("got %d occurrences, want the healthy source's 3", len(resp.Occurrences))
	}
	if len(resp.SourceFailures) != 1 || !strings.Contains(resp.SourceFailures[0], "gone") {
		t.Errorf("SourceFailures = %v", resp.SourceFailures)
	}
}

func TestCalendarFeed(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/calendar.ics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("Content-Type = %q", ct)
	}
	body, _ := io.ReadAll(rec.Body)
	cal, err := ical.Parse(string(body))
	if err != nil {
		t.Fatalf("served calendar does not parse: %v\n%s", err, body)
	}
	if got := cal.Text("PRODID"); got != "-//Acme//Test//EN" {
		t.Errorf("PRODID = %q", got)
	}
	if n := len(cal.Events()); n != 2 {
		t.Errorf("got %d events, want 2", n)
	}
	if cal.Timezone("Fixed/Plus2") == nil {
		t.Error("VTIMEZONE not carried over")
	}
}

func TestBasicAuth(t *testing.T) {
	s, _ := newTestServer(t, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "u", Password: "p"}
	})
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health = %d, want open", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	if rec.Code != http.StatusUnauthorized || rec.Header().Get("WWW-Authenticate") == "" {
		t.Errorf("unauthenticated = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.SetBasicAuth("u", "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.SetBasicAuth("u", "p")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("authenticated = %d", rec.Code)
	}
}
