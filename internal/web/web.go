package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"icalkit/internal/config"
	"icalkit/internal/ics"
	appLog "icalkit/internal/log"
	"icalkit/pkg/ical"
)

const eventsCacheTTL = 30 * time.Second

// Server provides HTTP APIs over the configured calendar sources.
type Server struct {
	cfg       *config.Config
	loader    *ics.Loader
	parseOpts []ical.ParseOption
	mux       *http.ServeMux
	now       func() time.Time

	refreshMu sync.Mutex // serializes Refresh

	snapMu sync.RWMutex
	snap   *snapshot

	// In-memory cache for /api/events responses keyed by query, to avoid
	// redundant expansion work on every HTTP request.
	eventsMu    sync.RWMutex
	eventsCache map[string]*eventsCache
}

// snapshot is the result of the last refresh.
type snapshot struct {
	events    []ics.ParsedEvent
	calendar  *ical.Component
	failures  []string
	updatedAt time.Time
}

// NewServer constructs a new Server. parseOpts are applied to every source,
// typically to supply shared VTIMEZONE definitions.
func NewServer(cfg *config.Config, loader *ics.Loader, parseOpts ...ical.ParseOption) *Server {
	s := &Server{
		cfg:         cfg,
		loader:      loader,
		parseOpts:   parseOpts,
		mux:         http.NewServeMux(),
		now:         time.Now,
		eventsCache: make(map[string]*eventsCache),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password disables auth.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="icalkit", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// StartServer serves s on cfg.Listen until ctx is canceled, then shuts
// down gracefully.
func StartServer(ctx context.Context, s *Server) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("GET /api/calendar.ics", s.handleCalendar)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
}

// Refresh reloads every source, replacing the snapshot. Sources that fail
// are logged and left out; the error reports them all.
func (s *Server) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	results, errs := s.loader.LoadAll(ctx, ics.SourcesFromConfig(s.cfg.Sources))

	merged := ical.NewCalendar(ical.WithProdID(s.cfg.ProdID.Vendor, s.cfg.ProdID.Product))
	seenTZ := make(map[string]bool)
	var events []ics.ParsedEvent

	opts := append([]ical.ParseOption{ical.WithZoneFallback(ics.IANAZones)}, s.parseOpts...)
	for _, res := range results {
		cal, err := ical.Parse(string(res.Body), opts...)
		if err != nil {
			appLog.Error("refresh: parse failed for source", err, "id", res.Source.ID)
			errs = append(errs, err)
			continue
		}
		events = append(events, ics.EventsOf(res.Source, cal)...)
		for _, tz := range cal.Timezones() {
			if !seenTZ[tz.ID()] {
				seenTZ[tz.ID()] = true
				merged.AddComponent(tz.Component)
			}
		}
		for _, ev := range cal.Events() {
			merged.AddComponent(ev.Component)
		}
	}

	snap := &snapshot{events: events, calendar: merged, updatedAt: s.now()}
	for _, err := range errs {
		snap.failures = append(snap.failures, err.Error())
	}

	s.snapMu.Lock()
	s.snap = snap
	s.snapMu.Unlock()

	s.eventsMu.Lock()
	clear(s.eventsCache)
	s.eventsMu.Unlock()

	appLog.Info("refresh completed", "sources", len(results), "events", len(events), "failures", len(errs))
	return errors.Join(errs...)
}

// current returns the snapshot, refreshing first when there is none.
func (s *Server) current(ctx context.Context) *snapshot {
	s.snapMu.RLock()
	snap := s.snap
	s.snapMu.RUnlock()
	if snap != nil {
		return snap
	}
	if err := s.Refresh(ctx); err != nil {
		appLog.Error("initial refresh had failures", err)
	}
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return s.snap
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	err := s.Refresh(r.Context())
	resp := refreshResponse{OK: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

type refreshResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// handleCalendar serves every event of every source as one calendar.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	snap := s.current(r.Context())
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Last-Modified", snap.updatedAt.UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(snap.calendar.String()))
}

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	Occurrences     []occurrenceDTO `json:"occurrences"`
	TruncatedUIDs   []string        `json:"truncated_uids,omitempty"`
	SourceFailures  []string        `json:"source_failures,omitempty"`
	RangeStart      time.Time       `json:"range_start"`
	RangeEnd        time.Time       `json:"range_end"`
	DisplayTimeZone string          `json:"display_timezone"`
}

// eventsCache holds a cached /api/events response and its timestamp.
type eventsCache struct {
	resp      eventsResponse
	updatedAt time.Time
}

// occurrenceDTO is a JSON-friendly view of occurrences.
type occurrenceDTO struct {
	SourceID    string    `json:"source_id"`
	UID         string    `json:"uid"`
	InstanceKey string    `json:"instance_key"`
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	AllDay      bool      `json:"all_day"`
	Overridden  bool      `json:"overridden,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

// handleEvents returns expanded occurrences for the configured sources
// within a requested time window.
//
// GET /api/events?days=7&backfill=1
//   - days:     how many days ahead to include (default horizon_days)
//   - backfill: how many past days to include (default backfill_days)
//
// The display timezone is config.Timezone, falling back to time.Local.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days := parseIntDefault(q.Get("days"), s.cfg.HorizonDays)
	if days <= 0 {
		days = s.cfg.HorizonDays
	}
	backfill := parseIntDefault(q.Get("backfill"), s.cfg.BackfillDays)
	if backfill < 0 {
		backfill = 0
	}

	cacheKey := strconv.Itoa(days) + "/" + strconv.Itoa(backfill)
	s.eventsMu.RLock()
	ec := s.eventsCache[cacheKey]
	s.eventsMu.RUnlock()
	if ec != nil && s.now().Sub(ec.updatedAt) < eventsCacheTTL {
		writeJSON(w, http.StatusOK, ec.resp)
		return
	}

	loc := resolveLocationOrLocal(s.cfg.Timezone)
	now := s.now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	rangeStart := today.AddDate(0, 0, -backfill)
	rangeEnd := today.AddDate(0, 0, days+1)

	appLog.Info("api events request",
		"days", days,
		"backfill", backfill,
		"range_start", rangeStart.Format(time.RFC3339),
		"range_end", rangeEnd.Format(time.RFC3339),
		"timezone", loc.String(),
	)

	snap := s.current(r.Context())
	expandResult, err := ics.ExpandOccurrences(snap.events, ics.ExpandConfig{
		DisplayLocation:        loc,
		RangeStart:             rangeStart,
		RangeEnd:               rangeEnd,
		MaxOccurrencesPerEvent: s.cfg.MaxOccurrences,
	})
	if err != nil {
		appLog.Error("api events: expand failed", err)
		writeError(w, http.StatusInternalServerError, "failed to expand events")
		return
	}

	dtos := make([]occurrenceDTO, 0, len(expandResult.Occurrences))
	for _, occ := range expandResult.Occurrences {
		dtos = append(dtos, occurrenceDTO{
			SourceID:    occ.SourceID,
			UID:         occ.UID,
			InstanceKey: occ.InstanceKey,
			Summary:     occ.Summary,
			Description: occ.Description,
			Location:    occ.Location,
			AllDay:      occ.AllDay,
			Overridden:  occ.Overridden,
			Start:       occ.Start,
			End:         occ.End,
		})
	}

	resp := eventsResponse{
		Occurrences:     dtos,
		TruncatedUIDs:   expandResult.TruncatedEvents,
		SourceFailures:  snap.failures,
		RangeStart:      rangeStart,
		RangeEnd:        rangeEnd,
		DisplayTimeZone: loc.String(),
	}

	s.eventsMu.Lock()
	s.eventsCache[cacheKey] = &eventsCache{resp: resp, updatedAt: s.now()}
	s.eventsMu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func resolveLocationOrLocal(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
