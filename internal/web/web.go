package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"thunderbasics/internal/config"
	"thunderbasics/internal/daterange"
	"thunderbasics/internal/ics"
	appLog "thunderbasics/internal/log"
	"thunderbasics/internal/model"
	"thunderbasics/internal/watch"
)

const defaultSeriesCount = 12

// Server provides the HTTP API for resolving ranges.
type Server struct {
	cfg     *config.Config
	cal     daterange.Calendar
	queries []model.Query
	watcher *watch.Watcher
	now     func() time.Time
}

// NewServer builds a Server from cfg. When w is non-nil /api/ranges serves
// its latest snapshot instead of resolving on every request.
func NewServer(cfg *config.Config, w *watch.Watcher) (*Server, error) {
	if cfg == nil {
		return nil, config.ErrNilConfig
	}
	cal, err := cfg.Calendar()
	if err != nil {
		return nil, fmt.Errorf("web: %w", err)
	}
	queries, err := cfg.Queries()
	if err != nil {
		return nil, fmt.Errorf("web: %w", err)
	}
	return &Server{
		cfg:     cfg,
		cal:     cal,
		queries: queries,
		watcher: w,
		now:     time.Now,
	}, nil
}

// Handler returns the routed http.Handler for this server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.basicAuthEnabled() {
			appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
			r.Use(s.basicAuthMiddleware)
		}
		r.Get("/api/range", s.handleRange)
		r.Get("/api/ranges", s.handleRanges)
		r.Get("/api/series.ics", s.handleSeries)
	})
	return r
}

// ListenAndServe serves on cfg.Listen until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
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
		return fmt.Errorf("web: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("web: shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web: %w", err)
	}
	appLog.Info("HTTP server stopped")
	return nil
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials disable auth.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="thunderbasics", charset="UTF-8"`)
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

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// rangeResponse is the JSON shape of one resolved range.
type rangeResponse struct {
	Name      string    `json:"name,omitempty"`
	Unit      string    `json:"unit"`
	Options   string    `json:"options"`
	Reference time.Time `json:"reference"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Days      int       `json:"days"`
	Timezone  string    `json:"timezone"`
}

type rangesResponse struct {
	Ranges []rangeResponse `json:"ranges"`
}

func toResponse(res model.Resolved) rangeResponse {
	return rangeResponse{
		Name:      res.Query.Name,
		Unit:      res.Query.Unit.String(),
		Options:   res.Query.Options.String(),
		Reference: res.Reference,
		Start:     res.Range.Start,
		End:       res.Range.End,
		Days:      res.Range.Days(),
		Timezone:  res.Range.Start.Location().String(),
	}
}

// handleRange resolves a single ad-hoc query.
//
// GET /api/range?unit=week&options=direction_future&date=2026-06-10
//   - unit:    required
//   - options: comma separated option names
//   - date:    any layout dateparse accepts, in the configured timezone; now when empty
func (s *Server) handleRange(w http.ResponseWriter, r *http.Request) {
	q, ref, err := s.parseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, ok := q.Resolve(s.cal, ref)
	if !ok {
		appLog.Warn("api range: calendar cannot resolve", "unit", q.Unit.String(), "first_weekday", s.cal.FirstWeekday)
		writeError(w, http.StatusUnprocessableEntity, "calendar cannot resolve this range")
		return
	}
	writeJSON(w, http.StatusOK, toResponse(res))
}

// handleRanges returns the configured named queries resolved for now.
func (s *Server) handleRanges(w http.ResponseWriter, _ *http.Request) {
	var results []model.Resolved
	if s.watcher != nil {
		results = s.watcher.Snapshot()
	}
	if len(results) == 0 {
		ref := s.cal.In(s.now())
		results = make([]model.Resolved, 0, len(s.queries))
		for _, q := range s.queries {
			res, ok := q.Resolve(s.cal, ref)
			if !ok {
				appLog.Warn("api ranges: query not resolvable", "query", q.Name)
				continue
			}
			results = append(results, res)
		}
	}

	resp := rangesResponse{Ranges: make([]rangeResponse, 0, len(results))}
	for _, res := range results {
		resp.Ranges = append(resp.Ranges, toResponse(res))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSeries exports consecutive ranges as an iCalendar feed.
//
// GET /api/series.ics?unit=month&options=&count=12&date=&name=
func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	q, ref, err := s.parseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	count := defaultSeriesCount
	if raw := r.URL.Query().Get("count"); raw != "" {
		count, err = strconv.Atoi(raw)
		if err != nil || count <= 0 {
			writeError(w, http.StatusBadRequest, "count must be a positive integer")
			return
		}
	}

	series, err := ics.Series(s.cal, q, ref, count)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(series) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "calendar cannot resolve this range")
		return
	}

	body, err := ics.Export(series, ics.ExportOptions{Name: q.Name, Stamp: s.now()})
	if err != nil {
		appLog.Error("api series: export failed", err, "query", q.Name)
		writeError(w, http.StatusInternalServerError, "failed to export series")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// parseQuery reads unit, options, date and name from the URL. Options from
// the configured week start are always applied.
func (s *Server) parseQuery(r *http.Request) (model.Query, time.Time, error) {
	v := r.URL.Query()

	rawUnit := strings.TrimSpace(v.Get("unit"))
	if rawUnit == "" {
		return model.Query{}, time.Time{}, errors.New("unit is required")
	}
	unit, err := daterange.ParseUnit(rawUnit)
	if err != nil {
		return model.Query{}, time.Time{}, err
	}
	opts, err := daterange.ParseOptions(v.Get("options"))
	if err != nil {
		return model.Query{}, time.Time{}, err
	}

	ref, err := s.parseDate(v.Get("date"))
	if err != nil {
		return model.Query{}, time.Time{}, err
	}

	name := strings.TrimSpace(v.Get("name"))
	if name == "" {
		name = unit.String()
	}
	return model.Query{Name: name, Unit: unit, Options: opts | s.cfg.BaseOptions()}, ref, nil
}

func (s *Server) parseDate(raw string) (time.Time, error) {
	loc := s.cal.In(time.Time{}).Location()
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return s.now().In(loc), nil
	}
	t, err := dateparse.ParseIn(raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: %w", raw, err)
	}
	return t.In(loc), nil
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
