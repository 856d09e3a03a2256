package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thunderbasics/internal/config"
	"thunderbasics/internal/watch"
)

var fixedNow = time.Date(2026, time.June, 10, 8, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	s, err := NewServer(cfg, nil)
	require.NoError(t, err)
	s.now = func() time.Time { return fixedNow }
	return s
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeRange(t *testing.T, rec *httptest.ResponseRecorder) rangeResponse {
	t.Helper()
	var resp rangeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	rec := get(t, h, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestRange(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	rec := get(t, h, "/api/range?unit=week&date=2026-06-10")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	resp := decodeRange(t, rec)
	assert.Equal(t, "week_of_year", resp.Unit)
	assert.Equal(t, "", resp.Options)
	assert.Equal(t, "UTC", resp.Timezone)
	assert.Equal(t, 2, resp.Days)
	assert.True(t, resp.Start.Equal(time.Date(2026, time.June, 8, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 9, resp.End.Day())
	assert.Equal(t, 23, resp.End.Hour())
	assert.Equal(t, 59, resp.End.Minute())
}

func TestRange_DefaultsToNowAndAppliesOptions(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	rec := get(t, h, "/api/range?unit=month&options=direction_future,include_original_day")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeRange(t, rec)
	assert.Equal(t, "direction_future,include_original_day", resp.Options)
	assert.True(t, resp.Reference.Equal(fixedNow))
	assert.Equal(t, 10, resp.Start.Day())
	assert.Equal(t, 30, resp.End.Day())
	assert.Equal(t, 21, resp.Days)
}

func TestRange_SundayWeekStartFromConfig(t *testing.T) {
	h := newTestServer(t, func(c *config.Config) { c.WeekStart = "sunday" }).Handler()

	rec := get(t, h, "/api/range?unit=week&date=2026-06-10")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeRange(t, rec)
	assert.Equal(t, "week_starts_on_sunday", resp.Options)
	assert.Equal(t, 7, resp.Start.Day())
	assert.Equal(t, 9, resp.End.Day())
}

func TestRange_Timezone(t *testing.T) {
	h := newTestServer(t, func(c *config.Config) { c.Timezone = "Asia/Tokyo" }).Handler()

	rec := get(t, h, "/api/range?unit=day&date=2026-06-10")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeRange(t, rec)
	assert.Equal(t, "Asia/Tokyo", resp.Timezone)
	assert.Equal(t, "2026-06-09T15:00:00Z", resp.Start.UTC().Format(time.RFC3339))
}

func TestRange_BadRequests(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	for _, target := range []string{
		"/api/range",
		"/api/range?unit=fortnight",
		"/api/range?unit=week&options=backwards",
		"/api/range?unit=week&date=2026-13-45",
	} {
		t.Run(target, func(t *testing.T) {
			rec := get(t, h, target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var body struct {
				Error string `json:"error"`
			}
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestRange_UnresolvableCalendar(t *testing.T) {
	h := newTestServer(t, func(c *config.Config) { c.FirstWeekday = 9 }).Handler()

	rec := get(t, h, "/api/range?unit=week")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = get(t, h, "/api/series.ics?unit=week")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRanges(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	rec := get(t, h, "/api/ranges")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp rangesResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

	names := make([]string, 0, len(resp.Ranges))
	for _, r := range resp.Ranges {
		names = append(names, r.Name)
		assert.True(t, r.Reference.Equal(fixedNow), r.Name)
	}
	assert.Equal(t, []string{"week_to_date", "rest_of_week", "month_to_date", "rest_of_month", "year_to_date"}, names)
}

func TestRanges_FromWatcherSnapshot(t *testing.T) {
	cfg := config.DefaultConfig()
	cal, err := cfg.Calendar()
	require.NoError(t, err)
	queries, err := cfg.Queries()
	require.NoError(t, err)

	w := watch.New(cal, queries, watch.Options{})
	snapshotAt := time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC)
	w.Refresh(snapshotAt)

	s, err := NewServer(cfg, w)
	require.NoError(t, err)
	s.now = func() time.Time { return fixedNow }

	rec := get(t, s.Handler(), "/api/ranges")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp rangesResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Ranges, len(queries))
	for _, r := range resp.Ranges {
		assert.True(t, r.Reference.Equal(snapshotAt), r.Name)
	}
}

func TestSeries(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	rec := get(t, h, "/api/series.ics?unit=month&count=3&date=2026-06-10&name=mtd")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/calendar")

	body := rec.Body.String()
	assert.Equal(t, 3, strings.Count(body, "BEGIN:VEVENT"))
	assert.Contains(t, body, "X-WR-CALNAME:mtd")
	assert.Contains(t, body, "DTSTART;VALUE=DATE:20260401")
	assert.Contains(t, body, "DTSTART;VALUE=DATE:20260601")

	for _, target := range []string{
		"/api/series.ics?unit=month&count=0",
		"/api/series.ics?unit=month&count=many",
		"/api/series.ics?count=3",
	} {
		assert.Equal(t, http.StatusBadRequest, get(t, h, target).Code, target)
	}
}

func TestBasicAuth(t *testing.T) {
	h := newTestServer(t, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "s3cret"}
	}).Handler()

	assert.Equal(t, http.StatusOK, get(t, h, "/health").Code)

	rec := get(t, h, "/api/ranges")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")

	req := httptest.NewRequest(http.MethodGet, "/api/ranges", nil)
	req.SetBasicAuth("admin", "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/ranges", nil)
	req.SetBasicAuth("admin", "s3cret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBasicAuth_EmptyCredentialsDisable(t *testing.T) {
	h := newTestServer(t, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "admin"}
	}).Handler()
	assert.Equal(t, http.StatusOK, get(t, h, "/api/ranges").Code)
}

func TestNewServer_Errors(t *testing.T) {
	_, err := NewServer(nil, nil)
	assert.ErrorIs(t, err, config.ErrNilConfig)

	cfg := config.DefaultConfig()
	cfg.Timezone = "Mars/Olympus"
	_, err = NewServer(cfg, nil)
	assert.Error(t, err)
}
