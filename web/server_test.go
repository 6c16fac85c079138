package web_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"cdr.dev/slog/v3/sloggers/slogtest"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ulogme/config"
	"ulogme/entity"
	"ulogme/logicalday"
	"ulogme/manager"
	"ulogme/query"
	"ulogme/web"
)

var now = time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC)

func newServer(t *testing.T) (*httptest.Server, *query.Database) {
	t.Helper()
	db := query.OpenMemory(t)
	clock := quartz.NewMock(t)
	clock.Set(now)
	categories := manager.NewCategoryManager([]config.CategoryRule{
		{Pattern: regexp.MustCompile(`(?i)editor|terminal`), Category: "Coding"},
		{Pattern: regexp.MustCompile(`(?i)chrome`), Category: "Browsing"},
	}, []string{"Coding"})
	s := web.NewServer(db, categories, web.Options{
		BoundaryHour: 7,
		Location:     time.UTC,
		Clock:        clock,
		Logger:       slogtest.Make(t, nil),
	})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv, db
}

func seed(t *testing.T, db *query.Database) {
	t.Helper()
	ctx := context.Background()
	d := logicalday.MustParse("2024-06-02")
	for i, app := range []string{"Editor", "Google Chrome", "Terminal", entity.LockedScreen} {
		require.NoError(t, db.InsertWindowEvent(ctx, entity.WindowEvent{
			Timestamp:   now.Add(-time.Duration(4-i) * time.Minute),
			AppName:     app,
			LogicalDate: d,
		}))
	}
	require.NoError(t, db.InsertKeyEvent(ctx, entity.KeyEvent{Timestamp: now.Add(-time.Minute), KeyCount: 40, LogicalDate: d}))
	require.NoError(t, db.InsertKeyEvent(ctx, entity.KeyEvent{Timestamp: now, KeyCount: 2, LogicalDate: d}))
}

func do(t *testing.T, method, url, body string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

func decode(t *testing.T, body string, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(body), v))
}

func TestSummaryDefaultsToToday(t *testing.T) {
	t.Parallel()
	srv, db := newServer(t)
	seed(t, db)

	resp, body := do(t, http.MethodGet, srv.URL+"/api/summary", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got struct {
		LogicalDate string `json:"logical_date"`
		TotalKeys   int64  `json:"total_keys"`
		KeyEvents   int64  `json:"key_events"`
		AppUsage    []entity.AppUsage
		Categories  []struct {
			Category   string `json:"category"`
			EventCount int64  `json:"event_count"`
			Hacking    bool   `json:"hacking"`
		} `json:"categories"`
		HackingEvents int64 `json:"hacking_events"`
	}
	decode(t, body, &got)
	assert.Equal(t, "2024-06-02", got.LogicalDate)
	assert.EqualValues(t, 42, got.TotalKeys)
	assert.EqualValues(t, 2, got.KeyEvents)
	require.Len(t, got.Categories, 2)
	assert.Equal(t, "Coding", got.Categories[0].Category)
	assert.EqualValues(t, 2, got.Categories[0].EventCount)
	assert.True(t, got.Categories[0].Hacking)
	assert.Equal(t, "Browsing", got.Categories[1].Category)
	assert.EqualValues(t, 2, got.HackingEvents)
}

func TestBadDate(t *testing.T) {
	t.Parallel()
	srv, _ := newServer(t)

	for _, path := range []string{"/api/summary?date=yesterday", "/api/windows?date=2024-13-01", "/api/overview?from=x", "/api/overview?limit=-3"} {
		resp, _ := do(t, http.MethodGet, srv.URL+path, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, path)
	}
}

func TestWindowsKeysAndDates(t *testing.T) {
	t.Parallel()
	srv, db := newServer(t)
	seed(t, db)

	resp, body := do(t, http.MethodGet, srv.URL+"/api/windows?date=2024-06-02", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var windows []entity.WindowEvent
	decode(t, body, &windows)
	require.Len(t, windows, 4)
	assert.Equal(t, "Editor", windows[0].AppName)

	_, body = do(t, http.MethodGet, srv.URL+"/api/keys?date=2024-06-02", "")
	var keys []entity.KeyEvent
	decode(t, body, &keys)
	require.Len(t, keys, 2)

	_, body = do(t, http.MethodGet, srv.URL+"/api/dates", "")
	var dates []string
	decode(t, body, &dates)
	assert.Equal(t, []string{"2024-06-02"}, dates)

	_, body = do(t, http.MethodGet, srv.URL+"/api/overview?from=2024-06-01&limit=5", "")
	var overview []entity.DayOverview
	decode(t, body, &overview)
	require.Len(t, overview, 1)
	assert.EqualValues(t, 42, overview[0].TotalKeys)
	assert.EqualValues(t, 4, overview[0].UniqueApps)
}

func TestNotes(t *testing.T) {
	t.Parallel()
	srv, _ := newServer(t)

	resp, _ := do(t, http.MethodPost, srv.URL+"/api/notes", `{"content": "  "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := do(t, http.MethodPost, srv.URL+"/api/notes", `{"content": "standup"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var note entity.Note
	decode(t, body, &note)
	assert.Equal(t, "2024-06-02", note.LogicalDate.String())

	// before the boundary hour the note belongs to the previous day
	resp, _ = do(t, http.MethodPost, srv.URL+"/api/notes", `{"content": "late", "timestamp": "2024-06-02T03:00:00Z"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	_, body = do(t, http.MethodGet, srv.URL+"/api/notes", "")
	var notes []entity.Note
	decode(t, body, &notes)
	require.Len(t, notes, 1)
	assert.Equal(t, "standup", notes[0].Content)

	_, body = do(t, http.MethodGet, srv.URL+"/api/notes?date=2024-06-01", "")
	decode(t, body, &notes)
	require.Len(t, notes, 1)
	assert.Equal(t, "late", notes[0].Content)
}

func TestAddedNoteMatchesStoredNote(t *testing.T) {
	t.Parallel()
	srv, _ := newServer(t)

	resp, body := do(t, http.MethodPost, srv.URL+"/api/notes",
		`{"content": "precise", "timestamp": "2024-06-02T10:00:00.123456789+02:00"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created entity.Note
	decode(t, body, &created)
	assert.True(t, time.Date(2024, 6, 2, 8, 0, 0, 123456000, time.UTC).Equal(created.Timestamp))

	_, body = do(t, http.MethodGet, srv.URL+"/api/notes?date=2024-06-02", "")
	var notes []entity.Note
	decode(t, body, &notes)
	require.Len(t, notes, 1)
	assert.True(t, created.Timestamp.Equal(notes[0].Timestamp))
	assert.Equal(t, created, notes[0])
}

func TestBlog(t *testing.T) {
	t.Parallel()
	srv, _ := newServer(t)

	resp, _ := do(t, http.MethodGet, srv.URL+"/api/blog?date=2024-06-01", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, http.MethodPut, srv.URL+"/api/blog?date=2024-06-01", `{"content": "first"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = do(t, http.MethodPut, srv.URL+"/api/blog?date=2024-06-01", `{"content": "second"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, body := do(t, http.MethodGet, srv.URL+"/api/blog?date=2024-06-01", "")
	var blog entity.BlogEntry
	decode(t, body, &blog)
	assert.Equal(t, "second", blog.Content)
}

func TestSettings(t *testing.T) {
	t.Parallel()
	srv, _ := newServer(t)

	resp, _ := do(t, http.MethodGet, srv.URL+"/api/settings/theme", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, http.MethodPut, srv.URL+"/api/settings/theme", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodPut, srv.URL+"/api/settings/theme", `{"dark": true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, body := do(t, http.MethodGet, srv.URL+"/api/settings/theme", "")
	var setting entity.Setting
	decode(t, body, &setting)
	assert.JSONEq(t, `{"dark": true}`, string(setting.Value))

	resp, _ = do(t, http.MethodPut, srv.URL+"/api/settings/"+query.SchemaVersionKey, `99`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	_, body = do(t, http.MethodGet, srv.URL+"/api/settings/"+query.SchemaVersionKey, "")
	decode(t, body, &setting)
	assert.JSONEq(t, `2`, string(setting.Value))
}
