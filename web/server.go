package web

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/xerrors"

	"ulogme/entity"
	"ulogme/logicalday"
	"ulogme/manager"
	"ulogme/query"
)

type Options struct {
	BoundaryHour int
	Location     *time.Location
	Clock        quartz.Clock
	Logger       slog.Logger
}

type Server struct {
	db         *query.Database
	categories *manager.CategoryManager
	opts       Options
	router     chi.Router
}

func NewServer(db *query.Database, categories *manager.CategoryManager, opts Options) *Server {
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	s := &Server{db: db, categories: categories, opts: opts}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Route("/api", func(r chi.Router) {
		r.Get("/dates", s.handleDates)
		r.Get("/summary", s.handleSummary)
		r.Get("/overview", s.handleOverview)
		r.Get("/windows", s.handleWindows)
		r.Get("/keys", s.handleKeys)
		r.Get("/notes", s.handleNotes)
		r.Post("/notes", s.handleAddNote)
		r.Get("/blog", s.handleBlog)
		r.Put("/blog", s.handleSaveBlog)
		r.Get("/settings/{key}", s.handleSetting)
		r.Put("/settings/{key}", s.handleSaveSetting)
	})
	s.router = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		s.opts.Logger.Info(ctx, "web ui listening", slog.F("url", "http://"+addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return xerrors.Errorf("web server: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return xerrors.Errorf("web server shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return xerrors.Errorf("web server: %w", err)
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := s.opts.Clock.Now("web", "request")
		next.ServeHTTP(ww, r)
		s.opts.Logger.Debug(r.Context(), "request",
			slog.F("method", r.Method),
			slog.F("path", r.URL.Path),
			slog.F("status", ww.Status()),
			slog.F("elapsed", s.opts.Clock.Since(start, "web", "request")),
			slog.F("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// today is the logical date of the current instant.
func (s *Server) today() logicalday.Date {
	return logicalday.Resolve(s.opts.Clock.Now("web", "today").In(s.opts.Location), s.opts.BoundaryHour)
}

// dateParam reads ?date=, defaulting to today.
func (s *Server) dateParam(w http.ResponseWriter, r *http.Request) (logicalday.Date, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("date"))
	if raw == "" {
		return s.today(), true
	}
	d, err := logicalday.Parse(raw)
	if err != nil {
		http.Error(w, "bad date", http.StatusBadRequest)
		return logicalday.Date{}, false
	}
	return d, true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.opts.Logger.Error(r.Context(), "request failed", slog.F("path", r.URL.Path), slog.Error(err))
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func (s *Server) handleDates(w http.ResponseWriter, r *http.Request) {
	dates, err := s.db.GetAvailableDates(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dates)
}

type categoryUsage struct {
	Category   string `json:"category"`
	EventCount int64  `json:"event_count"`
	Hacking    bool   `json:"hacking"`
}

type summaryResponse struct {
	entity.DailySummary
	Categories    []categoryUsage `json:"categories"`
	HackingEvents int64           `json:"hacking_events"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	date, ok := s.dateParam(w, r)
	if !ok {
		return
	}
	summary, err := s.db.GetDailySummary(r.Context(), date)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	events, err := s.db.GetWindowEventsForDate(r.Context(), date)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp := summaryResponse{DailySummary: summary, Categories: []categoryUsage{}}
	index := map[string]int{}
	for _, ev := range events {
		if ev.AppName == entity.LockedScreen {
			continue
		}
		cat := s.categories.Categorize(ev.AppName, ev.WindowTitle)
		i, seen := index[cat]
		if !seen {
			i = len(resp.Categories)
			index[cat] = i
			resp.Categories = append(resp.Categories, categoryUsage{Category: cat, Hacking: s.categories.IsHacking(cat)})
		}
		resp.Categories[i].EventCount++
		if resp.Categories[i].Hacking {
			resp.HackingEvents++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var from, to logicalday.Date
	for _, p := range []struct {
		name string
		dst  *logicalday.Date
	}{{"from", &from}, {"to", &to}} {
		raw := strings.TrimSpace(q.Get(p.name))
		if raw == "" {
			continue
		}
		d, err := logicalday.Parse(raw)
		if err != nil {
			http.Error(w, "bad "+p.name, http.StatusBadRequest)
			return
		}
		*p.dst = d
	}
	limit := query.DefaultOverviewLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "bad limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	days, err := s.db.GetOverview(r.Context(), from, to, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, days)
}

func (s *Server) handleWindows(w http.ResponseWriter, r *http.Request) {
	date, ok := s.dateParam(w, r)
	if !ok {
		return
	}
	events, err := s.db.GetWindowEventsForDate(r.Context(), date)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleKeys(w http.ResponseWriter, r *http.Request) {
	date, ok := s.dateParam(w, r)
	if !ok {
		return
	}
	events, err := s.db.GetKeyEventsForDate(r.Context(), date)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleNotes(w http.ResponseWriter, r *http.Request) {
	date, ok := s.dateParam(w, r)
	if !ok {
		return
	}
	notes, err := s.db.GetNotesForDate(r.Context(), date)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

func (s *Server) handleAddNote(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Content   string     `json:"content"`
		Timestamp *time.Time `json:"timestamp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	content := strings.TrimSpace(body.Content)
	if content == "" {
		http.Error(w, "content empty", http.StatusBadRequest)
		return
	}
	ts := s.opts.Clock.Now("web", "note")
	if body.Timestamp != nil {
		ts = *body.Timestamp
	}
	// the store keeps microseconds
	ts = ts.UTC().Truncate(time.Microsecond)
	note := entity.Note{
		Timestamp:   ts,
		Content:     content,
		LogicalDate: logicalday.Resolve(ts.In(s.opts.Location), s.opts.BoundaryHour),
	}
	if err := s.db.InsertNote(r.Context(), note); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

func (s *Server) handleBlog(w http.ResponseWriter, r *http.Request) {
	date, ok := s.dateParam(w, r)
	if !ok {
		return
	}
	blog, err := s.db.GetBlog(r.Context(), date)
	if xerrors.Is(err, query.ErrNotFound) {
		http.Error(w, "no blog for "+date.String(), http.StatusNotFound)
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, blog)
}

func (s *Server) handleSaveBlog(w http.ResponseWriter, r *http.Request) {
	date, ok := s.dateParam(w, r)
	if !ok {
		return
	}
	var body struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	blog := entity.BlogEntry{LogicalDate: date, Content: body.Content}
	if err := s.db.SaveBlog(r.Context(), blog); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, blog)
}

func (s *Server) handleSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	value, err := s.db.GetSetting(r.Context(), key)
	if xerrors.Is(err, query.ErrNotFound) {
		http.Error(w, "unknown setting", http.StatusNotFound)
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entity.Setting{Key: key, Value: value})
}

func (s *Server) handleSaveSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == query.SchemaVersionKey {
		http.Error(w, "setting is read-only", http.StatusForbidden)
		return
	}
	var value json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&value); err != nil {
		http.Error(w, "value must be JSON", http.StatusBadRequest)
		return
	}
	if err := s.db.SetSetting(r.Context(), key, value); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entity.Setting{Key: key, Value: value})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
