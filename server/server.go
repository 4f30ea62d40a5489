package server

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.uber.org/zap"

	"github.com/xhad/yatra/internal/models"
	"github.com/xhad/yatra/internal/types"
	"github.com/xhad/yatra/pkg/logging"
	"github.com/xhad/yatra/pkg/rag"
	"github.com/xhad/yatra/pkg/review"
	"github.com/xhad/yatra/pkg/trip"
)

//go:embed templates/index.html
var templateFS embed.FS

type Config struct {
	Port        int
	TopK        int
	SessionTTL  time.Duration
	MaxSessions int
	Logger      *zap.Logger

	// Now is the clock used for date validation; defaults to time.Now.
	Now func() time.Time
}

// Server serves the trip planner page, the review board and the live
// planning websocket.
type Server struct {
	config   Config
	sessions *sessionCache
	reviews  types.ReviewStore
	page     *template.Template
	md       goldmark.Markdown
	log      *zap.Logger
}

func New(config Config, factory SessionFactory, chat rag.Completer, reviews types.ReviewStore) (*Server, error) {
	if factory == nil {
		return nil, errors.New("server requires a session factory")
	}
	if chat == nil {
		return nil, errors.New("server requires a completion model")
	}
	if reviews == nil {
		return nil, errors.New("server requires a review store")
	}
	if config.Port == 0 {
		config.Port = 8080
	}
	if config.TopK == 0 {
		config.TopK = 4
	}
	if config.SessionTTL == 0 {
		config.SessionTTL = 2 * time.Hour
	}
	if config.MaxSessions == 0 {
		config.MaxSessions = 64
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	log := logging.OrNop(config.Logger)
	page, err := template.New("index.html").Funcs(template.FuncMap{
		"stars":   func(n int) string { return strings.Repeat("⭐", n) },
		"seconds": func(d time.Duration) string { return fmt.Sprintf("%.2f", d.Seconds()) },
	}).ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse page template: %w", err)
	}

	return &Server{
		config:   config,
		sessions: newSessionCache(config.MaxSessions, config.SessionTTL, factory, chat, config.TopK, log),
		reviews:  reviews,
		page:     page,
		md:       goldmark.New(goldmark.WithExtensions(extension.GFM)),
		log:      log,
	}, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /plan", s.handlePlan)
	mux.HandleFunc("GET /download", s.handleDownload)
	mux.HandleFunc("POST /clear", s.handleClear)
	mux.HandleFunc("POST /reviews", s.handleReview)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return s.logRequests(mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down and closes
// every open session.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(s.config.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting server", zap.Int("port", s.config.Port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	return err
}

// Close drops all sessions.
func (s *Server) Close() {
	s.sessions.purge()
}

// pageData is everything the page template renders.
type pageData struct {
	Destination string
	Start       string
	End         string
	Budget      int
	MinDate     string
	MaxDate     string

	BudgetMin  int
	BudgetMax  int
	BudgetStep int

	Error         string
	Itinerary     *models.Itinerary
	ItineraryHTML template.HTML

	ReviewRows   [][]models.Review
	ReviewNotice string
	ReviewError  string
	MaxName      int
	MaxReview    int
}

func (s *Server) newPage() *pageData {
	today := s.config.Now()
	start, end := trip.DefaultRange(today)
	return &pageData{
		Start:      start.Format(trip.DateLayout),
		End:        end.Format(trip.DateLayout),
		Budget:     trip.BudgetDefault,
		MinDate:    start.Format(trip.DateLayout),
		MaxDate:    time.Date(today.Year(), time.December, 31, 0, 0, 0, 0, time.UTC).Format(trip.DateLayout),
		BudgetMin:  trip.BudgetMin,
		BudgetMax:  trip.BudgetMax,
		BudgetStep: trip.BudgetStep,
		MaxName:    review.MaxNameLength,
		MaxReview:  review.MaxReviewLength,
	}
}

func (s *Server) render(w http.ResponseWriter, status int, data *pageData) {
	data.ReviewRows = review.Rows(s.reviews.Load(), 3)

	var buf bytes.Buffer
	if err := s.page.Execute(&buf, data); err != nil {
		s.log.Error("failed to render page", zap.Error(err))
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (s *Server) showItinerary(data *pageData, it *models.Itinerary) {
	data.Itinerary = it
	data.ItineraryHTML = s.markdown(it.Text)
	data.Destination = it.Query.Destination
}

func (s *Server) markdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := s.md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String())
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := s.newPage()
	if v, ok := s.sessions.lookup(r); ok {
		if it := v.lastItinerary(); it != nil {
			s.showItinerary(data, it)
		}
	}
	s.render(w, http.StatusOK, data)
}

// planRequest is the trip form, posted or sent over the websocket.
type planRequest struct {
	Destination string `json:"destination"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Budget      string `json:"budget"`
}

func (p planRequest) query(today time.Time) (models.Query, error) {
	start, err := trip.ParseDate(p.Start)
	if err != nil {
		return models.Query{}, err
	}
	end, err := trip.ParseDate(p.End)
	if err != nil {
		return models.Query{}, err
	}
	budget := trip.BudgetDefault
	if p.Budget != "" {
		if budget, err = strconv.Atoi(p.Budget); err != nil {
			return models.Query{}, types.ValidationError{Field: "budget", Message: "budget must be a number"}
		}
	}
	return trip.NewQuery(p.Destination, start, end, budget, today)
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	req := planRequest{
		Destination: r.FormValue("destination"),
		Start:       r.FormValue("start"),
		End:         r.FormValue("end"),
		Budget:      r.FormValue("budget"),
	}

	data := s.newPage()
	data.Destination = req.Destination
	if req.Start != "" {
		data.Start = req.Start
	}
	if req.End != "" {
		data.End = req.End
	}
	if b, err := strconv.Atoi(req.Budget); err == nil {
		data.Budget = b
	}

	query, err := req.query(s.config.Now())
	if err != nil {
		data.Error = inputMessage(err)
		s.render(w, http.StatusBadRequest, data)
		return
	}

	v, cookie, err := s.sessions.obtain(r)
	if err != nil {
		s.log.Error("failed to start session", zap.Error(err))
		data.Error = (&types.GenerationError{Err: err}).Error()
		s.render(w, http.StatusInternalServerError, data)
		return
	}
	if cookie != nil {
		http.SetCookie(w, cookie)
	}

	it, err := v.generator.Answer(r.Context(), query)
	if err != nil {
		data.Error = err.Error()
		s.render(w, http.StatusBadGateway, data)
		return
	}

	v.setLast(it)
	s.showItinerary(data, it)
	s.render(w, http.StatusOK, data)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	v, ok := s.sessions.lookup(r)
	if !ok || v.lastItinerary() == nil {
		http.Error(w, "no itinerary to download", http.StatusNotFound)
		return
	}
	it := v.lastItinerary()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": trip.DownloadName(it.Query.Destination),
	}))
	w.Write([]byte(it.Text))
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.sessions.drop(r)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	data := s.newPage()
	if v, ok := s.sessions.lookup(r); ok {
		if it := v.lastItinerary(); it != nil {
			s.showItinerary(data, it)
		}
	}

	rating, err := strconv.Atoi(r.FormValue("rating"))
	if err != nil {
		rating = review.MaxRating
	}
	rv := models.Review{
		Name:   r.FormValue("name"),
		Rating: rating,
		Review: r.FormValue("review"),
	}

	if err := s.reviews.Save(rv); err != nil {
		if errors.Is(err, types.ErrReviewValidation) {
			data.ReviewError = strings.TrimPrefix(err.Error(), types.ErrReviewValidation.Error()+": ")
			s.render(w, http.StatusBadRequest, data)
			return
		}
		s.log.Error("failed to save review", zap.Error(err))
		data.ReviewError = "Your review could not be saved. Please try again."
		s.render(w, http.StatusInternalServerError, data)
		return
	}

	data.ReviewNotice = "Thank you for your review! 🎉"
	s.render(w, http.StatusOK, data)
}

// inputMessage joins the user-facing messages of form validation errors.
func inputMessage(err error) string {
	var msgs []string
	var walk func(error)
	walk = func(e error) {
		if joined, ok := e.(interface{ Unwrap() []error }); ok {
			for _, inner := range joined.Unwrap() {
				walk(inner)
			}
			return
		}
		var ve types.ValidationError
		if errors.As(e, &ve) {
			msgs = append(msgs, ve.Message)
			return
		}
		msgs = append(msgs, e.Error())
	}
	walk(err)
	return strings.Join(msgs, " ")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)))
	})
}
