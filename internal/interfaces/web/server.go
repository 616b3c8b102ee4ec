// Package web serves a read-only view of the running scheduler.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/example/visa-scheduler/internal/application/scheduler"
	"github.com/example/visa-scheduler/internal/domain/appointment"
)

type StatusSource interface {
	Status() scheduler.Status
}

type Server struct {
	addr     string
	status   StatusSource
	attempts appointment.AttemptRecorder
}

// New builds the status server. attempts may be nil when no audit store is
// configured.
func New(addr string, status StatusSource, attempts appointment.AttemptRecorder) *Server {
	return &Server{addr: addr, status: status, attempts: attempts}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, logging, middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Get("/attempts", s.handleAttempts)
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Info().Str("addr", s.addr).Msg("status server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("http")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status.Status())
}

type attemptView struct {
	ID          string    `json:"id"`
	Date        string    `json:"date"`
	Time        string    `json:"time,omitempty"`
	Outcome     string    `json:"outcome"`
	Reason      string    `json:"reason,omitempty"`
	AttemptedAt time.Time `json:"attempted_at"`
}

func (s *Server) handleAttempts(w http.ResponseWriter, r *http.Request) {
	if s.attempts == nil {
		writeJSON(w, http.StatusOK, []attemptView{})
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be 1-500"})
			return
		}
		limit = n
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	list, err := s.attempts.ListRecent(ctx, limit)
	if err != nil {
		log.Error().Err(err).Msg("list attempts")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not list attempts"})
		return
	}
	out := make([]attemptView, 0, len(list))
	for _, a := range list {
		out = append(out, attemptView{
			ID:          a.ID,
			Date:        appointment.FormatDate(a.Date),
			Time:        a.Time,
			Outcome:     string(a.Outcome),
			Reason:      a.Reason,
			AttemptedAt: a.AttemptedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
