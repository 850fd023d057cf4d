// Package api serves the local HTTP control surface of the scheduler: task
// CRUD, enable/disable, run previews and a status page with recent activity.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"tickrun/internal/eventbus"
	"tickrun/internal/task"
	"tickrun/internal/task/scheduler"
	logx "tickrun/pkg/logx"
)

// TaskService is the scheduler surface the API drives.
type TaskService interface {
	Add(ctx context.Context, t task.Task) (task.Task, error)
	Update(ctx context.Context, t task.Task) (task.Task, error)
	Delete(ctx context.Context, id string) error
	Toggle(ctx context.Context, id string, enabled bool) (task.Task, error)
	Get(ctx context.Context, id string) (task.Task, error)
	List(ctx context.Context) ([]task.Task, error)
	Snapshot() scheduler.Snapshot
}

const (
	defaultPreview = 5
	maxPreview     = 100
	shutdownGrace  = 5 * time.Second
)

type Server struct {
	svc     TaskService
	events  *eventbus.Recorder
	log     logx.Logger
	now     func() time.Time
	router  *chi.Mux
	profile bool
}

type Option func(*Server)

// WithProfiler exposes net/http/pprof under /debug.
func WithProfiler(enabled bool) Option { return func(s *Server) { s.profile = enabled } }

// New builds the router. events may be nil, in which case the status page
// has no activity feed.
func New(svc TaskService, events *eventbus.Recorder, log logx.Logger, opts ...Option) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Server{svc: svc, events: events, log: log, now: time.Now, router: chi.NewRouter()}
	for _, o := range opts {
		o(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(s.recoverer)
	s.router.Use(s.requestLogger)

	s.router.Get("/health", s.handleHealth)
	if s.profile {
		s.router.Mount("/debug", middleware.Profiler())
	}
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", s.handleList)
			r.Post("/", s.handleCreate)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGet)
				r.Put("/", s.handleUpdate)
				r.Delete("/", s.handleDelete)
				r.Post("/enable", s.handleToggle(true))
				r.Post("/disable", s.handleToggle(false))
				r.Get("/preview", s.handlePreview)
			})
		})
	})
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, ln)
}

func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.log.Info("api listening", logx.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	err := srv.Shutdown(sctx)
	<-errCh
	s.log.Info("api stopped")
	return err
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed",
			logx.String("method", r.Method),
			logx.String("path", r.URL.Path),
			logx.String("request_id", middleware.GetReqID(r.Context())),
			logx.Err(err))
	}
	writeJSON(w, status, ErrorResponse{Error: detail})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				s.log.Error("panic recovered",
					logx.String("method", r.Method),
					logx.String("path", r.URL.Path),
					logx.Any("panic", rvr))
				writeJSON(w, http.StatusInternalServerError,
					ErrorResponse{Error: ErrorDetail{Code: CodeInternal, Message: "an unexpected error occurred"}})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.log.Enabled(logx.LevelDebug) {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("http request",
			logx.String("method", r.Method),
			logx.String("path", r.URL.Path),
			logx.Int("status", ww.Status()),
			logx.Duration("took", time.Since(start)),
			logx.String("request_id", middleware.GetReqID(r.Context())))
	})
}
