// Package web exposes the HTTP API.
package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/housinglord/housing-lord/web/auth"
	"github.com/housinglord/housing-lord/web/handlers"
	"github.com/housinglord/housing-lord/web/middleware"
)

type Config struct {
	Addr            string
	AllowedOrigins  []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	Logger          *zap.Logger
}

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}

	if c.ReadTimeout == 0 {
		c.ReadTimeout = 15 * time.Second
	}

	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}

	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}

	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}

	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

type Server struct {
	srv             *http.Server
	logger          *zap.Logger
	shutdownTimeout time.Duration
}

func New(h *handlers.HandlerGroup, a *auth.Middleware, cfg Config) *Server {
	cfg.setDefaults()

	return &Server{
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           NewRouter(h, a, cfg),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
		},
		logger:          cfg.Logger,
		shutdownTimeout: cfg.ShutdownTimeout,
	}
}

// NewRouter wires every route with its auth requirement
func NewRouter(h *handlers.HandlerGroup, a *auth.Middleware, cfg Config) http.Handler {
	cfg.setDefaults()

	optional := func(fn http.HandlerFunc) http.Handler {
		return middleware.Chain(fn, a.Optional, middleware.CaptureUser)
	}

	required := func(fn http.HandlerFunc) http.Handler {
		return middleware.Chain(fn, a.Required, middleware.CaptureUser)
	}

	admin := func(fn http.HandlerFunc) http.Handler {
		return middleware.Chain(fn, a.Admin, middleware.CaptureUser)
	}

	router := mux.NewRouter()

	router.HandleFunc("/health", h.Misc.Health).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()

	api.Handle("/interested", optional(h.Interest.Express)).Methods(http.MethodPost)
	api.Handle("/interested", optional(h.Interest.Status)).Methods(http.MethodGet)

	api.HandleFunc("/properties", h.Property.List).Methods(http.MethodGet)
	api.Handle("/properties", required(h.Property.Create)).Methods(http.MethodPost)
	api.HandleFunc("/properties/{id}", h.Property.Get).Methods(http.MethodGet)
	api.Handle("/properties/{id}/interests", required(h.Property.Interests)).Methods(http.MethodGet)
	api.Handle("/properties/{id}/approve", admin(h.Admin.Approve)).Methods(http.MethodPatch)

	api.Handle("/dashboard", required(h.Property.Dashboard)).Methods(http.MethodGet)
	api.Handle("/admin/properties/pending", admin(h.Admin.Pending)).Methods(http.MethodGet)

	api.Handle("/notify-owner", required(h.Misc.NotifyOwner)).Methods(http.MethodPost)
	api.Handle("/upload-image", required(h.Misc.UploadImage)).Methods(http.MethodPost)

	notFound := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})

	notAllowed := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	// subrouters answer misses themselves and do not fall back to the parent
	for _, r := range []*mux.Router{router, api} {
		r.NotFoundHandler = notFound
		r.MethodNotAllowedHandler = notAllowed
	}

	return middleware.Chain(router,
		middleware.Recover(cfg.Logger),
		middleware.RequestID,
		middleware.RequestLogger(cfg.Logger),
		middleware.CORS(cfg.AllowedOrigins),
		middleware.SecurityHeaders,
	)
}

// Start serves until ctx is done, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}

	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errc := make(chan error, 1)

	go func() {
		s.logger.Info("http server listening", zap.String("addr", ln.Addr().String()))
		errc <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	s.logger.Info("http server shutting down")

	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(`{"error":"` + message + `"}` + "\n"))
}
