// Package server assembles the HTTP router and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/EmpoweredVote/memoboard/internal/account"
	"github.com/EmpoweredVote/memoboard/internal/admin"
	"github.com/EmpoweredVote/memoboard/internal/auth"
	"github.com/EmpoweredVote/memoboard/internal/config"
	"github.com/EmpoweredVote/memoboard/internal/logging"
	"github.com/EmpoweredVote/memoboard/internal/memos"
	"github.com/EmpoweredVote/memoboard/internal/metrics"
	"github.com/EmpoweredVote/memoboard/internal/middleware"
	"github.com/EmpoweredVote/memoboard/internal/ratelimit"
	"github.com/EmpoweredVote/memoboard/internal/store"
	"github.com/EmpoweredVote/memoboard/internal/utils"
)

type Deps struct {
	Config  config.Config
	Store   store.Store
	Limiter *ratelimit.Limiter
	Logger  *slog.Logger
	Clock   utils.Clock
}

func RootHandler(w http.ResponseWriter, r *http.Request) {
	response := "Server is up!"
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, response)
}

// readyHandler reports whether the store answers.
func readyHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		w.Header().Set("Content-Type", "text/plain")
		if err := s.Ping(ctx); err != nil {
			logging.FromContext(r.Context()).Error("readiness check failed", "err", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintln(w, "store unavailable")
			return
		}
		fmt.Fprintln(w, "ok")
	}
}

func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	limiter := d.Limiter
	if limiter == nil {
		limiter = ratelimit.New(ratelimit.Clock(d.Clock))
	}

	authHandler := auth.NewHandler(auth.Deps{
		Store:   d.Store,
		Limiter: limiter,
		Cookies: auth.Cookies{
			Name:   cfg.CookieName,
			MaxAge: cfg.CookieMaxAge(),
			Secure: cfg.Production,
		},
		SessionTTL: cfg.SessionTTL(),
		Clock:      d.Clock,
	})
	session := middleware.SessionMiddleware(authHandler.Resolver(), cfg.CookieName)
	memoHandler := memos.NewHandler(d.Store, d.Clock)
	throttle := middleware.NewThrottle(cfg.ThrottleRPS, cfg.ThrottleBurst)

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(logging.HTTPMiddleware(d.Logger))
	r.Use(metrics.InstrumentHandler)
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.Get("/healthz", RootHandler)
	r.Get("/readyz", readyHandler(d.Store))
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Use(throttle.Middleware)

		api.Mount("/auth", auth.SetupRoutes(authHandler))
		api.Mount("/memos", memos.SetupRoutes(memoHandler, session))
		api.Mount("/comments", memos.SetupCommentRoutes(memoHandler, session))
		api.Mount("/account", account.SetupRoutes(account.NewHandler(d.Store), session))
		api.Mount("/admin", admin.SetupRoutes(admin.NewHandler(d.Store, limiter, d.Clock), session))
	})

	gate := middleware.PageGate(authHandler.Resolver(), cfg.CookieName, authHandler.Cookies().Clear)
	pages := pageHandler(cfg.StaticDir)
	r.With(gate).Handle("/", pages)
	r.With(gate).Handle("/*", pages)

	return r
}

// Run serves handler on addr until ctx is cancelled, then drains in-flight
// requests for up to shutdownTimeout.
func Run(ctx context.Context, addr string, handler http.Handler, log *slog.Logger, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(log.Handler(), slog.LevelError),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
