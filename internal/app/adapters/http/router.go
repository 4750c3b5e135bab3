package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hyperion/internal/app/adapters/http/handlers"
	"hyperion/internal/app/adapters/http/middlewares"
	"hyperion/pkg/logger"
)

const shutdownTimeout = 5 * time.Second

type Options struct {
	Addr string
	// AuthToken guards the channel endpoints (bearer) and diagnostics
	// (basic auth as admin).
	AuthToken string
}

type Router struct {
	router      *gin.Engine
	handlers    *handlers.Handlers
	middlewares *middlewares.Middlewares

	log  logger.Logger
	opts Options
}

func NewRouter(log logger.Logger, h *handlers.Handlers, opts Options) *Router {
	r := &Router{
		router:      gin.New(),
		handlers:    h,
		middlewares: middlewares.New(log),
		log:         log,
		opts:        opts,
	}
	r.router.Use(gin.Recovery())

	admin := gin.BasicAuth(gin.Accounts{"admin": opts.AuthToken})

	pprofGroup := r.router.Group("/", admin)
	pprof.Register(pprofGroup)

	r.router.GET("/metrics", admin, gin.WrapH(promhttp.Handler()))
	r.router.GET("/debug/info", admin, r.handlers.DebugInfo)

	r.router.GET("/", r.handlers.IndexHandler)
	r.router.GET("/healthz", r.handlers.Healthz)
	r.router.GET("/events", r.middlewares.LocalOnly(), r.handlers.Events)
	r.router.GET("/channels/:login/emotes", r.handlers.Emotes)

	channels := r.router.Group("/channels", r.middlewares.Auth(opts.AuthToken))
	channels.GET("", r.handlers.ListChannels)
	channels.POST("/:login", r.handlers.JoinChannel)
	channels.DELETE("/:login", r.handlers.LeaveChannel)

	return r
}

func (r *Router) Handler() http.Handler {
	return r.router
}

// Run serves until ctx is cancelled and then shuts the server down
// gracefully.
func (r *Router) Run(ctx context.Context) error {
	srv := r.newServer(r.opts.Addr, r.router)

	errCh := make(chan error, 1)
	go func() {
		r.log.Info("HTTP server started", slog.String("addr", r.opts.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	r.log.Info("HTTP server stopped")
	return nil
}

func (r *Router) newServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}
}
