package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/humancheck/gatekeeper/gate/engine"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogecho "github.com/samber/slog-echo"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
)

type Server struct {
	engine   *engine.Engine
	echo     *echo.Echo
	httpd    *http.Server
	metricsd *http.Server
	logger   *slog.Logger
}

type Config struct {
	Logger        *slog.Logger
	Bind          string
	MetricsListen string
}

func NewServer(config Config, eng *engine.Engine) *Server {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	e := echo.New()

	// httpd
	var (
		httpTimeout        = 1 * time.Minute
		httpMaxHeaderBytes = 1 * (1024 * 1024)
	)

	srv := &Server{
		engine: eng,
		echo:   e,
		logger: logger,
	}
	srv.httpd = &http.Server{
		Handler:        srv,
		Addr:           config.Bind,
		WriteTimeout:   httpTimeout,
		ReadTimeout:    httpTimeout,
		MaxHeaderBytes: httpMaxHeaderBytes,
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv.metricsd = &http.Server{
		Handler: mux,
		Addr:    config.MetricsListen,
	}

	e.HideBanner = true
	e.Use(slogecho.New(logger))
	e.Use(otelecho.Middleware("gatekeeper"))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1M"))
	e.HTTPErrorHandler = srv.errorHandler
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
		HSTSMaxAge:         31536000, // 365 days
	}))
	e.Use(srv.countRequests)

	e.GET("/_health", srv.HandleHealthCheck)
	e.POST("/v1/content", srv.HandleContent)
	e.POST("/v1/challenge/request", srv.HandleRequestChallenge)
	e.POST("/v1/challenge/open", srv.HandleOpenChallenge)
	e.POST("/v1/challenge/submit", srv.HandleSubmitChallenge)
	e.POST("/v1/override", srv.HandleOverride)
	e.GET("/v1/status/:username", srv.HandleStatus)
	e.GET("/v1/breakdown/:username", srv.HandleBreakdown)

	return srv
}

func (srv *Server) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	srv.echo.ServeHTTP(rw, req)
}

func (srv *Server) RunAPI() error {
	srv.logger.Info("starting server", "bind", srv.httpd.Addr)
	go func() {
		if err := srv.httpd.ListenAndServe(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				srv.logger.Error("HTTP server shutting down unexpectedly", "err", err)
			}
		}
	}()

	// Wait for a signal to exit.
	srv.logger.Info("registering OS exit signal handler")
	quit := make(chan struct{})
	exitSignals := make(chan os.Signal, 1)
	signal.Notify(exitSignals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-exitSignals
		srv.logger.Info("received OS exit signal", "signal", sig)

		// Shut down the HTTP servers
		if err := srv.Shutdown(); err != nil {
			srv.logger.Error("HTTP server shutdown error", "err", err)
		}

		// Trigger the return that causes an exit.
		close(quit)
	}()
	<-quit
	srv.logger.Info("graceful shutdown complete")
	return nil
}

func (srv *Server) RunMetrics() error {
	srv.logger.Info("starting metrics endpoint", "bind", srv.metricsd.Addr)
	if err := srv.metricsd.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (srv *Server) Shutdown() error {
	srv.logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return errors.Join(srv.httpd.Shutdown(ctx), srv.metricsd.Shutdown(ctx))
}
