package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/quiz-admin/internal/app"
	"github.com/jrsteele09/quiz-admin/internal/config"
	"github.com/jrsteele09/quiz-admin/internal/obs"
	"github.com/jrsteele09/quiz-admin/server"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("error running server")
	}
	log.Info().Msg("server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.New()
	if err != nil {
		return err
	}
	logger := obs.NewLogger(c.GetLogLevel(), c.GetLogFormat())
	log.Logger = logger
	displayAppname(c.GetAppName())

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ctx := context.Background()
	a, err := app.New(ctx, c, logger, app.WithRegisterer(reg))
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn().Err(err).Msg("closing console")
		}
	}()
	warmUp(ctx, a, logger)

	handler, err := server.New(c, server.Deps{
		Guard:      a.Guard,
		Tokens:     a.Tokens,
		Dispatcher: a.Dispatcher,
		Accounts:   a.Accounts,
		Payments:   a.Payments,
		Gatherer:   reg,
	}, server.WithLogger(logger.With().Str("component", "http").Logger()))
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() { serveErr <- listenAndServe(httpServer, logger) }()

	select {
	case err := <-serveErr:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(httpServer)
}

// warmUp loads backend state so the first page is populated. Failures leave
// the affected view in its unknown or cached state.
func warmUp(ctx context.Context, a *app.App, logger zerolog.Logger) {
	if err := a.Dispatcher.LoadCooldowns(ctx); err != nil {
		logger.Warn().Err(err).Msg("last run times unavailable at start-up")
	}
	if err := a.Accounts.Refresh(ctx); err != nil {
		logger.Warn().Err(err).Msg("user list unavailable at start-up, serving cache")
	}
	if err := a.Payments.Load(ctx); err != nil {
		logger.Warn().Err(err).Msg("payments unavailable at start-up")
	}
}

func listenAndServe(server *http.Server, logger zerolog.Logger) error {
	logger.Info().Str("addr", server.Addr).Msg("server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server.ListenAndServe")
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "server.Shutdown")
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
