package main

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	echoapi "github.com/guigasprogramador/oneeduca/apps/api/echo"
	"github.com/guigasprogramador/oneeduca/apps/shared"
	"github.com/guigasprogramador/oneeduca/core"
	logsvc "github.com/guigasprogramador/oneeduca/services/logger"
	"github.com/guigasprogramador/oneeduca/services/scheduler"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	logger, err := logsvc.NewLogger(conf, "API")
	if err != nil {
		return err
	}
	defer logger.Sync()

	app, err := shared.NewApp(conf, logger, shared.Options{})
	if err != nil {
		logger.Error("setting up application", err)
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("closing application", err)
		}
	}()

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build), "env", conf.Env)
	defer logger.Info("Application stopped")

	app.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	sweeper := scheduler.New(app.CertificateSvc, logger)
	if conf.Certificate.SweepInterval > 0 {
		if err = sweeper.Start(conf.Certificate.SweepInterval); err != nil {
			return err
		}
		defer sweeper.Stop()
	}

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error("debug server closed", err)
		}
	}()

	// =========================================================================
	// Start API Service

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	server := echoapi.NewServer(&echoapi.Options{
		Address:        conf.Server.Host,
		AppName:        conf.AppName,
		Debug:          conf.Debug,
		TestMode:       conf.TestMode,
		SecretKey:      conf.SecretKey,
		Logger:         logger,
		Validate:       app.Validate,
		Translator:     app.Translator,
		CourseSvc:      app.CourseSvc,
		Calculator:     app.Calculator,
		Evaluator:      app.Evaluator,
		CertificateSvc: app.CertificateSvc,
		MetricsHandler: promhttp.HandlerFor(prometheus.Gatherers{app.Registry}, promhttp.HandlerOpts{}),
		ShutdownSignal: func() {
			select {
			case shutdown <- syscall.SIGTERM:
			default:
			}
		},
	})

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("API listening", "address", conf.Server.Host)
		serverErrors <- server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", err)
			return err
		}

	case sig := <-shutdown:
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Stop(ctx); err != nil {
			logger.Error("could not stop server gracefully", err)
			return err
		}
	}
	return nil
}
