// Package main is the entry point for the diskwatch disk health monitor.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/disktools/diskwatch/internal/api"
	"github.com/disktools/diskwatch/internal/config"
	"github.com/disktools/diskwatch/internal/models"
	"github.com/disktools/diskwatch/internal/monitor"
	"github.com/disktools/diskwatch/internal/notify"
	"github.com/disktools/diskwatch/internal/report"
)

const usage = `diskwatch - disk health monitoring

Usage:
  diskwatch [command]

Commands:
  monitor   Run one monitoring pass, write the report, send notifications (default)
  report    Run one monitoring pass and write the HTML report only
  serve     Poll continuously and serve the report over HTTP

Configuration is read from environment variables; see the README.
`

func main() {
	cmd := "monitor"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "monitor", "report", "serve":
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}

	cfg, warnings, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	setupLogging(cfg.LogLevel)
	for _, w := range warnings {
		log.Warn().Msg(w.Error())
	}

	log.Info().
		Str("version", cfg.Version).
		Str("command", cmd).
		Bool("dry_run", cfg.DryRun).
		Msg("Starting diskwatch")

	switch cmd {
	case "monitor":
		os.Exit(runMonitor(cfg, true))
	case "report":
		os.Exit(runMonitor(cfg, false))
	case "serve":
		runServe(cfg)
	}
}

// runMonitor performs one pass and produces the requested outputs. The
// exit code is non-zero only when every requested output failed; a
// single broken channel never masks a successful report.
func runMonitor(cfg *config.Settings, withNotifications bool) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := monitor.New(cfg).Run(ctx)

	attempted, failed := 0, 0

	if cfg.DiskReport {
		attempted++
		if path, err := report.Write(r, cfg); err != nil {
			log.Error().Err(err).Msg("Failed to write report")
			failed++
		} else {
			fmt.Println(path)
		}
	}

	if withNotifications && len(r.Breaches) > 0 {
		dispatcher := notify.NewDispatcher(cfg)
		if len(dispatcher.Channels()) > 0 {
			attempted++
			if err := dispatcher.Send(ctx, notify.FromReport(r)); err != nil {
				failed++
			}
		}
	}

	if attempted > 0 && failed == attempted {
		return 1
	}
	return 0
}

// runServe polls on the configured interval and serves the latest
// report over HTTP until interrupted.
func runServe(cfg *config.Settings) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc := api.NewService(cfg)
	mon := monitor.New(cfg)
	dispatcher := notify.NewDispatcher(cfg)

	go pollLoop(ctx, cfg, mon, svc, dispatcher)

	srv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      svc.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.ListenAddr()).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server stopped")
}

// pollLoop runs the pipeline immediately and then on every tick,
// publishing each report to the HTTP service.
func pollLoop(ctx context.Context, cfg *config.Settings, mon *monitor.Monitor, svc *api.Service, dispatcher *notify.Dispatcher) {
	run := func() {
		r := mon.Run(ctx)
		svc.SetReport(r)

		if cfg.DiskReport {
			if _, err := report.Write(r, cfg); err != nil {
				log.Error().Err(err).Msg("Failed to write report")
			}
		}
		if len(r.Breaches) > 0 && len(dispatcher.Channels()) > 0 {
			if err := dispatcher.Send(ctx, notify.FromReport(r)); err != nil &&
				!errors.Is(err, notify.ErrNoChannels) {
				log.Error().Err(err).Msg("Failed to send notifications")
			}
		}
		logRunSummary(r)
	}

	run()
	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}

func logRunSummary(r *models.Report) {
	if criticals := r.Criticals(); len(criticals) > 0 {
		log.Warn().Int("critical", len(criticals)).Msg("Critical findings present")
	}
}

// setupLogging configures zerolog based on log level.
func setupLogging(level string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
