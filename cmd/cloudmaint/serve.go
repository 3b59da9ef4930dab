package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/loykin/cloudmaint/internal/credential"
	"github.com/loykin/cloudmaint/internal/logger"
	"github.com/loykin/cloudmaint/internal/maintenance"
	"github.com/loykin/cloudmaint/internal/metrics"
	"github.com/loykin/cloudmaint/internal/schedule"
	"github.com/loykin/cloudmaint/internal/server"
)

// createServeCommand creates the serve subcommand.
func createServeCommand(c command, serveFlags *ServeFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API daemon",
		Long: `Expose the maintenance runner over HTTP:

  POST /run                  trigger a session ({"tasks": [...]}, empty = full)
  GET  /status               lock holder and last report
  GET  /report?format=text   rendered report
  GET  /schedule             registered cron entries
  GET  /credentials/status   credential file metadata

Prometheus metrics are served on a separate listener when enabled.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Serve(*serveFlags)
		},
	}
	cmd.Flags().StringVar(&serveFlags.Listen, "listen", "", "API listen address (overrides config)")
	cmd.Flags().StringVar(&serveFlags.BasePath, "base-path", "", "mount path for API routes")
	cmd.Flags().StringVar(&serveFlags.MetricsListen, "metrics-listen", "", "metrics listen address (overrides config)")
	return cmd
}

// Serve runs the API server until SIGINT/SIGTERM.
func (c command) Serve(f ServeFlags) error {
	fc, err := c.loadConfig()
	if err != nil {
		return err
	}
	logger.Setup(c.debug(fc))

	runner, err := c.buildRunner(fc, maintenance.ModeApply)
	if err != nil {
		return err
	}

	// Termination signals cancel this context so scheduled runs stop their
	// task commands and release the lock before the daemon exits.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exe, err := os.Executable()
	if err != nil {
		return err
	}

	listen := f.Listen
	if listen == "" {
		listen = fc.Server.Listen
	}
	srv, err := server.NewServer(listen, server.Options{
		Runner:     runner,
		LockPath:   fc.Paths.Lock,
		StatusPath: fc.Paths.Status,
		Sched:      schedule.NewManager(exe + " run"),
		Store:      credential.New(fc.Paths.Credential, nil),
		BasePath:   f.BasePath,
	})
	if err != nil {
		return err
	}
	slog.Info("api server listening", "addr", listen, "base_path", f.BasePath)

	var sched *schedule.Daemon
	if len(fc.Schedule) > 0 {
		sched, err = schedule.NewDaemon(fc.Schedule, func(task string) {
			name, perr := maintenance.ParseTask(task)
			if perr != nil {
				slog.Error("scheduled task unknown", "task", task, "error", perr)
				return
			}
			if _, rerr := runner.Run(ctx, []maintenance.TaskName{name}); rerr != nil {
				slog.Error("scheduled run failed", "task", task, "error", rerr)
			}
		})
		if err != nil {
			return err
		}
		sched.Start()
		slog.Info("in-process scheduler started", "entries", len(fc.Schedule))
	}

	var metricsSrv *http.Server
	if fc.Metrics.Enabled {
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			return err
		}
		addr := f.MetricsListen
		if addr == "" {
			addr = fc.Metrics.Listen
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsSrv = &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server failed", "error", err)
			}
		}()
		slog.Info("metrics listening", "addr", addr)
	}

	if f.NonBlocking {
		if sched != nil {
			<-sched.Stop().Done()
		}
		_ = srv.Close()
		if metricsSrv != nil {
			_ = metricsSrv.Close()
		}
		return nil
	}

	<-ctx.Done()
	slog.Info("shutting down")

	if sched != nil {
		<-sched.Stop().Done()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		_ = srv.Close()
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return nil
}
