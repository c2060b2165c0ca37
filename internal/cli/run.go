package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/wirehttp/wirehttp/internal/config"
	"github.com/wirehttp/wirehttp/internal/controller"
	"github.com/wirehttp/wirehttp/internal/health"
	"github.com/wirehttp/wirehttp/internal/log"
	"github.com/wirehttp/wirehttp/internal/stats"
	"github.com/wirehttp/wirehttp/internal/tui"
	"github.com/wirehttp/wirehttp/internal/worker"
	"github.com/wirehttp/wirehttp/pkg/protocol"
)

func (a *app) runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Send traffic to the targets in a config file",
		Long: `Run sends requests to the configured targets at a steady rate until the
duration or request budget is spent, or until interrupted. A summary is
printed and logged on exit.

Example:
  wirehttp run -c wirehttp.yaml
  wirehttp run -c wirehttp.yaml --rate 200 --duration 1m`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.run(ctx, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringP("config", "c", "wirehttp.yaml", "Path to configuration file")
	f.Float64("rate", 0, "Override controller.rate (requests per second)")
	f.Duration("duration", 0, "Override controller.duration")
	f.Int64("requests", 0, "Override controller.requests")
	f.Bool("no-metrics", false, "Do not start the metrics server")
	return cmd
}

// loadConfig reads the config file and applies flag and env overrides.
func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(a.fs, a.v.GetString("config"))
	if err != nil {
		return nil, err
	}

	if a.v.IsSet("rate") {
		cfg.Controller.Rate = a.v.GetFloat64("rate")
	}
	if a.v.IsSet("duration") {
		cfg.Controller.Duration = a.v.GetDuration("duration")
	}
	if a.v.IsSet("requests") {
		cfg.Controller.Requests = a.v.GetInt64("requests")
	}
	if a.v.GetBool("no-metrics") {
		cfg.Metrics.Enabled = false
	}
	if cfg.Controller.Rate <= 0 {
		return nil, fmt.Errorf("rate must be positive")
	}

	// Log flags win over the file.
	logCfg := cfg.Log
	for key, dst := range map[string]*string{
		"log-level":  &logCfg.Level,
		"log-format": &logCfg.Format,
		"log-file":   &logCfg.File,
	} {
		if a.v.IsSet(key) {
			*dst = a.v.GetString(key)
		}
	}
	if err := a.configureLog(logCfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (a *app) run(ctx context.Context, out io.Writer) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	tc := protocol.NewTransportContext()
	tc.FS = a.fs
	tc.Logger = a.logger
	tc.Fingerprint = cfg.Transport.Fingerprint

	runLog := log.Component("run")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := health.NewMetrics(reg)

	checker := health.NewChecker(cfg.Health, cfg.Client, cfg.Targets, protocol.New(tc), metrics)
	pool := worker.NewPool(cfg.Worker, func() protocol.Client { return protocol.New(tc) }, metrics)
	recorder := stats.NewRecorder()
	ctrl := controller.NewController(cfg.Controller, cfg.Client, cfg.Targets, pool, checker, recorder)

	var server *health.Server
	if cfg.Metrics.Enabled {
		server = health.NewServer(cfg.Metrics, reg, checker.AnyHealthy)
		go func() {
			if err := server.Start(); err != nil {
				runLog.WithError(err).Error("metrics server failed")
			}
		}()
	}

	fmt.Fprintln(out, tui.MiniLogo()+tui.DimStyle.Render(" "+version))
	fmt.Fprintln(out, tui.KeyValue("config", a.v.GetString("config"), 10))
	fmt.Fprintln(out, tui.KeyValue("targets", fmt.Sprintf("%d", len(cfg.Targets)), 10))
	fmt.Fprintln(out, tui.KeyValue("rate", fmt.Sprintf("%.0f rps", cfg.Controller.Rate), 10))
	if cfg.Metrics.Enabled {
		fmt.Fprintln(out, tui.KeyValue("metrics", cfg.Metrics.Address+cfg.Metrics.Path, 10))
	}
	fmt.Fprintln(out)

	// The pool outlives ctx so that in-flight requests can drain.
	pool.Start(context.Background())
	checker.Start(ctx)
	ctrl.Start(ctx)

	select {
	case <-ctx.Done():
		fmt.Fprintln(out, tui.WarningStyle.Render("  Shutting down..."))
	case <-ctrl.Done():
	}

	ctrl.Stop()
	if !pool.Drain(cfg.Controller.ShutdownTimeout) {
		runLog.WithField("pending", pool.Pending()).Warn("shutdown timeout, abandoning queued requests")
	}
	pool.Stop()
	checker.Stop()

	if server != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Stop(stopCtx); err != nil {
			runLog.WithError(err).Warn("metrics server shutdown")
		}
	}

	// Logged without fields so the line stays parseable by `summary`.
	summary := recorder.Snapshot().Summary()
	a.logger.Info(summary)

	pairs, _ := stats.ParseSummary(summary)
	printSummary(out, "Run Summary", pairs)
	return nil
}

// printSummary renders SUMMARY pairs as an aligned label/value list.
func printSummary(w io.Writer, title string, pairs [][2]string) {
	fmt.Fprintln(w, tui.SubtitleStyle.Render("  "+title+":"))
	for _, kv := range pairs {
		fmt.Fprintln(w, "  "+tui.KeyValue(kv[0], kv[1], 12))
	}
	fmt.Fprintln(w)
}
