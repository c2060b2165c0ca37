package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/wirehttp/wirehttp/internal/health"
	"github.com/wirehttp/wirehttp/internal/tui"
	"github.com/wirehttp/wirehttp/pkg/protocol"
)

func (a *app) checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Probe every configured target once",
		Long: `Check sends one GET to every target in the config file and reports
which ones answer with a 2xx or 3xx status.

Example:
  wirehttp check -c wirehttp.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.check(cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringP("config", "c", "wirehttp.yaml", "Path to configuration file")
	return cmd
}

func (a *app) check(out io.Writer) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	tc := protocol.NewTransportContext()
	tc.FS = a.fs
	tc.Logger = a.logger
	tc.Fingerprint = cfg.Transport.Fingerprint

	metrics := health.NewMetrics(prometheus.NewRegistry())
	checker := health.NewChecker(cfg.Health, cfg.Client, cfg.Targets, protocol.New(tc), metrics)

	fmt.Fprintln(out)
	fmt.Fprintln(out, tui.TitleStyle.Render(" wirehttp check "))
	fmt.Fprintln(out, tui.Divider(50))

	unhealthy := 0
	for _, st := range checker.CheckAll() {
		fmt.Fprintln(out, statusRow(st))
		if !st.Healthy {
			unhealthy++
		}
	}
	fmt.Fprintln(out)

	if unhealthy > 0 {
		return fmt.Errorf("%d of %d targets unhealthy", unhealthy, len(cfg.Targets))
	}
	return nil
}

func statusRow(st health.Status) string {
	latency := tui.DimStyle.Render(st.Latency.Round(time.Millisecond).String())
	name := tui.ValueStyle.Width(16).Render(st.Target)

	switch {
	case st.Err != nil:
		return fmt.Sprintf("  %s %s %s %s",
			tui.ErrorStyle.Render(tui.CrossMark), name,
			tui.ErrorStyle.Render(st.Err.Error()), latency)
	case !st.Healthy:
		return fmt.Sprintf("  %s %s %s %s",
			tui.ErrorStyle.Render(tui.CrossMark), name,
			tui.StatusStyle(st.StatusCode).Render(fmt.Sprintf("%d", st.StatusCode)), latency)
	default:
		return fmt.Sprintf("  %s %s %s %s",
			tui.SuccessStyle.Render(tui.CheckMark), name,
			tui.StatusStyle(st.StatusCode).Render(fmt.Sprintf("%d", st.StatusCode)), latency)
	}
}
