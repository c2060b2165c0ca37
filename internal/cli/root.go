package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/wirehttp/wirehttp/internal/config"
	"github.com/wirehttp/wirehttp/internal/log"
	"github.com/wirehttp/wirehttp/internal/tui"
	"github.com/wirehttp/wirehttp/pkg/protocol"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// app carries the state of one command invocation.
type app struct {
	v      *viper.Viper
	fs     afero.Fs
	logger *logrus.Logger
	logs   io.Closer
}

func newApp(fs afero.Fs) *app {
	v := viper.New()
	v.SetEnvPrefix("WIREHTTP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return &app{v: v, fs: fs, logger: logrus.StandardLogger()}
}

func versionString() string {
	return fmt.Sprintf("%s (commit %s, built %s)", version, gitCommit, buildTime)
}

// newRootCmd builds the command tree. Every call returns fresh flag state.
func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "wirehttp",
		Short: "Raw-socket HTTP/1.1 client",
		Long: `wirehttp speaks HTTP/1.1 directly over TCP and TLS sockets.

Get started:
  wirehttp get https://example.com          One-shot request
  wirehttp post URL -d '{"a":1}'            Send a body
  wirehttp run -c wirehttp.yaml             Drive traffic at configured targets
  wirehttp check -c wirehttp.yaml           Probe every target once
  wirehttp summary --log-file wirehttp.log  Show the last run summary`,
		Version:           versionString(),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: a.teardown,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	pf := root.PersistentFlags()
	pf.String("log-level", "warn", "Log level (debug, info, warn, error)")
	pf.String("log-format", "text", "Log format (text, json)")
	pf.String("log-file", "", "Append logs to this file instead of stderr")

	root.AddCommand(a.requestCmd())
	for _, m := range []protocol.Method{
		protocol.MethodGet, protocol.MethodHead, protocol.MethodDelete,
		protocol.MethodPost, protocol.MethodPut, protocol.MethodPatch,
	} {
		root.AddCommand(a.verbCmd(m))
	}
	root.AddCommand(a.runCmd(), a.checkCmd(), a.summaryCmd())

	return root
}

// setup binds the executing command's flags to viper, so WIREHTTP_* env
// vars can supply any flag, and configures logging.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	lo.Must0(a.v.BindPFlags(cmd.Flags()))

	return a.configureLog(config.Log{
		Level:  a.v.GetString("log-level"),
		Format: a.v.GetString("log-format"),
		File:   a.v.GetString("log-file"),
	})
}

func (a *app) configureLog(cfg config.Log) error {
	if a.logs != nil {
		a.logs.Close()
	}

	closer, err := log.Setup(a.logger, a.fs, cfg)
	if err != nil {
		return err
	}
	a.logs = closer
	return nil
}

func (a *app) teardown(_ *cobra.Command, _ []string) {
	if a.logs != nil {
		a.logs.Close()
		a.logs = nil
	}
}

// Execute runs the root command
func Execute() {
	if err := newRootCmd(newApp(afero.NewOsFs())).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, tui.ErrorStyle.Render(tui.CrossMark+" "+err.Error()))
		os.Exit(exitCode(err))
	}
}

// exitCode maps failures to curl-compatible exit statuses.
func exitCode(err error) int {
	var status *protocol.StatusError
	if errors.As(err, &status) {
		return 22
	}

	switch protocol.KindOf(err) {
	case protocol.KindURL:
		return 3
	case protocol.KindNetwork:
		return 7
	case protocol.KindParse:
		return 8
	case protocol.KindTimeout:
		return 28
	case protocol.KindTLS:
		return 35
	default:
		return 1
	}
}

// SetVersion sets the version info
func SetVersion(v, bt string) {
	version = v
	buildTime = bt
}

// SetGitCommit sets the commit the binary was built from.
func SetGitCommit(c string) {
	gitCommit = c
}
