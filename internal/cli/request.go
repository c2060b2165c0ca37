package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/wirehttp/wirehttp/internal/tui"
	"github.com/wirehttp/wirehttp/pkg/protocol"
)

func (a *app) requestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request URL",
		Short: "Send a request with an explicit method",
		Long: `Send a single request and print the response body.

Examples:
  wirehttp request -X DELETE https://example.com/items/1
  wirehttp request -X POST https://example.com/items -d @item.json -H 'Content-Type: application/json'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := a.v.GetString("request")
			method, ok := protocol.ParseMethod(name)
			if !ok {
				return fmt.Errorf("unsupported method %q", name)
			}
			return a.send(cmd, method, args[0])
		},
	}

	cmd.Flags().StringP("request", "X", "GET", "Request method")
	addRequestFlags(cmd)
	return cmd
}

func (a *app) verbCmd(method protocol.Method) *cobra.Command {
	use := strings.ToLower(method.String()) + " URL"
	short := fmt.Sprintf("Send a %s request", method)
	if method == protocol.MethodPost || method == protocol.MethodPut || method == protocol.MethodPatch {
		use += " -d BODY"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.send(cmd, method, args[0])
		},
	}
	addRequestFlags(cmd)
	return cmd
}

func addRequestFlags(cmd *cobra.Command) {
	def := protocol.DefaultRequestConfig()

	f := cmd.Flags()
	f.StringArrayP("header", "H", nil, "Extra header \"Name: value\" (repeatable)")
	f.StringP("data", "d", "", "Request body, or @file to read it from a file")
	f.Duration("timeout", def.TotalTimeout, "Timeout for writing the request and reading the response")
	f.Duration("connect-timeout", def.ConnectTimeout, "Timeout for resolve, connect and TLS handshake")
	f.Int("max-redirects", def.MaxRedirects, "Maximum redirects to follow")
	f.Bool("no-follow", false, "Return redirect responses instead of following them")
	f.Int64("max-size", def.MaxResponseSize, "Maximum response size in bytes (0 = unlimited)")
	f.BoolP("insecure", "k", false, "Skip TLS certificate verification")
	f.String("cacert", "", "PEM bundle of extra trusted CA certificates")
	f.String("fingerprint", "", "TLS ClientHello fingerprint (chrome, firefox, safari, ios)")
	f.Bool("compressed", false, "Request a compressed response")
	f.BoolP("include", "i", false, "Print the status line and headers")
	f.StringP("output", "o", "", "Write the body to this file")
	f.BoolP("verbose", "v", false, "Print a timing line to stderr")
	f.Bool("fail", false, "Exit with an error on 4xx and 5xx responses")
}

// requestConfig assembles the per-request settings from flags and env.
func (a *app) requestConfig() (protocol.RequestConfig, error) {
	cfg := protocol.RequestConfig{
		TotalTimeout:    a.v.GetDuration("timeout"),
		ConnectTimeout:  a.v.GetDuration("connect-timeout"),
		FollowRedirects: !a.v.GetBool("no-follow"),
		MaxRedirects:    a.v.GetInt("max-redirects"),
		MaxResponseSize: a.v.GetInt64("max-size"),
		VerifyTLS:       !a.v.GetBool("insecure"),
		CABundlePath:    a.v.GetString("cacert"),
	}

	if cfg.MaxRedirects < 0 {
		return cfg, fmt.Errorf("max-redirects must not be negative")
	}
	if cfg.MaxResponseSize < 0 {
		return cfg, fmt.Errorf("max-size must not be negative")
	}
	return cfg, nil
}

func (a *app) transport() (*protocol.TransportContext, error) {
	fp := a.v.GetString("fingerprint")
	if !protocol.ValidFingerprint(fp) {
		return nil, fmt.Errorf("unknown fingerprint %q", fp)
	}

	tc := protocol.NewTransportContext()
	tc.FS = a.fs
	tc.Logger = a.logger
	tc.Fingerprint = fp
	return tc, nil
}

// parseHeaders turns repeated "Name: value" flags into ordered headers.
func parseHeaders(raw []string) (protocol.Headers, error) {
	var headers protocol.Headers
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return headers, fmt.Errorf("invalid header %q, expected \"Name: value\"", h)
		}
		headers.Add(name, strings.TrimSpace(value))
	}
	return headers, nil
}

func (a *app) body(cmd *cobra.Command) ([]byte, error) {
	data, _ := cmd.Flags().GetString("data")
	if path, ok := strings.CutPrefix(data, "@"); ok {
		b, err := afero.ReadFile(a.fs, path)
		if err != nil {
			return nil, fmt.Errorf("failed to read body file: %w", err)
		}
		return b, nil
	}
	if data == "" {
		return nil, nil
	}
	return []byte(data), nil
}

func (a *app) send(cmd *cobra.Command, method protocol.Method, rawURL string) error {
	cfg, err := a.requestConfig()
	if err != nil {
		return err
	}

	// StringArray values are read from cobra directly; viper would split
	// them on commas.
	raw, _ := cmd.Flags().GetStringArray("header")
	headers, err := parseHeaders(raw)
	if err != nil {
		return err
	}
	if !headers.Has("User-Agent") {
		headers.Set("User-Agent", "wirehttp/"+version)
	}
	if a.v.GetBool("compressed") && !headers.Has("Accept-Encoding") {
		headers.Set("Accept-Encoding", protocol.AcceptEncoding)
	}

	body, err := a.body(cmd)
	if err != nil {
		return err
	}

	tc, err := a.transport()
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := protocol.New(tc).Request(method, rawURL, headers, body, cfg)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	out := cmd.OutOrStdout()
	if a.v.GetBool("include") || method == protocol.MethodHead {
		writeHead(out, resp)
	}

	if path := a.v.GetString("output"); path != "" {
		if err := afero.WriteFile(a.fs, path, resp.Body, 0o644); err != nil {
			return fmt.Errorf("failed to write body: %w", err)
		}
	} else if _, err := out.Write(resp.Body); err != nil {
		return err
	}

	if a.v.GetBool("verbose") {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %s %s %s\n",
			tui.StatusStyle(resp.StatusCode).Render(fmt.Sprintf("%d", resp.StatusCode)),
			tui.DimStyle.Render(tui.ArrowRight),
			tui.ValueStyle.Render(fmt.Sprintf("%d bytes", len(resp.Body))),
			tui.DimStyle.Render("in "+elapsed.Round(time.Millisecond).String()))
	}

	if a.v.GetBool("fail") {
		return resp.CheckStatus()
	}
	return nil
}

func writeHead(w io.Writer, resp *protocol.Response) {
	reason := resp.Reason
	if reason != "" {
		reason = " " + reason
	}
	fmt.Fprintf(w, "%s %s%s\n",
		resp.Proto,
		tui.StatusStyle(resp.StatusCode).Render(fmt.Sprintf("%d", resp.StatusCode)),
		reason)

	resp.Headers.Each(func(name, value string) {
		fmt.Fprintf(w, "%s: %s\n", tui.HeaderNameStyle.Render(name), value)
	})
	fmt.Fprintln(w)
}
