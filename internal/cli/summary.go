package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/wirehttp/wirehttp/internal/stats"
	"github.com/wirehttp/wirehttp/internal/tui"
)

func (a *app) summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show the last run summary from a log file",
		Long: `Summary scans a log written by 'wirehttp run --log-file' and prints
the most recent SUMMARY line.

Example:
  wirehttp summary --log-file wirehttp.log`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := a.v.GetString("log-file")
			if path == "" {
				return fmt.Errorf("--log-file is required")
			}
			// Reading the log must not append to it.
			a.teardown(cmd, nil)
			a.logger.SetOutput(cmd.ErrOrStderr())

			line, err := a.lastSummary(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if line == "" {
				fmt.Fprintln(out, tui.WarningStyle.Render("  No summary found in "+path))
				return nil
			}

			pairs, _ := stats.ParseSummary(line)
			// Drop the quoting the log formatter put around the message.
			for i := range pairs {
				pairs[i][1], _, _ = strings.Cut(pairs[i][1], `"`)
			}
			printSummary(out, "Last Run Summary", pairs)
			return nil
		},
	}
}

// lastSummary returns the last line of the log that carries a summary.
func (a *app) lastSummary(path string) (string, error) {
	f, err := a.fs.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	var last string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := scanner.Text(); strings.Contains(line, "SUMMARY:") {
			last = line
		}
	}
	return last, scanner.Err()
}
