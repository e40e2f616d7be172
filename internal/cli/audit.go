package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/pywiz/internal/audit"
	"github.com/ppiankov/pywiz/internal/config"
)

var (
	tailLines       int
	replayLog       string
	replayTransport string
	replayOutcome   string
	replayFrom      string
	replayTo        string
	replayFormat    string
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditTailCmd)
	auditCmd.AddCommand(auditReplayCmd)
	auditTailCmd.Flags().IntVarP(&tailLines, "lines", "n", 10, "Number of recent entries to show")
	auditReplayCmd.Flags().StringVarP(&replayLog, "log", "l", "", "Path to audit log (default audit.path from config)")
	auditReplayCmd.Flags().StringVar(&replayTransport, "transport", "", "Only requests from this transport (http|grpc|mcp|cli)")
	auditReplayCmd.Flags().StringVar(&replayOutcome, "outcome", "", "Only requests with this outcome")
	auditReplayCmd.Flags().StringVar(&replayFrom, "from", "", "Start time filter (RFC3339)")
	auditReplayCmd.Flags().StringVar(&replayTo, "to", "", "End time filter (RFC3339)")
	auditReplayCmd.Flags().StringVarP(&replayFormat, "format", "f", "text", "Output format (text|json)")
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the request log",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify <path>",
	Short: "Verify hash chain integrity of a request log",
	Long:  "Checks each entry's prev_hash against the SHA-256 of the line before it.\nExits 1 at the first broken link.",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditVerify,
}

var auditTailCmd = &cobra.Command{
	Use:   "tail <path>",
	Short: "Show recent request log entries",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditTail,
}

var auditReplayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Render a timeline of traced requests",
	Long:  "Reads the request log, filters by transport, outcome and time range,\nand renders a timeline with per-outcome counts.",
	Args:  cobra.NoArgs,
	RunE:  runAuditReplay,
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	result := audit.Verify(args[0])
	if result.Valid {
		fmt.Fprintf(cmd.OutOrStdout(), "OK: %d entries verified\n", result.Lines)
		return nil
	}
	return &ExitCodeError{
		Code: ExitError,
		Err:  fmt.Errorf("FAILED at line %d: %s", result.ErrorLine, result.Error),
	}
}

func runAuditTail(cmd *cobra.Command, args []string) error {
	lines, err := audit.Tail(args[0], tailLines)
	if err != nil {
		return fmt.Errorf("read audit log: %w", err)
	}
	out := cmd.OutOrStdout()
	for _, line := range lines {
		var entry audit.Entry
		if json.Unmarshal(line, &entry) != nil {
			fmt.Fprintln(out, string(line))
			continue
		}
		pretty, _ := json.MarshalIndent(entry, "", "  ")
		fmt.Fprintln(out, string(pretty))
	}
	return nil
}

// parseBound reads an optional RFC3339 --from/--to value.
func parseBound(flag, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s time %q: %w", flag, value, err)
	}
	return t, nil
}

func runAuditReplay(cmd *cobra.Command, args []string) error {
	path := replayLog
	if path == "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		path = cfg.Audit.Path
	}
	if path == "" {
		return fmt.Errorf("no audit log: pass --log or set audit.path")
	}

	from, err := parseBound("from", replayFrom)
	if err != nil {
		return err
	}
	to, err := parseBound("to", replayTo)
	if err != nil {
		return err
	}
	filter := audit.ReplayFilter{Transport: replayTransport, Outcome: replayOutcome, From: from, To: to}

	result, err := audit.Replay(path, filter)
	if err != nil {
		return err
	}

	switch replayFormat {
	case "json":
		out, err := audit.FormatJSON(result)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
	default:
		fmt.Fprint(cmd.OutOrStdout(), audit.FormatTimeline(result))
	}
	return nil
}
