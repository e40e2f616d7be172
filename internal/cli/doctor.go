package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/pywiz/internal/audit"
	"github.com/ppiankov/pywiz/internal/config"
	"github.com/ppiankov/pywiz/internal/tracer"
)

func init() {
	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, request log and sandbox",
	RunE:  runDoctor,
}

type checkResult struct {
	label  string
	ok     bool
	detail string
	fix    string
}

func runDoctor(cmd *cobra.Command, args []string) error {
	var checks []checkResult

	execPath, _ := os.Executable()
	if execPath != "" {
		checks = append(checks, checkResult{label: "pywiz binary", ok: true, detail: fmt.Sprintf("%s (v%s)", execPath, version)})
	} else {
		checks = append(checks, checkResult{label: "pywiz binary", detail: "cannot determine executable path"})
	}

	path := configPath
	if path == "" {
		path, _ = config.DefaultPath()
	}
	cfg, cfgErr := config.Load(path)
	switch {
	case cfgErr != nil:
		checks = append(checks, checkResult{label: "config", detail: cfgErr.Error(), fix: "pywiz init --force"})
		cfg = config.DefaultConfig()
	case fileExists(path):
		checks = append(checks, checkResult{label: "config", ok: true, detail: path})
	default:
		checks = append(checks, checkResult{label: "config", ok: true, detail: "defaults (no file)"})
	}

	if cfg.Audit.Path == "" {
		checks = append(checks, checkResult{label: "request log", ok: true, detail: "disabled"})
	} else if !fileExists(cfg.Audit.Path) {
		checks = append(checks, checkResult{label: "request log", ok: true, detail: cfg.Audit.Path + " (not written yet)"})
	} else if res := audit.Verify(cfg.Audit.Path); res.Valid {
		checks = append(checks, checkResult{label: "request log", ok: true, detail: fmt.Sprintf("%s (%d entries)", cfg.Audit.Path, res.Lines)})
	} else {
		checks = append(checks, checkResult{
			label:  "request log",
			detail: fmt.Sprintf("line %d: %s", res.ErrorLine, res.Error),
			fix:    "pywiz audit verify " + cfg.Audit.Path,
		})
	}

	checks = append(checks, sandboxCheck(cmd.Context()))

	if !printChecks(cmd.OutOrStdout(), checks) {
		return fmt.Errorf("doctor found issues")
	}
	return nil
}

func sandboxCheck(ctx context.Context) checkResult {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	res, err := tracer.Trace(ctx, "def f(x):\n    return x + 1\nprint(f(1))\n", tracer.Options{})
	if err != nil {
		return checkResult{label: "sandbox", detail: err.Error()}
	}
	if got := collectStdout(res.Trace); got != "2\n" {
		return checkResult{label: "sandbox", detail: fmt.Sprintf("unexpected output %q", got)}
	}
	return checkResult{label: "sandbox", ok: true, detail: fmt.Sprintf("%d events in %s", len(res.Trace), time.Since(start).Round(time.Microsecond))}
}

func printChecks(w io.Writer, checks []checkResult) bool {
	ok := true
	for _, c := range checks {
		mark := "\u2713" // ✓
		if !c.ok {
			mark = "\u2717" // ✗
			ok = false
		}
		line := fmt.Sprintf("%s %-20s %s", mark, c.label+":", c.detail)
		if !c.ok && c.fix != "" {
			line += fmt.Sprintf("  ->  %s", c.fix)
		}
		fmt.Fprintln(w, line)
	}

	fmt.Fprintln(w)
	if !ok {
		fmt.Fprintln(w, "Some checks failed. Run the suggested commands to fix.")
		return false
	}
	fmt.Fprintln(w, "All checks passed.")
	return true
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
