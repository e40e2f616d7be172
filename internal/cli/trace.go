package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ppiankov/pywiz/internal/budget"
	"github.com/ppiankov/pywiz/internal/client"
	"github.com/ppiankov/pywiz/internal/config"
	"github.com/ppiankov/pywiz/internal/lang"
	"github.com/ppiankov/pywiz/internal/logx"
	"github.com/ppiankov/pywiz/internal/server"
	"github.com/ppiankov/pywiz/internal/tracer"
)

var (
	tracePretty      bool
	traceSummary     bool
	traceAt          int
	traceFilename    string
	traceRemote      string
	traceMaxSteps    int64
	traceMaxDuration time.Duration
	traceMaxOutput   int64
	traceMaxDepth    int
	traceMaxBytes    int64
)

func init() {
	rootCmd.AddCommand(traceCmd)
	traceCmd.Flags().BoolVar(&tracePretty, "pretty", false, "Indent the JSON document")
	traceCmd.Flags().BoolVar(&traceSummary, "summary", false, "Print a human summary instead of the document")
	traceCmd.Flags().IntVar(&traceAt, "at", 0, "Print the reconstructed state after this 1-based step instead of the document")
	traceCmd.Flags().StringVar(&traceFilename, "filename", "", "Label for the source (default <user_code>)")
	traceCmd.Flags().StringVar(&traceRemote, "remote", "", "Trace on a pywiz server at this gRPC address")
	traceCmd.Flags().Int64Var(&traceMaxSteps, "max-steps", 0, "Override limits.max_steps")
	traceCmd.Flags().DurationVar(&traceMaxDuration, "max-duration", 0, "Override limits.max_duration")
	traceCmd.Flags().Int64Var(&traceMaxOutput, "max-output", 0, "Override limits.max_output_bytes")
	traceCmd.Flags().IntVar(&traceMaxDepth, "max-depth", 0, "Override limits.max_call_depth")
	traceCmd.Flags().Int64Var(&traceMaxBytes, "max-trace-bytes", 0, "Override limits.max_trace_bytes")
}

var traceCmd = &cobra.Command{
	Use:   "trace <file|->",
	Short: "Trace a program and print its event log",
	Long: "Runs the program once in the sandbox and prints the trace document\n" +
		"{filename, code, trace}. Exit codes: 0 ok, 1 error, 2 compile error,\n" +
		"3 uncaught exception (trace still printed), 4 limit reached (partial trace printed).",
	Args: cobra.ExactArgs(1),
	RunE: runTrace,
}

func readSource(path string, stdin io.Reader) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read source: %w", err)
	}
	return string(data), nil
}

func runTrace(cmd *cobra.Command, args []string) error {
	src, err := readSource(args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}
	filename := traceFilename
	if filename == "" && args[0] != "-" {
		filename = args[0]
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if traceRemote != "" {
		return runRemoteTrace(ctx, cmd, filename, src)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg.Limits = cfg.Limits.Merge(budget.Limits{
		MaxSteps:       traceMaxSteps,
		MaxDuration:    traceMaxDuration,
		MaxOutputBytes: traceMaxOutput,
		MaxCallDepth:   traceMaxDepth,
		MaxTraceBytes:  traceMaxBytes,
	})
	srv, err := server.New(server.Options{Config: cfg, Logger: logx.Stderr})
	if err != nil {
		return err
	}
	defer srv.Close()

	run, err := srv.RunTrace(ctx, server.Request{Transport: "cli", Filename: filename, Code: src})
	var ce *lang.CompileError
	if errors.As(err, &ce) {
		fmt.Fprint(cmd.ErrOrStderr(), ce.Snippet(src))
		return &ExitCodeError{Code: ExitCompile}
	}
	var ee *budget.ExceededError
	if err != nil && !errors.As(err, &ee) {
		return err
	}

	res := run.Result
	if err := printResult(cmd.OutOrStdout(), res); err != nil {
		return err
	}

	switch {
	case ee != nil:
		fmt.Fprintf(cmd.ErrOrStderr(), "stopped after %d events: %s\n", len(res.Trace), ee.Error())
		return &ExitCodeError{Code: ExitBudget}
	case res.Uncaught != nil:
		fmt.Fprintf(cmd.ErrOrStderr(), "uncaught %s\n", res.Uncaught.Error())
		return &ExitCodeError{Code: ExitException}
	}
	return nil
}

func runRemoteTrace(ctx context.Context, cmd *cobra.Command, filename, src string) error {
	c, err := client.New(traceRemote)
	if err != nil {
		return err
	}
	defer c.Close()

	reply, err := c.Trace(ctx, filename, src)
	if err != nil {
		st := status.Convert(err)
		switch st.Code() {
		case codes.InvalidArgument:
			fmt.Fprintln(cmd.ErrOrStderr(), st.Message())
			return &ExitCodeError{Code: ExitCompile}
		case codes.ResourceExhausted, codes.Canceled:
			fmt.Fprintln(cmd.ErrOrStderr(), st.Message())
			return &ExitCodeError{Code: ExitBudget}
		}
		return err
	}

	if err := printResult(cmd.OutOrStdout(), reply.Result); err != nil {
		return err
	}
	if reply.Outcome == "exception" {
		return &ExitCodeError{Code: ExitException}
	}
	return nil
}

func printResult(w io.Writer, res tracer.Result) error {
	switch {
	case traceAt > 0:
		fmt.Fprint(w, formatState(res, traceAt))
	case traceSummary:
		fmt.Fprintln(w, formatSummary(tracer.Summarize(res)))
	default:
		indent := ""
		if tracePretty {
			indent = "  "
		}
		data, err := res.JSON(indent)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
	}
	return nil
}

func formatSummary(s tracer.Summary) string {
	return fmt.Sprintf("%s events (%s calls, %s lines, %s returns, %s exceptions) | %d frames, max depth %d | %s output | %s",
		humanize.Comma(int64(s.Events)),
		humanize.Comma(int64(s.Calls)),
		humanize.Comma(int64(s.Lines)),
		humanize.Comma(int64(s.Returns)),
		humanize.Comma(int64(s.Exceptions)),
		s.Frames, s.MaxDepth,
		humanize.Bytes(uint64(s.OutputBytes)),
		time.Duration(s.Elapsed),
	)
}

// formatState renders the reconstructed state after a 1-based step.
func formatState(res tracer.Result, step int) string {
	if len(res.Trace) == 0 {
		return "empty trace\n"
	}
	if step > len(res.Trace) {
		step = len(res.Trace)
	}
	st := tracer.ReconstructState(res.Trace, step-1)
	ev := st.Last

	var b strings.Builder
	fmt.Fprintf(&b, "step %d/%d  %s %s:%d (fid %d, depth %d)\n", ev.Step, len(res.Trace), ev.Kind, ev.Func, ev.Line, ev.FID, ev.Depth)
	if ev.Kind == tracer.KindException {
		fmt.Fprintf(&b, "exception: %s: %s\n", ev.ExcType, ev.Exc)
	}
	if ev.HasRet {
		fmt.Fprintf(&b, "return: %s\n", tracer.FormatValue(ev.Ret))
	}
	b.WriteString("stack:\n")
	for _, f := range st.Stack() {
		fmt.Fprintf(&b, "  %s #%d line %d\n", f.Func, f.FID, f.Line)
		for _, v := range f.Locals {
			fmt.Fprintf(&b, "    %s = %s\n", v.Name, tracer.FormatValue(v.Value))
		}
	}
	if st.Stdout != "" {
		b.WriteString("output:\n")
		for _, line := range strings.Split(strings.TrimRight(st.Stdout, "\n"), "\n") {
			fmt.Fprintf(&b, "  %s\n", line)
		}
	}
	return b.String()
}
