package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/ppiankov/pywiz/internal/budget"
	"github.com/ppiankov/pywiz/internal/lang"
	"github.com/ppiankov/pywiz/internal/tracer"
)

const (
	historyFile = ".pywiz_history"
	promptMain  = ">>> "
	promptCont  = "... "
	replFile    = "<repl>"
)

func init() {
	rootCmd.AddCommand(replCmd)
}

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive session that traces every block you enter",
	Long: "Each accepted block is appended to the session program, which is traced\n" +
		"again from the start. New output and an event summary are printed.\n" +
		"Blocks that fail to compile, raise or hit a limit are not kept.\n\n" +
		"Commands: :quit, :reset, :show, :trace",
	Args: cobra.NoArgs,
	RunE: runRepl,
}

// Session is the program built up by a REPL.
type Session struct {
	limits budget.Limits
	src    string
	stdout string
	last   tracer.Result
}

// Turn is what one submitted block produced.
type Turn struct {
	// Output is the stdout the block added.
	Output  string
	Summary tracer.Summary
	// Uncaught is set when the block raised and was discarded.
	Uncaught string
}

// NewSession starts an empty program traced under limits.
func NewSession(limits budget.Limits) *Session {
	return &Session{limits: limits}
}

// Source returns the accepted program.
func (s *Session) Source() string { return s.src }

// Last returns the most recent result, accepted or not.
func (s *Session) Last() tracer.Result { return s.last }

// Reset drops the accepted program.
func (s *Session) Reset() {
	s.src, s.stdout, s.last = "", "", tracer.Result{}
}

// Submit traces the program extended by block. The block is kept only when
// the run compiles, finishes within limits and raises nothing.
func (s *Session) Submit(ctx context.Context, block string) (Turn, error) {
	if !strings.HasSuffix(block, "\n") {
		block += "\n"
	}
	candidate := s.src + block

	res, err := tracer.Trace(ctx, candidate, tracer.Options{Filename: replFile, Limits: s.limits})
	var ce *lang.CompileError
	if errors.As(err, &ce) {
		ce.Line -= strings.Count(s.src, "\n")
		return Turn{}, err
	}
	s.last = res

	stdout := collectStdout(res.Trace)
	turn := Turn{Output: strings.TrimPrefix(stdout, s.stdout), Summary: tracer.Summarize(res)}
	if !strings.HasPrefix(stdout, s.stdout) {
		turn.Output = stdout
	}
	if err != nil {
		return turn, err
	}
	if res.Uncaught != nil {
		turn.Uncaught = res.Uncaught.Error()
		return turn, nil
	}

	s.src, s.stdout = candidate, stdout
	return turn, nil
}

func collectStdout(events []tracer.Event) string {
	var b strings.Builder
	for _, e := range events {
		b.WriteString(e.Out)
	}
	return b.String()
}

// needsMore reports whether an entered chunk is an unfinished statement.
// An open compound statement is finished by an empty line.
func needsMore(chunk string) bool {
	lines := strings.Split(chunk, "\n")
	if len(lines) > 1 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		return false
	}
	for _, line := range lines {
		if strings.HasSuffix(strings.TrimRight(line, " \t"), ":") {
			return true
		}
	}
	_, err := lang.Parse(chunk + "\n")
	var ce *lang.CompileError
	if !errors.As(err, &ce) {
		return false
	}
	return strings.Contains(ce.Msg, "end of input") || strings.Contains(ce.Msg, "was never closed") || ce.Line > len(lines)
}

// readBlock prompts until needsMore is satisfied. ok is false at EOF.
func readBlock(ln *liner.State) (string, bool) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if err != nil {
			return "", true
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		if !needsMore(b.String()) {
			return strings.TrimRight(b.String(), "\n \t") + "\n", true
		}
	}
}

func runRepl(cmd *cobra.Command, args []string) error {
	limits, err := loadLimits(budget.Limits{})
	if err != nil {
		return err
	}

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	fmt.Fprintf(out, "pywiz %s repl. Type :quit to exit.\n", version)

	sess := NewSession(limits)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		block, ok := readBlock(ln)
		if !ok {
			fmt.Fprintln(out)
			return nil
		}
		trimmed := strings.TrimSpace(block)
		if trimmed == "" {
			continue
		}
		ln.AppendHistory(strings.TrimRight(block, "\n"))

		if strings.HasPrefix(trimmed, ":") {
			if quit := replCommand(out, sess, trimmed); quit {
				return nil
			}
			continue
		}
		printTurn(ctx, out, errOut, sess, block)
	}
}

func replCommand(w io.Writer, sess *Session, command string) (quit bool) {
	switch strings.ToLower(command) {
	case ":quit", ":q":
		return true
	case ":reset":
		sess.Reset()
		fmt.Fprintln(w, "session cleared")
	case ":show":
		for i, line := range strings.Split(strings.TrimRight(sess.Source(), "\n"), "\n") {
			if line == "" && sess.Source() == "" {
				break
			}
			fmt.Fprintf(w, "%4d | %s\n", i+1, line)
		}
	case ":trace":
		data, err := sess.Last().JSON("  ")
		if err != nil {
			fmt.Fprintf(w, "error: %v\n", err)
			break
		}
		fmt.Fprintln(w, string(data))
	default:
		fmt.Fprintln(w, "unknown command. Commands: :quit, :reset, :show, :trace")
	}
	return false
}

func printTurn(ctx context.Context, out, errOut io.Writer, sess *Session, block string) {
	turn, err := sess.Submit(ctx, block)
	var ce *lang.CompileError
	if errors.As(err, &ce) {
		fmt.Fprint(errOut, ce.Snippet(block))
		return
	}
	fmt.Fprint(out, turn.Output)
	switch {
	case err != nil:
		fmt.Fprintf(errOut, "%v (block discarded)\n", err)
	case turn.Uncaught != "":
		fmt.Fprintf(errOut, "%s (block discarded)\n", turn.Uncaught)
	}
	fmt.Fprintf(out, "# %s\n", formatSummary(turn.Summary))
}
