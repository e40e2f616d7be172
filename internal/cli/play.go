package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/ppiankov/pywiz/internal/budget"
	"github.com/ppiankov/pywiz/internal/lang"
	"github.com/ppiankov/pywiz/internal/player"
	"github.com/ppiankov/pywiz/internal/tracer"
)

func init() {
	rootCmd.AddCommand(playCmd)
}

var playCmd = &cobra.Command{
	Use:   "play <file.py|trace.json>",
	Short: "Step through a trace in the terminal",
	Long: "Opens an interactive player over a trace document. A .json argument is\n" +
		"read as a saved document, anything else is traced first. A run cut short\n" +
		"by a limit is still played up to where it stopped.",
	Args: cobra.ExactArgs(1),
	RunE: runPlay,
}

func runPlay(cmd *cobra.Command, args []string) error {
	res, err := loadPlayable(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return fmt.Errorf("play needs a terminal")
	}
	return player.Start(res)
}

// loadPlayable reads a saved document or traces a source file.
func loadPlayable(ctx context.Context, path string) (tracer.Result, error) {
	if strings.HasSuffix(path, ".json") {
		f, err := os.Open(path)
		if err != nil {
			return tracer.Result{}, fmt.Errorf("open trace: %w", err)
		}
		defer f.Close()
		return tracer.ReadResult(f)
	}

	src, err := readSource(path, os.Stdin)
	if err != nil {
		return tracer.Result{}, err
	}
	limits, err := loadLimits(budget.Limits{})
	if err != nil {
		return tracer.Result{}, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	res, err := tracer.Trace(ctx, src, tracer.Options{Filename: path, Limits: limits})
	var ce *lang.CompileError
	if errors.As(err, &ce) {
		return tracer.Result{}, &ExitCodeError{Code: ExitCompile, Err: errors.New(strings.TrimRight(ce.Snippet(src), "\n"))}
	}
	var ee *budget.ExceededError
	if err != nil && !errors.As(err, &ee) {
		return tracer.Result{}, err
	}
	return res, nil
}
