package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/pywiz/internal/config"
)

var (
	initForce    bool
	initAuditLog bool
)

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
	initCmd.Flags().BoolVar(&initAuditLog, "audit-log", false, "Enable the request log next to the config file")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default pywiz configuration",
	Long: `Creates the config file with built-in defaults.

Writes to --config when given, otherwise ~/.pywiz/config.yaml.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return fmt.Errorf("cannot determine home directory: %w", err)
		}
		path = p
	}

	cfg := config.DefaultConfig()
	if initAuditLog {
		cfg.Audit.Path = filepath.Join(filepath.Dir(path), "requests.jsonl")
	}
	content, err := defaultConfigYAML(cfg)
	if err != nil {
		return fmt.Errorf("generate default config: %w", err)
	}

	wrote, err := writeIfMissing(path, content)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "pywiz init complete.")
	fmt.Fprintln(out)
	if wrote {
		fmt.Fprintf(out, "Created:\n  %s\n", path)
	} else {
		fmt.Fprintln(out, "Config already exists (use --force to overwrite).")
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Trace a program:")
	fmt.Fprintln(out, "  pywiz trace --pretty program.py")
	return nil
}

// writeIfMissing writes content to path if it doesn't exist or --force is set.
// Returns true if the file was written.
func writeIfMissing(path, content string) (bool, error) {
	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("create directory %s: %w", dir, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}

func defaultConfigYAML(cfg *config.Config) (string, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}
	header := "# pywiz configuration.\n" +
		"# limits: zero disables a dimension. server: listen addresses and CORS.\n" +
		"# Limits and allowed_origins reload while `pywiz serve` runs.\n\n"
	return header + string(data), nil
}
