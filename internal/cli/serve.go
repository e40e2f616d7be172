package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/pywiz/internal/config"
	"github.com/ppiankov/pywiz/internal/logx"
	"github.com/ppiankov/pywiz/internal/server"
)

var (
	serveHTTPAddr string
	serveGRPCPort int
	serveAuditLog string
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveHTTPAddr, "http", "", "HTTP listen address (overrides server.http_addr)")
	serveCmd.Flags().IntVar(&serveGRPCPort, "port", 0, "gRPC listen port (overrides server.grpc_port)")
	serveCmd.Flags().StringVar(&serveAuditLog, "audit-log", "", "Path to audit log JSONL file (overrides audit.path)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the trace server",
	Long: "Serves POST /trace over HTTP and TraceService/Trace over gRPC.\n" +
		"Limits and allowed origins hot-reload when the config file changes.",
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if serveHTTPAddr != "" {
		cfg.Server.HTTPAddr = serveHTTPAddr
	}
	if serveGRPCPort != 0 {
		cfg.Server.GRPCPort = serveGRPCPort
	}
	if serveAuditLog != "" {
		cfg.Audit.Path = serveAuditLog
	}

	log := logx.Stderr
	srv, err := server.New(server.Options{ConfigPath: configPath, Config: cfg, Logger: log})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	defer srv.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watchPath := configPath
	if watchPath == "" {
		watchPath, _ = config.DefaultPath()
	}
	reloader, err := server.NewReloader(srv, watchPath)
	if err != nil {
		log.Warnf("hot-reload disabled: %v", err)
	} else {
		go reloader.Run(ctx)
	}

	log.Infof("pywiz listening on http %s", cfg.Server.HTTPAddr)
	if cfg.Server.GRPCPort > 0 {
		log.Infof("pywiz listening on grpc :%d", cfg.Server.GRPCPort)
	}
	if cfg.Audit.Path != "" {
		log.Infof("audit log: %s", cfg.Audit.Path)
	}

	err = srv.Start(ctx)
	log.Infof("server stopped")
	return err
}
