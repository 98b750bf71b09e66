package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/papercheck/internal/config"
	"github.com/jackzampolin/papercheck/internal/home"
	"github.com/jackzampolin/papercheck/internal/server"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the papercheck server",
	Long: `Start the papercheck HTTP server.

The server analyzes papers with the configured oracle provider and reloads
its config file on change (providers and analysis thresholds).

The server provides:
  - POST /v1/analyze   - Analyze a paper
  - POST /v1/recheck   - Re-grade known questions against new scans
  - GET  /health       - Basic server health check
  - GET  /ready        - Readiness check (oracle provider registered)
  - GET  /metrics      - Prometheus metrics

Examples:
  papercheck serve                    # Start on the configured port (default 8080)
  papercheck serve --port 3000        # Start on custom port
  papercheck serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		bootLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		cm, err := config.NewManager(h.ConfigFile(cfgFile), bootLogger)
		if err != nil {
			return err
		}
		cfg := cm.Get()

		// Set up logger
		logger, err := newLogger(cfg.Server)
		if err != nil {
			return err
		}
		if file := cm.File(); file != "" {
			logger.Info("loaded config", "file", file)
			cm.WatchConfig()
		} else {
			logger.Info("no config file found; using defaults (run papercheck config init)")
		}

		host, port := cfg.Server.Host, cfg.Server.Port
		if cmd.Flags().Changed("host") {
			host = serveHost
		}
		if cmd.Flags().Changed("port") {
			port = servePort
		}

		srv, err := server.New(server.Config{
			Host:          host,
			Port:          port,
			ConfigManager: cm,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

// newLogger builds the server logger from the server config section.
func newLogger(cfg config.ServerCfg) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return nil, fmt.Errorf("server.log_level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(cfg.LogFormat) {
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stdout, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(os.Stdout, opts)), nil
	default:
		return nil, fmt.Errorf("server.log_format %q is not text or json", cfg.LogFormat)
	}
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to (overrides server.host)")
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "Port to listen on (overrides server.port)")

	rootCmd.AddCommand(serveCmd)
}
