package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/uprename/internal/config"
	"github.com/vango-dev/uprename/internal/server"
)

func serveCmd() *cobra.Command {
	var (
		configPath string
		addr       string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the upload server",
		Long: `Start the HTTP server for the routes in uprename.json.

Without --config, uprename.json is read from the working directory
when present and defaults are used otherwise.

Examples:
  uprename serve
  uprename serve --config=/etc/uprename.json
  uprename serve --addr=127.0.0.1:9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath, addr)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file (default ./uprename.json)")
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from config)")

	return cmd
}

func runServe(configPath, addr string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	// Apply command-line overrides
	if addr != "" {
		cfg.Server.Address = addr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(os.Stderr, cfg.LogLevel(), cfg.Log.Format)
	slog.SetDefault(logger)

	srv, err := server.New(context.Background(), cfg, server.WithLogger(logger))
	if err != nil {
		return err
	}

	printBanner()
	for _, r := range cfg.EnabledRoutes() {
		if r.Upstream != "" {
			info(os.Stdout, "%s → %s", r.Path, r.Upstream)
		} else {
			info(os.Stdout, "%s", r.Path)
		}
	}
	if cfg.Storage.Backend == config.BackendS3 {
		info(os.Stdout, "storage: s3://%s", cfg.Storage.S3.Bucket)
	} else {
		info(os.Stdout, "storage: %s", cfg.Storage.Root)
	}
	fmt.Println()

	return srv.Run()
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return config.LoadOrDefault(wd)
}
