package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gzhole/toolgate/internal/config"
	"github.com/gzhole/toolgate/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the evaluation HTTP service",
	Long: `Serve POST /v1/evaluate (body: hook envelope) and GET /healthz.

When serve.api_key_hash is set, requests must carry
"Authorization: Bearer <key>" matching that bcrypt hash. Edits to the config
file and packs are picked up without a restart.

  toolgate serve --addr 127.0.0.1:8787`,
	RunE: serveCommand,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from serve.addr)")
	rootCmd.AddCommand(serveCmd)
}

func serveCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := buildLogger(cfg.LogLevel, true)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	g, err := newGate(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer g.Close()

	srv, err := server.New(server.Options{
		Engine:     g.engine,
		Recorder:   g.recorder,
		APIKeyHash: cfg.Serve.APIKeyHash,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	reload := func() {
		next, err := loadConfig()
		if err != nil {
			logger.Error("config reload failed, keeping current policy", zap.Error(err))
			return
		}
		engine, err := newEngine(next, logger)
		if err != nil {
			logger.Error("config reload failed, keeping current policy", zap.Error(err))
			return
		}
		srv.SetEngine(engine)
	}

	dirs := []string{cfg.ConfigDir, filepath.Join(cfg.ConfigDir, config.DefaultPacksDir)}
	if cfg.Path != "" && filepath.Dir(cfg.Path) != cfg.ConfigDir {
		dirs = append(dirs, filepath.Dir(cfg.Path))
	}
	watcher, err := server.NewWatcher(dirs, server.DefaultDebounce, reload, logger)
	if err != nil {
		logger.Warn("config hot reload disabled", zap.Error(err))
	} else {
		defer func() { _ = watcher.Stop() }()
	}

	addr := cfg.Serve.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	return srv.Run(ctx, addr)
}
