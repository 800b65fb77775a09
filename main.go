package main

import (
	"context"
	"embed"
	"fmt"
	"os"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"go.uber.org/zap"

	"pacenotes/internal/cli"
	"pacenotes/internal/config"
	"pacenotes/internal/logging"
	"pacenotes/internal/output"
)

//go:embed all:frontend/dist
var assets embed.FS

func main() {
	if err := run(); err != nil {
		output.NewFormatter(os.Stderr).Error(err.Error())
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, sync, err := logging.NewApplicationLogger(
		logging.Path(cfg.Log.Dir),
		logging.Level(cfg.Log.Level),
	)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer sync()

	deps := &cli.Dependencies{
		Config: cfg,
		Logger: logger,
		RunGUI: func() error { return runGUI(cfg, logger) },
	}
	return cli.NewRootCmd(deps).ExecuteContext(context.Background())
}

func runGUI(cfg config.Config, logger *zap.Logger) error {
	app := NewApp(cfg, logger.Named("app"))
	return wails.Run(&options.App{
		Title:     "Pacenotes",
		Width:     560,
		Height:    440,
		MinWidth:  420,
		MinHeight: 320,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		OnStartup:  app.startup,
		OnShutdown: app.shutdown,
		Bind: []interface{}{
			app,
		},
	})
}
