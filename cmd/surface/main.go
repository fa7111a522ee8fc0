package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/focusgate/internal/api/ws"
	"github.com/GriffinCanCode/focusgate/internal/infrastructure/config"
	"github.com/GriffinCanCode/focusgate/internal/infrastructure/logging"
	"github.com/GriffinCanCode/focusgate/internal/renderer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	url := flag.String("url", cfg.Surface.AuthorityURL, "Authority surface endpoint")
	logFile := flag.String("log", "focusgate-surface.log", "Log file (the terminal belongs to the UI)")
	flag.Parse()

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{*logFile},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	client, err := ws.Dial(ctx, *url, logger.Component("channel"))
	cancel()
	if err != nil {
		logger.Error("Failed to connect", zap.String("url", *url), zap.Error(err))
		fmt.Fprintf(os.Stderr, "Failed to connect to %s: %v\n", *url, err)
		os.Exit(1)
	}
	defer client.Close()
	logger.Info("Connected to authority", zap.String("url", *url))

	model := renderer.New(client, cfg.Surface.HeartbeatInterval, logger.Component("surface"))
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		logger.Error("Surface exited with error", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
