package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GriffinCanCode/focusgate/internal/infrastructure/config"
	"github.com/GriffinCanCode/focusgate/internal/infrastructure/server"
)

func main() {
	// Flags override the environment.
	port := flag.String("port", "", "Server port (overrides PORT)")
	storeDriver := flag.String("store", "", "Storage driver: sqlite, redis or memory (overrides STORAGE_DRIVER)")
	policy := flag.String("policy", "", "Policy file, .yaml or .toml (overrides POLICY_FILE)")
	flag.Parse()

	if *policy != "" {
		os.Setenv("POLICY_FILE", *policy)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *storeDriver != "" {
		cfg.Storage.Driver = *storeDriver
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.NewServer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run()
	}()

	select {
	case <-ctx.Done():
	case err := <-errChan:
		if err != nil {
			log.Printf("Server error: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
		os.Exit(1)
	}
}
