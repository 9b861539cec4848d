package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/unklstewy/santa-scope/internal/app"
	"github.com/unklstewy/santa-scope/internal/auth"
	"github.com/unklstewy/santa-scope/internal/logging"
	"github.com/unklstewy/santa-scope/pkg/config"
)

var (
	// Version information (set by build flags)
	version = "dev"
	commit  = "unknown"
)

func main() {
	configPath := flag.String("config", "configs/config.json", "Path to configuration file")
	hashPassword := flag.String("hash-password", "", "Print the bcrypt hash of a password and exit")
	showVersion := flag.Bool("version", false, "Show version information")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("santa-web version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}
	if *showHelp {
		printHelp()
		os.Exit(0)
	}
	if *hashPassword != "" {
		hash, err := auth.NewService(auth.Config{}).HashPassword(*hashPassword)
		if err != nil {
			log.Fatalf("Failed to hash password: %v", err)
		}
		fmt.Println(hash)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, closer, err := logging.New("santa-web", logging.FromConfig(cfg.Logging))
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer closer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracker, err := app.New(ctx, cfg, logger, float64(cfg.Server.CanvasWidth), float64(cfg.Server.CanvasHeight))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start tracker")
	}
	defer tracker.Close()

	authSvc := auth.NewService(auth.Config{
		JWTSecret:     cfg.Server.JWTSecret,
		PasswordHash:  cfg.Server.OperatorPasswordHash,
		TokenDuration: cfg.Server.TokenDuration(),
	})
	if !authSvc.Enabled() {
		logger.Warn().Msg("operator login disabled; set server.operator_password_hash to enable route control")
	}

	server := NewServer(tracker, authSvc)
	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	httpServer.RegisterOnShutdown(server.Close)

	go func() {
		if err := tracker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("tracker stopped")
		}
	}()

	go func() {
		logger.Info().Str("addr", httpServer.Addr).Bool("tls", cfg.Server.TLSEnabled).Msg("starting web server")
		var err error
		if cfg.Server.TLSEnabled {
			err = httpServer.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			err = httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("shutting down server")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	logger.Info().Msg("server stopped")
}

// printHelp prints usage information
func printHelp() {
	fmt.Println("santa-web - Santa tracker web server")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  santa-web [options]")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        Path to configuration file (default: configs/config.json)")
	fmt.Println("  -hash-password string")
	fmt.Println("        Print the bcrypt hash for server.operator_password_hash and exit")
	fmt.Println("  -version")
	fmt.Println("        Show version information")
	fmt.Println("  -help")
	fmt.Println("        Show this help message")
	fmt.Println()
	fmt.Println("ENDPOINTS:")
	fmt.Println("  GET  /api/v1/state            Tracker snapshot")
	fmt.Println("  GET  /api/v1/frame.svg        Rendered globe")
	fmt.Println("  POST /api/v1/camera/...       drag, zoom, pointer, recenter")
	fmt.Println("  GET  /ws                      Live frames; send pointer events back")
	fmt.Println("  POST /api/v1/auth/login       Operator token for route control")
}
