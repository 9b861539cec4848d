package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/unklstewy/santa-scope/internal/app"
	"github.com/unklstewy/santa-scope/internal/logging"
	"github.com/unklstewy/santa-scope/pkg/config"
)

var (
	// Version information (set by build flags)
	version = "dev"
	commit  = "unknown"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "configs/config.json", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("santa-console version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}
	if *showHelp {
		printHelp()
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Records go to the log file and the on-screen log panel
	panel := logging.NewPanel(200)
	logOpts := logging.FromConfig(cfg.Logging, panel)
	logOpts.Console = false
	logger, closer, err := logging.New("santa-console", logOpts)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer closer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracker, err := app.New(ctx, cfg, logger, float64(cfg.Server.CanvasWidth), float64(cfg.Server.CanvasHeight))
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer tracker.Close()

	console := NewConsole(tracker, panel)
	if err := console.Run(ctx); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

// printHelp prints usage information
func printHelp() {
	fmt.Println("santa-console - Operator console for the Santa tracker")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  santa-console [options]")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        Path to configuration file (default: configs/config.json)")
	fmt.Println("  -version")
	fmt.Println("        Show version information")
	fmt.Println("  -help")
	fmt.Println("        Show this help message")
	fmt.Println()
	fmt.Println("KEYBOARD SHORTCUTS:")
	fmt.Println("    ←/→/↑/↓, h/j/k/l  Spin the globe")
	fmt.Println("    +/-               Zoom in/out")
	fmt.Println("    c                 Back to Santa")
	fmt.Println("    n                 Skip to the next stop")
	fmt.Println("    r                 Reload the route")
	fmt.Println("    q or ESC          Quit application")
	fmt.Println()
	fmt.Println("The globe also follows mouse drags and the scroll wheel.")
}
