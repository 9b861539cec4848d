package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/unklstewy/santa-scope/internal/app"
	"github.com/unklstewy/santa-scope/internal/logging"
	"github.com/unklstewy/santa-scope/pkg/canvas"
	"github.com/unklstewy/santa-scope/pkg/config"
)

var (
	// Version information (set by build flags)
	version = "dev"
	commit  = "unknown"
)

func main() {
	configPath := flag.String("config", "configs/config.json", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("santa-tracker version %s (commit: %s)\n", version, commit)
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

	// The terminal belongs to the UI, so records only go to the log file
	logOpts := logging.FromConfig(cfg.Logging)
	logOpts.Console = false
	logger, closer, err := logging.New("santa-tracker", logOpts)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer closer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Sized for an 80x24 terminal until the first WindowSizeMsg arrives
	cols, rows := globeSize(80, 24)
	tracker, err := app.New(ctx, cfg, logger, float64(cols*canvas.DotsX), float64(rows*canvas.DotsY))
	if err != nil {
		logger.Error().Err(err).Msg("startup failed")
		log.Fatalf("Failed to start: %v", err)
	}
	defer tracker.Close()

	done := make(chan error, 1)
	go func() { done <- tracker.Run(ctx) }()

	m := newModel(ctx, tracker)
	defer m.unsubscribe()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cancel()
	if err := <-done; err != nil {
		logger.Error().Err(err).Msg("engine stopped with error")
	}
}

// printHelp prints usage information
func printHelp() {
	fmt.Println("santa-tracker - Follow Santa's sleigh on a terminal globe")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  santa-tracker [options]")
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
	fmt.Println("  Globe:")
	fmt.Println("    ←/→/↑/↓        Spin the globe")
	fmt.Println("    +/-            Zoom in/out")
	fmt.Println("    c              Back to Santa")
	fmt.Println("    mouse drag     Spin the globe")
	fmt.Println("    mouse wheel    Zoom")
	fmt.Println()
	fmt.Println("  Chat:")
	fmt.Println("    TAB            Switch between globe and chat")
	fmt.Println("    ENTER          Send message")
	fmt.Println("    ctrl+r         Start a new conversation")
	fmt.Println()
	fmt.Println("  Control:")
	fmt.Println("    q or Ctrl+C    Quit application")
	fmt.Println()
	fmt.Println("ENVIRONMENT:")
	fmt.Println("  GEMINI_API_KEY   Enables generated captions and chat replies")
}
