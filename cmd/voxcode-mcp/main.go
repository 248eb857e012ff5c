package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/emmett/voxcode/internal/app"
	"github.com/emmett/voxcode/internal/config"
	"github.com/emmett/voxcode/internal/logging"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
	GitBranch = "unknown"
)

var (
	configFile  = flag.String("config", "", "Path to configuration file (default: ~/.voxcoderc or /etc/voxcode/config.yaml)")
	mode        = flag.String("mode", "", "Capture mode: streaming or push-to-talk")
	showVersion = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("voxcode MCP v%s\n", Version)
		fmt.Printf("  Commit:  %s\n", GitCommit)
		fmt.Printf("  Branch:  %s\n", GitBranch)
		fmt.Printf("  Built:   %s\n", BuildTime)
		os.Exit(0)
	}

	cfg, err := config.Resolve(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *mode != "" {
		cfg.Capture.Mode = *mode
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	// MCP clients collect stderr as plain text
	logging.Init(cfg.Logging.Level, false)

	handler := app.NewMCPHandler(cfg, Version, GitCommit, logging.Get())
	if err := handler.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}
