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
	configFile   = flag.String("config", "", "Path to configuration file (default: ~/.voxcoderc or /etc/voxcode/config.yaml)")
	mode         = flag.String("mode", "", "Capture mode: streaming or push-to-talk")
	audioDevice  = flag.String("device", "", "Audio input device name (use --list-devices to see available devices)")
	listDevices  = flag.Bool("list-devices", false, "List all available audio input devices")
	language     = flag.String("language", "", "Transcription language hint (ISO-639-1, e.g. en, ko)")
	hotkeyStr    = flag.String("hotkey", "", "Push-to-talk hotkey, e.g. ctrl+shift+space")
	hold         = flag.Bool("hold", false, "Record only while the hotkey is held")
	outputFormat = flag.String("format", "", "Output format: console, json, text")
	outputFile   = flag.String("output", "", "Append transcripts to this file")
	clipboard    = flag.Bool("clipboard", false, "Copy each transcript to the clipboard")
	noEarcons    = flag.Bool("no-earcons", false, "Disable start/stop/error sounds")
	grpcPort     = flag.Int("grpc-port", 0, "Serve gRPC health checks on this port (0 = off)")
	metricsAddr  = flag.String("metrics-addr", "", "Serve prometheus metrics on this address, e.g. :9090")
	logLevel     = flag.String("log-level", "", "Log level: debug, info, warn, error")
	writeConfig  = flag.String("write-config", "", "Write the effective configuration to this path and exit")
	showVersion  = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("voxcode v%s\n", Version)
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

	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logging.Init(cfg.Logging.Level, cfg.Logging.Pretty)
	log := logging.Get()

	if *writeConfig != "" {
		if err := cfg.Save(*writeConfig); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Configuration written to %s\n", *writeConfig)
		return
	}

	if *listDevices {
		dm := app.NewDeviceManager(os.Stdout)
		if err := dm.ListDevices(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Fprintf(os.Stderr, "voxcode v%s (commit: %s, branch: %s, built: %s)\n",
		Version, GitCommit, GitBranch, BuildTime)

	if cfg.Capture.Device != "" {
		if _, err := app.NewDeviceManager(os.Stderr).CheckDevice(cfg.Capture.Device); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\nUse --list-devices to see available devices\n", err)
			os.Exit(1)
		}
	}

	if err := app.Run(cfg, log); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// applyFlags overrides config values with flags given on the command line
func applyFlags(cfg *config.Config) {
	flagsSet := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		flagsSet[f.Name] = true
	})

	if flagsSet["mode"] {
		cfg.Capture.Mode = *mode
	}
	if flagsSet["device"] {
		cfg.Capture.Device = *audioDevice
	}
	if flagsSet["language"] {
		cfg.Transcription.Language = *language
	}
	if flagsSet["hotkey"] {
		cfg.Hotkey.Key = *hotkeyStr
	}
	if flagsSet["hold"] {
		cfg.Hotkey.Behavior = "toggle"
		if *hold {
			cfg.Hotkey.Behavior = "hold"
		}
	}
	if flagsSet["format"] {
		cfg.Output.Format = *outputFormat
	}
	if flagsSet["output"] {
		cfg.Output.File = *outputFile
	}
	if flagsSet["clipboard"] {
		cfg.Output.Clipboard = *clipboard
	}
	if flagsSet["no-earcons"] {
		cfg.Earcons.Enabled = !*noEarcons
	}
	if flagsSet["grpc-port"] {
		cfg.Server.GRPCPort = *grpcPort
	}
	if flagsSet["metrics-addr"] {
		cfg.Server.MetricsAddr = *metricsAddr
	}
	if flagsSet["log-level"] {
		cfg.Logging.Level = *logLevel
	}
}
