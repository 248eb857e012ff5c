package app

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/emmett/voxcode/internal/app/wiring"
	"github.com/emmett/voxcode/internal/audio/device"
	"github.com/emmett/voxcode/internal/capture"
	"github.com/emmett/voxcode/internal/config"
	"github.com/emmett/voxcode/internal/earcon/playback"
	"github.com/emmett/voxcode/internal/server/mcp"
)

// MCPHandler handles MCP server operations
type MCPHandler struct {
	config    *config.Config
	version   string
	gitCommit string
	log       zerolog.Logger
}

// NewMCPHandler creates a new MCP handler
func NewMCPHandler(cfg *config.Config, version, gitCommit string, log zerolog.Logger) *MCPHandler {
	return &MCPHandler{
		config:    cfg,
		version:   version,
		gitCommit: gitCommit,
		log:       log,
	}
}

// Run serves the dictation tools over stdio until the client disconnects or
// the process is interrupted
func (h *MCPHandler) Run() error {
	// stdout belongs to the protocol
	fmt.Fprintf(os.Stderr, "Starting MCP server...\n")
	fmt.Fprintf(os.Stderr, "Protocol: Model Context Protocol (stdio transport)\n")
	fmt.Fprintf(os.Stderr, "Version: %s (commit: %s)\n\n", h.version, h.gitCommit)

	h.printClientConfig()

	mic, err := device.NewChain(h.config.Capture.Providers, wiring.CaptureConfig(h.config), h.log)
	if err != nil {
		return err
	}

	backends := wiring.Backends{Microphone: mic}
	if h.config.Earcons.Enabled {
		player := playback.NewSpeakerPlayer(h.config.Capture.SampleRate, h.log)
		defer player.Close()
		backends.Player = player
	}

	history := mcp.NewHistory(20)
	engine, err := wiring.NewEngine(h.config, backends, capture.Listeners{history}, h.log)
	if err != nil {
		return fmt.Errorf("failed to create capture engine: %w", err)
	}
	defer func() {
		if err := engine.Dispose(); err != nil {
			h.log.Warn().Err(err).Msg("engine shutdown incomplete")
		}
	}()

	server := mcp.NewServer(mcp.Config{
		ServerName:    "voxcode-mcp",
		ServerVersion: h.version,
		Logger:        h.log,
	}, engine, history)

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Fprintf(os.Stderr, "MCP server ready. Listening on stdin/stdout...\n")
	if err := server.Start(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("server error: %w", err)
	}
	fmt.Fprintf(os.Stderr, "\nShutting down MCP server...\n")
	return nil
}

// printClientConfig shows how to register this binary with an MCP client
func (h *MCPHandler) printClientConfig() {
	execPath, err := os.Executable()
	if err != nil {
		execPath = "voxcode-mcp"
	}

	type serverConfig struct {
		Command string   `json:"command"`
		Args    []string `json:"args"`
	}
	clientConfig := struct {
		MCPServers map[string]serverConfig `json:"mcpServers"`
	}{
		MCPServers: map[string]serverConfig{
			"voxcode": {Command: execPath, Args: []string{}},
		},
	}

	configJSON, err := json.MarshalIndent(clientConfig, "", "  ")
	if err == nil {
		fmt.Fprintf(os.Stderr, "MCP Client Configuration:\n%s\n\n", string(configJSON))
	}
}
