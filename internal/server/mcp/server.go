package mcp

import (
	"context"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/emmett/voxcode/internal/capture"
)

// Controller is the part of the capture engine exposed as tools
type Controller interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) (capture.Result, error)
	Status() capture.Status
	TranscribeSamples(ctx context.Context, samples []int16, sampleRate int) (capture.Result, error)
}

type Config struct {
	ServerName    string
	ServerVersion string
	Logger        zerolog.Logger
}

type Server struct {
	config    Config
	mcpServer *sdk.Server
	engine    Controller
	history   *History
	log       zerolog.Logger
}

// NewServer exposes engine over MCP. history may be nil; when set it should
// also be registered as a listener on the engine.
func NewServer(cfg Config, engine Controller, history *History) *Server {
	if history == nil {
		history = NewHistory(0)
	}
	s := &Server{
		config:  cfg,
		engine:  engine,
		history: history,
		log:     cfg.Logger.With().Str("component", "mcp").Logger(),
	}

	s.mcpServer = sdk.NewServer(&sdk.Implementation{
		Name:    cfg.ServerName,
		Version: cfg.ServerVersion,
	}, nil)

	s.registerTools()

	return s
}

// Start serves over stdin/stdout until ctx is cancelled or the client leaves
func (s *Server) Start(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &sdk.StdioTransport{})
}

func (s *Server) registerTools() {
	sdk.AddTool(s.mcpServer, &sdk.Tool{
		Name:        ToolStartDictation,
		Description: "Open the microphone and start a dictation session. Any active session is discarded.",
	}, s.handleStart)

	sdk.AddTool(s.mcpServer, &sdk.Tool{
		Name:        ToolStopDictation,
		Description: "Stop the active dictation session and transcribe what was recorded",
	}, s.handleStop)

	sdk.AddTool(s.mcpServer, &sdk.Tool{
		Name:        ToolDictationStatus,
		Description: "Report the capture state and the most recent transcripts",
	}, s.handleStatus)

	sdk.AddTool(s.mcpServer, &sdk.Tool{
		Name:        ToolTranscribeWAV,
		Description: "Transcribe a base64-encoded WAV recording through the same preprocessing and filtering as live dictation",
	}, s.handleTranscribeWAV)
}
