package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	// Capture settings
	Capture struct {
		Mode                string        `yaml:"mode"`
		SampleRate          int           `yaml:"sample_rate"`
		FlushInterval       time.Duration `yaml:"flush_interval"`
		StreamingMaxChunks  int           `yaml:"streaming_max_chunks"`
		PushToTalkMaxChunks int           `yaml:"push_to_talk_max_chunks"`
		Device              string        `yaml:"device"`
		Providers           []string      `yaml:"providers"`
	} `yaml:"capture"`

	// Transcription service settings
	Transcription struct {
		Endpoint    string        `yaml:"endpoint"`
		APIKey      string        `yaml:"api_key"`
		Model       string        `yaml:"model"`
		Language    string        `yaml:"language"`
		Temperature float64       `yaml:"temperature"`
		Timeout     time.Duration `yaml:"timeout"`
		HTTP2       bool          `yaml:"http2"`
	} `yaml:"transcription"`

	// Transcript filter settings
	Filter struct {
		Phrases             []string `yaml:"phrases"`
		Patterns            []string `yaml:"patterns"`
		SimilarityThreshold float64  `yaml:"similarity_threshold"`
		MaxSymbolRatio      float64  `yaml:"max_symbol_ratio"`
	} `yaml:"filter"`

	// Earcon settings
	Earcons struct {
		Enabled  bool   `yaml:"enabled"`
		Dir      string `yaml:"dir"`
		MaxBytes int    `yaml:"max_bytes"`
	} `yaml:"earcons"`

	// Hotkey settings for push-to-talk
	Hotkey struct {
		Key      string `yaml:"key"`
		Behavior string `yaml:"behavior"`
	} `yaml:"hotkey"`

	// Output settings
	Output struct {
		Format    string `yaml:"format"`
		File      string `yaml:"file"`
		Clipboard bool   `yaml:"clipboard"`
		Notify    bool   `yaml:"notify"`
	} `yaml:"output"`

	// Logging settings
	Logging struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"logging"`

	// Server settings
	Server struct {
		GRPCPort    int    `yaml:"grpc_port"`
		MetricsAddr string `yaml:"metrics_addr"`
	} `yaml:"server"`
}

// envOverrides are read from the environment (and .env) on top of the file
type envOverrides struct {
	APIKey        string         `envconfig:"VOXCODE_API_KEY"`
	OpenAIKey     string         `envconfig:"OPENAI_API_KEY"`
	Endpoint      string         `envconfig:"VOXCODE_ENDPOINT"`
	Model         string         `envconfig:"VOXCODE_MODEL"`
	Language      string         `envconfig:"VOXCODE_LANGUAGE"`
	Temperature   *float64       `envconfig:"VOXCODE_TEMPERATURE"`
	SampleRate    int            `envconfig:"VOXCODE_SAMPLE_RATE"`
	FlushInterval *time.Duration `envconfig:"VOXCODE_FLUSH_INTERVAL"`
	Mode          string         `envconfig:"VOXCODE_MODE"`
	Device        string         `envconfig:"VOXCODE_DEVICE"`
	EarconDir     string         `envconfig:"VOXCODE_EARCON_DIR"`
	LogLevel      string         `envconfig:"VOXCODE_LOG_LEVEL"`
	LogPretty     *bool          `envconfig:"VOXCODE_LOG_PRETTY"`
	MetricsAddr   string         `envconfig:"VOXCODE_METRICS_ADDR"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Capture defaults
	cfg.Capture.Mode = "push-to-talk"
	cfg.Capture.SampleRate = 16000
	cfg.Capture.FlushInterval = 2 * time.Second
	cfg.Capture.StreamingMaxChunks = 250
	cfg.Capture.PushToTalkMaxChunks = 500
	cfg.Capture.Device = ""
	cfg.Capture.Providers = []string{"malgo", "portaudio"}

	// Transcription defaults
	cfg.Transcription.Endpoint = "https://api.openai.com/v1/audio/transcriptions"
	cfg.Transcription.Model = "whisper-1"
	cfg.Transcription.Language = ""
	cfg.Transcription.Temperature = 0
	cfg.Transcription.Timeout = 30 * time.Second
	cfg.Transcription.HTTP2 = true

	// Filter defaults (empty deny-lists mean the built-in ones)
	cfg.Filter.SimilarityThreshold = 0.90
	cfg.Filter.MaxSymbolRatio = 0.5

	// Earcon defaults
	cfg.Earcons.Enabled = true
	cfg.Earcons.Dir = ""
	cfg.Earcons.MaxBytes = 1 << 20

	// Hotkey defaults
	cfg.Hotkey.Key = "ctrl+shift+space"
	cfg.Hotkey.Behavior = "toggle"

	// Output defaults
	cfg.Output.Format = "console"
	cfg.Output.Notify = true

	// Logging defaults
	cfg.Logging.Level = "info"
	cfg.Logging.Pretty = true

	// Server defaults (disabled)
	cfg.Server.GRPCPort = 0
	cfg.Server.MetricsAddr = ""

	return cfg
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// LoadWithFallback attempts to load configuration from multiple locations
// Priority: explicit path > ~/.voxcoderc > /etc/voxcode/config.yaml
func LoadWithFallback(explicitPath string) (*Config, error) {
	// If explicit path is provided, use it
	if explicitPath != "" {
		return Load(explicitPath)
	}

	// Try user config (~/.voxcoderc)
	homeDir, err := os.UserHomeDir()
	if err == nil {
		userConfigPath := filepath.Join(homeDir, ".voxcoderc")
		if _, err := os.Stat(userConfigPath); err == nil {
			cfg, err := Load(userConfigPath)
			if err == nil {
				return cfg, nil
			}
		}
	}

	// Try system config (/etc/voxcode/config.yaml)
	systemConfigPath := "/etc/voxcode/config.yaml"
	if _, err := os.Stat(systemConfigPath); err == nil {
		cfg, err := Load(systemConfigPath)
		if err == nil {
			return cfg, nil
		}
	}

	// No config file found, return defaults
	return DefaultConfig(), nil
}

// Resolve loads the config file, overlays the environment (including a
// .env file in the working directory, if any) and validates the result
func Resolve(explicitPath string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := LoadWithFallback(explicitPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields with any VOXCODE_* variables that are set.
// OPENAI_API_KEY is used when VOXCODE_API_KEY is not.
func (c *Config) ApplyEnv() error {
	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}

	switch {
	case env.APIKey != "":
		c.Transcription.APIKey = env.APIKey
	case env.OpenAIKey != "" && c.Transcription.APIKey == "":
		c.Transcription.APIKey = env.OpenAIKey
	}
	if env.Endpoint != "" {
		c.Transcription.Endpoint = env.Endpoint
	}
	if env.Model != "" {
		c.Transcription.Model = env.Model
	}
	if env.Language != "" {
		c.Transcription.Language = env.Language
	}
	if env.Temperature != nil {
		c.Transcription.Temperature = *env.Temperature
	}
	if env.SampleRate != 0 {
		c.Capture.SampleRate = env.SampleRate
	}
	if env.FlushInterval != nil {
		c.Capture.FlushInterval = *env.FlushInterval
	}
	if env.Mode != "" {
		c.Capture.Mode = env.Mode
	}
	if env.Device != "" {
		c.Capture.Device = env.Device
	}
	if env.EarconDir != "" {
		c.Earcons.Dir = env.EarconDir
	}
	if env.LogLevel != "" {
		c.Logging.Level = env.LogLevel
	}
	if env.LogPretty != nil {
		c.Logging.Pretty = *env.LogPretty
	}
	if env.MetricsAddr != "" {
		c.Server.MetricsAddr = env.MetricsAddr
	}
	return nil
}

// Validate checks field ranges. A missing API key is not an error here; it
// is reported when capture starts.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Capture.Mode) {
	case "streaming", "stream", "push-to-talk", "ptt":
	default:
		return fmt.Errorf("invalid capture mode %q (use streaming or push-to-talk)", c.Capture.Mode)
	}
	if c.Capture.SampleRate < 8000 || c.Capture.SampleRate > 48000 {
		return fmt.Errorf("sample rate must be between 8000 and 48000, got %d", c.Capture.SampleRate)
	}
	if c.Capture.FlushInterval < 100*time.Millisecond {
		return fmt.Errorf("flush interval must be at least 100ms, got %s", c.Capture.FlushInterval)
	}
	if c.Capture.StreamingMaxChunks < 2 || c.Capture.PushToTalkMaxChunks < 2 {
		return fmt.Errorf("chunk ceilings must be at least 2")
	}
	for _, p := range c.Capture.Providers {
		if p != "malgo" && p != "portaudio" {
			return fmt.Errorf("unknown capture provider %q (use malgo or portaudio)", p)
		}
	}
	if c.Transcription.Endpoint == "" {
		return fmt.Errorf("transcription endpoint cannot be empty")
	}
	if c.Transcription.Temperature < 0 || c.Transcription.Temperature > 1 {
		return fmt.Errorf("temperature must be between 0 and 1, got %.2f", c.Transcription.Temperature)
	}
	if c.Transcription.Timeout <= 0 {
		return fmt.Errorf("transcription timeout must be positive")
	}
	if c.Filter.SimilarityThreshold <= 0 || c.Filter.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity threshold must be in (0, 1], got %.2f", c.Filter.SimilarityThreshold)
	}
	if c.Hotkey.Behavior != "toggle" && c.Hotkey.Behavior != "hold" {
		return fmt.Errorf("hotkey behavior must be toggle or hold, got %q", c.Hotkey.Behavior)
	}
	switch c.Output.Format {
	case "console", "json", "text":
	default:
		return fmt.Errorf("output format must be console, json or text, got %q", c.Output.Format)
	}
	if c.Server.GRPCPort < 0 || c.Server.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port %d", c.Server.GRPCPort)
	}
	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
