package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"

	"github.com/emmett/voxcode/internal/audio"
	"github.com/emmett/voxcode/internal/metrics"
)

const (
	DefaultEndpoint = "https://api.openai.com/v1/audio/transcriptions"
	DefaultModel    = "whisper-1"
	DefaultTimeout  = 30 * time.Second
)

// maxErrorBody caps how much of an error response is kept
const maxErrorBody = 4096

// ClientConfig holds configuration for the HTTP transcription client
type ClientConfig struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration

	// EnableHTTP2 negotiates HTTP/2 over TLS
	EnableHTTP2 bool

	// HTTPClient overrides the client built from the fields above
	HTTPClient *http.Client

	Logger zerolog.Logger
}

// DefaultClientConfig returns a configuration for the OpenAI-compatible
// transcription endpoint
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Endpoint: DefaultEndpoint,
		Timeout:  DefaultTimeout,
		Logger:   zerolog.Nop(),
	}
}

// Client submits WAV audio to an OpenAI-compatible transcription endpoint
// as multipart/form-data
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	log        zerolog.Logger
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// NewClient creates a new transcription client. A missing credential is not
// an error here; it is reported by Ready and Transcribe.
func NewClient(config ClientConfig) *Client {
	if config.Endpoint == "" {
		config.Endpoint = DefaultEndpoint
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		tr := &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          10,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}
		if config.EnableHTTP2 {
			if err := http2.ConfigureTransport(tr); err != nil {
				config.Logger.Warn().Err(err).Msg("HTTP/2 unavailable, using HTTP/1.1")
			}
		}
		httpClient = &http.Client{
			Transport: tr,
			Timeout:   config.Timeout,
		}
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		log:        config.Logger,
	}
}

// Ready reports whether a credential is configured
func (c *Client) Ready() error {
	if c.config.APIKey == "" {
		return &PreconditionError{Reason: "no API key configured (set OPENAI_API_KEY or VOXCODE_API_KEY)"}
	}
	return nil
}

// Transcribe sends one WAV payload and returns the recognized text
func (c *Client) Transcribe(ctx context.Context, wav []byte, opts Options) (string, error) {
	if err := c.Ready(); err != nil {
		return "", err
	}
	if len(wav) <= audio.WAVHeaderSize {
		metrics.RecordTranscription("empty", 0)
		return "", ErrEmptyAudio
	}

	body, contentType, err := c.createMultipartRequest(wav, opts)
	if err != nil {
		return "", fmt.Errorf("failed to create multipart request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, body)
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "voxcode/1.0")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		metrics.RecordTranscription("transport_error", latency)
		return "", &ServiceError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RecordTranscription("transport_error", latency)
		return "", &ServiceError{Status: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.RecordTranscription(strconv.Itoa(resp.StatusCode), latency)
		if len(respBody) > maxErrorBody {
			respBody = respBody[:maxErrorBody]
		}
		return "", &ServiceError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var parsed transcriptionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		metrics.RecordTranscription("bad_response", latency)
		return "", &ServiceError{Status: resp.StatusCode, Body: string(respBody), Err: fmt.Errorf("failed to parse response JSON: %w", err)}
	}

	metrics.RecordTranscription("ok", latency)
	c.log.Debug().
		Dur("latency", latency).
		Int("audio_bytes", len(wav)).
		Int("text_len", len(parsed.Text)).
		Msg("transcription complete")
	return parsed.Text, nil
}

// createMultipartRequest builds the multipart/form-data body
func (c *Client) createMultipartRequest(wav []byte, opts Options) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s.wav"`, uuid.NewString()))
	header.Set("Content-Type", "audio/wav")
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(wav); err != nil {
		return nil, "", fmt.Errorf("failed to write audio data: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = DefaultModel
	}
	fields := [][2]string{
		{"model", model},
		{"temperature", strconv.FormatFloat(opts.Temperature, 'f', -1, 64)},
	}
	if opts.Language != "" {
		fields = append(fields, [2]string{"language", opts.Language})
	}

	for _, f := range fields {
		if err := writer.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", f[0], err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}
