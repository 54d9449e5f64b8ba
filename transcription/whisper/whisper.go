// Package whisper implements transcription.Recognizer against a
// faster-whisper streaming sidecar.
//
// The sidecar exposes POST /process and answers with an event stream, framed
// either as Server-Sent Events or as newline-delimited JSON depending on
// deployment. Each event is a JSON object with a "type" discriminant:
// "info", "status"/"progress", "delta", "result", or "error".
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/skillsenselab/memovox/logger"
	"github.com/skillsenselab/memovox/sse"
	"github.com/skillsenselab/memovox/transcription"
)

const (
	// ProviderName is the name for the whisper recognizer.
	ProviderName = "whisper"

	// FramingSSE reads the response as Server-Sent Events.
	FramingSSE = "sse"
	// FramingNDJSON reads the response as newline-delimited JSON records.
	FramingNDJSON = "ndjson"

	defaultURL          = "http://localhost:8387"
	defaultProbeTimeout = 5 * time.Second
)

// Config holds configuration for the whisper recognizer.
type Config struct {
	// URL is the sidecar base URL.
	URL string `json:"url" mapstructure:"url"`
	// Upload selects the multipart transport: the audio file is read and
	// uploaded instead of sending its server-local path in a JSON body. Use
	// it when the sidecar does not share a filesystem with this process.
	Upload bool `json:"upload" mapstructure:"upload"`
	// Framing is the response stream framing, FramingSSE or FramingNDJSON.
	Framing string `json:"framing" mapstructure:"framing"`
	// Username and Password enable basic auth when both are set.
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
}

// ApplyDefaults applies default values.
func (c *Config) ApplyDefaults() {
	if c.URL == "" {
		c.URL = defaultURL
	}
	if c.Framing == "" {
		c.Framing = FramingSSE
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	c.ApplyDefaults()
	if c.Framing != FramingSSE && c.Framing != FramingNDJSON {
		return fmt.Errorf("whisper.framing must be %q or %q (got: %s)", FramingSSE, FramingNDJSON, c.Framing)
	}
	return nil
}

// Client implements transcription.Recognizer against the sidecar.
type Client struct {
	cfg    Config
	client *http.Client
	log    *logger.Logger
}

var _ transcription.Recognizer = (*Client)(nil)

// NewClient creates a whisper recognizer client. The HTTP client carries no
// global timeout: a recognition stream stays open for the whole job, so
// cancellation is the context's responsibility.
func NewClient(cfg Config, log *logger.Logger) *Client {
	cfg.ApplyDefaults()
	return &Client{
		cfg:    cfg,
		client: &http.Client{},
		log:    log.WithComponent("whisper"),
	}
}

// Name returns the recognizer name.
func (c *Client) Name() string { return ProviderName }

// IsAvailable checks if the sidecar is reachable.
func (c *Client) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, defaultProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL+"/health", http.NoBody)
	if err != nil {
		return false
	}
	c.setAuth(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Transcribe streams one recognition call. Progress, info, and delta events
// are forwarded through hooks as they arrive; the final result is returned.
// An explicit error event takes precedence over any partial result, and a
// stream that closes without a result is an error.
func (c *Client) Transcribe(ctx context.Context, req transcription.Request, hooks transcription.Hooks) (*transcription.VerboseResult, error) {
	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("whisper request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("whisper server error (status %d): %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	reader := c.newReader(resp.Body)
	defer reader.Close()

	return c.consumeStream(reader, hooks)
}

func (c *Client) newReader(body io.ReadCloser) sse.Reader {
	if c.cfg.Framing == FramingNDJSON {
		return sse.NewNDJSONReader(body)
	}
	return sse.NewReader(body)
}

// event is the wire envelope every streamed record shares.
type event struct {
	Type     string          `json:"type"`
	Language string          `json:"language,omitempty"`
	Duration float64         `json:"duration,omitempty"`
	Progress float64         `json:"progress,omitempty"`
	Message  string          `json:"message,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
	Error    string          `json:"error,omitempty"`
}

func (c *Client) consumeStream(reader sse.Reader, hooks transcription.Hooks) (*transcription.VerboseResult, error) {
	var result *transcription.VerboseResult
	var streamErr string

stream:
	for {
		ev, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("whisper stream read: %w", err)
		}
		if ev.Event != "" && ev.Event != "message" {
			continue
		}

		var parsed event
		if err := json.Unmarshal([]byte(ev.Data), &parsed); err != nil {
			c.log.Warn("skipping unparseable stream event", logger.Fields("data", truncate(ev.Data, 200)))
			continue
		}

		switch parsed.Type {
		case "info":
			if hooks.OnInfo != nil {
				hooks.OnInfo(transcription.Info{Language: parsed.Language, Duration: parsed.Duration})
			}
		case "status", "progress":
			if hooks.OnProgress != nil {
				hooks.OnProgress(parsed.Progress, parsed.Message)
			}
		case "delta":
			var delta transcription.Delta
			if err := json.Unmarshal(parsed.Data, &delta); err != nil {
				c.log.Warn("skipping unparseable delta event", logger.Fields("error", err.Error()))
				continue
			}
			if hooks.OnDelta != nil {
				hooks.OnDelta(delta)
			}
		case "result":
			var final transcription.VerboseResult
			if err := json.Unmarshal(parsed.Data, &final); err != nil {
				c.log.Warn("skipping unparseable result event", logger.Fields("error", err.Error()))
				continue
			}
			result = &final
		case "error":
			// Terminal. The server does not stream anything useful after it.
			streamErr = parsed.Error
			if streamErr == "" {
				streamErr = "unknown error"
			}
			break stream
		default:
			c.log.Warn("skipping stream event of unknown type", logger.Fields("type", parsed.Type))
		}
	}

	if streamErr != "" {
		return nil, fmt.Errorf("whisper server reported error: %s", streamErr)
	}
	if result == nil {
		return nil, fmt.Errorf("no result received from transcription server")
	}
	return result, nil
}

func (c *Client) buildRequest(ctx context.Context, req transcription.Request) (*http.Request, error) {
	var httpReq *http.Request
	var err error
	if c.cfg.Upload {
		httpReq, err = c.buildUploadRequest(ctx, req)
	} else {
		httpReq, err = c.buildJSONRequest(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")
	c.setAuth(httpReq)
	return httpReq, nil
}

// buildJSONRequest references the audio by a path local to the sidecar.
func (c *Client) buildJSONRequest(ctx context.Context, req transcription.Request) (*http.Request, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal process request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL+"/process", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return httpReq, nil
}

// buildUploadRequest sends the audio bytes as a multipart form.
func (c *Client) buildUploadRequest(ctx context.Context, req transcription.Request) (*http.Request, error) {
	audioData, err := os.ReadFile(req.AudioPath)
	if err != nil {
		return nil, fmt.Errorf("read audio file: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("audio", filepath.Base(req.AudioPath))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(audioData); err != nil {
		return nil, fmt.Errorf("write audio data: %w", err)
	}
	if req.Language != "" {
		_ = writer.WriteField("language", req.Language)
	}
	if req.InitialPrompt != "" {
		_ = writer.WriteField("initial_prompt", req.InitialPrompt)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL+"/process", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	return httpReq, nil
}

func (c *Client) setAuth(req *http.Request) {
	if c.cfg.Username != "" && c.cfg.Password != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
