package narrative

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultOllamaURL   = "http://127.0.0.1:11434"
	DefaultOllamaModel = "llava"
	DefaultTimeout     = 60 * time.Second

	maxDiagnosticBytes = 4096
	maxResponseBytes   = 4 << 20
)

// OllamaConfig configures the Ollama chat endpoint.
type OllamaConfig struct {
	BaseURL    string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// OllamaGenerator calls Ollama's /api/chat with inline images.
type OllamaGenerator struct {
	cfg OllamaConfig
}

// NewOllamaGenerator builds a generator, filling unset config with defaults.
func NewOllamaGenerator(cfg OllamaConfig) *OllamaGenerator {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultOllamaURL
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	return &OllamaGenerator{cfg: cfg}
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Error   string        `json:"error,omitempty"`
}

// Generate makes a single chat request bounded by the configured timeout.
func (g *OllamaGenerator) Generate(ctx context.Context, prompt string, images []string) (string, error) {
	if g == nil {
		return "", fmt.Errorf("narrative generator is not configured")
	}
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("prompt is required")
	}

	body, err := json.Marshal(ollamaChatRequest{
		Model:    g.cfg.Model,
		Messages: []ollamaMessage{{Role: "user", Content: prompt, Images: images}},
		Stream:   false,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := g.cfg.HTTPClient.Do(req)
	if err != nil {
		return "", classifyTransportError(err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		raw, readErr := io.ReadAll(io.LimitReader(res.Body, maxDiagnosticBytes))
		diagnostic := strings.TrimSpace(string(raw))
		if readErr != nil && diagnostic == "" {
			diagnostic = readErr.Error()
		}
		if res.StatusCode >= 500 {
			return "", &Error{Reason: ReasonUnavailable, StatusCode: res.StatusCode, Diagnostic: diagnostic}
		}
		return "", Rejected(res.StatusCode, diagnostic)
	}

	var payload ollamaChatResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, maxResponseBytes)).Decode(&payload); err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return "", classifyTransportError(cerr)
		}
		return "", Rejected(res.StatusCode, fmt.Sprintf("decode chat response: %v", err))
	}
	if payload.Error != "" {
		return "", Rejected(res.StatusCode, payload.Error)
	}
	text := strings.TrimSpace(payload.Message.Content)
	if text == "" {
		return "", Rejected(res.StatusCode, "empty narrative in response")
	}
	return text, nil
}

func classifyTransportError(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout(err.Error(), err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout(err.Error(), err)
	}
	return Unavailable(err.Error(), err)
}
