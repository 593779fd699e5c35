package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	DefaultEndpoint = "https://api.anthropic.com/v1/messages"
	DefaultModel    = "claude-3-5-sonnet-20241022"
	APIVersion      = "2023-06-01"

	maxErrorBody = 4096
)

// ErrDisabled is returned when no API key is configured.
var ErrDisabled = errors.New("assistant disabled: no api key configured")

// Answerer produces one assistant reply for a conversation history.
type Answerer interface {
	Answer(ctx context.Context, history []Message, systemPrompt string) (string, error)
}

type Config struct {
	Endpoint  string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
	// RPS bounds outbound calls per second. Zero disables throttling.
	RPS        float64
	HTTPClient *http.Client
}

// Client calls a Messages-API compatible endpoint.
type Client struct {
	cfg     Config
	limiter *rate.Limiter
	tracer  trace.Tracer
}

func NewClient(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if strings.TrimSpace(cfg.Endpoint) == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), 1)
	}

	return &Client{
		cfg:     cfg,
		limiter: limiter,
		tracer:  otel.Tracer("restaurant-insights/assistant"),
	}
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool {
	return strings.TrimSpace(c.cfg.APIKey) != ""
}

type wireMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type wireRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system,omitempty"`
	Messages  []wireMessage `json:"messages"`
}

// Answer sends history with systemPrompt as the system instruction and
// returns the first text block of the reply.
func (c *Client) Answer(ctx context.Context, history []Message, systemPrompt string) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}
	if len(history) == 0 {
		return "", fmt.Errorf("history is required")
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	ctx, span := c.tracer.Start(ctx, "assistant.answer",
		trace.WithAttributes(
			attribute.String("model", c.cfg.Model),
			attribute.Int("history", len(history)),
		))
	defer span.End()

	text, err := c.answer(ctx, history, systemPrompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return text, nil
}

func (c *Client) answer(ctx context.Context, history []Message, systemPrompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("wait for rate limiter: %w", err)
	}

	msgs := make([]wireMessage, len(history))
	for i, m := range history {
		msgs[i] = wireMessage{Role: m.Role, Content: m.Content}
	}
	body, err := json.Marshal(wireRequest{
		Model:     c.cfg.Model,
		MaxTokens: c.cfg.MaxTokens,
		System:    systemPrompt,
		Messages:  msgs,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", APIVersion)

	res, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		excerpt, err := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		if err != nil {
			return "", fmt.Errorf("read error body: %w", err)
		}
		return "", fmt.Errorf("request status %d: %s", res.StatusCode, strings.TrimSpace(string(excerpt)))
	}

	payload, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if !gjson.ValidBytes(payload) {
		return "", fmt.Errorf("malformed response: invalid json")
	}
	text := strings.TrimSpace(gjson.GetBytes(payload, "content.0.text").String())
	if text == "" {
		return "", fmt.Errorf("malformed response: missing content text")
	}
	return text, nil
}
