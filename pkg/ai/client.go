package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	apperrors "resume-forge/internal/errors"
)

const (
	DefaultBaseURL    = "https://api.anthropic.com"
	DefaultAPIVersion = "2023-06-01"
	DefaultTimeout    = 90 * time.Second
	DefaultMaxTokens  = 4000

	messagesPath = "/v1/messages"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of a conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// GenerateRequest describes a single generation call. History holds prior
// turns in order; UserMessage is appended as the final user turn.
type GenerateRequest struct {
	SystemPrompt string
	History      []Turn
	UserMessage  string
	APIKey       string
	Model        string
	// MaxTokens overrides the client default when positive.
	MaxTokens int
}

// Config configures a Client.
type Config struct {
	BaseURL    string
	APIVersion string
	Timeout    time.Duration
	MaxTokens  int
	HTTP       *http.Client
	Logger     *slog.Logger
}

// Client calls the text-generation service. It never retries; callers own
// retry policy.
type Client struct {
	baseURL    string
	apiVersion string
	timeout    time.Duration
	maxTokens  int
	http       *http.Client
	logger     *slog.Logger
}

func NewClient(cfg Config) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	version := cfg.APIVersion
	if version == "" {
		version = DefaultAPIVersion
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	hc := cfg.HTTP
	if hc == nil {
		hc = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default().With("component", "generator")
	}
	return &Client{
		baseURL:    base,
		apiVersion: version,
		timeout:    timeout,
		maxTokens:  maxTokens,
		http:       hc,
		logger:     logger,
	}
}

type messagesRequest struct {
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
	System    string `json:"system,omitempty"`
	Messages  []Turn `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate sends the request and strictly parses the reply into a document
// and an assessment.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerationResult, error) {
	text, err := c.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	return ParseReply(text)
}

// Complete sends the request and returns the reply text without looking for
// blocks.
func (c *Client) Complete(ctx context.Context, req GenerateRequest) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	messages := make([]Turn, 0, len(req.History)+1)
	messages = append(messages, req.History...)
	messages = append(messages, Turn{Role: RoleUser, Content: req.UserMessage})

	body, err := json.Marshal(messagesRequest{
		Model:     req.Model,
		MaxTokens: maxTokens,
		System:    req.SystemPrompt,
		Messages:  messages,
	})
	if err != nil {
		return "", fmt.Errorf("encode generator request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+messagesPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build generator request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", req.APIKey)
	httpReq.Header.Set("anthropic-version", c.apiVersion)

	start := time.Now()
	c.logger.DebugContext(ctx, "generator request", "model", req.Model, "turns", len(messages), "max_tokens", maxTokens)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", apperrors.Transport("generator", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperrors.Transport("generator", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := http.StatusText(resp.StatusCode)
		var er errorResponse
		if json.Unmarshal(respBytes, &er) == nil && er.Error.Message != "" {
			msg = er.Error.Message
		}
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		c.logger.WarnContext(ctx, "generator returned error", "status", resp.StatusCode, "message", msg)
		return "", apperrors.ServiceError("generator API error: "+msg, resp.StatusCode)
	}

	var mr messagesResponse
	if err := json.Unmarshal(respBytes, &mr); err != nil {
		return "", apperrors.Wrap(apperrors.KindMalformedResponse, "generator returned invalid JSON", err)
	}
	for _, block := range mr.Content {
		if block.Type == "" || block.Type == "text" {
			c.logger.InfoContext(ctx, "generator responded",
				"model", req.Model,
				"output_tokens", mr.Usage.OutputTokens,
				"duration", time.Since(start).Round(time.Millisecond))
			if strings.TrimSpace(block.Text) == "" {
				break
			}
			return block.Text, nil
		}
	}
	return "", apperrors.Malformed("generator returned empty content")
}

// Ping sends a minimal request to check that apiKey and model are accepted.
func (c *Client) Ping(ctx context.Context, apiKey, model string) error {
	_, err := c.Complete(ctx, GenerateRequest{
		UserMessage: "Ping",
		APIKey:      apiKey,
		Model:       model,
		MaxTokens:   10,
	})
	return err
}
