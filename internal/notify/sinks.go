package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// LogSink writes events to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default().With("component", "notifications")
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Send(ctx context.Context, ev Event) error {
	level := slog.LevelInfo
	switch ev.Kind {
	case EventFailed:
		level = slog.LevelWarn
	case EventPhase:
		level = slog.LevelDebug
	}
	s.logger.Log(ctx, level, ev.Title,
		"job_id", ev.JobID,
		"status", ev.Status,
		"message", ev.Message,
		"origin_context", ev.OriginContext,
	)
	return nil
}

// WebhookConfig configures a WebhookSink.
type WebhookConfig struct {
	URL        string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
}

// WebhookSink POSTs events as JSON.
type WebhookSink struct {
	url        string
	retryLimit int
	client     *http.Client
}

func NewWebhookSink(cfg WebhookConfig) (*WebhookSink, error) {
	u := strings.TrimSpace(cfg.URL)
	if u == "" {
		return nil, errors.New("webhook url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	retries := cfg.RetryLimit
	if retries < 0 {
		retries = 0
	}
	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	return &WebhookSink{url: u, retryLimit: retries, client: hc}, nil
}

func (w *WebhookSink) Send(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	attempts := w.retryLimit + 1
	var lastErr error
	for attempt := range attempts {
		err = w.post(ctx, body)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt < attempts-1 {
			delay := time.Duration(attempt+1) * 200 * time.Millisecond
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	return lastErr
}

func (w *WebhookSink) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// RedisSink publishes events on a channel for live observers.
type RedisSink struct {
	client  redis.UniversalClient
	channel string
}

func NewRedisSink(client redis.UniversalClient, channel string) *RedisSink {
	return &RedisSink{client: client, channel: channel}
}

func (r *RedisSink) Send(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", r.channel, err)
	}
	return nil
}
