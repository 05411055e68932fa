package infrastructure

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
	DefaultCompilerURL     = "https://latex.ytotech.com/builds/sync"
	DefaultCompilerTimeout = 60 * time.Second
	DefaultCompilerEngine  = "pdflatex"
)

var pdfSignature = []byte("%PDF")

// CompilerConfig configures a LatexCompiler.
type CompilerConfig struct {
	Endpoint string
	Timeout  time.Duration
	Engine   string
	HTTP     *http.Client
	Logger   *slog.Logger
}

// LatexCompiler turns document source into a PDF through a remote build
// service. It holds no per-call state and is safe for concurrent use.
type LatexCompiler struct {
	endpoint string
	timeout  time.Duration
	engine   string
	http     *http.Client
	logger   *slog.Logger
}

func NewLatexCompiler(cfg CompilerConfig) *LatexCompiler {
	c := &LatexCompiler{
		endpoint: cfg.Endpoint,
		timeout:  cfg.Timeout,
		engine:   cfg.Engine,
		http:     cfg.HTTP,
		logger:   cfg.Logger,
	}
	if c.endpoint == "" {
		c.endpoint = DefaultCompilerURL
	}
	if c.timeout <= 0 {
		c.timeout = DefaultCompilerTimeout
	}
	if c.engine == "" {
		c.engine = DefaultCompilerEngine
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.logger == nil {
		c.logger = slog.Default().With("component", "compiler")
	}
	return c
}

type compileResource struct {
	Main    bool   `json:"main"`
	Content string `json:"content"`
}

type compileRequest struct {
	Compiler  string            `json:"compiler"`
	Resources []compileResource `json:"resources"`
}

// Compile submits source to endpoint, or to the configured default when
// endpoint is empty, and returns the PDF bytes unmodified.
func (c *LatexCompiler) Compile(ctx context.Context, source, endpoint string) ([]byte, error) {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = c.endpoint
	}

	body, err := json.Marshal(compileRequest{
		Compiler:  c.engine,
		Resources: []compileResource{{Main: true, Content: source}},
	})
	if err != nil {
		return nil, fmt.Errorf("encode compile request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build compile request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.Transport("compiler", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Transport("compiler", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if !bytes.HasPrefix(data, pdfSignature) {
			c.logger.WarnContext(ctx, "compiler returned a non-PDF body",
				"status", resp.StatusCode,
				"bytes", len(data),
				"content_type", resp.Header.Get("Content-Type"))
			return nil, apperrors.ServiceError(
				fmt.Sprintf("compiler service returned a non-PDF response (%d bytes)", len(data)), resp.StatusCode)
		}
		c.logger.InfoContext(ctx, "document compiled",
			"bytes", len(data),
			"duration", time.Since(start).Round(time.Millisecond))
		return data, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		c.logger.WarnContext(ctx, "compiler rejected document", "status", resp.StatusCode)
		return nil, apperrors.Compilation(string(data), resp.StatusCode)
	default:
		msg := strings.TrimSpace(string(data))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		c.logger.WarnContext(ctx, "compiler service error", "status", resp.StatusCode)
		return nil, apperrors.ServiceError(fmt.Sprintf("compiler service error (%d): %s", resp.StatusCode, msg), resp.StatusCode)
	}
}
