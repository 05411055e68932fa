package ai

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "resume-forge/internal/errors"
)

const validAssessment = `{"fit_level":"STRONG","required_match_pct":80,"gaps":[],"strengths":["Go"]}`

func textReply(text string) map[string]any {
	return map[string]any{
		"content": []map[string]any{{"type": "text", "text": text}},
		"usage":   map[string]any{"output_tokens": 42},
	}
}

func newTestServer(t *testing.T, status int, body any, inspect func(*http.Request, messagesRequest)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req messagesRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if inspect != nil {
			inspect(r, req)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerateParsesBothBlocks(t *testing.T) {
	reply := "<LATEX>\n\\documentclass{article}\n</LATEX>\n\n<ASSESSMENT>\n" + validAssessment + "\n</ASSESSMENT>"
	var gotReq messagesRequest
	var gotHeaders http.Header
	srv := newTestServer(t, http.StatusOK, textReply(reply), func(r *http.Request, req messagesRequest) {
		gotReq = req
		gotHeaders = r.Header.Clone()
		assert.Equal(t, messagesPath, r.URL.Path)
	})

	c := NewClient(Config{BaseURL: srv.URL})
	res, err := c.Generate(t.Context(), GenerateRequest{
		SystemPrompt: "sys",
		History:      []Turn{{Role: RoleUser, Content: "first"}, {Role: RoleAssistant, Content: "reply"}},
		UserMessage:  "trim it",
		APIKey:       "sk-test",
		Model:        "claude-test",
	})
	require.NoError(t, err)

	assert.Equal(t, `\documentclass{article}`, res.Document)
	assert.Equal(t, "STRONG", res.Assessment.FitLevel())
	assert.Equal(t, reply, res.Raw)

	assert.Equal(t, "sk-test", gotHeaders.Get("x-api-key"))
	assert.Equal(t, DefaultAPIVersion, gotHeaders.Get("anthropic-version"))
	assert.Equal(t, "claude-test", gotReq.Model)
	assert.Equal(t, DefaultMaxTokens, gotReq.MaxTokens)
	assert.Equal(t, "sys", gotReq.System)
	require.Len(t, gotReq.Messages, 3)
	assert.Equal(t, Turn{Role: RoleUser, Content: "trim it"}, gotReq.Messages[2])
}

func TestGenerateMaxTokensOverride(t *testing.T) {
	var got int
	reply := "<LATEX>x</LATEX><ASSESSMENT>" + validAssessment + "</ASSESSMENT>"
	srv := newTestServer(t, http.StatusOK, textReply(reply), func(_ *http.Request, req messagesRequest) {
		got = req.MaxTokens
	})
	_, err := NewClient(Config{BaseURL: srv.URL}).Generate(t.Context(), GenerateRequest{UserMessage: "jd", MaxTokens: 8000})
	require.NoError(t, err)
	assert.Equal(t, 8000, got)
}

func TestGenerateSurfacesServiceMessage(t *testing.T) {
	body := map[string]any{"error": map[string]any{"type": "authentication_error", "message": "invalid x-api-key"}}
	srv := newTestServer(t, http.StatusUnauthorized, body, nil)

	_, err := NewClient(Config{BaseURL: srv.URL}).Generate(t.Context(), GenerateRequest{UserMessage: "jd"})
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.KindServiceError, appErr.Kind)
	assert.Equal(t, http.StatusUnauthorized, appErr.StatusCode)
	assert.Contains(t, err.Error(), "invalid x-api-key")
}

func TestGenerateMissingBlocks(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{name: "no document", reply: "<ASSESSMENT>" + validAssessment + "</ASSESSMENT>", want: "<LATEX>"},
		{name: "no assessment", reply: "<LATEX>doc</LATEX>", want: "<ASSESSMENT>"},
		{name: "bad json", reply: "<LATEX>doc</LATEX><ASSESSMENT>{not json</ASSESSMENT>", want: "assessment JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, http.StatusOK, textReply(tt.reply), nil)
			_, err := NewClient(Config{BaseURL: srv.URL}).Generate(t.Context(), GenerateRequest{UserMessage: "jd"})
			require.Error(t, err)
			assert.True(t, apperrors.IsKind(err, apperrors.KindMalformedResponse))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCompleteEmptyContent(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, map[string]any{"content": []any{}}, nil)
	_, err := NewClient(Config{BaseURL: srv.URL}).Complete(t.Context(), GenerateRequest{UserMessage: "jd"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindMalformedResponse))
}

func TestCompleteTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	c := NewClient(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := c.Complete(t.Context(), GenerateRequest{UserMessage: "jd"})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindTimeout), "got %v", err)
}

func TestPing(t *testing.T) {
	var got messagesRequest
	srv := newTestServer(t, http.StatusOK, textReply("pong"), func(_ *http.Request, req messagesRequest) {
		got = req
	})
	require.NoError(t, NewClient(Config{BaseURL: srv.URL}).Ping(t.Context(), "key", "model"))
	assert.Equal(t, 10, got.MaxTokens)
	assert.Equal(t, "model", got.Model)
}
