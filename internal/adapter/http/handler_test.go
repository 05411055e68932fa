package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-forge/internal/adapter/repository"
	"resume-forge/internal/domain"
	apperrors "resume-forge/internal/errors"
	"resume-forge/internal/model"
	"resume-forge/internal/usecase"
	"resume-forge/pkg/ai"
)

const testResume = `=== CONTACT ===
Name: Jane Doe
Email: jane@example.com

=== EXPERIENCE ===
Company: Acme Corp | Title: Senior Engineer | Dates: 2021 - Present
- Cut p99 latency from 900ms to 120ms

=== EDUCATION ===
Institution: State University | Degree: BS | Field: Computer Science

=== SKILLS ===
Languages: Go, SQL
`

type stubGenerator struct{}

func (stubGenerator) Generate(context.Context, ai.GenerateRequest) (*ai.GenerationResult, error) {
	return &ai.GenerationResult{
		Document:   `\documentclass{article}\begin{document}Jane\end{document}`,
		Assessment: domain.Assessment{"fit_level": "STRONG"},
	}, nil
}

func (stubGenerator) Complete(context.Context, ai.GenerateRequest) (string, error) {
	return "", apperrors.Malformed("unexpected trim")
}

type stubCompiler struct{}

func (stubCompiler) Compile(context.Context, string, string) ([]byte, error) {
	return []byte("%PDF-1.5\n1 0 obj << /Type /Pages /Count 1 >> endobj\n2 0 obj << /Type /Page >> endobj\n"), nil
}

type stubPinger struct {
	err   error
	calls int
}

func (p *stubPinger) Ping(context.Context, string, string) error {
	p.calls++
	return p.err
}

type testServer struct {
	app     *fiber.App
	store   *repository.MemoryStore
	pinger  *stubPinger
	guard   *usecase.LocalRunGuard
	handler *Handler
}

func newTestServer(t *testing.T, configured bool) *testServer {
	t.Helper()
	store := repository.NewMemoryStore(repository.Options{})
	if configured {
		parsed, err := model.ParseResume(testResume)
		require.NoError(t, err)
		require.NoError(t, parsed.Err())
		require.NoError(t, store.Settings().Set(context.Background(), domain.Settings{
			APIKey:    "sk-ant-secret-1234",
			Model:     "claude-test",
			Resume:    &parsed.Data,
			RawResume: testResume,
		}))
	}

	guard := usecase.NewLocalRunGuard()
	proc := usecase.NewProcessor(usecase.Dependencies{
		Jobs:      store,
		Settings:  store.Settings(),
		Generator: stubGenerator{},
		Compiler:  stubCompiler{},
		Guard:     guard,
	}, usecase.ProcessorConfig{})

	pinger := &stubPinger{}
	h := NewHandler(proc, store, store.Settings(), pinger, nil)
	h.WithLauncher(func(ctx context.Context, id string) {
		assert.NoError(t, proc.Run(ctx, id))
	})

	app := fiber.New()
	h.Register(app)
	return &testServer{app: app, store: store, pinger: pinger, guard: guard, handler: h}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (int, map[string]any, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out, raw
}

func TestStartJobRunsToDone(t *testing.T) {
	s := newTestServer(t, true)

	code, body, _ := s.do(t, "POST", "/jobs", map[string]string{
		"jobDescription": "Senior Go engineer",
		"originContext":  "https://jobs.example.com/1",
	})
	require.Equal(t, fiber.StatusAccepted, code)
	id, _ := body["jobId"].(string)
	require.NotEmpty(t, id)

	code, body, _ = s.do(t, "GET", "/jobs/"+id, nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, string(domain.StatusDone), body["status"])
	assert.Equal(t, true, body["has_pdf"])
	assert.Equal(t, "/jobs/"+id+"/pdf", body["pdf_url"])
	assert.NotEmpty(t, body["document"])
	assert.NotContains(t, body, "artifact")

	code, body, _ = s.do(t, "GET", "/jobs", nil)
	require.Equal(t, fiber.StatusOK, code)
	jobs, _ := body["jobs"].([]any)
	require.Len(t, jobs, 1)
	first, _ := jobs[0].(map[string]any)
	assert.NotContains(t, first, "document")
	assert.Equal(t, domain.StatusDone.Badge(), first["badge"])
}

func TestStartJobRequiresDescription(t *testing.T) {
	s := newTestServer(t, true)

	code, body, _ := s.do(t, "POST", "/jobs", map[string]string{"jobDescription": "  "})
	assert.Equal(t, fiber.StatusBadRequest, code)
	assert.Equal(t, "jobDescription is required", body["error"])
}

func TestStartJobWithoutSettings(t *testing.T) {
	s := newTestServer(t, false)

	code, body, _ := s.do(t, "POST", "/jobs", map[string]string{"jobDescription": "Go role"})
	assert.Equal(t, fiber.StatusConflict, code)
	assert.Equal(t, setupURL, body["setup_url"])
	assert.Equal(t, string(apperrors.KindConfigurationMissing), body["kind"])

	jobs, err := s.store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestDownloadPDF(t *testing.T) {
	s := newTestServer(t, true)
	_, body, _ := s.do(t, "POST", "/jobs", map[string]string{"jobDescription": "Go role"})
	id := body["jobId"].(string)

	req := httptest.NewRequest("GET", "/jobs/"+id+"/pdf", nil)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), `attachment; filename="ResumeForge_`)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("%PDF")))
}

func TestDownloadPDFMissing(t *testing.T) {
	s := newTestServer(t, true)

	code, _, _ := s.do(t, "GET", "/jobs/nope/pdf", nil)
	assert.Equal(t, fiber.StatusNotFound, code)

	job, err := s.store.Create(context.Background(), "Go role", "")
	require.NoError(t, err)
	code, body, _ := s.do(t, "GET", "/jobs/"+job.ID+"/pdf", nil)
	assert.Equal(t, fiber.StatusNotFound, code)
	assert.Equal(t, string(domain.StatusQueued), body["status"])
}

func TestRegenerate(t *testing.T) {
	s := newTestServer(t, true)
	_, body, _ := s.do(t, "POST", "/jobs", map[string]string{"jobDescription": "Go role"})
	id := body["jobId"].(string)

	code, _, _ := s.do(t, "POST", "/jobs/"+id+"/regenerate", map[string]string{"feedback": "shorter summary"})
	require.Equal(t, fiber.StatusAccepted, code)

	job, err := s.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, job.Status)
	assert.Equal(t, "shorter summary", job.Feedback)

	code, _, _ = s.do(t, "POST", "/jobs/missing/regenerate", map[string]string{"feedback": "x"})
	assert.Equal(t, fiber.StatusNotFound, code)
}

func TestRegenerateDuringActiveRun(t *testing.T) {
	s := newTestServer(t, true)
	ctx := context.Background()
	job, err := s.store.Create(ctx, "Go role", "")
	require.NoError(t, err)

	release, ok, err := s.guard.Acquire(ctx, job.ID)
	require.NoError(t, err)
	require.True(t, ok)

	code, body, _ := s.do(t, "POST", "/jobs/"+job.ID+"/regenerate", map[string]string{"feedback": "shorter"})
	assert.Equal(t, fiber.StatusConflict, code)
	assert.Equal(t, string(apperrors.KindConflict), body["kind"])

	got, err := s.store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Feedback)

	release()
	code, _, _ = s.do(t, "POST", "/jobs/"+job.ID+"/regenerate", map[string]string{"feedback": "shorter"})
	assert.Equal(t, fiber.StatusAccepted, code)
}

func TestDetachedRunsAreAwaited(t *testing.T) {
	s := newTestServer(t, true)
	s.handler.WithLauncher(s.handler.runDetached)

	code, body, _ := s.do(t, "POST", "/jobs", map[string]string{"jobDescription": "Go role"})
	require.Equal(t, fiber.StatusAccepted, code)

	waitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.handler.Wait(waitCtx))

	job, err := s.store.Get(context.Background(), body["jobId"].(string))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, job.Status)
}

func TestDeleteAndClear(t *testing.T) {
	s := newTestServer(t, true)
	ctx := context.Background()
	a, err := s.store.Create(ctx, "one", "")
	require.NoError(t, err)
	_, err = s.store.Create(ctx, "two", "")
	require.NoError(t, err)

	code, _, _ := s.do(t, "DELETE", "/jobs/"+a.ID, nil)
	assert.Equal(t, fiber.StatusNoContent, code)
	jobs, err := s.store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)

	code, _, _ = s.do(t, "DELETE", "/jobs", nil)
	assert.Equal(t, fiber.StatusNoContent, code)
	jobs, err = s.store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestGetSettingsRedactsKey(t *testing.T) {
	s := newTestServer(t, true)

	code, body, _ := s.do(t, "GET", "/settings", nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "********1234", body["apiKey"])
	assert.Equal(t, "claude-test", body["model"])
	assert.NotContains(t, body, "missing")
}

func TestPutSettingsMergesFields(t *testing.T) {
	s := newTestServer(t, false)

	code, body, _ := s.do(t, "PUT", "/settings", map[string]string{"apiKey": "sk-new-9999"})
	require.Equal(t, fiber.StatusOK, code)
	assert.ElementsMatch(t, []any{"resume", "model"}, body["missing"])

	code, body, _ = s.do(t, "PUT", "/settings", map[string]string{"model": "claude-test", "resume": testResume})
	require.Equal(t, fiber.StatusOK, code)
	assert.NotContains(t, body, "missing")
	assert.NotEmpty(t, body["summary"])

	st, err := s.store.Settings().Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sk-new-9999", st.APIKey)
	assert.Equal(t, "Jane Doe", st.Resume.Contact.Name)
}

func TestPutSettingsRejectsIncompleteResume(t *testing.T) {
	s := newTestServer(t, true)

	code, body, _ := s.do(t, "PUT", "/settings", map[string]string{"resume": "=== CONTACT ===\nName: X\n"})
	assert.Equal(t, fiber.StatusUnprocessableEntity, code)
	assert.NotEmpty(t, body["errors"])

	code, _, _ = s.do(t, "PUT", "/settings", map[string]string{"resume": "   "})
	assert.Equal(t, fiber.StatusUnprocessableEntity, code)

	st, err := s.store.Settings().Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testResume, st.RawResume)
}

func TestPutSettingsConnectionTest(t *testing.T) {
	s := newTestServer(t, true)
	s.pinger.err = apperrors.ServiceError("invalid x-api-key", 401)

	code, body, _ := s.do(t, "PUT", "/settings?test=1", map[string]string{"apiKey": "sk-bad"})
	assert.Equal(t, fiber.StatusBadRequest, code)
	assert.Contains(t, body["error"], "invalid x-api-key")
	assert.Equal(t, 1, s.pinger.calls)

	st, err := s.store.Settings().Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-secret-1234", st.APIKey)

	s.pinger.err = nil
	code, _, _ = s.do(t, "PUT", "/settings?test=1", map[string]string{"apiKey": "sk-good"})
	assert.Equal(t, fiber.StatusOK, code)
	st, err = s.store.Settings().Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sk-good", st.APIKey)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, false)
	code, body, _ := s.do(t, "GET", "/healthz", nil)
	assert.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}
