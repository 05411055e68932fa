package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"resume-forge/internal/domain"
	apperrors "resume-forge/internal/errors"
	"resume-forge/internal/model"
	"resume-forge/internal/usecase"
)

const (
	setupURL       = "/settings"
	filenamePrefix = "ResumeForge"
)

// Pinger checks generator credentials.
type Pinger interface {
	Ping(ctx context.Context, apiKey, model string) error
}

// Launcher starts a pipeline run for a job in the background. ctx is
// already detached from the request's cancellation.
type Launcher func(ctx context.Context, jobID string)

type Handler struct {
	processor *usecase.Processor
	jobs      usecase.JobStore
	settings  usecase.SettingsStore
	pinger    Pinger
	logger    *slog.Logger
	launch    Launcher
	runs      sync.WaitGroup
}

func NewHandler(p *usecase.Processor, jobs usecase.JobStore, settings usecase.SettingsStore, pinger Pinger, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default().With("component", "http")
	}
	h := &Handler{processor: p, jobs: jobs, settings: settings, pinger: pinger, logger: logger}
	h.launch = h.runDetached
	return h
}

// WithLauncher replaces the background launcher, mainly for tests.
func (h *Handler) WithLauncher(l Launcher) *Handler {
	h.launch = l
	return h
}

func (h *Handler) runDetached(ctx context.Context, jobID string) {
	h.runs.Add(1)
	go func() {
		defer h.runs.Done()
		if err := h.processor.Run(ctx, jobID); err != nil {
			h.logger.ErrorContext(ctx, "job run failed", "job_id", jobID, "error", err)
		}
	}()
}

// launchRun hands jobID to the launcher with a context that keeps the
// request's values but not its cancellation.
func (h *Handler) launchRun(c *fiber.Ctx, jobID string) {
	h.launch(context.WithoutCancel(c.UserContext()), jobID)
}

// Wait blocks until background runs finish or ctx is done.
func (h *Handler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.runs.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Register mounts all routes on app.
func (h *Handler) Register(app *fiber.App) {
	app.Get("/healthz", h.Health)

	app.Post("/jobs", h.StartJob)
	app.Get("/jobs", h.ListJobs)
	app.Delete("/jobs", h.ClearJobs)
	app.Get("/jobs/:id", h.GetJob)
	app.Get("/jobs/:id/pdf", h.GetPDF)
	app.Post("/jobs/:id/regenerate", h.RegenerateJob)
	app.Delete("/jobs/:id", h.DeleteJob)

	app.Get("/settings", h.GetSettings)
	app.Put("/settings", h.PutSettings)
}

func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

type startReq struct {
	JobDescription string `json:"jobDescription"`
	OriginContext  string `json:"originContext,omitempty"`
}

func (h *Handler) StartJob(c *fiber.Ctx) error {
	var req startReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid payload"})
	}
	if strings.TrimSpace(req.JobDescription) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "jobDescription is required"})
	}

	job, err := h.processor.Start(c.UserContext(), req.JobDescription, req.OriginContext)
	if err != nil {
		return h.writeError(c, err)
	}
	h.launchRun(c, job.ID)

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"jobId": job.ID, "status": job.Status})
}

type regenerateReq struct {
	Feedback string `json:"feedback"`
}

func (h *Handler) RegenerateJob(c *fiber.Ctx) error {
	var req regenerateReq
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid payload"})
		}
	}

	job, err := h.processor.Regenerate(c.UserContext(), c.Params("id"), req.Feedback)
	if err != nil {
		return h.writeError(c, err)
	}
	h.launchRun(c, job.ID)

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"jobId": job.ID, "status": job.Status})
}

// jobView is the API shape of a job. The artifact is served separately.
type jobView struct {
	ID            string            `json:"id"`
	Status        domain.Status     `json:"status"`
	StatusText    string            `json:"status_text"`
	Badge         string            `json:"badge"`
	OriginText    string            `json:"origin_text"`
	OriginContext string            `json:"origin_context,omitempty"`
	Feedback      string            `json:"feedback,omitempty"`
	Document      string            `json:"document,omitempty"`
	Assessment    domain.Assessment `json:"assessment,omitempty"`
	Warning       string            `json:"warning,omitempty"`
	Error         string            `json:"error,omitempty"`
	TrimAttempts  int               `json:"trim_attempts"`
	HasPDF        bool              `json:"has_pdf"`
	PDFURL        string            `json:"pdf_url,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

func newJobView(j *domain.Job, full bool) jobView {
	v := jobView{
		ID:            j.ID,
		Status:        j.Status,
		StatusText:    j.StatusText(),
		Badge:         j.Status.Badge(),
		OriginText:    j.OriginText,
		OriginContext: j.OriginContext,
		Feedback:      j.Feedback,
		Warning:       j.Assessment.Warning(),
		Error:         j.Error,
		TrimAttempts:  j.TrimAttempts,
		HasPDF:        len(j.Artifact) > 0,
		CreatedAt:     j.CreatedAt,
		UpdatedAt:     j.UpdatedAt,
	}
	if v.HasPDF {
		v.PDFURL = "/jobs/" + j.ID + "/pdf"
	}
	if full {
		v.Document = j.Document
		v.Assessment = j.Assessment
	}
	return v
}

func (h *Handler) ListJobs(c *fiber.Ctx) error {
	jobs, err := h.jobs.List(c.UserContext())
	if err != nil {
		return h.writeError(c, err)
	}
	out := make([]jobView, 0, len(jobs))
	for i := range jobs {
		out = append(out, newJobView(&jobs[i], false))
	}
	return c.JSON(fiber.Map{"jobs": out})
}

func (h *Handler) loadJob(c *fiber.Ctx) (*domain.Job, error) {
	id := c.Params("id")
	job, err := h.jobs.Get(c.UserContext(), id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, apperrors.NotFoundf("job %s not found", id)
	}
	return job, nil
}

func (h *Handler) GetJob(c *fiber.Ctx) error {
	job, err := h.loadJob(c)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(newJobView(job, true))
}

func (h *Handler) GetPDF(c *fiber.Ctx) error {
	job, err := h.loadJob(c)
	if err != nil {
		return h.writeError(c, err)
	}
	if len(job.Artifact) == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "job has no PDF yet", "status": job.Status})
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, PDFFilename(job)))
	return c.Send(job.Artifact)
}

// PDFFilename is the download name for a job's artifact.
func PDFFilename(j *domain.Job) string {
	return fmt.Sprintf("%s_%s.pdf", filenamePrefix, j.UpdatedAt.Format("2006-01-02"))
}

func (h *Handler) DeleteJob(c *fiber.Ctx) error {
	if err := h.jobs.Delete(c.UserContext(), c.Params("id")); err != nil {
		return h.writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) ClearJobs(c *fiber.Ctx) error {
	if err := h.jobs.ClearAll(c.UserContext()); err != nil {
		return h.writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type settingsView struct {
	APIKey      string   `json:"apiKey"`
	Model       string   `json:"model"`
	CompilerURL string   `json:"compilerUrl,omitempty"`
	Resume      string   `json:"resume,omitempty"`
	Missing     []string `json:"missing,omitempty"`
	Summary     string   `json:"summary,omitempty"`
}

func (h *Handler) GetSettings(c *fiber.Ctx) error {
	st, err := h.settings.Get(c.UserContext())
	if err != nil {
		return h.writeError(c, err)
	}
	r := st.Redacted()
	return c.JSON(settingsView{
		APIKey:      r.APIKey,
		Model:       r.Model,
		CompilerURL: r.CompilerURL,
		Resume:      r.RawResume,
		Missing:     st.Missing(),
	})
}

type settingsReq struct {
	APIKey      *string `json:"apiKey"`
	Model       *string `json:"model"`
	CompilerURL *string `json:"compilerUrl"`
	Resume      *string `json:"resume"`
}

// PutSettings merges the provided fields into the stored settings. With
// ?test=1 the credentials are checked against the generator before saving.
func (h *Handler) PutSettings(c *fiber.Ctx) error {
	var req settingsReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid payload"})
	}

	ctx := c.UserContext()
	st, err := h.settings.Get(ctx)
	if err != nil {
		return h.writeError(c, err)
	}

	if req.APIKey != nil {
		st.APIKey = strings.TrimSpace(*req.APIKey)
	}
	if req.Model != nil {
		st.Model = strings.TrimSpace(*req.Model)
	}
	if req.CompilerURL != nil {
		st.CompilerURL = strings.TrimSpace(*req.CompilerURL)
	}

	summary := ""
	if req.Resume != nil {
		res, err := model.ParseResume(*req.Resume)
		if errors.Is(err, model.ErrEmptyResume) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
		}
		if err != nil {
			return h.writeError(c, err)
		}
		if !res.OK() {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error":   res.Err().Error(),
				"errors":  res.Errors,
				"summary": res.Summary,
			})
		}
		st.Resume = &res.Data
		st.RawResume = *req.Resume
		summary = res.Summary
	}

	if c.Query("test") == "1" && h.pinger != nil {
		if err := h.pinger.Ping(ctx, st.APIKey, st.Model); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "connection test failed: " + err.Error(),
				"kind":  apperrors.KindOf(err),
			})
		}
	}

	if err := h.settings.Set(ctx, st); err != nil {
		return h.writeError(c, err)
	}
	h.logger.InfoContext(ctx, "settings updated", "model", st.Model, "missing", st.Missing())

	r := st.Redacted()
	return c.JSON(settingsView{
		APIKey:      r.APIKey,
		Model:       r.Model,
		CompilerURL: r.CompilerURL,
		Missing:     st.Missing(),
		Summary:     summary,
	})
}

func (h *Handler) writeError(c *fiber.Ctx, err error) error {
	kind := apperrors.KindOf(err)
	switch kind {
	case apperrors.KindConfigurationMissing:
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":     err.Error(),
			"kind":      kind,
			"setup_url": setupURL,
		})
	case apperrors.KindNotFound:
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error(), "kind": kind})
	case apperrors.KindConflict:
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error(), "kind": kind})
	}
	h.logger.ErrorContext(c.UserContext(), "request failed", "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
}
