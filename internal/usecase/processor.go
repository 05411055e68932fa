package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"resume-forge/internal/domain"
	apperrors "resume-forge/internal/errors"
	"resume-forge/internal/notify"
	"resume-forge/pkg/ai"
)

const (
	notifyReadyTitle  = "Resume ready!"
	notifyFailedTitle = "Forge Failed"
	notifyMessageMax  = 100
)

// ErrRunInProgress is returned by Run when another run holds the job.
var ErrRunInProgress = apperrors.New(apperrors.KindConflict, "a run is already in progress for this job")

// Dependencies wires a Processor.
type Dependencies struct {
	Jobs      JobStore
	Settings  SettingsStore
	Generator Generator
	Compiler  Compiler
	Notifier  Notifier
	Guard     RunGuard
	Logger    *slog.Logger
	Now       func() time.Time
}

// ProcessorConfig holds pipeline tunables.
type ProcessorConfig struct {
	MaxTrimAttempts int
	TrimMaxTokens   int
	MaxTokens       int
}

// Processor drives one job from request to final artifact.
type Processor struct {
	jobs      JobStore
	settings  SettingsStore
	generator Generator
	loop      *OverflowLoop
	notifier  Notifier
	guard     RunGuard
	logger    *slog.Logger
	now       func() time.Time
	maxTokens int
}

func NewProcessor(deps Dependencies, cfg ProcessorConfig) *Processor {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "processor")
	}
	guard := deps.Guard
	if guard == nil {
		guard = NewLocalRunGuard()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	maxTrim := cfg.MaxTrimAttempts
	if maxTrim <= 0 {
		maxTrim = DefaultMaxTrimAttempts
	}
	return &Processor{
		jobs:      deps.Jobs,
		settings:  deps.Settings,
		generator: deps.Generator,
		loop: NewOverflowLoop(deps.Generator, deps.Compiler,
			WithMaxTrimAttempts(maxTrim),
			WithTrimMaxTokens(cfg.TrimMaxTokens),
			WithOverflowLogger(logger.With("stage", "overflow")),
		),
		notifier:  deps.Notifier,
		guard:     guard,
		logger:    logger,
		now:       now,
		maxTokens: cfg.MaxTokens,
	}
}

// CheckSettings loads settings and reports ConfigurationMissing when a
// required value is absent.
func (p *Processor) CheckSettings(ctx context.Context) (domain.Settings, error) {
	st, err := p.settings.Get(ctx)
	if err != nil {
		return st, fmt.Errorf("load settings: %w", err)
	}
	if missing := st.Missing(); len(missing) > 0 {
		return st, apperrors.ConfigurationMissing(missing...)
	}
	return st, nil
}

// Start validates settings and creates a queued job. No job is created when
// configuration is missing.
func (p *Processor) Start(ctx context.Context, originText, originContext string) (*domain.Job, error) {
	if _, err := p.CheckSettings(ctx); err != nil {
		return nil, err
	}
	job, err := p.jobs.Create(ctx, originText, originContext)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	p.logger.InfoContext(ctx, "job created", "job_id", job.ID)
	return job, nil
}

// Regenerate requeues an existing job with user feedback. A job with an
// active run is left untouched and ErrRunInProgress is returned.
func (p *Processor) Regenerate(ctx context.Context, jobID, feedback string) (*domain.Job, error) {
	if _, err := p.CheckSettings(ctx); err != nil {
		return nil, err
	}
	release, ok, err := p.guard.Acquire(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRunInProgress
	}
	defer release()

	job, err := p.jobs.Transition(ctx, jobID, domain.JobUpdate{
		Status:        domain.Ptr(domain.StatusQueued),
		Feedback:      domain.Ptr(feedback),
		TrimAttempts:  domain.Ptr(0),
		ClearError:    true,
		ClearArtifact: true,
	})
	if err != nil {
		return nil, fmt.Errorf("requeue job: %w", err)
	}
	if job == nil {
		return nil, apperrors.NotFoundf("job %s not found", jobID)
	}
	p.logger.InfoContext(ctx, "job requeued", "job_id", jobID, "has_feedback", feedback != "")
	return job, nil
}

// Run executes the pipeline for jobID. Pipeline failures are recorded on the
// job and not returned; only guard and lookup failures are.
func (p *Processor) Run(ctx context.Context, jobID string) error {
	release, ok, err := p.guard.Acquire(ctx, jobID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrRunInProgress
	}
	defer release()

	job, err := p.jobs.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	if job == nil {
		return apperrors.NotFoundf("job %s not found", jobID)
	}

	start := p.now()
	logger := p.logger.With("job_id", jobID)
	logger.InfoContext(ctx, "pipeline start")

	st, err := p.CheckSettings(ctx)
	if err != nil {
		p.fail(ctx, job, err)
		return nil
	}

	// Intermediate state from an earlier, interrupted run is discarded here.
	job, err = p.jobs.Transition(ctx, jobID, domain.JobUpdate{
		Status:        domain.Ptr(domain.StatusCallingGenerator),
		TrimAttempts:  domain.Ptr(0),
		ClearError:    true,
		ClearArtifact: true,
	})
	if err != nil {
		return fmt.Errorf("start job: %w", err)
	}
	if job == nil {
		logger.WarnContext(ctx, "job removed before run started")
		return nil
	}
	p.emitPhase(ctx, job)

	systemPrompt := ai.BuildSystemPrompt(st.Resume)
	userMessage := ai.BuildUserMessage(job.OriginText, job.Feedback)

	genStart := p.now()
	gen, err := p.generator.Generate(ctx, ai.GenerateRequest{
		SystemPrompt: systemPrompt,
		UserMessage:  userMessage,
		APIKey:       st.APIKey,
		Model:        st.Model,
		MaxTokens:    p.maxTokens,
	})
	if err != nil {
		p.fail(ctx, job, err)
		return nil
	}
	logger.InfoContext(ctx, "generation complete", "duration", p.now().Sub(genStart).Round(time.Millisecond))

	out, err := p.loop.Run(ctx, OverflowInput{
		Document:       gen.Document,
		Assessment:     gen.Assessment,
		SystemPrompt:   systemPrompt,
		UserMessage:    userMessage,
		JobDescription: job.OriginText,
		APIKey:         st.APIKey,
		Model:          st.Model,
		CompilerURL:    st.CompilerURL,
	}, p.statusCallback(jobID))
	if err != nil {
		p.fail(ctx, job, err)
		return nil
	}

	done, err := p.jobs.Transition(ctx, jobID, domain.JobUpdate{
		Status:       domain.Ptr(domain.StatusDone),
		Document:     domain.Ptr(out.Document),
		Assessment:   out.Assessment,
		Artifact:     out.Artifact,
		TrimAttempts: domain.Ptr(out.TrimAttempts),
		ClearError:   true,
	})
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	if done == nil {
		logger.WarnContext(ctx, "job removed before completion")
		return nil
	}

	elapsed := p.now().Sub(start)
	logger.InfoContext(ctx, "pipeline complete",
		"duration", elapsed.Round(time.Millisecond),
		"trim_attempts", out.TrimAttempts,
		"best_effort", out.BestEffort)

	p.notify(ctx, notify.Event{
		Kind:          notify.EventCompleted,
		JobID:         done.ID,
		OriginContext: done.OriginContext,
		Status:        string(done.Status),
		Badge:         done.Status.Badge(),
		Title:         notifyReadyTitle,
		Message:       ReadyMessage(elapsed, out.TrimAttempts),
		FitLevel:      done.Assessment.FitLevel(),
		TrimAttempts:  out.TrimAttempts,
	})
	return nil
}

// ReadyMessage is the completion notification text.
func ReadyMessage(elapsed time.Duration, trimAttempts int) string {
	msg := fmt.Sprintf("Generated in %.1fs.", elapsed.Seconds())
	if trimAttempts > 0 {
		msg += fmt.Sprintf(" (Trimmed %dx)", trimAttempts)
	}
	return msg
}

func (p *Processor) statusCallback(jobID string) StatusFunc {
	return func(ctx context.Context, ph Phase) {
		u := domain.StatusUpdate(ph.Status())
		if ph.Kind == PhaseTrimming {
			u.TrimAttempts = domain.Ptr(ph.Attempt)
		}
		job, err := p.jobs.Transition(ctx, jobID, u)
		if err != nil {
			p.logger.WarnContext(ctx, "status update failed", "job_id", jobID, "phase", ph.Kind, "error", err)
			return
		}
		if job != nil {
			p.emitPhase(ctx, job)
		}
	}
}

func (p *Processor) fail(ctx context.Context, job *domain.Job, cause error) {
	msg := cause.Error()
	p.logger.ErrorContext(ctx, "pipeline failed",
		"job_id", job.ID,
		"kind", apperrors.KindOf(cause),
		"error", cause)

	if _, err := p.jobs.Transition(ctx, job.ID, domain.JobUpdate{
		Status:        domain.Ptr(domain.StatusError),
		Error:         domain.Ptr(msg),
		ClearArtifact: true,
	}); err != nil {
		p.logger.ErrorContext(ctx, "recording failure failed", "job_id", job.ID, "error", err)
	}

	p.notify(ctx, notify.Event{
		Kind:          notify.EventFailed,
		JobID:         job.ID,
		OriginContext: job.OriginContext,
		Status:        string(domain.StatusError),
		Badge:         domain.StatusError.Badge(),
		Title:         notifyFailedTitle,
		Message:       domain.Truncate(msg, notifyMessageMax),
	})
}

func (p *Processor) emitPhase(ctx context.Context, job *domain.Job) {
	p.notify(ctx, notify.Event{
		Kind:          notify.EventPhase,
		JobID:         job.ID,
		OriginContext: job.OriginContext,
		Status:        string(job.Status),
		Badge:         job.Status.Badge(),
		Title:         job.StatusText(),
		TrimAttempts:  job.TrimAttempts,
	})
}

func (p *Processor) notify(ctx context.Context, ev notify.Event) {
	if p.notifier == nil {
		return
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = p.now().UTC()
	}
	p.notifier.Notify(ctx, ev)
}
