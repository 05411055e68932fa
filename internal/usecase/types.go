package usecase

import (
	"context"

	"resume-forge/internal/domain"
	"resume-forge/internal/notify"
	"resume-forge/pkg/ai"
)

// Generator is the text-generation service.
type Generator interface {
	Generate(ctx context.Context, req ai.GenerateRequest) (*ai.GenerationResult, error)
	Complete(ctx context.Context, req ai.GenerateRequest) (string, error)
}

// Compiler turns document source into PDF bytes. An empty endpoint selects
// the compiler's default.
type Compiler interface {
	Compile(ctx context.Context, source, endpoint string) ([]byte, error)
}

// JobStore owns job records. Transition and Get return (nil, nil) when the
// job does not exist.
type JobStore interface {
	Create(ctx context.Context, originText, originContext string) (*domain.Job, error)
	Transition(ctx context.Context, id string, u domain.JobUpdate) (*domain.Job, error)
	Get(ctx context.Context, id string) (*domain.Job, error)
	List(ctx context.Context) ([]domain.Job, error)
	EvictOldest(ctx context.Context, max int) error
	ClearAll(ctx context.Context) error
	Delete(ctx context.Context, id string) error
}

// SettingsStore holds the single settings record.
type SettingsStore interface {
	Get(ctx context.Context) (domain.Settings, error)
	Set(ctx context.Context, st domain.Settings) error
	Remove(ctx context.Context) error
}

// Notifier receives user-facing pipeline events.
type Notifier interface {
	Notify(ctx context.Context, ev notify.Event)
}

// RunGuard allows one active run per job ID. release is nil unless ok.
type RunGuard interface {
	Acquire(ctx context.Context, id string) (release func(), ok bool, err error)
}

// PhaseKind names a progress point inside the overflow loop.
type PhaseKind string

const (
	PhaseCompiling        PhaseKind = "compiling"
	PhaseOverflowDetected PhaseKind = "overflow_detected"
	PhaseTrimming         PhaseKind = "trimming"
)

// Phase is reported to the status callback on every loop transition.
type Phase struct {
	Kind    PhaseKind
	Attempt int
	Pages   int
}

// Status maps a phase to the job status it corresponds to.
func (p Phase) Status() domain.Status {
	switch p.Kind {
	case PhaseOverflowDetected:
		return domain.StatusOverflowDetected
	case PhaseTrimming:
		return domain.StatusTrimming
	default:
		return domain.StatusCompiling
	}
}

// StatusFunc observes loop progress. It cannot abort the loop.
type StatusFunc func(ctx context.Context, p Phase)

// TrimAttempt records one trim cycle. Result is nil when the service call failed.
type TrimAttempt struct {
	Attempt int
	Pages   int
	Result  *ai.GenerationResult
	Err     error
}

// OverflowResult is the outcome of the overflow loop.
type OverflowResult struct {
	Document     string
	Assessment   domain.Assessment
	Artifact     []byte
	Pages        int
	TrimAttempts int
	BestEffort   bool
	Attempts     []TrimAttempt
}
