package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"resume-forge/internal/domain"
	apperrors "resume-forge/internal/errors"
	"resume-forge/pkg/ai"
	"resume-forge/pkg/pdfpages"
)

const (
	DefaultMaxTrimAttempts = 2
	DefaultTrimMaxTokens   = 8000
)

// OverflowInput is the state the loop starts from: the first generation
// result plus what is needed to ask for trimmed revisions.
type OverflowInput struct {
	Document       string
	Assessment     domain.Assessment
	SystemPrompt   string
	UserMessage    string
	JobDescription string
	APIKey         string
	Model          string
	CompilerURL    string
}

// OverflowLoop compiles a document and asks for bounded trims until the
// artifact is one page.
type OverflowLoop struct {
	generator     Generator
	compiler      Compiler
	maxAttempts   int
	trimMaxTokens int
	logger        *slog.Logger
}

type OverflowOption func(*OverflowLoop)

func WithMaxTrimAttempts(n int) OverflowOption {
	return func(l *OverflowLoop) {
		if n >= 0 {
			l.maxAttempts = n
		}
	}
}

func WithTrimMaxTokens(n int) OverflowOption {
	return func(l *OverflowLoop) {
		if n > 0 {
			l.trimMaxTokens = n
		}
	}
}

func WithOverflowLogger(logger *slog.Logger) OverflowOption {
	return func(l *OverflowLoop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func NewOverflowLoop(g Generator, c Compiler, opts ...OverflowOption) *OverflowLoop {
	l := &OverflowLoop{
		generator:     g,
		compiler:      c,
		maxAttempts:   DefaultMaxTrimAttempts,
		trimMaxTokens: DefaultTrimMaxTokens,
		logger:        slog.Default().With("component", "overflow"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// OverflowWarning is attached to best-effort results.
func OverflowWarning(attempts int) string {
	return fmt.Sprintf("Resume is still >1 page after %d trim attempts. Manual editing may be needed.", attempts)
}

// Run returns an error only when the initial compile fails. Anything that
// goes wrong later degrades to the best result compiled so far.
func (l *OverflowLoop) Run(ctx context.Context, in OverflowInput, onStatus StatusFunc) (*OverflowResult, error) {
	res := &OverflowResult{Document: in.Document, Assessment: in.Assessment}

	l.report(ctx, onStatus, Phase{Kind: PhaseCompiling})
	pdf, err := l.compiler.Compile(ctx, in.Document, in.CompilerURL)
	if err != nil {
		return nil, err
	}
	res.Artifact = pdf
	res.Pages = pdfpages.Count(pdf)

	exhausted := false
	for {
		if res.Pages <= 1 {
			l.logger.InfoContext(ctx, "document fits one page", "trim_attempts", res.TrimAttempts)
			return res, nil
		}
		if res.TrimAttempts >= l.maxAttempts {
			exhausted = true
			break
		}

		res.TrimAttempts++
		attempt := TrimAttempt{Attempt: res.TrimAttempts, Pages: res.Pages}
		l.logger.InfoContext(ctx, "overflow detected", "pages", res.Pages, "attempt", attempt.Attempt)
		l.report(ctx, onStatus, Phase{Kind: PhaseOverflowDetected, Attempt: attempt.Attempt, Pages: res.Pages})
		l.report(ctx, onStatus, Phase{Kind: PhaseTrimming, Attempt: attempt.Attempt, Pages: res.Pages})

		text, err := l.generator.Complete(ctx, l.trimRequest(in, res))
		if err != nil && !apperrors.IsKind(err, apperrors.KindMalformedResponse) {
			attempt.Err = err
			res.Attempts = append(res.Attempts, attempt)
			l.logger.WarnContext(ctx, "trim request failed, returning best effort", "attempt", attempt.Attempt, "error", err)
			break
		}

		document, assessment := res.Document, res.Assessment
		if err != nil {
			attempt.Err = err
			l.logger.WarnContext(ctx, "trim response unusable, keeping previous version", "attempt", attempt.Attempt, "error", err)
		} else {
			document, assessment = l.applyTrim(ctx, text, document, assessment, &attempt)
		}
		res.Attempts = append(res.Attempts, attempt)

		l.report(ctx, onStatus, Phase{Kind: PhaseCompiling, Attempt: attempt.Attempt})
		trimmed, err := l.compiler.Compile(ctx, document, in.CompilerURL)
		if err != nil {
			l.logger.WarnContext(ctx, "trimmed document failed to compile, keeping last compiled version", "attempt", attempt.Attempt, "error", err)
			break
		}
		res.Document, res.Assessment, res.Artifact = document, assessment, trimmed
		res.Pages = pdfpages.Count(trimmed)
	}

	if exhausted {
		l.logger.WarnContext(ctx, "still overflowing after trim attempts, returning best effort", "attempts", res.TrimAttempts, "pages", res.Pages)
		l.report(ctx, onStatus, Phase{Kind: PhaseCompiling, Attempt: res.TrimAttempts})
		final, err := l.compiler.Compile(ctx, res.Document, in.CompilerURL)
		if err != nil {
			l.logger.WarnContext(ctx, "final compile failed, keeping last artifact", "error", err)
		} else {
			res.Artifact = final
			res.Pages = pdfpages.Count(final)
		}
	}

	res.BestEffort = true
	res.Assessment = res.Assessment.WithWarning(OverflowWarning(res.TrimAttempts))
	return res, nil
}

func (l *OverflowLoop) trimRequest(in OverflowInput, res *OverflowResult) ai.GenerateRequest {
	return ai.GenerateRequest{
		SystemPrompt: in.SystemPrompt,
		History: []ai.Turn{
			{Role: ai.RoleUser, Content: in.UserMessage},
			{Role: ai.RoleAssistant, Content: ai.FormatReply(res.Document, res.Assessment)},
		},
		UserMessage: ai.BuildTrimMessage(res.Document, res.Pages, in.JobDescription),
		APIKey:      in.APIKey,
		Model:       in.Model,
		MaxTokens:   l.trimMaxTokens,
	}
}

// applyTrim takes whatever usable blocks the reply has. Missing or broken
// blocks keep the previous value.
func (l *OverflowLoop) applyTrim(ctx context.Context, text, document string, assessment domain.Assessment, attempt *TrimAttempt) (string, domain.Assessment) {
	blocks := ai.ExtractBlocks(text)
	result := &ai.GenerationResult{Document: document, Assessment: assessment, Raw: text}

	if blocks.HasDocument && blocks.Document != "" {
		result.Document = blocks.Document
	} else {
		l.logger.WarnContext(ctx, "trim response missing document block, using previous version", "attempt", attempt.Attempt)
	}

	if blocks.HasAssessment {
		if a, err := ai.ParseAssessment(blocks.Assessment); err != nil {
			l.logger.WarnContext(ctx, "failed to parse trimmed assessment, keeping previous", "attempt", attempt.Attempt, "error", err)
		} else {
			result.Assessment = a
		}
	}

	attempt.Result = result
	return result.Document, result.Assessment
}

func (l *OverflowLoop) report(ctx context.Context, onStatus StatusFunc, p Phase) {
	if onStatus == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			l.logger.ErrorContext(ctx, "status callback panicked", "phase", p.Kind, "panic", r)
		}
	}()
	onStatus(ctx, p)
}
