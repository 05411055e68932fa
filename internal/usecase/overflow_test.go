package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-forge/internal/domain"
	apperrors "resume-forge/internal/errors"
	"resume-forge/pkg/ai"
)

func overflowInput() OverflowInput {
	return OverflowInput{
		Document:       "doc-0",
		Assessment:     domain.Assessment{"fit_level": "STRONG"},
		SystemPrompt:   "system",
		UserMessage:    "jd text",
		JobDescription: "jd text",
		APIKey:         "key",
		Model:          "model",
	}
}

func TestOverflowSinglePageReturnsImmediately(t *testing.T) {
	gen := &fakeGenerator{}
	comp := &fakeCompiler{pages: []int{1}}
	var phases []Phase

	res, err := NewOverflowLoop(gen, comp).Run(context.Background(), overflowInput(), func(_ context.Context, p Phase) {
		phases = append(phases, p)
	})
	require.NoError(t, err)

	assert.Equal(t, 0, res.TrimAttempts)
	assert.Equal(t, "doc-0", res.Document)
	assert.Equal(t, domain.Assessment{"fit_level": "STRONG"}, res.Assessment)
	assert.False(t, res.BestEffort)
	assert.Empty(t, gen.trimReqs)
	assert.Len(t, comp.sources, 1)
	assert.Equal(t, []Phase{{Kind: PhaseCompiling}}, phases)
}

func TestOverflowTrimsUntilOnePage(t *testing.T) {
	gen := &fakeGenerator{trims: []string{reply("doc-1", `{"fit_level":"MODERATE"}`)}}
	comp := &fakeCompiler{pages: []int{2, 1}}

	res, err := NewOverflowLoop(gen, comp).Run(context.Background(), overflowInput(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, res.TrimAttempts)
	assert.Equal(t, "doc-1", res.Document)
	assert.Equal(t, "MODERATE", res.Assessment.FitLevel())
	assert.Equal(t, 1, res.Pages)
	assert.Empty(t, res.Assessment.Warning())

	require.Len(t, gen.trimReqs, 1)
	req := gen.trimReqs[0]
	assert.Equal(t, DefaultTrimMaxTokens, req.MaxTokens)
	require.Len(t, req.History, 2)
	assert.Equal(t, ai.Turn{Role: ai.RoleUser, Content: "jd text"}, req.History[0])
	assert.Equal(t, ai.RoleAssistant, req.History[1].Role)
	assert.Contains(t, req.History[1].Content, "<LATEX>\ndoc-0\n</LATEX>")
	assert.Contains(t, req.UserMessage, "compiled to 2 pages")
}

func TestOverflowAttemptsAreBounded(t *testing.T) {
	gen := &fakeGenerator{trims: []string{
		reply("doc-1", strongAssessment),
		reply("doc-2", strongAssessment),
		reply("doc-3", strongAssessment),
	}}
	comp := &fakeCompiler{pages: []int{3}}

	res, err := NewOverflowLoop(gen, comp).Run(context.Background(), overflowInput(), nil)
	require.NoError(t, err)

	assert.Equal(t, 2, res.TrimAttempts)
	assert.Len(t, gen.trimReqs, 2)
	assert.True(t, res.BestEffort)
	assert.Equal(t, "doc-2", res.Document)
	assert.Equal(t, OverflowWarning(2), res.Assessment.Warning())
	// initial, two trims, final
	assert.Equal(t, []string{"doc-0", "doc-1", "doc-2", "doc-2"}, comp.sources)
}

func TestOverflowCustomBound(t *testing.T) {
	gen := &fakeGenerator{trims: []string{reply("doc-1", strongAssessment)}}
	comp := &fakeCompiler{pages: []int{2}}

	res, err := NewOverflowLoop(gen, comp, WithMaxTrimAttempts(1)).Run(context.Background(), overflowInput(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.TrimAttempts)
	assert.Equal(t, OverflowWarning(1), res.Assessment.Warning())
}

func TestOverflowMissingDocumentKeepsPrevious(t *testing.T) {
	gen := &fakeGenerator{trims: []string{"<ASSESSMENT>" + strongAssessment + "</ASSESSMENT>"}}
	comp := &fakeCompiler{pages: []int{2, 1}}

	res, err := NewOverflowLoop(gen, comp).Run(context.Background(), overflowInput(), nil)
	require.NoError(t, err)

	require.Len(t, comp.sources, 2)
	assert.Equal(t, "doc-0", comp.sources[1])
	assert.Equal(t, "doc-0", res.Document)
	assert.Equal(t, 1, res.TrimAttempts)
}

func TestOverflowBadAssessmentKeepsPrevious(t *testing.T) {
	gen := &fakeGenerator{trims: []string{reply("doc-1", "{broken")}}
	comp := &fakeCompiler{pages: []int{2, 1}}

	res, err := NewOverflowLoop(gen, comp).Run(context.Background(), overflowInput(), nil)
	require.NoError(t, err)
	assert.Equal(t, "doc-1", res.Document)
	assert.Equal(t, "STRONG", res.Assessment.FitLevel())
}

func TestOverflowMalformedTrimIsSoft(t *testing.T) {
	gen := &fakeGenerator{
		trimErrs: []error{apperrors.Malformed("generator returned empty content")},
		trims:    []string{"", reply("doc-2", strongAssessment)},
	}
	comp := &fakeCompiler{pages: []int{2, 2, 1}}

	res, err := NewOverflowLoop(gen, comp).Run(context.Background(), overflowInput(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.TrimAttempts)
	assert.Equal(t, "doc-2", res.Document)
	assert.Equal(t, []string{"doc-0", "doc-0", "doc-2"}, comp.sources)
	assert.False(t, res.BestEffort)
}

func TestOverflowTrimServiceErrorReturnsBestEffort(t *testing.T) {
	gen := &fakeGenerator{trimErrs: []error{apperrors.ServiceError("generator API error: overloaded", 529)}}
	comp := &fakeCompiler{pages: []int{2}}

	res, err := NewOverflowLoop(gen, comp).Run(context.Background(), overflowInput(), nil)
	require.NoError(t, err)
	assert.True(t, res.BestEffort)
	assert.Equal(t, "doc-0", res.Document)
	assert.NotEmpty(t, res.Artifact)
	assert.NotEmpty(t, res.Assessment.Warning())
	assert.Len(t, comp.sources, 1)
	require.Len(t, res.Attempts, 1)
	assert.Error(t, res.Attempts[0].Err)
}

func TestOverflowTrimmedCompileFailureFallsBack(t *testing.T) {
	gen := &fakeGenerator{trims: []string{reply("doc-1", `{"fit_level":"WEAK"}`)}}
	comp := &fakeCompiler{
		pages: []int{2},
		errs:  []error{nil, apperrors.Compilation("! Missing $ inserted.", 400)},
	}

	res, err := NewOverflowLoop(gen, comp).Run(context.Background(), overflowInput(), nil)
	require.NoError(t, err)
	assert.True(t, res.BestEffort)
	assert.Equal(t, "doc-0", res.Document)
	assert.Equal(t, "STRONG", res.Assessment.FitLevel())
	assert.Equal(t, pdfWithPages(2), res.Artifact)
}

func TestOverflowFinalCompileFailureKeepsLastArtifact(t *testing.T) {
	gen := &fakeGenerator{trims: []string{reply("doc-1", strongAssessment)}}
	comp := &fakeCompiler{
		pages: []int{3, 2},
		errs:  []error{nil, nil, errors.New("compiler down")},
	}

	res, err := NewOverflowLoop(gen, comp, WithMaxTrimAttempts(1)).Run(context.Background(), overflowInput(), nil)
	require.NoError(t, err)
	assert.Equal(t, pdfWithPages(2), res.Artifact)
	assert.Equal(t, "doc-1", res.Document)
	assert.True(t, res.BestEffort)
}

func TestOverflowInitialCompileFailureFails(t *testing.T) {
	comp := &fakeCompiler{errs: []error{apperrors.Compilation("! Undefined control sequence.", 400)}}

	_, err := NewOverflowLoop(&fakeGenerator{}, comp).Run(context.Background(), overflowInput(), nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindCompilationError))
}

func TestOverflowCallbackPanicDoesNotAbort(t *testing.T) {
	gen := &fakeGenerator{trims: []string{reply("doc-1", strongAssessment)}}
	comp := &fakeCompiler{pages: []int{2, 1}}

	var res *OverflowResult
	var err error
	assert.NotPanics(t, func() {
		res, err = NewOverflowLoop(gen, comp).Run(context.Background(), overflowInput(), func(context.Context, Phase) {
			panic("observer broke")
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.TrimAttempts)
}

func TestOverflowPhaseSequence(t *testing.T) {
	gen := &fakeGenerator{trims: []string{reply("doc-1", strongAssessment)}}
	comp := &fakeCompiler{pages: []int{2, 1}}
	var phases []Phase

	_, err := NewOverflowLoop(gen, comp).Run(context.Background(), overflowInput(), func(_ context.Context, p Phase) {
		phases = append(phases, p)
	})
	require.NoError(t, err)
	assert.Equal(t, []Phase{
		{Kind: PhaseCompiling},
		{Kind: PhaseOverflowDetected, Attempt: 1, Pages: 2},
		{Kind: PhaseTrimming, Attempt: 1, Pages: 2},
		{Kind: PhaseCompiling, Attempt: 1},
	}, phases)
}
