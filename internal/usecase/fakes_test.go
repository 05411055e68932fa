package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"resume-forge/internal/domain"
	apperrors "resume-forge/internal/errors"
	"resume-forge/internal/notify"
	"resume-forge/pkg/ai"
)

const strongAssessment = `{"fit_level":"STRONG","required_match_pct":90,"strengths":["Go"]}`

func reply(doc, assessment string) string {
	return "<LATEX>\n" + doc + "\n</LATEX>\n\n<ASSESSMENT>\n" + assessment + "\n</ASSESSMENT>"
}

// pdfWithPages builds bytes the page estimator reads as n pages.
func pdfWithPages(n int) []byte {
	var b strings.Builder
	b.WriteString("%PDF-1.5\n")
	fmt.Fprintf(&b, "1 0 obj << /Type /Pages /Count %d >> endobj\n", n)
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%d 0 obj << /Type /Page >> endobj\n", i+2)
	}
	return []byte(b.String())
}

// fakeGenerator returns scripted replies. Generate serves the first call,
// Complete serves trims in order.
type fakeGenerator struct {
	mu          sync.Mutex
	generate    *ai.GenerationResult
	generateErr error
	trims       []string
	trimErrs    []error
	generateReq []ai.GenerateRequest
	trimReqs    []ai.GenerateRequest
}

func (f *fakeGenerator) Generate(_ context.Context, req ai.GenerateRequest) (*ai.GenerationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generateReq = append(f.generateReq, req)
	if f.generateErr != nil {
		return nil, f.generateErr
	}
	return f.generate, nil
}

func (f *fakeGenerator) Complete(_ context.Context, req ai.GenerateRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.trimReqs)
	f.trimReqs = append(f.trimReqs, req)
	if i < len(f.trimErrs) && f.trimErrs[i] != nil {
		return "", f.trimErrs[i]
	}
	if i < len(f.trims) {
		return f.trims[i], nil
	}
	return "", apperrors.Malformed("no scripted trim reply")
}

// fakeCompiler answers each call with the next scripted page count or error.
type fakeCompiler struct {
	mu      sync.Mutex
	pages   []int
	errs    []error
	sources []string
}

func (f *fakeCompiler) Compile(_ context.Context, source, _ string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.sources)
	f.sources = append(f.sources, source)
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	n := 1
	if i < len(f.pages) {
		n = f.pages[i]
	} else if len(f.pages) > 0 {
		n = f.pages[len(f.pages)-1]
	}
	return pdfWithPages(n), nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recordingNotifier) Notify(_ context.Context, ev notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingNotifier) last() notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return notify.Event{}
	}
	return r.events[len(r.events)-1]
}

func (r *recordingNotifier) statuses() []domain.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Status
	for _, ev := range r.events {
		if ev.Kind == notify.EventPhase {
			out = append(out, domain.Status(ev.Status))
		}
	}
	return out
}
