// Package pdfpages estimates the page count of a compiled PDF without a full
// PDF parser.
//
// Three structural signals are read from the raw bytes and the maximum wins,
// because any single one can under-count depending on how the producer laid
// out its page tree:
//
//   - leaf page objects (/Type /Page, not /Pages)
//   - the /Count of the first /Type /Pages node
//   - the largest /Count anywhere in the file
//
// Documents with nested /Count fields for unrelated reasons (outlines, for
// example) can be over-estimated. This is a known approximation; changing the
// signals needs new sample output to validate against.
package pdfpages

import (
	"bytes"
	"regexp"
	"strconv"
)

var (
	leafPage  = regexp.MustCompile(`/Type\s*/Page\b`)
	rootCount = regexp.MustCompile(`(?s)/Type\s*/Pages.*?/Count\s+(\d+)`)
	anyCount  = regexp.MustCompile(`/Count\s+(\d+)`)
	signature = []byte("%PDF-")
)

// Estimate holds the individual signals and the resulting page count.
type Estimate struct {
	LeafObjects int
	RootCount   int
	MaxCount    int
	Pages       int
	// Fallback is set when no signal fired and the signature alone yielded one page.
	Fallback bool
}

// Count returns the estimated number of pages in pdf.
func Count(pdf []byte) int {
	return Analyze(pdf).Pages
}

// Analyze computes every signal for pdf.
func Analyze(pdf []byte) Estimate {
	var e Estimate
	e.LeafObjects = len(leafPage.FindAllIndex(pdf, -1))

	if m := rootCount.FindSubmatch(pdf); m != nil {
		e.RootCount = atoi(m[1])
	}

	for _, m := range anyCount.FindAllSubmatch(pdf, -1) {
		if n := atoi(m[1]); n > e.MaxCount {
			e.MaxCount = n
		}
	}

	e.Pages = max(e.LeafObjects, e.RootCount, e.MaxCount)
	if e.Pages == 0 && bytes.HasPrefix(pdf, signature) {
		e.Pages = 1
		e.Fallback = true
	}
	return e
}

func atoi(b []byte) int {
	n, err := strconv.Atoi(string(b))
	if err != nil {
		return 0
	}
	return n
}
