package ai

import (
	"encoding/json"
	"regexp"
	"strings"

	"resume-forge/internal/domain"
	apperrors "resume-forge/internal/errors"
	"resume-forge/internal/model"
)

const (
	documentTag   = "LATEX"
	assessmentTag = "ASSESSMENT"
)

var (
	documentBlock   = regexp.MustCompile(`(?s)<LATEX>(.*?)</LATEX>`)
	assessmentBlock = regexp.MustCompile(`(?s)<ASSESSMENT>(.*?)</ASSESSMENT>`)
)

// GenerationResult is a parsed generator reply.
type GenerationResult struct {
	Document   string
	Assessment domain.Assessment
	Raw        string
}

// Blocks holds the delimited sections found in a reply, before any parsing.
type Blocks struct {
	Document      string
	HasDocument   bool
	Assessment    string
	HasAssessment bool
}

// ExtractBlocks finds the document and assessment sections in text.
func ExtractBlocks(text string) Blocks {
	var b Blocks
	if m := documentBlock.FindStringSubmatch(text); m != nil {
		b.Document = strings.TrimSpace(m[1])
		b.HasDocument = true
	}
	if m := assessmentBlock.FindStringSubmatch(text); m != nil {
		b.Assessment = strings.TrimSpace(m[1])
		b.HasAssessment = true
	}
	return b
}

// ParseAssessment decodes and validates an assessment block.
func ParseAssessment(raw string) (domain.Assessment, error) {
	var a domain.Assessment
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return nil, apperrors.Wrap(apperrors.KindMalformedResponse, "failed to parse assessment JSON", err)
	}
	if a == nil {
		return nil, apperrors.Malformed("assessment block is not a JSON object")
	}
	if err := model.ValidateAssessment(a); err != nil {
		return nil, apperrors.Wrap(apperrors.KindMalformedResponse, "assessment does not match schema", err)
	}
	return a, nil
}

// ParseReply strictly parses a generator reply: both blocks must be present
// and the assessment must decode.
func ParseReply(text string) (*GenerationResult, error) {
	b := ExtractBlocks(text)
	if !b.HasDocument {
		return nil, apperrors.Malformed("generator response missing <" + documentTag + "> block")
	}
	if !b.HasAssessment {
		return nil, apperrors.Malformed("generator response missing <" + assessmentTag + "> block")
	}
	a, err := ParseAssessment(b.Assessment)
	if err != nil {
		return nil, err
	}
	return &GenerationResult{Document: b.Document, Assessment: a, Raw: text}, nil
}

// FormatReply renders a document and assessment in the two-block reply
// format, for replaying a prior exchange as conversation history.
func FormatReply(document string, assessment domain.Assessment) string {
	return "<" + documentTag + ">\n" + document + "\n</" + documentTag + ">\n\n" +
		"<" + assessmentTag + ">\n" + assessment.JSON() + "\n</" + assessmentTag + ">"
}
