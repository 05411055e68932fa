package model

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// assessmentSchema describes the evaluation object returned next to the
// generated document. Fields are optional; types are enforced when present.
const assessmentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "definitions": {
    "skill": {
      "type": "object",
      "properties": {
        "skill":   {"type": "string"},
        "status":  {"type": "string"},
        "backing": {"type": ["string", "null"]}
      }
    },
    "texts": {"type": "array", "items": {"type": "string"}}
  },
  "properties": {
    "fit_level":           {"type": "string", "enum": ["STRONG", "MODERATE", "WEAK"]},
    "required_match_pct":  {"type": ["number", "string"]},
    "preferred_match_pct": {"type": ["number", "string"]},
    "required_skills":     {"type": "array", "items": {"$ref": "#/definitions/skill"}},
    "preferred_skills":    {"type": "array", "items": {"$ref": "#/definitions/skill"}},
    "gaps":                {"$ref": "#/definitions/texts"},
    "strengths":           {"$ref": "#/definitions/texts"},
    "interview_risks":     {"$ref": "#/definitions/texts"},
    "recommendation":      {"type": "string"},
    "title_mismatch":      {"type": "boolean"},
    "experience_gap":      {"type": "boolean"},
    "selected_bullets": {
      "type": "object",
      "additionalProperties": {"type": "array", "items": {"type": "string"}}
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *gojsonschema.Schema
	schemaErr      error
)

func loadAssessmentSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(assessmentSchema))
	})
	return compiledSchema, schemaErr
}

// ValidateAssessment validates a decoded assessment object against the
// assessment schema.
func ValidateAssessment(m map[string]any) error {
	schema, err := loadAssessmentSchema()
	if err != nil {
		return fmt.Errorf("load assessment schema: %w", err)
	}
	res, err := schema.Validate(gojsonschema.NewGoLoader(m))
	if err != nil {
		return err
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("schema validation failed: %s", strings.Join(msgs, "; "))
}
