package domain

import "encoding/json"

// WarningKey is the assessment field carrying a non-fatal pipeline warning.
const WarningKey = "_warning"

// Assessment is the structured fit evaluation returned with a generated
// document. The pipeline passes it through and only reads a few fields.
type Assessment map[string]any

// FitLevel returns the fit_level field, or "" when absent.
func (a Assessment) FitLevel() string {
	s, _ := a["fit_level"].(string)
	return s
}

// Warning returns the non-fatal warning attached by the pipeline, if any.
func (a Assessment) Warning() string {
	s, _ := a[WarningKey].(string)
	return s
}

// WithWarning returns a copy of a carrying msg under WarningKey.
func (a Assessment) WithWarning(msg string) Assessment {
	out := a.Clone()
	if out == nil {
		out = Assessment{}
	}
	out[WarningKey] = msg
	return out
}

// Clone deep-copies a through a JSON round trip, which is the only shape
// assessments ever take.
func (a Assessment) Clone() Assessment {
	if a == nil {
		return nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		out := make(Assessment, len(a))
		for k, v := range a {
			out[k] = v
		}
		return out
	}
	var out Assessment
	if err := json.Unmarshal(b, &out); err != nil {
		return nil
	}
	return out
}

// JSON renders a for embedding in prompts.
func (a Assessment) JSON() string {
	if a == nil {
		return "{}"
	}
	b, err := json.Marshal(a)
	if err != nil {
		return "{}"
	}
	return string(b)
}
