package domain

import (
	"strings"

	"resume-forge/internal/model"
)

// Settings is the flat settings record a pipeline run needs.
type Settings struct {
	APIKey      string        `json:"api_key"`
	Model       string        `json:"model"`
	CompilerURL string        `json:"compiler_url,omitempty"`
	Resume      *model.Resume `json:"resume,omitempty"`
	RawResume   string        `json:"raw_resume,omitempty"`
}

// Missing lists the required settings that are absent.
func (s Settings) Missing() []string {
	var out []string
	if strings.TrimSpace(s.APIKey) == "" {
		out = append(out, "api_key")
	}
	if s.Resume.Empty() {
		out = append(out, "resume")
	}
	if strings.TrimSpace(s.Model) == "" {
		out = append(out, "model")
	}
	return out
}

// Redacted returns a copy safe to show to users.
func (s Settings) Redacted() Settings {
	out := s
	if n := len(s.APIKey); n > 0 {
		keep := 4
		if n <= keep {
			keep = 0
		}
		out.APIKey = strings.Repeat("*", 8) + s.APIKey[n-keep:]
	}
	return out
}
