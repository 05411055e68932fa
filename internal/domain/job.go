package domain

import (
	"encoding/base64"
	"time"
)

// Job is one resume-tailoring request and its lifecycle record.
type Job struct {
	ID            string     `json:"id"`
	Status        Status     `json:"status"`
	OriginText    string     `json:"origin_text"`
	OriginContext string     `json:"origin_context,omitempty"`
	Feedback      string     `json:"feedback,omitempty"`
	Document      string     `json:"document,omitempty"`
	Assessment    Assessment `json:"assessment,omitempty"`
	Artifact      []byte     `json:"artifact,omitempty"`
	Error         string     `json:"error,omitempty"`
	TrimAttempts  int        `json:"trim_attempts"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// NewJob builds a queued job.
func NewJob(id, originText, originContext string, now time.Time) *Job {
	return &Job{
		ID:            id,
		Status:        StatusQueued,
		OriginText:    originText,
		OriginContext: originContext,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Clone returns a deep copy so callers never share mutable state with a store.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	out := *j
	if j.Artifact != nil {
		out.Artifact = append([]byte(nil), j.Artifact...)
	}
	out.Assessment = j.Assessment.Clone()
	return &out
}

// StatusText is the display text for the job's current status.
func (j *Job) StatusText() string {
	return j.Status.DisplayText(j.TrimAttempts)
}

// ArtifactDataURL returns the rendered PDF as a data URL, or "" when absent.
func (j *Job) ArtifactDataURL() string {
	if len(j.Artifact) == 0 {
		return ""
	}
	return "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(j.Artifact)
}

// JobUpdate is a merge patch applied by a store transition. Nil fields are
// left untouched.
type JobUpdate struct {
	Status        *Status
	Feedback      *string
	Document      *string
	Assessment    Assessment
	Artifact      []byte
	Error         *string
	TrimAttempts  *int
	ClearError    bool
	ClearArtifact bool
}

// Apply merges u into j and bumps UpdatedAt.
func (u JobUpdate) Apply(j *Job, now time.Time) {
	if u.Status != nil {
		j.Status = *u.Status
	}
	if u.Feedback != nil {
		j.Feedback = *u.Feedback
	}
	if u.Document != nil {
		j.Document = *u.Document
	}
	if u.Assessment != nil {
		j.Assessment = u.Assessment.Clone()
	}
	if u.ClearArtifact {
		j.Artifact = nil
	}
	if u.Artifact != nil {
		j.Artifact = append([]byte(nil), u.Artifact...)
	}
	if u.ClearError {
		j.Error = ""
	}
	if u.Error != nil {
		j.Error = *u.Error
	}
	if u.TrimAttempts != nil {
		j.TrimAttempts = *u.TrimAttempts
	}
	j.UpdatedAt = now
}

// StatusUpdate is shorthand for a transition that only moves the status.
func StatusUpdate(s Status) JobUpdate {
	return JobUpdate{Status: &s}
}

// Ptr returns a pointer to v, for building JobUpdate literals.
func Ptr[T any](v T) *T {
	return &v
}

// Truncate shortens s to at most n runes, appending "..." when cut.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
