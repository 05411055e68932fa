package domain

import "fmt"

// Status is the lifecycle state of a Job.
type Status string

const (
	StatusQueued           Status = "queued"
	StatusCallingGenerator Status = "calling_generator"
	StatusCompiling        Status = "compiling"
	StatusOverflowDetected Status = "overflow_detected"
	StatusTrimming         Status = "trimming"
	StatusDone             Status = "done"
	StatusError            Status = "error"
)

// Statuses lists every Status in lifecycle order.
var Statuses = []Status{
	StatusQueued,
	StatusCallingGenerator,
	StatusCompiling,
	StatusOverflowDetected,
	StatusTrimming,
	StatusDone,
	StatusError,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusCallingGenerator, StatusCompiling, StatusOverflowDetected,
		StatusTrimming, StatusDone, StatusError:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are expected.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusError
}

// DisplayText returns the user-facing description of s. attempt is only
// used for StatusTrimming.
func (s Status) DisplayText(attempt int) string {
	switch s {
	case StatusQueued:
		return "Queued"
	case StatusCallingGenerator:
		return "Generating tailored resume"
	case StatusCompiling:
		return "Compiling PDF"
	case StatusOverflowDetected:
		return "Overflow detected, trimming"
	case StatusTrimming:
		return fmt.Sprintf("Trimming (attempt %d)", attempt)
	case StatusDone:
		return "Done"
	case StatusError:
		return "Failed"
	}
	return "Unknown"
}

// Badge returns the short marker shown next to a job in compact views.
func (s Status) Badge() string {
	switch s {
	case StatusDone:
		return "✓"
	case StatusError:
		return "✗"
	case StatusOverflowDetected, StatusTrimming:
		return "✂"
	case StatusCompiling:
		return "📄"
	case StatusQueued, StatusCallingGenerator:
		return "⏳"
	}
	return "?"
}
