package repository

import (
	"time"

	"github.com/google/uuid"
)

// DefaultMaxHistory is the number of jobs kept before the oldest are evicted.
const DefaultMaxHistory = 20

// Options holds the settings shared by every store backend.
type Options struct {
	MaxHistory int
	Now        func() time.Time
	NewID      func() string
}

func (o Options) withDefaults() Options {
	if o.MaxHistory <= 0 {
		o.MaxHistory = DefaultMaxHistory
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	if o.NewID == nil {
		o.NewID = func() string { return uuid.NewString() }
	}
	return o
}
