package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SinkRegistration pairs a sink implementation with a human-readable name for logging.
type SinkRegistration struct {
	Name string
	Sink Sink
}

// Options configures the notification service.
type Options struct {
	Logger *slog.Logger
	Sinks  []SinkRegistration
}

// Service fans events out to every registered sink. Delivery failures are
// logged and never returned.
type Service struct {
	logger *slog.Logger
	sinks  []SinkRegistration
}

func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "notifier")
	}

	var sinks []SinkRegistration
	for _, entry := range opts.Sinks {
		if entry.Sink == nil {
			continue
		}
		name := entry.Name
		if name == "" {
			name = "sink"
		}
		sinks = append(sinks, SinkRegistration{Name: name, Sink: entry.Sink})
	}
	return &Service{logger: logger, sinks: sinks}
}

// Notify delivers ev to all sinks concurrently and waits for them.
func (s *Service) Notify(ctx context.Context, ev Event) {
	if s == nil || len(s.sinks) == 0 {
		return
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	var wg sync.WaitGroup
	for _, entry := range s.sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					s.logger.ErrorContext(ctx, "notification sink panicked",
						"sink", entry.Name,
						"job_id", ev.JobID,
						"panic", r,
					)
				}
			}()
			if err := entry.Sink.Send(ctx, ev); err != nil {
				s.logger.ErrorContext(ctx, "notification delivery error",
					"sink", entry.Name,
					"job_id", ev.JobID,
					"kind", ev.Kind,
					"error", err,
				)
			}
		}()
	}
	wg.Wait()
}

// Enabled reports whether the service has any active sinks.
func (s *Service) Enabled() bool {
	return s != nil && len(s.sinks) > 0
}
