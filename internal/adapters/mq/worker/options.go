package worker

import (
	"github.com/jonboulle/clockwork"

	"github.com/okian/fairway/pkg/logger"
)

// Option applies a configuration option to an InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name used in logs.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithReporter registers a callback invoked once per processed job.
// It may be called from several workers at once.
func WithReporter(r Reporter) Option {
	return func(w *InMemoryWorker) {
		if r != nil {
			w.report = r
		}
	}
}

// WithClock sets the clock used to time jobs.
func WithClock(c clockwork.Clock) Option {
	return func(w *InMemoryWorker) {
		if c != nil {
			w.clock = c
		}
	}
}
