package diligence

import (
	"time"

	"github.com/venturelens/dealflow/pkg/logger"
)

// Option applies a configuration option to the Controller.
type Option func(*Controller)

// WithPollInterval sets the delay between status polls. Polling is always
// bounded; a non-positive interval keeps the default.
func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithPollBudget bounds the number of polls per run.
func WithPollBudget(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.pollBudget = n
		}
	}
}

// WithTransientFailureBudget bounds consecutive transient poll failures
// tolerated before the run is declared errored.
func WithTransientFailureBudget(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.transientBudget = n
		}
	}
}

// WithClock sets the poll timer source.
func WithClock(clk Clock) Option {
	return func(c *Controller) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// WithOnDone sets a callback invoked once per run on a terminal state, so
// the consumer can re-read the raw record.
func WithOnDone(fn func(Snapshot)) Option {
	return func(c *Controller) {
		c.onDone = fn
	}
}

// WithLogger sets a custom logger for the controller.
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}
