package diligence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/venturelens/dealflow/pkg/logger"
	"github.com/venturelens/dealflow/pkg/metrics"
)

// Default polling configuration.
const (
	defaultPollInterval    = 2 * time.Second
	defaultPollBudget      = 150
	defaultTransientBudget = 5
)

// State of a diligence run as tracked client-side.
type State string

// Controller states. Completed and Errored are terminal: no automatic
// transition leaves them without an explicit Reset.
const (
	Idle       State = "idle"
	Requested  State = "requested"
	Processing State = "processing"
	Completed  State = "completed"
	Errored    State = "errored"
)

// Snapshot is a point-in-time view of a controller.
type Snapshot struct {
	MemoID string
	State  State
	Result Result
	Err    error
	Polls  int
}

// Clock abstracts the poll timer so tests can drive many poll cycles
// without real delays.
type Clock interface {
	// Tick returns a channel firing every d, plus a stop function.
	Tick(d time.Duration) (<-chan time.Time, func())
}

type tickerClock struct{}

func (tickerClock) Tick(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Controller orchestrates one memo id's trigger/poll cycle. Exactly one
// controller instance owns an id's cycle at a time; a second trigger while a
// run is in flight is rejected rather than racing a duplicate worker
// invocation.
type Controller struct {
	memoID string
	client Client

	interval        time.Duration
	pollBudget      int
	transientBudget int
	clock           Clock
	onDone          func(Snapshot)
	logger          logger.Logger

	mu      sync.Mutex
	state   State
	result  Result
	lastErr error
	polls   int
	// epoch invalidates stray timer fires and in-flight work after Reset.
	epoch  uint64
	cancel context.CancelFunc
}

// New creates a controller for one memo id.
func New(memoID string, client Client, opts ...Option) *Controller {
	c := &Controller{
		memoID:          memoID,
		client:          client,
		interval:        defaultPollInterval,
		pollBudget:      defaultPollBudget,
		transientBudget: defaultTransientBudget,
		clock:           tickerClock{},
		state:           Idle,
		logger:          logger.Get().Named("diligence"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MemoID returns the memo id this controller owns.
func (c *Controller) MemoID() string {
	return c.memoID
}

// State returns the current snapshot.
func (c *Controller) State() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		MemoID: c.memoID,
		State:  c.state,
		Result: c.result,
		Err:    c.lastErr,
		Polls:  c.polls,
	}
}

// Trigger requests one diligence run and starts polling on acknowledgement.
// It fails fast with ErrNoMemoID before any network call, rejects concurrent
// triggers with ErrAlreadyRunning, and returns to Idle (retryable) when the
// outbound request fails.
func (c *Controller) Trigger(ctx context.Context) error {
	c.mu.Lock()
	if c.memoID == "" {
		c.mu.Unlock()
		return ErrNoMemoID
	}
	if c.state == Requested || c.state == Processing {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	c.state = Requested
	c.result = nil
	c.lastErr = nil
	c.polls = 0
	c.epoch++
	epoch := c.epoch
	c.mu.Unlock()

	metrics.RecordDiligenceTrigger()
	if err := c.client.Trigger(ctx, c.memoID); err != nil {
		metrics.RecordDiligenceTriggerError()
		c.mu.Lock()
		if c.epoch == epoch && c.state == Requested {
			c.state = Idle
		}
		c.mu.Unlock()
		c.logger.Warn(ctx, "diligence trigger failed",
			logger.String("memoID", c.memoID),
			logger.Error(err),
		)
		return err
	}

	// Polling outlives the caller's request context; only Reset or a
	// terminal state stops it.
	pollCtx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	if c.epoch != epoch {
		// Reset raced the acknowledgement; no further side effects.
		c.mu.Unlock()
		cancel()
		return nil
	}
	c.state = Processing
	c.cancel = cancel
	c.mu.Unlock()

	c.logger.Info(ctx, "diligence run accepted",
		logger.String("memoID", c.memoID),
		logger.Duration("pollInterval", c.interval),
	)
	go c.pollLoop(pollCtx, epoch)
	return nil
}

// Reset cancels any in-flight polling and returns the controller to Idle.
// A stray poll firing after reset is a no-op: it checks the epoch before
// acting.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.state = Idle
	c.result = nil
	c.lastErr = nil
	c.polls = 0
}

// pollLoop polls until a terminal outcome, the budget runs out, or the
// epoch moves on.
func (c *Controller) pollLoop(ctx context.Context, epoch uint64) {
	tick, stop := c.clock.Tick(c.interval)
	defer stop()

	transient := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
		}

		polls, ok := c.notePoll(epoch)
		if !ok {
			return
		}
		metrics.RecordDiligencePoll()

		out, err := c.client.Poll(ctx, c.memoID)
		if err != nil {
			metrics.RecordDiligencePollError()
			transient++
			c.logger.Warn(ctx, "diligence poll failed",
				logger.String("memoID", c.memoID),
				logger.Int("consecutiveFailures", transient),
				logger.Error(err),
			)
			if transient >= c.transientBudget {
				c.finish(ctx, epoch, Errored, nil, err)
				return
			}
			continue
		}
		transient = 0

		switch out.Status {
		case WireCompleted:
			if len(out.Result) > 0 {
				c.finish(ctx, epoch, Completed, out.Result, nil)
				return
			}
			// Completed without a payload: the worker has not finished
			// writing the result; treat as still processing.
		case WireError:
			c.finish(ctx, epoch, Errored, nil, fmt.Errorf("%w: %s", ErrWorkerFailed, out.Err))
			return
		}

		if polls >= c.pollBudget {
			c.finish(ctx, epoch, Errored, nil, ErrPollBudgetExceeded)
			return
		}
	}
}

// notePoll counts one poll attempt, reporting false when the epoch has
// moved on.
func (c *Controller) notePoll(epoch uint64) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return 0, false
	}
	c.polls++
	return c.polls, true
}

// finish applies a terminal state and signals the completion callback.
func (c *Controller) finish(ctx context.Context, epoch uint64, state State, result Result, err error) {
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return
	}
	c.state = state
	c.result = result
	c.lastErr = err
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	snap := c.snapshotLocked()
	done := c.onDone
	c.mu.Unlock()

	if state == Completed {
		metrics.RecordDiligenceCompleted()
		c.logger.Info(ctx, "diligence run completed",
			logger.String("memoID", c.memoID),
			logger.Int("polls", snap.Polls),
		)
	} else {
		metrics.RecordDiligenceErrored()
		c.logger.Warn(ctx, "diligence run errored",
			logger.String("memoID", c.memoID),
			logger.Int("polls", snap.Polls),
			logger.Error(err),
		)
	}
	if done != nil {
		done(snap)
	}
}
