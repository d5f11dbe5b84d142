package diligence_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/venturelens/dealflow/internal/adapters/diligence"
	"github.com/venturelens/dealflow/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

// manualClock hands out one shared tick channel so tests drive poll cycles
// explicitly instead of waiting on real timers.
type manualClock struct {
	ch chan time.Time
}

func newManualClock() *manualClock {
	return &manualClock{ch: make(chan time.Time)}
}

func (c *manualClock) Tick(d time.Duration) (<-chan time.Time, func()) {
	return c.ch, func() {}
}

func (c *manualClock) fire() {
	c.ch <- time.Now()
}

// scriptedStep is one poll response: either an outcome or an error.
type scriptedStep struct {
	out diligence.Outcome
	err error
}

// fakeWorker scripts the worker side of the trigger/poll protocol.
type fakeWorker struct {
	mu           sync.Mutex
	triggerErr   error
	triggerDelay time.Duration
	triggers     int
	steps        []scriptedStep
	polls        int
}

func (f *fakeWorker) Trigger(ctx context.Context, memoID string) error {
	f.mu.Lock()
	f.triggers++
	err := f.triggerErr
	delay := f.triggerDelay
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	return err
}

func (f *fakeWorker) Poll(ctx context.Context, memoID string) (diligence.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	step := scriptedStep{out: diligence.Outcome{Status: diligence.WireProcessing}}
	if len(f.steps) > 0 {
		step = f.steps[0]
		if len(f.steps) > 1 {
			f.steps = f.steps[1:]
		}
	}
	f.polls++
	return step.out, step.err
}

func (f *fakeWorker) triggerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.triggers
}

func waitDone(done chan diligence.Snapshot) (diligence.Snapshot, bool) {
	select {
	case snap := <-done:
		return snap, true
	case <-time.After(2 * time.Second):
		return diligence.Snapshot{}, false
	}
}

func TestController_Trigger(t *testing.T) {
	Convey("Given a controller over a scripted worker", t, func() {
		ctx := context.Background()
		clock := newManualClock()

		Convey("When the memo id is empty", func() {
			worker := &fakeWorker{}
			ctrl := diligence.New("", worker, diligence.WithClock(clock))

			err := ctrl.Trigger(ctx)

			Convey("Then it fails fast with no outbound call", func() {
				So(err, ShouldEqual, diligence.ErrNoMemoID)
				So(worker.triggerCount(), ShouldEqual, 0)
				So(ctrl.State().State, ShouldEqual, diligence.Idle)
			})
		})

		Convey("When the worker rejects the trigger", func() {
			worker := &fakeWorker{triggerErr: errors.New("worker down")}
			ctrl := diligence.New("memo-1", worker, diligence.WithClock(clock))

			err := ctrl.Trigger(ctx)

			Convey("Then the controller returns to idle and stays retryable", func() {
				So(err, ShouldNotBeNil)
				So(ctrl.State().State, ShouldEqual, diligence.Idle)

				worker.mu.Lock()
				worker.triggerErr = nil
				worker.mu.Unlock()
				So(ctrl.Trigger(ctx), ShouldBeNil)
				So(ctrl.State().State, ShouldEqual, diligence.Processing)
				So(worker.triggerCount(), ShouldEqual, 2)
				ctrl.Reset()
			})
		})

		Convey("When two callers trigger concurrently", func() {
			worker := &fakeWorker{triggerDelay: 50 * time.Millisecond}
			ctrl := diligence.New("memo-1", worker, diligence.WithClock(clock))

			errs := make(chan error, 2)
			for i := 0; i < 2; i++ {
				go func() { errs <- ctrl.Trigger(ctx) }()
			}
			first, second := <-errs, <-errs

			Convey("Then exactly one outbound request goes out", func() {
				So(worker.triggerCount(), ShouldEqual, 1)
				rejected := 0
				for _, err := range []error{first, second} {
					if errors.Is(err, diligence.ErrAlreadyRunning) {
						rejected++
					} else {
						So(err, ShouldBeNil)
					}
				}
				So(rejected, ShouldEqual, 1)
				ctrl.Reset()
			})
		})
	})
}

func TestController_PollLoop(t *testing.T) {
	Convey("Given a triggered controller with a manual clock", t, func() {
		ctx := context.Background()

		Convey("When the worker completes after two processing polls", func() {
			clock := newManualClock()
			done := make(chan diligence.Snapshot, 1)
			worker := &fakeWorker{steps: []scriptedStep{
				{out: diligence.Outcome{Status: diligence.WireProcessing}},
				{out: diligence.Outcome{Status: diligence.WireProcessing}},
				{out: diligence.Outcome{Status: diligence.WireCompleted, Result: diligence.Result{"summary": "ok"}}},
			}}
			ctrl := diligence.New("memo-1", worker,
				diligence.WithClock(clock),
				diligence.WithOnDone(func(s diligence.Snapshot) { done <- s }),
			)

			So(ctrl.Trigger(ctx), ShouldBeNil)
			clock.fire()
			clock.fire()
			clock.fire()

			Convey("Then the run ends completed with the result attached", func() {
				snap, ok := waitDone(done)
				So(ok, ShouldBeTrue)
				So(snap.State, ShouldEqual, diligence.Completed)
				So(snap.Result, ShouldResemble, diligence.Result{"summary": "ok"})
				So(snap.Err, ShouldBeNil)
				So(snap.Polls, ShouldEqual, 3)
				So(ctrl.State().State, ShouldEqual, diligence.Completed)
			})
		})

		Convey("When the worker reports completed without a result payload", func() {
			clock := newManualClock()
			done := make(chan diligence.Snapshot, 1)
			worker := &fakeWorker{steps: []scriptedStep{
				{out: diligence.Outcome{Status: diligence.WireCompleted}},
				{out: diligence.Outcome{Status: diligence.WireCompleted, Result: diligence.Result{"summary": "late"}}},
			}}
			ctrl := diligence.New("memo-1", worker,
				diligence.WithClock(clock),
				diligence.WithOnDone(func(s diligence.Snapshot) { done <- s }),
			)

			So(ctrl.Trigger(ctx), ShouldBeNil)
			clock.fire()
			clock.fire()

			Convey("Then the empty completion counts as still processing", func() {
				snap, ok := waitDone(done)
				So(ok, ShouldBeTrue)
				So(snap.State, ShouldEqual, diligence.Completed)
				So(snap.Polls, ShouldEqual, 2)
				So(snap.Result, ShouldResemble, diligence.Result{"summary": "late"})
			})
		})

		Convey("When the worker reports a failed run", func() {
			clock := newManualClock()
			done := make(chan diligence.Snapshot, 1)
			worker := &fakeWorker{steps: []scriptedStep{
				{out: diligence.Outcome{Status: diligence.WireError, Err: "model blew up"}},
			}}
			ctrl := diligence.New("memo-1", worker,
				diligence.WithClock(clock),
				diligence.WithOnDone(func(s diligence.Snapshot) { done <- s }),
			)

			So(ctrl.Trigger(ctx), ShouldBeNil)
			clock.fire()

			Convey("Then the run errors with the worker's message preserved", func() {
				snap, ok := waitDone(done)
				So(ok, ShouldBeTrue)
				So(snap.State, ShouldEqual, diligence.Errored)
				So(errors.Is(snap.Err, diligence.ErrWorkerFailed), ShouldBeTrue)
				So(snap.Err.Error(), ShouldContainSubstring, "model blew up")
				So(snap.Result, ShouldBeNil)
			})
		})

		Convey("When the poll budget runs out", func() {
			clock := newManualClock()
			done := make(chan diligence.Snapshot, 1)
			worker := &fakeWorker{}
			ctrl := diligence.New("memo-1", worker,
				diligence.WithClock(clock),
				diligence.WithPollBudget(3),
				diligence.WithOnDone(func(s diligence.Snapshot) { done <- s }),
			)

			So(ctrl.Trigger(ctx), ShouldBeNil)
			clock.fire()
			clock.fire()
			clock.fire()

			Convey("Then the run errors without a result", func() {
				snap, ok := waitDone(done)
				So(ok, ShouldBeTrue)
				So(snap.State, ShouldEqual, diligence.Errored)
				So(errors.Is(snap.Err, diligence.ErrPollBudgetExceeded), ShouldBeTrue)
				So(snap.Result, ShouldBeNil)
				So(snap.Polls, ShouldEqual, 3)
			})
		})

		Convey("When polls keep failing at the transport level", func() {
			clock := newManualClock()
			done := make(chan diligence.Snapshot, 1)
			worker := &fakeWorker{steps: []scriptedStep{
				{err: errors.New("connection refused")},
			}}
			ctrl := diligence.New("memo-1", worker,
				diligence.WithClock(clock),
				diligence.WithTransientFailureBudget(2),
				diligence.WithOnDone(func(s diligence.Snapshot) { done <- s }),
			)

			So(ctrl.Trigger(ctx), ShouldBeNil)
			clock.fire()
			clock.fire()

			Convey("Then consecutive failures exhaust the transient budget", func() {
				snap, ok := waitDone(done)
				So(ok, ShouldBeTrue)
				So(snap.State, ShouldEqual, diligence.Errored)
				So(snap.Polls, ShouldEqual, 2)
			})
		})

		Convey("When a successful poll lands between failures", func() {
			clock := newManualClock()
			done := make(chan diligence.Snapshot, 1)
			worker := &fakeWorker{steps: []scriptedStep{
				{err: errors.New("connection refused")},
				{out: diligence.Outcome{Status: diligence.WireProcessing}},
				{err: errors.New("connection refused")},
				{out: diligence.Outcome{Status: diligence.WireCompleted, Result: diligence.Result{"summary": "ok"}}},
			}}
			ctrl := diligence.New("memo-1", worker,
				diligence.WithClock(clock),
				diligence.WithTransientFailureBudget(2),
				diligence.WithOnDone(func(s diligence.Snapshot) { done <- s }),
			)

			So(ctrl.Trigger(ctx), ShouldBeNil)
			for i := 0; i < 4; i++ {
				clock.fire()
			}

			Convey("Then the failure count resets and the run completes", func() {
				snap, ok := waitDone(done)
				So(ok, ShouldBeTrue)
				So(snap.State, ShouldEqual, diligence.Completed)
				So(snap.Polls, ShouldEqual, 4)
			})
		})
	})
}

func TestController_Reset(t *testing.T) {
	Convey("Given a controller mid-run", t, func() {
		ctx := context.Background()
		clock := newManualClock()
		worker := &fakeWorker{}
		ctrl := diligence.New("memo-1", worker, diligence.WithClock(clock))

		So(ctrl.Trigger(ctx), ShouldBeNil)
		So(ctrl.State().State, ShouldEqual, diligence.Processing)

		Convey("When resetting", func() {
			ctrl.Reset()

			Convey("Then the controller returns to a clean idle state", func() {
				snap := ctrl.State()
				So(snap.State, ShouldEqual, diligence.Idle)
				So(snap.Result, ShouldBeNil)
				So(snap.Err, ShouldBeNil)
				So(snap.Polls, ShouldEqual, 0)
			})

			Convey("Then a new run can start immediately", func() {
				So(ctrl.Trigger(ctx), ShouldBeNil)
				So(ctrl.State().State, ShouldEqual, diligence.Processing)
				So(worker.triggerCount(), ShouldEqual, 2)
				ctrl.Reset()
			})
		})
	})
}
