package diligence

import "errors"

// Sentinel kinds for diligence errors.
var (
	// ErrNoMemoID means a trigger was attempted before the record had a
	// first-stage memo. Contract error: surfaced synchronously, no network
	// call is made.
	ErrNoMemoID = errors.New("no memo id available")

	// ErrAlreadyRunning means a trigger arrived while a run was in flight
	// for the same memo id.
	ErrAlreadyRunning = errors.New("diligence already running")

	// ErrTriggerFailed wraps outbound trigger transport failures and
	// worker rejections. The controller stays Idle; retryable.
	ErrTriggerFailed = errors.New("trigger failed")

	// ErrPollFailed wraps transient status read failures.
	ErrPollFailed = errors.New("poll failed")

	// ErrPollBudgetExceeded means the run did not terminate within the
	// configured poll budget.
	ErrPollBudgetExceeded = errors.New("poll budget exceeded")

	// ErrWorkerFailed wraps a failure the worker itself reported. Terminal;
	// never retried automatically.
	ErrWorkerFailed = errors.New("worker reported failure")
)
