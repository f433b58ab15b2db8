package dispatcher

import "errors"

var (
	// ErrDispatcherNotRunning is returned when interacting with a stopped dispatcher
	ErrDispatcherNotRunning = errors.New("dispatcher is not running")

	// ErrQueueFull is returned when the dispatch queue cannot accept more candidates
	ErrQueueFull = errors.New("dispatch queue is full")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid dispatcher configuration")

	// ErrNoExecutor is returned when no executor is registered for a task type
	ErrNoExecutor = errors.New("no executor registered for task type")
)
