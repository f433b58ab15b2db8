package sync

import "errors"

var (
	// Action catalog errors
	ErrInvalidActionCode   = errors.New("sync: invalid action code")
	ErrInvalidPriority     = errors.New("sync: priority must be between 1 and 4")
	ErrInvalidActionConfig = errors.New("sync: invalid action type configuration")
	ErrActionTypeNotFound  = errors.New("sync: action type not found")

	// Job errors
	ErrInvalidTenantID         = errors.New("sync: invalid tenant ID")
	ErrInvalidMarketplace      = errors.New("sync: invalid marketplace code")
	ErrJobNotFound             = errors.New("sync: job not found")
	ErrJobNotPending           = errors.New("sync: job is not pending")
	ErrJobNotPaused            = errors.New("sync: job is not paused")
	ErrJobTerminal             = errors.New("sync: job is in a terminal state")
	ErrJobAlreadyClaimed       = errors.New("sync: job already claimed by another worker")
	ErrJobExpired              = errors.New("sync: job expired before it was claimed")
	ErrInvalidJobTransition    = errors.New("sync: invalid job status transition")
	ErrDuplicateIdempotencyKey = errors.New("sync: idempotency key already used")

	// Task errors
	ErrTaskNotFound          = errors.New("sync: task not found")
	ErrInvalidTaskType       = errors.New("sync: invalid task type")
	ErrTaskTerminal          = errors.New("sync: task is in a terminal state")
	ErrInvalidTaskTransition = errors.New("sync: invalid task status transition")

	// Batch errors
	ErrBatchNotFound   = errors.New("sync: batch not found")
	ErrBatchTerminal   = errors.New("sync: batch is in a terminal state")
	ErrBatchEmpty      = errors.New("sync: batch must contain at least one product")
	ErrCounterOverflow = errors.New("sync: batch counters exceed total count")
)
