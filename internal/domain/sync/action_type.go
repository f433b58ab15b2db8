package sync

import (
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// ActionCode
// ---------------------------------------------------------------------------

// ActionCode identifies a class of marketplace action.
type ActionCode string

const (
	// ActionCodePublish publishes a product listing to a marketplace
	ActionCodePublish ActionCode = "publish"
	// ActionCodeUpdate updates an existing marketplace listing
	ActionCodeUpdate ActionCode = "update"
	// ActionCodeDelete removes a listing from a marketplace
	ActionCodeDelete ActionCode = "delete"
	// ActionCodeSync reconciles local state with the marketplace
	ActionCodeSync ActionCode = "sync"
	// ActionCodeOrders pulls order data from a marketplace
	ActionCodeOrders ActionCode = "orders"
	// ActionCodeMessage sends or fetches buyer messages
	ActionCodeMessage ActionCode = "message"
)

// IsValid returns true if the action code is valid
func (c ActionCode) IsValid() bool {
	switch c {
	case ActionCodePublish, ActionCodeUpdate, ActionCodeDelete,
		ActionCodeSync, ActionCodeOrders, ActionCodeMessage:
		return true
	default:
		return false
	}
}

// String returns the string representation of ActionCode
func (c ActionCode) String() string {
	return string(c)
}

// ---------------------------------------------------------------------------
// ActionType
// ---------------------------------------------------------------------------

// Priority classes. Lower value means more urgent.
const (
	PriorityCritical = 1
	PriorityHigh     = 2
	PriorityNormal   = 3
	PriorityLow      = 4
)

// ActionType is the static configuration for a class of marketplace action.
// Rows are seeded once and read-only at runtime; the dispatcher consults them
// for priority, rate limiting and retry/timeout ceilings.
type ActionType struct {
	ID uuid.UUID
	// Code is the unique action key
	Code ActionCode
	// Priority is the default priority class for jobs of this action (1..4)
	Priority int
	// IsBatch indicates the action fans out over many products
	IsBatch bool
	// RateLimitMs is the minimum spacing between consecutive calls of this
	// action against one marketplace endpoint
	RateLimitMs int
	// MaxRetries is the default retry ceiling for jobs of this action
	MaxRetries int
	// TimeoutSeconds bounds a single task execution
	TimeoutSeconds int
}

// NewActionType creates an action type entry with validated fields.
func NewActionType(code ActionCode, priority int, isBatch bool, rateLimitMs, maxRetries, timeoutSeconds int) (*ActionType, error) {
	if !code.IsValid() {
		return nil, ErrInvalidActionCode
	}
	if priority < PriorityCritical || priority > PriorityLow {
		return nil, ErrInvalidPriority
	}
	if rateLimitMs < 0 || maxRetries < 0 || timeoutSeconds <= 0 {
		return nil, ErrInvalidActionConfig
	}
	return &ActionType{
		ID:             uuid.New(),
		Code:           code,
		Priority:       priority,
		IsBatch:        isBatch,
		RateLimitMs:    rateLimitMs,
		MaxRetries:     maxRetries,
		TimeoutSeconds: timeoutSeconds,
	}, nil
}

// RateLimit returns the minimum inter-call spacing as a duration.
func (a *ActionType) RateLimit() time.Duration {
	return time.Duration(a.RateLimitMs) * time.Millisecond
}

// Timeout returns the per-task execution bound as a duration.
func (a *ActionType) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// DefaultActionTypes returns the seed catalog used when the store is empty.
func DefaultActionTypes() []*ActionType {
	mk := func(code ActionCode, priority int, isBatch bool, rateLimitMs, maxRetries, timeoutSeconds int) *ActionType {
		a, _ := NewActionType(code, priority, isBatch, rateLimitMs, maxRetries, timeoutSeconds)
		return a
	}
	return []*ActionType{
		mk(ActionCodePublish, PriorityHigh, true, 2000, 3, 60),
		mk(ActionCodeUpdate, PriorityNormal, true, 1500, 3, 60),
		mk(ActionCodeDelete, PriorityHigh, true, 1000, 3, 30),
		mk(ActionCodeSync, PriorityLow, true, 3000, 2, 120),
		mk(ActionCodeOrders, PriorityCritical, false, 5000, 3, 120),
		mk(ActionCodeMessage, PriorityCritical, false, 1000, 3, 30),
	}
}
