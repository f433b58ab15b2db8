package sync

import (
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// TaskType
// ---------------------------------------------------------------------------

// TaskType selects the execution strategy for a task.
type TaskType string

const (
	// TaskTypePluginHTTP routes the call through a marketplace plugin
	TaskTypePluginHTTP TaskType = "plugin_http"
	// TaskTypeDirectHTTP calls the marketplace API directly
	TaskTypeDirectHTTP TaskType = "direct_http"
	// TaskTypeDBOperation performs a local database operation
	TaskTypeDBOperation TaskType = "db_operation"
	// TaskTypeFileOperation performs a local file operation
	TaskTypeFileOperation TaskType = "file_operation"
)

// IsValid returns true if the task type is valid
func (t TaskType) IsValid() bool {
	switch t {
	case TaskTypePluginHTTP, TaskTypeDirectHTTP, TaskTypeDBOperation, TaskTypeFileOperation:
		return true
	default:
		return false
	}
}

// String returns the string representation of TaskType
func (t TaskType) String() string {
	return string(t)
}

// ---------------------------------------------------------------------------
// TaskStatus
// ---------------------------------------------------------------------------

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusSuccess    TaskStatus = "success"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusTimeout    TaskStatus = "timeout"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// IsValid returns true if the status is valid
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusProcessing, TaskStatusSuccess,
		TaskStatusFailed, TaskStatusTimeout, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// String returns the string representation of TaskStatus
func (s TaskStatus) String() string {
	return string(s)
}

// IsTerminal returns true if the status is terminal. Tasks are immutable once
// terminal.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusSuccess, TaskStatusFailed, TaskStatusTimeout, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// ---------------------------------------------------------------------------
// Task
// ---------------------------------------------------------------------------

// Task is one concrete execution attempt performed to carry out a job. A
// task does not retry itself; retrying is expressed as the parent job
// re-entering pending and, on re-claim, creating a fresh task.
type Task struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	// JobID links the task to its parent job
	JobID     *uuid.UUID
	ProductID *uuid.UUID
	TaskType  TaskType
	Status    TaskStatus
	// Payload is the opaque request data handed to the executor
	Payload []byte
	// Result is the opaque response data on success
	Result       []byte
	ErrorMessage string
	// RetryCount and MaxRetries are independent of the parent job's counters
	RetryCount  int
	MaxRetries  int
	StartedAt   *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewTask creates a pending task for a job.
func NewTask(tenantID uuid.UUID, jobID *uuid.UUID, productID *uuid.UUID, taskType TaskType, payload []byte, maxRetries int) (*Task, error) {
	if tenantID == uuid.Nil {
		return nil, ErrInvalidTenantID
	}
	if !taskType.IsValid() {
		return nil, ErrInvalidTaskType
	}
	now := time.Now()
	return &Task{
		ID:         uuid.New(),
		TenantID:   tenantID,
		JobID:      jobID,
		ProductID:  productID,
		TaskType:   taskType,
		Status:     TaskStatusPending,
		Payload:    payload,
		MaxRetries: maxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// IsTerminal returns true once the task reached a terminal state.
func (t *Task) IsTerminal() bool {
	return t.Status.IsTerminal()
}

// Start marks the task as processing.
func (t *Task) Start() error {
	if t.Status != TaskStatusPending {
		return ErrInvalidTaskTransition
	}
	now := time.Now()
	t.Status = TaskStatusProcessing
	t.StartedAt = &now
	t.UpdatedAt = now
	return nil
}

// Succeed records the result and marks the task successful.
func (t *Task) Succeed(result []byte) error {
	if t.Status != TaskStatusProcessing {
		return ErrInvalidTaskTransition
	}
	now := time.Now()
	t.Status = TaskStatusSuccess
	t.Result = result
	t.CompletedAt = &now
	t.UpdatedAt = now
	return nil
}

// Fail marks the task as failed with an error message.
func (t *Task) Fail(message string) error {
	return t.finish(TaskStatusFailed, message)
}

// Timeout marks the task as timed out. Distinct from Fail so callers can
// tell an exceeded bound from an explicit adapter error.
func (t *Task) Timeout(message string) error {
	return t.finish(TaskStatusTimeout, message)
}

// Cancel marks a pending or processing task as cancelled.
func (t *Task) Cancel() error {
	if t.IsTerminal() {
		return ErrTaskTerminal
	}
	now := time.Now()
	t.Status = TaskStatusCancelled
	t.CompletedAt = &now
	t.UpdatedAt = now
	return nil
}

func (t *Task) finish(status TaskStatus, message string) error {
	if t.Status != TaskStatusProcessing {
		return ErrInvalidTaskTransition
	}
	now := time.Now()
	t.Status = status
	t.ErrorMessage = message
	t.CompletedAt = &now
	t.UpdatedAt = now
	return nil
}
