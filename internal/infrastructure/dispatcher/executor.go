package dispatcher

import (
	"context"
	"fmt"

	"github.com/resell/backend/internal/domain/marketplace"
	"github.com/resell/backend/internal/domain/sync"
)

// TaskExecutor carries out one task of a given type. Implementations must
// honor ctx cancellation and deadlines; the dispatcher bounds every call
// with the action's timeout.
type TaskExecutor interface {
	// Type identifies the task type this executor handles
	Type() sync.TaskType

	// Execute performs the task and returns the opaque result body
	Execute(ctx context.Context, job *sync.Job, task *sync.Task) ([]byte, error)
}

// ExecutorSet routes tasks to the executor registered for their type.
type ExecutorSet struct {
	executors map[sync.TaskType]TaskExecutor
}

// NewExecutorSet builds a set from the given executors. Registering two
// executors for the same type fails.
func NewExecutorSet(executors ...TaskExecutor) (*ExecutorSet, error) {
	set := &ExecutorSet{executors: make(map[sync.TaskType]TaskExecutor, len(executors))}
	for _, e := range executors {
		if _, dup := set.executors[e.Type()]; dup {
			return nil, fmt.Errorf("duplicate executor for task type %s: %w", e.Type(), ErrInvalidConfig)
		}
		set.executors[e.Type()] = e
	}
	return set, nil
}

// For returns the executor for the given task type.
func (s *ExecutorSet) For(taskType sync.TaskType) (TaskExecutor, error) {
	e, ok := s.executors[taskType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoExecutor, taskType)
	}
	return e, nil
}

// ---------------------------------------------------------------------------
// AdapterExecutor
// ---------------------------------------------------------------------------

// AdapterExecutor executes direct HTTP tasks through the marketplace
// adapter registry.
type AdapterExecutor struct {
	registry marketplace.Registry
}

// NewAdapterExecutor creates an executor backed by the adapter registry.
func NewAdapterExecutor(registry marketplace.Registry) *AdapterExecutor {
	return &AdapterExecutor{registry: registry}
}

// Type returns the task type this executor handles
func (e *AdapterExecutor) Type() sync.TaskType {
	return sync.TaskTypeDirectHTTP
}

// Execute resolves the job's marketplace adapter and performs the call.
func (e *AdapterExecutor) Execute(ctx context.Context, job *sync.Job, task *sync.Task) ([]byte, error) {
	adapter, err := e.registry.Adapter(job.Marketplace)
	if err != nil {
		return nil, err
	}

	resp, err := adapter.Execute(ctx, marketplace.Request{
		TenantID:  job.TenantID,
		Action:    job.ActionCode.String(),
		ProductID: job.ProductID,
		Payload:   task.Payload,
	})
	if err != nil {
		return nil, err
	}

	return resp.Body, nil
}

var _ TaskExecutor = (*AdapterExecutor)(nil)

// ---------------------------------------------------------------------------
// PayloadBuilder
// ---------------------------------------------------------------------------

// PayloadBuilder produces the outbound request body for a job before its
// task is created. Builders surface category mapping and product validation
// failures, which the dispatcher records as permanent.
type PayloadBuilder interface {
	Build(ctx context.Context, job *sync.Job) ([]byte, error)
}

// PayloadBuilderFunc adapts a function to the PayloadBuilder interface.
type PayloadBuilderFunc func(ctx context.Context, job *sync.Job) ([]byte, error)

// Build calls f.
func (f PayloadBuilderFunc) Build(ctx context.Context, job *sync.Job) ([]byte, error) {
	return f(ctx, job)
}

// NopPayloadBuilder returns an empty body for every job. Suitable for
// actions whose adapters derive the request from the job itself.
func NopPayloadBuilder() PayloadBuilder {
	return PayloadBuilderFunc(func(ctx context.Context, job *sync.Job) ([]byte, error) {
		return nil, nil
	})
}
