package sync

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTask(t *testing.T) *Task {
	t.Helper()
	jobID := uuid.New()
	task, err := NewTask(uuid.New(), &jobID, nil, TaskTypeDirectHTTP, []byte(`{"title":"jacket"}`), 3)
	require.NoError(t, err)
	return task
}

func TestNewTask(t *testing.T) {
	jobID := uuid.New()
	productID := uuid.New()

	task, err := NewTask(uuid.New(), &jobID, &productID, TaskTypePluginHTTP, []byte("{}"), 2)

	require.NoError(t, err)
	assert.Equal(t, TaskStatusPending, task.Status)
	assert.Equal(t, TaskTypePluginHTTP, task.TaskType)
	assert.Equal(t, &jobID, task.JobID)
	assert.Equal(t, 2, task.MaxRetries)
	assert.Equal(t, 0, task.RetryCount)
}

func TestNewTask_InvalidType(t *testing.T) {
	_, err := NewTask(uuid.New(), nil, nil, TaskType("grpc"), nil, 0)
	assert.ErrorIs(t, err, ErrInvalidTaskType)
}

func TestTask_SuccessFlow(t *testing.T) {
	task := newTestTask(t)

	require.NoError(t, task.Start())
	assert.Equal(t, TaskStatusProcessing, task.Status)

	require.NoError(t, task.Succeed([]byte(`{"listing_id":"9"}`)))
	assert.Equal(t, TaskStatusSuccess, task.Status)
	assert.NotNil(t, task.CompletedAt)
}

func TestTask_FailAndTimeoutAreDistinct(t *testing.T) {
	task := newTestTask(t)
	require.NoError(t, task.Start())
	require.NoError(t, task.Fail("rejected"))
	assert.Equal(t, TaskStatusFailed, task.Status)

	task = newTestTask(t)
	require.NoError(t, task.Start())
	require.NoError(t, task.Timeout("deadline exceeded"))
	assert.Equal(t, TaskStatusTimeout, task.Status)
	assert.Equal(t, "deadline exceeded", task.ErrorMessage)
}

func TestTask_Cancel(t *testing.T) {
	task := newTestTask(t)
	require.NoError(t, task.Cancel())
	assert.Equal(t, TaskStatusCancelled, task.Status)
}

func TestTask_ImmutableOnceTerminal(t *testing.T) {
	task := newTestTask(t)
	require.NoError(t, task.Start())
	require.NoError(t, task.Succeed(nil))

	assert.ErrorIs(t, task.Start(), ErrInvalidTaskTransition)
	assert.ErrorIs(t, task.Fail("x"), ErrInvalidTaskTransition)
	assert.ErrorIs(t, task.Timeout("x"), ErrInvalidTaskTransition)
	assert.ErrorIs(t, task.Cancel(), ErrTaskTerminal)
	assert.Equal(t, TaskStatusSuccess, task.Status)
}

func TestTaskType_IsValid(t *testing.T) {
	for _, tt := range []TaskType{TaskTypePluginHTTP, TaskTypeDirectHTTP, TaskTypeDBOperation, TaskTypeFileOperation} {
		assert.True(t, tt.IsValid())
	}
	assert.False(t, TaskType("rpc").IsValid())
}
