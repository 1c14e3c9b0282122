package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskStatus describes the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Terminal reports whether no further transitions are allowed from s.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	}
	return false
}

// ConstraintKind identifies what a task constraint limits.
type ConstraintKind string

const (
	ConstraintMaxIterations ConstraintKind = "max_iterations"
	ConstraintTimeout       ConstraintKind = "timeout"
	ConstraintCustom        ConstraintKind = "custom"
)

// Constraint is a typed limit attached to a task.
type Constraint struct {
	Kind  ConstraintKind
	Name  string
	Value any
}

// Task represents a first-class unit of work handed to an agent.
type Task struct {
	ID          string
	Description string
	Context     map[string]any
	Constraints []Constraint
	Status      TaskStatus
	Result      any
	Error       string
	CreatedAt   time.Time
	StartedAt   time.Time
	FinishedAt  time.Time
}

// NewTask creates a pending task with a generated ID.
func NewTask(description string) *Task {
	return &Task{
		ID:          uuid.NewString(),
		Description: description,
		Context:     make(map[string]any),
		Status:      TaskStatusPending,
		CreatedAt:   time.Now().UTC(),
	}
}

// WithContext sets a context value on the task and returns it for chaining.
func (t *Task) WithContext(key string, value any) *Task {
	if t.Context == nil {
		t.Context = make(map[string]any)
	}
	t.Context[key] = value
	return t
}

// WithConstraint appends a constraint the executing agent must honor.
func (t *Task) WithConstraint(c Constraint) *Task {
	t.Constraints = append(t.Constraints, c)
	return t
}

// Start moves the task from pending to running.
func (t *Task) Start() error {
	if t.Status != TaskStatusPending {
		return t.transitionError(TaskStatusRunning)
	}
	t.Status = TaskStatusRunning
	t.StartedAt = time.Now().UTC()
	return nil
}

// Complete finishes the task with a result.
func (t *Task) Complete(result any) error {
	if t.Status.Terminal() {
		return t.transitionError(TaskStatusCompleted)
	}
	t.Status = TaskStatusCompleted
	t.Result = result
	t.FinishedAt = time.Now().UTC()
	return nil
}

// Fail finishes the task with an error message.
func (t *Task) Fail(msg string) error {
	if t.Status.Terminal() {
		return t.transitionError(TaskStatusFailed)
	}
	t.Status = TaskStatusFailed
	t.Error = msg
	t.FinishedAt = time.Now().UTC()
	return nil
}

// Cancel finishes the task without a result.
func (t *Task) Cancel() error {
	if t.Status.Terminal() {
		return t.transitionError(TaskStatusCancelled)
	}
	t.Status = TaskStatusCancelled
	t.FinishedAt = time.Now().UTC()
	return nil
}

func (t *Task) transitionError(to TaskStatus) error {
	return fmt.Errorf("task %s: invalid transition %s -> %s", t.ID, t.Status, to)
}
