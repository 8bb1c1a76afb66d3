package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"similarity_engine/internal/logger"
)

// ErrTaskNotFound is returned when no task carries the requested ID.
var ErrTaskNotFound = errors.New("task not found")

// Status represents the status of an asynchronous task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Task represents an asynchronous task.
type Task struct {
	ID         string     `json:"id"`
	Status     Status     `json:"status"`
	Result     any        `json:"result,omitempty"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Func is the body of a task. Its result becomes Task.Result.
type Func func(ctx context.Context) (any, error)

// Manager manages asynchronous tasks using an in-memory store.
type Manager struct {
	tasks map[string]*Task
	mu    sync.RWMutex
	wg    sync.WaitGroup

	// base is cancelled by Shutdown and stops every running task.
	base   context.Context
	cancel context.CancelFunc
}

// NewManager creates a new task manager.
func NewManager() *Manager {
	base, cancel := context.WithCancel(context.Background())
	return &Manager{
		tasks:  make(map[string]*Task),
		base:   base,
		cancel: cancel,
	}
}

// NewTask creates a new task, stores it, and returns a snapshot of it.
func (m *Manager) NewTask() Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	task := &Task{
		ID:        uuid.New().String(),
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
	m.tasks[task.ID] = task
	return *task
}

// Run creates a task and executes fn in its own goroutine.
// fn outlives ctx (only its values are inherited) and is cancelled by Shutdown.
func (m *Manager) Run(ctx context.Context, fn Func) Task {
	t := m.NewTask()
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(m.base, cancel)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer stop()
		defer cancel()
		_ = m.UpdateStatus(t.ID, StatusProcessing)

		result, err := fn(runCtx)
		if err != nil {
			logger.Warn("task %s failed: %v", t.ID, err)
			_ = m.SetError(t.ID, err)
			return
		}
		_ = m.SetResult(t.ID, result)
	}()
	return t
}

// Wait blocks until every task started by Run has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Shutdown cancels running tasks and waits for them until ctx is done.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("tasks still running: %w", ctx.Err())
	}
}

// GetTask retrieves a snapshot of a task by its ID.
func (m *Manager) GetTask(id string) (Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	task, exists := m.tasks[id]
	if !exists {
		return Task{}, fmt.Errorf("%w: '%s'", ErrTaskNotFound, id)
	}
	return *task, nil
}

// UpdateStatus updates the status of a task.
func (m *Manager) UpdateStatus(id string, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, exists := m.tasks[id]
	if !exists {
		return fmt.Errorf("%w: '%s'", ErrTaskNotFound, id)
	}
	task.Status = status
	return nil
}

// SetResult sets the successful result of a task and marks it as completed.
func (m *Manager) SetResult(id string, result any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, exists := m.tasks[id]
	if !exists {
		return fmt.Errorf("%w: '%s'", ErrTaskNotFound, id)
	}
	now := time.Now()
	task.Result = result
	task.Status = StatusCompleted
	task.Error = ""
	task.FinishedAt = &now
	return nil
}

// SetError sets the error message for a failed task and marks it as failed.
func (m *Manager) SetError(id string, err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, exists := m.tasks[id]
	if !exists {
		return fmt.Errorf("%w: '%s'", ErrTaskNotFound, id)
	}
	now := time.Now()
	task.Error = err.Error()
	task.Status = StatusFailed
	task.FinishedAt = &now
	return nil
}
