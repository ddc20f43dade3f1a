// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package tasks

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Lifecycle state of a background task.
type TaskState string

const (
	TaskRunning   TaskState = "running"
	TaskSucceeded TaskState = "succeeded"
	TaskFailed    TaskState = "failed"
)

// Kinds of background tasks known to the registry. Kinds are
// parameterized by project name so that in-flight work on a specific
// project can be looked up by sync and delete paths.
func ProjectDeletionKind(name string) string {
	return fmt.Sprintf("project_deletion.%s", name)
}

func ProjectDeletionWrapperKind(name string) string {
	return fmt.Sprintf("project_deletion_wrapper.%s", name)
}

// A named, kind-tagged background task.
type Task struct {
	Name    string
	Kind    string
	State   TaskState
	Created time.Time
	Updated time.Time
	Err     string
}

func (t *Task) Active() bool {
	return t.State == TaskRunning
}

// In-memory registry of background tasks running inside this process.
// Tasks are not persisted, a restart forgets all of them.
type Registry struct {
	lock  sync.RWMutex
	tasks map[string]*Task
	// Monotonically increasing counter used to generate task names.
	counter int
}

func NewRegistry() *Registry {
	return &Registry{tasks: map[string]*Task{}}
}

// Register a new running task of the given kind.
func (r *Registry) Add(kind string) *Task {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.counter++
	now := time.Now().UTC()
	task := &Task{
		Name:    fmt.Sprintf("%s-%d", kind, r.counter),
		Kind:    kind,
		State:   TaskRunning,
		Created: now,
		Updated: now,
	}
	r.tasks[task.Name] = task
	slog.Info("registered background task", "name", task.Name, "kind", kind)
	return task
}

// Mark a task as finished, with its terminal state derived from err.
func (r *Registry) Complete(name string, err error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	task, ok := r.tasks[name]
	if !ok {
		return
	}
	task.Updated = time.Now().UTC()
	if err != nil {
		task.State = TaskFailed
		task.Err = err.Error()
		slog.Error("background task failed", "name", name, "error", err)
		return
	}
	task.State = TaskSucceeded
}

// Get the currently active task of the given kind, or nil if there is
// none. Finished tasks are not returned.
func (r *Registry) GetActiveByKind(kind string) *Task {
	r.lock.RLock()
	defer r.lock.RUnlock()
	for _, task := range r.tasks {
		if task.Kind == kind && task.Active() {
			return task
		}
	}
	return nil
}

// Check whether a deletion of the given project is currently in flight,
// under either of the deletion task kinds.
func (r *Registry) ProjectDeletionActive(name string) bool {
	for _, kind := range []string{
		ProjectDeletionWrapperKind(name),
		ProjectDeletionKind(name),
	} {
		if r.GetActiveByKind(kind) != nil {
			return true
		}
	}
	return false
}
