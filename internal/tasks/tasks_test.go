// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package tasks

import (
	"errors"
	"testing"
)

func TestRegistry_AddAndGetActive(t *testing.T) {
	registry := NewRegistry()

	kind := ProjectDeletionKind("alice")
	task := registry.Add(kind)
	if task.State != TaskRunning {
		t.Errorf("expected new task to be running, got %s", task.State)
	}

	if got := registry.GetActiveByKind(kind); got == nil || got.Name != task.Name {
		t.Errorf("expected to find active task, got %v", got)
	}
	if got := registry.GetActiveByKind(ProjectDeletionKind("bob")); got != nil {
		t.Errorf("expected no active task for other kind, got %v", got)
	}
}

func TestRegistry_Complete(t *testing.T) {
	registry := NewRegistry()
	kind := ProjectDeletionKind("alice")

	task := registry.Add(kind)
	registry.Complete(task.Name, nil)
	if got := registry.GetActiveByKind(kind); got != nil {
		t.Errorf("expected no active task after completion, got %v", got)
	}

	task = registry.Add(kind)
	registry.Complete(task.Name, errors.New("boom"))
	if got := registry.GetActiveByKind(kind); got != nil {
		t.Errorf("expected no active task after failure, got %v", got)
	}

	// Completing an unknown task is a no-op.
	registry.Complete("no-such-task", nil)
}

func TestRegistry_ProjectDeletionActive(t *testing.T) {
	registry := NewRegistry()

	if registry.ProjectDeletionActive("alice") {
		t.Error("expected no deletion to be active")
	}

	task := registry.Add(ProjectDeletionWrapperKind("alice"))
	if !registry.ProjectDeletionActive("alice") {
		t.Error("expected deletion to be active for wrapper kind")
	}
	if registry.ProjectDeletionActive("bob") {
		t.Error("expected no deletion to be active for other project")
	}

	registry.Complete(task.Name, nil)
	if registry.ProjectDeletionActive("alice") {
		t.Error("expected deletion to be inactive after completion")
	}

	registry.Add(ProjectDeletionKind("alice"))
	if !registry.ProjectDeletionActive("alice") {
		t.Error("expected deletion to be active for plain kind")
	}
}
