// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package project_test

import (
	"errors"
	"testing"
	"time"

	"github.com/cobaltcore-dev/mirror/internal/project"
	testlibDB "github.com/cobaltcore-dev/mirror/testlib/db"
)

func setupStore(t *testing.T) (*project.Store, testlibDB.DBEnv) {
	dbEnv := testlibDB.SetupDBEnv(t)
	store := project.NewStore(*dbEnv.DB)
	if err := store.Init(); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	return store, dbEnv
}

func newProject(name string, state project.State) *project.Project {
	return &project.Project{
		Metadata: project.Metadata{
			Name:    name,
			Owner:   "someone",
			Labels:  map[string]string{"team": "mlops"},
			Updated: time.Now().UTC(),
		},
		Spec:   project.Spec{"description": "a project"},
		Status: project.Status{State: state},
	}
}

func TestStore_CreateAndGet(t *testing.T) {
	store, dbEnv := setupStore(t)
	defer dbEnv.Close()

	p := newProject("alice", project.StateOnline)
	if err := store.CreateProject(dbEnv.DbMap, p); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	got, err := store.GetProject(dbEnv.DbMap, "alice")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.Metadata.Name != "alice" {
		t.Errorf("expected name alice, got %s", got.Metadata.Name)
	}
	if got.Status.State != project.StateOnline {
		t.Errorf("expected state online, got %s", got.Status.State)
	}
	if got.Metadata.Labels["team"] != "mlops" {
		t.Errorf("expected labels to round-trip, got %v", got.Metadata.Labels)
	}
	if got.Spec["description"] != "a project" {
		t.Errorf("expected spec to round-trip, got %v", got.Spec)
	}
	if got.Metadata.Created.IsZero() {
		t.Error("expected created timestamp to be set")
	}
}

func TestStore_CreateDuplicate(t *testing.T) {
	store, dbEnv := setupStore(t)
	defer dbEnv.Close()

	if err := store.CreateProject(dbEnv.DbMap, newProject("alice", project.StateOnline)); err != nil {
		t.Fatal(err)
	}
	err := store.CreateProject(dbEnv.DbMap, newProject("alice", project.StateOnline))
	if !errors.Is(err, project.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestStore_GetNotFound(t *testing.T) {
	store, dbEnv := setupStore(t)
	defer dbEnv.Close()

	_, err := store.GetProject(dbEnv.DbMap, "nope")
	if !errors.Is(err, project.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_StoreReplaces(t *testing.T) {
	store, dbEnv := setupStore(t)
	defer dbEnv.Close()

	if err := store.CreateProject(dbEnv.DbMap, newProject("alice", project.StateOnline)); err != nil {
		t.Fatal(err)
	}

	replacement := newProject("alice", project.StateArchived)
	replacement.Spec = project.Spec{"description": "replaced"}
	if err := store.StoreProject(dbEnv.DbMap, "alice", replacement); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	got, err := store.GetProject(dbEnv.DbMap, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status.State != project.StateArchived {
		t.Errorf("expected state archived, got %s", got.Status.State)
	}
	if got.Spec["description"] != "replaced" {
		t.Errorf("expected spec to be replaced, got %v", got.Spec)
	}
}

func TestStore_Patch(t *testing.T) {
	store, dbEnv := setupStore(t)
	defer dbEnv.Close()

	if err := store.CreateProject(dbEnv.DbMap, newProject("alice", project.StateOnline)); err != nil {
		t.Fatal(err)
	}

	patch := map[string]any{
		"spec": map[string]any{"goal": "world domination"},
	}
	patched, err := store.PatchProject(dbEnv.DbMap, "alice", patch, project.MergeReplace)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if patched.Spec["goal"] != "world domination" {
		t.Errorf("expected patched spec value, got %v", patched.Spec)
	}
	if patched.Spec["description"] != "a project" {
		t.Errorf("expected untouched spec value to survive, got %v", patched.Spec)
	}

	got, err := store.GetProject(dbEnv.DbMap, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if got.Spec["goal"] != "world domination" {
		t.Errorf("expected patch to be persisted, got %v", got.Spec)
	}
}

func TestStore_Delete(t *testing.T) {
	store, dbEnv := setupStore(t)
	defer dbEnv.Close()

	if err := store.CreateProject(dbEnv.DbMap, newProject("alice", project.StateOnline)); err != nil {
		t.Fatal(err)
	}
	if err := store.DeleteProject(dbEnv.DbMap, "alice", project.DeletionCascading); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, err := store.GetProject(dbEnv.DbMap, "alice"); !errors.Is(err, project.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.DeleteProject(dbEnv.DbMap, "alice", project.DeletionCascading); !errors.Is(err, project.ErrNotFound) {
		t.Errorf("expected ErrNotFound for second delete, got %v", err)
	}
}

func TestStore_ListFilters(t *testing.T) {
	store, dbEnv := setupStore(t)
	defer dbEnv.Close()

	alice := newProject("alice", project.StateOnline)
	bob := newProject("bob", project.StateArchived)
	bob.Metadata.Owner = "someone-else"
	bob.Metadata.Labels = map[string]string{"team": "infra"}
	for _, p := range []*project.Project{alice, bob} {
		if err := store.CreateProject(dbEnv.DbMap, p); err != nil {
			t.Fatal(err)
		}
	}

	all, err := store.ListProjects(dbEnv.DbMap, project.ListFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 projects, got %d", len(all))
	}

	byOwner, err := store.ListProjects(dbEnv.DbMap, project.ListFilter{Owner: "someone-else"})
	if err != nil {
		t.Fatal(err)
	}
	if len(byOwner) != 1 || byOwner[0].Metadata.Name != "bob" {
		t.Errorf("expected only bob for owner filter, got %v", byOwner)
	}

	byState, err := store.ListProjects(dbEnv.DbMap, project.ListFilter{State: project.StateOnline})
	if err != nil {
		t.Fatal(err)
	}
	if len(byState) != 1 || byState[0].Metadata.Name != "alice" {
		t.Errorf("expected only alice for state filter, got %v", byState)
	}

	byLabel, err := store.ListProjects(dbEnv.DbMap, project.ListFilter{Labels: []string{"team=mlops"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(byLabel) != 1 || byLabel[0].Metadata.Name != "alice" {
		t.Errorf("expected only alice for label filter, got %v", byLabel)
	}

	byName, err := store.ListProjects(dbEnv.DbMap, project.ListFilter{Names: []string{"bob"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(byName) != 1 || byName[0].Metadata.Name != "bob" {
		t.Errorf("expected only bob for names filter, got %v", byName)
	}
}

func TestStore_Summaries(t *testing.T) {
	store, dbEnv := setupStore(t)
	defer dbEnv.Close()

	if err := store.CreateProject(dbEnv.DbMap, newProject("alice", project.StateOnline)); err != nil {
		t.Fatal(err)
	}

	summaries, err := store.ListProjectSummaries(dbEnv.DbMap, project.ListFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 1 || summaries[0].Name != "alice" || summaries[0].State != project.StateOnline {
		t.Errorf("unexpected summaries: %v", summaries)
	}

	summary, err := store.GetProjectSummary(dbEnv.DbMap, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if summary.Owner != "someone" {
		t.Errorf("expected owner someone, got %s", summary.Owner)
	}
}
