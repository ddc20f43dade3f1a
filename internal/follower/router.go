// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package follower

import (
	"context"
	"errors"

	"github.com/cobaltcore-dev/mirror/internal/project"
	"github.com/cobaltcore-dev/mirror/internal/tasks"
)

// Result of listing projects in one of the supported output formats.
// Exactly one of the fields matching the format is populated.
type ProjectList struct {
	Format project.Format
	// Populated for the full output format.
	Projects []project.Project
	// Populated for the name-only output format.
	Names []string
	// Populated for the leader output format.
	LeaderProjects []map[string]any
}

// CreateProject creates a project. Requests from the leader are written
// directly to the local store. All other requests are forwarded to the
// leader; the local row appears once the leader round trip (or a later
// sync run) has materialized it. The returned flag reports whether the
// creation keeps running in the background, in which case the returned
// project is nil and the caller must poll.
func (m *Member) CreateProject(
	ctx context.Context,
	sess project.Session,
	p *project.Project,
	projectsRole string,
	leaderSession string,
	waitForCompletion bool,
) (*project.Project, bool, error) {

	if err := project.Validate(p); err != nil {
		return nil, false, err
	}
	if m.requestFromLeader(projectsRole) {
		if err := m.Store.CreateProject(sess, p); err != nil {
			return nil, false, err
		}
		return p, false, nil
	}
	background, err := m.Leader.CreateProject(ctx, leaderSession, p, waitForCompletion)
	if err != nil {
		return nil, false, err
	}
	if background {
		return nil, true, nil
	}
	// The leader call may have outlived the caller's session, so read
	// the resulting row through a fresh one.
	created, err := m.Store.GetProject(m.freshSession(), p.Metadata.Name)
	if err != nil {
		return nil, false, err
	}
	return created, false, nil
}

// StoreProject upserts a project by name. Requests from the leader are
// written directly. Other requests are routed through the leader: a
// missing local row delegates to the create path, an existing one is
// updated on the leader and re-read locally.
func (m *Member) StoreProject(
	ctx context.Context,
	sess project.Session,
	name string,
	p *project.Project,
	projectsRole string,
	leaderSession string,
) (*project.Project, bool, error) {

	p.Metadata.Name = name
	if err := project.Validate(p); err != nil {
		return nil, false, err
	}
	if m.requestFromLeader(projectsRole) {
		if err := m.Store.StoreProject(sess, name, p); err != nil {
			return nil, false, err
		}
		return p, false, nil
	}
	_, err := m.Store.GetProject(sess, name)
	if errors.Is(err, project.ErrNotFound) {
		return m.CreateProject(ctx, sess, p, projectsRole, leaderSession, true)
	}
	if err != nil {
		return nil, false, err
	}
	if err := m.Leader.UpdateProject(ctx, leaderSession, name, p); err != nil {
		return nil, false, err
	}
	stored, err := m.Store.GetProject(m.freshSession(), name)
	if err != nil {
		return nil, false, err
	}
	return stored, false, nil
}

// PatchProject deep-merges a partial project document into the current
// record and routes the merged result through the store path. The
// leader never has a reason to send a partial document, so requests
// from the leader are rejected.
func (m *Member) PatchProject(
	ctx context.Context,
	sess project.Session,
	name string,
	patch map[string]any,
	strategy project.MergeStrategy,
	projectsRole string,
	leaderSession string,
) (*project.Project, bool, error) {

	if m.requestFromLeader(projectsRole) {
		return nil, false, project.ErrNotImplemented
	}
	current, err := m.Store.GetProject(sess, name)
	if err != nil {
		return nil, false, err
	}
	currentMap, err := current.ToMap()
	if err != nil {
		return nil, false, err
	}
	merged, err := project.FromMap(project.Merge(currentMap, patch, strategy))
	if err != nil {
		return nil, false, err
	}
	return m.StoreProject(ctx, sess, name, merged, projectsRole, leaderSession)
}

// DeleteProject deletes a project. Requests from the leader remove the
// local row directly. Other requests are forwarded to the leader; when
// the caller does not wait, the deletion runs in the background under a
// task that guards the project against resurrection by sync runs. The
// returned flag reports whether the deletion completed synchronously.
func (m *Member) DeleteProject(
	ctx context.Context,
	sess project.Session,
	name string,
	strategy project.DeletionStrategy,
	projectsRole string,
	leaderSession string,
	waitForCompletion bool,
) (bool, error) {

	if m.requestFromLeader(projectsRole) {
		return true, m.Store.DeleteProject(sess, name, strategy)
	}
	if waitForCompletion {
		return m.Leader.DeleteProject(ctx, leaderSession, name, strategy, true)
	}
	task := m.Tasks.Add(tasks.ProjectDeletionWrapperKind(name))
	go func() {
		// Detached from the request context on purpose, the deletion
		// should finish even after the caller has gone away.
		_, err := m.Leader.DeleteProject(context.Background(), leaderSession, name, strategy, true)
		m.Tasks.Complete(task.Name, err)
	}()
	return false, nil
}

// GetProject reads a project from the local store.
func (m *Member) GetProject(sess project.Session, name string) (*project.Project, error) {
	return m.Store.GetProject(sess, name)
}

// GetProjectOwner resolves a project's owner through the leader, which
// is authoritative for ownership and access keys.
func (m *Member) GetProjectOwner(ctx context.Context, name string) (*project.Owner, error) {
	return m.Leader.GetProjectOwner(ctx, m.Conf.LeaderAccessKey, name)
}

// ListProjects lists local projects in the requested output format.
// Leader format is only served to the leader itself.
func (m *Member) ListProjects(
	sess project.Session,
	filter project.ListFilter,
	format project.Format,
	projectsRole string,
) (*ProjectList, error) {

	if format == project.FormatLeader && !m.requestFromLeader(projectsRole) {
		return nil, project.ErrAccessDenied
	}
	projects, err := m.Store.ListProjects(sess, filter)
	if err != nil {
		return nil, err
	}
	list := &ProjectList{Format: format}
	switch format {
	case project.FormatNameOnly:
		list.Names = make([]string, 0, len(projects))
		for i := range projects {
			list.Names = append(list.Names, projects[i].Metadata.Name)
		}
	case project.FormatLeader:
		list.LeaderProjects = make([]map[string]any, 0, len(projects))
		for i := range projects {
			list.LeaderProjects = append(list.LeaderProjects, m.Leader.FormatAsLeaderProject(&projects[i]))
		}
	default:
		list.Projects = projects
	}
	return list, nil
}

// ListProjectSummaries lists local project summaries.
func (m *Member) ListProjectSummaries(sess project.Session, filter project.ListFilter) ([]project.Summary, error) {
	return m.Store.ListProjectSummaries(sess, filter)
}

// GetProjectSummary reads a single project summary.
func (m *Member) GetProjectSummary(sess project.Session, name string) (*project.Summary, error) {
	return m.Store.GetProjectSummary(sess, name)
}

// A session detached from any caller-scoped transaction.
func (m *Member) freshSession() project.Session {
	return m.Store.DB
}
