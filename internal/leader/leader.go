// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package leader

import (
	"context"
	"time"

	"github.com/cobaltcore-dev/mirror/internal/project"
)

// Client for the external system of record that owns project existence
// and metadata. The follower only caches what the leader reports.
type Client interface {
	// List the leader's projects, optionally only those updated after
	// the given time. Also returns the latest update timestamp seen,
	// which the caller may use as the cursor for the next listing.
	ListProjects(ctx context.Context, session string, updatedAfter *time.Time) ([]project.Project, *time.Time, error)
	// Get the owner of a project as the leader knows it.
	GetProjectOwner(ctx context.Context, session, name string) (*project.Owner, error)
	// Create a project on the leader. Returns whether the creation
	// keeps running in the background after this call returns.
	CreateProject(ctx context.Context, session string, p *project.Project, waitForCompletion bool) (bool, error)
	// Update a project on the leader.
	UpdateProject(ctx context.Context, session, name string, p *project.Project) error
	// Delete a project on the leader. Returns whether the deletion
	// completed synchronously.
	DeleteProject(ctx context.Context, session, name string, strategy project.DeletionStrategy, waitForCompletion bool) (bool, error)
	// Reshape a project into the document format the leader expects.
	FormatAsLeaderProject(p *project.Project) map[string]any
}
