// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

// Package nop provides an in-memory leader for deployments without an
// external system of record, and for tests.
package nop

import (
	"context"
	"sync"
	"time"

	"github.com/cobaltcore-dev/mirror/internal/leader"
	"github.com/cobaltcore-dev/mirror/internal/project"
)

type Client struct {
	mutex    sync.RWMutex
	projects map[string]project.Project

	// Overridable for tests.
	now func() time.Time
}

func NewClient() *Client {
	return &Client{
		projects: map[string]project.Project{},
		now:      time.Now,
	}
}

func (c *Client) ListProjects(ctx context.Context, session string, updatedAfter *time.Time) ([]project.Project, *time.Time, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var projects []project.Project
	var latestUpdatedAt *time.Time
	for _, p := range c.projects {
		if updatedAfter != nil && !p.Metadata.Updated.After(*updatedAfter) {
			continue
		}
		projects = append(projects, p)
		if latestUpdatedAt == nil || p.Metadata.Updated.After(*latestUpdatedAt) {
			updated := p.Metadata.Updated
			latestUpdatedAt = &updated
		}
	}
	return projects, latestUpdatedAt, nil
}

func (c *Client) GetProjectOwner(ctx context.Context, session, name string) (*project.Owner, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	p, ok := c.projects[name]
	if !ok {
		return nil, project.ErrNotFound
	}
	return &project.Owner{Username: p.Metadata.Owner}, nil
}

func (c *Client) CreateProject(ctx context.Context, session string, p *project.Project, waitForCompletion bool) (bool, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, ok := c.projects[p.Metadata.Name]; ok {
		return false, project.ErrAlreadyExists
	}
	stored := *p
	stored.Metadata.Updated = c.now()
	stored.Status.State = project.StateOnline
	c.projects[p.Metadata.Name] = stored
	return false, nil
}

func (c *Client) UpdateProject(ctx context.Context, session, name string, p *project.Project) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	stored := *p
	stored.Metadata.Name = name
	stored.Metadata.Updated = c.now()
	c.projects[name] = stored
	return nil
}

func (c *Client) DeleteProject(ctx context.Context, session, name string, strategy project.DeletionStrategy, waitForCompletion bool) (bool, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.projects, name)
	return true, nil
}

func (c *Client) FormatAsLeaderProject(p *project.Project) map[string]any {
	m, err := p.ToMap()
	if err != nil {
		return map[string]any{"name": p.Metadata.Name}
	}
	return m
}

// Conform to the leader client interface.
var _ leader.Client = &Client{}
