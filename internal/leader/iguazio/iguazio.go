// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package iguazio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cobaltcore-dev/mirror/internal/conf"
	"github.com/cobaltcore-dev/mirror/internal/leader"
	"github.com/cobaltcore-dev/mirror/internal/project"
	"github.com/prometheus/client_golang/prometheus"
)

// Session token header understood by the iguazio API.
const sessionHeader = "X-V3io-Session-Key"

// Header carrying the deletion strategy on project deletion requests.
const deletionStrategyHeader = "Igz-Project-Deletion-Strategy"

// How long to wait between polls of a background job.
const jobPollInterval = 2 * time.Second

// Leader client for the iguazio control plane.
type Client struct {
	conf    conf.ProjectsConfig
	http    *http.Client
	monitor Monitor
}

func NewClient(c conf.ProjectsConfig, monitor Monitor) *Client {
	return &Client{
		conf:    c,
		http:    &http.Client{Timeout: 60 * time.Second},
		monitor: monitor,
	}
}

// Document shape the iguazio API uses for a single project.
type projectAttributes struct {
	Name      string            `json:"name"`
	Labels    map[string]string `json:"labels,omitempty"`
	Owner     string            `json:"owner_username,omitempty"`
	CreatedAt time.Time         `json:"created_at,omitzero"`
	UpdatedAt time.Time         `json:"updated_at,omitzero"`
	// Operational status of the project, e.g. "online".
	Status string         `json:"operational_status,omitempty"`
	Spec   map[string]any `json:"spec,omitempty"`
}

type projectDocument struct {
	Type       string            `json:"type"`
	Attributes projectAttributes `json:"attributes"`
}

type projectsResponse struct {
	Data []projectDocument `json:"data"`
}

type projectResponse struct {
	Data projectDocument `json:"data"`
	// Set when the request spawned a background job.
	Meta struct {
		Ctx   string `json:"ctx,omitempty"`
		JobID string `json:"job_id,omitempty"`
	} `json:"meta"`
}

type jobResponse struct {
	Data struct {
		Attributes struct {
			State string `json:"state"`
		} `json:"attributes"`
	} `json:"data"`
}

func documentFromProject(p *project.Project) projectDocument {
	return projectDocument{
		Type: "project",
		Attributes: projectAttributes{
			Name:      p.Metadata.Name,
			Labels:    p.Metadata.Labels,
			Owner:     p.Metadata.Owner,
			CreatedAt: p.Metadata.Created,
			UpdatedAt: p.Metadata.Updated,
			Status:    string(p.Status.State),
			Spec:      p.Spec,
		},
	}
}

func (d projectDocument) toProject() project.Project {
	return project.Project{
		Metadata: project.Metadata{
			Name:    d.Attributes.Name,
			Labels:  d.Attributes.Labels,
			Owner:   d.Attributes.Owner,
			Created: d.Attributes.CreatedAt,
			Updated: d.Attributes.UpdatedAt,
		},
		Spec: d.Attributes.Spec,
		Status: project.Status{
			State:     project.State(d.Attributes.Status),
			UpdatedAt: d.Attributes.UpdatedAt,
		},
	}
}

// Perform a request against the iguazio API and decode the response
// into out (unless out is nil). Returns the response status code.
func (c *Client) do(ctx context.Context, session, method, path string, body, out any) (int, error) {
	if c.monitor.requestTimer != nil {
		hist := c.monitor.requestTimer.WithLabelValues(method + " " + path)
		timer := prometheus.NewTimer(hist)
		defer timer.ObserveDuration()
	}

	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.conf.LeaderURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(sessionHeader, session)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf(
			"leader returned %d for %s %s: %s", resp.StatusCode, method, path, string(data),
		)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func (c *Client) ListProjects(ctx context.Context, session string, updatedAfter *time.Time) ([]project.Project, *time.Time, error) {
	path := "/api/projects?include=owner"
	if updatedAfter != nil {
		path += "&filter[updated_at]=" + url.QueryEscape("[$gt]"+updatedAfter.Format(time.RFC3339Nano))
	}
	var response projectsResponse
	if _, err := c.do(ctx, session, http.MethodGet, path, nil, &response); err != nil {
		return nil, nil, err
	}

	projects := make([]project.Project, 0, len(response.Data))
	var latestUpdatedAt *time.Time
	for _, doc := range response.Data {
		p := doc.toProject()
		projects = append(projects, p)
		if latestUpdatedAt == nil || p.Metadata.Updated.After(*latestUpdatedAt) {
			updated := p.Metadata.Updated
			latestUpdatedAt = &updated
		}
	}
	return projects, latestUpdatedAt, nil
}

func (c *Client) GetProjectOwner(ctx context.Context, session, name string) (*project.Owner, error) {
	var response struct {
		Data struct {
			Attributes struct {
				Owner          string `json:"owner_username"`
				OwnerAccessKey string `json:"owner_access_key,omitempty"`
			} `json:"attributes"`
		} `json:"data"`
	}
	path := "/api/projects/__name__/" + url.PathEscape(name) + "?include=owner&enrich_owner_access_key=true"
	if _, err := c.do(ctx, session, http.MethodGet, path, nil, &response); err != nil {
		return nil, err
	}
	return &project.Owner{
		Username:  response.Data.Attributes.Owner,
		AccessKey: response.Data.Attributes.OwnerAccessKey,
	}, nil
}

func (c *Client) CreateProject(ctx context.Context, session string, p *project.Project, waitForCompletion bool) (bool, error) {
	body := map[string]any{"data": documentFromProject(p)}
	var response projectResponse
	status, err := c.do(ctx, session, http.MethodPost, "/api/projects", body, &response)
	if err != nil {
		return false, err
	}
	if status != http.StatusAccepted || response.Meta.JobID == "" {
		// The leader completed the creation synchronously.
		return false, nil
	}
	if !waitForCompletion {
		return true, nil
	}
	return false, c.waitForJob(ctx, session, response.Meta.JobID)
}

func (c *Client) UpdateProject(ctx context.Context, session, name string, p *project.Project) error {
	body := map[string]any{"data": documentFromProject(p)}
	path := "/api/projects/__name__/" + url.PathEscape(name)
	_, err := c.do(ctx, session, http.MethodPut, path, body, nil)
	return err
}

func (c *Client) DeleteProject(ctx context.Context, session, name string, strategy project.DeletionStrategy, waitForCompletion bool) (bool, error) {
	body := map[string]any{"data": projectDocument{
		Type:       "project",
		Attributes: projectAttributes{Name: name},
	}}
	data, err := json.Marshal(body)
	if err != nil {
		return false, err
	}
	req, err := http.NewRequestWithContext(
		ctx, http.MethodDelete, c.conf.LeaderURL+"/api/projects", bytes.NewReader(data),
	)
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(sessionHeader, session)
	req.Header.Set(deletionStrategyHeader, string(strategy))

	resp, err := c.http.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		respData, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("leader returned %d on deletion: %s", resp.StatusCode, string(respData))
	}
	if resp.StatusCode != http.StatusAccepted {
		return true, nil
	}
	var response projectResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return false, fmt.Errorf("failed to decode response: %w", err)
	}
	if !waitForCompletion {
		return false, nil
	}
	if err := c.waitForJob(ctx, session, response.Meta.JobID); err != nil {
		return false, err
	}
	return true, nil
}

// Poll the leader's job API until the job reaches a terminal state.
func (c *Client) waitForJob(ctx context.Context, session, jobID string) error {
	slog.Info("waiting for leader job", "jobID", jobID)
	for {
		var response jobResponse
		path := "/api/jobs/" + url.PathEscape(jobID)
		if _, err := c.do(ctx, session, http.MethodGet, path, nil, &response); err != nil {
			return err
		}
		switch response.Data.Attributes.State {
		case "completed":
			return nil
		case "failed", "canceled":
			return fmt.Errorf("leader job %s ended in state %s", jobID, response.Data.Attributes.State)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(jobPollInterval):
		}
	}
}

func (c *Client) FormatAsLeaderProject(p *project.Project) map[string]any {
	doc := documentFromProject(p)
	return map[string]any{"data": doc}
}

// Conform to the leader client interface.
var _ leader.Client = &Client{}
