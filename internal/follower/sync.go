// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package follower

import (
	"context"
	"log/slog"
	"time"

	"github.com/cobaltcore-dev/mirror/internal/project"
	"github.com/prometheus/client_golang/prometheus"
)

// SyncProjects reconciles the local store with the leader's project
// list. A full sync additionally archives local projects the leader no
// longer reports; an incremental sync only imports updates past the
// synced-until cursor.
func (m *Member) SyncProjects(ctx context.Context, fullSync bool) error {
	if m.monitor.syncTimer != nil {
		timer := prometheus.NewTimer(m.monitor.syncTimer)
		defer timer.ObserveDuration()
	}
	slog.Info("syncing projects from leader", "fullSync", fullSync)

	session := m.Conf.LeaderAccessKey
	var updatedAfter *time.Time
	if !fullSync && !m.syncedUntil.IsZero() {
		cursor := m.syncedUntil
		updatedAfter = &cursor
	}
	leaderProjects, latestUpdatedAt, err := m.Leader.ListProjects(ctx, session, updatedAfter)
	if err != nil {
		// Retry once without the filter before giving up on the run.
		slog.Warn("filtered leader listing failed, retrying unfiltered", "error", err)
		leaderProjects, latestUpdatedAt, err = m.Leader.ListProjects(ctx, session, nil)
		if err != nil {
			return err
		}
	}

	localProjects, err := m.Store.ListProjects(m.Store.DB, project.ListFilter{})
	if err != nil {
		return err
	}
	localNames := make(map[string]bool, len(localProjects))
	for _, p := range localProjects {
		localNames[p.Metadata.Name] = true
	}

	leaderNames := make(map[string]bool, len(leaderProjects))
	for i := range leaderProjects {
		p := leaderProjects[i]
		name := p.Metadata.Name
		leaderNames[name] = true
		// Projects the leader still considers active and that we have
		// never seen stay out of the store until a deliberate import.
		if !p.Status.State.IsTerminal() && !localNames[name] {
			slog.Debug("skipping unknown active leader project", "name", name)
			continue
		}
		// Never resurrect a project that is being deleted right now.
		if m.Tasks.ProjectDeletionActive(name) {
			slog.Debug("skipping leader project with active deletion", "name", name)
			continue
		}
		if err := m.Store.StoreProject(m.Store.DB, name, &p); err != nil {
			return err
		}
	}
	if m.monitor.syncedObjects != nil {
		m.monitor.syncedObjects.Set(float64(len(leaderProjects)))
	}

	if fullSync {
		m.archiveMissingProjects(localProjects, leaderNames)
	}

	if latestUpdatedAt != nil {
		cursor := *latestUpdatedAt
		if cursor.Before(time.Unix(0, 0)) {
			cursor = time.Unix(0, 0).UTC()
		}
		if cursor.After(m.syncedUntil) {
			m.syncedUntil = cursor
		}
	}

	if m.MQTT != nil {
		m.MQTT.Publish(TriggerProjectsSynced, map[string]any{
			"fullSync": fullSync,
			"time":     time.Now().UTC(),
		})
	}
	return nil
}

// Archive local projects absent from the leader's listing. Failures on
// single projects are logged and skipped so one bad record never blocks
// archiving the rest.
func (m *Member) archiveMissingProjects(localProjects []project.Project, leaderNames map[string]bool) {
	for i := range localProjects {
		p := localProjects[i]
		name := p.Metadata.Name
		if leaderNames[name] {
			continue
		}
		patch := map[string]any{
			"status": map[string]any{"state": string(project.StateArchived)},
		}
		if _, err := m.Store.PatchProject(m.Store.DB, name, patch, project.MergeReplace); err != nil {
			slog.Error("failed to archive project", "name", name, "error", err)
			continue
		}
		if m.monitor.archivedObjects != nil {
			m.monitor.archivedObjects.Inc()
		}
		slog.Info("archived project no longer reported by leader", "name", name)
	}
}

// SyncedUntil returns the current sync cursor.
func (m *Member) SyncedUntil() time.Time {
	return m.syncedUntil
}
