// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

// Package follower keeps the local project store eventually consistent
// with an external leader system and routes project write requests
// either directly to the store or through the leader, depending on who
// sent them.
package follower

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cobaltcore-dev/mirror/internal/conf"
	"github.com/cobaltcore-dev/mirror/internal/leader"
	"github.com/cobaltcore-dev/mirror/internal/leader/iguazio"
	"github.com/cobaltcore-dev/mirror/internal/leader/nop"
	"github.com/cobaltcore-dev/mirror/internal/monitoring"
	"github.com/cobaltcore-dev/mirror/internal/mqtt"
	"github.com/cobaltcore-dev/mirror/internal/project"
	"github.com/cobaltcore-dev/mirror/internal/tasks"
	"github.com/sapcc/go-bits/jobloop"
)

// MQTT topic on which a message is published after each sync run.
const TriggerProjectsSynced = "mirror/projects/synced"

// Select the leader client implementation by configuration.
func NewLeaderClient(c conf.ProjectsConfig, registry *monitoring.Registry) (leader.Client, error) {
	switch c.Leader {
	case conf.LeaderIguazio:
		return iguazio.NewClient(c, iguazio.NewMonitor(registry)), nil
	case conf.LeaderNop:
		return nop.NewClient(), nil
	default:
		return nil, fmt.Errorf("unsupported project leader %q", c.Leader)
	}
}

// Member mirrors the leader's projects into the local store. One member
// exists per replica, but only the chief replica runs the periodic sync.
type Member struct {
	Conf   conf.ProjectsConfig
	Store  *project.Store
	Leader leader.Client
	Tasks  *tasks.Registry
	MQTT   mqtt.Client

	monitor Monitor

	// Cursor up to which leader updates have been synced. Only the
	// sync loop writes it, so no lock is needed.
	syncedUntil time.Time

	// Cancels the periodic sync loop.
	cancelSync context.CancelFunc
}

func NewMember(
	c conf.ProjectsConfig,
	store *project.Store,
	leaderClient leader.Client,
	taskRegistry *tasks.Registry,
	mqttClient mqtt.Client,
	monitor Monitor,
) *Member {

	return &Member{
		Conf:    c,
		Store:   store,
		Leader:  leaderClient,
		Tasks:   taskRegistry,
		MQTT:    mqttClient,
		monitor: monitor,
	}
}

// Initialize the member. On the chief replica this runs one synchronous
// full sync (failures are logged, not fatal) and then starts the
// periodic sync loop. Worker replicas only serve requests.
func (m *Member) Initialize(ctx context.Context) error {
	if m.Conf.Role != conf.RoleChief {
		slog.Info("not the chief replica, skipping projects sync", "role", m.Conf.Role)
		return nil
	}
	if err := m.SyncProjects(ctx, true); err != nil {
		slog.Error("initial projects sync failed", "error", err)
		if m.monitor.syncFailures != nil {
			m.monitor.syncFailures.Inc()
		}
	}
	interval, err := m.Conf.SyncInterval()
	if err != nil {
		return err
	}
	if interval <= 0 {
		slog.Info("periodic projects sync disabled")
		return nil
	}
	syncCtx, cancel := context.WithCancel(ctx)
	m.cancelSync = cancel
	go m.syncPeriodically(syncCtx, interval)
	return nil
}

// Shutdown stops the periodic sync loop. An in-flight sync run is not
// interrupted beyond context cancellation.
func (m *Member) Shutdown() {
	if m.cancelSync != nil {
		m.cancelSync()
	}
}

func (m *Member) syncPeriodically(ctx context.Context, interval time.Duration) {
	slog.Info("starting periodic projects sync", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping periodic projects sync")
			return
		case <-time.After(jobloop.DefaultJitter(interval)):
		}
		if err := m.SyncProjects(ctx, false); err != nil {
			slog.Error("periodic projects sync failed", "error", err)
			if m.monitor.syncFailures != nil {
				m.monitor.syncFailures.Inc()
			}
		}
	}
}

// Whether the request carrying this role originates from the leader
// system itself.
func (m *Member) requestFromLeader(projectsRole string) bool {
	return projectsRole != "" && projectsRole == m.Conf.Leader
}
