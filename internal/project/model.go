// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package project

import (
	"encoding/json"
	"time"
)

// Lifecycle state of a project as reported by the leader or stored locally.
type State string

const (
	StateUnknown  State = "unknown"
	StateCreating State = "creating"
	StateDeleting State = "deleting"
	StateOnline   State = "online"
	StateOffline  State = "offline"
	StateArchived State = "archived"
	StateDeleted  State = "deleted"
)

// Terminal states are lifecycle states after which no further leader-driven
// activity is expected. They gate which not-yet-known projects the sync
// is allowed to import: a project still in a non-terminal state (e.g. one
// that is being created right now) is skipped until it is known locally.
func (s State) IsTerminal() bool {
	return s == StateArchived || s == StateDeleted
}

func (s State) Known() bool {
	switch s {
	case StateUnknown, StateCreating, StateDeleting,
		StateOnline, StateOffline, StateArchived, StateDeleted:
		return true
	}
	return false
}

// Metadata identifying a project. The name is the primary key on both
// the leader and the follower side.
type Metadata struct {
	Name    string            `json:"name"`
	Labels  map[string]string `json:"labels,omitempty"`
	Owner   string            `json:"owner,omitempty"`
	Created time.Time         `json:"created,omitzero"`
	Updated time.Time         `json:"updated,omitzero"`
}

// Free-form, merge-patchable project configuration.
type Spec map[string]any

type Status struct {
	State     State     `json:"state,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

type Project struct {
	Metadata Metadata `json:"metadata"`
	Spec     Spec     `json:"spec,omitempty"`
	Status   Status   `json:"status"`
}

// Convert the project to a nested map, e.g. for merge-patching.
func (p *Project) ToMap() (map[string]any, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Convert a nested map back into a project.
func FromMap(m map[string]any) (*Project, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var p Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Reduced view of a project for list endpoints.
type Summary struct {
	Name    string    `json:"name"`
	Owner   string    `json:"owner,omitempty"`
	State   State     `json:"state,omitempty"`
	Updated time.Time `json:"updated,omitzero"`
}

// Owner of a project as known by the leader.
type Owner struct {
	Username  string `json:"username"`
	AccessKey string `json:"accessKey,omitempty"`
}

// Output format for project listings.
type Format string

const (
	FormatFull     Format = "full"
	FormatNameOnly Format = "name_only"
	// The shape the leader expects projects in. Only the leader itself
	// may request this format.
	FormatLeader Format = "leader"
)

// Provenance of a write request. Requests carrying the role of the
// configured leader are attributed to the leader system itself.
type Role string

// How a project deletion should treat resources still tied to the project.
type DeletionStrategy string

const (
	// Fail the deletion if the project still holds resources.
	DeletionRestricted DeletionStrategy = "restricted"
	// Delete the project together with everything it holds.
	DeletionCascading DeletionStrategy = "cascading"
)

func DefaultDeletionStrategy() DeletionStrategy {
	return DeletionRestricted
}
