// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package project

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/cobaltcore-dev/mirror/internal/db"
	"github.com/go-gorp/gorp"
)

// Transactional session handle for store operations. Both the db map
// itself and transactions started on it satisfy this.
type Session = gorp.SqlExecutor

// Database model of a project row. The row is a flattened view of the
// Project schema, with labels and the free-form spec stored as json.
type Row struct {
	Name         string    `db:"name,primarykey"`
	Owner        string    `db:"owner"`
	Labels       string    `db:"labels"`
	Created      time.Time `db:"created"`
	Updated      time.Time `db:"updated"`
	State        string    `db:"state"`
	StateUpdated time.Time `db:"state_updated"`
	Spec         string    `db:"spec"`
}

func (Row) TableName() string { return "projects" }

func rowFromProject(p *Project) (*Row, error) {
	labels, err := json.Marshal(p.Metadata.Labels)
	if err != nil {
		return nil, err
	}
	spec, err := json.Marshal(p.Spec)
	if err != nil {
		return nil, err
	}
	return &Row{
		Name:         p.Metadata.Name,
		Owner:        p.Metadata.Owner,
		Labels:       string(labels),
		Created:      p.Metadata.Created,
		Updated:      p.Metadata.Updated,
		State:        string(p.Status.State),
		StateUpdated: p.Status.UpdatedAt,
		Spec:         string(spec),
	}, nil
}

func (r *Row) toProject() (*Project, error) {
	var labels map[string]string
	if r.Labels != "" {
		if err := json.Unmarshal([]byte(r.Labels), &labels); err != nil {
			return nil, err
		}
	}
	var spec Spec
	if r.Spec != "" {
		if err := json.Unmarshal([]byte(r.Spec), &spec); err != nil {
			return nil, err
		}
	}
	return &Project{
		Metadata: Metadata{
			Name:    r.Name,
			Owner:   r.Owner,
			Labels:  labels,
			Created: r.Created,
			Updated: r.Updated,
		},
		Spec: spec,
		Status: Status{
			State:     State(r.State),
			UpdatedAt: r.StateUpdated,
		},
	}, nil
}

// Filters for project listings. Zero values mean no filtering.
type ListFilter struct {
	Owner string
	State State
	// Label selectors, either "key" or "key=value".
	Labels []string
	Names  []string
}

// Local, follower-side project store backed by the database.
type Store struct {
	DB db.DB
}

func NewStore(database db.DB) *Store {
	return &Store{DB: database}
}

// Create the projects table if it does not exist.
func (s *Store) Init() error {
	table := s.DB.AddTable(Row{})
	return s.DB.CreateTable(table)
}

// Insert a new project. Fails if a project with the same name exists.
func (s *Store) CreateProject(sess Session, p *Project) error {
	if p.Metadata.Created.IsZero() {
		p.Metadata.Created = time.Now().UTC()
	}
	row, err := rowFromProject(p)
	if err != nil {
		return err
	}
	if err := sess.Insert(row); err != nil {
		if strings.Contains(err.Error(), "duplicate key value") ||
			strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Store a project under the given name, replacing any previous record
// with that name entirely.
func (s *Store) StoreProject(sess Session, name string, p *Project) error {
	p.Metadata.Name = name
	if p.Metadata.Created.IsZero() {
		p.Metadata.Created = time.Now().UTC()
	}
	row, err := rowFromProject(p)
	if err != nil {
		return err
	}
	return db.Upsert(sess, row)
}

// Merge-patch a project. The patch is a partial project document that is
// deep-merged into the current record according to the strategy.
func (s *Store) PatchProject(sess Session, name string, patch map[string]any, strategy MergeStrategy) (*Project, error) {
	current, err := s.GetProject(sess, name)
	if err != nil {
		return nil, err
	}
	currentMap, err := current.ToMap()
	if err != nil {
		return nil, err
	}
	merged, err := FromMap(Merge(currentMap, patch, strategy))
	if err != nil {
		return nil, err
	}
	if err := Validate(merged); err != nil {
		return nil, err
	}
	if err := s.StoreProject(sess, name, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// Delete a project row. The deletion strategy only concerns resources
// held by the project on the leader side, locally it is recorded for
// logging purposes only.
func (s *Store) DeleteProject(sess Session, name string, strategy DeletionStrategy) error {
	slog.Info("deleting project from local store", "name", name, "strategy", strategy)
	deleted, err := sess.Exec("DELETE FROM projects WHERE name = :name", map[string]any{"name": name})
	if err != nil {
		return err
	}
	if n, err := deleted.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) GetProject(sess Session, name string) (*Project, error) {
	var row Row
	err := sess.SelectOne(&row, "SELECT * FROM projects WHERE name = :name", map[string]any{"name": name})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toProject()
}

// List projects matching the filter. Owner and state are filtered in
// SQL, labels and names on the decoded rows.
func (s *Store) ListProjects(sess Session, filter ListFilter) ([]Project, error) {
	query := "SELECT * FROM projects"
	var clauses []string
	params := map[string]any{}
	if filter.Owner != "" {
		clauses = append(clauses, "owner = :owner")
		params["owner"] = filter.Owner
	}
	if filter.State != "" {
		clauses = append(clauses, "state = :state")
		params["state"] = string(filter.State)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY name"

	var rows []Row
	if _, err := sess.Select(&rows, query, params); err != nil {
		return nil, err
	}
	var projects []Project
	for _, row := range rows {
		p, err := row.toProject()
		if err != nil {
			return nil, err
		}
		if len(filter.Names) > 0 && !slices.Contains(filter.Names, p.Metadata.Name) {
			continue
		}
		if !matchesLabels(p.Metadata.Labels, filter.Labels) {
			continue
		}
		projects = append(projects, *p)
	}
	return projects, nil
}

func matchesLabels(labels map[string]string, selectors []string) bool {
	for _, selector := range selectors {
		key, value, hasValue := strings.Cut(selector, "=")
		current, ok := labels[key]
		if !ok {
			return false
		}
		if hasValue && current != value {
			return false
		}
	}
	return true
}

func (s *Store) ListProjectSummaries(sess Session, filter ListFilter) ([]Summary, error) {
	projects, err := s.ListProjects(sess, filter)
	if err != nil {
		return nil, err
	}
	summaries := make([]Summary, 0, len(projects))
	for _, p := range projects {
		summaries = append(summaries, summarize(&p))
	}
	return summaries, nil
}

func (s *Store) GetProjectSummary(sess Session, name string) (*Summary, error) {
	p, err := s.GetProject(sess, name)
	if err != nil {
		return nil, err
	}
	summary := summarize(p)
	return &summary, nil
}

func summarize(p *Project) Summary {
	return Summary{
		Name:    p.Metadata.Name,
		Owner:   p.Metadata.Owner,
		State:   p.Status.State,
		Updated: p.Metadata.Updated,
	}
}
