// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cobaltcore-dev/mirror/internal/conf"
	"github.com/cobaltcore-dev/mirror/internal/follower"
	"github.com/cobaltcore-dev/mirror/internal/project"
	"github.com/sapcc/go-bits/httpext"
)

// Headers carrying request provenance and routing hints.
const (
	// Role of the caller. Requests carrying the configured leader's
	// name are attributed to the leader system itself.
	HeaderProjectsRole = "X-Projects-Role"
	// Session token forwarded to the leader on routed requests.
	HeaderLeaderSession = "X-Leader-Session"
	// Merge strategy for patch requests (replace, additive).
	HeaderPatchMode = "X-Projects-Patch-Mode"
	// Deletion strategy for delete requests (restricted, cascading).
	HeaderDeletionStrategy = "X-Projects-Deletion-Strategy"
	// Whether the caller wants to wait for leader-side completion.
	HeaderWait = "X-Projects-Wait"
)

type API interface {
	// Init the API mux and bind the handlers.
	Init(context.Context)
}

type api struct {
	config  conf.APIConfig
	member  *follower.Member
	monitor Monitor
}

func NewAPI(config conf.APIConfig, member *follower.Member, m Monitor) API {
	return &api{
		config:  config,
		member:  member,
		monitor: m,
	}
}

// Init the API mux and bind the handlers.
func (api *api) Init(ctx context.Context) {
	mux := http.NewServeMux()
	api.bind(mux)
	slog.Info("api listening on", "port", api.config.Port)
	addr := fmt.Sprintf(":%d", api.config.Port)
	if err := httpext.ListenAndServeContext(ctx, addr, mux); err != nil {
		panic(err)
	}
}

func (api *api) bind(mux *http.ServeMux) {
	mux.HandleFunc("/up", api.Up)
	mux.HandleFunc("GET /v1/projects", api.ListProjects)
	mux.HandleFunc("POST /v1/projects", api.CreateProject)
	mux.HandleFunc("GET /v1/projects/{name}", api.GetProject)
	mux.HandleFunc("PUT /v1/projects/{name}", api.StoreProject)
	mux.HandleFunc("PATCH /v1/projects/{name}", api.PatchProject)
	mux.HandleFunc("DELETE /v1/projects/{name}", api.DeleteProject)
	mux.HandleFunc("GET /v1/projects/{name}/owner", api.GetProjectOwner)
	mux.HandleFunc("GET /v1/project-summaries", api.ListProjectSummaries)
	mux.HandleFunc("GET /v1/project-summaries/{name}", api.GetProjectSummary)
}

// Helper to respond to the request with the given code and error.
// Also adds monitoring for the time it took to handle the request.
type apihelper struct {
	api     *api
	w       http.ResponseWriter
	r       *http.Request
	pattern string
	t       time.Time
}

func (api *api) newHelper(w http.ResponseWriter, r *http.Request, pattern string) apihelper {
	return apihelper{api: api, w: w, r: r, pattern: pattern, t: time.Now()}
}

// Respond to the request with the given code and error.
// Also log the time it took to handle the request.
func (h apihelper) respond(code int, err error, text string) {
	if h.api.monitor.apiRequestsTimer != nil {
		observer := h.api.monitor.apiRequestsTimer.WithLabelValues(
			h.r.Method,
			h.pattern,
			strconv.Itoa(code),
			text, // Internal error messages should not face the monitor.
		)
		observer.Observe(time.Since(h.t).Seconds())
	}
	if err != nil {
		slog.Error("failed to handle request", "error", err)
		http.Error(h.w, text, code)
		return
	}
	// If there was no error, nothing else to do.
}

// Respond with an error, mapping the known routing failures to their
// status codes.
func (h apihelper) respondErr(err error) {
	switch {
	case errors.Is(err, project.ErrNotFound):
		h.respond(http.StatusNotFound, err, "project not found")
	case errors.Is(err, project.ErrAlreadyExists):
		h.respond(http.StatusConflict, err, "project already exists")
	case errors.Is(err, project.ErrAccessDenied):
		h.respond(http.StatusForbidden, err, "access denied")
	case errors.Is(err, project.ErrNotImplemented):
		h.respond(http.StatusNotImplemented, err, "operation not supported")
	default:
		h.respond(http.StatusInternalServerError, err, "failed to handle request")
	}
}

// Encode the response body as json and finish the request.
func (h apihelper) respondJSON(code int, body any) {
	h.w.Header().Set("Content-Type", "application/json")
	h.w.WriteHeader(code)
	if err := json.NewEncoder(h.w).Encode(body); err != nil {
		h.respond(http.StatusInternalServerError, err, "failed to encode response")
		return
	}
	h.respond(code, nil, "Success")
}

// Whether the caller wants to wait for leader-side completion.
// Defaults to waiting.
func waitForCompletion(r *http.Request) bool {
	return r.Header.Get(HeaderWait) != "false"
}

// Handle the GET request to check if the API is up.
func (api *api) Up(w http.ResponseWriter, r *http.Request) {
	h := api.newHelper(w, r, "/up")
	h.respond(http.StatusOK, nil, "Success")
}

// Handle the POST request to create a project.
func (api *api) CreateProject(w http.ResponseWriter, r *http.Request) {
	h := api.newHelper(w, r, "/v1/projects")
	defer r.Body.Close()

	var p project.Project
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		h.respond(http.StatusBadRequest, err, "failed to decode request body")
		return
	}
	if err := project.Validate(&p); err != nil {
		h.respond(http.StatusBadRequest, err, "invalid project")
		return
	}
	created, background, err := api.member.CreateProject(
		r.Context(), api.member.Store.DB, &p,
		r.Header.Get(HeaderProjectsRole),
		r.Header.Get(HeaderLeaderSession),
		waitForCompletion(r),
	)
	if err != nil {
		h.respondErr(err)
		return
	}
	if background {
		// The caller polls for the project until the creation is done.
		h.respond(http.StatusAccepted, nil, "Success")
		return
	}
	h.respondJSON(http.StatusCreated, created)
}

// Handle the GET request to read a single project.
func (api *api) GetProject(w http.ResponseWriter, r *http.Request) {
	h := api.newHelper(w, r, "/v1/projects/{name}")
	p, err := api.member.GetProject(api.member.Store.DB, r.PathValue("name"))
	if err != nil {
		h.respondErr(err)
		return
	}
	h.respondJSON(http.StatusOK, p)
}

// Handle the PUT request to store a project under its name.
func (api *api) StoreProject(w http.ResponseWriter, r *http.Request) {
	h := api.newHelper(w, r, "/v1/projects/{name}")
	defer r.Body.Close()

	var p project.Project
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		h.respond(http.StatusBadRequest, err, "failed to decode request body")
		return
	}
	stored, background, err := api.member.StoreProject(
		r.Context(), api.member.Store.DB, r.PathValue("name"), &p,
		r.Header.Get(HeaderProjectsRole),
		r.Header.Get(HeaderLeaderSession),
	)
	if err != nil {
		h.respondErr(err)
		return
	}
	if background {
		h.respond(http.StatusAccepted, nil, "Success")
		return
	}
	h.respondJSON(http.StatusOK, stored)
}

// Handle the PATCH request to merge a partial document into a project.
func (api *api) PatchProject(w http.ResponseWriter, r *http.Request) {
	h := api.newHelper(w, r, "/v1/projects/{name}")
	defer r.Body.Close()

	strategy := project.MergeStrategy(r.Header.Get(HeaderPatchMode))
	if strategy == "" {
		strategy = project.MergeReplace
	}
	if !strategy.Known() {
		internalErr := fmt.Errorf("unknown patch mode %q", strategy)
		h.respond(http.StatusBadRequest, internalErr, "unknown patch mode")
		return
	}
	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.respond(http.StatusBadRequest, err, "failed to decode request body")
		return
	}
	patched, background, err := api.member.PatchProject(
		r.Context(), api.member.Store.DB, r.PathValue("name"), patch, strategy,
		r.Header.Get(HeaderProjectsRole),
		r.Header.Get(HeaderLeaderSession),
	)
	if err != nil {
		h.respondErr(err)
		return
	}
	if background {
		h.respond(http.StatusAccepted, nil, "Success")
		return
	}
	h.respondJSON(http.StatusOK, patched)
}

// Handle the DELETE request to delete a project.
func (api *api) DeleteProject(w http.ResponseWriter, r *http.Request) {
	h := api.newHelper(w, r, "/v1/projects/{name}")

	strategy := project.DeletionStrategy(r.Header.Get(HeaderDeletionStrategy))
	if strategy == "" {
		strategy = project.DefaultDeletionStrategy()
	}
	completed, err := api.member.DeleteProject(
		r.Context(), api.member.Store.DB, r.PathValue("name"), strategy,
		r.Header.Get(HeaderProjectsRole),
		r.Header.Get(HeaderLeaderSession),
		waitForCompletion(r),
	)
	if err != nil {
		h.respondErr(err)
		return
	}
	if !completed {
		h.respond(http.StatusAccepted, nil, "Success")
		return
	}
	h.w.WriteHeader(http.StatusNoContent)
	h.respond(http.StatusNoContent, nil, "Success")
}

// Handle the GET request to resolve a project's owner via the leader.
func (api *api) GetProjectOwner(w http.ResponseWriter, r *http.Request) {
	h := api.newHelper(w, r, "/v1/projects/{name}/owner")
	owner, err := api.member.GetProjectOwner(r.Context(), r.PathValue("name"))
	if err != nil {
		h.respondErr(err)
		return
	}
	h.respondJSON(http.StatusOK, owner)
}

// Handle the GET request to list projects.
func (api *api) ListProjects(w http.ResponseWriter, r *http.Request) {
	h := api.newHelper(w, r, "/v1/projects")

	query := r.URL.Query()
	format := project.Format(query.Get("format"))
	if format == "" {
		format = project.FormatFull
	}
	filter := project.ListFilter{
		Owner:  query.Get("owner"),
		State:  project.State(query.Get("state")),
		Labels: query["label"],
		Names:  query["name"],
	}
	list, err := api.member.ListProjects(
		api.member.Store.DB, filter, format, r.Header.Get(HeaderProjectsRole),
	)
	if err != nil {
		h.respondErr(err)
		return
	}
	switch format {
	case project.FormatNameOnly:
		h.respondJSON(http.StatusOK, map[string]any{"projects": list.Names})
	case project.FormatLeader:
		h.respondJSON(http.StatusOK, map[string]any{"projects": list.LeaderProjects})
	default:
		h.respondJSON(http.StatusOK, map[string]any{"projects": list.Projects})
	}
}

// Handle the GET request to list project summaries.
func (api *api) ListProjectSummaries(w http.ResponseWriter, r *http.Request) {
	h := api.newHelper(w, r, "/v1/project-summaries")

	query := r.URL.Query()
	filter := project.ListFilter{
		Owner:  query.Get("owner"),
		State:  project.State(query.Get("state")),
		Labels: query["label"],
		Names:  query["name"],
	}
	summaries, err := api.member.ListProjectSummaries(api.member.Store.DB, filter)
	if err != nil {
		h.respondErr(err)
		return
	}
	h.respondJSON(http.StatusOK, map[string]any{"projectSummaries": summaries})
}

// Handle the GET request to read a single project summary.
func (api *api) GetProjectSummary(w http.ResponseWriter, r *http.Request) {
	h := api.newHelper(w, r, "/v1/project-summaries/{name}")
	summary, err := api.member.GetProjectSummary(api.member.Store.DB, r.PathValue("name"))
	if err != nil {
		h.respondErr(err)
		return
	}
	h.respondJSON(http.StatusOK, summary)
}
