// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package project

import "errors"

var (
	// Returned when a project is not present in the local store.
	ErrNotFound = errors.New("project not found")
	// Returned when a caller requests something reserved for the leader.
	ErrAccessDenied = errors.New("access denied")
	// Returned for operations this follower deliberately does not support.
	ErrNotImplemented = errors.New("operation not supported")
	// Returned when a project already exists on create.
	ErrAlreadyExists = errors.New("project already exists")
)
