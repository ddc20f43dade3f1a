// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package testlib

// Shortcut to get a pointer to a value.
func Ptr[T any](v T) *T {
	return &v
}
