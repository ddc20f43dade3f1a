// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package project

import (
	"fmt"
	"regexp"
)

// Project names must be usable as DNS labels, since downstream systems
// derive container and service names from them.
var namePattern = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

const maxNameLength = 63

func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("project name must not be empty")
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("project name %q exceeds %d characters", name, maxNameLength)
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf(
			"project name %q is invalid, expected lowercase alphanumerics and dashes", name,
		)
	}
	return nil
}

// Check that a project is structurally valid before it is written anywhere.
func Validate(p *Project) error {
	if err := ValidateName(p.Metadata.Name); err != nil {
		return err
	}
	if p.Status.State != "" && !p.Status.State.Known() {
		return fmt.Errorf("unknown project state %q", p.Status.State)
	}
	return nil
}
