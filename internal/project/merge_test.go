// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package project

import (
	"reflect"
	"testing"
)

func TestMerge_Replace(t *testing.T) {
	base := map[string]any{
		"spec": map[string]any{
			"description": "old",
			"artifacts":   []any{"a", "b"},
			"params": map[string]any{
				"keep":    "kept",
				"replace": "old",
			},
		},
	}
	patch := map[string]any{
		"spec": map[string]any{
			"artifacts": []any{"c"},
			"params": map[string]any{
				"replace": "new",
			},
		},
	}

	merged := Merge(base, patch, MergeReplace)

	spec := merged["spec"].(map[string]any)
	if spec["description"] != "old" {
		t.Errorf("expected untouched description, got %v", spec["description"])
	}
	if !reflect.DeepEqual(spec["artifacts"], []any{"c"}) {
		t.Errorf("expected list to be replaced, got %v", spec["artifacts"])
	}
	params := spec["params"].(map[string]any)
	if params["keep"] != "kept" || params["replace"] != "new" {
		t.Errorf("expected nested map merge, got %v", params)
	}
}

func TestMerge_Additive(t *testing.T) {
	base := map[string]any{
		"artifacts": []any{"a", "b"},
		"counter":   1,
	}
	patch := map[string]any{
		"artifacts": []any{"c"},
		"counter":   2,
	}

	merged := Merge(base, patch, MergeAdditive)

	if !reflect.DeepEqual(merged["artifacts"], []any{"a", "b", "c"}) {
		t.Errorf("expected lists to be appended, got %v", merged["artifacts"])
	}
	if merged["counter"] != 2 {
		t.Errorf("expected scalar to be replaced, got %v", merged["counter"])
	}
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	base := map[string]any{
		"nested": map[string]any{"a": "base"},
	}
	patch := map[string]any{
		"nested": map[string]any{"a": "patched", "b": "added"},
	}

	merged := Merge(base, patch, MergeReplace)

	if base["nested"].(map[string]any)["a"] != "base" {
		t.Error("base was mutated by merge")
	}
	merged["nested"].(map[string]any)["a"] = "changed-after"
	if patch["nested"].(map[string]any)["a"] != "patched" {
		t.Error("patch shares memory with the merged result")
	}
}

func TestMerge_NewKeys(t *testing.T) {
	merged := Merge(
		map[string]any{},
		map[string]any{"fresh": map[string]any{"a": 1}},
		MergeReplace,
	)
	if !reflect.DeepEqual(merged["fresh"], map[string]any{"a": 1}) {
		t.Errorf("expected new key to be copied, got %v", merged["fresh"])
	}
}
