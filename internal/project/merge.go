// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package project

// Strategy for merging a partial patch into an existing project.
type MergeStrategy string

const (
	// Nested maps are merged, everything else in the patch replaces
	// the base value.
	MergeReplace MergeStrategy = "replace"
	// Like replace, but lists are appended instead of replaced.
	MergeAdditive MergeStrategy = "additive"
)

func (s MergeStrategy) Known() bool {
	return s == MergeReplace || s == MergeAdditive
}

// Merge the patch into the base according to the given strategy.
// Neither input is mutated, the merged result is a fresh map.
func Merge(base, patch map[string]any, strategy MergeStrategy) map[string]any {
	result := make(map[string]any, len(base))
	for k, v := range base {
		result[k] = copyValue(v)
	}
	for k, v := range patch {
		baseVal, ok := result[k]
		if !ok {
			result[k] = copyValue(v)
			continue
		}
		baseMap, baseIsMap := baseVal.(map[string]any)
		patchMap, patchIsMap := v.(map[string]any)
		if baseIsMap && patchIsMap {
			result[k] = Merge(baseMap, patchMap, strategy)
			continue
		}
		if strategy == MergeAdditive {
			baseList, baseIsList := baseVal.([]any)
			patchList, patchIsList := v.([]any)
			if baseIsList && patchIsList {
				merged := make([]any, 0, len(baseList)+len(patchList))
				for _, item := range baseList {
					merged = append(merged, copyValue(item))
				}
				for _, item := range patchList {
					merged = append(merged, copyValue(item))
				}
				result[k] = merged
				continue
			}
		}
		result[k] = copyValue(v)
	}
	return result
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		copied := make(map[string]any, len(val))
		for k, item := range val {
			copied[k] = copyValue(item)
		}
		return copied
	case []any:
		copied := make([]any, len(val))
		for i, item := range val {
			copied[i] = copyValue(item)
		}
		return copied
	default:
		return v
	}
}
