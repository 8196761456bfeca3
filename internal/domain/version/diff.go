package version

import (
	"fmt"
	"reflect"
	"sort"
)

// FieldDiff is a single difference between two snapshots. Path is the dotted
// field path; Type is "added", "removed", or "changed". The missing side of
// an added/removed field is left unset.
type FieldDiff struct {
	Path     string      `json:"path"`
	Type     string      `json:"type"`
	OldValue interface{} `json:"oldValue,omitempty"`
	NewValue interface{} `json:"newValue,omitempty"`
}

// DiffSnapshots compares two snapshot maps recursively and returns every
// field-level difference, by deep value equality. Output order is
// deterministic (keys sorted at each level).
func DiffSnapshots(old, new map[string]interface{}) []FieldDiff {
	var diffs []FieldDiff
	diffMaps("", old, new, &diffs)
	return diffs
}

func diffMaps(prefix string, old, new map[string]interface{}, diffs *[]FieldDiff) {
	keys := make(map[string]bool)
	for k := range old {
		keys[k] = true
	}
	for k := range new {
		keys[k] = true
	}

	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	for _, key := range sorted {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}

		oldVal, inOld := old[key]
		newVal, inNew := new[key]

		if !inOld {
			*diffs = append(*diffs, FieldDiff{Path: path, Type: "added", NewValue: newVal})
			continue
		}
		if !inNew {
			*diffs = append(*diffs, FieldDiff{Path: path, Type: "removed", OldValue: oldVal})
			continue
		}

		diffValues(path, oldVal, newVal, diffs)
	}
}

func diffValues(path string, oldVal, newVal interface{}, diffs *[]FieldDiff) {
	oldMap, oldIsMap := oldVal.(map[string]interface{})
	newMap, newIsMap := newVal.(map[string]interface{})
	if oldIsMap && newIsMap {
		diffMaps(path, oldMap, newMap, diffs)
		return
	}

	oldSlice, oldIsSlice := oldVal.([]interface{})
	newSlice, newIsSlice := newVal.([]interface{})
	if oldIsSlice && newIsSlice {
		diffSlices(path, oldSlice, newSlice, diffs)
		return
	}

	if !reflect.DeepEqual(oldVal, newVal) {
		*diffs = append(*diffs, FieldDiff{Path: path, Type: "changed", OldValue: oldVal, NewValue: newVal})
	}
}

func diffSlices(path string, old, new []interface{}, diffs *[]FieldDiff) {
	maxLen := len(old)
	if len(new) > maxLen {
		maxLen = len(new)
	}

	for i := 0; i < maxLen; i++ {
		elemPath := fmt.Sprintf("%s[%d]", path, i)

		if i >= len(old) {
			*diffs = append(*diffs, FieldDiff{Path: elemPath, Type: "added", NewValue: new[i]})
			continue
		}
		if i >= len(new) {
			*diffs = append(*diffs, FieldDiff{Path: elemPath, Type: "removed", OldValue: old[i]})
			continue
		}

		diffValues(elemPath, old[i], new[i], diffs)
	}
}
