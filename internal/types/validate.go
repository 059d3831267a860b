package types

import (
	"strconv"
	"strings"
)

// MaxNameLength is the inclusive upper bound on a node name, per §3.
const MaxNameLength = 255

const forbiddenNameChars = `/:*?"<>|`

// ValidateName checks the name rules from the data model: non-empty,
// ≤255 bytes, and none of the filesystem-hostile characters. Grounded on
// the teacher's validateTitle-style single-field validators
// (internal/storage/sqlite/validators.go), generalized to node names.
func ValidateName(name string) error {
	if len(name) == 0 {
		return NewError(KindInvalidArgument, "ValidateName", "name must not be empty", nil)
	}
	if len(name) > MaxNameLength {
		return NewError(KindInvalidArgument, "ValidateName", "name exceeds 255 bytes", nil)
	}
	if strings.ContainsAny(name, forbiddenNameChars) {
		return NewError(KindInvalidArgument, "ValidateName", `name contains a forbidden character (one of /:*?"<>|)`, nil)
	}
	return nil
}

// NextConflictName appends " (n)" with the smallest n>=2 that makes name
// unique against taken, per the auto-rename policy in §4.5.
func NextConflictName(name string, taken map[string]bool) string {
	if !taken[name] {
		return name
	}
	for n := 2; ; n++ {
		candidate := name + " (" + strconv.Itoa(n) + ")"
		if !taken[candidate] {
			return candidate
		}
	}
}
