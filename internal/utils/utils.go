// Package utils holds small helpers shared across packages.
package utils

import (
	"strings"

	"github.com/fatih/structs"
)

// FieldTagNames returns the tag values for the given tag key of all passed
// struct fields, e.g. the json names of a request struct. Tag options
// (",omitempty" etc.) are stripped; untagged fields are skipped.
func FieldTagNames(fields []*structs.Field, tag string) []string {
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		t := f.Tag(tag)
		if t == "" || t == "-" {
			continue
		}
		if i := strings.IndexByte(t, ','); i >= 0 {
			t = t[:i]
		}
		if t != "" {
			names = append(names, t)
		}
	}
	return names
}
