package main

import (
	"strings"
)

// splitMySQLSet splits a SET column value into its members. The empty set
// is an empty, non-nil slice so it is stored as an empty array.
func splitMySQLSet(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
