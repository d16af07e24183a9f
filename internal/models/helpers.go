// Package models defines data structures shared across the docqa pipeline.
package models

// UniqueTools returns names in order of first occurrence without duplicates.
func UniqueTools(names []ToolName) []string {
	seen := make(map[ToolName]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, string(n))
	}
	return out
}
