package repository

import "strings"

// inQuery expands "SELECT ... IN" with the right number of placeholders for
// ids and returns the query plus its args.  database/sql has no native slice
// binding for MySQL.
func inQuery(prefix string, ids []uint64) (string, []interface{}) {
	ids = dedupe(ids)
	marks := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		marks[i] = "?"
		args[i] = id
	}
	return prefix + " (" + strings.Join(marks, ",") + ")", args
}

// dedupe removes duplicate ids while preserving order.  Duplicate ids in an
// assignment request are harmless and must not trip the all-or-nothing
// count check.
func dedupe(ids []uint64) []uint64 {
	seen := make(map[uint64]bool, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
