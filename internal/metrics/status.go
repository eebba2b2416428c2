package metrics

import "sort"

// ErrorBucket is the aggregated failure count for one error type.
type ErrorBucket struct {
	Type  string
	Count int
}

// FlattenErrors converts an error-type->count map into rows sorted by
// descending count, then by type for stability.
func FlattenErrors(errs map[string]int) []ErrorBucket {
	if len(errs) == 0 {
		return nil
	}
	rows := make([]ErrorBucket, 0, len(errs))
	for typ, count := range errs {
		rows = append(rows, ErrorBucket{Type: typ, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			return rows[i].Type < rows[j].Type
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}
