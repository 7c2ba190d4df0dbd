package validate

import (
	"fmt"
	"sort"
)

// Flatten collects the scalar elements of a list or a grid (list of lists)
// as strings, row-major.
func Flatten(v any) ([]string, bool) {
	xs, ok := v.([]any)
	if !ok {
		return nil, false
	}
	var out []string
	for _, x := range xs {
		if row, ok := x.([]any); ok {
			for _, c := range row {
				out = append(out, fmt.Sprint(c))
			}
			continue
		}
		out = append(out, fmt.Sprint(x))
	}
	return out, true
}

// Cardinality counts occurrences of each value.
func Cardinality(values []string) map[string]int {
	out := make(map[string]int, len(values))
	for _, v := range values {
		out[v]++
	}
	return out
}

func sortedKeys(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
