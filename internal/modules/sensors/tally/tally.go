// Package tally counts how often each distinct reading value occurs.
package tally

import (
	"slices"

	"wotkit-dashboard/internal/modules/sensors/types"
)

// Tally holds distinct values in ascending order and, at the same index,
// how many readings carried that value.
type Tally struct {
	Values []float64 `json:"values"`
	Counts []int     `json:"counts"`
}

// Count tallies the raw (signed) reading values. The input is not modified.
func Count(readings []types.Reading) Tally {
	sorted := make([]float64, len(readings))
	for i, r := range readings {
		sorted[i] = r.Value
	}
	slices.Sort(sorted)

	t := Tally{Values: []float64{}, Counts: []int{}}
	for i, v := range sorted {
		if i > 0 && v == sorted[i-1] {
			t.Counts[len(t.Counts)-1]++
			continue
		}
		t.Values = append(t.Values, v)
		t.Counts = append(t.Counts, 1)
	}
	return t
}

// Total is the number of readings the tally was built from.
func (t Tally) Total() int {
	n := 0
	for _, c := range t.Counts {
		n += c
	}
	return n
}
