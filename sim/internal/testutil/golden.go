// Package testutil provides shared test infrastructure for the desim packages.
// It consolidates scenario configurations and assertion helpers used across
// sim/ sub-package tests.
package testutil

import (
	"math"
	"testing"
)

// Float64 returns a pointer to v, for optional configuration fields.
func Float64(v float64) *float64 {
	return &v
}

// Scenario is a named M/M/s configuration used by scenario tests.
type Scenario struct {
	Name                 string
	MeanInterArrivalTime float64
	MeanServiceDuration  float64
	ServerCount          int
	RunLength            float64
}

// Scenarios lists the reference load regimes.
var Scenarios = []Scenario{
	{Name: "single server saturation", MeanInterArrivalTime: 1, MeanServiceDuration: 10, ServerCount: 1, RunLength: 1000},
	{Name: "light load", MeanInterArrivalTime: 100, MeanServiceDuration: 1, ServerCount: 5, RunLength: 1000},
	{Name: "clinic", MeanInterArrivalTime: 4, MeanServiceDuration: 10, ServerCount: 5, RunLength: 1440},
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}
