/*
Package world
File: mechanics.go
Description:
    Geometry helpers: pairwise distances between agent subsets and the
    encounter-probability kernel built on top of them.
    Everything here is a pure function of the current locations.
*/

package world

import "math"

// maxDistance is the diagonal of the unit square.
var maxDistance = math.Sqrt2

// Distance computes the euclidean distance between agents i and j.
func (p *Population) Distance(i, j int) float64 {
	return math.Hypot(p.x[i]-p.x[j], p.y[i]-p.y[j])
}

// Distances returns the |a| x |b| matrix of distances between the agents in a
// and the agents in b, divided by the unit-square diagonal so that every
// entry lies in [0, 1].
func (p *Population) Distances(a, b []int) [][]float64 {
	out := make([][]float64, len(a))
	for r, i := range a {
		row := make([]float64, len(b))
		for c, j := range b {
			row[c] = p.Distance(i, j) / maxDistance
		}
		out[r] = row
	}
	return out
}

// Encounter returns the |a| x |b| matrix of encounter probabilities between
// the agents in a and the agents in b, using the configured kernel.
func (p *Population) Encounter(a, b []int) [][]float64 {
	m := p.Distances(a, b)
	for _, row := range m {
		for c, d := range row {
			row[c] = p.cfg.Kernel.Probability(d, p.cfg.LocalityFactor)
		}
	}
	return m
}

// Probability maps a normalised distance d to an encounter probability.
// Both curves give 1 at d = 0 and never increase with d.
func (k Kernel) Probability(d, locality float64) float64 {
	// Rounding can push the diagonal a hair past 1.
	d = math.Min(math.Max(d, 0), 1)
	switch k {
	case KernelExponential:
		return math.Exp(-locality * d)
	default:
		return math.Pow(1-d, locality)
	}
}
