/*
Package world
File: movement.go
Description:
    Moves every living agent once per step, either along a smoothed
    random walk (persistent heading nudged by gaussian noise) or by
    independent uniform jitter, then applies the boundary policy.
    Dead agents are skipped entirely: no draws, no displacement.
*/

package world

import "math"

// Move displaces every living agent according to the configured movement policy.
func (p *Population) Move() {
	living := make([]int, 0, len(p.status))
	for i, st := range p.status {
		if st != Dead {
			living = append(living, i)
		}
	}

	switch p.cfg.Movement {
	case MovementJitter:
		p.jitter(living)
	default:
		p.walk(living)
	}

	for _, i := range living {
		p.x[i] = p.bound(p.x[i])
		p.y[i] = p.bound(p.y[i])
	}
}

// walk perturbs each heading, renormalises it and advances by heading * speed.
func (p *Population) walk(living []int) {
	turn := p.cfg.MovementTurnRate
	speed := p.cfg.MovementSpeed
	for _, i := range living {
		hx := p.hx[i] + turn*p.rng.NormFloat64()
		hy := p.hy[i] + turn*p.rng.NormFloat64()
		norm := math.Hypot(hx, hy)
		if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
			hx, hy = p.randomHeading()
		} else {
			hx, hy = hx/norm, hy/norm
		}
		p.hx[i], p.hy[i] = hx, hy
		p.x[i] += hx * speed
		p.y[i] += hy * speed
	}
}

// jitter draws every x displacement, then every y displacement, each uniform
// in [-speed, speed).
func (p *Population) jitter(living []int) {
	speed := p.cfg.MovementSpeed
	for _, i := range living {
		p.x[i] += 2 * (p.rng.Float64() - 0.5) * speed
	}
	for _, i := range living {
		p.y[i] += 2 * (p.rng.Float64() - 0.5) * speed
	}
}

// bound applies the boundary policy to a single coordinate.
func (p *Population) bound(v float64) float64 {
	if p.cfg.PeriodicBoundaryConditions {
		return wrap(v)
	}
	return clamp(v)
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// wrap folds v onto [0, 1).
func wrap(v float64) float64 {
	w := v - math.Floor(v)
	if w >= 1 {
		// -tiny + 1 rounds up to exactly 1.
		w = 0
	}
	return w
}
