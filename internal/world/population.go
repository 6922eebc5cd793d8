/*
Package world
File: population.go
Description:
    The population state store. Every agent is an index 0..N-1 into a set of
    parallel slices (location, heading, status, infection age). The store is
    created once per run and mutated in place by movement, transmission and
    recovery; consumers only ever see copies via Snapshot.
*/

package world

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Source is the random handle the engine draws from. *rand.Rand satisfies it.
type Source interface {
	Float64() float64
	NormFloat64() float64
}

// Population is the structure-of-arrays agent store.
type Population struct {
	cfg Config
	rng Source

	x, y   []float64 // location on the unit square
	hx, hy []float64 // unit heading, walk movement only
	status []Status
	age    []int // steps spent continuously Infected
}

// NewPopulation validates cfg and places cfg.Population healthy agents at
// uniform random locations with random headings.
// A nil rng is replaced by a math/rand generator seeded from cfg.Seed.
func NewPopulation(cfg Config, rng Source) (*Population, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		seed := cfg.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rng = rand.New(rand.NewSource(seed))
	}

	n := cfg.Population
	p := &Population{
		cfg:    cfg,
		rng:    rng,
		x:      make([]float64, n),
		y:      make([]float64, n),
		hx:     make([]float64, n),
		hy:     make([]float64, n),
		status: make([]Status, n),
		age:    make([]int, n),
	}
	for i := 0; i < n; i++ {
		p.x[i] = rng.Float64()
	}
	for i := 0; i < n; i++ {
		p.y[i] = rng.Float64()
	}
	for i := 0; i < n; i++ {
		p.hx[i], p.hy[i] = p.randomHeading()
	}
	return p, nil
}

func (p *Population) randomHeading() (float64, float64) {
	theta := 2 * math.Pi * p.rng.Float64()
	return math.Cos(theta), math.Sin(theta)
}

// Config returns the parameters the population was built with.
func (p *Population) Config() Config { return p.cfg }

// Len returns the number of agents.
func (p *Population) Len() int { return len(p.status) }

// Status returns the health state of agent i.
func (p *Population) Status(i int) Status { return p.status[i] }

// SetStatus overwrites the state of agent i. Moving into Infected from any
// other state restarts the infection age.
func (p *Population) SetStatus(i int, s Status) {
	if s == Infected && p.status[i] != Infected {
		p.age[i] = 0
	}
	p.status[i] = s
}

// InfectionAge returns how many steps agent i has been continuously Infected.
func (p *Population) InfectionAge(i int) int { return p.age[i] }

// Location returns the coordinates of agent i.
func (p *Population) Location(i int) (float64, float64) { return p.x[i], p.y[i] }

// SetLocation places agent i. Coordinates must already lie on the unit square.
func (p *Population) SetLocation(i int, x, y float64) error {
	if x < 0 || x > 1 || y < 0 || y > 1 || math.IsNaN(x) || math.IsNaN(y) {
		return fmt.Errorf("location (%v, %v) outside the unit square", x, y)
	}
	p.x[i], p.y[i] = x, y
	return nil
}

// Heading returns the unit travel direction of agent i.
func (p *Population) Heading(i int) (float64, float64) { return p.hx[i], p.hy[i] }

// Mask returns a fresh boolean slice marking every agent in state s.
func (p *Population) Mask(s Status) []bool {
	m := make([]bool, len(p.status))
	for i, st := range p.status {
		m[i] = st == s
	}
	return m
}

func (p *Population) Healthy() []bool   { return p.Mask(Healthy) }
func (p *Population) Infected() []bool  { return p.Mask(Infected) }
func (p *Population) Recovered() []bool { return p.Mask(Recovered) }
func (p *Population) Dead() []bool      { return p.Mask(Dead) }

// Indices returns, in ascending order, the agents in [lo, hi) that are in state s.
func (p *Population) Indices(s Status, lo, hi int) []int {
	lo = max(lo, 0)
	hi = min(hi, len(p.status))
	var out []int
	for i := lo; i < hi; i++ {
		if p.status[i] == s {
			out = append(out, i)
		}
	}
	return out
}

// Counts tallies the population by state.
func (p *Population) Counts() Counts {
	var c Counts
	for _, st := range p.status {
		switch st {
		case Healthy:
			c.Healthy++
		case Infected:
			c.Infected++
		case Recovered:
			c.Recovered++
		case Dead:
			c.Dead++
		}
	}
	c.Alive = len(p.status) - c.Dead
	return c
}

// Spawn marks agent 0 as Infected.
func (p *Population) Spawn() {
	p.SetStatus(0, Infected)
}

// Snapshot copies the current state. step is recorded as-is.
func (p *Population) Snapshot(step int) Snapshot {
	return Snapshot{
		Step:   step,
		X:      append([]float64(nil), p.x...),
		Y:      append([]float64(nil), p.y...),
		Status: append([]Status(nil), p.status...),
		Counts: p.Counts(),
	}
}
