/*
Package world
File: transmission.go
Description:
    Proximity-based transmission from a set of infected sources to every
    healthy agent in the population.
*/

package world

import "slices"

// Transmit runs one transmission round from sources to the whole population.
//
// One uniform is drawn for every (source, agent) pair, row by row, whether or
// not the agent can still be infected, so the number of draws only depends on
// how many sources are Infected and on N. A healthy agent j becomes Infected
// when any source i draws below encounter(i, j) * transmission_rate. Statuses
// change only after every pair has been evaluated.
//
// The returned infections are ordered by target; each names the lowest-index
// source that hit the target and their unnormalised distance.
func (p *Population) Transmit(sources []int) []Infection {
	order := make([]int, 0, len(sources))
	for _, i := range sources {
		if p.status[i] == Infected {
			order = append(order, i)
		}
	}
	if len(order) == 0 {
		return nil
	}
	slices.Sort(order)

	n := len(p.status)
	draws := make([][]float64, len(order))
	for r := range order {
		row := make([]float64, n)
		for j := range row {
			row[j] = p.rng.Float64()
		}
		draws[r] = row
	}

	healthy := p.Indices(Healthy, 0, n)
	enc := p.Encounter(order, healthy)
	rate := p.cfg.TransmissionRate
	var out []Infection
	for c, j := range healthy {
		for r, i := range order {
			if draws[r][j] < enc[r][c]*rate {
				out = append(out, Infection{Source: i, Target: j, Distance: p.Distance(i, j)})
				break
			}
		}
	}

	for _, inf := range out {
		p.SetStatus(inf.Target, Infected)
	}
	return out
}
