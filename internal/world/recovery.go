/*
Package world
File: recovery.go
Description:
    Advances infected agents through the end of their illness.
    Death is evaluated before recovery, each with its own draw; the
    recovery hazard grows with the time an agent has been sick.
*/

package world

// RecoveryHazard is the per-step recovery probability after age steps of infection.
func (c Config) RecoveryHazard(age int) float64 {
	return c.RecoveryRate * (1 + float64(age)/c.MaxInfectionTime)
}

// Progress ages and resolves the Infected agents among candidates.
//
// Every Infected candidate first has its infection age incremented. Then one
// uniform per candidate decides death (below death_rate). The survivors draw
// a second, separate uniform each and recover when it falls below the
// RecoveryHazard for their new age. Agents in any other state are ignored.
func (p *Population) Progress(candidates []int) (died, recovered []int) {
	sick := make([]int, 0, len(candidates))
	for _, i := range candidates {
		if p.status[i] == Infected {
			sick = append(sick, i)
		}
	}
	if len(sick) == 0 {
		return nil, nil
	}

	for _, i := range sick {
		p.age[i]++
	}

	survivors := make([]int, 0, len(sick))
	for _, i := range sick {
		if p.rng.Float64() < p.cfg.DeathRate {
			p.status[i] = Dead
			died = append(died, i)
			continue
		}
		survivors = append(survivors, i)
	}

	for _, i := range survivors {
		if p.rng.Float64() < p.cfg.RecoveryHazard(p.age[i]) {
			p.status[i] = Recovered
			recovered = append(recovered, i)
		}
	}
	return died, recovered
}
