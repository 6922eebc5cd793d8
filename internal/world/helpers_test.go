package world

import "testing"

// fixedSource returns the same uniform and gaussian value on every draw and
// counts uniform draws.
type fixedSource struct {
	u     float64
	norm  float64
	draws int
}

func (f *fixedSource) Float64() float64 {
	f.draws++
	return f.u
}

func (f *fixedSource) NormFloat64() float64 { return f.norm }

// quietConfig is a world where nothing happens unless a test turns it on.
func quietConfig(n int) Config {
	cfg := DefaultConfig()
	cfg.Population = n
	cfg.TransmissionRate = 0
	cfg.RecoveryRate = 0
	cfg.DeathRate = 0
	cfg.MovementSpeed = 0
	cfg.MovementTurnRate = 0
	cfg.BatchSize = 0
	return cfg
}

func newPopulation(t *testing.T, cfg Config, rng Source) *Population {
	t.Helper()
	p, err := NewPopulation(cfg, rng)
	if err != nil {
		t.Fatalf("NewPopulation: %v", err)
	}
	return p
}

func place(t *testing.T, p *Population, i int, x, y float64) {
	t.Helper()
	if err := p.SetLocation(i, x, y); err != nil {
		t.Fatalf("SetLocation(%d): %v", i, err)
	}
}
