/*
Package world
File: models.go
Description:
    Defines the data structures shared by the population engine.
    The Config struct maps directly to the 'world.yaml' file and to the
    JSON served by the API; Snapshot and Counts are the read-only views
    handed to consumers after every step.

    No logic beyond text encoding is performed here.
*/

package world

import "fmt"

// Status is the health state of a single agent.
type Status uint8

const (
	Healthy Status = iota
	Infected
	Recovered
	Dead
)

var statusNames = [...]string{"healthy", "infected", "recovered", "dead"}

// Statuses lists every state in declaration order.
var Statuses = []Status{Healthy, Infected, Recovered, Dead}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// MarshalText encodes the status as its lowercase label ("healthy", "dead", ...).
func (s Status) MarshalText() ([]byte, error) {
	if int(s) >= len(statusNames) {
		return nil, fmt.Errorf("unknown status %d", uint8(s))
	}
	return []byte(statusNames[s]), nil
}

// UnmarshalText parses a lowercase label back into a Status.
func (s *Status) UnmarshalText(b []byte) error {
	for i, name := range statusNames {
		if name == string(b) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", string(b))
}

// Kernel selects the response curve turning a normalised distance into an
// encounter probability.
type Kernel string

const (
	KernelPower       Kernel = "power"       // (1 - d) ^ locality
	KernelExponential Kernel = "exponential" // exp(-locality * d)
)

// Movement selects how living agents are displaced each step.
type Movement string

const (
	MovementWalk   Movement = "walk"   // persistent heading perturbed by gaussian noise
	MovementJitter Movement = "jitter" // independent uniform displacement per axis
)

// Config is the immutable parameter set of a run, mapping to 'world.yaml'.
type Config struct {
	Population                 int      `yaml:"population" json:"population"`                                     // Number of agents (N)
	TransmissionRate           float64  `yaml:"transmission_rate" json:"transmission_rate"`                       // Scales the encounter probability
	MovementSpeed              float64  `yaml:"movement_speed" json:"movement_speed"`                             // Step length on the unit square
	MovementTurnRate           float64  `yaml:"movement_turn_rate" json:"movement_turn_rate"`                     // Std-dev of heading noise (walk only)
	RecoveryRate               float64  `yaml:"recovery_rate" json:"recovery_rate"`                               // Base per-step recovery probability
	DeathRate                  float64  `yaml:"death_rate" json:"death_rate"`                                     // Per-step death probability
	MaxInfectionTime           float64  `yaml:"max_infection_time" json:"max_infection_time"`                     // Steps over which the recovery hazard doubles
	LocalityFactor             float64  `yaml:"locality_factor" json:"locality_factor"`                           // Decay sharpness of the kernel
	PeriodicBoundaryConditions bool     `yaml:"periodic_boundary_conditions" json:"periodic_boundary_conditions"` // Wrap instead of clamp
	BatchSize                  int      `yaml:"batch_size" json:"batch_size"`                                     // Agents per batch, 0 = whole population
	Kernel                     Kernel   `yaml:"kernel" json:"kernel"`
	Movement                   Movement `yaml:"movement" json:"movement"`
	Seed                       int64    `yaml:"seed" json:"seed"` // 0 picks a time-based seed
}

// Counts tallies agents per status.
type Counts struct {
	Healthy   int `json:"healthy"`
	Infected  int `json:"infected"`
	Recovered int `json:"recovered"`
	Dead      int `json:"dead"`
	Alive     int `json:"alive"`
}

// Of returns the tally for status s.
func (c Counts) Of(s Status) int {
	switch s {
	case Healthy:
		return c.Healthy
	case Infected:
		return c.Infected
	case Recovered:
		return c.Recovered
	case Dead:
		return c.Dead
	}
	return 0
}

// Snapshot is a deep copy of the population taken after a step.
// Consumers may keep it; the engine never writes to it again.
type Snapshot struct {
	Step   int       `json:"step"`
	X      []float64 `json:"x"`
	Y      []float64 `json:"y"`
	Status []Status  `json:"status"`
	Counts Counts    `json:"counts"`
}

// Infection records one new transmission edge.
type Infection struct {
	Source   int     `json:"source"`
	Target   int     `json:"target"`
	Distance float64 `json:"distance"` // unnormalised euclidean distance at the time of infection
}
