/*
Package world
File: config.go
Description:
    Loads and validates the run configuration.
    Values come from 'world.yaml' (or any YAML document) layered over the
    defaults below, or from a free-form key/value map. Any key that is not
    part of Config is rejected before a population is created.
*/

package world

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknownKey is returned when a configuration source names a key Config does not have.
	ErrUnknownKey = errors.New("unknown configuration key")
	// ErrInvalidConfig is returned when a value is outside its allowed range.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// knownKeys mirrors the yaml tags of Config.
var knownKeys = map[string]struct{}{
	"population":                   {},
	"transmission_rate":            {},
	"movement_speed":               {},
	"movement_turn_rate":           {},
	"recovery_rate":                {},
	"death_rate":                   {},
	"max_infection_time":           {},
	"locality_factor":              {},
	"periodic_boundary_conditions": {},
	"batch_size":                   {},
	"kernel":                       {},
	"movement":                     {},
	"seed":                         {},
}

// DefaultConfig returns the baseline world.
func DefaultConfig() Config {
	return Config{
		Population:       1000,
		TransmissionRate: 0.001,
		MovementSpeed:    0.01,
		MovementTurnRate: 0.2,
		RecoveryRate:     0.01,
		DeathRate:        0.001,
		MaxInfectionTime: 25,
		LocalityFactor:   7,
		BatchSize:        100,
		Kernel:           KernelPower,
		Movement:         MovementWalk,
	}
}

// LoadConfig reads a YAML file and layers it over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(f)
}

// ParseConfig decodes a YAML document over DefaultConfig and validates the result.
func ParseConfig(data []byte) (Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := checkKeys(raw); err != nil {
		return Config{}, err
	}

	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ConfigFromMap builds a Config from free-form keys, such as decoded JSON or
// command-line pairs. Unknown keys are a hard error.
func ConfigFromMap(values map[string]any) (Config, error) {
	if err := checkKeys(values); err != nil {
		return Config{}, err
	}
	data, err := yaml.Marshal(values)
	if err != nil {
		return Config{}, fmt.Errorf("encode config: %w", err)
	}
	return ParseConfig(data)
}

func checkKeys(values map[string]any) error {
	var unknown []string
	for key := range values {
		if _, ok := knownKeys[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return fmt.Errorf("%w: %s", ErrUnknownKey, strings.Join(unknown, ", "))
}

// Validate checks every field against its allowed range.
func (c Config) Validate() error {
	if c.Population < 1 {
		return fmt.Errorf("%w: population must be at least 1, got %d", ErrInvalidConfig, c.Population)
	}
	probs := []struct {
		name string
		v    float64
	}{
		{"transmission_rate", c.TransmissionRate},
		{"recovery_rate", c.RecoveryRate},
		{"death_rate", c.DeathRate},
	}
	for _, p := range probs {
		if math.IsNaN(p.v) || p.v < 0 || p.v > 1 {
			return fmt.Errorf("%w: %s must be within [0, 1], got %v", ErrInvalidConfig, p.name, p.v)
		}
	}
	nonNeg := []struct {
		name string
		v    float64
	}{
		{"movement_speed", c.MovementSpeed},
		{"movement_turn_rate", c.MovementTurnRate},
		{"locality_factor", c.LocalityFactor},
	}
	for _, p := range nonNeg {
		if math.IsNaN(p.v) || math.IsInf(p.v, 0) || p.v < 0 {
			return fmt.Errorf("%w: %s must be finite and not negative, got %v", ErrInvalidConfig, p.name, p.v)
		}
	}
	if !(c.MaxInfectionTime > 0) || math.IsInf(c.MaxInfectionTime, 0) {
		return fmt.Errorf("%w: max_infection_time must be positive and finite, got %v", ErrInvalidConfig, c.MaxInfectionTime)
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("%w: batch_size must not be negative, got %d", ErrInvalidConfig, c.BatchSize)
	}
	switch c.Kernel {
	case KernelPower, KernelExponential:
	default:
		return fmt.Errorf("%w: kernel %q (want %q or %q)", ErrInvalidConfig, c.Kernel, KernelPower, KernelExponential)
	}
	switch c.Movement {
	case MovementWalk, MovementJitter:
	default:
		return fmt.Errorf("%w: movement %q (want %q or %q)", ErrInvalidConfig, c.Movement, MovementWalk, MovementJitter)
	}
	return nil
}
